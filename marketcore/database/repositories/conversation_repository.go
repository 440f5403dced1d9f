package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/uptrace/bun"
)

// SendMessageResult carries what the notification adapter needs after the
// insert commits: who sent and who should hear about it.
type SendMessageResult struct {
	MessageID   int64
	SenderID    string
	RecipientID string
}

type ConversationRepository interface {
	DB() *bun.DB
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error)
	SendMessage(ctx context.Context, conversationID int64, senderID string, msgType models.MessageType, body string, payload json.RawMessage) (*SendMessageResult, error)
}

type conversationRepository struct {
	db *bun.DB
	tx *TxManager
}

func NewConversationRepository(db *bun.DB) ConversationRepository {
	return &conversationRepository{db: db, tx: NewTxManager(db)}
}

func (r *conversationRepository) DB() *bun.DB {
	return r.db
}

func (r *conversationRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	conversation := new(models.Conversation)
	err := r.db.NewSelect().
		Model(conversation).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "conversation", ID: id}
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conversation, nil
}

func (r *conversationRepository) GetMessages(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []*models.Message
	err := r.db.NewSelect().
		Model(&messages).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)

	if err != nil {
		return nil, &RepositoryError{Operation: "list", Entity: "message", Err: err}
	}
	return messages, nil
}

// SendMessage inserts the message. Conversation membership is enforced here,
// inside the mutation, not by a pre-check: the conversation row is immutable
// once created, so one authoritative read suffices.
func (r *conversationRepository) SendMessage(ctx context.Context, conversationID int64, senderID string, msgType models.MessageType, body string, payload json.RawMessage) (*SendMessageResult, error) {
	var out *SendMessageResult

	err := r.tx.WithTransaction(ctx, StandardTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		conversation := new(models.Conversation)
		err := tx.NewSelect().
			Model(conversation).
			Where("id = ?", conversationID).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "conversation", ID: conversationID}
			}
			return fmt.Errorf("failed to get conversation: %w", err)
		}

		if !conversation.HasParticipant(senderID) {
			return pipeline.NotAuthorized("sender is not part of this conversation")
		}

		message := &models.Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			Type:           msgType,
			Body:           body,
			Payload:        payload,
			CreatedAt:      time.Now(),
		}
		if _, err := tx.NewInsert().Model(message).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		out = &SendMessageResult{
			MessageID:   message.ID,
			SenderID:    senderID,
			RecipientID: conversation.OtherParticipant(senderID),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
