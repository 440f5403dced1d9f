package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Conversation is created together with a match and carries its messages.
type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	MatchID   int64     `bun:"match_id,notnull"`
	OwnerID   string    `bun:"owner_id,notnull"`
	OffererID string    `bun:"offerer_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// HasParticipant reports whether userID may read and write this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.OwnerID || userID == c.OffererID
}

// OtherParticipant returns the counterparty of userID, or "" when userID is
// not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.OwnerID:
		return c.OffererID
	case c.OffererID:
		return c.OwnerID
	}
	return ""
}

type MessageType string

const (
	MessageText              MessageType = "text"
	MessageImage             MessageType = "image"
	MessageCardOffer         MessageType = "card_offer"
	MessageCardOfferResponse MessageType = "card_offer_response"
	MessageMeetupProposal    MessageType = "meetup_proposal"
	MessageMeetupResponse    MessageType = "meetup_response"
	MessageSystem            MessageType = "system"
)

// KnownMessageType reports whether t is one of the supported message kinds.
func KnownMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageImage, MessageCardOffer, MessageCardOfferResponse,
		MessageMeetupProposal, MessageMeetupResponse, MessageSystem:
		return true
	}
	return false
}

type Message struct {
	bun.BaseModel `bun:"table:messages,alias:msg"`

	ID             int64           `bun:"id,pk,autoincrement"`
	ConversationID int64           `bun:"conversation_id,notnull"`
	SenderID       string          `bun:"sender_id,notnull"`
	Type           MessageType     `bun:"type,notnull"`
	Body           string          `bun:"body"`
	Payload        json.RawMessage `bun:"payload,type:jsonb"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}
