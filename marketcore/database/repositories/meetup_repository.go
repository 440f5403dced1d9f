package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/transitions"
	"github.com/uptrace/bun"
)

// CompleteMeetupResult reports the outcome of one participant marking their
// half of the meetup done.
type CompleteMeetupResult struct {
	MeetupID      int64
	MatchID       int64
	BothCompleted bool
	OtherUserID   string
}

type MeetupRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, meetup *models.Meetup) error
	GetByID(ctx context.Context, id int64) (*models.Meetup, error)
	GetMatch(ctx context.Context, matchID int64) (*models.Match, error)
	Complete(ctx context.Context, meetupID int64, actorID string) (*CompleteMeetupResult, error)
}

type meetupRepository struct {
	db *bun.DB
	tx *TxManager
}

func NewMeetupRepository(db *bun.DB) MeetupRepository {
	return &meetupRepository{db: db, tx: NewTxManager(db)}
}

func (r *meetupRepository) DB() *bun.DB {
	return r.db
}

func (r *meetupRepository) Create(ctx context.Context, meetup *models.Meetup) error {
	if meetup.Status == "" {
		meetup.Status = models.MeetupProposed
	}
	meetup.CreatedAt = time.Now()
	meetup.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().Model(meetup).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create meetup: %w", err)
	}
	return nil
}

func (r *meetupRepository) GetByID(ctx context.Context, id int64) (*models.Meetup, error) {
	meetup := new(models.Meetup)
	err := r.db.NewSelect().
		Model(meetup).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "meetup", ID: id}
		}
		return nil, fmt.Errorf("failed to get meetup: %w", err)
	}
	return meetup, nil
}

func (r *meetupRepository) GetMatch(ctx context.Context, matchID int64) (*models.Match, error) {
	match := new(models.Match)
	err := r.db.NewSelect().
		Model(match).
		Where("id = ?", matchID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "match", ID: matchID}
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// Complete sets the acting participant's completion flag. When both flags
// become true in the same transaction, the meetup and its match finalize and
// both participants' trade counters increment, exactly once: a repeated call
// by the same participant is a harmless flag rewrite, and once finalized the
// meetup is no longer confirmed so the transition guard rejects further calls.
func (r *meetupRepository) Complete(ctx context.Context, meetupID int64, actorID string) (*CompleteMeetupResult, error) {
	var out *CompleteMeetupResult

	err := r.tx.WithTransaction(ctx, SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		meetup := new(models.Meetup)
		err := tx.NewSelect().
			Model(meetup).
			Where("id = ?", meetupID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "meetup", ID: meetupID}
			}
			return fmt.Errorf("failed to lock meetup: %w", err)
		}

		if err := transitions.AssertTransition(transitions.KindMeetup, meetup.Status, models.MeetupCompleted); err != nil {
			return err
		}

		match := new(models.Match)
		err = tx.NewSelect().
			Model(match).
			Where("id = ?", meetup.MatchID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "match", ID: meetup.MatchID}
			}
			return fmt.Errorf("failed to lock match: %w", err)
		}

		if !match.HasParticipant(actorID) {
			return pipeline.NotAuthorized("only a meetup participant can mark it complete")
		}

		switch actorID {
		case match.OwnerID:
			meetup.OwnerCompleted = true
		case match.OffererID:
			meetup.OffererCompleted = true
		}

		now := time.Now()
		both := meetup.BothCompleted()

		update := tx.NewUpdate().
			Model((*models.Meetup)(nil)).
			Set("owner_completed = ?", meetup.OwnerCompleted).
			Set("offerer_completed = ?", meetup.OffererCompleted).
			Set("updated_at = ?", now).
			Where("id = ?", meetupID)
		if both {
			update = update.Set("status = ?", models.MeetupCompleted)
		}
		if _, err := update.Exec(ctx); err != nil {
			return fmt.Errorf("failed to update meetup: %w", err)
		}

		if both {
			if err := transitions.AssertTransition(transitions.KindMatch, match.Status, models.MatchCompleted); err != nil {
				return err
			}

			_, err = tx.NewUpdate().
				Model((*models.Match)(nil)).
				Set("status = ?", models.MatchCompleted).
				Set("updated_at = ?", now).
				Where("id = ?", match.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to complete match: %w", err)
			}

			_, err = tx.NewUpdate().
				Model((*models.User)(nil)).
				Set("trade_count = trade_count + 1").
				Set("updated_at = ?", now).
				Where("user_id IN (?)", bun.In([]string{match.OwnerID, match.OffererID})).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to increment trade counters: %w", err)
			}
		}

		out = &CompleteMeetupResult{
			MeetupID:      meetupID,
			MatchID:       match.ID,
			BothCompleted: both,
			OtherUserID:   match.OtherParticipant(actorID),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.BothCompleted {
		slog.Info("Meetup finalized",
			slog.String("type", "db"),
			slog.Int64("meetup_id", out.MeetupID),
			slog.Int64("match_id", out.MatchID))
	}

	return out, nil
}
