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
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AcceptOfferResult is what the accept-offer mutation hands back: the freshly
// created match and conversation plus the cascade size.
type AcceptOfferResult struct {
	MatchID        int64
	MatchUUID      string
	ConversationID int64
	DeclinedOffers int
	OffererID      string
	ListingTitle   string
}

// DeclineOfferResult carries the flipped offer plus what the notification
// adapter needs afterwards.
type DeclineOfferResult struct {
	OfferID      int64
	OffererID    string
	ListingTitle string
}

type OfferRepository interface {
	DB() *bun.DB
	GetByID(ctx context.Context, id int64) (*models.Offer, error)
	GetOpenByListing(ctx context.Context, listingID int64) ([]*models.Offer, error)
	CreateOffer(ctx context.Context, offer *models.Offer, items []models.OfferItem) error
	Accept(ctx context.Context, offerID, listingID int64, actorID string) (*AcceptOfferResult, error)
	Decline(ctx context.Context, offerID, listingID int64, actorID string) (*DeclineOfferResult, error)
}

type offerRepository struct {
	db *bun.DB
	tx *TxManager
}

func NewOfferRepository(db *bun.DB) OfferRepository {
	return &offerRepository{db: db, tx: NewTxManager(db)}
}

func (r *offerRepository) DB() *bun.DB {
	return r.db
}

func (r *offerRepository) GetByID(ctx context.Context, id int64) (*models.Offer, error) {
	offer := new(models.Offer)
	err := r.db.NewSelect().
		Model(offer).
		Where("o.id = ?", id).
		Relation("Items").
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "offer", ID: id}
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

func (r *offerRepository) GetOpenByListing(ctx context.Context, listingID int64) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := r.db.NewSelect().
		Model(&offers).
		Where("listing_id = ? AND status IN (?)", listingID,
			bun.In([]models.OfferStatus{models.OfferPending, models.OfferCountered})).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, &RepositoryError{Operation: "list open", Entity: "offer", Err: err}
	}
	return offers, nil
}

// CreateOffer inserts the offer and its items atomically. The listing row is
// locked and re-checked first: the advisory pre-check may have read state that
// changed since, and the transaction is the authority.
func (r *offerRepository) CreateOffer(ctx context.Context, offer *models.Offer, items []models.OfferItem) error {
	if offer.OfferID == "" {
		offer.OfferID = uuid.NewString()
	}
	offer.Status = models.OfferPending
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = time.Now()

	return r.tx.WithTransaction(ctx, SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		listing := new(models.Listing)
		err := tx.NewSelect().
			Model(listing).
			Where("id = ?", offer.ListingID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "listing", ID: offer.ListingID}
			}
			return fmt.Errorf("failed to lock listing: %w", err)
		}

		if listing.OwnerID == offer.OffererID {
			return pipeline.NotAuthorized("cannot make an offer on your own listing")
		}
		if listing.Status != models.ListingActive {
			return &pipeline.Error{
				Code:    pipeline.CodeInvalidTransition,
				Message: fmt.Sprintf("listing is %s and no longer accepts offers", listing.Status),
				Data: map[string]any{
					"entity": string(transitions.KindListing),
					"from":   string(listing.Status),
				},
			}
		}

		if _, err := tx.NewInsert().Model(offer).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert offer: %w", err)
		}

		for i := range items {
			items[i].OfferID = offer.ID
			items[i].CreatedAt = time.Now()
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert offer items: %w", err)
			}
		}

		return nil
	})
}

// Accept is the one mutation that touches three entities at once: the target
// offer, every other open offer on the listing, and the listing itself, plus
// creation of the match and its conversation. All of it commits or none.
func (r *offerRepository) Accept(ctx context.Context, offerID, listingID int64, actorID string) (*AcceptOfferResult, error) {
	var out *AcceptOfferResult

	err := r.tx.WithTransaction(ctx, SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		listing := new(models.Listing)
		err := tx.NewSelect().
			Model(listing).
			Where("id = ?", listingID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "listing", ID: listingID}
			}
			return fmt.Errorf("failed to lock listing: %w", err)
		}

		if listing.OwnerID != actorID {
			return pipeline.NotAuthorized("only the listing owner can accept offers")
		}
		if err := transitions.AssertTransition(transitions.KindListing, listing.Status, models.ListingMatched); err != nil {
			return err
		}

		offer := new(models.Offer)
		err = tx.NewSelect().
			Model(offer).
			Where("o.id = ?", offerID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "offer", ID: offerID}
			}
			return fmt.Errorf("failed to lock offer: %w", err)
		}

		if offer.ListingID != listingID {
			return &NotFoundError{Entity: "offer", ID: offerID}
		}
		if err := transitions.AssertTransition(transitions.KindOffer, offer.Status, models.OfferAccepted); err != nil {
			return err
		}

		now := time.Now()

		_, err = tx.NewUpdate().
			Model((*models.Offer)(nil)).
			Set("status = ?", models.OfferAccepted).
			Set("updated_at = ?", now).
			Where("id = ?", offerID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to accept offer: %w", err)
		}

		siblingResult, err := tx.NewUpdate().
			Model((*models.Offer)(nil)).
			Set("status = ?", models.OfferDeclined).
			Set("updated_at = ?", now).
			Where("listing_id = ? AND id != ? AND status IN (?)", listingID, offerID,
				bun.In([]models.OfferStatus{models.OfferPending, models.OfferCountered})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to decline sibling offers: %w", err)
		}
		declined, err := siblingResult.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count declined siblings: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.Listing)(nil)).
			Set("status = ?", models.ListingMatched).
			Set("updated_at = ?", now).
			Where("id = ?", listingID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark listing matched: %w", err)
		}

		match := &models.Match{
			MatchID:   uuid.NewString(),
			ListingID: listingID,
			OfferID:   offerID,
			OwnerID:   listing.OwnerID,
			OffererID: offer.OffererID,
			Status:    models.MatchActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.NewInsert().Model(match).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create match: %w", err)
		}

		conversation := &models.Conversation{
			MatchID:   match.ID,
			OwnerID:   listing.OwnerID,
			OffererID: offer.OffererID,
			CreatedAt: now,
		}
		if _, err := tx.NewInsert().Model(conversation).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}

		out = &AcceptOfferResult{
			MatchID:        match.ID,
			MatchUUID:      match.MatchID,
			ConversationID: conversation.ID,
			DeclinedOffers: int(declined),
			OffererID:      offer.OffererID,
			ListingTitle:   listing.Title,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Offer accepted",
		slog.String("type", "db"),
		slog.Int64("offer_id", offerID),
		slog.Int64("listing_id", listingID),
		slog.Int64("match_id", out.MatchID),
		slog.Int("declined_siblings", out.DeclinedOffers))

	return out, nil
}

// Decline flips just the target offer. Listing ownership and the offer's
// transition are re-checked under lock.
func (r *offerRepository) Decline(ctx context.Context, offerID, listingID int64, actorID string) (*DeclineOfferResult, error) {
	var declined *DeclineOfferResult

	err := r.tx.WithTransaction(ctx, SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		listing := new(models.Listing)
		err := tx.NewSelect().
			Model(listing).
			Where("id = ?", listingID).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "listing", ID: listingID}
			}
			return fmt.Errorf("failed to get listing: %w", err)
		}

		if listing.OwnerID != actorID {
			return pipeline.NotAuthorized("only the listing owner can decline offers")
		}

		offer := new(models.Offer)
		err = tx.NewSelect().
			Model(offer).
			Where("o.id = ?", offerID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return &NotFoundError{Entity: "offer", ID: offerID}
			}
			return fmt.Errorf("failed to lock offer: %w", err)
		}

		if offer.ListingID != listingID {
			return &NotFoundError{Entity: "offer", ID: offerID}
		}
		if err := transitions.AssertTransition(transitions.KindOffer, offer.Status, models.OfferDeclined); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Offer)(nil)).
			Set("status = ?", models.OfferDeclined).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", offerID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to decline offer: %w", err)
		}

		declined = &DeclineOfferResult{
			OfferID:      offerID,
			OffererID:    offer.OffererID,
			ListingTitle: listing.Title,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return declined, nil
}
