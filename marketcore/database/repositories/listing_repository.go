package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/transitions"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ListingRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id int64) (*models.Listing, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error)
	Expire(ctx context.Context, listingID int64, actorID string) (int, error)
}

type listingRepository struct {
	db *bun.DB
	tx *TxManager
}

func NewListingRepository(db *bun.DB) ListingRepository {
	return &listingRepository{db: db, tx: NewTxManager(db)}
}

func (r *listingRepository) DB() *bun.DB {
	return r.db
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.ListingID == "" {
		listing.ListingID = uuid.NewString()
	}
	if listing.Status == "" {
		listing.Status = models.ListingActive
	}
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().Model(listing).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Entity: "listing", ID: id}
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

func (r *listingRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.db.NewSelect().
		Model(&listings).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, &RepositoryError{Operation: "list by owner", Entity: "listing", Err: err}
	}
	return listings, nil
}

// Expire flips the listing to expired and withdraws every non-terminal offer
// on it, as one atomic unit. The current row state is re-read under lock so a
// stale pre-check premise fails here rather than silently succeeding.
func (r *listingRepository) Expire(ctx context.Context, listingID int64, actorID string) (int, error) {
	var withdrawn int

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
			return pipeline.NotAuthorized("only the listing owner can expire it")
		}
		if err := transitions.AssertTransition(transitions.KindListing, listing.Status, models.ListingExpired); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Listing)(nil)).
			Set("status = ?", models.ListingExpired).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", listingID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to expire listing: %w", err)
		}

		result, err := tx.NewUpdate().
			Model((*models.Offer)(nil)).
			Set("status = ?", models.OfferWithdrawn).
			Set("updated_at = ?", time.Now()).
			Where("listing_id = ? AND status IN (?)", listingID,
				bun.In([]models.OfferStatus{models.OfferPending, models.OfferCountered})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to withdraw open offers: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count withdrawn offers: %w", err)
		}
		withdrawn = int(affected)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return withdrawn, nil
}
