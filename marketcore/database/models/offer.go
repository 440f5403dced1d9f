package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferCountered OfferStatus = "countered"
	OfferWithdrawn OfferStatus = "withdrawn"
)

type Offer struct {
	bun.BaseModel `bun:"table:offers,alias:o"`

	ID        int64  `bun:"id,pk,autoincrement"`
	OfferID   string `bun:"offer_id,notnull,unique"`
	ListingID int64  `bun:"listing_id,notnull"`
	OffererID string `bun:"offerer_id,notnull"`
	CashCents int64  `bun:"cash_cents,notnull,default:0"`
	Note      string `bun:"note"`
	// parent_offer_id links counter-offers into a chain.
	ParentOfferID int64       `bun:"parent_offer_id,nullzero"`
	Status        OfferStatus `bun:"status,notnull"`
	CreatedAt     time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull,default:current_timestamp"`

	Items []*OfferItem `bun:"rel:has-many,join:id=offer_id"`
}

type OfferItem struct {
	bun.BaseModel `bun:"table:offer_items,alias:oi"`

	ID        int64     `bun:"id,pk,autoincrement"`
	OfferID   int64     `bun:"offer_id,notnull"`
	CardID    int64     `bun:"card_id,notnull"`
	Quantity  int       `bun:"quantity,notnull,default:1"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
