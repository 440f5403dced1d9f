package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingMatched   ListingStatus = "matched"
	ListingCompleted ListingStatus = "completed"
	ListingExpired   ListingStatus = "expired"
)

type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID          int64         `bun:"id,pk,autoincrement"`
	ListingID   string        `bun:"listing_id,notnull,unique"`
	OwnerID     string        `bun:"owner_id,notnull"`
	Title       string        `bun:"title,notnull"`
	Description string        `bun:"description"`
	AskCents    int64         `bun:"ask_cents,notnull,default:0"`
	Status      ListingStatus `bun:"status,notnull"`
	ExpiresAt   time.Time     `bun:"expires_at"`
	CreatedAt   time.Time     `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull,default:current_timestamp"`
}
