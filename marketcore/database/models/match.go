package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// Match pairs the listing owner and the offerer once an offer is accepted.
type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID        int64       `bun:"id,pk,autoincrement"`
	MatchID   string      `bun:"match_id,notnull,unique"`
	ListingID int64       `bun:"listing_id,notnull"`
	OfferID   int64       `bun:"offer_id,notnull"`
	OwnerID   string      `bun:"owner_id,notnull"`
	OffererID string      `bun:"offerer_id,notnull"`
	Status    MatchStatus `bun:"status,notnull"`
	CreatedAt time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// OtherParticipant returns the counterparty of userID, or "" when userID is
// not part of the match.
func (m *Match) OtherParticipant(userID string) string {
	switch userID {
	case m.OwnerID:
		return m.OffererID
	case m.OffererID:
		return m.OwnerID
	}
	return ""
}

// HasParticipant reports whether userID is one of the two match parties.
func (m *Match) HasParticipant(userID string) bool {
	return userID == m.OwnerID || userID == m.OffererID
}
