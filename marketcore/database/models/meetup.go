package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MeetupStatus string

const (
	MeetupProposed  MeetupStatus = "proposed"
	MeetupConfirmed MeetupStatus = "confirmed"
	MeetupCompleted MeetupStatus = "completed"
	MeetupCancelled MeetupStatus = "cancelled"
)

// Meetup is the in-person completion record tied to a match. Finalizing it
// requires both participants to set their completion flag.
type Meetup struct {
	bun.BaseModel `bun:"table:meetups,alias:mu"`

	ID               int64        `bun:"id,pk,autoincrement"`
	MatchID          int64        `bun:"match_id,notnull"`
	Status           MeetupStatus `bun:"status,notnull"`
	Location         string       `bun:"location"`
	ScheduledAt      time.Time    `bun:"scheduled_at"`
	OwnerCompleted   bool         `bun:"owner_completed,notnull,default:false"`
	OffererCompleted bool         `bun:"offerer_completed,notnull,default:false"`
	CreatedAt        time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time    `bun:"updated_at,notnull,default:current_timestamp"`
}

func (mu *Meetup) BothCompleted() bool {
	return mu.OwnerCompleted && mu.OffererCompleted
}
