package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement"`
	UserID   string `bun:"user_id,notnull,unique"`
	Username string `bun:"username,notnull"`
	// TradeCount is the durable completed-trade counter. It is incremented
	// exactly once per finalized meetup, inside the same transaction that
	// completes the meetup and its match.
	TradeCount int64     `bun:"trade_count,notnull,default:0"`
	Joined     time.Time `bun:"joined,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Device is a registered push-notification target for a user.
type Device struct {
	bun.BaseModel `bun:"table:devices,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	Token     string    `bun:"token,notnull,unique"`
	Platform  string    `bun:"platform,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
