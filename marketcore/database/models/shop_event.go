package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ShopEventStatus string

const (
	ShopEventDraft     ShopEventStatus = "draft"
	ShopEventPublished ShopEventStatus = "published"
	ShopEventCancelled ShopEventStatus = "cancelled"
	ShopEventCompleted ShopEventStatus = "completed"
)

// ShopEvent is a hosted in-store event. It is independent of the trade flow;
// its statuses go through the same transition registry as everything else.
type ShopEvent struct {
	bun.BaseModel `bun:"table:shop_events,alias:se"`

	ID        int64           `bun:"id,pk,autoincrement"`
	HostID    string          `bun:"host_id,notnull"`
	Title     string          `bun:"title,notnull"`
	Location  string          `bun:"location"`
	Status    ShopEventStatus `bun:"status,notnull"`
	StartsAt  time.Time       `bun:"starts_at"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}
