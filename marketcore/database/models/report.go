package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportResolved ReportStatus = "resolved"
)

type Report struct {
	bun.BaseModel `bun:"table:reports,alias:r"`

	ID             int64        `bun:"id,pk,autoincrement"`
	ReporterID     string       `bun:"reporter_id,notnull"`
	ReportedUserID string       `bun:"reported_user_id,notnull"`
	Reason         string       `bun:"reason,notnull"`
	Status         ReportStatus `bun:"status,notnull"`
	CreatedAt      time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time    `bun:"updated_at,notnull,default:current_timestamp"`
}
