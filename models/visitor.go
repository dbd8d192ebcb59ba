package models

import "time"

// Visitor represents a durable anonymous identity tied to a client-held token.
// Table: visitors
// FirstSource is set once at first contact and never overwritten;
// LastSeenAt is bumped on every beacon.
type Visitor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Token       string    `gorm:"size:64;not null;uniqueIndex:uk_visitors_token" json:"token"`
	FirstSource string    `gorm:"size:32;not null;index:idx_visitors_first_source" json:"first_source"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_visitors_created_at" json:"created_at"`
	LastSeenAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_visitors_last_seen_at" json:"last_seen_at"`
}

func (Visitor) TableName() string { return "visitors" }

// VisitorFilter represents filter criteria for visitor queries
type VisitorFilter struct {
	ID            *uint
	Token         *string
	FirstSource   *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SeenAfter     *time.Time
	SeenBefore    *time.Time
}
