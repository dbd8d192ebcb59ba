package models

import "time"

// PageViewEvent represents a single tracking beacon within a session.
// Table: page_view_events
// Rows are append-only and ordered by occurred_at within a session;
// Referrer keeps the raw referrer verbatim so "other" sources can be
// ranked later by frequency.
type PageViewEvent struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	SessionID  uint            `gorm:"not null;index:idx_page_view_events_session_id" json:"session_id"`
	Session    TrackingSession `gorm:"foreignKey:SessionID;references:ID" json:"session,omitempty"`
	OccurredAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_page_view_events_occurred_at" json:"occurred_at"`
	Path       string          `gorm:"type:text;not null" json:"path"`
	Referrer   *string         `gorm:"type:text" json:"referrer,omitempty"`
	Source     string          `gorm:"size:32;not null;index:idx_page_view_events_source" json:"source"`
	IP         *string         `gorm:"size:64" json:"ip,omitempty"`
	UserAgent  *string         `gorm:"type:text" json:"user_agent,omitempty"`
}

func (PageViewEvent) TableName() string { return "page_view_events" }

// PageViewEventFilter represents filter criteria for page view event queries
type PageViewEventFilter struct {
	ID             *uint
	SessionID      *uint
	Source         *string
	Path           *string
	Referrer       *string
	OccurredAfter  *time.Time
	OccurredBefore *time.Time
}
