package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackingSession represents one visit: a contiguous run of page views by a visitor.
// Table: tracking_sessions
// Source is the attribution for this visit and may differ from the visitor's
// first_source. The session never changes Source or LandingPath after creation.
// ENDED is derived lazily from EndedAt/LastSeenAt; there is no background sweep.
type TrackingSession struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_tracking_sessions_uuid" json:"uuid"`
	VisitorID   uint       `gorm:"not null;index:idx_tracking_sessions_visitor_id" json:"visitor_id"`
	Visitor     Visitor    `gorm:"foreignKey:VisitorID;references:ID" json:"visitor,omitempty"`
	Source      string     `gorm:"size:32;not null;index:idx_tracking_sessions_source" json:"source"`
	LandingPath string     `gorm:"type:text;not null" json:"landing_path"`
	PageCount   int        `gorm:"not null;default:1" json:"page_count"`
	StartedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tracking_sessions_started_at" json:"started_at"`
	LastSeenAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tracking_sessions_last_seen_at" json:"last_seen_at"`
	EndedAt     *time.Time `gorm:"index:idx_tracking_sessions_ended_at" json:"ended_at,omitempty"`
}

func (TrackingSession) TableName() string { return "tracking_sessions" }

// IsEnded reports whether the session is ENDED at the given instant,
// either explicitly or by inactivity timeout.
func (s *TrackingSession) IsEnded(now time.Time, timeout time.Duration) bool {
	if s.EndedAt != nil {
		return true
	}
	return now.Sub(s.LastSeenAt) > timeout
}

// IsActive reports whether the session is still ACTIVE at the given instant.
func (s *TrackingSession) IsActive(now time.Time, timeout time.Duration) bool {
	return !s.IsEnded(now, timeout)
}

// TrackingSessionFilter represents filter criteria for session queries
type TrackingSessionFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	VisitorID     *uint
	Source        *string
	StartedAfter  *time.Time
	StartedBefore *time.Time
	SeenAfter     *time.Time
	SeenBefore    *time.Time
	Ended         *bool // explicit ended_at only; timeout-derived state is computed by callers
}
