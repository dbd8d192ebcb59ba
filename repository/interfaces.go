// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// VisitorRepository defines operations for anonymous visitor identities
type VisitorRepository interface {
	Repository[models.Visitor, models.VisitorFilter]
	ByToken(ctx context.Context, token string) (*models.Visitor, error)
	// UpsertByToken inserts a visitor keyed by token or, when the token already
	// exists (including losing a concurrent-creation race), fetches the
	// existing row. The boolean reports whether a new row was created.
	UpsertByToken(ctx context.Context, token, firstSource string, now time.Time) (*models.Visitor, bool, error)
	TouchLastSeen(ctx context.Context, visitorID uint, now time.Time) error
	CountsByFirstSource(ctx context.Context) ([]SourceCount, error)
}

// TrackingSessionRepository defines operations for visit sessions
type TrackingSessionRepository interface {
	Repository[models.TrackingSession, models.TrackingSessionFilter]
	ByUUID(ctx context.Context, sessionUUID uuid.UUID) (*models.TrackingSession, error)
	LatestByVisitor(ctx context.Context, visitorID uint) (*models.TrackingSession, error)
	// RecordView bumps last_seen_at and page_count in place.
	RecordView(ctx context.Context, sessionID uint, now time.Time) error
	// TouchLastSeen bumps last_seen_at only, used for deduped beacons.
	TouchLastSeen(ctx context.Context, sessionID uint, now time.Time) error
	End(ctx context.Context, sessionID uint, now time.Time) error
}

// SourceCount is an aggregate bucket of page views per traffic source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// ReferrerCount ranks raw referrers within the "other" source bucket.
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

// DailyTraffic is one day of the traffic timeline.
type DailyTraffic struct {
	Day      time.Time `json:"day"`
	Views    int64     `json:"views"`
	Visitors int64     `json:"visitors"`
}

// PageViewEventRepository defines operations for the append-only beacon log
type PageViewEventRepository interface {
	Repository[models.PageViewEvent, models.PageViewEventFilter]
	ListBySession(ctx context.Context, sessionID uint) ([]*models.PageViewEvent, error)
	LastBySession(ctx context.Context, sessionID uint) (*models.PageViewEvent, error)
	CountsBySourceSince(ctx context.Context, since time.Time) ([]SourceCount, error)
	TopOtherReferrersSince(ctx context.Context, since time.Time, limit int) ([]ReferrerCount, error)
	DailyTrafficSince(ctx context.Context, since time.Time) ([]DailyTraffic, error)
}

// PostEngagementStatRepository defines operations for per-post rolling aggregates.
// All Apply* methods are row-level atomic increments (upsert keyed by post_id),
// safe under concurrent beacons for the same post.
type PostEngagementStatRepository interface {
	Repository[models.PostEngagementStat, models.PostEngagementStatFilter]
	ByPostID(ctx context.Context, postID uint) (*models.PostEngagementStat, error)
	ApplyView(ctx context.Context, postID uint, uniqueVisitor bool, now time.Time) error
	ApplyScroll(ctx context.Context, postID uint, depth int, now time.Time) error
	ApplyShare(ctx context.Context, postID uint, platform string, now time.Time) error
	ApplyCTAClick(ctx context.Context, postID uint, now time.Time) error
	ApplyTimeOnPage(ctx context.Context, postID uint, seconds float64, now time.Time) error
	Reset(ctx context.Context, postID uint, now time.Time) error
	ListAll(ctx context.Context) ([]*models.PostEngagementStat, error)
}

// PostRepository exposes the slim read-only view of CMS posts the pipeline needs
type PostRepository interface {
	Repository[models.Post, models.PostFilter]
	BySlug(ctx context.Context, slug string) (*models.Post, error)
	ExistsByID(ctx context.Context, id uint) (bool, error)
}

// AdminRepository defines operations for operator accounts behind the admin gate
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	ByEmail(ctx context.Context, email string) (*models.Admin, error)
	UpdateLastLogin(ctx context.Context, adminID uint, at time.Time) error
}
