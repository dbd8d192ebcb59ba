package repository

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackingSessionRepositoryImpl implements TrackingSessionRepository
type TrackingSessionRepositoryImpl struct {
	*BaseRepository[models.TrackingSession, models.TrackingSessionFilter]
}

func NewTrackingSessionRepository(db *gorm.DB) TrackingSessionRepository {
	return &TrackingSessionRepositoryImpl{BaseRepository: NewBaseRepository[models.TrackingSession, models.TrackingSessionFilter](db)}
}

func (r *TrackingSessionRepositoryImpl) ByUUID(ctx context.Context, sessionUUID uuid.UUID) (*models.TrackingSession, error) {
	filter := models.TrackingSessionFilter{UUID: &sessionUUID}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// LatestByVisitor returns the visitor's most recent session regardless of
// state; callers derive ACTIVE/ENDED from timestamps.
func (r *TrackingSessionRepositoryImpl) LatestByVisitor(ctx context.Context, visitorID uint) (*models.TrackingSession, error) {
	filter := models.TrackingSessionFilter{VisitorID: &visitorID}
	rows, err := r.ByFilter(ctx, filter, "started_at DESC, id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// RecordView bumps last_seen_at and page_count in place. Source and
// landing_path are deliberately untouched: they are fixed at session start.
func (r *TrackingSessionRepositoryImpl) RecordView(ctx context.Context, sessionID uint, now time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.TrackingSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"last_seen_at": now,
			"page_count":   gorm.Expr("page_count + 1"),
		}).Error
}

// TouchLastSeen bumps last_seen_at without counting a page view
func (r *TrackingSessionRepositoryImpl) TouchLastSeen(ctx context.Context, sessionID uint, now time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.TrackingSession{}).
		Where("id = ?", sessionID).
		Update("last_seen_at", now).Error
}

// End marks the session explicitly ended. Ending an already-ended session is
// a no-op so duplicate departure beacons stay harmless.
func (r *TrackingSessionRepositoryImpl) End(ctx context.Context, sessionID uint, now time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.TrackingSession{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Update("ended_at", now).Error
}

func (r *TrackingSessionRepositoryImpl) applyFilter(db *gorm.DB, f models.TrackingSessionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.VisitorID != nil {
		db = db.Where("visitor_id = ?", *f.VisitorID)
	}
	if f.Source != nil {
		db = db.Where("source = ?", *f.Source)
	}
	if f.StartedAfter != nil {
		db = db.Where("started_at >= ?", *f.StartedAfter)
	}
	if f.StartedBefore != nil {
		db = db.Where("started_at < ?", *f.StartedBefore)
	}
	if f.SeenAfter != nil {
		db = db.Where("last_seen_at >= ?", *f.SeenAfter)
	}
	if f.SeenBefore != nil {
		db = db.Where("last_seen_at < ?", *f.SeenBefore)
	}
	if f.Ended != nil {
		if *f.Ended {
			db = db.Where("ended_at IS NOT NULL")
		} else {
			db = db.Where("ended_at IS NULL")
		}
	}
	return db
}

func (r *TrackingSessionRepositoryImpl) ByFilter(ctx context.Context, filter models.TrackingSessionFilter, orderBy string, limit, offset int) ([]*models.TrackingSession, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TrackingSession{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.TrackingSession
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TrackingSessionRepositoryImpl) Count(ctx context.Context, filter models.TrackingSessionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TrackingSession{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TrackingSessionRepositoryImpl) Exists(ctx context.Context, filter models.TrackingSessionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
