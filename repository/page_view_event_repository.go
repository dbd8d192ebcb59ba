package repository

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"gorm.io/gorm"
)

// PageViewEventRepositoryImpl implements PageViewEventRepository
type PageViewEventRepositoryImpl struct {
	*BaseRepository[models.PageViewEvent, models.PageViewEventFilter]
}

func NewPageViewEventRepository(db *gorm.DB) PageViewEventRepository {
	return &PageViewEventRepositoryImpl{BaseRepository: NewBaseRepository[models.PageViewEvent, models.PageViewEventFilter](db)}
}

// ListBySession returns the session's event log in arrival order.
func (r *PageViewEventRepositoryImpl) ListBySession(ctx context.Context, sessionID uint) ([]*models.PageViewEvent, error) {
	filter := models.PageViewEventFilter{SessionID: &sessionID}
	return r.ByFilter(ctx, filter, "occurred_at ASC, id ASC", 0, 0)
}

func (r *PageViewEventRepositoryImpl) LastBySession(ctx context.Context, sessionID uint) (*models.PageViewEvent, error) {
	filter := models.PageViewEventFilter{SessionID: &sessionID}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *PageViewEventRepositoryImpl) CountsBySourceSince(ctx context.Context, since time.Time) ([]SourceCount, error) {
	db := r.getDB(ctx)
	var results []SourceCount
	err := db.Model(&models.PageViewEvent{}).
		Select("source, COUNT(*) AS count").
		Where("occurred_at >= ?", since).
		Group("source").
		Order("count DESC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// TopOtherReferrersSince ranks raw referrers among events attributed to
// "other", so operators can see which unclassified sites send traffic.
func (r *PageViewEventRepositoryImpl) TopOtherReferrersSince(ctx context.Context, since time.Time, limit int) ([]ReferrerCount, error) {
	db := r.getDB(ctx)
	if limit <= 0 {
		limit = 10
	}
	var results []ReferrerCount
	err := db.Model(&models.PageViewEvent{}).
		Select("referrer, COUNT(*) AS count").
		Where("occurred_at >= ? AND source = ? AND referrer IS NOT NULL AND referrer <> ''", since, "other").
		Group("referrer").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *PageViewEventRepositoryImpl) DailyTrafficSince(ctx context.Context, since time.Time) ([]DailyTraffic, error) {
	db := r.getDB(ctx)
	var results []DailyTraffic
	err := db.Raw(`
        SELECT
            date_trunc('day', e.occurred_at) AS day,
            COUNT(*) AS views,
            COUNT(DISTINCT s.visitor_id) AS visitors
        FROM page_view_events e
        JOIN tracking_sessions s ON s.id = e.session_id
        WHERE e.occurred_at >= ?
        GROUP BY 1
        ORDER BY 1 ASC
    `, since).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *PageViewEventRepositoryImpl) applyFilter(db *gorm.DB, f models.PageViewEventFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SessionID != nil {
		db = db.Where("session_id = ?", *f.SessionID)
	}
	if f.Source != nil {
		db = db.Where("source = ?", *f.Source)
	}
	if f.Path != nil {
		db = db.Where("path = ?", *f.Path)
	}
	if f.Referrer != nil {
		db = db.Where("referrer ILIKE ?", "%"+*f.Referrer+"%")
	}
	if f.OccurredAfter != nil {
		db = db.Where("occurred_at >= ?", *f.OccurredAfter)
	}
	if f.OccurredBefore != nil {
		db = db.Where("occurred_at < ?", *f.OccurredBefore)
	}
	return db
}

func (r *PageViewEventRepositoryImpl) ByFilter(ctx context.Context, filter models.PageViewEventFilter, orderBy string, limit, offset int) ([]*models.PageViewEvent, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PageViewEvent{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PageViewEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PageViewEventRepositoryImpl) Count(ctx context.Context, filter models.PageViewEventFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PageViewEvent{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PageViewEventRepositoryImpl) Exists(ctx context.Context, filter models.PageViewEventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
