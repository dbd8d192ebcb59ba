package repository

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VisitorRepositoryImpl implements VisitorRepository
type VisitorRepositoryImpl struct {
	*BaseRepository[models.Visitor, models.VisitorFilter]
}

func NewVisitorRepository(db *gorm.DB) VisitorRepository {
	return &VisitorRepositoryImpl{BaseRepository: NewBaseRepository[models.Visitor, models.VisitorFilter](db)}
}

func (r *VisitorRepositoryImpl) ByToken(ctx context.Context, token string) (*models.Visitor, error) {
	filter := models.VisitorFilter{Token: &token}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpsertByToken creates the visitor row if the token is unseen, otherwise
// returns the existing row untouched. The insert races with concurrent
// first-contact beacons for the same token: ON CONFLICT DO NOTHING makes the
// loser's insert a no-op, after which it refetches the winner's row instead
// of erroring. first_source is only ever written by the winning insert.
func (r *VisitorRepositoryImpl) UpsertByToken(ctx context.Context, token, firstSource string, now time.Time) (*models.Visitor, bool, error) {
	db := r.getDB(ctx)

	visitor := models.Visitor{
		Token:       token,
		FirstSource: firstSource,
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoNothing: true,
	}).Create(&visitor)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return &visitor, true, nil
	}

	existing, err := r.ByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *VisitorRepositoryImpl) TouchLastSeen(ctx context.Context, visitorID uint, now time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Visitor{}).
		Where("id = ?", visitorID).
		Update("last_seen_at", now).Error
}

// CountsByFirstSource buckets the whole visitor base by first-touch attribution
func (r *VisitorRepositoryImpl) CountsByFirstSource(ctx context.Context) ([]SourceCount, error) {
	db := r.getDB(ctx)
	var rows []SourceCount
	err := db.Model(&models.Visitor{}).
		Select("first_source AS source, COUNT(*) AS count").
		Group("first_source").
		Order("count DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *VisitorRepositoryImpl) applyFilter(db *gorm.DB, f models.VisitorFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Token != nil {
		db = db.Where("token = ?", *f.Token)
	}
	if f.FirstSource != nil {
		db = db.Where("first_source = ?", *f.FirstSource)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.SeenAfter != nil {
		db = db.Where("last_seen_at >= ?", *f.SeenAfter)
	}
	if f.SeenBefore != nil {
		db = db.Where("last_seen_at < ?", *f.SeenBefore)
	}
	return db
}

func (r *VisitorRepositoryImpl) ByFilter(ctx context.Context, filter models.VisitorFilter, orderBy string, limit, offset int) ([]*models.Visitor, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Visitor{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Visitor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *VisitorRepositoryImpl) Count(ctx context.Context, filter models.VisitorFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Visitor{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *VisitorRepositoryImpl) Exists(ctx context.Context, filter models.VisitorFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
