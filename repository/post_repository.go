package repository

import (
	"context"

	"github.com/Munim94s/peakself-backend/models"
	"gorm.io/gorm"
)

// PostRepositoryImpl implements PostRepository. The analytics pipeline never
// writes posts; the CMS owns them.
type PostRepositoryImpl struct {
	*BaseRepository[models.Post, models.PostFilter]
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &PostRepositoryImpl{BaseRepository: NewBaseRepository[models.Post, models.PostFilter](db)}
}

func (r *PostRepositoryImpl) BySlug(ctx context.Context, slug string) (*models.Post, error) {
	filter := models.PostFilter{Slug: &slug}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *PostRepositoryImpl) ExistsByID(ctx context.Context, id uint) (bool, error) {
	return r.Exists(ctx, models.PostFilter{ID: &id})
}

func (r *PostRepositoryImpl) applyFilter(db *gorm.DB, f models.PostFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Slug != nil {
		db = db.Where("slug = ?", *f.Slug)
	}
	if f.Published != nil {
		if *f.Published {
			db = db.Where("published_at IS NOT NULL")
		} else {
			db = db.Where("published_at IS NULL")
		}
	}
	return db
}

func (r *PostRepositoryImpl) ByFilter(ctx context.Context, filter models.PostFilter, orderBy string, limit, offset int) ([]*models.Post, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Post{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Post
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostRepositoryImpl) Count(ctx context.Context, filter models.PostFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Post{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostRepositoryImpl) Exists(ctx context.Context, filter models.PostFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
