package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostEngagementStatRepositoryImpl implements PostEngagementStatRepository.
// Every Apply* method is an upsert keyed by post_id whose update branch uses
// SQL-side increments, so concurrent beacons for the same post never lose
// updates to read-modify-write races.
type PostEngagementStatRepositoryImpl struct {
	*BaseRepository[models.PostEngagementStat, models.PostEngagementStatFilter]
}

func NewPostEngagementStatRepository(db *gorm.DB) PostEngagementStatRepository {
	return &PostEngagementStatRepositoryImpl{BaseRepository: NewBaseRepository[models.PostEngagementStat, models.PostEngagementStatFilter](db)}
}

func (r *PostEngagementStatRepositoryImpl) ByPostID(ctx context.Context, postID uint) (*models.PostEngagementStat, error) {
	filter := models.PostEngagementStatFilter{PostID: &postID}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// upsert inserts the seed row for a post's first event or applies the
// increment assignments to the existing row.
func (r *PostEngagementStatRepositoryImpl) upsert(ctx context.Context, seed *models.PostEngagementStat, updates map[string]any, now time.Time) error {
	db := r.getDB(ctx)
	seed.UpdatedAt = now
	updates["updated_at"] = now
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(seed).Error
}

func (r *PostEngagementStatRepositoryImpl) ApplyView(ctx context.Context, postID uint, uniqueVisitor bool, now time.Time) error {
	seed := &models.PostEngagementStat{PostID: postID, TotalViews: 1}
	updates := map[string]any{
		"total_views": gorm.Expr("post_engagement_stats.total_views + 1"),
	}
	if uniqueVisitor {
		seed.UniqueVisitors = 1
		updates["unique_visitors"] = gorm.Expr("post_engagement_stats.unique_visitors + 1")
	}
	return r.upsert(ctx, seed, updates, now)
}

func (r *PostEngagementStatRepositoryImpl) ApplyScroll(ctx context.Context, postID uint, depth int, now time.Time) error {
	var column string
	switch depth {
	case 25:
		column = "scroll_25_percent"
	case 50:
		column = "scroll_50_percent"
	case 75:
		column = "scroll_75_percent"
	case 100:
		column = "scroll_100_percent"
	default:
		return fmt.Errorf("unsupported scroll depth: %d", depth)
	}

	seed := &models.PostEngagementStat{PostID: postID}
	switch depth {
	case 25:
		seed.Scroll25 = 1
	case 50:
		seed.Scroll50 = 1
	case 75:
		seed.Scroll75 = 1
	case 100:
		seed.Scroll100 = 1
	}
	updates := map[string]any{
		column: gorm.Expr(fmt.Sprintf("post_engagement_stats.%s + 1", column)),
	}
	return r.upsert(ctx, seed, updates, now)
}

func (r *PostEngagementStatRepositoryImpl) ApplyShare(ctx context.Context, postID uint, platform string, now time.Time) error {
	seed := &models.PostEngagementStat{PostID: postID, TotalShares: 1}
	updates := map[string]any{
		"total_shares": gorm.Expr("post_engagement_stats.total_shares + 1"),
	}
	switch platform {
	case "instagram":
		seed.SharesInstagram = 1
		updates["shares_instagram"] = gorm.Expr("post_engagement_stats.shares_instagram + 1")
	case "facebook":
		seed.SharesFacebook = 1
		updates["shares_facebook"] = gorm.Expr("post_engagement_stats.shares_facebook + 1")
	case "twitter":
		seed.SharesTwitter = 1
		updates["shares_twitter"] = gorm.Expr("post_engagement_stats.shares_twitter + 1")
	case "whatsapp":
		seed.SharesWhatsapp = 1
		updates["shares_whatsapp"] = gorm.Expr("post_engagement_stats.shares_whatsapp + 1")
	case "copy_link":
		seed.SharesCopyLink = 1
		updates["shares_copy_link"] = gorm.Expr("post_engagement_stats.shares_copy_link + 1")
	}
	return r.upsert(ctx, seed, updates, now)
}

func (r *PostEngagementStatRepositoryImpl) ApplyCTAClick(ctx context.Context, postID uint, now time.Time) error {
	seed := &models.PostEngagementStat{PostID: postID, CTAClicks: 1}
	updates := map[string]any{
		"cta_clicks": gorm.Expr("post_engagement_stats.cta_clicks + 1"),
	}
	return r.upsert(ctx, seed, updates, now)
}

// ApplyTimeOnPage folds one dwell-time sample into the stored running mean:
// avg' = (avg*n + sample) / (n+1), computed inside the database so concurrent
// samples serialize on the row.
func (r *PostEngagementStatRepositoryImpl) ApplyTimeOnPage(ctx context.Context, postID uint, seconds float64, now time.Time) error {
	seed := &models.PostEngagementStat{PostID: postID, AvgTimeOnPage: seconds, TimeSamples: 1}
	updates := map[string]any{
		"avg_time_on_page": gorm.Expr(
			"(post_engagement_stats.avg_time_on_page * post_engagement_stats.time_samples + ?) / (post_engagement_stats.time_samples + 1)",
			seconds,
		),
		"time_samples": gorm.Expr("post_engagement_stats.time_samples + 1"),
	}
	return r.upsert(ctx, seed, updates, now)
}

// Reset zeroes every counter for a post. The administrative exception to
// counter monotonicity.
func (r *PostEngagementStatRepositoryImpl) Reset(ctx context.Context, postID uint, now time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.PostEngagementStat{}).
		Where("post_id = ?", postID).
		Updates(map[string]any{
			"total_views":        0,
			"unique_visitors":    0,
			"scroll_25_percent":  0,
			"scroll_50_percent":  0,
			"scroll_75_percent":  0,
			"scroll_100_percent": 0,
			"total_shares":       0,
			"shares_instagram":   0,
			"shares_facebook":    0,
			"shares_twitter":     0,
			"shares_whatsapp":    0,
			"shares_copy_link":   0,
			"cta_clicks":         0,
			"avg_time_on_page":   0,
			"time_samples":       0,
			"updated_at":         now,
		}).Error
}

func (r *PostEngagementStatRepositoryImpl) ListAll(ctx context.Context) ([]*models.PostEngagementStat, error) {
	return r.ByFilter(ctx, models.PostEngagementStatFilter{}, "post_id ASC", 0, 0)
}

func (r *PostEngagementStatRepositoryImpl) applyFilter(db *gorm.DB, f models.PostEngagementStatFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.PostID != nil {
		db = db.Where("post_id = ?", *f.PostID)
	}
	if f.UpdatedAfter != nil {
		db = db.Where("updated_at >= ?", *f.UpdatedAfter)
	}
	if f.UpdatedBefore != nil {
		db = db.Where("updated_at < ?", *f.UpdatedBefore)
	}
	return db
}

func (r *PostEngagementStatRepositoryImpl) ByFilter(ctx context.Context, filter models.PostEngagementStatFilter, orderBy string, limit, offset int) ([]*models.PostEngagementStat, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PostEngagementStat{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PostEngagementStat
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostEngagementStatRepositoryImpl) Count(ctx context.Context, filter models.PostEngagementStatFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PostEngagementStat{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostEngagementStatRepositoryImpl) Exists(ctx context.Context, filter models.PostEngagementStatFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
