package models

import "time"

// PostEngagementStat is the per-post rolling engagement aggregate, one row per post.
// Table: post_engagement_stats
// Counters are monotonically non-decreasing except through the administrative
// reset. AvgTimeOnPage is the one stored derivation because the raw samples are
// not kept; it is folded in as a running mean over TimeSamples. Everything else
// derived (scroll depth, engagement rate, score) is recomputed from counters on
// read and never stored.
type PostEngagementStat struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	PostID uint `gorm:"not null;uniqueIndex:uk_post_engagement_stats_post_id" json:"post_id"`

	TotalViews     int64 `gorm:"not null;default:0" json:"total_views"`
	UniqueVisitors int64 `gorm:"not null;default:0" json:"unique_visitors"`

	Scroll25  int64 `gorm:"column:scroll_25_percent;not null;default:0" json:"scroll_25_percent"`
	Scroll50  int64 `gorm:"column:scroll_50_percent;not null;default:0" json:"scroll_50_percent"`
	Scroll75  int64 `gorm:"column:scroll_75_percent;not null;default:0" json:"scroll_75_percent"`
	Scroll100 int64 `gorm:"column:scroll_100_percent;not null;default:0" json:"scroll_100_percent"`

	TotalShares     int64 `gorm:"not null;default:0" json:"total_shares"`
	SharesInstagram int64 `gorm:"not null;default:0" json:"shares_instagram"`
	SharesFacebook  int64 `gorm:"not null;default:0" json:"shares_facebook"`
	SharesTwitter   int64 `gorm:"not null;default:0" json:"shares_twitter"`
	SharesWhatsapp  int64 `gorm:"not null;default:0" json:"shares_whatsapp"`
	SharesCopyLink  int64 `gorm:"not null;default:0" json:"shares_copy_link"`

	CTAClicks int64 `gorm:"column:cta_clicks;not null;default:0" json:"cta_clicks"`

	AvgTimeOnPage float64 `gorm:"not null;default:0" json:"avg_time_on_page"`
	TimeSamples   int64   `gorm:"not null;default:0" json:"time_samples"`

	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PostEngagementStat) TableName() string { return "post_engagement_stats" }

// EngagementRate returns completions over views, where completion means
// reaching the 100% scroll checkpoint. Safe at zero views.
func (s *PostEngagementStat) EngagementRate() float64 {
	if s.TotalViews == 0 {
		return 0
	}
	return float64(s.Scroll100) / float64(s.TotalViews)
}

// AvgScrollDepth reconstructs the mean scroll depth (0-100) from the
// checkpoint counters: every crossed checkpoint contributes 25 points to the
// view that crossed it. Clamped because hostile clients may inflate
// checkpoints past views.
func (s *PostEngagementStat) AvgScrollDepth() float64 {
	if s.TotalViews == 0 {
		return 0
	}
	depth := 25 * float64(s.Scroll25+s.Scroll50+s.Scroll75+s.Scroll100) / float64(s.TotalViews)
	if depth > 100 {
		return 100
	}
	return depth
}

// PostEngagementStatFilter represents filter criteria for engagement stat queries
type PostEngagementStatFilter struct {
	ID            *uint
	PostID        *uint
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
}
