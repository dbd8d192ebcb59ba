package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/google/uuid"
)

// Engagement event types accepted on the tracking endpoint
const (
	EventScroll     = "scroll"
	EventShare      = "share"
	EventCTAClick   = "cta_click"
	EventTimeOnPage = "time_on_page"
)

// EngagementAggregator folds engagement signals into per-post rolling
// statistics. All increments are row-level atomic so concurrent beacons for
// a popular post never lose updates. Signals for unknown posts are silent
// no-ops: tracking must never break the page.
type EngagementAggregator interface {
	// RecordView counts one post view, counting the visitor as unique at
	// most once per marker TTL.
	RecordView(ctx context.Context, postID uint, visitorToken string) error
	// RecordEvent applies one engagement signal. Scroll checkpoints are
	// idempotent per (session, post, depth) for the marker lifetime, so a
	// re-fired client observer cannot double count.
	RecordEvent(ctx context.Context, event *EngagementEvent) error
}

// EngagementEvent is one engagement signal bound for a post's stats
type EngagementEvent struct {
	PostID      uint
	SessionUUID uuid.UUID
	Type        string
	ScrollDepth int
	Platform    string
	Seconds     float64
}

// EngagementAggregatorImpl implements EngagementAggregator
type EngagementAggregatorImpl struct {
	statRepo  repository.PostEngagementStatRepository
	postRepo  repository.PostRepository
	markers   services.MarkerStore
	analytics config.AnalyticsConfig
}

func NewEngagementAggregator(
	statRepo repository.PostEngagementStatRepository,
	postRepo repository.PostRepository,
	markers services.MarkerStore,
	analytics config.AnalyticsConfig,
) EngagementAggregator {
	return &EngagementAggregatorImpl{
		statRepo:  statRepo,
		postRepo:  postRepo,
		markers:   markers,
		analytics: analytics,
	}
}

func (ea *EngagementAggregatorImpl) RecordView(ctx context.Context, postID uint, visitorToken string) error {
	known, err := ea.postRepo.ExistsByID(ctx, postID)
	if err != nil {
		return NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}
	if !known {
		return nil
	}

	unique := false
	if visitorToken != "" && ea.markers != nil {
		key := fmt.Sprintf("post:%d:visitor:%s", postID, visitorToken)
		first, err := ea.markers.MarkOnce(ctx, key, ea.analytics.UniqueVisitorTTL)
		if err != nil {
			// Unique counting degrades, the view still counts.
			log.Printf("unique visitor marker failed for post %d: %v", postID, err)
		} else {
			unique = first
		}
	}

	if err := ea.statRepo.ApplyView(ctx, postID, unique, utils.UTCNow()); err != nil {
		return NewBusinessError("ENGAGEMENT_VIEW_FAILED", "Failed to count post view", err)
	}
	return nil
}

func (ea *EngagementAggregatorImpl) RecordEvent(ctx context.Context, event *EngagementEvent) error {
	known, err := ea.postRepo.ExistsByID(ctx, event.PostID)
	if err != nil {
		return NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}
	if !known {
		return nil
	}

	now := utils.UTCNow()
	switch event.Type {
	case EventScroll:
		if ea.markers != nil && event.SessionUUID != uuid.Nil {
			// Checkpoint dedup is per session and post: re-reading the same
			// post within one session never re-counts a checkpoint.
			key := fmt.Sprintf("scroll:%s:%d:%d", event.SessionUUID, event.PostID, event.ScrollDepth)
			first, err := ea.markers.MarkOnce(ctx, key, ea.analytics.SessionTimeout)
			if err != nil {
				log.Printf("scroll marker failed for post %d: %v", event.PostID, err)
			} else if !first {
				return nil
			}
		}
		if err := ea.statRepo.ApplyScroll(ctx, event.PostID, event.ScrollDepth, now); err != nil {
			return NewBusinessError("ENGAGEMENT_SCROLL_FAILED", "Failed to count scroll checkpoint", err)
		}
	case EventShare:
		if err := ea.statRepo.ApplyShare(ctx, event.PostID, event.Platform, now); err != nil {
			return NewBusinessError("ENGAGEMENT_SHARE_FAILED", "Failed to count share", err)
		}
	case EventCTAClick:
		if err := ea.statRepo.ApplyCTAClick(ctx, event.PostID, now); err != nil {
			return NewBusinessError("ENGAGEMENT_CTA_FAILED", "Failed to count CTA click", err)
		}
	case EventTimeOnPage:
		if event.Seconds < 0 {
			return nil
		}
		if err := ea.statRepo.ApplyTimeOnPage(ctx, event.PostID, event.Seconds, now); err != nil {
			return NewBusinessError("ENGAGEMENT_TIME_FAILED", "Failed to fold time on page", err)
		}
	default:
		return NewBusinessError("UNKNOWN_EVENT_TYPE", "Unknown engagement event type", ErrUnknownEventType)
	}
	return nil
}

// ComputeEngagementScore derives the 0-100 composite engagement score from a
// post's counters. Pure: no storage access, safe at all-zero counters.
//
// Components: full-read rate (100% scrolls over views), average scroll
// depth, average time on page normalized against the configured target, and
// shares per view normalized against the configured target. Each component
// is clamped to [0,1] before weighting; the weighted mean is scaled to 100.
func ComputeEngagementScore(stat *models.PostEngagementStat, cfg config.ScoreConfig) float64 {
	if stat == nil || stat.TotalViews == 0 {
		return 0
	}

	weightSum := cfg.WeightCompletion + cfg.WeightScroll + cfg.WeightTime + cfg.WeightShares
	if weightSum <= 0 {
		return 0
	}

	views := float64(stat.TotalViews)

	completion := clamp01(float64(stat.Scroll100) / views)
	scroll := clamp01(stat.AvgScrollDepth() / 100)

	timeComponent := 0.0
	if cfg.TimeTargetSeconds > 0 {
		timeComponent = clamp01(stat.AvgTimeOnPage / cfg.TimeTargetSeconds)
	}

	sharesComponent := 0.0
	if cfg.SharesPerViewTarget > 0 {
		sharesComponent = clamp01(float64(stat.TotalShares) / views / cfg.SharesPerViewTarget)
	}

	score := cfg.WeightCompletion*completion +
		cfg.WeightScroll*scroll +
		cfg.WeightTime*timeComponent +
		cfg.WeightShares*sharesComponent

	return 100 * score / weightSum
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
