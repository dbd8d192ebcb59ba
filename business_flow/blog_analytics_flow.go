package businessflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
)

// BlogAnalyticsFlow serves the per-post side of the dashboard: engagement
// stats and scores, the scroll-depth funnel, the audience breakdown, and the
// operator's stat reset.
type BlogAnalyticsFlow interface {
	PostAnalytics(ctx context.Context, postID uint) (*dto.PostAnalyticsDTO, error)
	ListPosts(ctx context.Context) (*dto.BlogAnalyticsListResponse, error)
	Heatmap(ctx context.Context, postID uint) (*dto.PostHeatmapResponse, error)
	Audience(ctx context.Context) (*dto.AudienceResponse, error)
	// ResetStats zeroes a post's counters. The change must be visible on
	// the next read, so it invalidates the affected cache topics.
	ResetStats(ctx context.Context, postID uint) error
}

// BlogAnalyticsFlowImpl implements BlogAnalyticsFlow
type BlogAnalyticsFlowImpl struct {
	statRepo    repository.PostEngagementStatRepository
	postRepo    repository.PostRepository
	visitorRepo repository.VisitorRepository
	cache       services.AnalyticsCache
	analytics   config.AnalyticsConfig
}

func NewBlogAnalyticsFlow(
	statRepo repository.PostEngagementStatRepository,
	postRepo repository.PostRepository,
	visitorRepo repository.VisitorRepository,
	cache services.AnalyticsCache,
	analytics config.AnalyticsConfig,
) BlogAnalyticsFlow {
	return &BlogAnalyticsFlowImpl{
		statRepo:    statRepo,
		postRepo:    postRepo,
		visitorRepo: visitorRepo,
		cache:       cache,
		analytics:   analytics,
	}
}

func (f *BlogAnalyticsFlowImpl) PostAnalytics(ctx context.Context, postID uint) (*dto.PostAnalyticsDTO, error) {
	known, err := f.postRepo.ExistsByID(ctx, postID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}
	if !known {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	var resp dto.PostAnalyticsDTO
	key := fmt.Sprintf("post:%d:analytics", postID)
	err = f.cache.GetOrCompute(ctx, key, f.analytics.CacheTTL, &resp, func() (any, error) {
		stat, err := f.statRepo.ByPostID(ctx, postID)
		if err != nil {
			return nil, NewBusinessError("STAT_LOOKUP_FAILED", "Failed to load post stats", err)
		}
		if stat == nil {
			// A post nobody viewed yet still has an analytics page.
			stat = &models.PostEngagementStat{PostID: postID}
		}
		return f.toPostAnalyticsDTO(stat), nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *BlogAnalyticsFlowImpl) ListPosts(ctx context.Context) (*dto.BlogAnalyticsListResponse, error) {
	var resp dto.BlogAnalyticsListResponse
	err := f.cache.GetOrCompute(ctx, "dashboard:posts", f.analytics.CacheTTL, &resp, func() (any, error) {
		stats, err := f.statRepo.ListAll(ctx)
		if err != nil {
			return nil, NewBusinessError("STAT_LIST_FAILED", "Failed to list post stats", err)
		}

		posts := make([]dto.PostAnalyticsDTO, 0, len(stats))
		for _, stat := range stats {
			posts = append(posts, *f.toPostAnalyticsDTO(stat))
		}
		sort.Slice(posts, func(i, j int) bool {
			return posts[i].EngagementScore > posts[j].EngagementScore
		})
		return &dto.BlogAnalyticsListResponse{Posts: posts}, nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *BlogAnalyticsFlowImpl) Heatmap(ctx context.Context, postID uint) (*dto.PostHeatmapResponse, error) {
	known, err := f.postRepo.ExistsByID(ctx, postID)
	if err != nil {
		return nil, NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}
	if !known {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	var resp dto.PostHeatmapResponse
	key := fmt.Sprintf("post:%d:heatmap", postID)
	err = f.cache.GetOrCompute(ctx, key, f.analytics.CacheTTL, &resp, func() (any, error) {
		stat, err := f.statRepo.ByPostID(ctx, postID)
		if err != nil {
			return nil, NewBusinessError("STAT_LOOKUP_FAILED", "Failed to load post stats", err)
		}
		if stat == nil {
			stat = &models.PostEngagementStat{PostID: postID}
		}

		checkpoints := []dto.ScrollCheckpointDTO{
			{Depth: 25, Count: stat.Scroll25},
			{Depth: 50, Count: stat.Scroll50},
			{Depth: 75, Count: stat.Scroll75},
			{Depth: 100, Count: stat.Scroll100},
		}
		for i := range checkpoints {
			if stat.TotalViews > 0 {
				checkpoints[i].Percent = 100 * float64(checkpoints[i].Count) / float64(stat.TotalViews)
			}
		}
		return &dto.PostHeatmapResponse{
			PostID:      postID,
			TotalViews:  stat.TotalViews,
			Checkpoints: checkpoints,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *BlogAnalyticsFlowImpl) Audience(ctx context.Context) (*dto.AudienceResponse, error) {
	var resp dto.AudienceResponse
	err := f.cache.GetOrCompute(ctx, "dashboard:audience", f.analytics.CacheTTL, &resp, func() (any, error) {
		total, err := f.visitorRepo.Count(ctx, models.VisitorFilter{})
		if err != nil {
			return nil, NewBusinessError("AUDIENCE_FAILED", "Failed to count visitors", err)
		}

		since := utils.UTCNow().AddDate(0, 0, -30)
		recent, err := f.visitorRepo.Count(ctx, models.VisitorFilter{CreatedAfter: &since})
		if err != nil {
			return nil, NewBusinessError("AUDIENCE_FAILED", "Failed to count recent visitors", err)
		}

		bySource, err := f.visitorRepo.CountsByFirstSource(ctx)
		if err != nil {
			return nil, NewBusinessError("AUDIENCE_FAILED", "Failed to bucket visitors by first source", err)
		}

		sources := make([]dto.AudienceSourceDTO, 0, len(bySource))
		for _, s := range bySource {
			percent := 0.0
			if total > 0 {
				percent = 100 * float64(s.Count) / float64(total)
			}
			sources = append(sources, dto.AudienceSourceDTO{Source: s.Source, Count: s.Count, Percent: percent})
		}

		return &dto.AudienceResponse{
			TotalVisitors: total,
			NewLast30Days: recent,
			ByFirstSource: sources,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *BlogAnalyticsFlowImpl) ResetStats(ctx context.Context, postID uint) error {
	known, err := f.postRepo.ExistsByID(ctx, postID)
	if err != nil {
		return NewBusinessError("POST_LOOKUP_FAILED", "Failed to lookup post", err)
	}
	if !known {
		return NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	if err := f.statRepo.Reset(ctx, postID, utils.UTCNow()); err != nil {
		return NewBusinessError("STAT_RESET_FAILED", "Failed to reset post stats", err)
	}

	f.cache.Invalidate(ctx, fmt.Sprintf("post:%d:*", postID), "dashboard:*")
	return nil
}

func (f *BlogAnalyticsFlowImpl) toPostAnalyticsDTO(stat *models.PostEngagementStat) *dto.PostAnalyticsDTO {
	out := &dto.PostAnalyticsDTO{
		PostID:          stat.PostID,
		TotalViews:      stat.TotalViews,
		UniqueVisitors:  stat.UniqueVisitors,
		Scroll25:        stat.Scroll25,
		Scroll50:        stat.Scroll50,
		Scroll75:        stat.Scroll75,
		Scroll100:       stat.Scroll100,
		TotalShares:     stat.TotalShares,
		CTAClicks:       stat.CTAClicks,
		AvgTimeOnPage:   stat.AvgTimeOnPage,
		AvgScrollDepth:  stat.AvgScrollDepth(),
		EngagementRate:  stat.EngagementRate(),
		EngagementScore: ComputeEngagementScore(stat, f.analytics.Score),
		Shares: dto.ShareBreakdownDTO{
			Instagram: stat.SharesInstagram,
			Facebook:  stat.SharesFacebook,
			Twitter:   stat.SharesTwitter,
			Whatsapp:  stat.SharesWhatsapp,
			CopyLink:  stat.SharesCopyLink,
		},
	}
	if !stat.UpdatedAt.IsZero() {
		out.UpdatedAt = stat.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
