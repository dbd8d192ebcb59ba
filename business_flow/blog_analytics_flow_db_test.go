package businessflow

import (
	"context"
	"testing"

	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	apptesting "github.com/Munim94s/peakself-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBlogAnalyticsFlow(testDB *apptesting.TestDB) BlogAnalyticsFlow {
	return NewBlogAnalyticsFlow(
		repository.NewPostEngagementStatRepository(testDB.DB),
		repository.NewPostRepository(testDB.DB),
		repository.NewVisitorRepository(testDB.DB),
		services.NewRedisAnalyticsCache(nil, "", false),
		analyticsTestConfig(),
	)
}

func TestBlogAnalytics_PostAnalytics(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("deep-work")
	require.NoError(t, err)

	stat, err := fixtures.CreateTestStat(post.ID, 100, 60)
	require.NoError(t, err)
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).
		Where("id = ?", stat.ID).
		Updates(map[string]any{
			"scroll_25_percent":  80,
			"scroll_50_percent":  60,
			"scroll_75_percent":  40,
			"scroll_100_percent": 20,
			"total_shares":       5,
			"shares_whatsapp":    5,
			"avg_time_on_page":   90.0,
			"time_samples":       50,
		}).Error)

	resp, err := flow.PostAnalytics(ctx, post.ID)
	require.NoError(t, err)

	assert.Equal(t, post.ID, resp.PostID)
	assert.Equal(t, int64(100), resp.TotalViews)
	assert.Equal(t, int64(60), resp.UniqueVisitors)
	assert.Equal(t, int64(5), resp.Shares.Whatsapp)
	assert.InDelta(t, 50.0, resp.AvgScrollDepth, 0.001)
	assert.InDelta(t, 0.2, resp.EngagementRate, 0.001)
	assert.Greater(t, resp.EngagementScore, 0.0)
	assert.LessOrEqual(t, resp.EngagementScore, 100.0)
}

func TestBlogAnalytics_UnviewedPostHasZeroStats(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("fresh")
	require.NoError(t, err)

	resp, err := flow.PostAnalytics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, resp.PostID)
	assert.Equal(t, int64(0), resp.TotalViews)
	assert.Equal(t, 0.0, resp.EngagementScore)
}

func TestBlogAnalytics_UnknownPost(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	resp, err := flow.PostAnalytics(ctx, 424242)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsPostNotFound(err))

	_, err = flow.Heatmap(ctx, 424242)
	require.Error(t, err)
	assert.True(t, IsPostNotFound(err))

	err = flow.ResetStats(ctx, 424242)
	require.Error(t, err)
	assert.True(t, IsPostNotFound(err))
}

func TestBlogAnalytics_ListRanksByScore(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	dull, err := fixtures.CreateTestPost("dull")
	require.NoError(t, err)
	_, err = fixtures.CreateTestStat(dull.ID, 100, 50)
	require.NoError(t, err)

	hit, err := fixtures.CreateTestPost("hit")
	require.NoError(t, err)
	hitStat, err := fixtures.CreateTestStat(hit.ID, 100, 80)
	require.NoError(t, err)
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).
		Where("id = ?", hitStat.ID).
		Updates(map[string]any{
			"scroll_100_percent": 90,
			"total_shares":       10,
			"avg_time_on_page":   170.0,
			"time_samples":       80,
		}).Error)

	resp, err := flow.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Posts, 2)
	assert.Equal(t, hit.ID, resp.Posts[0].PostID)
	assert.Equal(t, dull.ID, resp.Posts[1].PostID)
	assert.Greater(t, resp.Posts[0].EngagementScore, resp.Posts[1].EngagementScore)
}

func TestBlogAnalytics_Heatmap(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("funnel")
	require.NoError(t, err)
	stat, err := fixtures.CreateTestStat(post.ID, 200, 120)
	require.NoError(t, err)
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).
		Where("id = ?", stat.ID).
		Updates(map[string]any{
			"scroll_25_percent":  150,
			"scroll_50_percent":  100,
			"scroll_75_percent":  50,
			"scroll_100_percent": 20,
		}).Error)

	resp, err := flow.Heatmap(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), resp.TotalViews)
	require.Len(t, resp.Checkpoints, 4)

	assert.Equal(t, 25, resp.Checkpoints[0].Depth)
	assert.Equal(t, int64(150), resp.Checkpoints[0].Count)
	assert.InDelta(t, 75.0, resp.Checkpoints[0].Percent, 0.001)
	assert.Equal(t, 100, resp.Checkpoints[3].Depth)
	assert.InDelta(t, 10.0, resp.Checkpoints[3].Percent, 0.001)
}

func TestBlogAnalytics_Audience(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	for _, source := range []string{"instagram", "instagram", "google", "direct"} {
		_, err := fixtures.CreateTestVisitor(source)
		require.NoError(t, err)
	}

	resp, err := flow.Audience(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.TotalVisitors)
	assert.Equal(t, int64(4), resp.NewLast30Days)

	bySource := map[string]int64{}
	for _, s := range resp.ByFirstSource {
		bySource[s.Source] = s.Count
	}
	assert.Equal(t, int64(2), bySource["instagram"])
	assert.Equal(t, int64(1), bySource["google"])
	assert.Equal(t, int64(1), bySource["direct"])
}

func TestBlogAnalytics_ResetStats(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newBlogAnalyticsFlow(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("reset-me")
	require.NoError(t, err)
	stat, err := fixtures.CreateTestStat(post.ID, 500, 300)
	require.NoError(t, err)
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).
		Where("id = ?", stat.ID).
		Updates(map[string]any{"total_shares": 40, "cta_clicks": 12}).Error)

	require.NoError(t, flow.ResetStats(ctx, post.ID))

	var stored models.PostEngagementStat
	require.NoError(t, testDB.DB.Where("post_id = ?", post.ID).First(&stored).Error)
	assert.Equal(t, int64(0), stored.TotalViews)
	assert.Equal(t, int64(0), stored.UniqueVisitors)
	assert.Equal(t, int64(0), stored.TotalShares)
	assert.Equal(t, int64(0), stored.CTAClicks)

	// The analytics read now reflects the reset.
	resp, err := flow.PostAnalytics(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.TotalViews)
	assert.Equal(t, 0.0, resp.EngagementScore)
}
