package businessflow

import (
	"context"
	"testing"

	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	apptesting "github.com/Munim94s/peakself-backend/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngagementAggregator(testDB *apptesting.TestDB) EngagementAggregator {
	return NewEngagementAggregator(
		repository.NewPostEngagementStatRepository(testDB.DB),
		repository.NewPostRepository(testDB.DB),
		services.NewMemoryMarkerStore(),
		analyticsTestConfig(),
	)
}

func loadStat(t *testing.T, testDB *apptesting.TestDB, postID uint) *models.PostEngagementStat {
	t.Helper()
	var stat models.PostEngagementStat
	require.NoError(t, testDB.DB.Where("post_id = ?", postID).First(&stat).Error)
	return &stat
}

func TestAggregator_ViewCountsUniqueOncePerVisitor(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("deep-work")
	require.NoError(t, err)

	token, err := apptesting.RandomVisitorToken()
	require.NoError(t, err)

	require.NoError(t, aggregator.RecordView(ctx, post.ID, token))
	require.NoError(t, aggregator.RecordView(ctx, post.ID, token))

	other, err := apptesting.RandomVisitorToken()
	require.NoError(t, err)
	require.NoError(t, aggregator.RecordView(ctx, post.ID, other))

	stat := loadStat(t, testDB, post.ID)
	assert.Equal(t, int64(3), stat.TotalViews)
	assert.Equal(t, int64(2), stat.UniqueVisitors)
}

func TestAggregator_UnknownPostIsSilentNoop(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	require.NoError(t, aggregator.RecordView(ctx, 9999, "token"))
	require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
		PostID: 9999,
		Type:   EventShare,
	}))

	var count int64
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAggregator_ScrollCheckpointIdempotentPerSession(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("atomic-habits")
	require.NoError(t, err)

	sessionUUID := uuid.New()

	// The client scroll observer can re-fire at the same depth; only the
	// first crossing per session counts.
	for i := 0; i < 3; i++ {
		require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
			PostID:      post.ID,
			SessionUUID: sessionUUID,
			Type:        EventScroll,
			ScrollDepth: 50,
		}))
	}

	// A different depth in the same session still counts.
	require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
		PostID:      post.ID,
		SessionUUID: sessionUUID,
		Type:        EventScroll,
		ScrollDepth: 75,
	}))

	// The same depth from another session counts too.
	require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
		PostID:      post.ID,
		SessionUUID: uuid.New(),
		Type:        EventScroll,
		ScrollDepth: 50,
	}))

	stat := loadStat(t, testDB, post.ID)
	assert.Equal(t, int64(2), stat.Scroll50)
	assert.Equal(t, int64(1), stat.Scroll75)
}

func TestAggregator_ShareBreakdownByPlatform(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("habit-stacking")
	require.NoError(t, err)

	for _, platform := range []string{"instagram", "instagram", "whatsapp", "copy_link"} {
		require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
			PostID:   post.ID,
			Type:     EventShare,
			Platform: platform,
		}))
	}

	stat := loadStat(t, testDB, post.ID)
	assert.Equal(t, int64(4), stat.TotalShares)
	assert.Equal(t, int64(2), stat.SharesInstagram)
	assert.Equal(t, int64(1), stat.SharesWhatsapp)
	assert.Equal(t, int64(1), stat.SharesCopyLink)
	assert.Equal(t, int64(0), stat.SharesFacebook)
}

func TestAggregator_TimeOnPageRunningMean(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("morning-routine")
	require.NoError(t, err)

	for _, seconds := range []float64{60, 120, 180} {
		require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
			PostID:  post.ID,
			Type:    EventTimeOnPage,
			Seconds: seconds,
		}))
	}

	stat := loadStat(t, testDB, post.ID)
	assert.Equal(t, int64(3), stat.TimeSamples)
	assert.InDelta(t, 120.0, stat.AvgTimeOnPage, 0.001)
}

func TestAggregator_NegativeTimeIsIgnored(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("focus")
	require.NoError(t, err)

	require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{
		PostID:  post.ID,
		Type:    EventTimeOnPage,
		Seconds: -5,
	}))

	var count int64
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAggregator_CTAClicks(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("newsletter")
	require.NoError(t, err)

	require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{PostID: post.ID, Type: EventCTAClick}))
	require.NoError(t, aggregator.RecordEvent(ctx, &EngagementEvent{PostID: post.ID, Type: EventCTAClick}))

	stat := loadStat(t, testDB, post.ID)
	assert.Equal(t, int64(2), stat.CTAClicks)
}

func TestAggregator_UnknownEventTypeIsRejected(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	aggregator := newEngagementAggregator(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("any")
	require.NoError(t, err)

	err = aggregator.RecordEvent(ctx, &EngagementEvent{PostID: post.ID, Type: "hover"})
	require.Error(t, err)
	assert.True(t, IsUnknownEventType(err))
}
