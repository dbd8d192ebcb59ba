package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	apptesting "github.com/Munim94s/peakself-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupAnalyticsDB provisions a throwaway database for flow tests, skipping
// when no PostgreSQL server is reachable.
func setupAnalyticsDB(t *testing.T) (*apptesting.TestDB, *apptesting.TestFixtures) {
	t.Helper()

	testDB, err := apptesting.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testDB.TeardownTestDB(); err != nil {
			t.Logf("failed to teardown test database: %v", err)
		}
	})

	return testDB, apptesting.NewTestFixtures(testDB)
}

func analyticsTestConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		SiteOrigin:       "peakself.co",
		SessionTimeout:   30 * time.Minute,
		DedupWindow:      10 * time.Second,
		CacheTTL:         time.Minute,
		UniqueVisitorTTL: 24 * time.Hour,
		Score:            scoreConfig(),
	}
}

// newTrackingFlow wires the full ingestion pipeline on real repositories with
// in-memory markers and a disabled cache.
func newTrackingFlow(testDB *apptesting.TestDB) TrackingFlow {
	cfg := analyticsTestConfig()

	visitorRepo := repository.NewVisitorRepository(testDB.DB)
	sessionRepo := repository.NewTrackingSessionRepository(testDB.DB)
	eventRepo := repository.NewPageViewEventRepository(testDB.DB)
	postRepo := repository.NewPostRepository(testDB.DB)
	statRepo := repository.NewPostEngagementStatRepository(testDB.DB)

	registry := NewVisitorRegistry(visitorRepo)
	tracker := NewSessionTracker(sessionRepo, eventRepo, cfg.SessionTimeout, cfg.DedupWindow)
	aggregator := NewEngagementAggregator(statRepo, postRepo, services.NewMemoryMarkerStore(), cfg)
	cache := services.NewRedisAnalyticsCache(nil, "", false)

	return NewTrackingFlow(registry, tracker, aggregator, postRepo, cache, cfg)
}

func TestTrackingFlow_FirstBeaconMintsIdentity(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	referrer := "https://www.instagram.com/peakself"
	resp := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{
		Path:     "/blog/deep-work",
		Referrer: &referrer,
	}, NewClientMetadata("10.0.0.1", "Test User Agent"))

	require.NotNil(t, resp)
	assert.Len(t, resp.VisitorToken, 64)
	assert.NotEmpty(t, resp.SessionUUID)

	var visitor models.Visitor
	require.NoError(t, testDB.DB.Where("token = ?", resp.VisitorToken).First(&visitor).Error)
	assert.Equal(t, "instagram", visitor.FirstSource)

	var session models.TrackingSession
	require.NoError(t, testDB.DB.Where("uuid = ?", resp.SessionUUID).First(&session).Error)
	assert.Equal(t, visitor.ID, session.VisitorID)
	assert.Equal(t, "instagram", session.Source)
	assert.Equal(t, "/blog/deep-work", session.LandingPath)
	assert.Equal(t, 1, session.PageCount)
	assert.Nil(t, session.EndedAt)

	var events []models.PageViewEvent
	require.NoError(t, testDB.DB.Where("session_id = ?", session.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "/blog/deep-work", events[0].Path)
	assert.Equal(t, "instagram", events[0].Source)
	// Classification never discards the raw referrer from the event row
	require.NotNil(t, events[0].Referrer)
	assert.Equal(t, referrer, *events[0].Referrer)
	require.NotNil(t, events[0].IP)
	assert.Equal(t, "10.0.0.1", *events[0].IP)
}

func TestTrackingFlow_SecondBeaconContinuesSession(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	first := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/"}, nil)
	require.NotNil(t, first)

	second := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{
		VisitorToken: first.VisitorToken,
		SessionUUID:  first.SessionUUID,
		Path:         "/about",
	}, nil)
	require.NotNil(t, second)

	assert.Equal(t, first.VisitorToken, second.VisitorToken)
	assert.Equal(t, first.SessionUUID, second.SessionUUID)

	var session models.TrackingSession
	require.NoError(t, testDB.DB.Where("uuid = ?", first.SessionUUID).First(&session).Error)
	assert.Equal(t, 2, session.PageCount)
	assert.Equal(t, "direct", session.Source)

	var count int64
	require.NoError(t, testDB.DB.Model(&models.PageViewEvent{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestTrackingFlow_SessionSourceIsLocked(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	referrer := "https://www.instagram.com/"
	first := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/", Referrer: &referrer}, nil)
	require.NotNil(t, first)

	// A later beacon with a different referrer must not rewrite the session
	// source decided at session start.
	google := "https://www.google.com/search"
	flow.TrackPageView(ctx, &dto.TrackPageViewRequest{
		VisitorToken: first.VisitorToken,
		SessionUUID:  first.SessionUUID,
		Path:         "/blog/deep-work",
		Referrer:     &google,
	}, nil)

	var session models.TrackingSession
	require.NoError(t, testDB.DB.Where("uuid = ?", first.SessionUUID).First(&session).Error)
	assert.Equal(t, "instagram", session.Source)

	// The event itself still carries its own attribution.
	var events []models.PageViewEvent
	require.NoError(t, testDB.DB.Where("session_id = ?", session.ID).Order("id ASC").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, "instagram", events[0].Source)
	assert.Equal(t, "google", events[1].Source)
}

func TestTrackingFlow_DuplicatePathIsDropped(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	first := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/blog/deep-work"}, nil)
	require.NotNil(t, first)

	// Same path immediately again, well inside the dedup window.
	repeat := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{
		VisitorToken: first.VisitorToken,
		SessionUUID:  first.SessionUUID,
		Path:         "/blog/deep-work",
	}, nil)
	require.NotNil(t, repeat)
	assert.Equal(t, first.SessionUUID, repeat.SessionUUID)

	var session models.TrackingSession
	require.NoError(t, testDB.DB.Where("uuid = ?", first.SessionUUID).First(&session).Error)
	assert.Equal(t, 1, session.PageCount)

	var count int64
	require.NoError(t, testDB.DB.Model(&models.PageViewEvent{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTrackingFlow_EndedSessionIsNotReactivated(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	first := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/"}, nil)
	require.NotNil(t, first)

	flow.EndSession(ctx, &dto.TrackEndRequest{SessionUUID: first.SessionUUID}, nil)

	var ended models.TrackingSession
	require.NoError(t, testDB.DB.Where("uuid = ?", first.SessionUUID).First(&ended).Error)
	require.NotNil(t, ended.EndedAt)

	// The next beacon from the same visitor starts a fresh session even if
	// the client still echoes the ended session UUID.
	next := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{
		VisitorToken: first.VisitorToken,
		SessionUUID:  first.SessionUUID,
		Path:         "/about",
	}, nil)
	require.NotNil(t, next)
	assert.NotEqual(t, first.SessionUUID, next.SessionUUID)

	var count int64
	require.NoError(t, testDB.DB.Model(&models.TrackingSession{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestTrackingFlow_EndUnknownSessionIsNoop(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		flow.EndSession(ctx, &dto.TrackEndRequest{SessionUUID: "f47ac10b-58cc-4372-a567-0e02b2c3d479"}, nil)
		flow.EndSession(ctx, &dto.TrackEndRequest{SessionUUID: "not-a-uuid"}, nil)
	})
}

func TestTrackingFlow_PostViewFeedsAggregates(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("deep-work")
	require.NoError(t, err)

	resp := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/blog/" + post.Slug}, nil)
	require.NotNil(t, resp)

	var stat models.PostEngagementStat
	require.NoError(t, testDB.DB.Where("post_id = ?", post.ID).First(&stat).Error)
	assert.Equal(t, int64(1), stat.TotalViews)
	assert.Equal(t, int64(1), stat.UniqueVisitors)

	// Same visitor again from a new session: counts a view but not a unique.
	flow.EndSession(ctx, &dto.TrackEndRequest{SessionUUID: resp.SessionUUID}, nil)
	flow.TrackPageView(ctx, &dto.TrackPageViewRequest{
		VisitorToken: resp.VisitorToken,
		Path:         "/blog/" + post.Slug,
	}, nil)

	require.NoError(t, testDB.DB.Where("post_id = ?", post.ID).First(&stat).Error)
	assert.Equal(t, int64(2), stat.TotalViews)
	assert.Equal(t, int64(1), stat.UniqueVisitors)
}

func TestTrackingFlow_NonPostPathsSkipAggregates(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/blog/no-such-slug"}, nil)
	flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/about"}, nil)

	var count int64
	require.NoError(t, testDB.DB.Model(&models.PostEngagementStat{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestTrackingFlow_EngagementBeacon(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrackingFlow(testDB)
	ctx := context.Background()

	post, err := fixtures.CreateTestPost("atomic-habits")
	require.NoError(t, err)

	resp := flow.TrackPageView(ctx, &dto.TrackPageViewRequest{Path: "/blog/" + post.Slug}, nil)
	require.NotNil(t, resp)

	flow.TrackEngagement(ctx, &dto.TrackEngagementRequest{
		PostID:      post.ID,
		SessionUUID: resp.SessionUUID,
		EventType:   EventScroll,
		ScrollDepth: 50,
	}, nil)
	flow.TrackEngagement(ctx, &dto.TrackEngagementRequest{
		PostID:    post.ID,
		EventType: EventShare,
		Platform:  "whatsapp",
	}, nil)
	flow.TrackEngagement(ctx, &dto.TrackEngagementRequest{
		PostID:    post.ID,
		EventType: EventTimeOnPage,
		Seconds:   120,
	}, nil)

	var stat models.PostEngagementStat
	require.NoError(t, testDB.DB.Where("post_id = ?", post.ID).First(&stat).Error)
	assert.Equal(t, int64(1), stat.Scroll50)
	assert.Equal(t, int64(1), stat.TotalShares)
	assert.Equal(t, int64(1), stat.SharesWhatsapp)
	assert.InDelta(t, 120.0, stat.AvgTimeOnPage, 0.001)
	assert.Equal(t, int64(1), stat.TimeSamples)
}

func TestPostSlugFromPath(t *testing.T) {
	tests := []struct {
		path     string
		wantSlug string
		wantOK   bool
	}{
		{"/blog/deep-work", "deep-work", true},
		{"/blog/deep-work/", "deep-work", true},
		{"blog/deep-work", "deep-work", true},
		{"/blog/deep-work?utm_source=x", "deep-work", true},
		{"/blog/deep-work#section-2", "deep-work", true},
		{"/blog/", "", false},
		{"/blog", "", false},
		{"/about", "", false},
		{"/blog/a/b", "", false},
		{"/", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			slug, ok := postSlugFromPath(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSlug, slug)
		})
	}
}
