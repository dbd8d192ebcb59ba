package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	apptesting "github.com/Munim94s/peakself-backend/testing"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTrafficFlow(testDB *apptesting.TestDB) TrafficFlow {
	return NewTrafficFlow(
		repository.NewTrackingSessionRepository(testDB.DB),
		repository.NewPageViewEventRepository(testDB.DB),
		services.NewRedisAnalyticsCache(nil, "", false),
		analyticsTestConfig(),
	)
}

func TestTrafficFlow_ListSessions(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	for _, source := range []string{"instagram", "google", "direct"} {
		_, err := fixtures.CreateTestSession(visitor.ID, source, "/")
		require.NoError(t, err)
	}

	resp, err := flow.ListSessions(ctx, &dto.SessionListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Len(t, resp.Sessions, 3)
	assert.Equal(t, 1, resp.Pagination.Page)

	// Filter by source.
	resp, err = flow.ListSessions(ctx, &dto.SessionListRequest{Source: "instagram"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Pagination.Total)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "instagram", resp.Sessions[0].Source)
	assert.True(t, resp.Sessions[0].Active)
}

func TestTrafficFlow_ListSessionsVisitorFilter(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	first, err := fixtures.CreateTestVisitor("instagram")
	require.NoError(t, err)
	second, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)

	_, err = fixtures.CreateTestSession(first.ID, "instagram", "/")
	require.NoError(t, err)
	_, err = fixtures.CreateTestSession(first.ID, "direct", "/about")
	require.NoError(t, err)
	_, err = fixtures.CreateTestSession(second.ID, "google", "/")
	require.NoError(t, err)

	resp, err := flow.ListSessions(ctx, &dto.SessionListRequest{VisitorID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	require.Len(t, resp.Sessions, 2)

	resp, err = flow.ListSessions(ctx, &dto.SessionListRequest{VisitorID: second.ID})
	require.NoError(t, err)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "google", resp.Sessions[0].Source)
}

func TestTrafficFlow_ListSessionsRejectsUnknownSource(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)

	resp, err := flow.ListSessions(context.Background(), &dto.SessionListRequest{Source: "tiktok"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsInvalidRange(err))
}

func TestTrafficFlow_ListSessionsActiveFilter(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)

	active, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)

	stale, err := fixtures.CreateTestSession(visitor.ID, "google", "/")
	require.NoError(t, err)
	old := utils.UTCNow().Add(-2 * time.Hour)
	require.NoError(t, testDB.DB.Model(&models.TrackingSession{}).
		Where("id = ?", stale.ID).
		Updates(map[string]any{"started_at": old, "last_seen_at": old}).Error)

	resp, err := flow.ListSessions(ctx, &dto.SessionListRequest{Active: utils.ToPtr(true)})
	require.NoError(t, err)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, active.UUID.String(), resp.Sessions[0].UUID)

	resp, err = flow.ListSessions(ctx, &dto.SessionListRequest{Active: utils.ToPtr(false)})
	require.NoError(t, err)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, stale.UUID.String(), resp.Sessions[0].UUID)
	assert.False(t, resp.Sessions[0].Active)
}

func TestTrafficFlow_SessionDetail(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)

	now := utils.UTCNow()
	_, err = fixtures.CreateTestPageView(session.ID, "/", "direct", now.Add(-2*time.Minute))
	require.NoError(t, err)
	_, err = fixtures.CreateTestPageView(session.ID, "/blog/deep-work", "direct", now)
	require.NoError(t, err)

	resp, err := flow.SessionDetail(ctx, session.UUID)
	require.NoError(t, err)
	assert.Equal(t, session.UUID.String(), resp.Session.UUID)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "/", resp.Events[0].Path)
	assert.Equal(t, "/blog/deep-work", resp.Events[1].Path)
}

func TestTrafficFlow_SessionDetailNotFound(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)

	resp, err := flow.SessionDetail(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsSessionNotFound(err))
}

func TestTrafficFlow_Summary(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)

	now := utils.UTCNow()
	for i := 0; i < 3; i++ {
		_, err := fixtures.CreateTestPageView(session.ID, "/", "instagram", now)
		require.NoError(t, err)
	}
	_, err = fixtures.CreateTestPageView(session.ID, "/", "google", now)
	require.NoError(t, err)

	// One "other" event with a raw referrer for the ranking.
	ref := "https://news.ycombinator.com/"
	event := &models.PageViewEvent{SessionID: session.ID, OccurredAt: now, Path: "/", Source: "other", Referrer: &ref}
	require.NoError(t, testDB.DB.Create(event).Error)

	resp, err := flow.Summary(ctx, &dto.TrafficSummaryRequest{Days: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Days)
	assert.Equal(t, int64(5), resp.TotalViews)

	bySource := map[string]dto.SourceCountDTO{}
	for _, s := range resp.Sources {
		bySource[s.Source] = s
	}
	assert.Equal(t, int64(3), bySource["instagram"].Count)
	assert.InDelta(t, 60.0, bySource["instagram"].Percent, 0.001)
	assert.Equal(t, int64(1), bySource["google"].Count)

	require.Len(t, resp.TopOtherReferrers, 1)
	assert.Equal(t, ref, resp.TopOtherReferrers[0].Referrer)
}

func TestTrafficFlow_SummaryDefaultsAndClampsDays(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	resp, err := flow.Summary(ctx, &dto.TrafficSummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Days)

	resp, err = flow.Summary(ctx, &dto.TrafficSummaryRequest{Days: 9999})
	require.NoError(t, err)
	assert.Equal(t, 365, resp.Days)
}

func TestTrafficFlow_EventsFilterAndPaging(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)

	now := utils.UTCNow()
	for i := 0; i < 5; i++ {
		_, err := fixtures.CreateTestPageView(session.ID, "/blog/deep-work", "instagram", now.Add(-time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err = fixtures.CreateTestPageView(session.ID, "/about", "google", now)
	require.NoError(t, err)

	resp, err := flow.Events(ctx, &dto.TrafficEventsRequest{Source: "instagram", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Pagination.Total)
	assert.Len(t, resp.Events, 2)
	for _, e := range resp.Events {
		assert.Equal(t, "instagram", e.Source)
	}

	resp, err = flow.Events(ctx, &dto.TrafficEventsRequest{Path: "/about"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Pagination.Total)
}

func TestTrafficFlow_EventsReferrerFilter(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)

	now := utils.UTCNow()
	for _, ref := range []string{
		"https://news.ycombinator.com/item?id=1",
		"https://news.ycombinator.com/item?id=2",
		"https://someblog.example.org/post",
	} {
		event := &models.PageViewEvent{
			SessionID:  session.ID,
			OccurredAt: now,
			Path:       "/blog/deep-work",
			Source:     "other",
			Referrer:   utils.ToPtr(ref),
		}
		require.NoError(t, testDB.DB.Create(event).Error)
	}
	_, err = fixtures.CreateTestPageView(session.ID, "/", "direct", now)
	require.NoError(t, err)

	// A bare host matches every deep link from that site
	resp, err := flow.Events(ctx, &dto.TrafficEventsRequest{Ref: "news.ycombinator.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	for _, e := range resp.Events {
		assert.Contains(t, e.Referrer, "news.ycombinator.com")
	}

	resp, err = flow.Events(ctx, &dto.TrafficEventsRequest{Ref: "example.org"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Pagination.Total)
}

func TestTrafficFlow_Timeline(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)

	now := utils.UTCNow()
	_, err = fixtures.CreateTestPageView(session.ID, "/", "direct", now)
	require.NoError(t, err)
	_, err = fixtures.CreateTestPageView(session.ID, "/about", "direct", now)
	require.NoError(t, err)

	resp, err := flow.Timeline(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Days)
	require.NotEmpty(t, resp.Timeline)

	today := resp.Timeline[len(resp.Timeline)-1]
	assert.Equal(t, now.Format("2006-01-02"), today.Date)
	assert.Equal(t, int64(2), today.Views)
	assert.Equal(t, int64(1), today.Visitors)
}

func TestTrafficFlow_ExportEventsXLSX(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	flow := newTrafficFlow(testDB)
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)
	session, err := fixtures.CreateTestSession(visitor.ID, "direct", "/")
	require.NoError(t, err)
	_, err = fixtures.CreateTestPageView(session.ID, "/blog/deep-work", "instagram", utils.UTCNow())
	require.NoError(t, err)

	filename, data, err := flow.ExportEventsXLSX(ctx, &dto.TrafficEventsRequest{})
	require.NoError(t, err)
	assert.Contains(t, filename, "page_views_")
	assert.Contains(t, filename, ".xlsx")
	require.NotEmpty(t, data)

	// The workbook must open and contain the header plus one data row.
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("page_views")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "path", rows[0][3])
	assert.Equal(t, "/blog/deep-work", rows[1][3])
	assert.Equal(t, "instagram", rows[1][5])
}
