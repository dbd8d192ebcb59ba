package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	defaultPageSize   = 50
	maxPageSize       = 200
	defaultRangeDays  = 7
	maxRangeDays      = 365
	topReferrersLimit = 10
	exportRowLimit    = 50000
)

// TrafficFlow serves the admin dashboard's traffic views: session listing,
// per-session drilldown, source breakdowns, the raw beacon log and its XLSX
// export. Aggregate reads go through the analytics cache.
type TrafficFlow interface {
	ListSessions(ctx context.Context, req *dto.SessionListRequest) (*dto.SessionListResponse, error)
	SessionDetail(ctx context.Context, sessionUUID uuid.UUID) (*dto.SessionEventsResponse, error)
	Summary(ctx context.Context, req *dto.TrafficSummaryRequest) (*dto.TrafficSummaryResponse, error)
	Events(ctx context.Context, req *dto.TrafficEventsRequest) (*dto.TrafficEventsResponse, error)
	Timeline(ctx context.Context, days int) (*dto.TrafficTimelineResponse, error)
	// ExportEventsXLSX renders the filtered beacon log as a workbook.
	// Returns filename and file contents.
	ExportEventsXLSX(ctx context.Context, req *dto.TrafficEventsRequest) (string, []byte, error)
}

// TrafficFlowImpl implements TrafficFlow
type TrafficFlowImpl struct {
	sessionRepo repository.TrackingSessionRepository
	eventRepo   repository.PageViewEventRepository
	cache       services.AnalyticsCache
	analytics   config.AnalyticsConfig
}

func NewTrafficFlow(
	sessionRepo repository.TrackingSessionRepository,
	eventRepo repository.PageViewEventRepository,
	cache services.AnalyticsCache,
	analytics config.AnalyticsConfig,
) TrafficFlow {
	return &TrafficFlowImpl{
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		cache:       cache,
		analytics:   analytics,
	}
}

func (f *TrafficFlowImpl) ListSessions(ctx context.Context, req *dto.SessionListRequest) (*dto.SessionListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	filter := models.TrackingSessionFilter{}
	if req.Source != "" {
		if !ValidSourceCategory(req.Source) {
			return nil, NewBusinessError("INVALID_SOURCE", "Unknown source category", ErrInvalidRange)
		}
		filter.Source = &req.Source
	}
	if req.VisitorID > 0 {
		filter.VisitorID = &req.VisitorID
	}
	if req.SinceDays > 0 {
		since := utils.UTCNow().AddDate(0, 0, -req.SinceDays)
		filter.StartedAfter = &since
	}
	// Active/ended is derived from timestamps, not just ended_at, so the
	// filter translates to a last-seen cutoff plus the explicit flag.
	if req.Active != nil {
		cutoff := utils.UTCNow().Add(-f.analytics.SessionTimeout)
		if *req.Active {
			filter.Ended = utils.ToPtr(false)
			filter.SeenAfter = &cutoff
		} else {
			filter.SeenBefore = &cutoff
		}
	}

	total, err := f.sessionRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("SESSION_LIST_FAILED", "Failed to count sessions", err)
	}

	rows, err := f.sessionRepo.ByFilter(ctx, filter, "started_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("SESSION_LIST_FAILED", "Failed to list sessions", err)
	}

	now := utils.UTCNow()
	sessions := make([]dto.SessionDTO, 0, len(rows))
	for _, s := range rows {
		sessions = append(sessions, f.toSessionDTO(s, now))
	}

	return &dto.SessionListResponse{
		Sessions:   sessions,
		Pagination: dto.Pagination{Page: page, PageSize: pageSize, Total: total},
	}, nil
}

func (f *TrafficFlowImpl) SessionDetail(ctx context.Context, sessionUUID uuid.UUID) (*dto.SessionEventsResponse, error) {
	session, err := f.sessionRepo.ByUUID(ctx, sessionUUID)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}

	events, err := f.eventRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to list session events", err)
	}

	eventDTOs := make([]dto.PageViewEventDTO, 0, len(events))
	for _, e := range events {
		eventDTOs = append(eventDTOs, toEventDTO(e))
	}

	return &dto.SessionEventsResponse{
		Session: f.toSessionDTO(session, utils.UTCNow()),
		Events:  eventDTOs,
	}, nil
}

func (f *TrafficFlowImpl) Summary(ctx context.Context, req *dto.TrafficSummaryRequest) (*dto.TrafficSummaryResponse, error) {
	days := normalizeDays(req.Days)

	var resp dto.TrafficSummaryResponse
	key := fmt.Sprintf("traffic:summary:%dd", days)
	err := f.cache.GetOrCompute(ctx, key, f.analytics.CacheTTL, &resp, func() (any, error) {
		return f.computeSummary(ctx, days)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *TrafficFlowImpl) computeSummary(ctx context.Context, days int) (*dto.TrafficSummaryResponse, error) {
	since := utils.UTCNow().AddDate(0, 0, -days)

	counts, err := f.eventRepo.CountsBySourceSince(ctx, since)
	if err != nil {
		return nil, NewBusinessError("TRAFFIC_SUMMARY_FAILED", "Failed to aggregate traffic by source", err)
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}

	sources := make([]dto.SourceCountDTO, 0, len(counts))
	for _, c := range counts {
		percent := 0.0
		if total > 0 {
			percent = 100 * float64(c.Count) / float64(total)
		}
		sources = append(sources, dto.SourceCountDTO{Source: c.Source, Count: c.Count, Percent: percent})
	}

	referrers, err := f.eventRepo.TopOtherReferrersSince(ctx, since, topReferrersLimit)
	if err != nil {
		return nil, NewBusinessError("TRAFFIC_SUMMARY_FAILED", "Failed to rank other referrers", err)
	}
	topOther := make([]dto.ReferrerCountDTO, 0, len(referrers))
	for _, r := range referrers {
		topOther = append(topOther, dto.ReferrerCountDTO{Referrer: r.Referrer, Count: r.Count})
	}

	return &dto.TrafficSummaryResponse{
		Days:              days,
		TotalViews:        total,
		Sources:           sources,
		TopOtherReferrers: topOther,
	}, nil
}

func (f *TrafficFlowImpl) Events(ctx context.Context, req *dto.TrafficEventsRequest) (*dto.TrafficEventsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	filter, err := f.eventFilter(req)
	if err != nil {
		return nil, err
	}

	total, err := f.eventRepo.Count(ctx, *filter)
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to count events", err)
	}

	rows, err := f.eventRepo.ByFilter(ctx, *filter, "occurred_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to list events", err)
	}

	events := make([]dto.PageViewEventDTO, 0, len(rows))
	for _, e := range rows {
		events = append(events, toEventDTO(e))
	}

	return &dto.TrafficEventsResponse{
		Events:     events,
		Pagination: dto.Pagination{Page: page, PageSize: pageSize, Total: total},
	}, nil
}

func (f *TrafficFlowImpl) Timeline(ctx context.Context, days int) (*dto.TrafficTimelineResponse, error) {
	days = normalizeDays(days)

	var resp dto.TrafficTimelineResponse
	key := fmt.Sprintf("traffic:timeline:%dd", days)
	err := f.cache.GetOrCompute(ctx, key, f.analytics.CacheTTL, &resp, func() (any, error) {
		since := utils.StartOfDayUTC(utils.UTCNow().AddDate(0, 0, -(days - 1)))
		daily, err := f.eventRepo.DailyTrafficSince(ctx, since)
		if err != nil {
			return nil, NewBusinessError("TRAFFIC_TIMELINE_FAILED", "Failed to aggregate daily traffic", err)
		}

		timeline := make([]dto.DailyTrafficDTO, 0, len(daily))
		for _, d := range daily {
			timeline = append(timeline, dto.DailyTrafficDTO{
				Date:     d.Day.Format("2006-01-02"),
				Views:    d.Views,
				Visitors: d.Visitors,
			})
		}
		return &dto.TrafficTimelineResponse{Days: days, Timeline: timeline}, nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *TrafficFlowImpl) ExportEventsXLSX(ctx context.Context, req *dto.TrafficEventsRequest) (string, []byte, error) {
	filter, err := f.eventFilter(req)
	if err != nil {
		return "", nil, err
	}

	rows, err := f.eventRepo.ByFilter(ctx, *filter, "occurred_at DESC, id DESC", exportRowLimit, 0)
	if err != nil {
		return "", nil, NewBusinessError("EVENT_EXPORT_FAILED", "Failed to list events for export", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "page_views"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"id", "session_id", "occurred_at", "path", "referrer", "source", "ip", "user_agent"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, e := range rows {
		referrer := ""
		if e.Referrer != nil {
			referrer = *e.Referrer
		}
		ip := ""
		if e.IP != nil {
			ip = *e.IP
		}
		ua := ""
		if e.UserAgent != nil {
			ua = *e.UserAgent
		}
		record := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			strconv.FormatUint(uint64(e.SessionID), 10),
			e.OccurredAt.UTC().Format(time.RFC3339),
			e.Path,
			referrer,
			e.Source,
			ip,
			ua,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("page_views_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

func (f *TrafficFlowImpl) eventFilter(req *dto.TrafficEventsRequest) (*models.PageViewEventFilter, error) {
	filter := &models.PageViewEventFilter{}
	if req.Source != "" {
		if !ValidSourceCategory(req.Source) {
			return nil, NewBusinessError("INVALID_SOURCE", "Unknown source category", ErrInvalidRange)
		}
		filter.Source = &req.Source
	}
	if req.Path != "" {
		filter.Path = &req.Path
	}
	// Referrer matches as a substring so a bare host finds every deep link
	if req.Ref != "" {
		filter.Referrer = &req.Ref
	}
	if req.SinceDays > 0 {
		since := utils.UTCNow().AddDate(0, 0, -req.SinceDays)
		filter.OccurredAfter = &since
	}
	return filter, nil
}

func (f *TrafficFlowImpl) toSessionDTO(s *models.TrackingSession, now time.Time) dto.SessionDTO {
	out := dto.SessionDTO{
		ID:          s.ID,
		UUID:        s.UUID.String(),
		Source:      s.Source,
		LandingPath: s.LandingPath,
		PageCount:   s.PageCount,
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
		LastSeenAt:  s.LastSeenAt.UTC().Format(time.RFC3339),
		Active:      s.IsActive(now, f.analytics.SessionTimeout),
	}
	if s.Visitor.ID != 0 {
		out.VisitorToken = s.Visitor.Token
	}
	if s.EndedAt != nil {
		out.EndedAt = s.EndedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toEventDTO(e *models.PageViewEvent) dto.PageViewEventDTO {
	out := dto.PageViewEventDTO{
		ID:         e.ID,
		SessionID:  e.SessionID,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339),
		Path:       e.Path,
		Source:     e.Source,
	}
	if e.Referrer != nil {
		out.Referrer = *e.Referrer
	}
	if e.IP != nil {
		out.IP = *e.IP
	}
	if e.UserAgent != nil {
		out.UserAgent = *e.UserAgent
	}
	return out
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func normalizeDays(days int) int {
	if days < 1 {
		return defaultRangeDays
	}
	if days > maxRangeDays {
		return maxRangeDays
	}
	return days
}
