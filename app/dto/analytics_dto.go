// Package dto
package dto

// Pagination is shared by admin list endpoints
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// SessionDTO is the admin view of one tracking session
type SessionDTO struct {
	ID           uint   `json:"id" example:"42"`
	UUID         string `json:"uuid" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
	VisitorToken string `json:"visitor_token"`
	Source       string `json:"source" example:"instagram"`
	LandingPath  string `json:"landing_path" example:"/blog/deep-work"`
	PageCount    int    `json:"page_count" example:"3"`
	StartedAt    string `json:"started_at" example:"2024-01-15T10:30:00Z"`
	LastSeenAt   string `json:"last_seen_at" example:"2024-01-15T10:42:00Z"`
	EndedAt      string `json:"ended_at,omitempty"`
	Active       bool   `json:"active"`
}

// SessionListRequest filters the admin session list
type SessionListRequest struct {
	Page      int    `query:"page" validate:"omitempty,gte=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,gte=1,lte=200"`
	Source    string `query:"source" validate:"omitempty,max=32"`
	VisitorID uint   `query:"visitor_id" validate:"omitempty,gte=1"`
	Active    *bool  `query:"active"`
	SinceDays int    `query:"since_days" validate:"omitempty,gte=1,lte=365"`
}

// SessionListResponse pages through sessions
type SessionListResponse struct {
	Sessions   []SessionDTO `json:"sessions"`
	Pagination Pagination   `json:"pagination"`
}

// PageViewEventDTO is the admin view of one beacon
type PageViewEventDTO struct {
	ID         uint   `json:"id"`
	SessionID  uint   `json:"session_id"`
	OccurredAt string `json:"occurred_at" example:"2024-01-15T10:30:00Z"`
	Path       string `json:"path" example:"/blog/deep-work"`
	Referrer   string `json:"referrer,omitempty"`
	Source     string `json:"source" example:"google"`
	IP         string `json:"ip,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// SessionEventsResponse lists one session's beacons in order
type SessionEventsResponse struct {
	Session SessionDTO         `json:"session"`
	Events  []PageViewEventDTO `json:"events"`
}

// SourceCountDTO is one slice of the traffic-by-source breakdown
type SourceCountDTO struct {
	Source  string  `json:"source" example:"instagram"`
	Count   int64   `json:"count" example:"1280"`
	Percent float64 `json:"percent" example:"34.2"`
}

// ReferrerCountDTO ranks a raw referrer within the "other" bucket
type ReferrerCountDTO struct {
	Referrer string `json:"referrer" example:"https://news.ycombinator.com/"`
	Count    int64  `json:"count" example:"57"`
}

// TrafficSummaryRequest scopes the summary to a trailing window
type TrafficSummaryRequest struct {
	Days int `query:"days" validate:"omitempty,gte=1,lte=365"`
}

// TrafficSummaryResponse is the dashboard's headline traffic breakdown
type TrafficSummaryResponse struct {
	Days              int                `json:"days"`
	TotalViews        int64              `json:"total_views"`
	Sources           []SourceCountDTO   `json:"sources"`
	TopOtherReferrers []ReferrerCountDTO `json:"top_other_referrers"`
}

// TrafficEventsRequest filters the raw beacon log
type TrafficEventsRequest struct {
	Page      int    `query:"page" validate:"omitempty,gte=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,gte=1,lte=200"`
	Source    string `query:"source" validate:"omitempty,max=32"`
	Path      string `query:"path" validate:"omitempty,max=2048"`
	Ref       string `query:"ref" validate:"omitempty,max=2048"`
	SinceDays int    `query:"since_days" validate:"omitempty,gte=1,lte=365"`
}

// TrafficEventsResponse pages through the raw beacon log
type TrafficEventsResponse struct {
	Events     []PageViewEventDTO `json:"events"`
	Pagination Pagination         `json:"pagination"`
}

// DailyTrafficDTO is one day of the traffic timeline
type DailyTrafficDTO struct {
	Date     string `json:"date" example:"2024-01-15"`
	Views    int64  `json:"views" example:"412"`
	Visitors int64  `json:"visitors" example:"188"`
}

// TrafficTimelineResponse is the day-by-day views/visitors series
type TrafficTimelineResponse struct {
	Days     int               `json:"days"`
	Timeline []DailyTrafficDTO `json:"timeline"`
}

// ShareBreakdownDTO splits total shares per platform
type ShareBreakdownDTO struct {
	Instagram int64 `json:"instagram"`
	Facebook  int64 `json:"facebook"`
	Twitter   int64 `json:"twitter"`
	Whatsapp  int64 `json:"whatsapp"`
	CopyLink  int64 `json:"copy_link"`
}

// PostAnalyticsDTO is the full per-post engagement picture
type PostAnalyticsDTO struct {
	PostID          uint              `json:"post_id"`
	TotalViews      int64             `json:"total_views"`
	UniqueVisitors  int64             `json:"unique_visitors"`
	Scroll25        int64             `json:"scroll_25_percent"`
	Scroll50        int64             `json:"scroll_50_percent"`
	Scroll75        int64             `json:"scroll_75_percent"`
	Scroll100       int64             `json:"scroll_100_percent"`
	TotalShares     int64             `json:"total_shares"`
	Shares          ShareBreakdownDTO `json:"shares"`
	CTAClicks       int64             `json:"cta_clicks"`
	AvgTimeOnPage   float64           `json:"avg_time_on_page"`
	AvgScrollDepth  float64           `json:"avg_scroll_depth"`
	EngagementRate  float64           `json:"engagement_rate"`
	EngagementScore float64           `json:"engagement_score"`
	UpdatedAt       string            `json:"updated_at"`
}

// ScrollCheckpointDTO is one step of a post's read-depth funnel
type ScrollCheckpointDTO struct {
	Depth   int     `json:"depth" example:"50"`
	Count   int64   `json:"count" example:"312"`
	Percent float64 `json:"percent" example:"61.4"`
}

// PostHeatmapResponse is the scroll funnel for one post
type PostHeatmapResponse struct {
	PostID      uint                  `json:"post_id"`
	TotalViews  int64                 `json:"total_views"`
	Checkpoints []ScrollCheckpointDTO `json:"checkpoints"`
}

// AudienceSourceDTO is one slice of the first-touch audience breakdown
type AudienceSourceDTO struct {
	Source  string  `json:"source"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// AudienceResponse describes the visitor base by first-touch attribution
type AudienceResponse struct {
	TotalVisitors int64               `json:"total_visitors"`
	NewLast30Days int64               `json:"new_last_30_days"`
	ByFirstSource []AudienceSourceDTO `json:"by_first_source"`
}

// BlogAnalyticsListResponse ranks posts by engagement score
type BlogAnalyticsListResponse struct {
	Posts []PostAnalyticsDTO `json:"posts"`
}
