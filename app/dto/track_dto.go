// Package dto
package dto

// TrackPageViewRequest is the beacon body sent on every page navigation.
// VisitorToken and SessionUUID are echoed back by the client once issued;
// both are optional on the first beacon.
type TrackPageViewRequest struct {
	VisitorToken string  `json:"visitor_token" validate:"omitempty,max=64"`
	SessionUUID  string  `json:"session_uuid" validate:"omitempty,uuid4"`
	Path         string  `json:"path" validate:"required,max=2048"`
	Referrer     *string `json:"referrer" validate:"omitempty,max=2048"`
	SourceHint   *string `json:"source_hint" validate:"omitempty,max=32"`
}

// TrackEngagementRequest reports a single engagement signal for a post
type TrackEngagementRequest struct {
	PostID      uint    `json:"post_id" validate:"required,gt=0"`
	SessionUUID string  `json:"session_uuid" validate:"omitempty,uuid4"`
	EventType   string  `json:"event_type" validate:"required,oneof=scroll share cta_click time_on_page"`
	ScrollDepth int     `json:"scroll_depth" validate:"omitempty,oneof=25 50 75 100"`
	Platform    string  `json:"platform" validate:"omitempty,oneof=instagram facebook twitter whatsapp copy_link"`
	Seconds     float64 `json:"seconds" validate:"omitempty,gte=0,lte=86400"`
}

// TrackEndRequest signals that the visitor left the site
type TrackEndRequest struct {
	SessionUUID string `json:"session_uuid" validate:"required,uuid4"`
}

// TrackResponse returns the identifiers the client must persist and echo
// back on later beacons.
type TrackResponse struct {
	VisitorToken string `json:"visitor_token"`
	SessionUUID  string `json:"session_uuid"`
}
