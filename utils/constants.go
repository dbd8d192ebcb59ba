package utils

import (
	"time"
)

// Session and tracking time constants
const (
	// SessionInactivityTimeout bounds a visit: a beacon arriving later than
	// this after the previous one starts a new session (30 minutes)
	SessionInactivityTimeout = 30 * time.Minute

	// PageViewDedupWindow is the window in which an identical (visitor, path)
	// beacon is treated as a client double-fire and collapsed (10 seconds)
	PageViewDedupWindow = 10 * time.Second

	// AnalyticsCacheTTL bounds staleness of cached aggregate reads (60 seconds)
	AnalyticsCacheTTL = 60 * time.Second

	// UniqueVisitorTTL is how long a (post, visitor) pair counts as already
	// seen for unique-visitor counting and scroll idempotency (24 hours)
	UniqueVisitorTTL = 24 * time.Hour

	// AccessTokenTTL is the time-to-live for admin access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for admin refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Rate limit window defaults, per route class
const (
	// TrackRateLimit is the per-IP beacon budget per window; beacons are
	// frequent and individually low-value
	TrackRateLimit = 300

	// AdminRateLimit is the per-client budget for dashboard query routes
	AdminRateLimit = 120

	// AuthRateLimit is the per-IP budget for the admin login route
	AuthRateLimit = 10

	// GlobalRateLimit is the catch-all budget so a newly added route is
	// never unintentionally unlimited
	GlobalRateLimit = 2000

	// RateLimitWindow is the fixed window all the budgets above apply to
	RateLimitWindow = 1 * time.Minute
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
