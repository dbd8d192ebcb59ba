package utils

import "context"

// ContextKey is the private type for request-scoped context values
type ContextKey string

const (
	// RequestIDKey carries the inbound X-Request-ID for log correlation
	RequestIDKey ContextKey = "request_id"

	// IPAddressKey carries the client IP resolved by the router
	IPAddressKey ContextKey = "ip_address"

	// UserAgentKey carries the raw User-Agent header
	UserAgentKey ContextKey = "user_agent"

	// EndpointKey carries the matched route for audit logging
	EndpointKey ContextKey = "endpoint"

	// AdminIDKey carries the authenticated admin id set by the auth middleware
	AdminIDKey ContextKey = "admin_id"
)

// RequestIDFromContext returns the request id, or "" when absent
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
