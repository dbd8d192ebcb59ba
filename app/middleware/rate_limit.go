package middleware

import (
	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/gofiber/fiber/v3"
)

// RateLimit rejects requests over the per-client budget with 429.
// The client key is the remote IP, so one noisy reader cannot starve
// the admin dashboard or the beacon pipeline for everyone else.
func RateLimit(limiter services.RateLimiter, limit services.Limit) fiber.Handler {
	return func(c fiber.Ctx) error {
		if limiter.Allow(c.Context(), limit, c.IP()) {
			return c.Next()
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
			Success: false,
			Message: "Too many requests",
			Error:   dto.ErrorDetail{Code: "RATE_LIMIT_EXCEEDED"},
		})
	}
}

// TrackRateLimit drops over-budget beacons silently. The tracking
// contract promises 200 {success:true} to the page no matter what, so
// a rate-limited beacon is acknowledged and discarded instead of
// bounced with 429.
func TrackRateLimit(limiter services.RateLimiter, limit services.Limit) fiber.Handler {
	return func(c fiber.Ctx) error {
		if limiter.Allow(c.Context(), limit, c.IP()) {
			return c.Next()
		}
		return c.Status(fiber.StatusOK).JSON(dto.APIResponse{
			Success: true,
			Message: "ok",
		})
	}
}
