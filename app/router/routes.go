// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/handlers"
	"github.com/Munim94s/peakself-backend/app/middleware"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers bundles everything the router mounts
type Handlers struct {
	Track     handlers.TrackHandlerInterface
	AdminAuth handlers.AdminAuthHandlerInterface
	Traffic   handlers.TrafficAdminHandlerInterface
	Blog      handlers.BlogAnalyticsHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	auth     *middleware.AuthMiddleware
	limiter  services.RateLimiter
	security config.SecurityConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, auth *middleware.AuthMiddleware, limiter services.RateLimiter, security config.SecurityConfig) Router {
	app := fiber.New(fiber.Config{
		AppName:      "PeakSelf Analytics API",
		ServerHeader: "PeakSelf",
		ErrorHandler: errorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB, beacons and admin queries are small
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:      app,
		handlers: h,
		auth:     auth,
		limiter:  limiter,
		security: security,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// General budget over every API route, matching the nginx api zone
	api.Use(middleware.RateLimit(r.limiter, services.Limit{
		Bucket: "global",
		Max:    int64(r.security.GlobalRateLimit),
		Window: r.security.RateLimitWindow,
	}))

	// Public tracking endpoints. Over-budget beacons are acknowledged
	// and dropped so the blog page never sees an error.
	track := api.Group("/track")
	track.Use(middleware.TrackRateLimit(r.limiter, services.Limit{
		Bucket: "track",
		Max:    int64(r.security.TrackRateLimit),
		Window: r.security.RateLimitWindow,
	}))
	track.Post("/", r.handlers.Track.TrackPageView)
	track.Post("/engagement", r.handlers.Track.TrackEngagement)
	track.Post("/end", r.handlers.Track.TrackEnd)

	admin := api.Group("/admin")

	// Credential endpoints get the tightest budget
	adminAuth := admin.Group("/auth")
	adminAuth.Use(middleware.RateLimit(r.limiter, services.Limit{
		Bucket: "auth",
		Max:    int64(r.security.AuthRateLimit),
		Window: r.security.RateLimitWindow,
	}))
	adminAuth.Post("/login", r.handlers.AdminAuth.Login)
	adminAuth.Post("/refresh", r.handlers.AdminAuth.Refresh)

	// Everything else under /admin requires a valid admin token
	protected := admin.Group("", r.auth.AdminAuthenticate())
	protected.Use(middleware.RateLimit(r.limiter, services.Limit{
		Bucket: "admin",
		Max:    int64(r.security.AdminRateLimit),
		Window: r.security.RateLimitWindow,
	}))

	traffic := protected.Group("/traffic")
	traffic.Get("/sessions", r.handlers.Traffic.ListSessions)
	traffic.Get("/sessions/:uuid", r.handlers.Traffic.SessionDetail)
	traffic.Get("/summary", r.handlers.Traffic.Summary)
	traffic.Get("/events", r.handlers.Traffic.Events)
	traffic.Get("/events/export", r.handlers.Traffic.ExportEvents)
	traffic.Get("/timeline", r.handlers.Traffic.Timeline)

	blog := protected.Group("/blog")
	blog.Get("/analytics", r.handlers.Blog.ListPosts)
	blog.Get("/analytics/:id", r.handlers.Blog.PostAnalytics)
	blog.Get("/analytics/:id/heatmap", r.handlers.Blog.Heatmap)
	blog.Post("/analytics/:id/reset", r.handlers.Blog.ResetStats)
	blog.Get("/audience", r.handlers.Blog.Audience)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// The tracking snippet posts beacons from blog pages, so the blog
	// origins must be allowed here
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"https://peakself.co",
			"https://www.peakself.co",
			"https://admin.peakself.co",
		},
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			contentType := c.Get("Content-Type")
			return strings.Contains(contentType, "image/") ||
				strings.Contains(contentType, "video/")
		},
	}))

	// Structured access logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// Prometheus request metrics
	r.app.Use(middleware.Metrics())

	r.app.Use(r.responseHeaders)

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

func (r *FiberRouter) responseHeaders(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	c.Set("Server", "PeakSelf")
	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "peakself-analytics-api",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
