// Package main provides the main entry point for the PeakSelf analytics backend
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Munim94s/peakself-backend/app/handlers"
	"github.com/Munim94s/peakself-backend/app/middleware"
	"github.com/Munim94s/peakself-backend/app/router"
	"github.com/Munim94s/peakself-backend/app/services"
	businessflow "github.com/Munim94s/peakself-backend/business_flow"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting PeakSelf analytics backend...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	configureLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// configureLogging routes the standard logger to a rotating file when
// configured, keeping stdout in "both" mode for container logs
func configureLogging(cfg config.LoggingConfig) {
	if cfg.Output != "file" && cfg.Output != "both" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
		return
	}
	log.SetOutput(rotator)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// Returns nil when caching runs in-memory.
func initializeCache(cfg config.CacheConfig, password string) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if password != "" {
		opt.Password = password
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, cfg.Deployment.RedisPassword)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	visitorRepo := repository.NewVisitorRepository(db)
	sessionRepo := repository.NewTrackingSessionRepository(db)
	eventRepo := repository.NewPageViewEventRepository(db)
	postRepo := repository.NewPostRepository(db)
	statRepo := repository.NewPostEngagementStatRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	if err := ensureAdminAccount(adminRepo, cfg); err != nil {
		return nil, err
	}

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	var analyticsCache services.AnalyticsCache
	var counterStore services.CounterStore
	var markerStore services.MarkerStore
	if rc != nil {
		analyticsCache = services.NewRedisAnalyticsCache(rc, cfg.Cache.RedisPrefix, cfg.Cache.Enabled)
		counterStore = services.NewRedisCounterStore(rc, cfg.Cache.RedisPrefix)
		markerStore = services.NewRedisMarkerStore(rc, cfg.Cache.RedisPrefix)
	} else {
		analyticsCache = services.NewRedisAnalyticsCache(nil, cfg.Cache.RedisPrefix, false)
		counterStore = services.NewMemoryCounterStore()
		markerStore = services.NewMemoryMarkerStore()
	}
	rateLimiter := services.NewFixedWindowLimiter(counterStore, cfg.Security.RateLimitEnabled)

	// Initialize flows
	visitorRegistry := businessflow.NewVisitorRegistry(visitorRepo)
	sessionTracker := businessflow.NewSessionTracker(
		sessionRepo,
		eventRepo,
		cfg.Analytics.SessionTimeout,
		cfg.Analytics.DedupWindow,
	)
	aggregator := businessflow.NewEngagementAggregator(
		statRepo,
		postRepo,
		markerStore,
		cfg.Analytics,
	)
	trackingFlow := businessflow.NewTrackingFlow(
		visitorRegistry,
		sessionTracker,
		aggregator,
		postRepo,
		analyticsCache,
		cfg.Analytics,
	)
	trafficFlow := businessflow.NewTrafficFlow(
		sessionRepo,
		eventRepo,
		analyticsCache,
		cfg.Analytics,
	)
	blogAnalyticsFlow := businessflow.NewBlogAnalyticsFlow(
		statRepo,
		postRepo,
		visitorRepo,
		analyticsCache,
		cfg.Analytics,
	)
	adminAuthFlow := businessflow.NewAdminAuthFlow(adminRepo, tokenService, cfg.JWT.AccessTokenTTL)

	// Initialize handlers and router
	routerHandlers := router.Handlers{
		Track:     handlers.NewTrackHandler(trackingFlow),
		AdminAuth: handlers.NewAdminAuthHandler(adminAuthFlow),
		Traffic:   handlers.NewTrafficAdminHandler(trafficFlow),
		Blog:      handlers.NewBlogAnalyticsHandler(blogAnalyticsFlow),
	}
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(routerHandlers, authMiddleware, rateLimiter, cfg.Security)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// ensureAdminAccount seeds the dashboard operator account on first boot
func ensureAdminAccount(adminRepo repository.AdminRepository, cfg *config.ProductionConfig) error {
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := adminRepo.ByUsername(ctx, cfg.Admin.Username)
	if err != nil {
		return fmt.Errorf("failed to lookup admin account: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), cfg.Security.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     cfg.Admin.Username,
		Email:        cfg.Admin.Email,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}
	if err := adminRepo.Save(ctx, admin); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	log.Printf("Seeded admin account %q", cfg.Admin.Username)
	return nil
}
