// ===========================================
// URL Shortener - Main Entry Point
// ===========================================
// Wires configuration, storage, cache, services and HTTP routes
// together, starts background jobs and handles graceful shutdown.
// Fail fast at startup: if a critical dependency is unreachable,
// crash immediately instead of serving broken requests.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/V1nSky/url-shortener/internal/cache"
	"github.com/V1nSky/url-shortener/internal/clickmeta"
	"github.com/V1nSky/url-shortener/internal/config"
	"github.com/V1nSky/url-shortener/internal/database"
	"github.com/V1nSky/url-shortener/internal/handler"
	"github.com/V1nSky/url-shortener/internal/middleware"
	"github.com/V1nSky/url-shortener/internal/repository"
	"github.com/V1nSky/url-shortener/internal/service"
	"github.com/V1nSky/url-shortener/internal/shortcode"
)

// Version is set at build time using ldflags.
// go build -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {
	// .env is optional; absence is the normal production case.
	_ = godotenv.Load()

	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)
	log.Info("starting url shortener", "version", Version, "port", cfg.Server.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ===========================================
	// PostgreSQL
	// ===========================================
	postgres, err := database.NewPostgresDB(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()
	log.Info("postgres connected")

	// ===========================================
	// Resolution Cache
	// ===========================================
	// The cache is advisory: either backend only ever saves the
	// registry a store read.
	var (
		resolutionCache cache.Cache
		cacheChecker    handler.HealthChecker
	)
	switch cfg.Shortener.CacheBackend {
	case "redis":
		redisCache, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		resolutionCache = redisCache
		cacheChecker = redisCache
		log.Info("redis cache connected")
	default:
		memoryCache := cache.NewMemory(cfg.Shortener.SweepInterval)
		defer memoryCache.Close()
		resolutionCache = memoryCache
		log.Info("in-memory cache initialized", "sweep_interval", cfg.Shortener.SweepInterval)
	}

	// ===========================================
	// Repositories, Services, Handlers
	// ===========================================
	linkRepo := repository.NewLinkRepository(postgres.Pool)
	clickRepo := repository.NewClickRepository(postgres.Pool)

	registry := service.NewRegistry(
		linkRepo,
		resolutionCache,
		shortcode.New(),
		clickmeta.HashIP,
		cfg.Shortener,
		log,
	)
	ingestor := service.NewIngestor(clickRepo, cfg.Analytics.QueueSize, cfg.Analytics.Workers, log)
	defer ingestor.Close()
	aggregator := service.NewAggregator(clickRepo)

	linkHandler := handler.NewLinkHandler(registry, ingestor, clickmeta.NewExtractor(nil))
	analyticsHandler := handler.NewAnalyticsHandler(registry, aggregator)
	healthHandler := handler.NewHealthHandler(postgres, cacheChecker, Version)

	// ===========================================
	// Router
	// ===========================================
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)

	// The redirect route is the hot path.
	router.GET("/:code", linkHandler.Redirect)

	api := router.Group("/api")
	{
		api.POST("/links", linkHandler.Create)
		api.GET("/links", linkHandler.List)
		api.GET("/links/:id", linkHandler.Get)
		api.PATCH("/links/:id", linkHandler.Update)
		api.DELETE("/links/:id", linkHandler.Delete)

		api.GET("/links/:id/stats", analyticsHandler.Summary)
		api.GET("/links/:id/clicks", analyticsHandler.Recent)
		api.GET("/links/:id/export", analyticsHandler.Export)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ===========================================
	// Background Jobs
	// ===========================================
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go runExpiryJob(bgCtx, linkRepo, cfg.Shortener.CleanupInterval, log)

	// ===========================================
	// Serve + Graceful Shutdown
	// ===========================================
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}

	bgCancel()

	// Deferred closes now drain the ingestor queue and stop the cache
	// sweep before the process exits.
	log.Info("server stopped")
}

// runExpiryJob periodically deactivates expired links in the store, so
// expiry is enforced even for links that are never resolved.
// Runs until the context is cancelled.
func runExpiryJob(ctx context.Context, repo *repository.LinkRepository, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("expiry job stopped")
			return
		case <-ticker.C:
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			count, err := repo.DeactivateExpired(jobCtx)
			cancel()

			if err != nil {
				log.Error("expiry job failed", "error", err)
			} else if count > 0 {
				log.Info("deactivated expired links", "count", count)
			}
		}
	}
}
