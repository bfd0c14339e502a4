package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing-portal/internal/cleanup"
	"listing-portal/internal/config"
	"listing-portal/internal/database"
	"listing-portal/internal/enrich"
	"listing-portal/internal/handlers"
	"listing-portal/internal/history"
	"listing-portal/internal/query"
	"listing-portal/internal/ratelimit"
	"listing-portal/internal/scheduler"
	"listing-portal/internal/search"
	"listing-portal/internal/sync"
	"listing-portal/internal/upstream"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Missing .env is fine; containers set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := newLogger(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate schema")
	}

	if _, err := db.EnsureDataSource("provider", cfg.Upstream.BaseURL); err != nil {
		logger.WithError(err).Warn("Failed to record data source")
	}

	searchClient := search.NewClient(cfg.Search.Meilisearch, logger)
	if err := searchClient.InitIndex(); err != nil {
		logger.WithError(err).Warn("Search index unavailable at startup")
	}

	quota := ratelimit.NewQuotaLimiter(
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.RequestsPerHour,
		cfg.RateLimit.RequestsPerDay,
		cfg.RateLimit.Enabled,
	)
	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:       cfg.Upstream.BaseURL,
		APIKey:        cfg.Upstream.APIKey,
		Timeout:       cfg.Upstream.GetTimeout(),
		MaxRetries:    cfg.Upstream.MaxRetries,
		RetryDelay:    cfg.Upstream.GetRetryDelay(),
		PageSize:      cfg.Upstream.PageSize,
		RequestDelay:  cfg.Upstream.GetRequestDelay(),
		RequestJitter: cfg.Upstream.GetRequestJitter(),
	}, quota, logger)

	historyService := history.NewService(db.Gorm())
	orchestrator := sync.NewOrchestrator(db, client, historyService, cfg.Sync, logger)
	queryService := query.NewService(db, logger)
	cleanupService := cleanup.NewService(db, logger)

	enrichWorker := enrich.NewWorker(db, client,
		time.Duration(cfg.Sync.EnrichPollSeconds)*time.Second, logger)
	enrichWorker.Start()
	defer enrichWorker.Stop()

	sched := scheduler.New(db, orchestrator, searchClient, cleanupService, cfg.Sync, logger)
	if err := sched.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer sched.Stop()

	router := newRouter(cfg.Server)
	handlers.NewListingHandler(queryService, searchClient, logger).RegisterRoutes(router)
	handlers.NewAdminHandler(db, orchestrator, searchClient, cleanupService, enrichWorker, quota, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newRouter(cfg config.ServerConfig) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	return router
}
