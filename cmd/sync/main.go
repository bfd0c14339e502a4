package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"listing-portal/internal/config"
	"listing-portal/internal/database"
	"listing-portal/internal/history"
	"listing-portal/internal/ratelimit"
	"listing-portal/internal/sync"
	"listing-portal/internal/upstream"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// One-shot sync runner for operations and local development.
func main() {
	var (
		city     = flag.String("city", "", "city to sync")
		state    = flag.String("state", "", "state to sync")
		all      = flag.Bool("all", false, "sync every configured scope")
		limit    = flag.Int("limit", 0, "max records per scope (0 uses config)")
		update   = flag.Bool("update", true, "overwrite existing listings")
		listings = flag.Bool("listings", false, "seed missing prices from value estimates")
		cfgPath  = flag.String("config", "config.yaml", "config file path")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate schema")
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

	orchestrator := sync.NewOrchestrator(db, client, history.NewService(db.Gorm()), cfg.Sync, logger)

	opts := sync.Options{
		SyncProperties: true,
		SyncListings:   *listings,
		Limit:          *limit,
		UpdateExisting: *update,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	switch {
	case *all:
		agg, err := orchestrator.SyncAllCities(ctx, cfg.Sync.Cities, opts)
		if err != nil {
			logger.WithError(err).Fatal("Sync failed to start")
		}
		for _, r := range agg.Results {
			printResult(r)
		}
		if agg.Failed > 0 {
			os.Exit(1)
		}

	case *city != "" && *state != "":
		result, err := orchestrator.SyncCityData(ctx, *city, *state, opts)
		if err != nil {
			logger.WithError(err).Fatal("Sync failed to start")
		}
		printResult(result)
		if result.Err != nil {
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "usage: sync -city Austin -state TX | sync -all")
		os.Exit(2)
	}
}

func printResult(r *sync.CityResult) {
	if r.Err != nil {
		fmt.Printf("%s, %s: FAILED: %v\n", r.City, r.State, r.Err)
		return
	}
	fmt.Printf("%s, %s: fetched=%d inserted=%d updated=%d skipped=%d price_changes=%d status_changes=%d soft_deleted=%d\n",
		r.City, r.State, r.Fetched, r.Inserted, r.Updated, r.Skipped, r.PriceChanges, r.StatusChanges, r.SoftDeleted)
}
