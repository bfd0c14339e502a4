package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"listing-portal/internal/cleanup"
	"listing-portal/internal/config"
	"listing-portal/internal/database"
	"listing-portal/internal/search"
	"listing-portal/internal/sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler owns the recurring jobs: the daily sync pass, the periodic
// search index refresh and the weekly purge.
type Scheduler struct {
	cron         *cron.Cron
	db           *database.DB
	orchestrator *sync.Orchestrator
	search       *search.Client
	cleanup      *cleanup.Service
	cfg          config.SyncConfig
	logger       *logrus.Logger
}

// New creates a scheduler.
func New(
	db *database.DB,
	orchestrator *sync.Orchestrator,
	searchClient *search.Client,
	cleanupService *cleanup.Service,
	cfg config.SyncConfig,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		db:           db,
		orchestrator: orchestrator,
		search:       searchClient,
		cleanup:      cleanupService,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers the configured jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.cfg.DailyRunEnabled {
		spec, err := dailySpec(s.cfg.DailyRunTime)
		if err != nil {
			return err
		}
		if _, err := s.cron.AddFunc(spec, s.runDailySync); err != nil {
			return fmt.Errorf("failed to schedule daily sync: %w", err)
		}
		s.logger.WithField("time", s.cfg.DailyRunTime).Info("Daily sync scheduled")
	}

	refreshMinutes := s.cfg.SearchRefreshMinutes
	if refreshMinutes <= 0 {
		refreshMinutes = 15
	}
	spec := fmt.Sprintf("@every %dm", refreshMinutes)
	if _, err := s.cron.AddFunc(spec, s.refreshSearchIndex); err != nil {
		return fmt.Errorf("failed to schedule search refresh: %w", err)
	}
	s.logger.WithField("interval_minutes", refreshMinutes).Info("Search refresh scheduled")

	if s.cfg.WeeklyPurgeEnabled {
		// Sunday 03:30, after the daily sync window.
		if _, err := s.cron.AddFunc("30 3 * * 0", s.runWeeklyPurge); err != nil {
			return fmt.Errorf("failed to schedule weekly purge: %w", err)
		}
		s.logger.Info("Weekly purge scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runDailySync() {
	s.logger.Info("Daily sync starting")

	opts := sync.Options{
		SyncProperties: true,
		UpdateExisting: s.cfg.UpdateExisting,
		Limit:          s.cfg.Limit,
	}
	agg, err := s.orchestrator.SyncAllCities(context.Background(), s.cfg.Cities, opts)
	if errors.Is(err, sync.ErrSyncInProgress) {
		s.logger.Warn("Daily sync skipped, another sync is running")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Daily sync failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"succeeded": agg.Succeeded,
		"failed":    agg.Failed,
	}).Info("Daily sync finished")

	s.refreshSearchIndex()
}

func (s *Scheduler) refreshSearchIndex() {
	listings, err := s.db.GetActiveListingsWithMedia()
	if err != nil {
		s.logger.WithError(err).Error("Failed to load listings for index refresh")
		return
	}
	if err := s.search.Refresh(listings); err != nil {
		s.logger.WithError(err).Error("Search index refresh failed")
	}
}

func (s *Scheduler) runWeeklyPurge() {
	result, err := s.cleanup.Run(false)
	if err != nil {
		s.logger.WithError(err).Error("Weekly purge failed")
		return
	}
	s.logger.WithField("purged", result.Purged).Info("Weekly purge finished")
}

// dailySpec converts "HH:MM" into a cron expression.
func dailySpec(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid daily run time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in daily run time %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in daily run time %q", value)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
