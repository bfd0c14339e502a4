package enrich

import (
	"context"
	"errors"
	"time"

	"listing-portal/internal/database"
	"listing-portal/internal/models"
	"listing-portal/internal/upstream"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Detailer is the slice of the provider client the worker needs.
type Detailer interface {
	GetPropertyByID(ctx context.Context, id string) (*upstream.PropertyRecord, error)
}

// Worker drains the enrichment queue in the background: one by-id provider
// fetch per item, filling in the remarks and media the paged feed omits.
type Worker struct {
	db       *database.DB
	client   Detailer
	interval time.Duration
	logger   *logrus.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates an enrichment worker.
func NewWorker(db *database.DB, client Detailer, interval time.Duration, logger *logrus.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Worker{
		db:       db,
		client:   client,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the polling loop.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx)
	w.logger.WithField("interval", w.interval).Info("Enrichment worker started")
}

// Stop signals the loop and waits for the in-flight item to finish.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.logger.Info("Enrichment worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessNext(ctx); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				w.logger.WithError(err).Warn("Enrichment pass failed")
			}
		}
	}
}

// ProcessNext claims and processes the oldest due queue item. Returns
// gorm.ErrRecordNotFound when the queue has no due work.
func (w *Worker) ProcessNext(ctx context.Context) error {
	item, err := w.claim()
	if err != nil {
		return err
	}

	log := w.logger.WithFields(logrus.Fields{"listing": item.ListingID, "source": item.SourceID})

	record, err := w.client.GetPropertyByID(ctx, item.SourceID)
	switch {
	case upstream.IsNotFound(err):
		// The provider no longer has the record; retrying cannot help.
		log.Info("Provider record gone, abandoning enrichment")
		return w.finish(item, models.EnrichStatusPermanentFail, err.Error())

	case err != nil:
		return w.reschedule(item, err, log)
	}

	if err := w.apply(item.ListingID, record); err != nil {
		return w.reschedule(item, err, log)
	}

	log.Debug("Listing enriched")
	return w.finish(item, models.EnrichStatusDone, "")
}

// staleProcessingAge is how long an item may sit in processing before the
// worker that claimed it is assumed dead and the item becomes claimable
// again.
const staleProcessingAge = 15 * time.Minute

// claim atomically moves the oldest due pending item to processing. Items
// stranded in processing by a crashed worker are reclaimed once they go
// stale.
func (w *Worker) claim() (*models.EnrichmentQueue, error) {
	var item models.EnrichmentQueue
	now := time.Now()

	err := w.db.Gorm().Transaction(func(tx *gorm.DB) error {
		due := tx.Where("status IN ?", []string{models.EnrichStatusPending, models.EnrichStatusFailed}).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now)
		stale := tx.Where("status = ?", models.EnrichStatusProcessing).
			Where("updated_at <= ?", now.Add(-staleProcessingAge))

		err := tx.Where(due.Or(stale)).
			Order("created_at ASC").
			First(&item).Error
		if err != nil {
			return err
		}
		// Updating refreshes updated_at, restarting the staleness clock.
		return tx.Model(&item).Update("status", models.EnrichStatusProcessing).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// apply copies the detail record's extra fields onto the listing.
func (w *Worker) apply(listingID string, record *upstream.PropertyRecord) error {
	return w.db.Gorm().Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if record.Remarks != "" && listing.Remarks == "" {
			updates["remarks"] = record.Remarks
		}
		if record.YearBuilt != nil && listing.YearBuilt == nil {
			updates["year_built"] = *record.YearBuilt
		}
		if record.LotSize != nil && listing.LotSize == nil {
			updates["lot_size"] = *record.LotSize
		}
		if len(updates) > 0 {
			if err := tx.Model(&listing).Updates(updates).Error; err != nil {
				return err
			}
		}

		if len(record.Photos) == 0 {
			return nil
		}
		var existing int64
		if err := tx.Model(&models.Media{}).Where("listing_id = ?", listingID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		for i, photoURL := range record.Photos {
			m := models.Media{ListingID: listingID, URL: photoURL, Position: i}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Worker) finish(item *models.EnrichmentQueue, status, lastError string) error {
	now := time.Now()
	return w.db.Gorm().Model(item).Updates(map[string]interface{}{
		"status":       status,
		"last_error":   lastError,
		"completed_at": now,
	}).Error
}

// reschedule backs the item off, or abandons it after too many attempts.
func (w *Worker) reschedule(item *models.EnrichmentQueue, cause error, log *logrus.Entry) error {
	attempts := item.Attempts + 1
	if attempts >= models.MaxEnrichAttempts {
		log.WithError(cause).Warn("Enrichment gave up after repeated failures")
		return w.db.Gorm().Model(item).Updates(map[string]interface{}{
			"status":     models.EnrichStatusPermanentFail,
			"attempts":   attempts,
			"last_error": cause.Error(),
		}).Error
	}

	retryAt := time.Now().Add(models.NextEnrichRetryDelay(attempts))
	log.WithError(cause).WithField("retry_at", retryAt).Debug("Enrichment rescheduled")
	return w.db.Gorm().Model(item).Updates(map[string]interface{}{
		"status":        models.EnrichStatusFailed,
		"attempts":      attempts,
		"last_error":    cause.Error(),
		"next_retry_at": retryAt,
	}).Error
}

// QueueStats counts queue items by status.
func (w *Worker) QueueStats() (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := w.db.Gorm().Model(&models.EnrichmentQueue{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}
