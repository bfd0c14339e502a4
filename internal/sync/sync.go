package sync

import (
	"context"
	"errors"
	"strings"
	gosync "sync"
	"time"

	"listing-portal/internal/config"
	"listing-portal/internal/database"
	"listing-portal/internal/history"
	"listing-portal/internal/models"
	"listing-portal/internal/upstream"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrSyncInProgress is returned when a sync is triggered while another run
// holds the orchestrator.
var ErrSyncInProgress = errors.New("sync already in progress")

// Fetcher is the slice of the provider client the orchestrator needs.
type Fetcher interface {
	GetPropertyRecords(ctx context.Context, f upstream.Filters, cap int) ([]upstream.PropertyRecord, error)
	GetValuation(ctx context.Context, address, city, state string) upstream.Valuation
}

// Orchestrator drives per-city sync passes: fetch, normalize, upsert,
// reconcile. At most one pass runs at a time.
type Orchestrator struct {
	db      *database.DB
	client  Fetcher
	history *history.Service
	cfg     config.SyncConfig
	logger  *logrus.Logger
	mu      gosync.Mutex
}

// Options control one sync pass. The zero value syncs property records only.
type Options struct {
	// SyncProperties syncs the property records themselves. Defaults to
	// true when neither flag is set.
	SyncProperties bool
	// SyncListings additionally requests a value estimate for records that
	// arrive without a price and seeds the price from it.
	SyncListings bool
	// Limit caps the number of records fetched per scope. 0 falls back to
	// the configured limit.
	Limit int
	// UpdateExisting overwrites mutable fields of known listings. When
	// false, known listings only refresh their last-seen bookkeeping.
	UpdateExisting bool
}

// CityResult carries the counters of one per-scope pass.
type CityResult struct {
	RunID string `json:"runId"`
	City  string `json:"city"`
	State string `json:"state"`

	Fetched       int `json:"fetched"`
	Inserted      int `json:"inserted"`
	Updated       int `json:"updated"`
	Skipped       int `json:"skipped"`
	Errored       int `json:"errored"`
	PriceChanges  int `json:"priceChanges"`
	StatusChanges int `json:"statusChanges"`
	SoftDeleted   int `json:"softDeleted"`

	Err error `json:"-"`
}

// AggregateResult summarizes a multi-scope pass.
type AggregateResult struct {
	Results   []*CityResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(db *database.DB, client Fetcher, hist *history.Service, cfg config.SyncConfig, logger *logrus.Logger) *Orchestrator {
	if cfg.MissedSyncThreshold <= 0 {
		cfg.MissedSyncThreshold = 3
	}
	return &Orchestrator{
		db:      db,
		client:  client,
		history: hist,
		cfg:     cfg,
		logger:  logger,
	}
}

// SyncCityData runs one pass for a single scope. Returns ErrSyncInProgress
// if another pass holds the orchestrator.
func (o *Orchestrator) SyncCityData(ctx context.Context, city, state string, opts Options) (*CityResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.mu.Unlock()

	return o.syncCity(ctx, city, state, opts), nil
}

// SyncAllCities runs one pass per scope. A failing scope is recorded and the
// remaining scopes still run.
func (o *Orchestrator) SyncAllCities(ctx context.Context, scopes []config.CityScope, opts Options) (*AggregateResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.mu.Unlock()

	if len(scopes) == 0 {
		scopes = o.cfg.Cities
	}

	agg := &AggregateResult{}
	for _, scope := range scopes {
		result := o.syncCity(ctx, scope.City, scope.State, opts)
		agg.Results = append(agg.Results, result)
		if result.Err != nil {
			agg.Failed++
		} else {
			agg.Succeeded++
		}
	}
	return agg, nil
}

// RecentRuns returns the latest sync runs, newest first.
func (o *Orchestrator) RecentRuns(limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := o.db.Gorm().Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (o *Orchestrator) syncCity(ctx context.Context, city, state string, opts Options) *CityResult {
	if !opts.SyncProperties && !opts.SyncListings {
		opts.SyncProperties = true
	}
	if opts.Limit <= 0 {
		opts.Limit = o.cfg.Limit
	}

	run := &models.SyncRun{
		ID:        uuid.NewString(),
		City:      city,
		State:     state,
		Phase:     models.PhaseIdle,
		StartedAt: time.Now(),
	}
	result := &CityResult{RunID: run.ID, City: city, State: state}

	if err := o.db.Gorm().Create(run).Error; err != nil {
		result.Err = err
		return result
	}

	log := o.logger.WithFields(logrus.Fields{"run": run.ID, "city": city, "state": state})
	log.Info("Starting sync")

	records, err := o.fetch(ctx, run, city, state, opts)
	if err != nil {
		return o.fail(run, result, err, log)
	}
	result.Fetched = len(records)
	run.Fetched = len(records)

	normalized := o.normalize(run, records, result, log)

	seen, err := o.upsert(ctx, run, normalized, opts, result, log)
	if err != nil {
		return o.fail(run, result, err, log)
	}

	capped := opts.Limit > 0 && len(records) >= opts.Limit
	if err := o.reconcile(run, city, state, seen, capped, result); err != nil {
		return o.fail(run, result, err, log)
	}

	run.Finish(models.PhaseDone)
	if err := o.db.Gorm().Save(run).Error; err != nil {
		result.Err = err
		return result
	}

	log.WithFields(logrus.Fields{
		"fetched":      result.Fetched,
		"inserted":     result.Inserted,
		"updated":      result.Updated,
		"skipped":      result.Skipped,
		"soft_deleted": result.SoftDeleted,
	}).Info("Sync complete")
	return result
}

func (o *Orchestrator) fetch(ctx context.Context, run *models.SyncRun, city, state string, opts Options) ([]upstream.PropertyRecord, error) {
	o.advance(run, models.PhaseFetching)
	return o.client.GetPropertyRecords(ctx, upstream.Filters{City: city, State: state}, opts.Limit)
}

type normalizedRecord struct {
	listing *models.Listing
	media   []models.Media
	source  upstream.PropertyRecord
}

func (o *Orchestrator) normalize(run *models.SyncRun, records []upstream.PropertyRecord, result *CityResult, log *logrus.Entry) []normalizedRecord {
	o.advance(run, models.PhaseNormalizing)

	normalized := make([]normalizedRecord, 0, len(records))
	for _, rec := range records {
		listing, media, err := NormalizeRecord(rec)
		if err != nil {
			result.Skipped++
			run.Skipped++
			log.WithError(err).WithField("source_id", rec.ID).Debug("Skipping invalid record")
			continue
		}
		normalized = append(normalized, normalizedRecord{listing: listing, media: media, source: rec})
	}
	return normalized
}

func (o *Orchestrator) upsert(ctx context.Context, run *models.SyncRun, records []normalizedRecord, opts Options, result *CityResult, log *logrus.Entry) (map[string]bool, error) {
	o.advance(run, models.PhaseUpserting)

	seen := make(map[string]bool, len(records))
	for _, nr := range records {
		o.attachReferences(nr.listing, nr.source, log)

		outcome, err := o.upsertRecord(nr, opts.UpdateExisting)
		if err != nil {
			result.Errored++
			log.WithError(err).WithField("listing", nr.listing.ID).Error("Failed to upsert listing")
			continue
		}
		seen[nr.listing.ID] = true

		switch outcome.kind {
		case upsertInserted:
			result.Inserted++
			run.Inserted++
		case upsertUpdated:
			result.Updated++
			run.Updated++
		case upsertSkipped:
			result.Skipped++
			run.Skipped++
		}
		if outcome.priceChanged {
			result.PriceChanges++
			run.PriceChanges++
		}
		if outcome.statusChanged {
			result.StatusChanges++
			run.StatusChanges++
		}

		if opts.SyncListings && nr.listing.Price == nil {
			if changed := o.seedValuation(ctx, nr.listing, log); changed {
				result.PriceChanges++
				run.PriceChanges++
			}
		}
	}
	return seen, nil
}

type upsertKind int

const (
	upsertInserted upsertKind = iota
	upsertUpdated
	upsertSkipped
)

type upsertOutcome struct {
	kind          upsertKind
	priceChanged  bool
	statusChanged bool
}

// upsertRecord writes one listing inside a transaction so history rows and
// the field overwrite commit together. History is appended before the
// overwrite; inserts seed the history with the initial values.
func (o *Orchestrator) upsertRecord(nr normalizedRecord, updateExisting bool) (upsertOutcome, error) {
	var outcome upsertOutcome
	now := time.Now()

	err := o.db.Gorm().Transaction(func(tx *gorm.DB) error {
		var existing models.Listing
		err := tx.Where("id = ?", nr.listing.ID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			outcome.kind = upsertInserted
			return o.insertListing(tx, nr, now)

		case err != nil:
			return err

		case !updateExisting:
			outcome.kind = upsertSkipped
			// Still a sighting: reset the missed counter and resurrect
			// a soft-deleted row.
			return tx.Model(&existing).Updates(map[string]interface{}{
				"last_seen_at": now,
				"missed_syncs": 0,
				"removed":      false,
				"removed_at":   nil,
			}).Error

		default:
			outcome.kind = upsertUpdated
			var uerr error
			outcome.priceChanged, outcome.statusChanged, uerr = o.updateListing(tx, &existing, nr, now)
			return uerr
		}
	})

	return outcome, err
}

func (o *Orchestrator) insertListing(tx *gorm.DB, nr normalizedRecord, now time.Time) error {
	nr.listing.LastSeenAt = now
	if err := tx.Create(nr.listing).Error; err != nil {
		return err
	}

	for i := range nr.media {
		if err := tx.Create(&nr.media[i]).Error; err != nil {
			return err
		}
	}

	// Seed history with the initial values so later change detection has a
	// baseline.
	if nr.listing.Price != nil {
		if _, err := o.history.RecordPrice(tx, nr.listing.ID, *nr.listing.Price, now); err != nil {
			return err
		}
	}
	if _, err := o.history.RecordStatus(tx, nr.listing.ID, nr.listing.Status, now); err != nil {
		return err
	}

	return o.enqueueEnrichment(tx, nr)
}

func (o *Orchestrator) updateListing(tx *gorm.DB, existing *models.Listing, nr normalizedRecord, now time.Time) (priceChanged, statusChanged bool, err error) {
	incoming := nr.listing

	if incoming.Price != nil {
		priceChanged, err = o.history.RecordPrice(tx, existing.ID, *incoming.Price, now)
		if err != nil {
			return false, false, err
		}
	}
	statusChanged, err = o.history.RecordStatus(tx, existing.ID, incoming.Status, now)
	if err != nil {
		return false, false, err
	}

	// Keep enrichment results when the batch feed omits them.
	if incoming.Remarks == "" {
		incoming.Remarks = existing.Remarks
	}
	// A record arriving without a price keeps the stored one (including
	// valuation-seeded prices); prices only move through an explicit new
	// value, which also guarantees a history row precedes every overwrite.
	if incoming.Price == nil {
		incoming.Price = existing.Price
	}

	incoming.CreatedAt = existing.CreatedAt
	incoming.LastSeenAt = now
	incoming.MissedSyncs = 0
	incoming.Removed = false
	incoming.RemovedAt = nil
	if err := tx.Save(incoming).Error; err != nil {
		return false, false, err
	}

	if len(nr.media) > 0 {
		if err := tx.Where("listing_id = ?", existing.ID).Delete(&models.Media{}).Error; err != nil {
			return false, false, err
		}
		for i := range nr.media {
			if err := tx.Create(&nr.media[i]).Error; err != nil {
				return false, false, err
			}
		}
	}

	return priceChanged, statusChanged, nil
}

// enqueueEnrichment queues a detail fetch for records the batch feed left
// thin. The unique index on listing_id makes re-queueing a no-op.
func (o *Orchestrator) enqueueEnrichment(tx *gorm.DB, nr normalizedRecord) error {
	if nr.source.ID == "" {
		return nil
	}
	if nr.listing.Remarks != "" && len(nr.media) > 0 {
		return nil
	}

	item := models.EnrichmentQueue{
		ListingID: nr.listing.ID,
		SourceID:  nr.source.ID,
		Status:    models.EnrichStatusPending,
	}
	return tx.Where(models.EnrichmentQueue{ListingID: nr.listing.ID}).
		FirstOrCreate(&item).Error
}

// attachReferences upserts office and agent reference rows and links them.
func (o *Orchestrator) attachReferences(listing *models.Listing, rec upstream.PropertyRecord, log *logrus.Entry) {
	if rec.ListingOffice != nil && rec.ListingOffice.Name != "" {
		office, err := o.db.GetOrCreateOffice(rec.ListingOffice.Name, rec.ListingOffice.Phone)
		if err != nil {
			log.WithError(err).Warn("Failed to upsert office")
		} else {
			listing.OfficeID = &office.ID
		}
	}
	if rec.ListingAgent != nil && rec.ListingAgent.Name != "" {
		member, err := o.db.GetOrCreateMember(rec.ListingAgent.Name, rec.ListingAgent.Phone, listing.OfficeID)
		if err != nil {
			log.WithError(err).Warn("Failed to upsert agent")
		} else {
			listing.MemberID = &member.ID
		}
	}
}

// seedValuation fills a missing price from the provider's value estimate.
func (o *Orchestrator) seedValuation(ctx context.Context, listing *models.Listing, log *logrus.Entry) bool {
	v := o.client.GetValuation(ctx, listing.StreetAddress, listing.City, listing.State)
	if v.ValueErr != nil {
		log.WithError(v.ValueErr).WithField("listing", listing.ID).Debug("Value estimate unavailable")
		return false
	}
	if v.Value == nil || v.Value.Price <= 0 {
		return false
	}

	price := v.Value.Price
	now := time.Now()
	changed := false

	err := o.db.Gorm().Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = o.history.RecordPrice(tx, listing.ID, price, now)
		if err != nil {
			return err
		}
		return tx.Model(&models.Listing{}).Where("id = ?", listing.ID).
			Update("price", price).Error
	})
	if err != nil {
		log.WithError(err).WithField("listing", listing.ID).Warn("Failed to seed estimated price")
		return false
	}

	listing.Price = &price
	return changed
}

// reconcile bumps the missed counter for scoped listings absent from this
// pass and soft-deletes the ones that crossed the threshold.
func (o *Orchestrator) reconcile(run *models.SyncRun, city, state string, seen map[string]bool, capped bool, result *CityResult) error {
	o.advance(run, models.PhaseReconciling)

	// A capped fetch has not observed the whole scope, so absence from it is
	// not evidence of removal.
	if capped {
		return nil
	}

	scope := o.db.Gorm().Model(&models.Listing{}).
		Where("removed = ?", false).
		Where("LOWER(city) = ? AND state = ?", strings.ToLower(city), strings.ToUpper(state))

	if len(seen) > 0 {
		ids := make([]string, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		scope = scope.Where("id NOT IN ?", ids)
	}

	if err := scope.Update("missed_syncs", gorm.Expr("missed_syncs + 1")).Error; err != nil {
		return err
	}

	now := time.Now()
	res := o.db.Gorm().Model(&models.Listing{}).
		Where("removed = ? AND LOWER(city) = ? AND state = ? AND missed_syncs >= ?",
			false, strings.ToLower(city), strings.ToUpper(state), o.cfg.MissedSyncThreshold).
		Updates(map[string]interface{}{
			"removed":    true,
			"removed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}

	result.SoftDeleted = int(res.RowsAffected)
	run.SoftDeleted = int(res.RowsAffected)
	return nil
}

// advance persists a phase transition. Persistence failures are logged but
// never abort the pass.
func (o *Orchestrator) advance(run *models.SyncRun, phase string) {
	run.Phase = phase
	if err := o.db.Gorm().Save(run).Error; err != nil {
		o.logger.WithError(err).WithField("run", run.ID).Warn("Failed to persist run phase")
	}
}

func (o *Orchestrator) fail(run *models.SyncRun, result *CityResult, err error, log *logrus.Entry) *CityResult {
	result.Err = err
	run.Error = err.Error()
	run.Finish(models.PhaseFailed)
	if serr := o.db.Gorm().Save(run).Error; serr != nil {
		log.WithError(serr).Warn("Failed to persist failed run")
	}
	log.WithError(err).Error("Sync failed")
	return result
}
