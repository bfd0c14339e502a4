package cleanup

import (
	"fmt"

	"listing-portal/internal/database"
	"listing-portal/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxPurgePerRun caps one pass so a bad predicate cannot empty the table.
const maxPurgePerRun = 200

// Service physically removes structurally broken listing rows (missing
// address components) together with their dependents, leaving an audit row
// per purge. Soft-deleted rows are not its business; they stay.
type Service struct {
	db     *database.DB
	logger *logrus.Logger
}

// NewService creates a cleanup service.
func NewService(db *database.DB, logger *logrus.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Result summarizes one cleanup pass.
type Result struct {
	Candidates int      `json:"candidates"`
	Purged     int      `json:"purged"`
	DryRun     bool     `json:"dryRun"`
	Sample     []string `json:"sample,omitempty"`
}

// Run purges invalid rows. With dryRun set it only reports what would go.
func (s *Service) Run(dryRun bool) (*Result, error) {
	var candidates []models.Listing
	err := s.db.Gorm().
		Where("street_address = '' OR city = '' OR state = ''").
		Limit(maxPurgePerRun + 1).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find purge candidates: %w", err)
	}

	result := &Result{Candidates: len(candidates), DryRun: dryRun}
	if len(candidates) > maxPurgePerRun {
		s.logger.Warnf("Purge candidate count exceeds cap (%d), truncating to %d", len(candidates), maxPurgePerRun)
		candidates = candidates[:maxPurgePerRun]
	}

	for _, l := range candidates {
		if len(result.Sample) < 10 {
			result.Sample = append(result.Sample, l.ID)
		}
		if dryRun {
			continue
		}
		if err := s.purge(l, models.PurgeReasonInvalidAddress); err != nil {
			s.logger.WithError(err).WithField("listing", l.ID).Error("Failed to purge listing")
			continue
		}
		result.Purged++
	}

	if !dryRun && result.Purged > 0 {
		s.logger.WithField("purged", result.Purged).Info("Cleanup pass complete")
	}
	return result, nil
}

// PurgeListing removes one listing by id regardless of validity. Used by the
// manual admin path.
func (s *Service) PurgeListing(id string) error {
	var listing models.Listing
	if err := s.db.Gorm().Where("id = ?", id).First(&listing).Error; err != nil {
		return err
	}
	return s.purge(listing, models.PurgeReasonManual)
}

// purge deletes a listing and its dependents in one transaction and writes
// the audit row.
func (s *Service) purge(listing models.Listing, reason string) error {
	return s.db.Gorm().Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []interface{}{
			&models.Media{},
			&models.PriceHistory{},
			&models.StatusHistory{},
			&models.EnrichmentQueue{},
		} {
			if err := tx.Where("listing_id = ?", listing.ID).Delete(dependent).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.Listing{}, "id = ?", listing.ID).Error; err != nil {
			return err
		}

		entry := models.PurgeLog{
			ListingID: listing.ID,
			Address:   listing.StreetAddress,
			City:      listing.City,
			State:     listing.State,
			Reason:    reason,
		}
		return tx.Create(&entry).Error
	})
}

// RecentLogs returns the latest purge audit rows, newest first.
func (s *Service) RecentLogs(limit int) ([]models.PurgeLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.PurgeLog
	err := s.db.Gorm().Order("purged_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
