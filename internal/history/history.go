package history

import (
	"errors"
	"time"

	"listing-portal/internal/models"

	"gorm.io/gorm"
)

// Service owns the append-only price and status history tables. Rows are
// never updated or deleted; a new row is written only when the incoming
// value differs from the most recently recorded one.
type Service struct {
	db *gorm.DB
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RecordPrice appends a price history row if price differs from the latest
// recorded value. Returns whether a row was written. The caller passes the
// transaction so the append and the listing overwrite commit as one unit.
func (s *Service) RecordPrice(tx *gorm.DB, listingID string, price int, at time.Time) (bool, error) {
	var last models.PriceHistory
	err := tx.Where("listing_id = ?", listingID).
		Order("recorded_at DESC, id DESC").
		First(&last).Error

	if err == nil && last.Price == price {
		return false, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	entry := models.PriceHistory{
		ListingID:  listingID,
		Price:      price,
		RecordedAt: at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, err
	}
	return true, nil
}

// RecordStatus appends a status history row if status differs from the
// latest recorded value. Returns whether a row was written.
func (s *Service) RecordStatus(tx *gorm.DB, listingID string, status models.ListingStatus, at time.Time) (bool, error) {
	var last models.StatusHistory
	err := tx.Where("listing_id = ?", listingID).
		Order("recorded_at DESC, id DESC").
		First(&last).Error

	if err == nil && last.Status == string(status) {
		return false, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	entry := models.StatusHistory{
		ListingID:  listingID,
		Status:     string(status),
		RecordedAt: at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, err
	}
	return true, nil
}

// PriceHistory returns a listing's price history, newest first.
func (s *Service) PriceHistory(listingID string, limit int) ([]models.PriceHistory, error) {
	var entries []models.PriceHistory
	q := s.db.Where("listing_id = ?", listingID).Order("recorded_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// StatusHistory returns a listing's status history, newest first.
func (s *Service) StatusHistory(listingID string, limit int) ([]models.StatusHistory, error) {
	var entries []models.StatusHistory
	q := s.db.Where("listing_id = ?", listingID).Order("recorded_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}
