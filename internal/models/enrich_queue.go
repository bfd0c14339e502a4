package models

import "time"

// EnrichmentQueue holds listings waiting for a by-id deep fetch that fills
// in remarks and media the paged records endpoint does not carry. Deferring
// these keeps the per-scope sync within the provider's rate limits.
type EnrichmentQueue struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID   string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"listing_id"`
	SourceID    string     `gorm:"type:varchar(64);not null" json:"source_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `gorm:"index" json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (EnrichmentQueue) TableName() string {
	return "enrichment_queue"
}

// Queue status constants
const (
	EnrichStatusPending       = "pending"
	EnrichStatusProcessing    = "processing"
	EnrichStatusDone          = "done"
	EnrichStatusFailed        = "failed"
	EnrichStatusPermanentFail = "permanent_fail" // upstream no longer has the record
)

// MaxEnrichAttempts before marking an item permanently failed.
const MaxEnrichAttempts = 5

// NextEnrichRetryDelay returns the backoff before the next attempt.
func NextEnrichRetryDelay(attempts int) time.Duration {
	delays := []time.Duration{
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
		12 * time.Hour,
	}

	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
