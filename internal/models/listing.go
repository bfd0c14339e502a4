package models

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
)

// Listing is the source-of-truth row for one property.
type Listing struct {
	ID       string `gorm:"type:varchar(32);primaryKey" json:"id"`
	SourceID string `gorm:"type:varchar(64);index" json:"source_id,omitempty"`
	Slug     string `gorm:"type:varchar(255);index" json:"slug"`

	// Address components
	StreetAddress string   `gorm:"type:varchar(255);not null" json:"street_address"`
	City          string   `gorm:"type:varchar(100);not null;index" json:"city"`
	State         string   `gorm:"type:varchar(10);not null;index" json:"state"`
	Zip           string   `gorm:"type:varchar(20)" json:"zip"`
	Latitude      *float64 `gorm:"type:decimal(10,7)" json:"latitude,omitempty"`
	Longitude     *float64 `gorm:"type:decimal(10,7)" json:"longitude,omitempty"`

	// Listing attributes
	Price        *int     `gorm:"type:int;index" json:"price,omitempty"`
	Beds         *int     `gorm:"type:int;index" json:"beds,omitempty"`
	Baths        *float64 `gorm:"type:decimal(4,1)" json:"baths,omitempty"`
	Sqft         *int     `gorm:"type:int" json:"sqft,omitempty"`
	LotSize      *int     `gorm:"type:int" json:"lot_size,omitempty"`
	YearBuilt    *int     `gorm:"type:int" json:"year_built,omitempty"`
	PropertyType string   `gorm:"type:varchar(50);index" json:"property_type,omitempty"`
	Subdivision  string   `gorm:"type:varchar(255)" json:"subdivision,omitempty"`
	Remarks      string   `gorm:"type:text" json:"remarks,omitempty"`

	Status   ListingStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	ListedAt *time.Time    `gorm:"type:datetime" json:"listed_at,omitempty"`

	// Reference rows upserted from record payloads
	OfficeID *int64 `gorm:"type:bigint;index" json:"office_id,omitempty"`
	MemberID *int64 `gorm:"type:bigint;index" json:"member_id,omitempty"`

	// Soft delete. A listing is removed after it has been absent from
	// enough consecutive sync passes, never on the first miss.
	Removed     bool       `gorm:"not null;default:false;index" json:"removed"`
	RemovedAt   *time.Time `gorm:"type:datetime" json:"removed_at,omitempty"`
	MissedSyncs int        `gorm:"not null;default:0" json:"missed_syncs"`

	LastSeenAt time.Time `gorm:"type:datetime;not null" json:"last_seen_at"`
	CreatedAt  time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`

	Media []Media `gorm:"foreignKey:ListingID" json:"media,omitempty"`
}

// ListingStatus is the market status reported by the upstream provider.
type ListingStatus string

const (
	StatusActive    ListingStatus = "active"
	StatusPending   ListingStatus = "pending"
	StatusSold      ListingStatus = "sold"
	StatusWithdrawn ListingStatus = "withdrawn"
	StatusExpired   ListingStatus = "expired"
)

// TableName specifies the table name
func (Listing) TableName() string {
	return "listings"
}

// IsRemoved reports whether the listing has been soft-deleted.
func (l *Listing) IsRemoved() bool {
	return l.Removed
}

// MarkRemoved soft-deletes the listing.
func (l *Listing) MarkRemoved() {
	l.Removed = true
	now := time.Now()
	l.RemovedAt = &now
}

// NaturalKey returns the combination used to recognize the same property
// across sync runs: the provider id when one exists, otherwise the full
// address components.
func NaturalKey(sourceID, street, city, state, zip string) string {
	if sourceID != "" {
		return strings.ToLower(sourceID)
	}
	parts := []string{street, city, state, zip}
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, "|")
}

// ListingID derives the stable primary key from the natural key, so a
// record maps to the same row on every sync pass.
func ListingID(sourceID, street, city, state, zip string) string {
	hash := md5.Sum([]byte(NaturalKey(sourceID, street, city, state, zip)))
	return fmt.Sprintf("%x", hash)
}
