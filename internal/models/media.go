package models

import "time"

// Media is one ordered photo reference belonging to a listing.
// Position is unique per listing; the lowest position is the primary photo.
type Media struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID string    `gorm:"type:varchar(32);not null;index;uniqueIndex:idx_media_listing_position" json:"listing_id"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	Position  int       `gorm:"not null;default:0;uniqueIndex:idx_media_listing_position" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Media
func (Media) TableName() string {
	return "media"
}

// IsPrimary returns true if this is the primary photo.
func (m *Media) IsPrimary() bool {
	return m.Position == 0
}
