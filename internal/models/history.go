package models

import "time"

// PriceHistory is an append-only record of a listing's price at a point in
// time. Rows are immutable once written; a new row is only created when the
// incoming price differs from the most recently recorded one.
type PriceHistory struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID  string    `gorm:"type:varchar(32);not null;index:idx_price_history_listing" json:"listing_id"`
	Price      int       `gorm:"type:int;not null" json:"price"`
	RecordedAt time.Time `gorm:"type:datetime;not null;index:idx_price_history_listing,priority:2" json:"recorded_at"`
}

// TableName specifies the table name
func (PriceHistory) TableName() string {
	return "price_history"
}

// StatusHistory is the append-only counterpart for status transitions.
type StatusHistory struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID  string    `gorm:"type:varchar(32);not null;index:idx_status_history_listing" json:"listing_id"`
	Status     string    `gorm:"type:varchar(20);not null" json:"status"`
	RecordedAt time.Time `gorm:"type:datetime;not null;index:idx_status_history_listing,priority:2" json:"recorded_at"`
}

// TableName specifies the table name
func (StatusHistory) TableName() string {
	return "status_history"
}
