package models

import "time"

// PurgeLog records listings physically deleted by the maintenance pass.
type PurgeLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID string    `gorm:"type:varchar(32);not null;index" json:"listing_id"`
	Address   string    `gorm:"type:text" json:"address"`
	City      string    `gorm:"type:varchar(100)" json:"city"`
	State     string    `gorm:"type:varchar(10)" json:"state"`
	Reason    string    `gorm:"type:varchar(50);not null" json:"reason"`
	PurgedAt  time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"purged_at"`
}

// TableName specifies the table name
func (PurgeLog) TableName() string {
	return "purge_logs"
}

// Purge reason constants
const (
	PurgeReasonInvalidAddress = "invalid_address"
	PurgeReasonManual         = "manual"
)
