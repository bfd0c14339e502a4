package models

import "time"

// DataSource identifies the upstream provider a listing came from.
type DataSource struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"name"`
	BaseURL   string    `gorm:"type:varchar(255)" json:"base_url,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (DataSource) TableName() string {
	return "data_sources"
}

// Office is a brokerage office referenced by listings.
type Office struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Office) TableName() string {
	return "offices"
}

// Member is a listing agent referenced by listings.
type Member struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	OfficeID  *int64    `gorm:"type:bigint;index" json:"office_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Member) TableName() string {
	return "members"
}
