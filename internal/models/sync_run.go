package models

import "time"

// SyncRun records the state machine and counters of one per-scope sync pass.
type SyncRun struct {
	ID    string `gorm:"type:varchar(36);primaryKey" json:"id"`
	City  string `gorm:"type:varchar(100);not null;index:idx_sync_runs_scope" json:"city"`
	State string `gorm:"type:varchar(10);not null;index:idx_sync_runs_scope" json:"state"`
	Phase string `gorm:"type:varchar(20);not null;default:'idle'" json:"phase"`

	Fetched       int    `gorm:"not null;default:0" json:"fetched"`
	Inserted      int    `gorm:"not null;default:0" json:"inserted"`
	Updated       int    `gorm:"not null;default:0" json:"updated"`
	Skipped       int    `gorm:"not null;default:0" json:"skipped"`
	PriceChanges  int    `gorm:"not null;default:0" json:"price_changes"`
	StatusChanges int    `gorm:"not null;default:0" json:"status_changes"`
	SoftDeleted   int    `gorm:"not null;default:0" json:"soft_deleted"`
	Error         string `gorm:"type:text" json:"error,omitempty"`

	StartedAt  time.Time  `gorm:"type:datetime;not null;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:datetime" json:"finished_at,omitempty"`
}

// TableName specifies the table name
func (SyncRun) TableName() string {
	return "sync_runs"
}

// Run phases
const (
	PhaseIdle        = "idle"
	PhaseFetching    = "fetching"
	PhaseNormalizing = "normalizing"
	PhaseUpserting   = "upserting"
	PhaseReconciling = "reconciling"
	PhaseDone        = "done"
	PhaseFailed      = "failed"
)

// Finish marks the run terminal with the given phase.
func (r *SyncRun) Finish(phase string) {
	r.Phase = phase
	now := time.Now()
	r.FinishedAt = &now
}
