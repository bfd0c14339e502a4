package sync

import (
	"listing-portal/internal/models"
)

// PriceBand is one bucket of the price distribution. Max is nil for the
// open-ended top bucket.
type PriceBand struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   *int   `json:"max,omitempty"`
	Count int64  `json:"count"`
}

// MarketStats summarizes the stored inventory for the admin stats endpoint.
type MarketStats struct {
	Total       int64            `json:"total"`
	Removed     int64            `json:"removed"`
	Cities      int64            `json:"cities"`
	ByStatus    map[string]int64 `json:"byStatus"`
	PriceBands  []PriceBand      `json:"priceBands"`
	Unpriced    int64            `json:"unpriced"`
	MediaCount  int64            `json:"mediaCount"`
	QueueDepth  int64            `json:"enrichQueueDepth"`
	LastRunDone string           `json:"lastRunFinishedAt,omitempty"`
}

// GetMarketStats computes inventory statistics over non-removed listings.
func (o *Orchestrator) GetMarketStats() (*MarketStats, error) {
	db := o.db.Gorm()
	stats := &MarketStats{ByStatus: make(map[string]int64)}

	if err := db.Model(&models.Listing{}).Where("removed = ?", false).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Listing{}).Where("removed = ?", true).Count(&stats.Removed).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Listing{}).Where("removed = ?", false).
		Distinct("LOWER(city)").Count(&stats.Cities).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	err := db.Model(&models.Listing{}).Where("removed = ?", false).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, sc := range byStatus {
		stats.ByStatus[sc.Status] = sc.Count
	}

	bands := []struct {
		label string
		min   int
		max   *int
	}{
		{"under_100k", 0, intPtr(100_000)},
		{"100k_250k", 100_000, intPtr(250_000)},
		{"250k_500k", 250_000, intPtr(500_000)},
		{"500k_1m", 500_000, intPtr(1_000_000)},
		{"over_1m", 1_000_000, nil},
	}
	for _, b := range bands {
		q := db.Model(&models.Listing{}).Where("removed = ? AND price >= ?", false, b.min)
		if b.max != nil {
			q = q.Where("price < ?", *b.max)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			return nil, err
		}
		stats.PriceBands = append(stats.PriceBands, PriceBand{
			Label: b.label, Min: b.min, Max: b.max, Count: count,
		})
	}

	if err := db.Model(&models.Listing{}).Where("removed = ? AND price IS NULL", false).
		Count(&stats.Unpriced).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Media{}).Count(&stats.MediaCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.EnrichmentQueue{}).
		Where("status = ?", models.EnrichStatusPending).
		Count(&stats.QueueDepth).Error; err != nil {
		return nil, err
	}

	var lastRun models.SyncRun
	err = db.Where("finished_at IS NOT NULL").
		Order("finished_at DESC").
		First(&lastRun).Error
	if err == nil && lastRun.FinishedAt != nil {
		stats.LastRunDone = lastRun.FinishedAt.Format("2006-01-02 15:04:05")
	}

	return stats, nil
}

func intPtr(v int) *int { return &v }
