package history

import (
	"fmt"
	"testing"
	"time"

	"listing-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PriceHistory{}, &models.StatusHistory{}))
	return NewService(db)
}

func TestRecordPriceAppendsOnlyOnChange(t *testing.T) {
	s := newTestService(t)
	now := time.Now()

	written, err := s.RecordPrice(s.db, "l1", 500000, now)
	require.NoError(t, err)
	assert.True(t, written)

	// Same price again: no new row.
	written, err = s.RecordPrice(s.db, "l1", 500000, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, written)

	written, err = s.RecordPrice(s.db, "l1", 480000, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, written)

	entries, err := s.PriceHistory("l1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 480000, entries[0].Price)
	assert.Equal(t, 500000, entries[1].Price)
}

func TestRecordPriceComparesAgainstLatestOnly(t *testing.T) {
	s := newTestService(t)
	now := time.Now()

	for i, price := range []int{500000, 480000, 500000} {
		written, err := s.RecordPrice(s.db, "l1", price, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.True(t, written, "price %d should append", price)
	}

	entries, err := s.PriceHistory("l1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecordStatusAppendsOnlyOnChange(t *testing.T) {
	s := newTestService(t)
	now := time.Now()

	written, err := s.RecordStatus(s.db, "l1", models.StatusActive, now)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.RecordStatus(s.db, "l1", models.StatusActive, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, written)

	written, err = s.RecordStatus(s.db, "l1", models.StatusPending, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, written)

	entries, err := s.StatusHistory("l1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(models.StatusPending), entries[0].Status)
}

func TestHistoryIsolatedPerListing(t *testing.T) {
	s := newTestService(t)
	now := time.Now()

	_, err := s.RecordPrice(s.db, "l1", 500000, now)
	require.NoError(t, err)
	written, err := s.RecordPrice(s.db, "l2", 500000, now)
	require.NoError(t, err)
	assert.True(t, written)

	entries, err := s.PriceHistory("l1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistoryLimit(t *testing.T) {
	s := newTestService(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := s.RecordPrice(s.db, "l1", 100000+i, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	entries, err := s.PriceHistory("l1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 100004, entries[0].Price)
}
