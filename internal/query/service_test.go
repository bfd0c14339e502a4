package query

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"listing-portal/internal/database"
	"listing-portal/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := database.NewFromGorm(gdb)
	require.NoError(t, db.InitSchema())

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewService(db, log), db
}

func seedListings(t *testing.T, db *database.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		price := 100000 * (i + 1)
		l := models.Listing{
			ID:            fmt.Sprintf("l%03d", i),
			Slug:          fmt.Sprintf("slug-l%03d", i),
			StreetAddress: fmt.Sprintf("%d Main St", i),
			City:          "Austin",
			State:         "TX",
			Price:         &price,
			Status:        models.StatusActive,
			LastSeenAt:    time.Now(),
		}
		require.NoError(t, db.Gorm().Create(&l).Error)
	}
}

func TestGetListingsPaginationMath(t *testing.T) {
	const limit = 3

	cases := []struct {
		total      int
		offset     int
		wantPage   int
		wantPages  int
		wantOnPage int
	}{
		{total: 0, offset: 0, wantPage: 1, wantPages: 0, wantOnPage: 0},
		{total: 1, offset: 0, wantPage: 1, wantPages: 1, wantOnPage: 1},
		{total: limit, offset: 0, wantPage: 1, wantPages: 1, wantOnPage: limit},
		{total: limit + 1, offset: limit, wantPage: 2, wantPages: 2, wantOnPage: 1},
		{total: 2 * limit, offset: limit, wantPage: 2, wantPages: 2, wantOnPage: limit},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("total_%d_offset_%d", tc.total, tc.offset), func(t *testing.T) {
			svc, db := newTestService(t)
			seedListings(t, db, tc.total)

			page, err := svc.GetListings(Params{Limit: limit, Offset: tc.offset})
			require.NoError(t, err)

			assert.EqualValues(t, tc.total, page.TotalCount)
			assert.Equal(t, tc.wantPage, page.Page)
			assert.Equal(t, tc.wantPages, page.TotalPages)
			assert.Len(t, page.Listings, tc.wantOnPage)
		})
	}
}

func TestGetListingsDefaultsAndCaps(t *testing.T) {
	svc, db := newTestService(t)
	seedListings(t, db, 1)

	page, err := svc.GetListings(Params{Limit: -5, Offset: -10})
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 1, page.Page)

	page, err = svc.GetListings(Params{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
}

func TestGetListingMediaIDsAreStrings(t *testing.T) {
	svc, db := newTestService(t)
	seedListings(t, db, 1)

	// An id above 2^53 must survive JSON consumers; it is emitted as a
	// string.
	big := models.Media{
		ID:        int64(1) << 60,
		ListingID: "l000",
		URL:       "https://cdn.example.com/big.jpg",
		Position:  0,
	}
	require.NoError(t, db.Gorm().Create(&big).Error)

	detail, err := svc.GetListing("l000")
	require.NoError(t, err)
	require.Len(t, detail.Media, 1)
	assert.Equal(t, strconv.FormatInt(int64(1)<<60, 10), detail.Media[0].ID)

	parsed, err := strconv.ParseInt(detail.Media[0].ID, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, big.ID, parsed)
}

func TestGetListingDetail(t *testing.T) {
	svc, db := newTestService(t)
	seedListings(t, db, 1)

	now := time.Now()
	require.NoError(t, db.Gorm().Create(&models.PriceHistory{
		ListingID: "l000", Price: 90000, RecordedAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Gorm().Create(&models.PriceHistory{
		ListingID: "l000", Price: 100000, RecordedAt: now,
	}).Error)
	require.NoError(t, db.Gorm().Create(&models.StatusHistory{
		ListingID: "l000", Status: string(models.StatusActive), RecordedAt: now,
	}).Error)

	detail, err := svc.GetListing("slug-l000")
	require.NoError(t, err)

	assert.Equal(t, "l000", detail.ID)
	assert.Contains(t, detail.Address, "Austin")
	require.Len(t, detail.PriceHistory, 2)
	assert.Equal(t, 100000, detail.PriceHistory[0].Price)
	require.Len(t, detail.StatusHistory, 1)
	assert.Equal(t, string(models.StatusActive), detail.StatusHistory[0].Value)
}

func TestGetListingNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetListing("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetListingRemovedIsNotFound(t *testing.T) {
	svc, db := newTestService(t)
	l := models.Listing{
		ID:            "gone",
		Slug:          "slug-gone",
		StreetAddress: "1 Gone St",
		City:          "Austin",
		State:         "TX",
		Status:        models.StatusActive,
		Removed:       true,
		LastSeenAt:    time.Now(),
	}
	require.NoError(t, db.Gorm().Create(&l).Error)

	_, err := svc.GetListing("gone")
	assert.ErrorIs(t, err, ErrNotFound)
}
