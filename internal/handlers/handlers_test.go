package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"listing-portal/internal/cleanup"
	"listing-portal/internal/config"
	"listing-portal/internal/database"
	"listing-portal/internal/enrich"
	"listing-portal/internal/history"
	"listing-portal/internal/models"
	"listing-portal/internal/query"
	"listing-portal/internal/search"
	"listing-portal/internal/sync"
	"listing-portal/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubProvider struct {
	records []upstream.PropertyRecord
}

func (s *stubProvider) GetPropertyRecords(context.Context, upstream.Filters, int) ([]upstream.PropertyRecord, error) {
	return s.records, nil
}

func (s *stubProvider) GetPropertyByID(context.Context, string) (*upstream.PropertyRecord, error) {
	return nil, upstream.ErrNotFound
}

func (s *stubProvider) GetValuation(context.Context, string, string, string) upstream.Valuation {
	return upstream.Valuation{}
}

type testEnv struct {
	router *gin.Engine
	db     *database.DB
}

func newTestEnv(t *testing.T, provider *stubProvider) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := database.NewFromGorm(gdb)
	require.NoError(t, db.InitSchema())

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	searchClient := search.NewClient(config.MeilisearchConfig{Host: "http://127.0.0.1:1"}, log)
	orchestrator := sync.NewOrchestrator(db, provider, history.NewService(db.Gorm()),
		config.SyncConfig{MissedSyncThreshold: 3, Limit: 100}, log)
	worker := enrich.NewWorker(db, provider, time.Minute, log)

	router := gin.New()
	NewListingHandler(query.NewService(db, log), searchClient, log).RegisterRoutes(router)
	NewAdminHandler(db, orchestrator, searchClient, cleanup.NewService(db, log), worker, nil, log).RegisterRoutes(router)

	return &testEnv{router: router, db: db}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func seedListing(t *testing.T, db *database.DB, id string, price int) {
	t.Helper()
	l := models.Listing{
		ID:            id,
		Slug:          "slug-" + id,
		StreetAddress: "1 Main St",
		City:          "Austin",
		State:         "TX",
		Price:         &price,
		Status:        models.StatusActive,
		LastSeenAt:    time.Now(),
	}
	require.NoError(t, db.Gorm().Create(&l).Error)
}

func TestGetListingsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	seedListing(t, env.db, "l1", 400000)
	seedListing(t, env.db, "l2", 600000)

	rec := env.get(t, "/api/listings?minPrice=500000")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.TotalCount)
	require.Len(t, page.Listings, 1)
	assert.Equal(t, "l2", page.Listings[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
}

func TestGetListingEndpointByIDAndSlug(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	seedListing(t, env.db, "l1", 400000)

	rec := env.get(t, "/api/listings/l1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.get(t, "/api/listings/slug-l1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.get(t, "/api/listings/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	seedListing(t, env.db, "l1", 400000)
	require.NoError(t, env.db.Gorm().Create(&models.PriceHistory{
		ListingID: "l1", Price: 400000, RecordedAt: time.Now(),
	}).Error)

	rec := env.get(t, "/api/listings/l1/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID           string            `json:"id"`
		PriceHistory []query.PriceView `json:"priceHistory"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "l1", body.ID)
	require.Len(t, body.PriceHistory, 1)
}

func TestTriggerSyncAction(t *testing.T) {
	provider := &stubProvider{records: []upstream.PropertyRecord{{
		ID:           "p-1",
		AddressLine1: "100 Congress Ave",
		City:         "Austin",
		State:        "TX",
		Status:       "Active",
	}}}
	env := newTestEnv(t, provider)

	rec := env.post(t, "/api/admin/trigger", gin.H{
		"action":         "sync",
		"cities":         []gin.H{{"city": "Austin", "state": "TX"}},
		"updateExisting": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Succeeded int      `json:"succeeded"`
		Failed    int      `json:"failed"`
		Summary   []string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Succeeded)
	assert.Equal(t, 0, body.Failed)
	require.Len(t, body.Summary, 1)
	assert.Contains(t, body.Summary[0], "Austin")

	var count int64
	require.NoError(t, env.db.Gorm().Model(&models.Listing{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTriggerRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})

	rec := env.post(t, "/api/admin/trigger", gin.H{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/api/admin/trigger", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	seedListing(t, env.db, "l1", 400000)

	rec := env.get(t, "/api/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Market struct {
			Total int64 `json:"total"`
		} `json:"market"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body.Market.Total)
}

func TestAdminRunsEndpoint(t *testing.T) {
	provider := &stubProvider{}
	env := newTestEnv(t, provider)

	rec := env.post(t, "/api/admin/trigger", gin.H{
		"action": "sync",
		"cities": []gin.H{{"city": "Austin", "state": "TX"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.get(t, "/api/admin/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []models.SyncRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, models.PhaseDone, body.Runs[0].Phase)
}

func TestCleanupEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	seedListing(t, env.db, "ok", 400000)

	invalid := models.Listing{
		ID:         "bad",
		Slug:       "slug-bad",
		City:       "Austin",
		State:      "TX",
		Status:     models.StatusActive,
		LastSeenAt: time.Now(),
	}
	require.NoError(t, env.db.Gorm().Create(&invalid).Error)

	rec := env.post(t, "/api/admin/cleanup/run?dry_run=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result cleanup.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Purged)

	rec = env.get(t, "/api/admin/cleanup/logs")
	require.Equal(t, http.StatusOK, rec.Code)

	var logsBody struct {
		Logs []models.PurgeLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logsBody))
	require.Len(t, logsBody.Logs, 1)
	assert.Equal(t, "bad", logsBody.Logs[0].ListingID)
}
