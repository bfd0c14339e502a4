package search

import (
	"testing"
	"time"

	"listing-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestNewDocument(t *testing.T) {
	listedAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	l := models.Listing{
		ID:            "abc123",
		Slug:          "100-congress-ave-austin-tx-78701",
		StreetAddress: "100 Congress Ave",
		City:          "Austin",
		State:         "TX",
		Zip:           "78701",
		Price:         intp(500000),
		Status:        models.StatusActive,
		Subdivision:   "Downtown",
		Remarks:       "Corner unit with skyline views",
		ListedAt:      &listedAt,
		Media: []models.Media{
			{URL: "https://cdn.example.com/primary.jpg", Position: 0},
		},
	}

	doc := NewDocument(l)

	assert.Equal(t, "abc123", doc.ID)
	assert.Equal(t, "active", doc.Status)
	assert.Equal(t, "https://cdn.example.com/primary.jpg", doc.PhotoURL)
	assert.Equal(t, listedAt.Unix(), doc.ListedAt)
	assert.Contains(t, doc.SearchText, "Congress")
	assert.Contains(t, doc.SearchText, "Downtown")
	assert.Contains(t, doc.SearchText, "skyline")
}

func TestNewDocumentFallsBackToCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	l := models.Listing{ID: "x", CreatedAt: created}

	doc := NewDocument(l)
	assert.Equal(t, created.Unix(), doc.ListedAt)
	assert.Empty(t, doc.PhotoURL)
}

func TestBuildFilter(t *testing.T) {
	filter := buildFilter(Params{
		Status:   "Active",
		City:     "Austin",
		MinPrice: intp(100000),
		MaxPrice: intp(500000),
		MinBeds:  intp(3),
	})

	assert.Contains(t, filter, `status = "active"`)
	assert.Contains(t, filter, `city = "Austin"`)
	assert.Contains(t, filter, "price >= 100000")
	assert.Contains(t, filter, "price <= 500000")
	assert.Contains(t, filter, "beds >= 3")
	assert.Contains(t, filter, " AND ")

	assert.Empty(t, buildFilter(Params{}))
}

func TestSortExpr(t *testing.T) {
	assert.Equal(t, "price:asc", sortExpr("price_asc"))
	assert.Equal(t, "price:desc", sortExpr("price_desc"))
	assert.Equal(t, "listed_at:desc", sortExpr("date_desc"))
	assert.Equal(t, "", sortExpr("relevance"))
}

func TestDecodeHits(t *testing.T) {
	hits := []interface{}{
		map[string]interface{}{
			"id":     "abc",
			"city":   "Austin",
			"price":  float64(500000),
			"status": "active",
		},
	}

	docs, err := decodeHits(hits)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "abc", docs[0].ID)
	require.NotNil(t, docs[0].Price)
	assert.Equal(t, 500000, *docs[0].Price)
}
