package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"listing-portal/internal/config"
	"listing-portal/internal/models"

	"github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const (
	indexName    = "listings"
	documentsPer = 1000
)

// Client wraps the Meilisearch connection and owns the listings index: its
// settings, its refresh paths and the query side.
type Client struct {
	client *meilisearch.Client
	logger *logrus.Logger
}

// NewClient creates a Meilisearch client.
func NewClient(cfg config.MeilisearchConfig, logger *logrus.Logger) *Client {
	return &Client{
		client: meilisearch.NewClient(meilisearch.ClientConfig{
			Host:   cfg.Host,
			APIKey: cfg.APIKey,
		}),
		logger: logger,
	}
}

// Health checks connectivity to the search engine.
func (c *Client) Health() error {
	if _, err := c.client.Health(); err != nil {
		return fmt.Errorf("meilisearch unreachable: %w", err)
	}
	return nil
}

// InitIndex ensures the listings index exists with the expected settings.
// Safe to call on every startup.
func (c *Client) InitIndex() error {
	task, err := c.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        indexName,
		PrimaryKey: "id",
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	// An already_exists failure from the task is fine.
	if _, err := c.client.WaitForTask(task.TaskUID); err != nil {
		c.logger.WithError(err).Debug("Create index task did not succeed (index may already exist)")
	}

	return c.applySettings(c.client.Index(indexName))
}

func (c *Client) applySettings(index *meilisearch.Index) error {
	if _, err := index.UpdateSearchableAttributes(&[]string{
		"search_text",
		"street_address",
		"city",
		"subdivision",
	}); err != nil {
		return fmt.Errorf("failed to set searchable attributes: %w", err)
	}

	if _, err := index.UpdateFilterableAttributes(&[]string{
		"status",
		"city",
		"state",
		"zip",
		"property_type",
		"price",
		"beds",
		"baths",
	}); err != nil {
		return fmt.Errorf("failed to set filterable attributes: %w", err)
	}

	task, err := index.UpdateSortableAttributes(&[]string{
		"price",
		"listed_at",
	})
	if err != nil {
		return fmt.Errorf("failed to set sortable attributes: %w", err)
	}
	// Settings tasks apply in order; waiting for the last one covers all
	// three.
	if _, err := c.client.WaitForTask(task.TaskUID); err != nil {
		return fmt.Errorf("index settings task failed: %w", err)
	}
	return nil
}

// Rebuild refreshes the index without blocking readers: documents are loaded
// into a staging index which is then atomically swapped into place.
func (c *Client) Rebuild(listings []models.Listing) error {
	stagingUID := indexName + "_staging"

	// Stale staging index from an interrupted rebuild.
	if task, err := c.client.DeleteIndex(stagingUID); err == nil {
		c.client.WaitForTask(task.TaskUID)
	}

	task, err := c.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        stagingUID,
		PrimaryKey: "id",
	})
	if err != nil {
		return fmt.Errorf("failed to create staging index: %w", err)
	}
	if _, err := c.client.WaitForTask(task.TaskUID); err != nil {
		return fmt.Errorf("staging index task failed: %w", err)
	}

	staging := c.client.Index(stagingUID)
	if err := c.applySettings(staging); err != nil {
		return err
	}
	if err := c.loadDocuments(staging, listings); err != nil {
		return err
	}

	swap, err := c.client.SwapIndexes([]meilisearch.SwapIndexesParams{
		{Indexes: []string{indexName, stagingUID}},
	})
	if err != nil {
		return fmt.Errorf("failed to swap indexes: %w", err)
	}
	if _, err := c.client.WaitForTask(swap.TaskUID); err != nil {
		return fmt.Errorf("index swap task failed: %w", err)
	}

	// Best effort: the swapped-out index is now garbage.
	if task, err := c.client.DeleteIndex(stagingUID); err == nil {
		c.client.WaitForTask(task.TaskUID)
	}

	c.logger.WithField("documents", len(listings)).Info("Search index rebuilt")
	return nil
}

// RebuildInPlace refreshes the index by clearing and reloading it directly.
// Readers see a partially filled index while it runs; used as the fallback
// when the staging swap fails.
func (c *Client) RebuildInPlace(listings []models.Listing) error {
	index := c.client.Index(indexName)

	task, err := index.DeleteAllDocuments()
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if _, err := c.client.WaitForTask(task.TaskUID); err != nil {
		return fmt.Errorf("clear index task failed: %w", err)
	}

	if err := c.loadDocuments(index, listings); err != nil {
		return err
	}

	c.logger.WithField("documents", len(listings)).Info("Search index rebuilt in place")
	return nil
}

// Refresh tries the non-blocking rebuild first and falls back to the
// in-place path.
func (c *Client) Refresh(listings []models.Listing) error {
	if err := c.Rebuild(listings); err != nil {
		c.logger.WithError(err).Warn("Staged rebuild failed, falling back to in-place rebuild")
		return c.RebuildInPlace(listings)
	}
	return nil
}

// UpsertListings pushes individual documents into the live index.
func (c *Client) UpsertListings(listings []models.Listing) error {
	return c.loadDocuments(c.client.Index(indexName), listings)
}

// DeleteListing removes one document from the live index.
func (c *Client) DeleteListing(id string) error {
	task, err := c.client.Index(indexName).DeleteDocument(id)
	if err != nil {
		return err
	}
	_, err = c.client.WaitForTask(task.TaskUID)
	return err
}

func (c *Client) loadDocuments(index *meilisearch.Index, listings []models.Listing) error {
	for start := 0; start < len(listings); start += documentsPer {
		end := start + documentsPer
		if end > len(listings) {
			end = len(listings)
		}

		docs := make([]Document, 0, end-start)
		for _, l := range listings[start:end] {
			docs = append(docs, NewDocument(l))
		}

		task, err := index.AddDocuments(docs)
		if err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}
		if _, err := c.client.WaitForTask(task.TaskUID); err != nil {
			return fmt.Errorf("add documents task failed: %w", err)
		}
	}
	return nil
}

// Params are the search filters. Pointer fields impose no constraint when
// nil.
type Params struct {
	Query        string
	Status       string
	City         string
	State        string
	PropertyType string
	MinPrice     *int
	MaxPrice     *int
	MinBeds      *int
	MinBaths     *float64
	SortBy       string
	Limit        int64
	Offset       int64
}

// Result is one page of search hits with the estimated total.
type Result struct {
	Documents    []Document `json:"documents"`
	Total        int64      `json:"total"`
	Limit        int64      `json:"limit"`
	Offset       int64      `json:"offset"`
	ProcessingMs int64      `json:"processingMs"`
}

// Search queries the listings index.
func (c *Client) Search(p Params) (*Result, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	req := &meilisearch.SearchRequest{
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if filter := buildFilter(p); filter != "" {
		req.Filter = filter
	}
	if sort := sortExpr(p.SortBy); sort != "" {
		req.Sort = []string{sort}
	}

	resp, err := c.client.Index(indexName).Search(p.Query, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	docs, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, err
	}

	return &Result{
		Documents:    docs,
		Total:        resp.EstimatedTotalHits,
		Limit:        p.Limit,
		Offset:       p.Offset,
		ProcessingMs: resp.ProcessingTimeMs,
	}, nil
}

// buildFilter assembles the Meilisearch filter expression.
func buildFilter(p Params) string {
	var parts []string
	if p.Status != "" {
		parts = append(parts, fmt.Sprintf("status = %q", strings.ToLower(p.Status)))
	}
	if p.City != "" {
		parts = append(parts, fmt.Sprintf("city = %q", p.City))
	}
	if p.State != "" {
		parts = append(parts, fmt.Sprintf("state = %q", strings.ToUpper(p.State)))
	}
	if p.PropertyType != "" {
		parts = append(parts, fmt.Sprintf("property_type = %q", p.PropertyType))
	}
	if p.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("price >= %d", *p.MinPrice))
	}
	if p.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("price <= %d", *p.MaxPrice))
	}
	if p.MinBeds != nil {
		parts = append(parts, fmt.Sprintf("beds >= %d", *p.MinBeds))
	}
	if p.MinBaths != nil {
		parts = append(parts, fmt.Sprintf("baths >= %g", *p.MinBaths))
	}
	return strings.Join(parts, " AND ")
}

func sortExpr(sortBy string) string {
	switch sortBy {
	case "price_asc":
		return "price:asc"
	case "price_desc":
		return "price:desc"
	case "date_asc":
		return "listed_at:asc"
	case "date_desc":
		return "listed_at:desc"
	default:
		return ""
	}
}

// decodeHits converts raw hits back into documents through a JSON round
// trip.
func decodeHits(hits []interface{}) ([]Document, error) {
	docs := make([]Document, 0, len(hits))
	for _, hit := range hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode search hit: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode search hit: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
