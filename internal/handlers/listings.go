package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"listing-portal/internal/query"
	"listing-portal/internal/search"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ListingHandler serves the public read endpoints.
type ListingHandler struct {
	query  *query.Service
	search *search.Client
	logger *logrus.Logger
}

// NewListingHandler creates the public read handler.
func NewListingHandler(q *query.Service, s *search.Client, logger *logrus.Logger) *ListingHandler {
	return &ListingHandler{query: q, search: s, logger: logger}
}

// RegisterRoutes wires the public endpoints onto the router.
func (h *ListingHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/listings", h.GetListings)
		api.GET("/listings/:key", h.GetListing)
		api.GET("/listings/:key/history", h.GetHistory)
		api.GET("/search", h.Search)
	}
}

// Health handles GET /health
func (h *ListingHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if err := h.search.Health(); err != nil {
		status["search"] = "unavailable"
	} else {
		status["search"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

// GetListings handles GET /api/listings
func (h *ListingHandler) GetListings(c *gin.Context) {
	page, err := h.query.GetListings(query.Params{
		Status:       c.Query("status"),
		City:         c.Query("city"),
		PropertyType: c.Query("propertyType"),
		MinPrice:     intParam(c, "minPrice"),
		MaxPrice:     intParam(c, "maxPrice"),
		MinBeds:      intParam(c, "minBeds"),
		MinBaths:     floatParam(c, "minBaths"),
		SortBy:       c.Query("sortBy"),
		Limit:        intParamOr(c, "limit", 20),
		Offset:       intParamOr(c, "offset", 0),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listings"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetListing handles GET /api/listings/:key (id or slug)
func (h *ListingHandler) GetListing(c *gin.Context) {
	detail, err := h.query.GetListing(c.Param("key"))
	if errors.Is(err, query.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listing"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetHistory handles GET /api/listings/:key/history
func (h *ListingHandler) GetHistory(c *gin.Context) {
	detail, err := h.query.GetHistory(c.Param("key"))
	if errors.Is(err, query.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listing history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            detail.ID,
		"priceHistory":  detail.PriceHistory,
		"statusHistory": detail.StatusHistory,
	})
}

// Search handles GET /api/search via the search index.
func (h *ListingHandler) Search(c *gin.Context) {
	result, err := h.search.Search(search.Params{
		Query:        c.Query("q"),
		Status:       c.Query("status"),
		City:         c.Query("city"),
		State:        c.Query("state"),
		PropertyType: c.Query("propertyType"),
		MinPrice:     intParam(c, "minPrice"),
		MaxPrice:     intParam(c, "maxPrice"),
		MinBeds:      intParam(c, "minBeds"),
		MinBaths:     floatParam(c, "minBaths"),
		SortBy:       c.Query("sortBy"),
		Limit:        int64(intParamOr(c, "limit", 20)),
		Offset:       int64(intParamOr(c, "offset", 0)),
	})
	if err != nil {
		h.logger.WithError(err).Error("Search request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// intParam parses an optional integer query parameter.
func intParam(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func intParamOr(c *gin.Context, name string, fallback int) int {
	if v := intParam(c, name); v != nil {
		return *v
	}
	return fallback
}

func floatParam(c *gin.Context, name string) *float64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
