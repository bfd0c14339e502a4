package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"listing-portal/internal/cleanup"
	"listing-portal/internal/config"
	"listing-portal/internal/database"
	"listing-portal/internal/enrich"
	"listing-portal/internal/ratelimit"
	"listing-portal/internal/search"
	"listing-portal/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the operational endpoints: sync trigger, stats,
// reindex and cleanup.
type AdminHandler struct {
	db           *database.DB
	orchestrator *sync.Orchestrator
	search       *search.Client
	cleanup      *cleanup.Service
	enrich       *enrich.Worker
	quota        *ratelimit.QuotaLimiter
	logger       *logrus.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(
	db *database.DB,
	orchestrator *sync.Orchestrator,
	searchClient *search.Client,
	cleanupService *cleanup.Service,
	enrichWorker *enrich.Worker,
	quota *ratelimit.QuotaLimiter,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		db:           db,
		orchestrator: orchestrator,
		search:       searchClient,
		cleanup:      cleanupService,
		enrich:       enrichWorker,
		quota:        quota,
		logger:       logger,
	}
}

// RegisterRoutes wires the admin endpoints onto the router.
func (h *AdminHandler) RegisterRoutes(r *gin.Engine) {
	admin := r.Group("/api/admin")
	{
		admin.POST("/trigger", h.Trigger)
		admin.GET("/stats", h.Stats)
		admin.GET("/runs", h.Runs)
		admin.POST("/search/reindex", h.Reindex)
		admin.POST("/cleanup/run", h.RunCleanup)
		admin.GET("/cleanup/logs", h.CleanupLogs)
	}
}

// TriggerRequest is the inbound trigger payload.
type TriggerRequest struct {
	Action         string             `json:"action" binding:"required"`
	Cities         []config.CityScope `json:"cities"`
	SyncProperties bool               `json:"syncProperties"`
	SyncListings   bool               `json:"syncListings"`
	Limit          int                `json:"limit"`
	UpdateExisting bool               `json:"updateExisting"`
}

// Trigger handles POST /api/admin/trigger. A sync action runs to completion
// and answers with per-scope summaries.
func (h *AdminHandler) Trigger(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trigger payload"})
		return
	}

	switch req.Action {
	case "sync":
		h.triggerSync(c, req)
	case "stats":
		h.Stats(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown action %q", req.Action)})
	}
}

func (h *AdminHandler) triggerSync(c *gin.Context, req TriggerRequest) {
	opts := sync.Options{
		SyncProperties: req.SyncProperties,
		SyncListings:   req.SyncListings,
		Limit:          req.Limit,
		UpdateExisting: req.UpdateExisting,
	}

	agg, err := h.orchestrator.SyncAllCities(c.Request.Context(), req.Cities, opts)
	if errors.Is(err, sync.ErrSyncInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync is already running"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Sync trigger failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed to start"})
		return
	}

	summaries := make([]string, 0, len(agg.Results))
	for _, r := range agg.Results {
		summaries = append(summaries, scopeSummary(r))
	}

	status := http.StatusOK
	if agg.Failed > 0 && agg.Succeeded == 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"succeeded": agg.Succeeded,
		"failed":    agg.Failed,
		"results":   agg.Results,
		"summary":   summaries,
	})
}

func scopeSummary(r *sync.CityResult) string {
	if r.Err != nil {
		return fmt.Sprintf("%s, %s: failed (%v)", r.City, r.State, r.Err)
	}
	return fmt.Sprintf("%s, %s: %d fetched, %d inserted, %d updated, %d skipped, %d price changes, %d status changes, %d soft-deleted",
		r.City, r.State, r.Fetched, r.Inserted, r.Updated, r.Skipped, r.PriceChanges, r.StatusChanges, r.SoftDeleted)
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	market, err := h.orchestrator.GetMarketStats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute market stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	resp := gin.H{"market": market}
	if h.quota != nil {
		resp["quota"] = h.quota.GetStats()
	}
	if queue, err := h.enrich.QueueStats(); err == nil {
		resp["enrichment"] = queue
	}
	c.JSON(http.StatusOK, resp)
}

// Runs handles GET /api/admin/runs
func (h *AdminHandler) Runs(c *gin.Context) {
	runs, err := h.orchestrator.RecentRuns(intParamOr(c, "limit", 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Reindex handles POST /api/admin/search/reindex
func (h *AdminHandler) Reindex(c *gin.Context) {
	listings, err := h.db.GetActiveListingsWithMedia()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load listings for reindex")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listings"})
		return
	}
	if err := h.search.Refresh(listings); err != nil {
		h.logger.WithError(err).Error("Reindex failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reindex failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": len(listings)})
}

// RunCleanup handles POST /api/admin/cleanup/run
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	dryRun := c.DefaultQuery("dry_run", "true") != "false"

	result, err := h.cleanup.Run(dryRun)
	if err != nil {
		h.logger.WithError(err).Error("Cleanup run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// CleanupLogs handles GET /api/admin/cleanup/logs
func (h *AdminHandler) CleanupLogs(c *gin.Context) {
	logs, err := h.cleanup.RecentLogs(intParamOr(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load purge logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
