package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
	"github.com/voicebridge/campaign-engine-backend/internal/services"
	"github.com/voicebridge/campaign-engine-backend/internal/utils"
)

type CDRHandler struct {
	cdrService       *services.CDRIngestService
	actionDispatcher *services.ActionDispatcherService
	metricsService   *services.MetricsService
}

func NewCDRHandler(
	cdrService *services.CDRIngestService,
	actionDispatcher *services.ActionDispatcherService,
	metricsService *services.MetricsService,
) *CDRHandler {
	return &CDRHandler{
		cdrService:       cdrService,
		actionDispatcher: actionDispatcher,
		metricsService:   metricsService,
	}
}

// GetCDR godoc
// @Summary Get a call detail record
// @Tags cdrs
// @Produce json
// @Param call_id path string true "Call ID"
// @Success 200 {object} models.CallDetailRecord
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/cdrs/{call_id} [get]
func (h *CDRHandler) GetCDR(c *gin.Context) {
	cdr, err := h.cdrService.GetCDR(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "CDR not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get CDR", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cdr)
}

// GetAction godoc
// @Summary Get an action record
// @Description Get a donation/opt-out action by its event id
// @Tags actions
// @Produce json
// @Param id path string true "Action (event) ID"
// @Success 200 {object} models.Action
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/actions/{id} [get]
func (h *CDRHandler) GetAction(c *gin.Context) {
	action, err := h.actionDispatcher.GetAction(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Action not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get action", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, action)
}

// ExportReport godoc
// @Summary Export a campaign's report data
// @Description Raw report rows (CDRs plus the metrics snapshot); formatting is up to the consumer
// @Tags reports
// @Produce json
// @Param id path string true "Campaign ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/report [get]
func (h *CDRHandler) ExportReport(c *gin.Context) {
	campaignID := c.Param("id")
	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("page_size"))
	page, pageSize = utils.ValidateAndNormalizePagination(page, pageSize)

	cdrs, err := h.cdrService.ListCampaignCDRs(c.Request.Context(), campaignID, pageSize, utils.CalculateOffset(page, pageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export report data", "details": err.Error()})
		return
	}

	snapshot, err := h.metricsService.Snapshot(c.Request.Context(), campaignID)
	if err != nil {
		// Metrics lag never fails a report; ship the rows without totals.
		snapshot = &models.MetricsSnapshot{CampaignID: campaignID}
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id": campaignID,
		"totals":      snapshot,
		"records":     cdrs,
		"page":        page,
		"page_size":   pageSize,
	})
}

// RebuildMetrics godoc
// @Summary Rebuild a campaign's metrics counters
// @Description Recompute the counter cache by replaying the campaign's CDRs and action records
// @Tags metrics
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 202 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/metrics/rebuild [post]
func (h *CDRHandler) RebuildMetrics(c *gin.Context) {
	campaignID := c.Param("id")
	if err := h.metricsService.Rebuild(c.Request.Context(), campaignID, h.cdrService.Store(), h.actionDispatcher.Store()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rebuild metrics", "details": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"campaign_id": campaignID, "status": "rebuilt"})
}
