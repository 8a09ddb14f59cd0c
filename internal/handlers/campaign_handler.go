package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
	"github.com/voicebridge/campaign-engine-backend/internal/services"
)

type CampaignHandler struct {
	lifecycleService *services.LifecycleService
}

func NewCampaignHandler(lifecycleService *services.LifecycleService) *CampaignHandler {
	return &CampaignHandler{
		lifecycleService: lifecycleService,
	}
}

// CreateCampaign godoc
// @Summary Create a new campaign
// @Description Create a new campaign in DRAFT status
// @Tags campaigns
// @Accept json
// @Produce json
// @Param request body models.CreateCampaignRequest true "Create campaign request"
// @Success 201 {object} models.CampaignResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	createdBy := c.GetHeader("X-User")

	response, err := h.lifecycleService.CreateCampaign(createdBy, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create campaign", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetCampaign godoc
// @Summary Get a campaign
// @Description Get a campaign (including its lifecycle status) by ID
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.CampaignResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	response, err := h.lifecycleService.GetCampaign(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get campaign", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// ListCampaigns godoc
// @Summary List campaigns
// @Description List campaigns, optionally filtered by status
// @Tags campaigns
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {array} models.CampaignResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	status := models.CampaignStatus(c.Query("status"))
	responses, err := h.lifecycleService.ListCampaigns(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, responses)
}

// UpdateCampaign godoc
// @Summary Update a campaign
// @Description Update campaign configuration; only DRAFT, SCHEDULED and PAUSED campaigns can be edited
// @Tags campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body models.UpdateCampaignRequest true "Update campaign request"
// @Success 200 {object} models.CampaignResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [put]
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	var req models.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	response, err := h.lifecycleService.UpdateCampaign(c.Param("id"), &req)
	if err != nil {
		respondLifecycleError(c, err, "Failed to update campaign")
		return
	}
	c.JSON(http.StatusOK, response)
}

// DeleteCampaign godoc
// @Summary Delete a campaign
// @Description Delete a campaign; rejected while the campaign is ACTIVE
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id} [delete]
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	if err := h.lifecycleService.DeleteCampaign(c.Param("id")); err != nil {
		respondLifecycleError(c, err, "Failed to delete campaign")
		return
	}
	c.Status(http.StatusNoContent)
}

// StartCampaign godoc
// @Summary Start a campaign
// @Description Immediately activate a DRAFT campaign and begin dial dispatch
// @Tags lifecycle
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/start [post]
func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	if err := h.lifecycleService.Start(c.Request.Context(), c.Param("id")); err != nil {
		respondLifecycleError(c, err, "Failed to start campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.CampaignStatusActive)})
}

// ScheduleCampaign godoc
// @Summary Schedule a campaign
// @Description Arm a future activation for a DRAFT campaign
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body models.ScheduleCampaignRequest true "Schedule request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/schedule [post]
func (h *CampaignHandler) ScheduleCampaign(c *gin.Context) {
	var req models.ScheduleCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.lifecycleService.Schedule(c.Request.Context(), c.Param("id"), req.StartAt); err != nil {
		respondLifecycleError(c, err, "Failed to schedule campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.CampaignStatusScheduled), "start_at": req.StartAt})
}

// PauseCampaign godoc
// @Summary Pause a campaign
// @Description Stop new dial dispatch without discarding in-flight contacts
// @Tags lifecycle
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/pause [post]
func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	if err := h.lifecycleService.Pause(c.Request.Context(), c.Param("id")); err != nil {
		respondLifecycleError(c, err, "Failed to pause campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.CampaignStatusPaused)})
}

// ResumeCampaign godoc
// @Summary Resume a paused campaign
// @Tags lifecycle
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/resume [post]
func (h *CampaignHandler) ResumeCampaign(c *gin.Context) {
	if err := h.lifecycleService.Resume(c.Request.Context(), c.Param("id")); err != nil {
		respondLifecycleError(c, err, "Failed to resume campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.CampaignStatusActive)})
}

// CancelCampaign godoc
// @Summary Cancel a campaign
// @Description Cancel from any non-terminal state; disarms triggers and fails remaining contacts
// @Tags lifecycle
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c *gin.Context) {
	if err := h.lifecycleService.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondLifecycleError(c, err, "Failed to cancel campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.CampaignStatusCancelled)})
}

// respondLifecycleError maps service errors onto HTTP statuses. A rejected
// transition carries the observed status so the caller can see why.
func respondLifecycleError(c *gin.Context, err error, message string) {
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}
	var transitionErr *models.InvalidStateTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":           "Invalid state transition",
			"details":         transitionErr.Error(),
			"observed_status": string(transitionErr.From),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
}
