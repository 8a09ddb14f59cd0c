package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
	"github.com/voicebridge/campaign-engine-backend/internal/services"
)

type MetricsHandler struct {
	metricsService *services.MetricsService
	hub            *services.MetricsHub
}

func NewMetricsHandler(metricsService *services.MetricsService, hub *services.MetricsHub) *MetricsHandler {
	return &MetricsHandler{
		metricsService: metricsService,
		hub:            hub,
	}
}

// GetSnapshot godoc
// @Summary Get a campaign's metrics snapshot
// @Description Point-in-time metrics for one campaign; reads the same counters the push path uses
// @Tags metrics
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} models.MetricsSnapshot
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/metrics [get]
func (h *MetricsHandler) GetSnapshot(c *gin.Context) {
	snapshot, err := h.metricsService.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read metrics", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetAggregateSnapshot godoc
// @Summary Get the all-campaigns metrics snapshot
// @Tags metrics
// @Produce json
// @Success 200 {object} models.MetricsSnapshot
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/metrics/aggregate [get]
func (h *MetricsHandler) GetAggregateSnapshot(c *gin.Context) {
	snapshot, err := h.metricsService.AggregateSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read metrics", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// StreamMetrics godoc
// @Summary Subscribe to a campaign's live metrics stream
// @Description SSE stream of counter deltas and status changes; use campaign id "aggregate" for the all-campaigns view
// @Tags metrics
// @Produce text/event-stream
// @Param id path string true "Campaign ID or 'aggregate'"
// @Success 200
// @Router /api/v1/campaigns/{id}/metrics/stream [get]
func (h *MetricsHandler) StreamMetrics(c *gin.Context) {
	campaignID := c.Param("id")

	// Set headers for SSE
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable buffering for nginx

	clientChan := h.hub.Subscribe(campaignID)
	defer h.hub.Unsubscribe(campaignID, clientChan)

	c.SSEvent("connected", gin.H{
		"campaign_id": campaignID,
		"message":     "Connected to metrics stream",
	})
	c.Writer.Flush()

	// Send the current snapshot first, so a new subscriber is not blind
	// until the next delta arrives.
	var snapshot *models.MetricsSnapshot
	var err error
	if campaignID == models.AggregateCampaignID {
		snapshot, err = h.metricsService.AggregateSnapshot(c.Request.Context())
	} else {
		snapshot, err = h.metricsService.Snapshot(c.Request.Context(), campaignID)
	}
	if err == nil {
		if data, marshalErr := json.Marshal(snapshot); marshalErr == nil {
			message := fmt.Sprintf("event: snapshot\ndata: %s\n\n", string(data))
			if _, writeErr := c.Writer.Write([]byte(message)); writeErr != nil {
				return
			}
			c.Writer.Flush()
		}
	}

	for {
		select {
		case <-c.Request.Context().Done():
			logrus.Infof("Metrics subscriber disconnected: %s", campaignID)
			return
		case message, ok := <-clientChan:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(message); err != nil {
				logrus.Errorf("Failed to write metrics stream message: %v", err)
				return
			}
			c.Writer.Flush()
		}
	}
}
