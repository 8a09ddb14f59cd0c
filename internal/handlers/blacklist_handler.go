package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/database/repository"
	"github.com/voicebridge/campaign-engine-backend/internal/models"
	"github.com/voicebridge/campaign-engine-backend/internal/services"
	"github.com/voicebridge/campaign-engine-backend/internal/utils"
)

type BlacklistHandler struct {
	blacklistRepo *repository.BlacklistRepository
	cache         services.BlacklistCache
}

func NewBlacklistHandler(blacklistRepo *repository.BlacklistRepository, cache services.BlacklistCache) *BlacklistHandler {
	return &BlacklistHandler{
		blacklistRepo: blacklistRepo,
		cache:         cache,
	}
}

// ListBlacklist godoc
// @Summary List blacklist entries
// @Description List blacklist entries with filtering and pagination
// @Tags blacklist
// @Produce json
// @Param phone_number query string false "Filter by phone number substring"
// @Param source query string false "Filter by source"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/blacklist [get]
func (h *BlacklistHandler) ListBlacklist(c *gin.Context) {
	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("page_size"))
	page, pageSize = utils.ValidateAndNormalizePagination(page, pageSize)

	filter := models.BlacklistFilter{
		PhoneNumber: c.Query("phone_number"),
		Source:      models.BlacklistSource(c.Query("source")),
	}

	entries, total, err := h.blacklistRepo.List(filter, pageSize, utils.CalculateOffset(page, pageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list blacklist", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":    entries,
		"pagination": utils.CalculatePaginationInfo(int(total), page, pageSize),
	})
}

// CheckBlacklist godoc
// @Summary Check one phone number
// @Description Report whether a phone number is blacklisted
// @Tags blacklist
// @Produce json
// @Param phone_number path string true "Phone number"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/blacklist/{phone_number} [get]
func (h *BlacklistHandler) CheckBlacklist(c *gin.Context) {
	phoneNumber := c.Param("phone_number")

	entry, err := h.blacklistRepo.GetByPhone(phoneNumber)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"phone_number": phoneNumber, "blacklisted": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check blacklist", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone_number": phoneNumber, "blacklisted": true, "entry": entry})
}

// AddBlacklistEntry godoc
// @Summary Add a blacklist entry
// @Description Admin import of a blacklisted phone number
// @Tags blacklist
// @Accept json
// @Produce json
// @Param request body models.CreateBlacklistEntryRequest true "Blacklist entry"
// @Success 201 {object} models.BlacklistEntry
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/blacklist [post]
func (h *BlacklistHandler) AddBlacklistEntry(c *gin.Context) {
	var req models.CreateBlacklistEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	source := req.Source
	if source == "" {
		source = models.BlacklistSourceAdminImport
	}

	entry := &models.BlacklistEntry{
		PhoneNumber: req.PhoneNumber,
		Reason:      req.Reason,
		Source:      source,
		AddedBy:     req.AddedBy,
		AddedAt:     time.Now(),
	}
	if err := h.blacklistRepo.Create(entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add blacklist entry", "details": err.Error()})
		return
	}

	// Best-effort cache mirror; the relational row is the compliance record.
	if err := h.cache.Add(c.Request.Context(), req.PhoneNumber); err != nil {
		logrus.Errorf("Failed to update blacklist cache for %s: %v", req.PhoneNumber, err)
	}

	c.JSON(http.StatusCreated, entry)
}

// RemoveBlacklistEntry godoc
// @Summary Remove a blacklist entry
// @Description Privileged, audited removal of a blacklisted number
// @Tags blacklist
// @Produce json
// @Param phone_number path string true "Phone number"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/blacklist/{phone_number} [delete]
func (h *BlacklistHandler) RemoveBlacklistEntry(c *gin.Context) {
	phoneNumber := c.Param("phone_number")
	removedBy := c.GetHeader("X-User")

	removed, err := h.blacklistRepo.Delete(phoneNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove blacklist entry", "details": err.Error()})
		return
	}
	if removed == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Blacklist entry not found"})
		return
	}

	if err := h.cache.Remove(c.Request.Context(), phoneNumber); err != nil {
		logrus.Errorf("Failed to remove %s from blacklist cache: %v", phoneNumber, err)
	}

	// Removal is audit-relevant: always leave a trace of who did it.
	logrus.WithFields(logrus.Fields{
		"phone_number": phoneNumber,
		"removed_by":   removedBy,
	}).Warn("Blacklist entry removed")

	c.Status(http.StatusNoContent)
}
