package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/database/repository"
	"github.com/voicebridge/campaign-engine-backend/internal/models"
	"github.com/voicebridge/campaign-engine-backend/internal/services"
	"github.com/voicebridge/campaign-engine-backend/internal/utils"
)

type ContactHandler struct {
	contactRepo   *repository.ContactRepository
	campaignRepo  *repository.CampaignRepository
	blacklistRepo *repository.BlacklistRepository
	cache         services.BlacklistCache
}

func NewContactHandler(
	contactRepo *repository.ContactRepository,
	campaignRepo *repository.CampaignRepository,
	blacklistRepo *repository.BlacklistRepository,
	cache services.BlacklistCache,
) *ContactHandler {
	return &ContactHandler{
		contactRepo:   contactRepo,
		campaignRepo:  campaignRepo,
		blacklistRepo: blacklistRepo,
		cache:         cache,
	}
}

// isBlacklisted checks the cache first and falls back to the relational
// store when the cache is unavailable. Suppression must not silently fail
// open just because Redis is down.
func (h *ContactHandler) isBlacklisted(c *gin.Context, phoneNumber string) (bool, error) {
	listed, err := h.cache.Contains(c.Request.Context(), phoneNumber)
	if err == nil {
		return listed, nil
	}
	logrus.Warnf("Blacklist cache lookup failed for %s, falling back to store: %v", phoneNumber, err)
	if _, err := h.blacklistRepo.GetByPhone(phoneNumber); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ImportContacts godoc
// @Summary Bulk-import contacts into a campaign
// @Description Numbers already on the blacklist are suppressed, not imported
// @Tags contacts
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body models.ImportContactsRequest true "Phone numbers"
// @Success 200 {object} models.ImportContactsResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/contacts [post]
func (h *ContactHandler) ImportContacts(c *gin.Context) {
	campaignID := c.Param("id")

	var req models.ImportContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	campaign, err := h.campaignRepo.GetByID(campaignID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load campaign", "details": err.Error()})
		return
	}
	if campaign.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error":           "Cannot import contacts into a finished campaign",
			"observed_status": campaign.Status,
		})
		return
	}

	result := models.ImportContactsResponse{}
	for _, phoneNumber := range req.PhoneNumbers {
		if phoneNumber == "" {
			result.Failed++
			continue
		}
		listed, err := h.isBlacklisted(c, phoneNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Blacklist check failed", "details": err.Error()})
			return
		}
		if listed {
			result.Suppressed++
			continue
		}
		contact := &models.Contact{
			CampaignID:  campaignID,
			PhoneNumber: phoneNumber,
			Status:      models.ContactStatusPending,
		}
		if err := h.contactRepo.Create(contact); err != nil {
			logrus.Errorf("Failed to import contact %s into %s: %v", phoneNumber, campaignID, err)
			result.Failed++
			continue
		}
		result.Imported++
	}

	if result.Suppressed > 0 {
		logrus.Infof("Suppressed %d blacklisted numbers on import into campaign %s", result.Suppressed, campaignID)
	}
	c.JSON(http.StatusOK, result)
}

// ListContacts godoc
// @Summary List a campaign's contacts
// @Tags contacts
// @Produce json
// @Param id path string true "Campaign ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/{id}/contacts [get]
func (h *ContactHandler) ListContacts(c *gin.Context) {
	campaignID := c.Param("id")
	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("page_size"))
	page, pageSize = utils.ValidateAndNormalizePagination(page, pageSize)

	contacts, err := h.contactRepo.ListByCampaign(campaignID, pageSize, utils.CalculateOffset(page, pageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts", "details": err.Error()})
		return
	}

	statusCounts := map[models.ContactStatus]int64{}
	for _, status := range []models.ContactStatus{
		models.ContactStatusPending,
		models.ContactStatusInProgress,
		models.ContactStatusAnswered,
		models.ContactStatusFailed,
		models.ContactStatusCancelled,
	} {
		count, err := h.contactRepo.CountByCampaignAndStatus(campaignID, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count contacts", "details": err.Error()})
			return
		}
		statusCounts[status] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id":   campaignID,
		"contacts":      contacts,
		"status_counts": statusCounts,
		"page":          page,
		"page_size":     pageSize,
	})
}
