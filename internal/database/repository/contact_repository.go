package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create creates a new contact
func (r *ContactRepository) Create(contact *models.Contact) error {
	return r.db.Create(contact).Error
}

// GetByID retrieves a contact by ID
func (r *ContactRepository) GetByID(id string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.First(&contact, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// CountByCampaignAndStatus counts a campaign's contacts in the given status.
func (r *ContactRepository) CountByCampaignAndStatus(campaignID string, status models.ContactStatus) (int64, error) {
	var count int64
	err := r.db.Model(&models.Contact{}).
		Where("campaign_id = ? AND status = ?", campaignID, status).
		Count(&count).Error
	return count, err
}

// CountPending counts contacts still waiting to be dialed. An empty
// campaign id counts across all campaigns, for the aggregate metrics view.
func (r *ContactRepository) CountPending(campaignID string) (int64, error) {
	var count int64
	query := r.db.Model(&models.Contact{}).Where("status = ?", models.ContactStatusPending)
	if campaignID != "" {
		query = query.Where("campaign_id = ?", campaignID)
	}
	err := query.Count(&count).Error
	return count, err
}

// CountNonTerminal counts contacts still awaiting a terminal dial outcome.
func (r *ContactRepository) CountNonTerminal(campaignID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Contact{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]models.ContactStatus{models.ContactStatusPending, models.ContactStatusInProgress}).
		Count(&count).Error
	return count, err
}

// CancelRemaining force-fails all pending and in_progress contacts of a
// cancelled campaign. Conditional on current status, so it is safe to run
// concurrently with live dispatch.
func (r *ContactRepository) CancelRemaining(campaignID string) (int64, error) {
	res := r.db.Model(&models.Contact{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]models.ContactStatus{models.ContactStatusPending, models.ContactStatusInProgress}).
		Updates(map[string]interface{}{
			"status":     models.ContactStatusCancelled,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// FailStuck flips contacts that have been in_progress since before the
// cutoff to failed. The status condition is re-checked at write time, so a
// contact that legitimately finished in between is left alone.
func (r *ContactRepository) FailStuck(campaignID string, cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.Contact{}).
		Where("campaign_id = ? AND status = ? AND dial_started_at IS NOT NULL AND dial_started_at < ?",
			campaignID, models.ContactStatusInProgress, cutoff).
		Updates(map[string]interface{}{
			"status":     models.ContactStatusFailed,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// ListByCampaign returns a campaign's contacts, newest first.
func (r *ContactRepository) ListByCampaign(campaignID string, limit, offset int) ([]*models.Contact, error) {
	var contacts []*models.Contact
	err := r.db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&contacts).Error
	return contacts, err
}
