package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(campaign *models.Campaign) error {
	return r.db.Create(campaign).Error
}

// GetByID retrieves a campaign by ID
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.First(&campaign, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetAll retrieves all campaigns, optionally filtered by status
func (r *CampaignRepository) GetAll(status models.CampaignStatus) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	q := r.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&campaigns).Error
	return campaigns, err
}

// Update updates a campaign
func (r *CampaignRepository) Update(campaign *models.Campaign) error {
	return r.db.Save(campaign).Error
}

// Delete deletes a campaign
func (r *CampaignRepository) Delete(id string) error {
	return r.db.Delete(&models.Campaign{}, "id = ?", id).Error
}

// CompareAndSwapStatus transitions a campaign's status only if the observed
// prior status matches from. Returns false when another writer got there
// first (or the campaign does not exist); this is the per-campaign
// serialization point for all lifecycle operations.
func (r *CampaignRepository) CompareAndSwapStatus(id string, from, to models.CampaignStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ScheduleTx atomically flips a DRAFT campaign to SCHEDULED and records its
// trigger. A SCHEDULED row without a trigger row is the historical
// stuck-campaign bug, so both writes share one transaction.
func (r *CampaignRepository) ScheduleTx(id string, fireAt time.Time) (bool, error) {
	swapped := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", id, models.CampaignStatusDraft).
			Updates(map[string]interface{}{
				"status":     models.CampaignStatusScheduled,
				"start_time": fireAt,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		trigger := &models.ScheduledTrigger{
			CampaignID: id,
			FireAt:     fireAt,
			Armed:      true,
		}
		if err := tx.Save(trigger).Error; err != nil {
			return err
		}
		swapped = true
		return nil
	})
	return swapped, err
}

// DisarmTrigger marks a campaign's scheduled trigger as disarmed.
func (r *CampaignRepository) DisarmTrigger(id string) error {
	return r.db.Model(&models.ScheduledTrigger{}).
		Where("campaign_id = ?", id).
		Update("armed", false).Error
}

// GetTrigger retrieves the scheduled trigger for a campaign, if any.
func (r *CampaignRepository) GetTrigger(id string) (*models.ScheduledTrigger, error) {
	var trigger models.ScheduledTrigger
	err := r.db.First(&trigger, "campaign_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// ListArmedTriggers returns all armed triggers, used to re-arm in-process
// timers after a restart.
func (r *CampaignRepository) ListArmedTriggers() ([]*models.ScheduledTrigger, error) {
	var triggers []*models.ScheduledTrigger
	err := r.db.Where("armed = ?", true).Find(&triggers).Error
	return triggers, err
}

// ListScheduledPastDue returns SCHEDULED campaigns whose intended start time
// has already passed by at least grace. The reconciler force-starts these.
func (r *CampaignRepository) ListScheduledPastDue(grace time.Duration) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	cutoff := time.Now().Add(-grace)
	err := r.db.Where("status = ? AND start_time IS NOT NULL AND start_time < ?",
		models.CampaignStatusScheduled, cutoff).
		Find(&campaigns).Error
	return campaigns, err
}

// ListByStatus returns campaigns in the given status.
func (r *CampaignRepository) ListByStatus(status models.CampaignStatus) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	err := r.db.Where("status = ?", status).Find(&campaigns).Error
	return campaigns, err
}
