package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

type ActionRepository struct {
	db *gorm.DB
}

func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create records an executed action. The primary key is the originating
// event id, so a concurrent duplicate insert fails on the constraint and
// the caller treats it as already-processed.
func (r *ActionRepository) Create(action *models.Action) error {
	return r.db.Create(action).Error
}

// GetByID retrieves an action by its event id
func (r *ActionRepository) GetByID(id string) (*models.Action, error) {
	var action models.Action
	err := r.db.First(&action, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// ListByCampaign returns a campaign's actions, newest first.
func (r *ActionRepository) ListByCampaign(campaignID string, limit, offset int) ([]*models.Action, error) {
	var actions []*models.Action
	err := r.db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&actions).Error
	return actions, err
}
