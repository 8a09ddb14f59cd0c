package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

type BlacklistRepository struct {
	db *gorm.DB
}

func NewBlacklistRepository(db *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Create inserts a blacklist entry. Inserting a number that is already
// blacklisted is a no-op, not an error: the compliance outcome is the same.
func (r *BlacklistRepository) Create(entry *models.BlacklistEntry) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_number"}},
		DoNothing: true,
	}).Create(entry).Error
}

// GetByPhone retrieves the entry for a phone number, if present.
func (r *BlacklistRepository) GetByPhone(phoneNumber string) (*models.BlacklistEntry, error) {
	var entry models.BlacklistEntry
	err := r.db.First(&entry, "phone_number = ?", phoneNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns blacklist entries matching the filter with pagination.
func (r *BlacklistRepository) List(filter models.BlacklistFilter, limit, offset int) ([]*models.BlacklistEntry, int64, error) {
	q := r.db.Model(&models.BlacklistEntry{})
	if filter.PhoneNumber != "" {
		q = q.Where("phone_number LIKE ?", "%"+filter.PhoneNumber+"%")
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*models.BlacklistEntry
	err := q.Order("added_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// Delete removes a blacklist entry by phone number. Privileged operation;
// the service layer is responsible for the audit trail.
func (r *BlacklistRepository) Delete(phoneNumber string) (int64, error) {
	res := r.db.Delete(&models.BlacklistEntry{}, "phone_number = ?", phoneNumber)
	return res.RowsAffected, res.Error
}
