package models

import (
	"time"
)

// BlacklistSource enumerates how a number ended up on the blacklist.
type BlacklistSource string

const (
	BlacklistSourceSelfOptOut  BlacklistSource = "self_opt_out"
	BlacklistSourceAdminImport BlacklistSource = "admin_import"
	BlacklistSourceCompliance  BlacklistSource = "compliance"
)

// BlacklistEntry represents a phone number excluded from all future dialing.
// Append-only from the compliance standpoint; removal is a privileged,
// audited operation.
type BlacklistEntry struct {
	ID          string          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PhoneNumber string          `json:"phone_number" gorm:"type:varchar(32);not null;uniqueIndex"`
	Reason      string          `json:"reason" gorm:"type:text"`
	Source      BlacklistSource `json:"source" gorm:"type:varchar(20);not null;index"`
	AddedBy     string          `json:"added_by" gorm:"type:varchar(255)"`
	AddedAt     time.Time       `json:"added_at"`
}

// TableName specifies the table name for the BlacklistEntry model
func (BlacklistEntry) TableName() string {
	return "blacklist_entries"
}

// CreateBlacklistEntryRequest represents an admin import of a blacklisted number
type CreateBlacklistEntryRequest struct {
	PhoneNumber string          `json:"phone_number" binding:"required" example:"+15550001111"`
	Reason      string          `json:"reason" example:"customer complaint"`
	Source      BlacklistSource `json:"source" example:"admin_import"`
	AddedBy     string          `json:"added_by" example:"admin@voicebridge.io"`
}

// BlacklistFilter narrows blacklist listing
type BlacklistFilter struct {
	PhoneNumber string
	Source      BlacklistSource
	Page        int
	PageSize    int
}
