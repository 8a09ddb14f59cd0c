package models

import (
	"time"
)

// ContactStatus enumerates per-contact dial states.
type ContactStatus string

const (
	ContactStatusPending    ContactStatus = "pending"
	ContactStatusInProgress ContactStatus = "in_progress"
	ContactStatusAnswered   ContactStatus = "answered"
	ContactStatusFailed     ContactStatus = "failed"
	ContactStatusCancelled  ContactStatus = "cancelled"
)

// IsTerminal reports whether the contact needs no further dialing.
func (s ContactStatus) IsTerminal() bool {
	return s == ContactStatusAnswered || s == ContactStatusFailed || s == ContactStatusCancelled
}

// Contact represents one phone number inside a campaign's contact list.
// Created at bulk import (external); dial status is mutated by the external
// dial dispatcher and by the stuck-contact reconciler.
type Contact struct {
	ID          string        `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	CampaignID  string        `json:"campaign_id" gorm:"not null;index;type:uuid"`
	PhoneNumber string        `json:"phone_number" gorm:"type:varchar(32);not null;index"`
	Status      ContactStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts    int           `json:"attempts" gorm:"default:0"`

	// Set when the dispatcher picks the contact up; the reconciler uses it
	// to detect contacts stuck in_progress after a worker crash.
	DialStartedAt *time.Time `json:"dial_started_at" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Campaign Campaign `json:"-" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Contact model
func (Contact) TableName() string {
	return "contacts"
}

// ImportContactsRequest represents a bulk contact import for a campaign
type ImportContactsRequest struct {
	PhoneNumbers []string `json:"phone_numbers" binding:"required" example:"+15550001111,+15550002222"`
}

// ImportContactsResponse reports how the import went
type ImportContactsResponse struct {
	Imported   int `json:"imported"`
	Suppressed int `json:"suppressed"` // on the blacklist, never dialed
	Failed     int `json:"failed"`
}
