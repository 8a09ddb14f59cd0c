package models

import (
	"time"
)

// ActionType enumerates DTMF-triggered in-call side effects. New kinds are
// added by registering a handler, not by subclassing anything.
type ActionType string

const (
	ActionTypeDonation ActionType = "donation"
	ActionTypeOptOut   ActionType = "opt_out"
)

// ActionOutcome enumerates how the side effect went.
type ActionOutcome string

const (
	ActionOutcomeSuccess  ActionOutcome = "success"
	ActionOutcomeFailed   ActionOutcome = "failed"
	ActionOutcomeDegraded ActionOutcome = "degraded" // compliance step done, best-effort steps failed
)

// Action records one executed (or attempted) in-call side effect.
// Its ID is the originating event id, which makes it the idempotency
// guard: a redelivered event finds the row and does not re-execute.
// Event ids are opaque strings assigned by the telephony layer.
type Action struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(64)"`
	CampaignID  string        `json:"campaign_id" gorm:"not null;index;type:uuid"`
	ContactID   string        `json:"contact_id" gorm:"type:uuid;index"`
	CallID      string        `json:"call_id" gorm:"type:varchar(64);index"`
	PhoneNumber string        `json:"phone_number" gorm:"type:varchar(32);not null"`
	Type        ActionType    `json:"type" gorm:"type:varchar(20);not null;index"`
	Outcome     ActionOutcome `json:"outcome" gorm:"type:varchar(20);not null"`
	Detail      string        `json:"detail" gorm:"type:text"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TableName specifies the table name for the Action model
func (Action) TableName() string {
	return "actions"
}
