package models

import (
	"time"
)

// CampaignType enumerates the outreach channels a campaign can use.
type CampaignType string

const (
	CampaignTypeVoice  CampaignType = "voice"
	CampaignTypeSMS    CampaignType = "sms"
	CampaignTypeHybrid CampaignType = "hybrid"
)

// CampaignStatus enumerates lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

// CallingWindow is an allowed dialing range for one day of the week.
// Hours are local to the campaign's timezone, end exclusive.
type CallingWindow struct {
	DayOfWeek int `json:"day_of_week"` // 0 = Sunday
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Campaign represents a voice/SMS outreach campaign
type Campaign struct {
	ID     string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name   string         `json:"name" gorm:"type:varchar(255);not null"`
	Type   CampaignType   `json:"type" gorm:"type:varchar(20);not null;default:'voice';index"`
	Status CampaignStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`

	// Scheduling
	StartTime *time.Time `json:"start_time" gorm:"index"`
	EndTime   *time.Time `json:"end_time" gorm:"index"`
	Timezone  string     `json:"timezone" gorm:"type:varchar(64);default:'UTC'"`

	// Calling windows and campaign config (audio reference, SMS template,
	// IVR flow graph). The flow graph is opaque here; only the telephony
	// layer interprets it.
	CallingWindows JSON `json:"calling_windows,omitempty" gorm:"type:jsonb"`
	Config         JSON `json:"config,omitempty" gorm:"type:jsonb"`

	MaxConcurrency int    `json:"max_concurrency" gorm:"default:10"`
	CreatedBy      string `json:"created_by" gorm:"type:varchar(255);index"`

	// Set when the campaign first goes active / reaches a terminal state.
	ActivatedAt *time.Time `json:"activated_at"`
	FinishedAt  *time.Time `json:"finished_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Campaign model
func (Campaign) TableName() string {
	return "campaigns"
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name           string          `json:"name" binding:"required" example:"Spring fundraising drive"`
	Type           CampaignType    `json:"type" binding:"required" example:"voice"`
	StartTime      *time.Time      `json:"start_time" example:"2025-08-14T09:00:00Z"`
	EndTime        *time.Time      `json:"end_time" example:"2025-08-21T18:00:00Z"`
	Timezone       string          `json:"timezone" example:"America/New_York"`
	CallingWindows []CallingWindow `json:"calling_windows"`
	Config         JSON            `json:"config"`
	MaxConcurrency int             `json:"max_concurrency" example:"25"`
}

// UpdateCampaignRequest represents the request to update a campaign
type UpdateCampaignRequest struct {
	Name           string          `json:"name" binding:"required"`
	StartTime      *time.Time      `json:"start_time"`
	EndTime        *time.Time      `json:"end_time"`
	Timezone       string          `json:"timezone"`
	CallingWindows []CallingWindow `json:"calling_windows"`
	Config         JSON            `json:"config"`
	MaxConcurrency int             `json:"max_concurrency"`
}

// ScheduleCampaignRequest carries the activation time for a scheduled start
type ScheduleCampaignRequest struct {
	StartAt time.Time `json:"start_at" binding:"required" example:"2025-08-14T09:00:00Z"`
}

// CampaignResponse represents the response for campaign operations
type CampaignResponse struct {
	ID             string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name           string         `json:"name" example:"Spring fundraising drive"`
	Type           CampaignType   `json:"type" example:"voice"`
	Status         CampaignStatus `json:"status" example:"active"`
	StartTime      *time.Time     `json:"start_time"`
	EndTime        *time.Time     `json:"end_time"`
	Timezone       string         `json:"timezone" example:"America/New_York"`
	CallingWindows JSON           `json:"calling_windows,omitempty"`
	Config         JSON           `json:"config,omitempty"`
	MaxConcurrency int            `json:"max_concurrency" example:"25"`
	CreatedBy      string         `json:"created_by"`
	ActivatedAt    *time.Time     `json:"activated_at"`
	FinishedAt     *time.Time     `json:"finished_at"`
	CreatedAt      string         `json:"created_at" example:"2025-01-09T10:30:00Z"`
	UpdatedAt      string         `json:"updated_at" example:"2025-01-09T10:30:00Z"`
}

// ScheduledTrigger is the persisted arm record for a SCHEDULED campaign.
// Written in the same transaction as the status change, so a campaign can
// never be SCHEDULED without a trigger on record.
type ScheduledTrigger struct {
	CampaignID string    `json:"campaign_id" gorm:"primaryKey;type:uuid"`
	FireAt     time.Time `json:"fire_at" gorm:"not null;index"`
	Armed      bool      `json:"armed" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ScheduledTrigger model
func (ScheduledTrigger) TableName() string {
	return "scheduled_triggers"
}
