package models

import (
	"time"
)

// CallOutcome enumerates terminal call results.
type CallOutcome string

const (
	CallOutcomeAnswered  CallOutcome = "answered"
	CallOutcomeBusy      CallOutcome = "busy"
	CallOutcomeFailed    CallOutcome = "failed"
	CallOutcomeConverted CallOutcome = "converted"
)

// DTMFInput is one captured keypad press. EventID deduplicates redelivered
// dtmf events inside the record.
type DTMFInput struct {
	EventID string    `bson:"event_id" json:"event_id"`
	Digit   string    `bson:"digit" json:"digit"`
	At      time.Time `bson:"at" json:"at"`
}

// TriggeredAction is an action noted against the call, deduplicated by the
// triggering event id.
type TriggeredAction struct {
	EventID string     `bson:"event_id" json:"event_id"`
	Type    ActionType `bson:"type" json:"type"`
	At      time.Time  `bson:"at" json:"at"`
}

// CallDetailRecord is the document-store record of one call's full lifecycle.
// Keyed by call_id; created on the initiated event, then only ever upserted.
// CDRs (together with blacklist entries) are the source of truth; metrics
// snapshots are derived from them and may be rebuilt by replay.
type CallDetailRecord struct {
	CallID      string `bson:"call_id" json:"call_id"`
	CampaignID  string `bson:"campaign_id" json:"campaign_id"`
	ContactID   string `bson:"contact_id" json:"contact_id"`
	PhoneNumber string `bson:"phone_number" json:"phone_number"`

	Status     string     `bson:"status" json:"status"`
	StartedAt  time.Time  `bson:"started_at" json:"started_at"`
	AnsweredAt *time.Time `bson:"answered_at,omitempty" json:"answered_at,omitempty"`
	EndedAt    *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int         `bson:"duration_seconds" json:"duration_seconds"`
	Outcome         CallOutcome `bson:"outcome,omitempty" json:"outcome,omitempty"`

	DTMFInputs       []DTMFInput       `bson:"dtmf_inputs" json:"dtmf_inputs"`
	ActionsTriggered []TriggeredAction `bson:"actions_triggered" json:"actions_triggered"`

	CostCents int64 `bson:"cost_cents" json:"cost_cents"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
