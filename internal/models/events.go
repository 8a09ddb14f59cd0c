package models

import (
	"time"
)

// CallEventType enumerates call-lifecycle events emitted by the telephony layer.
type CallEventType string

const (
	CallEventInitiated       CallEventType = "initiated"
	CallEventAnswered        CallEventType = "answered"
	CallEventEnded           CallEventType = "ended"
	CallEventDTMF            CallEventType = "dtmf"
	CallEventActionTriggered CallEventType = "action_triggered"
)

// CallEvent is one call-lifecycle message from the call_events queue.
// Delivery is at least once with no ordering guarantee; consumers must
// tolerate duplicates and reordering.
type CallEvent struct {
	EventID     string        `json:"event_id"`
	Type        CallEventType `json:"type"`
	CallID      string        `json:"call_id"`
	CampaignID  string        `json:"campaign_id"`
	ContactID   string        `json:"contact_id"`
	PhoneNumber string        `json:"phone_number"`

	// Populated per event type.
	Outcome    CallOutcome `json:"outcome,omitempty"`     // ended
	Digit      string      `json:"digit,omitempty"`       // dtmf
	ActionType ActionType  `json:"action_type,omitempty"` // action_triggered
	CostCents  int64       `json:"cost_cents,omitempty"`  // ended

	OccurredAt time.Time `json:"occurred_at"`
}

// ActionEvent is a DTMF-triggered action request from the action_events
// queue. EventID doubles as the Action row's primary key.
type ActionEvent struct {
	EventID     string     `json:"event_id"`
	Type        ActionType `json:"type"`
	CallID      string     `json:"call_id"`
	CampaignID  string     `json:"campaign_id"`
	ContactID   string     `json:"contact_id"`
	PhoneNumber string     `json:"phone_number"`
	Digit       string     `json:"digit,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// TerminateCallCommand asks the telephony layer to hang up a live call.
// Best effort; the eventual ended event still flows through normally.
type TerminateCallCommand struct {
	CallID      string    `json:"call_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// DialControlSignal tells the external dial dispatcher to change behavior
// for a campaign.
type DialControlSignal struct {
	CampaignID string    `json:"campaign_id"`
	Signal     string    `json:"signal"` // start, pause, resume, cancel
	SignaledAt time.Time `json:"signaled_at"`
}

// StatusChangeNotification is published whenever a campaign enters or
// leaves a lifecycle state, for UI and audit consumers.
type StatusChangeNotification struct {
	CampaignID string         `json:"campaign_id"`
	From       CampaignStatus `json:"from"`
	To         CampaignStatus `json:"to"`
	ChangedAt  time.Time      `json:"changed_at"`
}
