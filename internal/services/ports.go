package services

import (
	"context"
	"time"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// Collaborator and store interfaces consumed by the core services. The
// physical telephony layer, SMS transport and dial dispatcher live outside
// this backend; we only talk to them through these.

// SMSSender delivers one outbound SMS. Send failures are surfaced to the
// caller, which decides whether they are fatal (they are not, for donation
// links).
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, body string) error
}

// TelephonyCommander asks the telephony layer to act on a live call.
// Requests are asynchronous and best effort.
type TelephonyCommander interface {
	TerminateCall(ctx context.Context, callID, reason string) error
}

// DialController signals the external dial dispatcher about a campaign.
type DialController interface {
	Signal(ctx context.Context, campaignID, signal string) error
}

// TriggerScheduler arms a timer that invokes start(campaignID) at the given
// time, and disarms it on cancel.
type TriggerScheduler interface {
	Arm(campaignID string, fireAt time.Time)
	Disarm(campaignID string)
}

// StatusNotifier fans out campaign state changes to UI/audit consumers.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, n models.StatusChangeNotification)
}

// CounterStore is the atomic per-campaign counter backend.
type CounterStore interface {
	Incr(ctx context.Context, campaignID, counter string, delta int64) error
	Get(ctx context.Context, campaignID string) (map[string]int64, error)
	Reset(ctx context.Context, campaignID string) error
}

// CDRStore is the document-store surface the ingestion pipeline writes
// through. All writes are idempotent upserts by call id.
type CDRStore interface {
	CreateOnInitiated(ctx context.Context, cdr *models.CallDetailRecord) (bool, error)
	MarkAnswered(ctx context.Context, cdr *models.CallDetailRecord, at time.Time) error
	AppendDTMF(ctx context.Context, cdr *models.CallDetailRecord, input models.DTMFInput) error
	AppendAction(ctx context.Context, cdr *models.CallDetailRecord, action models.TriggeredAction) error
	FinalizeEnded(ctx context.Context, cdr *models.CallDetailRecord, outcome models.CallOutcome, endedAt time.Time, costCents int64) (bool, error)
	GetByCallID(ctx context.Context, callID string) (*models.CallDetailRecord, error)
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]*models.CallDetailRecord, error)
}

// ActionStore persists executed actions keyed by originating event id.
type ActionStore interface {
	Create(action *models.Action) error
	GetByID(id string) (*models.Action, error)
	ListByCampaign(campaignID string, limit, offset int) ([]*models.Action, error)
}

// BlacklistStore is the compliance-critical blacklist record.
type BlacklistStore interface {
	Create(entry *models.BlacklistEntry) error
	GetByPhone(phoneNumber string) (*models.BlacklistEntry, error)
}

// BlacklistCache is the best-effort fast-lookup mirror of the blacklist.
type BlacklistCache interface {
	Add(ctx context.Context, phoneNumber string) error
	Remove(ctx context.Context, phoneNumber string) error
	Contains(ctx context.Context, phoneNumber string) (bool, error)
}

// CampaignStore is the lifecycle manager's view of campaign persistence.
type CampaignStore interface {
	Create(campaign *models.Campaign) error
	GetByID(id string) (*models.Campaign, error)
	GetAll(status models.CampaignStatus) ([]*models.Campaign, error)
	Update(campaign *models.Campaign) error
	Delete(id string) error
	CompareAndSwapStatus(id string, from, to models.CampaignStatus, extra map[string]interface{}) (bool, error)
	ScheduleTx(id string, fireAt time.Time) (bool, error)
	DisarmTrigger(id string) error
	GetTrigger(id string) (*models.ScheduledTrigger, error)
	ListArmedTriggers() ([]*models.ScheduledTrigger, error)
	ListScheduledPastDue(grace time.Duration) ([]*models.Campaign, error)
	ListByStatus(status models.CampaignStatus) ([]*models.Campaign, error)
}

// ContactStore is the reconciler's and lifecycle manager's view of contacts.
type ContactStore interface {
	GetByID(id string) (*models.Contact, error)
	CountNonTerminal(campaignID string) (int64, error)
	// CountPending counts contacts still waiting to be dialed. An empty
	// campaign id counts across all campaigns (the aggregate view).
	CountPending(campaignID string) (int64, error)
	CancelRemaining(campaignID string) (int64, error)
	FailStuck(campaignID string, cutoff time.Time) (int64, error)
}
