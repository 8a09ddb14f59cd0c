package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// Dial control signals understood by the external dispatcher.
const (
	DialSignalStart  = "start"
	DialSignalPause  = "pause"
	DialSignalResume = "resume"
	DialSignalCancel = "cancel"
)

// LifecycleService owns the campaign state machine. Every transition is a
// compare-and-swap on the status column, so concurrent operations on the
// same campaign are serialized by the store: exactly one of two racing
// calls can win.
type LifecycleService struct {
	campaigns CampaignStore
	contacts  ContactStore
	scheduler TriggerScheduler
	dial      DialController
	notifier  StatusNotifier
}

func NewLifecycleService(
	campaigns CampaignStore,
	contacts ContactStore,
	scheduler TriggerScheduler,
	dial DialController,
	notifier StatusNotifier,
) *LifecycleService {
	return &LifecycleService{
		campaigns: campaigns,
		contacts:  contacts,
		scheduler: scheduler,
		dial:      dial,
		notifier:  notifier,
	}
}

// CreateCampaign creates a new campaign in DRAFT
func (s *LifecycleService) CreateCampaign(createdBy string, req *models.CreateCampaignRequest) (*models.CampaignResponse, error) {
	windows := models.JSON{}
	if req.CallingWindows != nil {
		windows["windows"] = req.CallingWindows
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	maxConcurrency := req.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}

	campaign := &models.Campaign{
		Name:           req.Name,
		Type:           req.Type,
		Status:         models.CampaignStatusDraft,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Timezone:       timezone,
		CallingWindows: windows,
		Config:         req.Config,
		MaxConcurrency: maxConcurrency,
		CreatedBy:      createdBy,
	}

	if err := s.campaigns.Create(campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	return s.toResponse(campaign), nil
}

// GetCampaign retrieves a campaign by ID
func (s *LifecycleService) GetCampaign(id string) (*models.CampaignResponse, error) {
	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(campaign), nil
}

// ListCampaigns retrieves campaigns, optionally filtered by status
func (s *LifecycleService) ListCampaigns(status models.CampaignStatus) ([]*models.CampaignResponse, error) {
	campaigns, err := s.campaigns.GetAll(status)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	responses := make([]*models.CampaignResponse, len(campaigns))
	for i, campaign := range campaigns {
		responses[i] = s.toResponse(campaign)
	}
	return responses, nil
}

// UpdateCampaign updates configuration. Only campaigns that are not
// currently dialing can be edited.
func (s *LifecycleService) UpdateCampaign(id string, req *models.UpdateCampaignRequest) (*models.CampaignResponse, error) {
	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusPaused:
	default:
		return nil, &models.InvalidStateTransitionError{CampaignID: id, From: campaign.Status, Operation: "update"}
	}

	campaign.Name = req.Name
	campaign.StartTime = req.StartTime
	campaign.EndTime = req.EndTime
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", req.Timezone, err)
		}
		campaign.Timezone = req.Timezone
	}
	if req.CallingWindows != nil {
		campaign.CallingWindows = models.JSON{"windows": req.CallingWindows}
	}
	if req.Config != nil {
		campaign.Config = req.Config
	}
	if req.MaxConcurrency > 0 {
		campaign.MaxConcurrency = req.MaxConcurrency
	}

	if err := s.campaigns.Update(campaign); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return s.toResponse(campaign), nil
}

// DeleteCampaign removes a campaign. Deleting an ACTIVE campaign is
// rejected; cancel it first.
func (s *LifecycleService) DeleteCampaign(id string) error {
	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		return err
	}
	if campaign.Status == models.CampaignStatusActive {
		return &models.InvalidStateTransitionError{CampaignID: id, From: campaign.Status, Operation: "delete"}
	}
	s.scheduler.Disarm(id)
	return s.campaigns.Delete(id)
}

// Start activates a DRAFT campaign immediately and signals the dial
// dispatcher to begin consuming its contacts.
func (s *LifecycleService) Start(ctx context.Context, id string) error {
	return s.activate(ctx, id, models.CampaignStatusDraft)
}

// StartScheduled activates a SCHEDULED campaign. This is the path the
// armed trigger (and the reconciler's past-due audit) takes when firing.
func (s *LifecycleService) StartScheduled(ctx context.Context, id string) error {
	return s.activate(ctx, id, models.CampaignStatusScheduled)
}

func (s *LifecycleService) activate(ctx context.Context, id string, from models.CampaignStatus) error {
	now := time.Now()
	swapped, err := s.campaigns.CompareAndSwapStatus(id, from, models.CampaignStatusActive, map[string]interface{}{
		"activated_at": now,
	})
	if err != nil {
		return fmt.Errorf("failed to activate campaign %s: %w", id, err)
	}
	if !swapped {
		return s.rejectedTransition(id, "start")
	}

	if from == models.CampaignStatusScheduled {
		s.scheduler.Disarm(id)
		if err := s.campaigns.DisarmTrigger(id); err != nil {
			logrus.Errorf("Failed to disarm trigger record for %s: %v", id, err)
		}
	}

	if err := s.dial.Signal(ctx, id, DialSignalStart); err != nil {
		// The reconciler audit will retry dispatch for an active campaign
		// whose signal was lost; activation itself stands.
		logrus.Errorf("Failed to signal dial start for %s: %v", id, err)
	}

	s.notify(ctx, id, from, models.CampaignStatusActive)
	logrus.Infof("Campaign %s activated (from %s)", id, from)
	return nil
}

// Schedule arms a future activation for a DRAFT campaign. The status write
// and the trigger record are committed in one transaction; only then is the
// in-process timer armed.
func (s *LifecycleService) Schedule(ctx context.Context, id string, fireAt time.Time) error {
	if fireAt.Before(time.Now()) {
		return fmt.Errorf("schedule time %s is in the past", fireAt.Format(time.RFC3339))
	}

	swapped, err := s.campaigns.ScheduleTx(id, fireAt)
	if err != nil {
		return fmt.Errorf("failed to schedule campaign %s: %w", id, err)
	}
	if !swapped {
		return s.rejectedTransition(id, "schedule")
	}

	s.scheduler.Arm(id, fireAt)
	s.notify(ctx, id, models.CampaignStatusDraft, models.CampaignStatusScheduled)
	logrus.Infof("Campaign %s scheduled for %s", id, fireAt.Format(time.RFC3339))
	return nil
}

// Pause stops new dial dispatch for an ACTIVE campaign. In-flight contacts
// keep their status and are picked up again on resume.
func (s *LifecycleService) Pause(ctx context.Context, id string) error {
	swapped, err := s.campaigns.CompareAndSwapStatus(id, models.CampaignStatusActive, models.CampaignStatusPaused, nil)
	if err != nil {
		return fmt.Errorf("failed to pause campaign %s: %w", id, err)
	}
	if !swapped {
		return s.rejectedTransition(id, "pause")
	}

	if err := s.dial.Signal(ctx, id, DialSignalPause); err != nil {
		logrus.Errorf("Failed to signal dial pause for %s: %v", id, err)
	}
	s.notify(ctx, id, models.CampaignStatusActive, models.CampaignStatusPaused)
	return nil
}

// Resume puts a PAUSED campaign back to ACTIVE.
func (s *LifecycleService) Resume(ctx context.Context, id string) error {
	swapped, err := s.campaigns.CompareAndSwapStatus(id, models.CampaignStatusPaused, models.CampaignStatusActive, nil)
	if err != nil {
		return fmt.Errorf("failed to resume campaign %s: %w", id, err)
	}
	if !swapped {
		return s.rejectedTransition(id, "resume")
	}

	if err := s.dial.Signal(ctx, id, DialSignalResume); err != nil {
		logrus.Errorf("Failed to signal dial resume for %s: %v", id, err)
	}
	s.notify(ctx, id, models.CampaignStatusPaused, models.CampaignStatusActive)
	return nil
}

// Cancel moves any non-terminal campaign to CANCELLED: disarms its trigger,
// stops dispatch, and force-fails the remaining contacts. Cancellation is
// cooperative towards live calls; their eventual ended events still update
// counters normally.
func (s *LifecycleService) Cancel(ctx context.Context, id string) error {
	// The observed status can move under us; re-read and retry the CAS a
	// few times before giving up.
	var from models.CampaignStatus
	swapped := false
	for attempt := 0; attempt < 3 && !swapped; attempt++ {
		campaign, err := s.campaigns.GetByID(id)
		if err != nil {
			return err
		}
		if campaign.Status.IsTerminal() {
			return &models.InvalidStateTransitionError{CampaignID: id, From: campaign.Status, Operation: "cancel"}
		}
		from = campaign.Status
		now := time.Now()
		swapped, err = s.campaigns.CompareAndSwapStatus(id, from, models.CampaignStatusCancelled, map[string]interface{}{
			"finished_at": now,
		})
		if err != nil {
			return fmt.Errorf("failed to cancel campaign %s: %w", id, err)
		}
	}
	if !swapped {
		return s.rejectedTransition(id, "cancel")
	}

	s.scheduler.Disarm(id)
	if err := s.campaigns.DisarmTrigger(id); err != nil {
		logrus.Errorf("Failed to disarm trigger record for %s: %v", id, err)
	}

	if err := s.dial.Signal(ctx, id, DialSignalCancel); err != nil {
		logrus.Errorf("Failed to signal dial cancel for %s: %v", id, err)
	}

	cancelled, err := s.contacts.CancelRemaining(id)
	if err != nil {
		logrus.Errorf("Failed to cancel remaining contacts for %s: %v", id, err)
	} else if cancelled > 0 {
		logrus.Infof("Cancelled %d remaining contacts for campaign %s", cancelled, id)
	}

	s.notify(ctx, id, from, models.CampaignStatusCancelled)
	return nil
}

// Complete moves a finished campaign to COMPLETED. Used by the reconciler
// once every contact is terminal and the end time has passed. Idempotent:
// a campaign already completed reports swapped=false without error.
func (s *LifecycleService) Complete(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	for _, from := range []models.CampaignStatus{models.CampaignStatusActive, models.CampaignStatusPaused} {
		swapped, err := s.campaigns.CompareAndSwapStatus(id, from, models.CampaignStatusCompleted, map[string]interface{}{
			"finished_at": now,
		})
		if err != nil {
			return false, fmt.Errorf("failed to complete campaign %s: %w", id, err)
		}
		if swapped {
			s.notify(ctx, id, from, models.CampaignStatusCompleted)
			logrus.Infof("Campaign %s completed", id)
			return true, nil
		}
	}
	return false, nil
}

// rejectedTransition builds the user-facing rejection with the actually
// observed status.
func (s *LifecycleService) rejectedTransition(id, operation string) error {
	campaign, err := s.campaigns.GetByID(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("campaign %s not found after rejected %s: %w", id, operation, err)
	}
	return &models.InvalidStateTransitionError{CampaignID: id, From: campaign.Status, Operation: operation}
}

func (s *LifecycleService) notify(ctx context.Context, id string, from, to models.CampaignStatus) {
	s.notifier.NotifyStatusChange(ctx, models.StatusChangeNotification{
		CampaignID: id,
		From:       from,
		To:         to,
		ChangedAt:  time.Now(),
	})
}

func (s *LifecycleService) toResponse(campaign *models.Campaign) *models.CampaignResponse {
	return &models.CampaignResponse{
		ID:             campaign.ID,
		Name:           campaign.Name,
		Type:           campaign.Type,
		Status:         campaign.Status,
		StartTime:      campaign.StartTime,
		EndTime:        campaign.EndTime,
		Timezone:       campaign.Timezone,
		CallingWindows: campaign.CallingWindows,
		Config:         campaign.Config,
		MaxConcurrency: campaign.MaxConcurrency,
		CreatedBy:      campaign.CreatedBy,
		ActivatedAt:    campaign.ActivatedAt,
		FinishedAt:     campaign.FinishedAt,
		CreatedAt:      campaign.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      campaign.UpdatedAt.Format(time.RFC3339),
	}
}
