package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// ActionHandler executes one action kind. New kinds are added by
// registering a handler, not by new types.
type ActionHandler func(ctx context.Context, event *models.ActionEvent) error

// ActionDispatcherService consumes DTMF-triggered action events and runs
// the matching side effect exactly once in effect. The Action row, keyed by
// the originating event id, is the idempotency guard: a redelivered event
// finds it and returns the recorded outcome without re-executing.
type ActionDispatcherService struct {
	actions   ActionStore
	blacklist BlacklistStore
	cache     BlacklistCache
	telephony TelephonyCommander
	sms       SMSSender
	metrics   *MetricsService
	rabbitMQ  *RabbitMQService

	handlers map[models.ActionType]ActionHandler
	stopChan chan struct{}

	trackingBaseURL string
}

func NewActionDispatcherService(
	actions ActionStore,
	blacklist BlacklistStore,
	cache BlacklistCache,
	telephony TelephonyCommander,
	sms SMSSender,
	metrics *MetricsService,
	rabbitMQ *RabbitMQService,
) *ActionDispatcherService {
	s := &ActionDispatcherService{
		actions:         actions,
		blacklist:       blacklist,
		cache:           cache,
		telephony:       telephony,
		sms:             sms,
		metrics:         metrics,
		rabbitMQ:        rabbitMQ,
		handlers:        make(map[models.ActionType]ActionHandler),
		trackingBaseURL: getEnv("DONATION_LINK_BASE_URL", "https://go.voicebridge.io/d"),
	}
	s.RegisterHandler(models.ActionTypeDonation, s.handleDonation)
	s.RegisterHandler(models.ActionTypeOptOut, s.handleOptOut)
	return s
}

// RegisterHandler wires a handler for an action type.
func (s *ActionDispatcherService) RegisterHandler(actionType models.ActionType, handler ActionHandler) {
	s.handlers[actionType] = handler
}

// StartConsumer starts consuming action events from RabbitMQ
func (s *ActionDispatcherService) StartConsumer() error {
	stopChan, err := s.rabbitMQ.Consume(QueueActionEvents, "action-dispatcher", s.processMessage)
	if err != nil {
		return fmt.Errorf("failed to start action consumer: %w", err)
	}
	s.stopChan = stopChan
	logrus.Info("Action dispatcher consumer started")
	return nil
}

// StopConsumer stops the consumer
func (s *ActionDispatcherService) StopConsumer() {
	if s.stopChan != nil {
		close(s.stopChan)
	}
}

// processMessage decodes and dispatches one delivery. A malformed payload
// is acked away (it will never get better on redelivery); handler failures
// propagate so the broker redelivers.
func (s *ActionDispatcherService) processMessage(body []byte) error {
	var event models.ActionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logrus.Errorf("Dropping malformed action event: %v", err)
		return nil
	}
	if event.EventID == "" {
		logrus.Error("Dropping action event with no event id")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Dispatch(ctx, &event)
	if errors.Is(err, models.ErrDuplicateEvent) {
		return nil
	}
	return err
}

// Dispatch routes one action event to its registered handler.
func (s *ActionDispatcherService) Dispatch(ctx context.Context, event *models.ActionEvent) error {
	handler, ok := s.handlers[event.Type]
	if !ok {
		logrus.Warnf("No handler registered for action type %q, dropping event %s", event.Type, event.EventID)
		return nil
	}
	return handler(ctx, event)
}

// handleDonation sends the donation tracking link by SMS. The send is not
// compliance-critical: a failed send is recorded as a failed Action and the
// event is consumed, leaving retry policy to the SMS transport rather than
// looping the queue forever.
func (s *ActionDispatcherService) handleDonation(ctx context.Context, event *models.ActionEvent) error {
	if existing, err := s.actions.GetByID(event.EventID); err == nil {
		logrus.Infof("Donation event %s already processed (outcome %s)", event.EventID, existing.Outcome)
		return models.ErrDuplicateEvent
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed idempotency lookup for %s: %w", event.EventID, err)
	}

	link := fmt.Sprintf("%s/%s", strings.TrimSuffix(s.trackingBaseURL, "/"), uuid.NewString()[:8])
	body := fmt.Sprintf("Thank you for supporting our campaign! Donate here: %s", link)

	outcome := models.ActionOutcomeSuccess
	detail := link
	if err := s.sms.Send(ctx, event.PhoneNumber, body); err != nil {
		logrus.Errorf("Donation SMS to %s failed: %v", event.PhoneNumber, err)
		sentry.CaptureException(fmt.Errorf("donation sms for event %s: %w", event.EventID, err))
		outcome = models.ActionOutcomeFailed
		detail = fmt.Sprintf("sms send failed: %v", err)
	}

	if err := s.recordAction(event, outcome, detail); err != nil {
		return err
	}

	s.metrics.ApplyDelta(ctx, event.CampaignID, models.CounterDonations, 1)
	return nil
}

// handleOptOut blacklists the caller's number. The relational blacklist
// write is the compliance-critical step and must succeed before anything
// else counts; its failure fails the handler so the event is redelivered.
// Cache update and call termination are best effort on top.
func (s *ActionDispatcherService) handleOptOut(ctx context.Context, event *models.ActionEvent) error {
	if existing, err := s.actions.GetByID(event.EventID); err == nil {
		logrus.Infof("Opt-out event %s already processed (outcome %s)", event.EventID, existing.Outcome)
		return models.ErrDuplicateEvent
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed idempotency lookup for %s: %w", event.EventID, err)
	}

	entry := &models.BlacklistEntry{
		PhoneNumber: event.PhoneNumber,
		Reason:      fmt.Sprintf("self opt-out via DTMF on call %s", event.CallID),
		Source:      models.BlacklistSourceSelfOptOut,
		AddedBy:     "action-dispatcher",
		AddedAt:     time.Now(),
	}
	if err := s.blacklist.Create(entry); err != nil {
		return &models.ComplianceWriteFailureError{PhoneNumber: event.PhoneNumber, Err: err}
	}

	outcome := models.ActionOutcomeSuccess
	var degraded []string

	if err := s.cache.Add(ctx, event.PhoneNumber); err != nil {
		logrus.Errorf("Blacklist cache update for %s failed: %v", event.PhoneNumber, err)
		degraded = append(degraded, "cache update failed")
	}

	if event.CallID != "" {
		if err := s.telephony.TerminateCall(ctx, event.CallID, "opt_out"); err != nil {
			logrus.Errorf("Terminate request for call %s failed: %v", event.CallID, err)
			sentry.CaptureException(fmt.Errorf("terminate call %s: %w", event.CallID, err))
			degraded = append(degraded, "terminate request failed")
		}
	}

	detail := "blacklisted"
	if len(degraded) > 0 {
		outcome = models.ActionOutcomeDegraded
		detail = "blacklisted; " + strings.Join(degraded, "; ")
	}

	if err := s.recordAction(event, outcome, detail); err != nil {
		return err
	}

	s.metrics.ApplyDelta(ctx, event.CampaignID, models.CounterOptOuts, 1)
	return nil
}

// recordAction writes the Action row. A primary-key conflict means a
// concurrent delivery beat us to it; that delivery owns the side effect.
func (s *ActionDispatcherService) recordAction(event *models.ActionEvent, outcome models.ActionOutcome, detail string) error {
	action := &models.Action{
		ID:          event.EventID,
		CampaignID:  event.CampaignID,
		ContactID:   event.ContactID,
		CallID:      event.CallID,
		PhoneNumber: event.PhoneNumber,
		Type:        event.Type,
		Outcome:     outcome,
		Detail:      detail,
		CreatedAt:   time.Now(),
	}
	if err := s.actions.Create(action); err != nil {
		if _, lookupErr := s.actions.GetByID(event.EventID); lookupErr == nil {
			return models.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to record action %s: %w", event.EventID, err)
	}
	return nil
}

// GetAction returns a recorded action by event id.
func (s *ActionDispatcherService) GetAction(id string) (*models.Action, error) {
	return s.actions.GetByID(id)
}

// Store exposes the backing action store for metrics rebuilds.
func (s *ActionDispatcherService) Store() ActionStore {
	return s.actions
}
