package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// CDRIngestService consumes call-lifecycle events, maintains call detail
// records and applies counter deltas. Events may arrive duplicated and out
// of order; every write below is an idempotent upsert keyed by call id, and
// outcome counters are guarded by the record's prior outcome so a
// redelivered ended event cannot double count.
type CDRIngestService struct {
	cdrs     CDRStore
	metrics  *MetricsService
	rabbitMQ *RabbitMQService
	stopChan chan struct{}
}

func NewCDRIngestService(cdrs CDRStore, metrics *MetricsService, rabbitMQ *RabbitMQService) *CDRIngestService {
	return &CDRIngestService{
		cdrs:     cdrs,
		metrics:  metrics,
		rabbitMQ: rabbitMQ,
	}
}

// Store exposes the backing CDR store for metrics rebuilds.
func (s *CDRIngestService) Store() CDRStore {
	return s.cdrs
}

// StartConsumer starts consuming call events from RabbitMQ
func (s *CDRIngestService) StartConsumer() error {
	stopChan, err := s.rabbitMQ.Consume(QueueCallEvents, "cdr-ingest", s.processMessage)
	if err != nil {
		return fmt.Errorf("failed to start CDR consumer: %w", err)
	}
	s.stopChan = stopChan
	logrus.Info("CDR ingestion consumer started")
	return nil
}

// StopConsumer stops the consumer
func (s *CDRIngestService) StopConsumer() {
	if s.stopChan != nil {
		close(s.stopChan)
	}
}

func (s *CDRIngestService) processMessage(body []byte) error {
	var event models.CallEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logrus.Errorf("Dropping malformed call event: %v", err)
		return nil
	}
	if event.CallID == "" {
		logrus.Error("Dropping call event with no call id")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.Apply(ctx, &event)
}

// Apply folds one call event into the CDR store and the counters.
func (s *CDRIngestService) Apply(ctx context.Context, event *models.CallEvent) error {
	cdr := &models.CallDetailRecord{
		CallID:      event.CallID,
		CampaignID:  event.CampaignID,
		ContactID:   event.ContactID,
		PhoneNumber: event.PhoneNumber,
	}

	switch event.Type {
	case models.CallEventInitiated:
		cdr.Status = "initiated"
		cdr.StartedAt = event.OccurredAt
		created, err := s.cdrs.CreateOnInitiated(ctx, cdr)
		if err != nil {
			return fmt.Errorf("failed to create CDR for call %s: %w", event.CallID, err)
		}
		if !created {
			// Redelivered initiated: record exists, counters already moved.
			logrus.Debugf("Duplicate initiated event for call %s", event.CallID)
			return nil
		}
		s.metrics.ApplyDelta(ctx, event.CampaignID, models.CounterActiveCalls, 1)
		s.metrics.ApplyDelta(ctx, event.CampaignID, models.CounterTotalAttempts, 1)
		return nil

	case models.CallEventAnswered:
		if err := s.cdrs.MarkAnswered(ctx, cdr, event.OccurredAt); err != nil {
			return fmt.Errorf("failed to mark call %s answered: %w", event.CallID, err)
		}
		return nil

	case models.CallEventDTMF:
		input := models.DTMFInput{
			EventID: event.EventID,
			Digit:   event.Digit,
			At:      event.OccurredAt,
		}
		if err := s.cdrs.AppendDTMF(ctx, cdr, input); err != nil {
			return fmt.Errorf("failed to append DTMF for call %s: %w", event.CallID, err)
		}
		return nil

	case models.CallEventActionTriggered:
		action := models.TriggeredAction{
			EventID: event.EventID,
			Type:    event.ActionType,
			At:      event.OccurredAt,
		}
		if err := s.cdrs.AppendAction(ctx, cdr, action); err != nil {
			return fmt.Errorf("failed to append action for call %s: %w", event.CallID, err)
		}
		return nil

	case models.CallEventEnded:
		outcome := event.Outcome
		if outcome == "" {
			outcome = models.CallOutcomeFailed
		}
		counted, err := s.cdrs.FinalizeEnded(ctx, cdr, outcome, event.OccurredAt, event.CostCents)
		if err != nil {
			return fmt.Errorf("failed to finalize call %s: %w", event.CallID, err)
		}
		if !counted {
			// Second delivery of ended: field updates already succeeded
			// once, counters must not move again.
			logrus.Debugf("Duplicate ended event for call %s", event.CallID)
			return nil
		}
		s.metrics.ApplyDelta(ctx, event.CampaignID, models.CounterActiveCalls, -1)
		s.metrics.ApplyDelta(ctx, event.CampaignID, outcomeCounter(outcome), 1)
		return nil

	default:
		logrus.Warnf("Unknown call event type %q for call %s, dropping", event.Type, event.CallID)
		return nil
	}
}

// GetCDR returns one call detail record by call id.
func (s *CDRIngestService) GetCDR(ctx context.Context, callID string) (*models.CallDetailRecord, error) {
	return s.cdrs.GetByCallID(ctx, callID)
}

// ListCampaignCDRs returns a page of a campaign's call detail records,
// backing the report data export.
func (s *CDRIngestService) ListCampaignCDRs(ctx context.Context, campaignID string, limit, offset int) ([]*models.CallDetailRecord, error) {
	return s.cdrs.ListByCampaign(ctx, campaignID, limit, offset)
}

func outcomeCounter(outcome models.CallOutcome) string {
	switch outcome {
	case models.CallOutcomeAnswered:
		return models.CounterAnswered
	case models.CallOutcomeBusy:
		return models.CounterBusy
	case models.CallOutcomeConverted:
		return models.CounterConverted
	default:
		return models.CounterFailed
	}
}
