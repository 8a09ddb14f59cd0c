package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

type ingestFixture struct {
	service  *CDRIngestService
	cdrs     *memCDRStore
	counters *memCounterStore
	metrics  *MetricsService
}

func newIngestFixture() *ingestFixture {
	cdrs := newMemCDRStore()
	counters := newMemCounterStore()
	metrics := NewMetricsService(counters, NewMetricsHub(), newMemContactStore())
	return &ingestFixture{
		service:  NewCDRIngestService(cdrs, metrics, nil),
		cdrs:     cdrs,
		counters: counters,
		metrics:  metrics,
	}
}

func callEvent(eventID string, typ models.CallEventType, callID string) *models.CallEvent {
	return &models.CallEvent{
		EventID:     eventID,
		Type:        typ,
		CallID:      callID,
		CampaignID:  "campaign-1",
		ContactID:   "contact-1",
		PhoneNumber: "+15550002222",
		OccurredAt:  time.Now(),
	}
}

func TestInitiatedCreatesRecordAndMovesCounters(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	cdr, err := f.cdrs.GetByCallID(ctx, "call-1")
	if err != nil {
		t.Fatalf("CDR missing: %v", err)
	}
	if cdr.Status != "initiated" {
		t.Errorf("status = %s, want initiated", cdr.Status)
	}
	if got := f.counters.value("campaign-1", models.CounterActiveCalls); got != 1 {
		t.Errorf("active_calls = %d, want 1", got)
	}
	if got := f.counters.value("campaign-1", models.CounterTotalAttempts); got != 1 {
		t.Errorf("total_attempts = %d, want 1", got)
	}
}

func TestDuplicateInitiatedDoesNotDoubleCount(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
			t.Fatalf("Apply #%d: %v", i, err)
		}
	}

	if got := f.counters.value("campaign-1", models.CounterTotalAttempts); got != 1 {
		t.Errorf("total_attempts = %d after redeliveries, want 1", got)
	}
	if got := f.counters.value("campaign-1", models.CounterActiveCalls); got != 1 {
		t.Errorf("active_calls = %d after redeliveries, want 1", got)
	}
}

func TestEndedFinalizesAndCountsOnce(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
		t.Fatalf("initiated: %v", err)
	}
	ended := callEvent("e2", models.CallEventEnded, "call-1")
	ended.Outcome = models.CallOutcomeAnswered
	ended.CostCents = 42
	for i := 0; i < 2; i++ {
		if err := f.service.Apply(ctx, ended); err != nil {
			t.Fatalf("ended #%d: %v", i, err)
		}
	}

	cdr, err := f.cdrs.GetByCallID(ctx, "call-1")
	if err != nil {
		t.Fatalf("CDR missing: %v", err)
	}
	if cdr.Outcome != models.CallOutcomeAnswered {
		t.Errorf("outcome = %s, want answered", cdr.Outcome)
	}
	if cdr.CostCents != 42 {
		t.Errorf("cost_cents = %d, want 42", cdr.CostCents)
	}
	if got := f.counters.value("campaign-1", models.CounterAnswered); got != 1 {
		t.Errorf("answered = %d after redelivery, want 1", got)
	}
	if got := f.counters.value("campaign-1", models.CounterActiveCalls); got != 0 {
		t.Errorf("active_calls = %d, want 0", got)
	}
}

func TestEndedDefaultsToFailedOutcome(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
		t.Fatalf("initiated: %v", err)
	}
	if err := f.service.Apply(ctx, callEvent("e2", models.CallEventEnded, "call-1")); err != nil {
		t.Fatalf("ended: %v", err)
	}

	if got := f.counters.value("campaign-1", models.CounterFailed); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
}

func TestOutOfOrderEventsMergeIntoOneRecord(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	// answered and dtmf arrive before initiated; each upserts the record
	// skeleton and the late initiated merges in rather than overwriting.
	answered := callEvent("e2", models.CallEventAnswered, "call-1")
	if err := f.service.Apply(ctx, answered); err != nil {
		t.Fatalf("answered: %v", err)
	}
	dtmf := callEvent("e3", models.CallEventDTMF, "call-1")
	dtmf.Digit = "1"
	if err := f.service.Apply(ctx, dtmf); err != nil {
		t.Fatalf("dtmf: %v", err)
	}
	if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
		t.Fatalf("initiated: %v", err)
	}

	cdr, err := f.cdrs.GetByCallID(ctx, "call-1")
	if err != nil {
		t.Fatalf("CDR missing: %v", err)
	}
	if cdr.AnsweredAt == nil {
		t.Error("answered_at lost after late initiated")
	}
	if len(cdr.DTMFInputs) != 1 {
		t.Errorf("dtmf_inputs = %d, want 1", len(cdr.DTMFInputs))
	}
}

func TestDTMFRedeliveryDeduplicatedByEventID(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
		t.Fatalf("initiated: %v", err)
	}
	dtmf := callEvent("e2", models.CallEventDTMF, "call-1")
	dtmf.Digit = "9"
	for i := 0; i < 2; i++ {
		if err := f.service.Apply(ctx, dtmf); err != nil {
			t.Fatalf("dtmf #%d: %v", i, err)
		}
	}
	// A genuinely new press with its own event id is kept.
	second := callEvent("e3", models.CallEventDTMF, "call-1")
	second.Digit = "9"
	if err := f.service.Apply(ctx, second); err != nil {
		t.Fatalf("second dtmf: %v", err)
	}

	cdr, _ := f.cdrs.GetByCallID(ctx, "call-1")
	if len(cdr.DTMFInputs) != 2 {
		t.Errorf("dtmf_inputs = %d, want 2", len(cdr.DTMFInputs))
	}
}

func TestActionTriggeredAppendsToRecord(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	if err := f.service.Apply(ctx, callEvent("e1", models.CallEventInitiated, "call-1")); err != nil {
		t.Fatalf("initiated: %v", err)
	}
	triggered := callEvent("e2", models.CallEventActionTriggered, "call-1")
	triggered.ActionType = models.ActionTypeDonation
	for i := 0; i < 2; i++ {
		if err := f.service.Apply(ctx, triggered); err != nil {
			t.Fatalf("action_triggered #%d: %v", i, err)
		}
	}

	cdr, _ := f.cdrs.GetByCallID(ctx, "call-1")
	if len(cdr.ActionsTriggered) != 1 {
		t.Errorf("actions_triggered = %d, want 1", len(cdr.ActionsTriggered))
	}
}

func TestUnknownEventTypeDropped(t *testing.T) {
	f := newIngestFixture()
	if err := f.service.Apply(context.Background(), callEvent("e1", models.CallEventType("transferred"), "call-1")); err != nil {
		t.Errorf("unknown event type: err = %v, want nil", err)
	}
}

func TestAnswerRateAcrossMixedOutcomes(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	outcomes := []models.CallOutcome{
		models.CallOutcomeAnswered,
		models.CallOutcomeConverted,
		models.CallOutcomeBusy,
	}
	for i, outcome := range outcomes {
		callID := fmt.Sprintf("call-%d", i)
		if err := f.service.Apply(ctx, callEvent(fmt.Sprintf("i%d", i), models.CallEventInitiated, callID)); err != nil {
			t.Fatalf("initiated %s: %v", callID, err)
		}
		ended := callEvent(fmt.Sprintf("e%d", i), models.CallEventEnded, callID)
		ended.Outcome = outcome
		if err := f.service.Apply(ctx, ended); err != nil {
			t.Fatalf("ended %s: %v", callID, err)
		}
	}

	snapshot, err := f.metrics.Snapshot(ctx, "campaign-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.TotalAttempts != 3 {
		t.Errorf("total_attempts = %d, want 3", snapshot.TotalAttempts)
	}
	// answered + converted over three finished calls
	if math.Abs(snapshot.AnswerRate-2.0/3.0) > 1e-9 {
		t.Errorf("answer_rate = %f, want %f", snapshot.AnswerRate, 2.0/3.0)
	}
	if math.Abs(snapshot.ConversionRate-1.0/3.0) > 1e-9 {
		t.Errorf("conversion_rate = %f, want %f", snapshot.ConversionRate, 1.0/3.0)
	}
}

func TestProcessMessageConsumesMalformedCallEvent(t *testing.T) {
	f := newIngestFixture()
	if err := f.service.processMessage([]byte("not json")); err != nil {
		t.Errorf("malformed payload: err = %v, want nil (acked away)", err)
	}
	if err := f.service.processMessage([]byte(`{"type":"initiated"}`)); err != nil {
		t.Errorf("missing call id: err = %v, want nil (acked away)", err)
	}
}
