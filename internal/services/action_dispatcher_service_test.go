package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

type dispatcherFixture struct {
	service   *ActionDispatcherService
	actions   *memActionStore
	blacklist *memBlacklistStore
	cache     *memBlacklistCache
	telephony *memTelephonyCommander
	sms       *memSMSSender
	counters  *memCounterStore
}

func newDispatcherFixture() *dispatcherFixture {
	actions := newMemActionStore()
	blacklist := newMemBlacklistStore()
	cache := newMemBlacklistCache()
	telephony := &memTelephonyCommander{}
	sms := &memSMSSender{}
	counters := newMemCounterStore()
	metrics := NewMetricsService(counters, NewMetricsHub(), newMemContactStore())
	return &dispatcherFixture{
		service:   NewActionDispatcherService(actions, blacklist, cache, telephony, sms, metrics, nil),
		actions:   actions,
		blacklist: blacklist,
		cache:     cache,
		telephony: telephony,
		sms:       sms,
		counters:  counters,
	}
}

func donationEvent(eventID string) *models.ActionEvent {
	return &models.ActionEvent{
		EventID:     eventID,
		Type:        models.ActionTypeDonation,
		CallID:      "call-1",
		CampaignID:  "campaign-1",
		ContactID:   "contact-1",
		PhoneNumber: "+15550001111",
		Digit:       "1",
		OccurredAt:  time.Now(),
	}
}

func optOutEvent(eventID string) *models.ActionEvent {
	event := donationEvent(eventID)
	event.Type = models.ActionTypeOptOut
	event.Digit = "9"
	return event
}

func TestDonationSendsTrackingLink(t *testing.T) {
	f := newDispatcherFixture()

	if err := f.service.Dispatch(context.Background(), donationEvent("evt-1")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(f.sms.sent) != 1 {
		t.Fatalf("sent %d SMS, want 1", len(f.sms.sent))
	}
	if !strings.Contains(f.sms.sent[0], "https://") {
		t.Errorf("SMS body has no tracking link: %s", f.sms.sent[0])
	}

	action, err := f.actions.GetByID("evt-1")
	if err != nil {
		t.Fatalf("action row missing: %v", err)
	}
	if action.Outcome != models.ActionOutcomeSuccess {
		t.Errorf("outcome = %s, want success", action.Outcome)
	}
	if got := f.counters.value("campaign-1", models.CounterDonations); got != 1 {
		t.Errorf("donations counter = %d, want 1", got)
	}
	if got := f.counters.value(models.AggregateCampaignID, models.CounterDonations); got != 1 {
		t.Errorf("aggregate donations counter = %d, want 1", got)
	}
}

func TestActionRecordKeyedByOpaqueEventID(t *testing.T) {
	f := newDispatcherFixture()

	// Telephony event ids are opaque strings, not UUIDs; the action row is
	// keyed by whatever the upstream assigns.
	eventID := "pbx-evt.2026-08-31.000123"
	if err := f.service.Dispatch(context.Background(), donationEvent(eventID)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	action, err := f.actions.GetByID(eventID)
	if err != nil {
		t.Fatalf("action row missing for opaque event id: %v", err)
	}
	if action.Outcome != models.ActionOutcomeSuccess {
		t.Errorf("outcome = %s, want success", action.Outcome)
	}
}

func TestDonationRedeliveryIsNoOp(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	if err := f.service.Dispatch(ctx, donationEvent("evt-1")); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	err := f.service.Dispatch(ctx, donationEvent("evt-1"))
	if !errors.Is(err, models.ErrDuplicateEvent) {
		t.Fatalf("second Dispatch err = %v, want ErrDuplicateEvent", err)
	}

	if len(f.sms.sent) != 1 {
		t.Errorf("sent %d SMS after redelivery, want 1", len(f.sms.sent))
	}
	if got := f.counters.value("campaign-1", models.CounterDonations); got != 1 {
		t.Errorf("donations counter = %d after redelivery, want 1", got)
	}
}

func TestDonationSMSFailureIsNotFatal(t *testing.T) {
	f := newDispatcherFixture()
	f.sms.err = errors.New("gateway timeout")

	// A failed send is recorded and the event is consumed; endless
	// redelivery would just spam the gateway.
	if err := f.service.Dispatch(context.Background(), donationEvent("evt-1")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	action, err := f.actions.GetByID("evt-1")
	if err != nil {
		t.Fatalf("action row missing: %v", err)
	}
	if action.Outcome != models.ActionOutcomeFailed {
		t.Errorf("outcome = %s, want failed", action.Outcome)
	}
}

func TestOptOutBlacklistsAndTerminates(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	if err := f.service.Dispatch(ctx, optOutEvent("evt-2")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	entry, err := f.blacklist.GetByPhone("+15550001111")
	if err != nil {
		t.Fatalf("blacklist entry missing: %v", err)
	}
	if entry.Source != models.BlacklistSourceSelfOptOut {
		t.Errorf("source = %s, want self_opt_out", entry.Source)
	}

	cached, _ := f.cache.Contains(ctx, "+15550001111")
	if !cached {
		t.Error("number not mirrored into cache")
	}
	if len(f.telephony.terminated) != 1 || f.telephony.terminated[0] != "call-1:opt_out" {
		t.Errorf("terminate requests = %v, want one for call-1", f.telephony.terminated)
	}

	action, err := f.actions.GetByID("evt-2")
	if err != nil {
		t.Fatalf("action row missing: %v", err)
	}
	if action.Outcome != models.ActionOutcomeSuccess {
		t.Errorf("outcome = %s, want success", action.Outcome)
	}
	if got := f.counters.value("campaign-1", models.CounterOptOuts); got != 1 {
		t.Errorf("opt_outs counter = %d, want 1", got)
	}
}

func TestOptOutBlacklistWriteFailurePropagates(t *testing.T) {
	f := newDispatcherFixture()
	f.blacklist.failCreate = true

	err := f.service.Dispatch(context.Background(), optOutEvent("evt-3"))
	if !models.IsComplianceWriteFailure(err) {
		t.Fatalf("err = %v, want compliance write failure", err)
	}

	// Nothing downstream of the failed compliance write may have happened.
	if _, err := f.actions.GetByID("evt-3"); !errors.Is(err, models.ErrNotFound) {
		t.Error("action recorded despite failed blacklist write")
	}
	if len(f.telephony.terminated) != 0 {
		t.Error("terminate requested despite failed blacklist write")
	}
	if got := f.counters.value("campaign-1", models.CounterOptOuts); got != 0 {
		t.Errorf("opt_outs counter = %d, want 0", got)
	}
}

func TestOptOutDegradedWhenBestEffortStepsFail(t *testing.T) {
	f := newDispatcherFixture()
	f.cache.failAdd = true
	f.telephony.err = errors.New("broker down")

	if err := f.service.Dispatch(context.Background(), optOutEvent("evt-4")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if _, err := f.blacklist.GetByPhone("+15550001111"); err != nil {
		t.Fatal("blacklist entry missing; compliance step must still land")
	}
	action, err := f.actions.GetByID("evt-4")
	if err != nil {
		t.Fatalf("action row missing: %v", err)
	}
	if action.Outcome != models.ActionOutcomeDegraded {
		t.Errorf("outcome = %s, want degraded", action.Outcome)
	}
	if got := f.counters.value("campaign-1", models.CounterOptOuts); got != 1 {
		t.Errorf("opt_outs counter = %d, want 1", got)
	}
}

func TestOptOutRedeliveryIsNoOp(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	if err := f.service.Dispatch(ctx, optOutEvent("evt-5")); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	err := f.service.Dispatch(ctx, optOutEvent("evt-5"))
	if !errors.Is(err, models.ErrDuplicateEvent) {
		t.Fatalf("second Dispatch err = %v, want ErrDuplicateEvent", err)
	}
	if len(f.telephony.terminated) != 1 {
		t.Errorf("terminate requests = %d after redelivery, want 1", len(f.telephony.terminated))
	}
	if got := f.counters.value("campaign-1", models.CounterOptOuts); got != 1 {
		t.Errorf("opt_outs counter = %d after redelivery, want 1", got)
	}
}

func TestDispatchDropsUnknownActionType(t *testing.T) {
	f := newDispatcherFixture()
	event := donationEvent("evt-6")
	event.Type = models.ActionType("loyalty_points")

	if err := f.service.Dispatch(context.Background(), event); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := f.actions.GetByID("evt-6"); !errors.Is(err, models.ErrNotFound) {
		t.Error("action recorded for unknown type")
	}
}

func TestProcessMessageConsumesMalformedPayload(t *testing.T) {
	f := newDispatcherFixture()

	if err := f.service.processMessage([]byte("{not json")); err != nil {
		t.Errorf("malformed payload: err = %v, want nil (acked away)", err)
	}
	if err := f.service.processMessage([]byte(`{"type":"donation"}`)); err != nil {
		t.Errorf("missing event id: err = %v, want nil (acked away)", err)
	}
}

func TestProcessMessageSwallowsDuplicate(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.service.Dispatch(context.Background(), donationEvent("evt-7")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	payload := []byte(`{"event_id":"evt-7","type":"donation","campaign_id":"campaign-1","phone_number":"+15550001111"}`)
	if err := f.service.processMessage(payload); err != nil {
		t.Errorf("redelivered payload: err = %v, want nil", err)
	}
}
