package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// dialingRateWindow is the lookback for the dialing rate gauge.
const dialingRateWindow = time.Minute

// MetricsService owns the counter store and the push fan-out. Every counter
// delta from the CDR aggregator or the action dispatcher goes through
// ApplyDelta, which keeps the per-campaign hash, the running aggregate and
// the live subscribers in step. The pull path (Snapshot) reads the same
// counters, so push and pull are consistent modulo push latency.
type MetricsService struct {
	counters CounterStore
	contacts ContactStore
	hub      *MetricsHub

	// Attempt timestamps per campaign key, kept only for the rate window.
	// In-memory and lossy across restarts; the gauge warms back up as
	// attempts flow.
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func NewMetricsService(counters CounterStore, hub *MetricsHub, contacts ContactStore) *MetricsService {
	return &MetricsService{
		counters: counters,
		contacts: contacts,
		hub:      hub,
		attempts: make(map[string][]time.Time),
	}
}

// ApplyDelta atomically moves one counter and pushes the delta to
// subscribers. Counter failures are transient dependency failures: logged
// and reported, but they never block the caller's event processing.
func (s *MetricsService) ApplyDelta(ctx context.Context, campaignID, counter string, delta int64) {
	if delta == 0 {
		return
	}
	if err := s.counters.Incr(ctx, campaignID, counter, delta); err != nil {
		logrus.Errorf("Failed to increment counter %s/%s: %v", campaignID, counter, err)
		sentry.CaptureException(fmt.Errorf("counter increment %s/%s: %w", campaignID, counter, err))
		return
	}
	// Fold into the running all-campaigns aggregate.
	if err := s.counters.Incr(ctx, models.AggregateCampaignID, counter, delta); err != nil {
		logrus.Errorf("Failed to increment aggregate counter %s: %v", counter, err)
	}

	if counter == models.CounterTotalAttempts && delta > 0 {
		s.noteAttempts(campaignID, delta)
		s.noteAttempts(models.AggregateCampaignID, delta)
	}

	s.hub.BroadcastUpdate(MetricsUpdate{
		CampaignID: campaignID,
		Counter:    counter,
		Delta:      delta,
		At:         time.Now(),
	})
}

// noteAttempts records dial attempts for the rate window.
func (s *MetricsService) noteAttempts(key string, delta int64) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	window := pruneAttempts(s.attempts[key], now)
	for i := int64(0); i < delta; i++ {
		window = append(window, now)
	}
	s.attempts[key] = window
}

// dialingRate returns attempts per minute over the rate window.
func (s *MetricsService) dialingRate(key string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[key] = pruneAttempts(s.attempts[key], time.Now())
	return float64(len(s.attempts[key]))
}

func pruneAttempts(window []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-dialingRateWindow)
	kept := window[:0]
	for _, at := range window {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}

// Snapshot returns the current metrics view for one campaign. Queue depth
// and dialing rate are derived on read; a failed pending-contact count
// degrades them to zero rather than failing the whole snapshot.
func (s *MetricsService) Snapshot(ctx context.Context, campaignID string) (*models.MetricsSnapshot, error) {
	counters, err := s.counters.Get(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters for %s: %w", campaignID, err)
	}
	snapshot := models.SnapshotFromCounters(campaignID, counters)

	scope := campaignID
	if campaignID == models.AggregateCampaignID {
		scope = ""
	}
	pending, err := s.contacts.CountPending(scope)
	if err != nil {
		logrus.Warnf("Failed to count pending contacts for %s: %v", campaignID, err)
	} else {
		snapshot.QueueDepth = pending
	}
	snapshot.DialingRate = s.dialingRate(campaignID)
	return snapshot, nil
}

// AggregateSnapshot returns the all-campaigns metrics view.
func (s *MetricsService) AggregateSnapshot(ctx context.Context) (*models.MetricsSnapshot, error) {
	return s.Snapshot(ctx, models.AggregateCampaignID)
}

// Rebuild replays a campaign's CDRs and Action rows and recomputes its
// counters from scratch. The snapshot is a derived index; this is the
// recovery path when the cache is lost or suspect. The correction is also
// folded into the aggregate hash, which is a running sum and would
// otherwise keep the stale contribution.
func (s *MetricsService) Rebuild(ctx context.Context, campaignID string, cdrs CDRStore, actions ActionStore) error {
	before, err := s.counters.Get(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to read counters for %s: %w", campaignID, err)
	}
	if err := s.counters.Reset(ctx, campaignID); err != nil {
		return fmt.Errorf("failed to reset counters for %s: %w", campaignID, err)
	}

	const page = 500
	totals := map[string]int64{}
	for offset := 0; ; offset += page {
		records, err := cdrs.ListByCampaign(ctx, campaignID, page, offset)
		if err != nil {
			return fmt.Errorf("failed to list CDRs for %s: %w", campaignID, err)
		}
		for _, cdr := range records {
			totals[models.CounterTotalAttempts]++
			switch cdr.Outcome {
			case models.CallOutcomeAnswered:
				totals[models.CounterAnswered]++
			case models.CallOutcomeBusy:
				totals[models.CounterBusy]++
			case models.CallOutcomeFailed:
				totals[models.CounterFailed]++
			case models.CallOutcomeConverted:
				totals[models.CounterConverted]++
			default:
				totals[models.CounterActiveCalls]++
			}
		}
		if len(records) < page {
			break
		}
	}

	// Action rows, not actions_triggered sub-documents, are the record of
	// executed side effects: the sub-document only exists when a separate
	// call event reported the action to the CDR pipeline.
	for offset := 0; ; offset += page {
		rows, err := actions.ListByCampaign(campaignID, page, offset)
		if err != nil {
			return fmt.Errorf("failed to list actions for %s: %w", campaignID, err)
		}
		for _, action := range rows {
			switch action.Type {
			case models.ActionTypeDonation:
				totals[models.CounterDonations]++
			case models.ActionTypeOptOut:
				totals[models.CounterOptOuts]++
			}
		}
		if len(rows) < page {
			break
		}
	}

	for counter, value := range totals {
		if err := s.counters.Incr(ctx, campaignID, counter, value); err != nil {
			return fmt.Errorf("failed to write rebuilt counter %s: %w", counter, err)
		}
	}

	for counter := range before {
		if _, ok := totals[counter]; !ok {
			totals[counter] = 0
		}
	}
	for counter, value := range totals {
		if delta := value - before[counter]; delta != 0 {
			if err := s.counters.Incr(ctx, models.AggregateCampaignID, counter, delta); err != nil {
				logrus.Errorf("Failed to fold rebuild correction into aggregate counter %s: %v", counter, err)
			}
		}
	}

	logrus.Infof("Rebuilt metrics for campaign %s from %d counters", campaignID, len(totals))
	return nil
}
