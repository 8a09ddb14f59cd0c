package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// ReconcilerService is the periodic safety net against the two documented
// ways campaigns get silently stuck: contacts left in_progress by a crashed
// dial worker, and SCHEDULED campaigns whose trigger never fired. It also
// closes out campaigns whose work is done. Every write it makes is
// conditional, so it is idempotent and safe to run next to live dispatch.
type ReconcilerService struct {
	campaigns CampaignStore
	contacts  ContactStore
	lifecycle *LifecycleService
	metrics   *MetricsService

	interval       time.Duration
	stuckThreshold time.Duration
	scheduleGrace  time.Duration
	stopChan       chan bool
}

func NewReconcilerService(
	campaigns CampaignStore,
	contacts ContactStore,
	lifecycle *LifecycleService,
	metrics *MetricsService,
) *ReconcilerService {
	return &ReconcilerService{
		campaigns:      campaigns,
		contacts:       contacts,
		lifecycle:      lifecycle,
		metrics:        metrics,
		interval:       time.Minute,
		stuckThreshold: 15 * time.Minute,
		scheduleGrace:  2 * time.Minute,
		stopChan:       make(chan bool),
	}
}

// SetIntervals overrides the sweep cadence and detection thresholds.
func (s *ReconcilerService) SetIntervals(interval, stuckThreshold, scheduleGrace time.Duration) {
	s.interval = interval
	s.stuckThreshold = stuckThreshold
	s.scheduleGrace = scheduleGrace
}

// Start starts the reconciler sweep loop
func (s *ReconcilerService) Start() {
	go s.run()
	logrus.Info("Reconciler service started")
}

// Stop stops the reconciler
func (s *ReconcilerService) Stop() {
	s.stopChan <- true
	logrus.Info("Reconciler service stopped")
}

func (s *ReconcilerService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial sweep so a restart right after a crash heals promptly.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// Sweep runs one full reconciliation pass.
func (s *ReconcilerService) Sweep(ctx context.Context) {
	s.sweepStuckContacts(ctx)
	s.sweepFinishedCampaigns(ctx)
	s.sweepOverdueScheduled(ctx)
}

// sweepStuckContacts forces contacts stuck in_progress past the threshold
// to failed. The observed failure mode is a dial worker crashing mid-call;
// without this, the contact (and its campaign) would hang forever.
func (s *ReconcilerService) sweepStuckContacts(ctx context.Context) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusActive, models.CampaignStatusPaused} {
		campaigns, err := s.campaigns.ListByStatus(status)
		if err != nil {
			logrus.Errorf("Reconciler failed to list %s campaigns: %v", status, err)
			return
		}
		cutoff := time.Now().Add(-s.stuckThreshold)
		for _, campaign := range campaigns {
			failed, err := s.contacts.FailStuck(campaign.ID, cutoff)
			if err != nil {
				logrus.Errorf("Reconciler failed to fail stuck contacts for %s: %v", campaign.ID, err)
				continue
			}
			if failed > 0 {
				// Self-healing finding, not an error.
				logrus.Warnf("Stuck entity detected: forced %d contacts of campaign %s from in_progress to failed", failed, campaign.ID)
			}
		}
	}
}

// sweepFinishedCampaigns completes campaigns whose contacts are all
// terminal and whose end time has passed.
func (s *ReconcilerService) sweepFinishedCampaigns(ctx context.Context) {
	for _, status := range []models.CampaignStatus{models.CampaignStatusActive, models.CampaignStatusPaused} {
		campaigns, err := s.campaigns.ListByStatus(status)
		if err != nil {
			logrus.Errorf("Reconciler failed to list %s campaigns: %v", status, err)
			return
		}
		now := time.Now()
		for _, campaign := range campaigns {
			if campaign.EndTime == nil || campaign.EndTime.After(now) {
				continue
			}
			remaining, err := s.contacts.CountNonTerminal(campaign.ID)
			if err != nil {
				logrus.Errorf("Reconciler failed to count contacts for %s: %v", campaign.ID, err)
				continue
			}
			if remaining > 0 {
				continue
			}
			completed, err := s.lifecycle.Complete(ctx, campaign.ID)
			if err != nil {
				logrus.Errorf("Reconciler failed to complete campaign %s: %v", campaign.ID, err)
				continue
			}
			if completed {
				logrus.Infof("Reconciler completed campaign %s", campaign.ID)
			}
		}
	}
}

// sweepOverdueScheduled force-starts SCHEDULED campaigns whose start time
// passed without the trigger firing (host outage, lost timer). The grace
// period keeps the sweep from racing a healthy trigger.
func (s *ReconcilerService) sweepOverdueScheduled(ctx context.Context) {
	campaigns, err := s.campaigns.ListScheduledPastDue(s.scheduleGrace)
	if err != nil {
		logrus.Errorf("Reconciler failed to list overdue scheduled campaigns: %v", err)
		return
	}
	for _, campaign := range campaigns {
		logrus.Warnf("Stuck entity detected: campaign %s still SCHEDULED past its start time, forcing start", campaign.ID)
		if err := s.lifecycle.StartScheduled(ctx, campaign.ID); err != nil {
			if models.IsInvalidStateTransition(err) {
				// Another worker (or the trigger itself) got there first.
				continue
			}
			logrus.Errorf("Reconciler failed to force-start campaign %s: %v", campaign.ID, err)
		}
	}
}
