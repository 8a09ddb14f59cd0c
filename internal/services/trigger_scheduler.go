package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimerTriggerScheduler is the in-process implementation of the scheduled
// trigger collaborator. Each armed campaign gets one timer that calls
// StartScheduled when it fires. Timers do not survive a restart; Rearm
// rebuilds them from the persisted trigger records, and the reconciler's
// past-due audit covers any trigger that was lost entirely.
type TimerTriggerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	// Set after construction to break the cycle with LifecycleService.
	lifecycle *LifecycleService
}

func NewTimerTriggerScheduler() *TimerTriggerScheduler {
	return &TimerTriggerScheduler{
		timers: make(map[string]*time.Timer),
	}
}

// SetLifecycleService injects the lifecycle service (after creation to avoid circular dependency)
func (s *TimerTriggerScheduler) SetLifecycleService(lifecycle *LifecycleService) {
	s.lifecycle = lifecycle
}

// Arm schedules an activation for the campaign at fireAt, replacing any
// previous timer for the same campaign.
func (s *TimerTriggerScheduler) Arm(campaignID string, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[campaignID]; ok {
		timer.Stop()
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.timers[campaignID] = time.AfterFunc(delay, func() {
		s.fire(campaignID)
	})
	logrus.Infof("Trigger armed for campaign %s at %s", campaignID, fireAt.Format(time.RFC3339))
}

// Disarm cancels any pending timer for the campaign.
func (s *TimerTriggerScheduler) Disarm(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[campaignID]; ok {
		timer.Stop()
		delete(s.timers, campaignID)
		logrus.Infof("Trigger disarmed for campaign %s", campaignID)
	}
}

// Rearm rebuilds in-process timers from persisted trigger records. Called
// once at startup.
func (s *TimerTriggerScheduler) Rearm(campaigns CampaignStore) error {
	triggers, err := campaigns.ListArmedTriggers()
	if err != nil {
		return err
	}
	for _, trigger := range triggers {
		s.Arm(trigger.CampaignID, trigger.FireAt)
	}
	if len(triggers) > 0 {
		logrus.Infof("Re-armed %d scheduled triggers", len(triggers))
	}
	return nil
}

func (s *TimerTriggerScheduler) fire(campaignID string) {
	s.mu.Lock()
	delete(s.timers, campaignID)
	lifecycle := s.lifecycle
	s.mu.Unlock()

	if lifecycle == nil {
		logrus.Errorf("Trigger fired for %s but no lifecycle service is wired", campaignID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := lifecycle.StartScheduled(ctx, campaignID); err != nil {
		// A cancelled or already-started campaign rejects the transition;
		// that is the correct outcome for a stale timer.
		logrus.Warnf("Trigger fire for campaign %s did not activate: %v", campaignID, err)
		return
	}
}
