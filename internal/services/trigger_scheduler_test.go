package services

import (
	"testing"
	"time"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

func waitForStatus(t *testing.T, f *lifecycleFixture, id string, want models.CampaignStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.status(t, id) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("campaign %s never reached %s (now %s)", id, want, f.status(t, id))
}

func newWiredScheduler() (*TimerTriggerScheduler, *lifecycleFixture) {
	lf := newLifecycleFixture()
	scheduler := NewTimerTriggerScheduler()
	lifecycle := NewLifecycleService(lf.campaigns, lf.contacts, scheduler, lf.dial, lf.notifier)
	scheduler.SetLifecycleService(lifecycle)
	lf.service = lifecycle
	lf.scheduler = nil
	return scheduler, lf
}

func TestTriggerFireActivatesScheduledCampaign(t *testing.T) {
	scheduler, lf := newWiredScheduler()
	campaign := lf.seedCampaign(t, models.CampaignStatusScheduled)
	lf.campaigns.triggers[campaign.ID] = &models.ScheduledTrigger{CampaignID: campaign.ID, FireAt: time.Now(), Armed: true}

	scheduler.Arm(campaign.ID, time.Now().Add(20*time.Millisecond))

	waitForStatus(t, lf, campaign.ID, models.CampaignStatusActive)
	trigger, err := lf.campaigns.GetTrigger(campaign.ID)
	if err != nil {
		t.Fatalf("trigger record: %v", err)
	}
	if trigger.Armed {
		t.Error("trigger record still armed after fire")
	}
}

func TestDisarmedTriggerDoesNotFire(t *testing.T) {
	scheduler, lf := newWiredScheduler()
	campaign := lf.seedCampaign(t, models.CampaignStatusScheduled)

	scheduler.Arm(campaign.ID, time.Now().Add(50*time.Millisecond))
	scheduler.Disarm(campaign.ID)

	time.Sleep(150 * time.Millisecond)
	if got := lf.status(t, campaign.ID); got != models.CampaignStatusScheduled {
		t.Errorf("status = %s, want scheduled after disarm", got)
	}
}

func TestStaleTriggerFireIsHarmless(t *testing.T) {
	scheduler, lf := newWiredScheduler()
	campaign := lf.seedCampaign(t, models.CampaignStatusCancelled)

	// A timer that outlived its campaign fires into a rejected transition
	// and must leave the terminal state alone.
	scheduler.Arm(campaign.ID, time.Now())

	time.Sleep(100 * time.Millisecond)
	if got := lf.status(t, campaign.ID); got != models.CampaignStatusCancelled {
		t.Errorf("status = %s, want cancelled untouched", got)
	}
}

func TestRearmRestoresPersistedTriggers(t *testing.T) {
	scheduler, lf := newWiredScheduler()
	campaign := lf.seedCampaign(t, models.CampaignStatusScheduled)
	lf.campaigns.triggers[campaign.ID] = &models.ScheduledTrigger{
		CampaignID: campaign.ID,
		FireAt:     time.Now().Add(20 * time.Millisecond),
		Armed:      true,
	}
	disarmed := lf.seedCampaign(t, models.CampaignStatusDraft)
	lf.campaigns.triggers[disarmed.ID] = &models.ScheduledTrigger{
		CampaignID: disarmed.ID,
		FireAt:     time.Now(),
		Armed:      false,
	}

	if err := scheduler.Rearm(lf.campaigns); err != nil {
		t.Fatalf("Rearm: %v", err)
	}

	waitForStatus(t, lf, campaign.ID, models.CampaignStatusActive)
	time.Sleep(50 * time.Millisecond)
	if got := lf.status(t, disarmed.ID); got != models.CampaignStatusDraft {
		t.Errorf("disarmed campaign status = %s, want draft", got)
	}
}
