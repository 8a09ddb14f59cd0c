package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// In-memory fakes of the store and collaborator interfaces. They mimic the
// concurrency-relevant semantics of the real backends (compare-and-swap,
// conflict on duplicate keys, idempotent upserts) so the services can be
// exercised without Postgres, Mongo, Redis or a broker.

type memCampaignStore struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	triggers  map[string]*models.ScheduledTrigger
}

func newMemCampaignStore() *memCampaignStore {
	return &memCampaignStore{
		campaigns: make(map[string]*models.Campaign),
		triggers:  make(map[string]*models.ScheduledTrigger),
	}
}

func (s *memCampaignStore) Create(campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if campaign.ID == "" {
		campaign.ID = fmt.Sprintf("campaign-%d", len(s.campaigns)+1)
	}
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = campaign.CreatedAt
	clone := *campaign
	s.campaigns[campaign.ID] = &clone
	return nil
}

func (s *memCampaignStore) GetByID(id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *campaign
	return &clone, nil
}

func (s *memCampaignStore) GetAll(status models.CampaignStatus) ([]*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Campaign
	for _, campaign := range s.campaigns {
		if status != "" && campaign.Status != status {
			continue
		}
		clone := *campaign
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memCampaignStore) Update(campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[campaign.ID]; !ok {
		return models.ErrNotFound
	}
	campaign.UpdatedAt = time.Now()
	clone := *campaign
	s.campaigns[campaign.ID] = &clone
	return nil
}

func (s *memCampaignStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.campaigns, id)
	delete(s.triggers, id)
	return nil
}

func (s *memCampaignStore) CompareAndSwapStatus(id string, from, to models.CampaignStatus, extra map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok || campaign.Status != from {
		return false, nil
	}
	campaign.Status = to
	campaign.UpdatedAt = time.Now()
	for k, v := range extra {
		at, ok := v.(time.Time)
		if !ok {
			continue
		}
		switch k {
		case "activated_at":
			campaign.ActivatedAt = &at
		case "finished_at":
			campaign.FinishedAt = &at
		}
	}
	return true, nil
}

func (s *memCampaignStore) ScheduleTx(id string, fireAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[id]
	if !ok || campaign.Status != models.CampaignStatusDraft {
		return false, nil
	}
	campaign.Status = models.CampaignStatusScheduled
	campaign.StartTime = &fireAt
	s.triggers[id] = &models.ScheduledTrigger{CampaignID: id, FireAt: fireAt, Armed: true}
	return true, nil
}

func (s *memCampaignStore) DisarmTrigger(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trigger, ok := s.triggers[id]; ok {
		trigger.Armed = false
	}
	return nil
}

func (s *memCampaignStore) GetTrigger(id string) (*models.ScheduledTrigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trigger, ok := s.triggers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *trigger
	return &clone, nil
}

func (s *memCampaignStore) ListArmedTriggers() ([]*models.ScheduledTrigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScheduledTrigger
	for _, trigger := range s.triggers {
		if trigger.Armed {
			clone := *trigger
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memCampaignStore) ListScheduledPastDue(grace time.Duration) ([]*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-grace)
	var out []*models.Campaign
	for _, campaign := range s.campaigns {
		if campaign.Status != models.CampaignStatusScheduled {
			continue
		}
		if campaign.StartTime == nil || !campaign.StartTime.Before(cutoff) {
			continue
		}
		clone := *campaign
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memCampaignStore) ListByStatus(status models.CampaignStatus) ([]*models.Campaign, error) {
	return s.GetAll(status)
}

type memContactStore struct {
	mu       sync.Mutex
	contacts map[string]*models.Contact
}

func newMemContactStore() *memContactStore {
	return &memContactStore{contacts: make(map[string]*models.Contact)}
}

func (s *memContactStore) add(contact *models.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[contact.ID] = contact
}

func (s *memContactStore) GetByID(id string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *contact
	return &clone, nil
}

func (s *memContactStore) CountPending(campaignID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, contact := range s.contacts {
		if campaignID != "" && contact.CampaignID != campaignID {
			continue
		}
		if contact.Status == models.ContactStatusPending {
			n++
		}
	}
	return n, nil
}

func (s *memContactStore) CountNonTerminal(campaignID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, contact := range s.contacts {
		if contact.CampaignID == campaignID && !contact.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (s *memContactStore) CancelRemaining(campaignID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, contact := range s.contacts {
		if contact.CampaignID == campaignID && !contact.Status.IsTerminal() {
			contact.Status = models.ContactStatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *memContactStore) FailStuck(campaignID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, contact := range s.contacts {
		if contact.CampaignID != campaignID || contact.Status != models.ContactStatusInProgress {
			continue
		}
		if contact.DialStartedAt == nil || !contact.DialStartedAt.Before(cutoff) {
			continue
		}
		contact.Status = models.ContactStatusFailed
		n++
	}
	return n, nil
}

type memScheduler struct {
	mu       sync.Mutex
	armed    map[string]time.Time
	disarmed []string
}

func newMemScheduler() *memScheduler {
	return &memScheduler{armed: make(map[string]time.Time)}
}

func (s *memScheduler) Arm(campaignID string, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[campaignID] = fireAt
}

func (s *memScheduler) Disarm(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, campaignID)
	s.disarmed = append(s.disarmed, campaignID)
}

type memDialController struct {
	mu      sync.Mutex
	signals []string
	err     error
}

func (c *memDialController) Signal(_ context.Context, campaignID, signal string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.signals = append(c.signals, campaignID+":"+signal)
	return nil
}

type memNotifier struct {
	mu            sync.Mutex
	notifications []models.StatusChangeNotification
}

func (n *memNotifier) NotifyStatusChange(_ context.Context, notification models.StatusChangeNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *memNotifier) last() (models.StatusChangeNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notifications) == 0 {
		return models.StatusChangeNotification{}, false
	}
	return n.notifications[len(n.notifications)-1], true
}

type memCounterStore struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
	failIncr bool
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counters: make(map[string]map[string]int64)}
}

func (s *memCounterStore) Incr(_ context.Context, campaignID, counter string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncr {
		return errors.New("counter store unavailable")
	}
	if s.counters[campaignID] == nil {
		s.counters[campaignID] = make(map[string]int64)
	}
	s.counters[campaignID][counter] += delta
	return nil
}

func (s *memCounterStore) Get(_ context.Context, campaignID string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters[campaignID]))
	for k, v := range s.counters[campaignID] {
		out[k] = v
	}
	return out, nil
}

func (s *memCounterStore) Reset(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, campaignID)
	return nil
}

func (s *memCounterStore) value(campaignID, counter string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[campaignID][counter]
}

type memActionStore struct {
	mu      sync.Mutex
	actions map[string]*models.Action
}

func newMemActionStore() *memActionStore {
	return &memActionStore{actions: make(map[string]*models.Action)}
}

func (s *memActionStore) Create(action *models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[action.ID]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	clone := *action
	s.actions[action.ID] = &clone
	return nil
}

func (s *memActionStore) GetByID(id string) (*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.actions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *action
	return &clone, nil
}

func (s *memActionStore) ListByCampaign(campaignID string, limit, offset int) ([]*models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.Action
	for _, action := range s.actions {
		if action.CampaignID == campaignID {
			clone := *action
			all = append(all, &clone)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type memBlacklistStore struct {
	mu         sync.Mutex
	entries    map[string]*models.BlacklistEntry
	failCreate bool
}

func newMemBlacklistStore() *memBlacklistStore {
	return &memBlacklistStore{entries: make(map[string]*models.BlacklistEntry)}
}

func (s *memBlacklistStore) Create(entry *models.BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("relation blacklist_entries unavailable")
	}
	if _, ok := s.entries[entry.PhoneNumber]; ok {
		// ON CONFLICT DO NOTHING
		return nil
	}
	clone := *entry
	s.entries[entry.PhoneNumber] = &clone
	return nil
}

func (s *memBlacklistStore) GetByPhone(phoneNumber string) (*models.BlacklistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[phoneNumber]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

type memBlacklistCache struct {
	mu      sync.Mutex
	numbers map[string]bool
	failAdd bool
}

func newMemBlacklistCache() *memBlacklistCache {
	return &memBlacklistCache{numbers: make(map[string]bool)}
}

func (c *memBlacklistCache) Add(_ context.Context, phoneNumber string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAdd {
		return errors.New("cache unavailable")
	}
	c.numbers[phoneNumber] = true
	return nil
}

func (c *memBlacklistCache) Remove(_ context.Context, phoneNumber string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.numbers, phoneNumber)
	return nil
}

func (c *memBlacklistCache) Contains(_ context.Context, phoneNumber string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numbers[phoneNumber], nil
}

type memSMSSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *memSMSSender) Send(_ context.Context, phoneNumber, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, phoneNumber+"|"+body)
	return nil
}

type memTelephonyCommander struct {
	mu         sync.Mutex
	terminated []string
	err        error
}

func (c *memTelephonyCommander) TerminateCall(_ context.Context, callID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.terminated = append(c.terminated, callID+":"+reason)
	return nil
}

type memCDRStore struct {
	mu      sync.Mutex
	records map[string]*models.CallDetailRecord
}

func newMemCDRStore() *memCDRStore {
	return &memCDRStore{records: make(map[string]*models.CallDetailRecord)}
}

func (s *memCDRStore) skeleton(cdr *models.CallDetailRecord) *models.CallDetailRecord {
	record, ok := s.records[cdr.CallID]
	if !ok {
		record = &models.CallDetailRecord{
			CallID:      cdr.CallID,
			CampaignID:  cdr.CampaignID,
			ContactID:   cdr.ContactID,
			PhoneNumber: cdr.PhoneNumber,
			CreatedAt:   time.Now(),
		}
		s.records[cdr.CallID] = record
	}
	return record
}

func (s *memCDRStore) CreateOnInitiated(_ context.Context, cdr *models.CallDetailRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[cdr.CallID]
	record := s.skeleton(cdr)
	record.Status = "initiated"
	if record.StartedAt.IsZero() {
		record.StartedAt = cdr.StartedAt
	}
	return !existed, nil
}

func (s *memCDRStore) MarkAnswered(_ context.Context, cdr *models.CallDetailRecord, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.skeleton(cdr)
	if record.AnsweredAt == nil {
		record.AnsweredAt = &at
		record.Status = "answered"
	}
	return nil
}

func (s *memCDRStore) AppendDTMF(_ context.Context, cdr *models.CallDetailRecord, input models.DTMFInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.skeleton(cdr)
	for _, existing := range record.DTMFInputs {
		if existing.EventID == input.EventID {
			return nil
		}
	}
	record.DTMFInputs = append(record.DTMFInputs, input)
	return nil
}

func (s *memCDRStore) AppendAction(_ context.Context, cdr *models.CallDetailRecord, action models.TriggeredAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.skeleton(cdr)
	for _, existing := range record.ActionsTriggered {
		if existing.EventID == action.EventID {
			return nil
		}
	}
	record.ActionsTriggered = append(record.ActionsTriggered, action)
	return nil
}

func (s *memCDRStore) FinalizeEnded(_ context.Context, cdr *models.CallDetailRecord, outcome models.CallOutcome, endedAt time.Time, costCents int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.skeleton(cdr)
	if record.Outcome != "" {
		return false, nil
	}
	record.Outcome = outcome
	record.EndedAt = &endedAt
	record.CostCents = costCents
	record.Status = "ended"
	if !record.StartedAt.IsZero() {
		record.DurationSeconds = int(endedAt.Sub(record.StartedAt).Seconds())
	}
	return true, nil
}

func (s *memCDRStore) GetByCallID(_ context.Context, callID string) (*models.CallDetailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[callID]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *memCDRStore) ListByCampaign(_ context.Context, campaignID string, limit, offset int) ([]*models.CallDetailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.CallDetailRecord
	for _, record := range s.records {
		if record.CampaignID == campaignID {
			clone := *record
			all = append(all, &clone)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
