package models

// Counter names used in the per-campaign counter store. Counters are only
// ever moved with atomic increments; derived rates are computed on read.
const (
	CounterActiveCalls   = "active_calls"
	CounterTotalAttempts = "total_attempts"
	CounterAnswered      = "answered"
	CounterBusy          = "busy"
	CounterFailed        = "failed"
	CounterConverted     = "converted"
	CounterDonations     = "donations"
	CounterOptOuts       = "opt_outs"
)

// AggregateCampaignID is the pseudo campaign id for the all-campaigns view.
const AggregateCampaignID = "aggregate"

// MetricsSnapshot is the derived, rebuildable view of a campaign's counters.
// Never authoritative: CDRs and Actions are the source of truth.
type MetricsSnapshot struct {
	CampaignID    string `json:"campaign_id"`
	ActiveCalls   int64  `json:"active_calls"`
	TotalAttempts int64  `json:"total_attempts"`
	Answered      int64  `json:"answered"`
	Busy          int64  `json:"busy"`
	Failed        int64  `json:"failed"`
	Converted     int64  `json:"converted"`
	Donations     int64  `json:"donations"`
	OptOuts       int64  `json:"opt_outs"`

	// Derived on read, never stored. QueueDepth is the pending-contact
	// count; DialingRate is attempts observed over the last minute.
	QueueDepth     int64   `json:"queue_depth"`
	DialingRate    float64 `json:"dialing_rate"`
	AnswerRate     float64 `json:"answer_rate"`
	ConversionRate float64 `json:"conversion_rate"`
	OptOutRate     float64 `json:"opt_out_rate"`
}

// ComputeRates fills the derived rate fields from the raw counters.
func (s *MetricsSnapshot) ComputeRates() {
	finished := s.Answered + s.Busy + s.Failed + s.Converted
	if finished > 0 {
		s.AnswerRate = float64(s.Answered+s.Converted) / float64(finished)
	}
	if s.TotalAttempts > 0 {
		s.ConversionRate = float64(s.Converted) / float64(s.TotalAttempts)
		s.OptOutRate = float64(s.OptOuts) / float64(s.TotalAttempts)
	}
}

// FromCounters builds a snapshot out of a raw counter map.
func SnapshotFromCounters(campaignID string, counters map[string]int64) *MetricsSnapshot {
	s := &MetricsSnapshot{
		CampaignID:    campaignID,
		ActiveCalls:   counters[CounterActiveCalls],
		TotalAttempts: counters[CounterTotalAttempts],
		Answered:      counters[CounterAnswered],
		Busy:          counters[CounterBusy],
		Failed:        counters[CounterFailed],
		Converted:     counters[CounterConverted],
		Donations:     counters[CounterDonations],
		OptOuts:       counters[CounterOptOuts],
	}
	s.ComputeRates()
	return s
}
