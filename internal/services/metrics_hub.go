package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// MetricsUpdate is one pushed delta message. Subscribers of a campaign see
// its deltas; subscribers of the aggregate view see every campaign's deltas
// folded into the running aggregate.
type MetricsUpdate struct {
	CampaignID string    `json:"campaign_id"`
	Counter    string    `json:"counter"`
	Delta      int64     `json:"delta"`
	At         time.Time `json:"at"`
}

// MetricsHub manages Server-Sent Events connections for live metrics
// streaming, keyed per campaign plus the "aggregate" pseudo key. A slow or
// dead subscriber is skipped, never allowed to block the ingestion path or
// delivery to other subscribers.
type MetricsHub struct {
	clients map[string]map[chan []byte]bool
	mu      sync.RWMutex
}

// NewMetricsHub creates a new metrics hub
func NewMetricsHub() *MetricsHub {
	return &MetricsHub{
		clients: make(map[string]map[chan []byte]bool),
	}
}

// Subscribe registers a new subscriber for a campaign's metrics stream.
// Use models.AggregateCampaignID for the all-campaigns view.
func (h *MetricsHub) Subscribe(campaignID string) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientChan := make(chan []byte, 32)

	if h.clients[campaignID] == nil {
		h.clients[campaignID] = make(map[chan []byte]bool)
	}
	h.clients[campaignID][clientChan] = true

	logrus.Infof("Metrics subscriber registered for %s (total: %d)", campaignID, len(h.clients[campaignID]))
	return clientChan
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *MetricsHub) Unsubscribe(campaignID string, clientChan chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[campaignID] != nil {
		delete(h.clients[campaignID], clientChan)
		close(clientChan)

		if len(h.clients[campaignID]) == 0 {
			delete(h.clients, campaignID)
		}
	}

	logrus.Infof("Metrics subscriber unregistered for %s (remaining: %d)", campaignID, len(h.clients[campaignID]))
}

// BroadcastUpdate pushes a counter delta to the campaign's subscribers and
// to aggregate-view subscribers.
func (h *MetricsHub) BroadcastUpdate(update MetricsUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcastToKeyLocked(update.CampaignID, "metrics", update)
	if update.CampaignID != models.AggregateCampaignID {
		h.broadcastToKeyLocked(models.AggregateCampaignID, "metrics", update)
	}
}

// BroadcastStatus pushes a campaign status change to the campaign's
// subscribers and the aggregate view.
func (h *MetricsHub) BroadcastStatus(n models.StatusChangeNotification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcastToKeyLocked(n.CampaignID, "status", n)
	h.broadcastToKeyLocked(models.AggregateCampaignID, "status", n)
}

// broadcastToKeyLocked sends to all of one key's subscribers (assumes lock held)
func (h *MetricsHub) broadcastToKeyLocked(key, event string, payload interface{}) {
	clients := h.clients[key]
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logrus.Errorf("Failed to marshal %s message: %v", event, err)
		return
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, string(data))

	// Non-blocking send; a full channel means a slow subscriber and the
	// message is dropped for that subscriber only.
	for clientChan := range clients {
		select {
		case clientChan <- []byte(message):
		default:
			logrus.Warnf("Metrics subscriber channel full, skipping: %s", key)
		}
	}
}

// SubscriberCount returns the number of subscribers for a campaign
func (h *MetricsHub) SubscriberCount(campaignID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[campaignID])
}
