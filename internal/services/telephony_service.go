package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/campaign-engine-backend/internal/models"
)

// AMQPTelephonyCommander sends commands to the telephony layer over its
// command queue. Fire-and-forget: the telephony layer owns timeouts and
// retries for actually terminating the call, and the eventual ended event
// flows back through the normal call_events path.
type AMQPTelephonyCommander struct {
	rabbitMQ *RabbitMQService
}

func NewAMQPTelephonyCommander(rabbitMQ *RabbitMQService) *AMQPTelephonyCommander {
	return &AMQPTelephonyCommander{rabbitMQ: rabbitMQ}
}

// TerminateCall requests hang-up of a live call.
func (t *AMQPTelephonyCommander) TerminateCall(ctx context.Context, callID, reason string) error {
	cmd := models.TerminateCallCommand{
		CallID:      callID,
		Reason:      reason,
		RequestedAt: time.Now(),
	}
	if err := t.rabbitMQ.Publish(ctx, QueueTelephonyCommands, cmd); err != nil {
		return fmt.Errorf("failed to publish terminate command for call %s: %w", callID, err)
	}
	return nil
}

// AMQPDialController signals the external dial dispatcher through the dial
// control queue.
type AMQPDialController struct {
	rabbitMQ *RabbitMQService
}

func NewAMQPDialController(rabbitMQ *RabbitMQService) *AMQPDialController {
	return &AMQPDialController{rabbitMQ: rabbitMQ}
}

// Signal publishes a start/pause/resume/cancel signal for a campaign.
func (d *AMQPDialController) Signal(ctx context.Context, campaignID, signal string) error {
	msg := models.DialControlSignal{
		CampaignID: campaignID,
		Signal:     signal,
		SignaledAt: time.Now(),
	}
	if err := d.rabbitMQ.Publish(ctx, QueueDialControl, msg); err != nil {
		return fmt.Errorf("failed to publish dial %s signal for campaign %s: %w", signal, campaignID, err)
	}
	return nil
}

// StatusChangeNotifier fans campaign status changes out to both live
// subscribers (through the metrics hub) and audit consumers (through the
// status change queue).
type StatusChangeNotifier struct {
	rabbitMQ *RabbitMQService
	hub      *MetricsHub
}

func NewStatusChangeNotifier(rabbitMQ *RabbitMQService, hub *MetricsHub) *StatusChangeNotifier {
	return &StatusChangeNotifier{rabbitMQ: rabbitMQ, hub: hub}
}

// NotifyStatusChange publishes a state change. Notification delivery is not
// allowed to fail a lifecycle operation; failures are logged only.
func (n *StatusChangeNotifier) NotifyStatusChange(ctx context.Context, notification models.StatusChangeNotification) {
	n.hub.BroadcastStatus(notification)

	if err := n.rabbitMQ.Publish(ctx, QueueStatusChanges, notification); err != nil {
		logrus.Errorf("Failed to publish status change for campaign %s: %v", notification.CampaignID, err)
	}
}
