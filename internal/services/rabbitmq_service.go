package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Queue names. All queues are durable; delivery is at least once.
const (
	QueueCallEvents        = "call_events"
	QueueActionEvents      = "action_events"
	QueueTelephonyCommands = "telephony_commands"
	QueueDialControl       = "dial_control"
	QueueStatusChanges     = "campaign_status_changes"
)

type RabbitMQService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// GetChannel returns the RabbitMQ channel (for use by other services)
func (s *RabbitMQService) GetChannel() *amqp.Channel {
	return s.channel
}

func NewRabbitMQService() (*RabbitMQService, error) {
	// Get RabbitMQ connection details from environment
	host := getEnv("RABBITMQ_HOST", "localhost")
	port := getEnv("RABBITMQ_PORT", "5672")
	user := getEnv("RABBITMQ_USER", "guest")
	pass := getEnv("RABBITMQ_PASS", "guest")

	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Spread redeliveries across workers instead of flooding one consumer.
	if err := channel.Qos(16, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	service := &RabbitMQService{
		conn:    conn,
		channel: channel,
	}

	for _, queue := range []string{
		QueueCallEvents,
		QueueActionEvents,
		QueueTelephonyCommands,
		QueueDialControl,
		QueueStatusChanges,
	} {
		if err := service.DeclareQueue(queue); err != nil {
			channel.Close()
			conn.Close()
			return nil, err
		}
	}

	logrus.Info("RabbitMQ service initialized successfully")
	return service, nil
}

// DeclareQueue declares a durable queue
func (s *RabbitMQService) DeclareQueue(queueName string) error {
	_, err := s.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return nil
}

// Publish publishes a JSON message to the specified queue
func (s *RabbitMQService) Publish(ctx context.Context, queueName string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Consume starts a manual-ack consumer on the queue. The handler's error
// decides the fate of the delivery: nil acks, anything else nacks with
// requeue so the broker redelivers. Handlers are therefore required to be
// idempotent by event id.
func (s *RabbitMQService) Consume(queueName, consumerTag string, handler func(body []byte) error) (chan struct{}, error) {
	msgs, err := s.channel.Consume(
		queueName,   // queue
		consumerTag, // consumer
		false,       // auto-ack: manual ack so failed handlers trigger redelivery
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer on %s: %w", queueName, err)
	}

	stopChan := make(chan struct{})

	go func() {
		for {
			select {
			case <-stopChan:
				logrus.Infof("Consumer %s stopped", consumerTag)
				return
			case msg, ok := <-msgs:
				if !ok {
					logrus.Warnf("RabbitMQ channel closed for consumer %s", consumerTag)
					return
				}
				if err := handler(msg.Body); err != nil {
					logrus.Errorf("Handler failed on queue %s (redelivered=%v): %v", queueName, msg.Redelivered, err)
					if nackErr := msg.Nack(false, true); nackErr != nil {
						logrus.Errorf("Failed to nack message on %s: %v", queueName, nackErr)
					}
					continue
				}
				if ackErr := msg.Ack(false); ackErr != nil {
					logrus.Errorf("Failed to ack message on %s: %v", queueName, ackErr)
				}
			}
		}
	}()

	return stopChan, nil
}

// Close closes the RabbitMQ connection
func (s *RabbitMQService) Close() error {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			logrus.Errorf("Error closing channel: %v", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logrus.Errorf("Error closing connection: %v", err)
		}
	}
	return nil
}

// getEnv gets environment variable with fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
