// README: SMS gateway publisher over RabbitMQ with bounded retry.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"saferide/internal/types"
)

const (
	exchange    = "sms_topic"
	maxAttempts = 3
	baseBackoff = 200 * time.Millisecond
	sendTimeout = 10 * time.Second
)

type Channeler interface {
	Channel() (*amqp.Channel, error)
}

type Message struct {
	RideID types.ID `json:"ride_id"`
	Phone  string   `json:"phone"`
	Body   string   `json:"body"`
}

// Publisher delivers SMS messages to the gateway queue. Delivery is best
// effort: failures are retried with exponential backoff a fixed number of
// times and then logged, never surfaced to the transition that sent them.
type Publisher struct {
	rmq    Channeler
	logger *zap.Logger
}

func NewPublisher(rmq Channeler, logger *zap.Logger) *Publisher {
	return &Publisher{rmq: rmq, logger: logger}
}

// NotifyRider fires a rider SMS in the background and returns immediately.
func (p *Publisher) NotifyRider(rideID types.ID, phone, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := p.Send(ctx, Message{RideID: rideID, Phone: phone, Body: body}); err != nil {
			p.logger.Warn("sms not delivered",
				zap.String("ride_id", string(rideID)), zap.Error(err))
		}
	}()
}

// Send publishes one message, retrying transient failures with backoff.
func (p *Publisher) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	routingKey := fmt.Sprintf("sms.ride.%s", string(msg.RideID))

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseBackoff << (attempt - 1)):
			}
		}
		if lastErr = p.publish(ctx, routingKey, payload); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("publish after %d attempts: %w", maxAttempts, lastErr)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload []byte) error {
	ch, err := p.rmq.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	return ch.PublishWithContext(ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
		},
	)
}
