package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const appID = "message-relay"

// Publisher publishes audit records and connection lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// NewPublisher connects to the broker and declares a durable topic exchange. When the broker is
// disabled or unreachable it returns a publisher that only logs, so the relay keeps running.
func NewPublisher(amqpURL, exchange string, logger *zap.SugaredLogger) Publisher {
	if amqpURL == "" {
		logger.Infow("rabbitmq disabled, using noop", "reason", "empty amqp url")
		return &noopPublisher{reason: "empty amqp url", logger: logger}
	}

	conn, ch, err := dial(amqpURL, exchange)
	if err != nil {
		logger.Warnw("rabbitmq unavailable, using noop", "exchange", exchange, "error", err)
		return &noopPublisher{reason: err.Error(), logger: logger}
	}

	logger.Infow("rabbitmq connected", "exchange", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}
}

func dial(amqpURL, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *zap.SugaredLogger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishWithHeaders(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", routingKey, err)
	}

	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}

	msg := amqp.Publishing{
		AppId:        appID,
		MessageId:    xid.New().String(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.logger.Warnw("rabbitmq publish failed", "routing_key", routingKey, "message_id", msg.MessageId, "error", err)
		return err
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

// noopPublisher stands in for the broker and logs what would have been published.
type noopPublisher struct {
	reason string
	logger *zap.SugaredLogger
}

func (p *noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishWithHeaders(ctx, routingKey, event, nil)
}

func (p *noopPublisher) PublishWithHeaders(_ context.Context, routingKey string, event any, headers map[string]string) error {
	if p.logger != nil {
		p.logger.Debugw("rabbitmq noop publish", "routing_key", routingKey, "event_type", fmt.Sprintf("%T", event), "request_id", headers["x-request-id"])
	}
	return nil
}

func (*noopPublisher) Close() error {
	return nil
}

// Describe reports the publisher mode ("amqp" or "noop") and, for noop, why the broker is not used.
func Describe(p Publisher) (mode, reason string) {
	switch publisher := p.(type) {
	case *amqpPublisher:
		return "amqp", ""
	case *noopPublisher:
		return "noop", publisher.reason
	default:
		return "unknown", ""
	}
}
