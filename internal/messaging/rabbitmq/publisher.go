package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/messaging"
)

// Publisher ships serialized envelopes to an exchange over a dedicated
// channel.
type Publisher struct {
	ch     *amqp.Channel
	logger *zap.Logger
}

func NewPublisher(conn *amqp.Connection, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}
	return &Publisher{ch: ch, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, props messaging.PublishProperties, body []byte) error {
	err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     props.MessageID,
		Type:          props.MessageType,
		CorrelationId: props.CorrelationID,
		Headers: amqp.Table{
			"x-causation-id":    props.CausationID,
			"x-occurred-at-utc": props.OccurredAtUtc.UTC().Format(time.RFC3339Nano),
			"x-producer":        props.Producer,
			"x-version":         int32(props.Version),
		},
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s/%s: %w", props.MessageType, exchange, routingKey, err)
	}

	p.logger.Debug("Published message",
		zap.String("message_id", props.MessageID),
		zap.String("message_type", props.MessageType),
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey))
	return nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("failed to close publisher channel: %w", err)
	}
	return nil
}
