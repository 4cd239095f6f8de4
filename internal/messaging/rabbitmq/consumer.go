package rabbitmq

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/inbox"
	"github.com/atakanatali/e-commerce/internal/messaging"
)

// Consumer pulls deliveries from one work queue and dispatches them through
// the message-type registry behind the inbox guard. Failed handlers nack
// without requeue so the retry/dlq topology takes over instead of blocking
// the queue head.
type Consumer struct {
	conn     *amqp.Connection
	queue    string
	prefetch int
	registry *messaging.Registry
	guard    *inbox.Guard
	logger   *zap.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, prefetch int, registry *messaging.Registry, guard *inbox.Guard, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		queue:    queue,
		prefetch: prefetch,
		registry: registry,
		guard:    guard,
		logger:   logger,
	}
}

// Consume blocks until ctx is cancelled or the delivery stream closes. An
// in-flight handler is not interrupted by shutdown; the loop stops taking
// new deliveries and returns.
func (c *Consumer) Consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch on %s: %w", c.queue, err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	c.logger.Info("Consumer started", zap.String("queue", c.queue), zap.Int("prefetch", c.prefetch))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping", zap.String("queue", c.queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream closed for %s", c.queue)
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	handlerName, handle, ok := c.registry.Resolve(d.Type)
	if !ok {
		// Routed here by a binding but not meant for this consumer.
		c.logger.Warn("No handler registered for message type, acknowledging",
			zap.String("queue", c.queue),
			zap.String("message_type", d.Type))
		c.ack(d)
		return
	}

	messageID, err := uuid.Parse(d.MessageId)
	if err != nil {
		c.logger.Error("Delivery carries an invalid message id, sending to retry",
			zap.String("queue", c.queue),
			zap.String("message_id", d.MessageId),
			zap.Error(err))
		c.nack(d)
		return
	}
	correlationID, _ := uuid.Parse(d.CorrelationId)

	record, alreadyProcessed, err := c.guard.EnsureTracked(ctx, messageID, d.Type, correlationID, handlerName)
	if err != nil {
		c.logger.Error("Failed to track delivery in inbox, sending to retry",
			zap.String("message_id", messageID.String()),
			zap.Error(err))
		c.nack(d)
		return
	}
	if alreadyProcessed {
		c.ack(d)
		return
	}

	if err := handle(ctx, d.Body); err != nil {
		c.logger.Error("Handler failed, sending to retry",
			zap.String("message_id", messageID.String()),
			zap.String("message_type", d.Type),
			zap.String("handler", record.Handler),
			zap.Error(err))
		if markErr := c.guard.MarkFailed(ctx, messageID, err); markErr != nil {
			c.logger.Error("Failed to mark inbox message failed",
				zap.String("message_id", messageID.String()),
				zap.Error(markErr))
		}
		c.nack(d)
		return
	}

	if err := c.guard.MarkProcessed(ctx, messageID); err != nil {
		// The business effect is committed; leave the row Received and let a
		// redelivery settle it rather than re-running the handler via retry.
		c.logger.Error("Failed to mark inbox message processed",
			zap.String("message_id", messageID.String()),
			zap.Error(err))
	}
	c.ack(d)
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.logger.Error("Failed to ack delivery", zap.String("queue", c.queue), zap.Error(err))
	}
}

// nack without requeue dead-letters the delivery to the retry queue, which
// feeds it back to the work queue after the retry TTL.
func (c *Consumer) nack(d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.logger.Error("Failed to nack delivery", zap.String("queue", c.queue), zap.Error(err))
	}
}
