package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
)

// BrokerPublisher ships one serialized envelope to the broker.
type BrokerPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, props messaging.PublishProperties, body []byte) error
}

const (
	DefaultBatchSize    = 50
	DefaultLease        = 60 * time.Second
	DefaultRetryLease   = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Publisher is the background loop that drains the outbox. It leases pending
// rows, publishes them, and records outcomes. Publish failures are retried
// on every poll with no attempt ceiling; a crash between lease and publish
// heals itself once the lease expires.
type Publisher struct {
	db           database.DB
	repo         Repository
	broker       BrokerPublisher
	workerID     string
	batchSize    int
	lease        time.Duration
	retryLease   time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewPublisher(db database.DB, repo Repository, broker BrokerPublisher, workerID string, logger *zap.Logger) *Publisher {
	return &Publisher{
		db:           db,
		repo:         repo,
		broker:       broker,
		workerID:     workerID,
		batchSize:    DefaultBatchSize,
		lease:        DefaultLease,
		retryLease:   DefaultRetryLease,
		pollInterval: DefaultPollInterval,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled. The batch in flight when cancellation
// arrives is finished before Run returns.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("Outbox publisher starting",
		zap.String("worker_id", p.workerID),
		zap.Duration("poll_interval", p.pollInterval))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopped", zap.String("worker_id", p.workerID))
			return
		case <-ticker.C:
			p.PublishBatch(ctx)
		}
	}
}

// PublishBatch leases and ships one batch of pending rows. Outcomes are
// recorded per row so one bad message cannot stall the rest of the batch.
func (p *Publisher) PublishBatch(ctx context.Context) {
	now := time.Now().UTC()

	messages, err := p.repo.LeaseBatch(ctx, p.db, p.batchSize, now, p.lease, p.workerID)
	if err != nil {
		p.logger.Error("Failed to lease outbox batch", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	p.logger.Debug("Leased outbox messages", zap.Int("count", len(messages)))

	for i := range messages {
		msg := &messages[i]

		if !messaging.KnownMessageType(msg.MessageType) {
			// Cannot be classified as poison without a dead-letter path of
			// its own; record the error and keep retrying.
			p.recordFailure(ctx, msg, "unknown message type: "+msg.MessageType)
			continue
		}

		props := messaging.PublishProperties{
			MessageID:     msg.MessageID.String(),
			MessageType:   msg.MessageType,
			CorrelationID: msg.CorrelationID.String(),
			OccurredAtUtc: msg.OccurredAt,
			Producer:      msg.Producer,
			Version:       msg.Version,
		}
		if msg.CausationID != nil {
			props.CausationID = msg.CausationID.String()
		}

		if err := p.broker.Publish(ctx, msg.Exchange, msg.RoutingKey, props, msg.PayloadJSON); err != nil {
			p.recordFailure(ctx, msg, err.Error())
			continue
		}

		if err := p.repo.MarkProcessed(ctx, p.db, msg.ID, time.Now().UTC()); err != nil {
			// The publish went out; the expired lease will cause a duplicate
			// publish, absorbed by consumer-side idempotence.
			p.logger.Error("Failed to mark outbox message processed",
				zap.String("outbox_id", msg.ID.String()),
				zap.Error(err))
			continue
		}

		p.logger.Debug("Outbox message published",
			zap.String("message_id", msg.MessageID.String()),
			zap.String("message_type", msg.MessageType),
			zap.String("routing_key", msg.RoutingKey))
	}
}

func (p *Publisher) recordFailure(ctx context.Context, msg *Message, cause string) {
	p.logger.Error("Failed to publish outbox message",
		zap.String("outbox_id", msg.ID.String()),
		zap.String("message_type", msg.MessageType),
		zap.Int("retry_count", msg.RetryCount+1),
		zap.String("cause", cause))

	retryAt := time.Now().UTC().Add(p.retryLease)
	if err := p.repo.MarkFailed(ctx, p.db, msg.ID, cause, retryAt); err != nil {
		p.logger.Error("Failed to record outbox publish failure",
			zap.String("outbox_id", msg.ID.String()),
			zap.Error(err))
	}
}
