package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
)

type fakeRepo struct {
	pending   []Message
	leaseErr  error
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	retryAt   map[uuid.UUID]time.Time
}

func newFakeRepo(pending ...Message) *fakeRepo {
	return &fakeRepo{
		pending: pending,
		failed:  make(map[uuid.UUID]string),
		retryAt: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeRepo) Add(ctx context.Context, q database.Querier, msg *Message) error {
	f.pending = append(f.pending, *msg)
	return nil
}

func (f *fakeRepo) LeaseBatch(ctx context.Context, q database.Querier, limit int, now time.Time, leaseFor time.Duration, lockedBy string) ([]Message, error) {
	if f.leaseErr != nil {
		return nil, f.leaseErr
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeRepo) MarkProcessed(ctx context.Context, q database.Querier, id uuid.UUID, at time.Time) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string, retryAt time.Time) error {
	f.failed[id] = lastError
	f.retryAt[id] = retryAt
	return nil
}

type fakeBroker struct {
	published []publishedMessage
	failTypes map[string]error
}

type publishedMessage struct {
	exchange   string
	routingKey string
	props      messaging.PublishProperties
	body       []byte
}

func (f *fakeBroker) Publish(ctx context.Context, exchange, routingKey string, props messaging.PublishProperties, body []byte) error {
	if err, ok := f.failTypes[props.MessageType]; ok {
		return err
	}
	f.published = append(f.published, publishedMessage{exchange, routingKey, props, body})
	return nil
}

func pendingMessage(t *testing.T, messageType, routingKey string) Message {
	t.Helper()
	return Message{
		ID:            uuid.New(),
		MessageID:     uuid.New(),
		MessageType:   messageType,
		Exchange:      messaging.EventsExchange,
		RoutingKey:    routingKey,
		CorrelationID: uuid.New(),
		OccurredAt:    time.Now().UTC(),
		Producer:      "order-service",
		Version:       1,
		PayloadJSON:   []byte(`{"payload":{}}`),
	}
}

func TestPublishBatchMarksProcessedOnSuccess(t *testing.T) {
	msg := pendingMessage(t, messaging.MessageTypeOrderCreated, messaging.RoutingKeyOrderCreated)
	repo := newFakeRepo(msg)
	broker := &fakeBroker{}
	p := NewPublisher(nil, repo, broker, "worker-1", zap.NewNop())

	p.PublishBatch(context.Background())

	require.Len(t, broker.published, 1)
	got := broker.published[0]
	assert.Equal(t, messaging.EventsExchange, got.exchange)
	assert.Equal(t, messaging.RoutingKeyOrderCreated, got.routingKey)
	assert.Equal(t, msg.MessageID.String(), got.props.MessageID)
	assert.Equal(t, msg.MessageType, got.props.MessageType)
	assert.Equal(t, msg.CorrelationID.String(), got.props.CorrelationID)
	assert.Empty(t, got.props.CausationID)
	assert.Equal(t, []uuid.UUID{msg.ID}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestPublishBatchRecordsBrokerFailure(t *testing.T) {
	msg := pendingMessage(t, messaging.MessageTypeStockReserved, messaging.RoutingKeyStockReserved)
	repo := newFakeRepo(msg)
	broker := &fakeBroker{failTypes: map[string]error{
		messaging.MessageTypeStockReserved: errors.New("channel closed"),
	}}
	p := NewPublisher(nil, repo, broker, "worker-1", zap.NewNop())

	before := time.Now().UTC()
	p.PublishBatch(context.Background())

	assert.Empty(t, repo.processed)
	assert.Equal(t, "channel closed", repo.failed[msg.ID])
	assert.WithinDuration(t, before.Add(DefaultRetryLease), repo.retryAt[msg.ID], 2*time.Second)
}

func TestPublishBatchRejectsUnknownMessageType(t *testing.T) {
	msg := pendingMessage(t, "LegacyEvent", "legacy.key")
	repo := newFakeRepo(msg)
	broker := &fakeBroker{}
	p := NewPublisher(nil, repo, broker, "worker-1", zap.NewNop())

	p.PublishBatch(context.Background())

	assert.Empty(t, broker.published)
	assert.Empty(t, repo.processed)
	assert.Equal(t, "unknown message type: LegacyEvent", repo.failed[msg.ID])
}

func TestPublishBatchContinuesPastFailedRow(t *testing.T) {
	bad := pendingMessage(t, messaging.MessageTypeStockReserved, messaging.RoutingKeyStockReserved)
	good := pendingMessage(t, messaging.MessageTypeOrderConfirmed, messaging.RoutingKeyOrderConfirmed)
	repo := newFakeRepo(bad, good)
	broker := &fakeBroker{failTypes: map[string]error{
		messaging.MessageTypeStockReserved: errors.New("broker unavailable"),
	}}
	p := NewPublisher(nil, repo, broker, "worker-1", zap.NewNop())

	p.PublishBatch(context.Background())

	require.Len(t, broker.published, 1)
	assert.Equal(t, good.MessageID.String(), broker.published[0].props.MessageID)
	assert.Equal(t, []uuid.UUID{good.ID}, repo.processed)
	assert.Contains(t, repo.failed, bad.ID)
}

func TestPublishBatchPropagatesCausation(t *testing.T) {
	causation := uuid.New()
	msg := pendingMessage(t, messaging.MessageTypeStockReserved, messaging.RoutingKeyStockReserved)
	msg.CausationID = &causation
	repo := newFakeRepo(msg)
	broker := &fakeBroker{}
	p := NewPublisher(nil, repo, broker, "worker-1", zap.NewNop())

	p.PublishBatch(context.Background())

	require.Len(t, broker.published, 1)
	assert.Equal(t, causation.String(), broker.published[0].props.CausationID)
}
