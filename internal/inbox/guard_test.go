package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
)

type fakeRepo struct {
	rows map[uuid.UUID]*Message
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uuid.UUID]*Message)}
}

func (f *fakeRepo) CreateIfAbsent(ctx context.Context, q database.Querier, msg *Message) (bool, error) {
	if _, exists := f.rows[msg.MessageID]; exists {
		return false, nil
	}
	copied := *msg
	f.rows[msg.MessageID] = &copied
	return true, nil
}

func (f *fakeRepo) Get(ctx context.Context, q database.Querier, messageID uuid.UUID) (*Message, error) {
	msg, ok := f.rows[messageID]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (f *fakeRepo) MarkProcessed(ctx context.Context, q database.Querier, messageID uuid.UUID) error {
	msg, ok := f.rows[messageID]
	if !ok {
		return errors.New("not found")
	}
	msg.Status = StatusProcessed
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, q database.Querier, messageID uuid.UUID, lastError string) error {
	msg, ok := f.rows[messageID]
	if !ok {
		return errors.New("not found")
	}
	msg.Status = StatusFailed
	msg.LastError = lastError
	return nil
}

func TestEnsureTrackedRecordsFirstDelivery(t *testing.T) {
	repo := newFakeRepo()
	guard := NewGuard(nil, repo, "stock-service", zap.NewNop())

	messageID := uuid.New()
	record, alreadyProcessed, err := guard.EnsureTracked(context.Background(), messageID, "OrderCreatedEvent", uuid.New(), "OrderCreatedHandler")
	require.NoError(t, err)
	assert.False(t, alreadyProcessed)
	assert.Equal(t, StatusReceived, record.Status)
	assert.Equal(t, "stock-service", record.Consumer)
	assert.Equal(t, "OrderCreatedHandler", record.Handler)
}

func TestEnsureTrackedShortCircuitsProcessedMessage(t *testing.T) {
	repo := newFakeRepo()
	guard := NewGuard(nil, repo, "stock-service", zap.NewNop())
	messageID := uuid.New()

	_, _, err := guard.EnsureTracked(context.Background(), messageID, "OrderCreatedEvent", uuid.New(), "OrderCreatedHandler")
	require.NoError(t, err)
	require.NoError(t, guard.MarkProcessed(context.Background(), messageID))

	record, alreadyProcessed, err := guard.EnsureTracked(context.Background(), messageID, "OrderCreatedEvent", uuid.New(), "OrderCreatedHandler")
	require.NoError(t, err)
	assert.True(t, alreadyProcessed)
	assert.Equal(t, StatusProcessed, record.Status)
}

func TestEnsureTrackedRetriesFailedMessage(t *testing.T) {
	repo := newFakeRepo()
	guard := NewGuard(nil, repo, "stock-service", zap.NewNop())
	messageID := uuid.New()

	_, _, err := guard.EnsureTracked(context.Background(), messageID, "OrderCreatedEvent", uuid.New(), "OrderCreatedHandler")
	require.NoError(t, err)
	require.NoError(t, guard.MarkFailed(context.Background(), messageID, errors.New("handler blew up")))

	record, alreadyProcessed, err := guard.EnsureTracked(context.Background(), messageID, "OrderCreatedEvent", uuid.New(), "OrderCreatedHandler")
	require.NoError(t, err)
	assert.False(t, alreadyProcessed, "a failed message must be retried, not skipped")
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "handler blew up", record.LastError)
}
