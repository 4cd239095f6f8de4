package notifications

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
	"github.com/atakanatali/e-commerce/internal/notifications/domain"
	"github.com/atakanatali/e-commerce/internal/notifications/provider"
	"github.com/atakanatali/e-commerce/internal/outbox"
)

type fakeTx struct {
	fakeQuerier
}

func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

type fakeQuerier struct{}

func (fakeQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (fakeQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}
func (fakeQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

type fakeDB struct {
	fakeQuerier
}

func (d *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (database.Tx, error) {
	return &fakeTx{}, nil
}

type fakeNotificationRepo struct {
	logs map[uuid.UUID]*domain.NotificationLog
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{logs: make(map[uuid.UUID]*domain.NotificationLog)}
}

func (f *fakeNotificationRepo) CreateLog(ctx context.Context, q database.Querier, log *domain.NotificationLog) error {
	copied := *log
	f.logs[log.ID] = &copied
	return nil
}

func (f *fakeNotificationRepo) HasSent(ctx context.Context, q database.Querier, orderID uuid.UUID, channel domain.Channel, template string) (bool, error) {
	for _, log := range f.logs {
		if log.OrderID == orderID && log.Channel == channel && log.Template == template && log.Status == domain.NotificationStatusSent {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) MarkSent(ctx context.Context, q database.Querier, id uuid.UUID, providerMessageID, providerResponseJSON string, at time.Time) error {
	log, ok := f.logs[id]
	if !ok {
		return errors.New("not found")
	}
	log.Status = domain.NotificationStatusSent
	log.ProviderMessageID = providerMessageID
	log.ProviderResponseJSON = providerResponseJSON
	log.SentAt = &at
	return nil
}

func (f *fakeNotificationRepo) MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string) error {
	log, ok := f.logs[id]
	if !ok {
		return errors.New("not found")
	}
	log.Status = domain.NotificationStatusFailed
	log.LastError = lastError
	return nil
}

type fakeOutboxRepo struct {
	staged []*outbox.Message
}

func (f *fakeOutboxRepo) Add(ctx context.Context, q database.Querier, msg *outbox.Message) error {
	f.staged = append(f.staged, msg)
	return nil
}

func (f *fakeOutboxRepo) LeaseBatch(ctx context.Context, q database.Querier, limit int, now time.Time, leaseFor time.Duration, lockedBy string) ([]outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, q database.Querier, id uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string, retryAt time.Time) error {
	return nil
}

type fakeProvider struct {
	sends   int
	failing bool
}

func (f *fakeProvider) Send(ctx context.Context, channel domain.Channel, recipient, template string, variables map[string]string) (*provider.Result, error) {
	f.sends++
	if f.failing {
		return nil, errors.New("provider rejected send")
	}
	return &provider.Result{ProviderMessageID: uuid.New().String(), ResponseJSON: `{"status":"accepted"}`}, nil
}

func newService(failingProvider bool) (NotificationService, *fakeNotificationRepo, *fakeOutboxRepo, *fakeProvider) {
	repo := newFakeNotificationRepo()
	outboxRepo := &fakeOutboxRepo{}
	p := &fakeProvider{failing: failingProvider}
	service := NewNotificationService(&fakeDB{}, repo, outboxRepo, p, zap.NewNop())
	return service, repo, outboxRepo, p
}

func orderConfirmedEnvelope(orderID uuid.UUID) messaging.Envelope[messaging.OrderConfirmedEvent] {
	return messaging.NewEnvelope(messaging.MessageTypeOrderConfirmed, orderID, nil, "order-service",
		messaging.OrderConfirmedEvent{OrderID: orderID, UserID: uuid.New(), Total: 25.00})
}

func TestOrderConfirmedNotifiesOnBothChannels(t *testing.T) {
	service, repo, outboxRepo, p := newService(false)
	orderID := uuid.New()

	require.NoError(t, service.HandleOrderConfirmed(context.Background(), orderConfirmedEnvelope(orderID)))

	assert.Equal(t, 2, p.sends)
	require.Len(t, repo.logs, 2)
	channels := map[domain.Channel]bool{}
	for _, log := range repo.logs {
		assert.Equal(t, domain.NotificationStatusSent, log.Status)
		assert.NotEmpty(t, log.ProviderMessageID)
		channels[log.Channel] = true
	}
	assert.True(t, channels[domain.ChannelEmail])
	assert.True(t, channels[domain.ChannelSms])

	require.Len(t, outboxRepo.staged, 2)
	for _, msg := range outboxRepo.staged {
		assert.Equal(t, messaging.MessageTypeNotificationSent, msg.MessageType)
		assert.Equal(t, messaging.RoutingKeyNotificationSent, msg.RoutingKey)
	}
}

func TestRedeliveredConfirmationDoesNotSendTwice(t *testing.T) {
	service, repo, outboxRepo, p := newService(false)
	orderID := uuid.New()
	env := orderConfirmedEnvelope(orderID)

	require.NoError(t, service.HandleOrderConfirmed(context.Background(), env))
	require.NoError(t, service.HandleOrderConfirmed(context.Background(), env))

	assert.Equal(t, 2, p.sends, "second delivery must be deduplicated")
	assert.Len(t, repo.logs, 2)
	assert.Len(t, outboxRepo.staged, 2)
}

func TestProviderFailureRecordsFailedLog(t *testing.T) {
	service, repo, outboxRepo, _ := newService(true)
	orderID := uuid.New()

	require.NoError(t, service.HandleOrderConfirmed(context.Background(), orderConfirmedEnvelope(orderID)))

	require.Len(t, repo.logs, 2)
	for _, log := range repo.logs {
		assert.Equal(t, domain.NotificationStatusFailed, log.Status)
		assert.Equal(t, "provider rejected send", log.LastError)
	}
	require.Len(t, outboxRepo.staged, 2)
	for _, msg := range outboxRepo.staged {
		assert.Equal(t, messaging.MessageTypeNotificationFailed, msg.MessageType)
	}
}

func TestSendEmailCommandUsesCommandRecipient(t *testing.T) {
	service, repo, _, p := newService(false)
	orderID := uuid.New()

	env := messaging.NewEnvelope(messaging.MessageTypeSendEmailCommand, orderID, nil, "order-service",
		messaging.SendEmailCommand{OrderID: orderID, To: "customer@example.com", Template: "order-receipt"})
	require.NoError(t, service.HandleSendEmail(context.Background(), env))

	assert.Equal(t, 1, p.sends)
	require.Len(t, repo.logs, 1)
	for _, log := range repo.logs {
		assert.Equal(t, "customer@example.com", log.Recipient)
		assert.Equal(t, "order-receipt", log.Template)
		assert.Equal(t, domain.NotificationStatusSent, log.Status)
	}
}
