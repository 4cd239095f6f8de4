package stock

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
	"github.com/atakanatali/e-commerce/internal/outbox"
	"github.com/atakanatali/e-commerce/internal/stock/domain"
)

// fakeTx collects undo closures so a rollback actually reverts the fake
// ledger, mirroring what the real transaction does for conditional updates.
type fakeTx struct {
	fakeQuerier
	committed  bool
	rolledBack bool
	undo       []func()
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.committed || t.rolledBack {
		return nil
	}
	t.rolledBack = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	return nil
}

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

type fakeStockRepo struct {
	items           map[uuid.UUID]*domain.StockItem
	reservations    []*domain.StockReservation
	tryReserveCalls int
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{items: make(map[uuid.UUID]*domain.StockItem)}
}

func (f *fakeStockRepo) addStock(productID uuid.UUID, available int) {
	f.items[productID] = &domain.StockItem{ProductID: productID, AvailableQty: available, UpdatedAt: time.Now().UTC()}
}

func (f *fakeStockRepo) GetStockItem(ctx context.Context, q database.Querier, productID uuid.UUID) (*domain.StockItem, error) {
	item, ok := f.items[productID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (f *fakeStockRepo) TryReserve(ctx context.Context, q database.Querier, productID uuid.UUID, quantity int) (bool, error) {
	f.tryReserveCalls++
	item, ok := f.items[productID]
	if !ok || item.AvailableQty < quantity {
		return false, nil
	}
	item.AvailableQty -= quantity
	item.ReservedQty += quantity
	item.Version++
	if tx, isTx := q.(*fakeTx); isTx {
		tx.undo = append(tx.undo, func() {
			item.AvailableQty += quantity
			item.ReservedQty -= quantity
			item.Version++
		})
	}
	return true, nil
}

func (f *fakeStockRepo) Release(ctx context.Context, q database.Querier, productID uuid.UUID, quantity int) (bool, error) {
	item, ok := f.items[productID]
	if !ok || item.ReservedQty < quantity {
		return false, nil
	}
	item.ReservedQty -= quantity
	item.AvailableQty += quantity
	item.Version++
	return true, nil
}

func (f *fakeStockRepo) CreateReservation(ctx context.Context, q database.Querier, reservation *domain.StockReservation) error {
	copied := *reservation
	f.reservations = append(f.reservations, &copied)
	return nil
}

func (f *fakeStockRepo) GetReservationsByOrderID(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]*domain.StockReservation, error) {
	var matched []*domain.StockReservation
	for _, res := range f.reservations {
		if res.OrderID == orderID {
			matched = append(matched, res)
		}
	}
	return matched, nil
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

func newService() (StockService, *fakeStockRepo, *fakeOutboxRepo) {
	stockRepo := newFakeStockRepo()
	outboxRepo := &fakeOutboxRepo{}
	service := NewStockService(&fakeDB{}, stockRepo, outboxRepo, zap.NewNop())
	return service, stockRepo, outboxRepo
}

func orderCreatedEnvelope(orderID uuid.UUID, items []messaging.OrderItemDto) messaging.Envelope[messaging.OrderCreatedEvent] {
	return messaging.NewEnvelope(messaging.MessageTypeOrderCreated, orderID, nil, "order-service",
		messaging.OrderCreatedEvent{OrderID: orderID, UserID: uuid.New(), Items: items})
}

func TestReservationSucceedsAndMovesStock(t *testing.T) {
	service, stockRepo, outboxRepo := newService()
	p1, p2 := uuid.New(), uuid.New()
	stockRepo.addStock(p1, 10)
	stockRepo.addStock(p2, 10)

	orderID := uuid.New()
	env := orderCreatedEnvelope(orderID, []messaging.OrderItemDto{
		{ProductID: p1, Quantity: 2, UnitPrice: 10.00},
		{ProductID: p2, Quantity: 1, UnitPrice: 5.00},
	})
	require.NoError(t, service.HandleOrderCreated(context.Background(), env))

	assert.Equal(t, 8, stockRepo.items[p1].AvailableQty)
	assert.Equal(t, 2, stockRepo.items[p1].ReservedQty)
	assert.Equal(t, 9, stockRepo.items[p2].AvailableQty)
	assert.Equal(t, 1, stockRepo.items[p2].ReservedQty)

	require.Len(t, stockRepo.reservations, 2)
	for _, res := range stockRepo.reservations {
		assert.Equal(t, domain.ReservationStatusReserved, res.Status)
		assert.Equal(t, orderID, res.OrderID)
	}

	require.Len(t, outboxRepo.staged, 1)
	msg := outboxRepo.staged[0]
	assert.Equal(t, messaging.MessageTypeStockReserved, msg.MessageType)
	assert.Equal(t, messaging.RoutingKeyStockReserved, msg.RoutingKey)
	require.NotNil(t, msg.CausationID)
	assert.Equal(t, env.MessageID, *msg.CausationID)
}

func TestReservationFailureRollsBackEarlierItems(t *testing.T) {
	service, stockRepo, outboxRepo := newService()
	p1, p2 := uuid.New(), uuid.New()
	stockRepo.addStock(p1, 10)
	stockRepo.addStock(p2, 0)

	orderID := uuid.New()
	env := orderCreatedEnvelope(orderID, []messaging.OrderItemDto{
		{ProductID: p1, Quantity: 2, UnitPrice: 10.00},
		{ProductID: p2, Quantity: 1, UnitPrice: 5.00},
	})
	require.NoError(t, service.HandleOrderCreated(context.Background(), env))

	// The P1 decrement from this attempt must be undone.
	assert.Equal(t, 10, stockRepo.items[p1].AvailableQty)
	assert.Equal(t, 0, stockRepo.items[p1].ReservedQty)
	assert.Equal(t, 0, stockRepo.items[p2].AvailableQty)

	require.Len(t, stockRepo.reservations, 2)
	for _, res := range stockRepo.reservations {
		assert.Equal(t, domain.ReservationStatusFailed, res.Status)
	}

	require.Len(t, outboxRepo.staged, 1)
	msg := outboxRepo.staged[0]
	assert.Equal(t, messaging.MessageTypeStockReservationFailed, msg.MessageType)
	assert.Equal(t, messaging.RoutingKeyStockReserveFailed, msg.RoutingKey)
}

func TestRedeliveredOrderCreatedReplaysOutcomeWithoutReserving(t *testing.T) {
	service, stockRepo, outboxRepo := newService()
	p1 := uuid.New()
	stockRepo.addStock(p1, 10)

	orderID := uuid.New()
	env := orderCreatedEnvelope(orderID, []messaging.OrderItemDto{
		{ProductID: p1, Quantity: 2, UnitPrice: 10.00},
	})
	require.NoError(t, service.HandleOrderCreated(context.Background(), env))
	callsAfterFirst := stockRepo.tryReserveCalls
	outboxRepo.staged = nil

	require.NoError(t, service.HandleOrderCreated(context.Background(), env))

	assert.Equal(t, callsAfterFirst, stockRepo.tryReserveCalls, "replay must not touch the ledger")
	assert.Equal(t, 8, stockRepo.items[p1].AvailableQty)
	require.Len(t, stockRepo.reservations, 2, "no new reservation rows on replay")
	require.Len(t, outboxRepo.staged, 1)
	assert.Equal(t, messaging.MessageTypeStockReserved, outboxRepo.staged[0].MessageType)
}

func TestRedeliveredFailureReplaysFailureOutcome(t *testing.T) {
	service, stockRepo, outboxRepo := newService()
	p1 := uuid.New()
	stockRepo.addStock(p1, 1)

	orderID := uuid.New()
	env := orderCreatedEnvelope(orderID, []messaging.OrderItemDto{
		{ProductID: p1, Quantity: 5, UnitPrice: 10.00},
	})
	require.NoError(t, service.HandleOrderCreated(context.Background(), env))
	outboxRepo.staged = nil

	require.NoError(t, service.HandleOrderCreated(context.Background(), env))
	require.Len(t, outboxRepo.staged, 1)
	assert.Equal(t, messaging.MessageTypeStockReservationFailed, outboxRepo.staged[0].MessageType)
}

func TestReleaseStockReturnsReservedQuantity(t *testing.T) {
	service, stockRepo, _ := newService()
	p1 := uuid.New()
	stockRepo.addStock(p1, 10)

	orderID := uuid.New()
	require.NoError(t, service.HandleOrderCreated(context.Background(), orderCreatedEnvelope(orderID, []messaging.OrderItemDto{
		{ProductID: p1, Quantity: 4, UnitPrice: 10.00},
	})))
	require.Equal(t, 6, stockRepo.items[p1].AvailableQty)

	releaseEnv := messaging.NewEnvelope(messaging.MessageTypeReleaseStockCommand, orderID, nil, "order-service",
		messaging.ReleaseStockCommand{OrderID: orderID, Items: []messaging.ReleaseStockItem{{ProductID: p1, Quantity: 4}}})
	require.NoError(t, service.HandleReleaseStock(context.Background(), releaseEnv))

	assert.Equal(t, 10, stockRepo.items[p1].AvailableQty)
	assert.Equal(t, 0, stockRepo.items[p1].ReservedQty)
}
