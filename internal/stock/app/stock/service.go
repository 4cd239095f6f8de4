package stock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
	"github.com/atakanatali/e-commerce/internal/outbox"
	"github.com/atakanatali/e-commerce/internal/stock/domain"
	"github.com/atakanatali/e-commerce/internal/stock/repository/stock_repo"
)

const producer = "stock-service"

type StockService interface {
	HandleOrderCreated(ctx context.Context, env messaging.Envelope[messaging.OrderCreatedEvent]) error
	HandleReserveStock(ctx context.Context, env messaging.Envelope[messaging.ReserveStockCommand]) error
	HandleReleaseStock(ctx context.Context, env messaging.Envelope[messaging.ReleaseStockCommand]) error
}

type stockService struct {
	db         database.DB
	stockRepo  stock_repo.StockRepository
	outboxRepo outbox.Repository
	logger     *zap.Logger
}

func NewStockService(db database.DB, stockRepo stock_repo.StockRepository, outboxRepo outbox.Repository, logger *zap.Logger) StockService {
	return &stockService{
		db:         db,
		stockRepo:  stockRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

type reserveItem struct {
	productID uuid.UUID
	quantity  int
}

func (s *stockService) HandleOrderCreated(ctx context.Context, env messaging.Envelope[messaging.OrderCreatedEvent]) error {
	items := make([]reserveItem, len(env.Payload.Items))
	for i, item := range env.Payload.Items {
		items[i] = reserveItem{productID: item.ProductID, quantity: item.Quantity}
	}
	return s.reserveForOrder(ctx, env.Payload.OrderID, items, env.CorrelationID, env.MessageID)
}

func (s *stockService) HandleReserveStock(ctx context.Context, env messaging.Envelope[messaging.ReserveStockCommand]) error {
	items := make([]reserveItem, len(env.Payload.Items))
	for i, item := range env.Payload.Items {
		items[i] = reserveItem{productID: item.ProductID, quantity: item.Quantity}
	}
	return s.reserveForOrder(ctx, env.Payload.OrderID, items, env.CorrelationID, env.MessageID)
}

// reserveForOrder runs one reservation attempt for an order. Reservation rows
// for an order are written exactly once; a replayed trigger finds them and
// re-emits the recorded outcome without touching the ledger again.
func (s *stockService) reserveForOrder(ctx context.Context, orderID uuid.UUID, items []reserveItem, correlationID, causationID uuid.UUID) error {
	existing, err := s.stockRepo.GetReservationsByOrderID(ctx, s.db, orderID)
	if err != nil {
		return fmt.Errorf("failed to check existing reservations for order %s: %w", orderID, err)
	}
	if len(existing) > 0 {
		return s.reemitOutcome(ctx, orderID, existing, correlationID, causationID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	results := make([]messaging.StockResultItem, 0, len(items))
	reserved := true
	for _, item := range items {
		ok, err := s.stockRepo.TryReserve(ctx, tx, item.productID, item.quantity)
		if err != nil {
			return err
		}
		results = append(results, messaging.StockResultItem{
			ProductID: item.productID,
			Requested: item.quantity,
			Success:   ok,
		})
		if !ok {
			// Stop at the first shortfall; the rollback undoes the decrements
			// already applied for earlier items of this attempt.
			reserved = false
			break
		}
	}

	if !reserved {
		_ = tx.Rollback()
		return s.recordFailure(ctx, orderID, items, results, correlationID, causationID)
	}

	for _, item := range items {
		reservation := domain.NewReservation(orderID, item.productID, item.quantity, domain.ReservationStatusReserved)
		if err := s.stockRepo.CreateReservation(ctx, tx, reservation); err != nil {
			return err
		}
	}
	if err := s.fillAvailability(ctx, tx, results); err != nil {
		return err
	}

	event := messaging.StockReservedEvent{OrderID: orderID, Items: results}
	reservedEnv := messaging.NewEnvelope(messaging.MessageTypeStockReserved, correlationID, &causationID, producer, event)
	msg, err := outbox.NewMessage(reservedEnv, messaging.EventsExchange, messaging.RoutingKeyStockReserved)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage stock reserved event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock reservation: %w", err)
	}

	s.logger.Info("Stock reserved",
		zap.String("order_id", orderID.String()),
		zap.Int("items", len(items)))
	return nil
}

// recordFailure runs after the reservation transaction rolled back. Failed
// rows and the failure event commit together in a fresh transaction.
func (s *stockService) recordFailure(ctx context.Context, orderID uuid.UUID, items []reserveItem, results []messaging.StockResultItem, correlationID, causationID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		reservation := domain.NewReservation(orderID, item.productID, item.quantity, domain.ReservationStatusFailed)
		if err := s.stockRepo.CreateReservation(ctx, tx, reservation); err != nil {
			return err
		}
	}

	attempted := make(map[uuid.UUID]messaging.StockResultItem, len(results))
	for _, res := range results {
		attempted[res.ProductID] = res
	}
	full := make([]messaging.StockResultItem, len(items))
	reason := "insufficient stock"
	for i, item := range items {
		res, ok := attempted[item.productID]
		if !ok {
			// Never attempted because an earlier item already failed.
			res = messaging.StockResultItem{ProductID: item.productID, Requested: item.quantity, Success: false}
		}
		if ok && !res.Success {
			reason = fmt.Sprintf("insufficient stock for product %s", item.productID)
		}
		full[i] = res
	}
	if err := s.fillAvailability(ctx, tx, full); err != nil {
		return err
	}

	event := messaging.StockReservationFailedEvent{OrderID: orderID, Reason: reason, Items: full}
	failedEnv := messaging.NewEnvelope(messaging.MessageTypeStockReservationFailed, correlationID, &causationID, producer, event)
	msg, err := outbox.NewMessage(failedEnv, messaging.EventsExchange, messaging.RoutingKeyStockReserveFailed)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage stock reservation failed event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock reservation failure: %w", err)
	}

	s.logger.Info("Stock reservation failed",
		zap.String("order_id", orderID.String()),
		zap.String("reason", reason))
	return nil
}

// reemitOutcome replays the recorded outcome of an earlier attempt without
// mutating the ledger. The redelivered trigger still deserves an answer, the
// downstream dedups on message type and order state.
func (s *stockService) reemitOutcome(ctx context.Context, orderID uuid.UUID, reservations []*domain.StockReservation, correlationID, causationID uuid.UUID) error {
	reserved := false
	for _, res := range reservations {
		if res.Status == domain.ReservationStatusReserved {
			reserved = true
			break
		}
	}

	items := make([]messaging.StockResultItem, len(reservations))
	for i, res := range reservations {
		items[i] = messaging.StockResultItem{
			ProductID: res.ProductID,
			Requested: res.Quantity,
			Success:   res.Status == domain.ReservationStatusReserved,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.fillAvailability(ctx, tx, items); err != nil {
		return err
	}

	var msg *outbox.Message
	if reserved {
		event := messaging.StockReservedEvent{OrderID: orderID, Items: items}
		env := messaging.NewEnvelope(messaging.MessageTypeStockReserved, correlationID, &causationID, producer, event)
		msg, err = outbox.NewMessage(env, messaging.EventsExchange, messaging.RoutingKeyStockReserved)
	} else {
		event := messaging.StockReservationFailedEvent{OrderID: orderID, Reason: "insufficient stock", Items: items}
		env := messaging.NewEnvelope(messaging.MessageTypeStockReservationFailed, correlationID, &causationID, producer, event)
		msg, err = outbox.NewMessage(env, messaging.EventsExchange, messaging.RoutingKeyStockReserveFailed)
	}
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage replayed reservation outcome: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replayed reservation outcome: %w", err)
	}

	s.logger.Info("Re-emitted recorded reservation outcome",
		zap.String("order_id", orderID.String()),
		zap.Bool("reserved", reserved))
	return nil
}

// HandleReleaseStock returns reserved quantities to the available pool, e.g.
// after a cancellation that followed a successful reservation.
func (s *stockService) HandleReleaseStock(ctx context.Context, env messaging.Envelope[messaging.ReleaseStockCommand]) error {
	orderID := env.Payload.OrderID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range env.Payload.Items {
		ok, err := s.stockRepo.Release(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			// Less reserved than asked for, likely a duplicate release. Skip
			// the product rather than fail the whole command.
			s.logger.Warn("Skipping stock release with insufficient reserved quantity",
				zap.String("order_id", orderID.String()),
				zap.String("product_id", item.ProductID.String()),
				zap.Int("quantity", item.Quantity))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock release: %w", err)
	}

	s.logger.Info("Stock released", zap.String("order_id", orderID.String()))
	return nil
}

// fillAvailability stamps each result with the currently available quantity
// for diagnostics. A product missing from the ledger reads as zero.
func (s *stockService) fillAvailability(ctx context.Context, q database.Querier, results []messaging.StockResultItem) error {
	for i := range results {
		item, err := s.stockRepo.GetStockItem(ctx, q, results[i].ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				results[i].Available = 0
				continue
			}
			return err
		}
		results[i].Available = item.AvailableQty
	}
	return nil
}
