package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
	"github.com/atakanatali/e-commerce/internal/orders/domain"
	"github.com/atakanatali/e-commerce/internal/orders/repository/order_repo"
	"github.com/atakanatali/e-commerce/internal/outbox"
)

const producer = "order-service"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidOrder  = errors.New("invalid order data")
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*OrderResponse, error)
	HandleStockReserved(ctx context.Context, env messaging.Envelope[messaging.StockReservedEvent]) error
	HandleStockReservationFailed(ctx context.Context, env messaging.Envelope[messaging.StockReservationFailedEvent]) error
}

type orderService struct {
	db         database.DB
	orderRepo  order_repo.OrderRepository
	outboxRepo outbox.Repository
	logger     *zap.Logger
}

func NewOrderService(db database.DB, orderRepo order_repo.OrderRepository, outboxRepo outbox.Repository, logger *zap.Logger) OrderService {
	return &orderService{
		db:         db,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateOrder persists the order and stages the order-created event in one
// transaction. The event leaves through the outbox publisher, so the HTTP
// caller never waits on the broker.
func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	order, err := domain.NewOrder(req.UserID, items)
	if err != nil {
		s.logger.Warn("Rejected order creation request", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	event := messaging.OrderCreatedEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Total,
		Items:   mapItemsToDto(order.Items),
	}
	env := messaging.NewEnvelope(messaging.MessageTypeOrderCreated, order.ID, nil, producer, event)
	msg, err := outbox.NewMessage(env, messaging.EventsExchange, messaging.RoutingKeyOrderCreated)
	if err != nil {
		s.logger.Error("Failed to build order created outbox message", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		s.logger.Error("Failed to persist order", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		s.logger.Error("Failed to stage order created event", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.Float64("total", order.Total))

	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, s.db, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, err
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, s.db, userID)
	if err != nil {
		s.logger.Error("Failed to load orders for user", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = mapOrderToResponse(order)
	}
	return responses, nil
}

// HandleStockReserved confirms the order and stages the order-confirmed event
// in the same transaction. Orders already in a terminal state are left alone.
func (s *orderService) HandleStockReserved(ctx context.Context, env messaging.Envelope[messaging.StockReservedEvent]) error {
	orderID := env.Payload.OrderID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.orderRepo.GetOrderByID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Stock reserved for unknown order, ignoring", zap.String("order_id", orderID.String()))
			return nil
		}
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status.IsTerminal() {
		s.logger.Info("Order already in terminal state, ignoring stock reservation",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(order.Status)))
		return nil
	}

	if err := order.MarkAsConfirmed(); err != nil {
		return fmt.Errorf("failed to confirm order %s: %w", orderID, err)
	}
	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	event := messaging.OrderConfirmedEvent{OrderID: order.ID, UserID: order.UserID, Total: order.Total}
	causation := env.MessageID
	confirmedEnv := messaging.NewEnvelope(messaging.MessageTypeOrderConfirmed, env.CorrelationID, &causation, producer, event)
	msg, err := outbox.NewMessage(confirmedEnv, messaging.EventsExchange, messaging.RoutingKeyOrderConfirmed)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage order confirmed event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order confirmation: %w", err)
	}

	s.logger.Info("Order confirmed", zap.String("order_id", order.ID.String()))
	return nil
}

// HandleStockReservationFailed cancels the order and stages the
// order-cancelled event. Already cancelled or confirmed orders are left alone.
func (s *orderService) HandleStockReservationFailed(ctx context.Context, env messaging.Envelope[messaging.StockReservationFailedEvent]) error {
	orderID := env.Payload.OrderID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.orderRepo.GetOrderByID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Stock reservation failed for unknown order, ignoring", zap.String("order_id", orderID.String()))
			return nil
		}
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status.IsTerminal() {
		s.logger.Info("Order already in terminal state, ignoring stock reservation failure",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(order.Status)))
		return nil
	}

	if err := order.MarkAsCancelled(); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	event := messaging.OrderCancelledEvent{OrderID: order.ID, Reason: env.Payload.Reason}
	causation := env.MessageID
	cancelledEnv := messaging.NewEnvelope(messaging.MessageTypeOrderCancelled, env.CorrelationID, &causation, producer, event)
	msg, err := outbox.NewMessage(cancelledEnv, messaging.EventsExchange, messaging.RoutingKeyOrderCancelled)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage order cancelled event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order cancellation: %w", err)
	}

	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("reason", env.Payload.Reason))
	return nil
}

func mapItemsToDto(items []domain.OrderItem) []messaging.OrderItemDto {
	dtos := make([]messaging.OrderItemDto, len(items))
	for i, item := range items {
		dtos[i] = messaging.OrderItemDto{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return dtos
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}
	return &OrderResponse{
		ID:        order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		Total:     order.Total,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
		Items:     items,
	}
}
