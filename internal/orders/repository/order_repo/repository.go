package order_repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/orders/domain"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, q database.Querier, order *domain.Order) error
	GetOrderByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Order, error)
	GetOrdersByUserID(ctx context.Context, q database.Querier, userID uuid.UUID) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, q database.Querier, order *domain.Order) error
}
