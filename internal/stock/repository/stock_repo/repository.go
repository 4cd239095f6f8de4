package stock_repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/stock/domain"
)

type StockRepository interface {
	GetStockItem(ctx context.Context, q database.Querier, productID uuid.UUID) (*domain.StockItem, error)

	// TryReserve moves quantity from available to reserved with one conditional
	// update guarded by available_qty >= quantity. It returns false when the
	// guard failed, meaning available stock was insufficient at execution time.
	TryReserve(ctx context.Context, q database.Querier, productID uuid.UUID, quantity int) (bool, error)

	// Release moves quantity from reserved back to available, guarded by
	// reserved_qty >= quantity.
	Release(ctx context.Context, q database.Querier, productID uuid.UUID, quantity int) (bool, error)

	CreateReservation(ctx context.Context, q database.Querier, reservation *domain.StockReservation) error
	GetReservationsByOrderID(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]*domain.StockReservation, error)
}
