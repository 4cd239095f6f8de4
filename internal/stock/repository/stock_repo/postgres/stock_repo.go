package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/stock/domain"
	"github.com/atakanatali/e-commerce/internal/stock/repository/stock_repo"
)

type pgStockRepository struct{}

func NewStockRepository() stock_repo.StockRepository {
	return &pgStockRepository{}
}

func (r *pgStockRepository) GetStockItem(ctx context.Context, q database.Querier, productID uuid.UUID) (*domain.StockItem, error) {
	item := &domain.StockItem{}
	query := `SELECT product_id, available_qty, reserved_qty, version, updated_at FROM stock_items WHERE product_id = $1`
	err := q.QueryRowContext(ctx, query, productID).Scan(&item.ProductID, &item.AvailableQty, &item.ReservedQty, &item.Version, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get stock item %s: %w", productID, err)
	}
	return item, nil
}

// TryReserve re-reads available_qty at execution time, so concurrent attempts
// against the same product serialize at the storage layer without explicit
// row locking. Zero rows affected means insufficient stock, not an error.
func (r *pgStockRepository) TryReserve(ctx context.Context, q database.Querier, productID uuid.UUID, quantity int) (bool, error) {
	query := `
		UPDATE stock_items
		SET available_qty = available_qty - $2,
		    reserved_qty = reserved_qty + $2,
		    version = version + 1,
		    updated_at = $3
		WHERE product_id = $1 AND available_qty >= $2
	`
	res, err := q.ExecContext(ctx, query, productID, quantity, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock for product %s: %w", productID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for stock reservation: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *pgStockRepository) Release(ctx context.Context, q database.Querier, productID uuid.UUID, quantity int) (bool, error) {
	query := `
		UPDATE stock_items
		SET available_qty = available_qty + $2,
		    reserved_qty = reserved_qty - $2,
		    version = version + 1,
		    updated_at = $3
		WHERE product_id = $1 AND reserved_qty >= $2
	`
	res, err := q.ExecContext(ctx, query, productID, quantity, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to release stock for product %s: %w", productID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for stock release: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *pgStockRepository) CreateReservation(ctx context.Context, q database.Querier, reservation *domain.StockReservation) error {
	query := `
		INSERT INTO stock_reservations (reservation_id, order_id, product_id, quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		reservation.ReservationID,
		reservation.OrderID,
		reservation.ProductID,
		reservation.Quantity,
		reservation.Status,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create stock reservation for order %s: %w", reservation.OrderID, err)
	}
	return nil
}

func (r *pgStockRepository) GetReservationsByOrderID(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]*domain.StockReservation, error) {
	query := `
		SELECT reservation_id, order_id, product_id, quantity, status, created_at, updated_at
		FROM stock_reservations
		WHERE order_id = $1
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var reservations []*domain.StockReservation
	for rows.Next() {
		res := &domain.StockReservation{}
		if err := rows.Scan(&res.ReservationID, &res.OrderID, &res.ProductID, &res.Quantity, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock reservation rows: %w", err)
	}
	return reservations, nil
}
