package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockItem is the per-product ledger row. AvailableQty never goes negative;
// a successful reservation moves quantity from available to reserved in one
// conditional update, so the sum of the two is conserved.
type StockItem struct {
	ProductID    uuid.UUID
	AvailableQty int
	ReservedQty  int
	Version      int64
	UpdatedAt    time.Time
}

type ReservationStatus string

const (
	ReservationStatusReserved ReservationStatus = "Reserved"
	ReservationStatusFailed   ReservationStatus = "Failed"
)

// StockReservation records the outcome of one order's reservation attempt for
// one product. The set of rows for an orderId is written exactly once and is
// the source of truth when a redelivered order event replays the saga step.
type StockReservation struct {
	ReservationID uuid.UUID
	OrderID       uuid.UUID
	ProductID     uuid.UUID
	Quantity      int
	Status        ReservationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewReservation(orderID, productID uuid.UUID, quantity int, status ReservationStatus) *StockReservation {
	now := time.Now().UTC()
	return &StockReservation{
		ReservationID: uuid.New(),
		OrderID:       orderID,
		ProductID:     productID,
		Quantity:      quantity,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
