package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "Created"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCancelled
}

type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Status    OrderStatus
	Total     float64
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []OrderItem
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

func NewOrder(userID uuid.UUID, items []OrderItem) (*Order, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user id is required")
	}
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}

	orderID := uuid.New()
	now := time.Now().UTC()
	total := 0.0
	for i := range items {
		item := &items[i]
		if item.ProductID == uuid.Nil || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, errors.New("invalid order item")
		}
		item.ID = uuid.New()
		item.OrderID = orderID
		item.LineTotal = float64(item.Quantity) * item.UnitPrice
		total += item.LineTotal
	}

	return &Order{
		ID:        orderID,
		UserID:    userID,
		Status:    OrderStatusCreated,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     items,
	}, nil
}

// MarkAsConfirmed moves a created order to Confirmed. Terminal states are
// never left again, so confirming a confirmed or cancelled order fails.
func (o *Order) MarkAsConfirmed() error {
	if o.Status != OrderStatusCreated {
		return errors.New("only a created order can be confirmed")
	}
	o.Status = OrderStatusConfirmed
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) MarkAsCancelled() error {
	if o.Status != OrderStatusCreated {
		return errors.New("only a created order can be cancelled")
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}
