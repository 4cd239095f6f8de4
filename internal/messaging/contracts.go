package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Message type discriminators carried in Envelope.MessageType and the
// broker's Type property. The outbox publisher refuses to ship rows whose
// type is not listed here.
const (
	MessageTypeOrderCreated           = "OrderCreatedEvent"
	MessageTypeOrderConfirmed         = "OrderConfirmedEvent"
	MessageTypeOrderCancelled         = "OrderCancelledEvent"
	MessageTypeStockReserved          = "StockReservedEvent"
	MessageTypeStockReservationFailed = "StockReservationFailedEvent"
	MessageTypeNotificationSent       = "NotificationSentEvent"
	MessageTypeNotificationFailed     = "NotificationFailedEvent"
	MessageTypeReserveStockCommand    = "ReserveStockCommand"
	MessageTypeReleaseStockCommand    = "ReleaseStockCommand"
	MessageTypeSendEmailCommand       = "SendEmailCommand"
	MessageTypeSendSmsCommand         = "SendSmsCommand"
)

var knownMessageTypes = map[string]struct{}{
	MessageTypeOrderCreated:           {},
	MessageTypeOrderConfirmed:         {},
	MessageTypeOrderCancelled:         {},
	MessageTypeStockReserved:          {},
	MessageTypeStockReservationFailed: {},
	MessageTypeNotificationSent:       {},
	MessageTypeNotificationFailed:     {},
	MessageTypeReserveStockCommand:    {},
	MessageTypeReleaseStockCommand:    {},
	MessageTypeSendEmailCommand:       {},
	MessageTypeSendSmsCommand:         {},
}

// KnownMessageType reports whether t is a registered discriminator.
func KnownMessageType(t string) bool {
	_, ok := knownMessageTypes[t]
	return ok
}

// OrderItemDto is a line item as carried on order events.
type OrderItemDto struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
}

// OrderCreatedEvent is emitted when an order is accepted and starts the saga.
type OrderCreatedEvent struct {
	OrderID uuid.UUID      `json:"orderId"`
	UserID  uuid.UUID      `json:"userId"`
	Total   float64        `json:"total"`
	Items   []OrderItemDto `json:"items"`
}

// OrderConfirmedEvent is emitted after stock was reserved for the order.
type OrderConfirmedEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	UserID  uuid.UUID `json:"userId"`
	Total   float64   `json:"total"`
}

// OrderCancelledEvent is emitted when the saga ends without stock.
type OrderCancelledEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason"`
}

// StockResultItem reports the per-product outcome of a reservation attempt.
// Available is the quantity observed after processing.
type StockResultItem struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Success   bool      `json:"success"`
}

// StockReservedEvent is emitted when every item of an order was reserved.
type StockReservedEvent struct {
	OrderID uuid.UUID         `json:"orderId"`
	Items   []StockResultItem `json:"items"`
}

// StockReservationFailedEvent is emitted when any item could not be reserved.
type StockReservationFailedEvent struct {
	OrderID uuid.UUID         `json:"orderId"`
	Reason  string            `json:"reason"`
	Items   []StockResultItem `json:"items"`
}

// NotificationSentEvent is emitted after a notification was delivered.
type NotificationSentEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	Channel string    `json:"channel"`
	To      string    `json:"to"`
}

// NotificationFailedEvent is emitted when a delivery provider rejects a send.
type NotificationFailedEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	Channel string    `json:"channel"`
	To      string    `json:"to"`
	Error   string    `json:"error"`
}

// ReserveStockItem is a quantity to reserve for one product.
type ReserveStockItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// ReserveStockCommand asks the stock service to reserve items for an order.
type ReserveStockCommand struct {
	OrderID                 uuid.UUID          `json:"orderId"`
	Items                   []ReserveStockItem `json:"items"`
	ReservationExpiresAtUtc *time.Time         `json:"reservationExpiresAtUtc"`
}

// ReleaseStockItem is a quantity to release for one product.
type ReleaseStockItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// ReleaseStockCommand asks the stock service to return reserved quantities to
// the available pool.
type ReleaseStockCommand struct {
	OrderID uuid.UUID          `json:"orderId"`
	Items   []ReleaseStockItem `json:"items"`
}

// SendEmailCommand asks the notification service to send a templated email.
type SendEmailCommand struct {
	OrderID   uuid.UUID         `json:"orderId"`
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

// SendSmsCommand asks the notification service to send a templated SMS.
type SendSmsCommand struct {
	OrderID   uuid.UUID         `json:"orderId"`
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}
