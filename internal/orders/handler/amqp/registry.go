package amqp

import (
	"github.com/atakanatali/e-commerce/internal/messaging"
	app "github.com/atakanatali/e-commerce/internal/orders/app/orders"
)

// NewRegistry wires the stock outcome events that advance the order saga.
func NewRegistry(service app.OrderService) *messaging.Registry {
	registry := messaging.NewRegistry()
	registry.MustRegister(messaging.MessageTypeStockReserved, "StockReservedHandler",
		messaging.Typed(service.HandleStockReserved))
	registry.MustRegister(messaging.MessageTypeStockReservationFailed, "StockReservationFailedHandler",
		messaging.Typed(service.HandleStockReservationFailed))
	return registry
}
