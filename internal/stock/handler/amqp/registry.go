package amqp

import (
	"github.com/atakanatali/e-commerce/internal/messaging"
	app "github.com/atakanatali/e-commerce/internal/stock/app/stock"
)

// NewRegistry wires the order events and stock commands the stock service
// consumes. Both consumer queues share one registry because the handlers are
// disjoint by message type.
func NewRegistry(service app.StockService) *messaging.Registry {
	registry := messaging.NewRegistry()
	registry.MustRegister(messaging.MessageTypeOrderCreated, "OrderCreatedHandler",
		messaging.Typed(service.HandleOrderCreated))
	registry.MustRegister(messaging.MessageTypeReserveStockCommand, "ReserveStockHandler",
		messaging.Typed(service.HandleReserveStock))
	registry.MustRegister(messaging.MessageTypeReleaseStockCommand, "ReleaseStockHandler",
		messaging.Typed(service.HandleReleaseStock))
	return registry
}
