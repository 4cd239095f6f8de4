package messaging

import "time"

// Exchange names shared by every service.
const (
	CommandsExchange = "ecommerce.commands" // direct
	EventsExchange   = "ecommerce.events"   // topic
)

// Command routing keys (commands exchange, direct).
const (
	RoutingKeyStockReserve          = "stock.reserve"
	RoutingKeyStockRelease          = "stock.release"
	RoutingKeyNotificationEmailSend = "notification.email.send"
	RoutingKeyNotificationSmsSend   = "notification.sms.send"
)

// Event routing keys (events exchange, topic).
const (
	RoutingKeyOrderCreated       = "order.created"
	RoutingKeyOrderConfirmed     = "order.confirmed"
	RoutingKeyOrderCancelled     = "order.cancelled"
	RoutingKeyStockReserved      = "stock.reserved"
	RoutingKeyStockReserveFailed = "stock.reserve_failed"
	RoutingKeyNotificationSent   = "notification.sent"
	RoutingKeyNotificationFailed = "notification.failed"
)

// Consumer work queues. Each owns a .retry and a .dlq sibling.
const (
	OrderStockEventsQueue           = "order-service.stock-events-queue"
	StockOrderEventsQueue           = "stock-service.order-events-queue"
	StockCommandsQueue              = "stock-service.commands-queue"
	NotificationOrderConfirmedQueue = "notification-service.order-confirmed-queue"
	NotificationCommandsQueue       = "notification-service.commands-queue"
)

// RetryTTL is how long a nacked message ages in the retry queue before it is
// dead-lettered back onto the work queue. This yields delayed redelivery
// without a scheduler.
const RetryTTL = 30 * time.Second

// RetryQueue returns the retry sibling of a work queue.
func RetryQueue(queue string) string { return queue + ".retry" }

// DeadLetterQueue returns the terminal dlq sibling of a work queue.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// Binding routes messages from an exchange into a consumer's work queue.
type Binding struct {
	Exchange   string
	RoutingKey string
}

// ConsumerTopology describes one consumer's queue triad and its bindings.
// Declaration is idempotent and safe to repeat on every process start.
type ConsumerTopology struct {
	Queue    string
	Bindings []Binding
}

// OrderServiceTopology binds stock outcome events for the order service.
func OrderServiceTopology() ConsumerTopology {
	return ConsumerTopology{
		Queue: OrderStockEventsQueue,
		Bindings: []Binding{
			{Exchange: EventsExchange, RoutingKey: RoutingKeyStockReserved},
			{Exchange: EventsExchange, RoutingKey: RoutingKeyStockReserveFailed},
		},
	}
}

// StockServiceTopologies bind order events and stock commands for the stock
// service.
func StockServiceTopologies() []ConsumerTopology {
	return []ConsumerTopology{
		{
			Queue: StockOrderEventsQueue,
			Bindings: []Binding{
				{Exchange: EventsExchange, RoutingKey: RoutingKeyOrderCreated},
			},
		},
		{
			Queue: StockCommandsQueue,
			Bindings: []Binding{
				{Exchange: CommandsExchange, RoutingKey: RoutingKeyStockReserve},
				{Exchange: CommandsExchange, RoutingKey: RoutingKeyStockRelease},
			},
		},
	}
}

// NotificationServiceTopologies bind order confirmations and direct send
// commands for the notification service.
func NotificationServiceTopologies() []ConsumerTopology {
	return []ConsumerTopology{
		{
			Queue: NotificationOrderConfirmedQueue,
			Bindings: []Binding{
				{Exchange: EventsExchange, RoutingKey: RoutingKeyOrderConfirmed},
			},
		},
		{
			Queue: NotificationCommandsQueue,
			Bindings: []Binding{
				{Exchange: CommandsExchange, RoutingKey: RoutingKeyNotificationEmailSend},
				{Exchange: CommandsExchange, RoutingKey: RoutingKeyNotificationSmsSend},
			},
		},
	}
}
