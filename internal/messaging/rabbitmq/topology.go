package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/atakanatali/e-commerce/internal/messaging"
)

// DeclareExchanges declares the shared commands and events exchanges.
func DeclareExchanges(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(messaging.CommandsExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare commands exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(messaging.EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}
	return nil
}

// DeclareConsumerTopology declares a consumer's work/retry/dlq queue triad
// and its bindings. A nack without requeue dead-letters the message to the
// retry queue, where it expires back onto the work queue after RetryTTL.
// Declaration is idempotent; services run it on every start.
func DeclareConsumerTopology(ch *amqp.Channel, topo messaging.ConsumerTopology) error {
	retryQueue := messaging.RetryQueue(topo.Queue)
	dlq := messaging.DeadLetterQueue(topo.Queue)

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlq %s: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(retryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             messaging.RetryTTL.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": topo.Queue,
	}); err != nil {
		return fmt.Errorf("failed to declare retry queue %s: %w", retryQueue, err)
	}

	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": retryQueue,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topo.Queue, err)
	}

	for _, binding := range topo.Bindings {
		if err := ch.QueueBind(topo.Queue, binding.RoutingKey, binding.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s with key %s: %w",
				topo.Queue, binding.Exchange, binding.RoutingKey, err)
		}
	}

	return nil
}
