package amqp

import (
	"github.com/atakanatali/e-commerce/internal/messaging"
	app "github.com/atakanatali/e-commerce/internal/notifications/app/notifications"
)

// NewRegistry wires the triggers the notification service consumes.
func NewRegistry(service app.NotificationService) *messaging.Registry {
	registry := messaging.NewRegistry()
	registry.MustRegister(messaging.MessageTypeOrderConfirmed, "OrderConfirmedHandler",
		messaging.Typed(service.HandleOrderConfirmed))
	registry.MustRegister(messaging.MessageTypeSendEmailCommand, "SendEmailHandler",
		messaging.Typed(service.HandleSendEmail))
	registry.MustRegister(messaging.MessageTypeSendSmsCommand, "SendSmsHandler",
		messaging.Typed(service.HandleSendSms))
	return registry
}
