package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/notifications/domain"
)

// Result is the provider's acknowledgement of an accepted send.
type Result struct {
	ProviderMessageID string
	ResponseJSON      string
}

// Provider delivers one notification over an external channel.
type Provider interface {
	Send(ctx context.Context, channel domain.Channel, recipient, template string, variables map[string]string) (*Result, error)
}

// simulatedProvider stands in for a real email/SMS gateway. It accepts every
// send and fabricates provider metadata.
type simulatedProvider struct {
	logger *zap.Logger
}

func NewSimulatedProvider(logger *zap.Logger) Provider {
	return &simulatedProvider{logger: logger}
}

func (p *simulatedProvider) Send(ctx context.Context, channel domain.Channel, recipient, template string, variables map[string]string) (*Result, error) {
	providerMessageID := uuid.New().String()
	p.logger.Info("Simulated notification delivery",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("template", template),
		zap.String("provider_message_id", providerMessageID))
	return &Result{
		ProviderMessageID: providerMessageID,
		ResponseJSON:      fmt.Sprintf(`{"status":"accepted","channel":%q,"template":%q}`, channel, template),
	}, nil
}
