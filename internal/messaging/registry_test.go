package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	handler := func(ctx context.Context, body []byte) error { return nil }

	require.NoError(t, registry.Register(MessageTypeOrderCreated, "first", handler))
	err := registry.Register(MessageTypeOrderCreated, "second", handler)
	assert.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	called := false
	registry.MustRegister(MessageTypeStockReserved, "StockReservedHandler", func(ctx context.Context, body []byte) error {
		called = true
		return nil
	})

	name, handle, ok := registry.Resolve(MessageTypeStockReserved)
	require.True(t, ok)
	assert.Equal(t, "StockReservedHandler", name)
	require.NoError(t, handle(context.Background(), nil))
	assert.True(t, called)

	_, _, ok = registry.Resolve("SomethingElse")
	assert.False(t, ok)
}

func TestTypedDecodesEnvelope(t *testing.T) {
	orderID := uuid.New()
	env := NewEnvelope(MessageTypeOrderCancelled, orderID, nil, "order-service", OrderCancelledEvent{
		OrderID: orderID,
		Reason:  "insufficient stock",
	})
	body := mustMarshal(t, env)

	var got Envelope[OrderCancelledEvent]
	handler := Typed(func(ctx context.Context, env Envelope[OrderCancelledEvent]) error {
		got = env
		return nil
	})

	require.NoError(t, handler(context.Background(), body))
	assert.Equal(t, env.MessageID, got.MessageID)
	assert.Equal(t, orderID, got.Payload.OrderID)
	assert.Equal(t, "insufficient stock", got.Payload.Reason)
	assert.Nil(t, got.CausationID)
}

func TestTypedReportsUndecodableBody(t *testing.T) {
	handler := Typed(func(ctx context.Context, env Envelope[OrderCreatedEvent]) error {
		return errors.New("should not be reached")
	})
	err := handler(context.Background(), []byte("not json"))
	assert.Error(t, err)
}
