package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc processes the raw body of one delivery.
type HandlerFunc func(ctx context.Context, body []byte) error

type registration struct {
	name   string
	handle HandlerFunc
}

// Registry is a closed dispatch table from message type discriminator to
// handler. Consumers resolve deliveries against it by the broker's Type
// property; there is no runtime type discovery.
type Registry struct {
	handlers map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]registration)}
}

// Register binds a handler to a message type. Registering the same type twice
// is a wiring bug and fails.
func (r *Registry) Register(messageType, handlerName string, h HandlerFunc) error {
	if _, exists := r.handlers[messageType]; exists {
		return fmt.Errorf("handler already registered for message type %s", messageType)
	}
	r.handlers[messageType] = registration{name: handlerName, handle: h}
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate is fatal.
func (r *Registry) MustRegister(messageType, handlerName string, h HandlerFunc) {
	if err := r.Register(messageType, handlerName, h); err != nil {
		panic(err)
	}
}

// Resolve returns the handler name and function for a message type.
func (r *Registry) Resolve(messageType string) (string, HandlerFunc, bool) {
	reg, ok := r.handlers[messageType]
	if !ok {
		return "", nil, false
	}
	return reg.name, reg.handle, true
}

// Typed adapts a handler of a concrete envelope type into a HandlerFunc,
// decoding the JSON body first. A body that does not decode is a poison
// message and surfaces as a handler error.
func Typed[T any](handle func(ctx context.Context, env Envelope[T]) error) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var env Envelope[T]
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("failed to decode envelope: %w", err)
		}
		return handle(ctx, env)
	}
}
