package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/messaging"
)

// Message is one row of the transactional outbox. It is created in the same
// transaction as the domain mutation that caused it, mutated only by the
// background publisher, and never deleted.
type Message struct {
	ID            uuid.UUID
	MessageID     uuid.UUID
	MessageType   string
	Exchange      string
	RoutingKey    string
	CorrelationID uuid.UUID
	CausationID   *uuid.UUID
	OccurredAt    time.Time
	Producer      string
	Version       int
	PayloadJSON   []byte
	ProcessedAt   *time.Time
	RetryCount    int
	LastError     string
	LockedUntil   *time.Time
	LockedBy      string
}

// NewMessage serializes an envelope into an outbox row targeting the given
// exchange and routing key.
func NewMessage[T any](env messaging.Envelope[T], exchange, routingKey string) (*Message, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s envelope: %w", env.MessageType, err)
	}
	return &Message{
		ID:            uuid.New(),
		MessageID:     env.MessageID,
		MessageType:   env.MessageType,
		Exchange:      exchange,
		RoutingKey:    routingKey,
		CorrelationID: env.CorrelationID,
		CausationID:   env.CausationID,
		OccurredAt:    env.OccurredAtUtc,
		Producer:      env.Producer,
		Version:       env.Version,
		PayloadJSON:   payload,
	}, nil
}
