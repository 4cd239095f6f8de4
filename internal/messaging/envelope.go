package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire unit for every message on the broker. MessageID is the
// idempotency key: redelivery of the same logical emission carries the same
// MessageID, and a new emission always gets a fresh one.
type Envelope[T any] struct {
	MessageID     uuid.UUID  `json:"messageId"`
	MessageType   string     `json:"messageType"`
	CorrelationID uuid.UUID  `json:"correlationId"`
	CausationID   *uuid.UUID `json:"causationId"`
	OccurredAtUtc time.Time  `json:"occurredAtUtc"`
	Producer      string     `json:"producer"`
	Version       int        `json:"version"`
	Payload       T          `json:"payload"`
}

// NewEnvelope builds an envelope with a fresh message id. causationID is the
// id of the message that triggered this emission, nil for saga entry points.
func NewEnvelope[T any](messageType string, correlationID uuid.UUID, causationID *uuid.UUID, producer string, payload T) Envelope[T] {
	return Envelope[T]{
		MessageID:     uuid.New(),
		MessageType:   messageType,
		CorrelationID: correlationID,
		CausationID:   causationID,
		OccurredAtUtc: time.Now().UTC(),
		Producer:      producer,
		Version:       1,
		Payload:       payload,
	}
}

// PublishProperties is the transport metadata set on every publish, mirroring
// the envelope so consumers can route by the broker's Type property without
// decoding the body.
type PublishProperties struct {
	MessageID     string
	MessageType   string
	CorrelationID string
	CausationID   string // empty when the message has no cause
	OccurredAtUtc time.Time
	Producer      string
	Version       int
}
