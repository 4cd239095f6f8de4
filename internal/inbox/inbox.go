package inbox

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReceived  Status = "Received"
	StatusProcessed Status = "Processed"
	StatusFailed    Status = "Failed"
)

// Message is one consumer's durable record of a delivery. There is at most
// one row per message id per consumer; Processed is terminal and
// short-circuits every later redelivery of that id.
type Message struct {
	MessageID     uuid.UUID
	MessageType   string
	CorrelationID uuid.UUID
	Consumer      string
	Handler       string
	ReceivedAt    time.Time
	Status        Status
	ProcessedAt   *time.Time
	LastError     string
}
