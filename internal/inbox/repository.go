package inbox

import (
	"context"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
)

type Repository interface {
	// CreateIfAbsent inserts the message with status Received and reports
	// whether a row was actually inserted. A false return means another
	// delivery of the same message id got there first.
	CreateIfAbsent(ctx context.Context, q database.Querier, msg *Message) (bool, error)
	Get(ctx context.Context, q database.Querier, messageID uuid.UUID) (*Message, error)
	MarkProcessed(ctx context.Context, q database.Querier, messageID uuid.UUID) error
	MarkFailed(ctx context.Context, q database.Querier, messageID uuid.UUID, lastError string) error
}
