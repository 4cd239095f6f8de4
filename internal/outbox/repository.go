package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
)

type Repository interface {
	// Add stages a message on the caller's transaction. No broker I/O happens
	// here; the row commits or rolls back together with the business write.
	Add(ctx context.Context, q database.Querier, msg *Message) error

	// LeaseBatch claims up to limit pending rows whose lease is absent or
	// expired, stamps them with lockedBy until now+leaseFor, and returns
	// them ordered by occurrence time.
	LeaseBatch(ctx context.Context, q database.Querier, limit int, now time.Time, leaseFor time.Duration, lockedBy string) ([]Message, error)

	// MarkProcessed finalizes a published row and clears its lease.
	MarkProcessed(ctx context.Context, q database.Querier, id uuid.UUID, at time.Time) error

	// MarkFailed records a publish failure and shortens the lease to retryAt
	// so the row is retried sooner than a full lease window.
	MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string, retryAt time.Time) error
}
