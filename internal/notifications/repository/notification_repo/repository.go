package notification_repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/notifications/domain"
)

type NotificationRepository interface {
	CreateLog(ctx context.Context, q database.Querier, log *domain.NotificationLog) error

	// HasSent reports whether a Sent log already exists for the key. This is
	// the dedup check for the notification side effect.
	HasSent(ctx context.Context, q database.Querier, orderID uuid.UUID, channel domain.Channel, template string) (bool, error)

	MarkSent(ctx context.Context, q database.Querier, id uuid.UUID, providerMessageID, providerResponseJSON string, at time.Time) error
	MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string) error
}
