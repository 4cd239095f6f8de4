package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
)

// Guard makes message handling idempotent under at-least-once delivery. It
// records every delivery before the handler runs and short-circuits
// redeliveries of already-processed messages.
type Guard struct {
	db       database.DB
	repo     Repository
	consumer string
	logger   *zap.Logger
}

func NewGuard(db database.DB, repo Repository, consumer string, logger *zap.Logger) *Guard {
	return &Guard{db: db, repo: repo, consumer: consumer, logger: logger}
}

// EnsureTracked records the delivery if it is the first one and reports
// whether the message was already processed. alreadyProcessed == true means
// the caller must acknowledge without invoking the handler.
func (g *Guard) EnsureTracked(ctx context.Context, messageID uuid.UUID, messageType string, correlationID uuid.UUID, handler string) (*Message, bool, error) {
	msg := &Message{
		MessageID:     messageID,
		MessageType:   messageType,
		CorrelationID: correlationID,
		Consumer:      g.consumer,
		Handler:       handler,
		ReceivedAt:    time.Now().UTC(),
		Status:        StatusReceived,
	}

	inserted, err := g.repo.CreateIfAbsent(ctx, g.db, msg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to track inbox message %s: %w", messageID, err)
	}
	if inserted {
		return msg, false, nil
	}

	existing, err := g.repo.Get(ctx, g.db, messageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing inbox message %s: %w", messageID, err)
	}

	if existing.Status == StatusProcessed {
		g.logger.Info("Skipping already processed message",
			zap.String("message_id", messageID.String()),
			zap.String("message_type", messageType))
		return existing, true, nil
	}
	return existing, false, nil
}

// MarkProcessed finalizes a delivery after its handler committed.
func (g *Guard) MarkProcessed(ctx context.Context, messageID uuid.UUID) error {
	return g.repo.MarkProcessed(ctx, g.db, messageID)
}

// MarkFailed records a handler failure so the retry topology can redeliver.
func (g *Guard) MarkFailed(ctx context.Context, messageID uuid.UUID, handlerErr error) error {
	return g.repo.MarkFailed(ctx, g.db, messageID, handlerErr.Error())
}
