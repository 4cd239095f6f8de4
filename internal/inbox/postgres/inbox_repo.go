package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/inbox"
)

type inboxRepository struct{}

func NewInboxRepository() inbox.Repository {
	return &inboxRepository{}
}

func (r *inboxRepository) CreateIfAbsent(ctx context.Context, q database.Querier, msg *inbox.Message) (bool, error) {
	query := `
		INSERT INTO inbox_messages (message_id, message_type, correlation_id, consumer, handler, received_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING
	`
	res, err := q.ExecContext(ctx, query,
		msg.MessageID,
		msg.MessageType,
		msg.CorrelationID,
		msg.Consumer,
		msg.Handler,
		msg.ReceivedAt,
		msg.Status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create inbox message: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for inbox insert: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *inboxRepository) Get(ctx context.Context, q database.Querier, messageID uuid.UUID) (*inbox.Message, error) {
	query := `
		SELECT message_id, message_type, correlation_id, consumer, handler, received_at, status, processed_at, last_error
		FROM inbox_messages
		WHERE message_id = $1
	`
	msg := &inbox.Message{}
	var processedAt sql.NullTime
	var lastError sql.NullString
	err := q.QueryRowContext(ctx, query, messageID).Scan(
		&msg.MessageID,
		&msg.MessageType,
		&msg.CorrelationID,
		&msg.Consumer,
		&msg.Handler,
		&msg.ReceivedAt,
		&msg.Status,
		&processedAt,
		&lastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get inbox message %s: %w", messageID, err)
	}
	if processedAt.Valid {
		msg.ProcessedAt = &processedAt.Time
	}
	msg.LastError = lastError.String
	return msg, nil
}

func (r *inboxRepository) MarkProcessed(ctx context.Context, q database.Querier, messageID uuid.UUID) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, processed_at = $2, last_error = NULL
		WHERE message_id = $3
	`
	res, err := q.ExecContext(ctx, query, inbox.StatusProcessed, time.Now().UTC(), messageID)
	if err != nil {
		return fmt.Errorf("failed to mark inbox message %s processed: %w", messageID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message %s not found for status update", messageID)
	}
	return nil
}

func (r *inboxRepository) MarkFailed(ctx context.Context, q database.Querier, messageID uuid.UUID, lastError string) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, last_error = $2
		WHERE message_id = $3
	`
	res, err := q.ExecContext(ctx, query, inbox.StatusFailed, lastError, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark inbox message %s failed: %w", messageID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message %s not found for status update", messageID)
	}
	return nil
}
