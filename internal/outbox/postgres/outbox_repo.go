package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/outbox"
)

type outboxRepository struct{}

func NewOutboxRepository() outbox.Repository {
	return &outboxRepository{}
}

func (r *outboxRepository) Add(ctx context.Context, q database.Querier, msg *outbox.Message) error {
	query := `
		INSERT INTO outbox_messages (id, message_id, message_type, exchange, routing_key, correlation_id, causation_id, occurred_at, producer, version, payload_json, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0)
	`
	_, err := q.ExecContext(ctx, query,
		msg.ID,
		msg.MessageID,
		msg.MessageType,
		msg.Exchange,
		msg.RoutingKey,
		msg.CorrelationID,
		causationValue(msg.CausationID),
		msg.OccurredAt,
		msg.Producer,
		msg.Version,
		msg.PayloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

func (r *outboxRepository) LeaseBatch(ctx context.Context, q database.Querier, limit int, now time.Time, leaseFor time.Duration, lockedBy string) ([]outbox.Message, error) {
	query := `
		UPDATE outbox_messages
		SET locked_until = $1, locked_by = $2
		WHERE id IN (
			SELECT id
			FROM outbox_messages
			WHERE processed_at IS NULL AND (locked_until IS NULL OR locked_until < $3)
			ORDER BY occurred_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, message_id, message_type, exchange, routing_key, correlation_id, causation_id, occurred_at, producer, version, payload_json, processed_at, retry_count, last_error, locked_until, locked_by
	`
	rows, err := q.QueryContext(ctx, query, now.Add(leaseFor), lockedBy, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease outbox batch: %w", err)
	}
	defer rows.Close()

	var messages []outbox.Message
	for rows.Next() {
		msg := outbox.Message{}
		var causationID uuid.NullUUID
		var processedAt, lockedUntil sql.NullTime
		var lastError, lockedByCol sql.NullString
		err := rows.Scan(
			&msg.ID,
			&msg.MessageID,
			&msg.MessageType,
			&msg.Exchange,
			&msg.RoutingKey,
			&msg.CorrelationID,
			&causationID,
			&msg.OccurredAt,
			&msg.Producer,
			&msg.Version,
			&msg.PayloadJSON,
			&processedAt,
			&msg.RetryCount,
			&lastError,
			&lockedUntil,
			&lockedByCol,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		if causationID.Valid {
			id := causationID.UUID
			msg.CausationID = &id
		}
		if processedAt.Valid {
			msg.ProcessedAt = &processedAt.Time
		}
		if lockedUntil.Valid {
			msg.LockedUntil = &lockedUntil.Time
		}
		msg.LastError = lastError.String
		msg.LockedBy = lockedByCol.String
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}
	return messages, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, q database.Querier, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_messages
		SET processed_at = $1, locked_until = NULL, locked_by = NULL
		WHERE id = $2
	`
	res, err := q.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s processed: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no outbox message with id %s to mark processed", id)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string, retryAt time.Time) error {
	query := `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1, last_error = $1, locked_until = $2, locked_by = NULL
		WHERE id = $3
	`
	res, err := q.ExecContext(ctx, query, lastError, retryAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s failed: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no outbox message with id %s to mark failed", id)
	}
	return nil
}

func causationValue(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
