package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/notifications/domain"
	"github.com/atakanatali/e-commerce/internal/notifications/repository/notification_repo"
)

type pgNotificationRepository struct{}

func NewNotificationRepository() notification_repo.NotificationRepository {
	return &pgNotificationRepository{}
}

func (r *pgNotificationRepository) CreateLog(ctx context.Context, q database.Querier, log *domain.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (id, order_id, channel, recipient, template, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		log.ID,
		log.OrderID,
		log.Channel,
		log.Recipient,
		log.Template,
		log.Status,
		log.CreatedAt,
		log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification log for order %s: %w", log.OrderID, err)
	}
	return nil
}

func (r *pgNotificationRepository) HasSent(ctx context.Context, q database.Querier, orderID uuid.UUID, channel domain.Channel, template string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_logs
			WHERE order_id = $1 AND channel = $2 AND template = $3 AND status = $4
		)
	`
	var exists bool
	err := q.QueryRowContext(ctx, query, orderID, channel, template, domain.NotificationStatusSent).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check sent notifications for order %s: %w", orderID, err)
	}
	return exists, nil
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, q database.Querier, id uuid.UUID, providerMessageID, providerResponseJSON string, at time.Time) error {
	query := `
		UPDATE notification_logs
		SET status = $2, provider_message_id = $3, provider_response_json = $4, sent_at = $5, updated_at = $5
		WHERE id = $1
	`
	res, err := q.ExecContext(ctx, query, id, domain.NotificationStatusSent, providerMessageID, providerResponseJSON, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification log %s sent: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for notification update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no notification log with id %s to mark sent", id)
	}
	return nil
}

func (r *pgNotificationRepository) MarkFailed(ctx context.Context, q database.Querier, id uuid.UUID, lastError string) error {
	query := `
		UPDATE notification_logs
		SET status = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := q.ExecContext(ctx, query, id, domain.NotificationStatusFailed, lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark notification log %s failed: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for notification update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no notification log with id %s to mark failed", id)
	}
	return nil
}
