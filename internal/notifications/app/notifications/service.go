package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging"
	"github.com/atakanatali/e-commerce/internal/notifications/domain"
	"github.com/atakanatali/e-commerce/internal/notifications/provider"
	"github.com/atakanatali/e-commerce/internal/notifications/repository/notification_repo"
	"github.com/atakanatali/e-commerce/internal/outbox"
)

const (
	producer = "notification-service"

	TemplateOrderConfirmedEmail = "order-confirmed-email"
	TemplateOrderConfirmedSms   = "order-confirmed-sms"
)

type NotificationService interface {
	HandleOrderConfirmed(ctx context.Context, env messaging.Envelope[messaging.OrderConfirmedEvent]) error
	HandleSendEmail(ctx context.Context, env messaging.Envelope[messaging.SendEmailCommand]) error
	HandleSendSms(ctx context.Context, env messaging.Envelope[messaging.SendSmsCommand]) error
}

type notificationService struct {
	db               database.DB
	notificationRepo notification_repo.NotificationRepository
	outboxRepo       outbox.Repository
	provider         provider.Provider
	logger           *zap.Logger
}

func NewNotificationService(db database.DB, notificationRepo notification_repo.NotificationRepository, outboxRepo outbox.Repository, p provider.Provider, logger *zap.Logger) NotificationService {
	return &notificationService{
		db:               db,
		notificationRepo: notificationRepo,
		outboxRepo:       outboxRepo,
		provider:         p,
		logger:           logger,
	}
}

// HandleOrderConfirmed notifies the customer on every channel. The Sent log
// per (order, channel, template) is the dedup guard, so a redelivered
// confirmation never sends twice.
func (s *notificationService) HandleOrderConfirmed(ctx context.Context, env messaging.Envelope[messaging.OrderConfirmedEvent]) error {
	orderID := env.Payload.OrderID
	userID := env.Payload.UserID
	variables := map[string]string{
		"orderId": orderID.String(),
		"total":   fmt.Sprintf("%.2f", env.Payload.Total),
	}

	sends := []struct {
		channel   domain.Channel
		recipient string
		template  string
	}{
		{domain.ChannelEmail, emailAddressFor(userID), TemplateOrderConfirmedEmail},
		{domain.ChannelSms, phoneNumberFor(userID), TemplateOrderConfirmedSms},
	}

	for _, send := range sends {
		if err := s.sendOne(ctx, orderID, send.channel, send.recipient, send.template, variables, env.CorrelationID, env.MessageID); err != nil {
			return err
		}
	}
	return nil
}

func (s *notificationService) HandleSendEmail(ctx context.Context, env messaging.Envelope[messaging.SendEmailCommand]) error {
	cmd := env.Payload
	return s.sendOne(ctx, cmd.OrderID, domain.ChannelEmail, cmd.To, cmd.Template, cmd.Variables, env.CorrelationID, env.MessageID)
}

func (s *notificationService) HandleSendSms(ctx context.Context, env messaging.Envelope[messaging.SendSmsCommand]) error {
	cmd := env.Payload
	return s.sendOne(ctx, cmd.OrderID, domain.ChannelSms, cmd.To, cmd.Template, cmd.Variables, env.CorrelationID, env.MessageID)
}

// sendOne performs a single deduplicated delivery. The Pending row commits
// before the provider call; the outcome and its event commit together after.
func (s *notificationService) sendOne(ctx context.Context, orderID uuid.UUID, channel domain.Channel, recipient, template string, variables map[string]string, correlationID, causationID uuid.UUID) error {
	alreadySent, err := s.notificationRepo.HasSent(ctx, s.db, orderID, channel, template)
	if err != nil {
		return err
	}
	if alreadySent {
		s.logger.Info("Notification already sent, skipping",
			zap.String("order_id", orderID.String()),
			zap.String("channel", string(channel)),
			zap.String("template", template))
		return nil
	}

	log := domain.NewNotificationLog(orderID, channel, recipient, template)
	if err := s.notificationRepo.CreateLog(ctx, s.db, log); err != nil {
		return err
	}

	result, sendErr := s.provider.Send(ctx, channel, recipient, template, variables)
	if sendErr != nil {
		return s.recordFailure(ctx, log, sendErr, correlationID, causationID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.notificationRepo.MarkSent(ctx, tx, log.ID, result.ProviderMessageID, result.ResponseJSON, time.Now().UTC()); err != nil {
		return err
	}

	event := messaging.NotificationSentEvent{OrderID: orderID, Channel: string(channel), To: recipient}
	env := messaging.NewEnvelope(messaging.MessageTypeNotificationSent, correlationID, &causationID, producer, event)
	msg, err := outbox.NewMessage(env, messaging.EventsExchange, messaging.RoutingKeyNotificationSent)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage notification sent event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notification outcome: %w", err)
	}

	s.logger.Info("Notification sent",
		zap.String("order_id", orderID.String()),
		zap.String("channel", string(channel)),
		zap.String("provider_message_id", result.ProviderMessageID))
	return nil
}

// recordFailure marks the log Failed and emits the failure event. The error
// is not returned to the consumer loop: a rejected send is a recorded
// outcome, not a reason to cycle the trigger through the retry queue.
func (s *notificationService) recordFailure(ctx context.Context, log *domain.NotificationLog, sendErr error, correlationID, causationID uuid.UUID) error {
	s.logger.Error("Notification provider rejected send",
		zap.String("order_id", log.OrderID.String()),
		zap.String("channel", string(log.Channel)),
		zap.Error(sendErr))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.notificationRepo.MarkFailed(ctx, tx, log.ID, sendErr.Error()); err != nil {
		return err
	}

	event := messaging.NotificationFailedEvent{
		OrderID: log.OrderID,
		Channel: string(log.Channel),
		To:      log.Recipient,
		Error:   sendErr.Error(),
	}
	env := messaging.NewEnvelope(messaging.MessageTypeNotificationFailed, correlationID, &causationID, producer, event)
	msg, err := outbox.NewMessage(env, messaging.EventsExchange, messaging.RoutingKeyNotificationFailed)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Add(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage notification failed event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notification failure: %w", err)
	}
	return nil
}

// Delivery targets come from the user directory in a full deployment; here
// they are derived addresses the simulated provider accepts.
func emailAddressFor(userID uuid.UUID) string {
	return fmt.Sprintf("%s@customers.example.com", userID)
}

func phoneNumberFor(userID uuid.UUID) string {
	return fmt.Sprintf("+0%s", userID.String()[:8])
}
