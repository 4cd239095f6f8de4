package domain

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSms   Channel = "sms"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "Pending"
	NotificationStatusSent    NotificationStatus = "Sent"
	NotificationStatusFailed  NotificationStatus = "Failed"
)

// NotificationLog records one delivery attempt per (order, channel, template).
// A Sent row is the dedup guard: the side effect already happened and must
// not be repeated for a redelivered trigger.
type NotificationLog struct {
	ID                   uuid.UUID
	OrderID              uuid.UUID
	Channel              Channel
	Recipient            string
	Template             string
	Status               NotificationStatus
	ProviderMessageID    string
	ProviderResponseJSON string
	LastError            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	SentAt               *time.Time
}

func NewNotificationLog(orderID uuid.UUID, channel Channel, recipient, template string) *NotificationLog {
	now := time.Now().UTC()
	return &NotificationLog{
		ID:        uuid.New(),
		OrderID:   orderID,
		Channel:   channel,
		Recipient: recipient,
		Template:  template,
		Status:    NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
