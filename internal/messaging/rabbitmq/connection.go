package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	VirtualHost string
	ServiceName string
}

func (c Config) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.User, c.Password, c.Host, c.Port, c.VirtualHost)
}

const (
	connectMaxAttempts    = 10
	connectInitialBackoff = 1 * time.Second
	connectMaxBackoff     = 30 * time.Second
)

// Connect dials the broker with bounded exponential backoff. Exhausting all
// attempts is fatal for the caller; a service without a broker connection
// cannot make progress.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	backoff := connectInitialBackoff

	for attempt := 1; attempt <= connectMaxAttempts; attempt++ {
		conn, err := amqp.DialConfig(cfg.url(), amqp.Config{
			Properties: amqp.Table{"connection_name": cfg.ServiceName},
		})
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.String("host", cfg.Host), zap.Int("attempt", attempt))
			return conn, nil
		}

		lastErr = err
		logger.Warn("Failed to connect to RabbitMQ, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectMaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > connectMaxBackoff {
			backoff = connectMaxBackoff
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectMaxAttempts, lastErr)
}
