package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/messaging/rabbitmq"
)

// Config holds everything one service process needs. Each service loads it
// with its own env prefix so the three services can share a database host
// while keeping separate schemas and credentials.
type Config struct {
	ServiceName string

	DB       database.Config
	RabbitMQ rabbitmq.Config

	HTTPPort           int
	MigrationsPath     string
	ConsumerPrefetch   int
	OutboxPollInterval time.Duration
}

// Load reads configuration for a service. prefix scopes the database
// variables (e.g. "ORDERS" reads ORDERS_DB_HOST); broker variables are
// shared across services.
func Load(serviceName, prefix string, defaultHTTPPort int) (*Config, error) {
	cfg := &Config{ServiceName: serviceName}

	cfg.DB.Host = getEnvOrDefault(prefix+"_DB_HOST", "localhost")
	cfg.DB.User = getEnvOrDefault(prefix+"_DB_USER", "postgres")
	cfg.DB.Password = getEnvOrDefault(prefix+"_DB_PASSWORD", "postgres")
	cfg.DB.Name = getEnvOrDefault(prefix+"_DB_NAME", serviceName)
	cfg.DB.SSLMode = getEnvOrDefault(prefix+"_DB_SSLMODE", "disable")
	dbPort, err := getEnvAsInt(prefix+"_DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.DB.Port = dbPort

	cfg.RabbitMQ.Host = getEnvOrDefault("RABBITMQ_HOST", "localhost")
	cfg.RabbitMQ.User = getEnvOrDefault("RABBITMQ_USER", "guest")
	cfg.RabbitMQ.Password = getEnvOrDefault("RABBITMQ_PASSWORD", "guest")
	cfg.RabbitMQ.VirtualHost = getEnvOrDefault("RABBITMQ_VHOST", "/")
	cfg.RabbitMQ.ServiceName = serviceName
	mqPort, err := getEnvAsInt("RABBITMQ_PORT", 5672)
	if err != nil {
		return nil, err
	}
	cfg.RabbitMQ.Port = mqPort

	httpPort, err := getEnvAsInt(prefix+"_HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, err
	}
	cfg.HTTPPort = httpPort

	cfg.MigrationsPath = getEnvOrDefault(prefix+"_MIGRATIONS_PATH", "file://migrations/"+serviceName)

	prefetch, err := getEnvAsInt("CONSUMER_PREFETCH", 10)
	if err != nil {
		return nil, err
	}
	cfg.ConsumerPrefetch = prefetch

	pollInterval, err := getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.OutboxPollInterval = pollInterval

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
