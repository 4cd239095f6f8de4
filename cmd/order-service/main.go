package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atakanatali/e-commerce/internal/config"
	"github.com/atakanatali/e-commerce/internal/database"
	"github.com/atakanatali/e-commerce/internal/inbox"
	inbox_postgres "github.com/atakanatali/e-commerce/internal/inbox/postgres"
	"github.com/atakanatali/e-commerce/internal/messaging"
	"github.com/atakanatali/e-commerce/internal/messaging/rabbitmq"
	app "github.com/atakanatali/e-commerce/internal/orders/app/orders"
	amqp_handler "github.com/atakanatali/e-commerce/internal/orders/handler/amqp"
	http_orders "github.com/atakanatali/e-commerce/internal/orders/handler/http/orders"
	order_postgres "github.com/atakanatali/e-commerce/internal/orders/repository/order_repo/postgres"
	"github.com/atakanatali/e-commerce/internal/outbox"
	outbox_postgres "github.com/atakanatali/e-commerce/internal/outbox/postgres"
)

const serviceName = "order-service"

func main() {
	cfg, err := config.Load(serviceName, "ORDERS", 8081)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Order Service starting...")

	sqlDB := connectDatabase(cfg, logger)
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Error("Error closing database connection", zap.Error(err))
		}
	}()
	runMigrations(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ, logger)
	if err != nil {
		logger.Fatal("Could not connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	topoCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open topology channel", zap.Error(err))
	}
	if err := rabbitmq.DeclareExchanges(topoCh); err != nil {
		logger.Fatal("Failed to declare exchanges", zap.Error(err))
	}
	if err := rabbitmq.DeclareConsumerTopology(topoCh, messaging.OrderServiceTopology()); err != nil {
		logger.Fatal("Failed to declare consumer topology", zap.Error(err))
	}
	topoCh.Close()

	db := database.Wrap(sqlDB)
	orderRepository := order_postgres.NewOrderRepository()
	outboxRepository := outbox_postgres.NewOutboxRepository()
	inboxRepository := inbox_postgres.NewInboxRepository()

	orderService := app.NewOrderService(db, orderRepository, outboxRepository,
		logger.With(zap.String("component", "OrderService")))

	brokerPublisher, err := rabbitmq.NewPublisher(conn, logger.With(zap.String("component", "RabbitMQPublisher")))
	if err != nil {
		logger.Fatal("Failed to create publisher", zap.Error(err))
	}
	defer brokerPublisher.Close()

	outboxPublisher := outbox.NewPublisher(db, outboxRepository, brokerPublisher, workerID(),
		logger.With(zap.String("component", "OutboxPublisher")))
	go outboxPublisher.Run(ctx)

	guard := inbox.NewGuard(db, inboxRepository, serviceName,
		logger.With(zap.String("component", "InboxGuard")))
	registry := amqp_handler.NewRegistry(orderService)
	consumer := rabbitmq.NewConsumer(conn, messaging.OrderStockEventsQueue, cfg.ConsumerPrefetch, registry, guard,
		logger.With(zap.String("component", "StockEventsConsumer")))
	go func() {
		if err := consumer.Consume(ctx); err != nil {
			logger.Fatal("Stock events consumer failed", zap.Error(err))
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	http_orders.RegisterRoutes(r, orderService, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	logger.Info("Order Service started", zap.Int("port", cfg.HTTPPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down Order Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("Order Service stopped.")
}

func connectDatabase(cfg *config.Config, logger *zap.Logger) *sql.DB {
	const maxRetries = 10
	const retryDelay = 5 * time.Second

	var db *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(cfg.DB)
		if err == nil {
			logger.Info("Connected to PostgreSQL")
			return db
		}
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	logger.Fatal("Could not connect to database after multiple retries", zap.Error(err))
	return nil
}

func runMigrations(cfg *config.Config, logger *zap.Logger) {
	m, err := migrate.New(cfg.MigrationsPath, cfg.DB.MigrationURL())
	if err != nil {
		logger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", serviceName, hostname)
}
