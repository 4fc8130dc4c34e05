package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/marketplace-api/internal/inventory"
	"github.com/joao-fontenele/marketplace-api/internal/messaging"
	"github.com/joao-fontenele/marketplace-api/internal/orders"
	"github.com/joao-fontenele/marketplace-api/internal/telemetry"
	"github.com/joao-fontenele/marketplace-api/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := initTelemetry(ctx)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("failed to shut down telemetry", "error", err)
		}
	}()

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	brokers := strings.Split(kafkaBrokers, ",")
	topics := []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged}
	consumer := messaging.NewConsumer(brokers, "low-stock-worker", topics)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewLowStockHandler(inventory.NewRepository(db), logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting low stock worker", "brokers", brokers, "topics", topics)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

func initTelemetry(ctx context.Context) (func(context.Context) error, error) {
	tel, err := telemetry.Init(ctx, "marketplace-worker", "1.0.0")
	if err != nil {
		return nil, err
	}
	return tel.Shutdown, nil
}
