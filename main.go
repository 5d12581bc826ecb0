package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/config"
	delivery "github.com/egannguyen/go-kafka-ecommerce/storefront/internal/delivery/http"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/idempotency"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/kafka"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/rabbitmq"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/watermill"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/metrics"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/postgres"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/service"
)

const notificationsGroup = "storefront-notifications"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		slog.Error("Failed to configure logger", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("Storefront stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// --- Storage ---
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	catalogSvc := service.NewCatalogService(store)
	if cfg.SeedCatalog {
		if err := catalogSvc.Seed(ctx); err != nil {
			return err
		}
	}

	// --- Messaging ---
	broker, err := openBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	// --- Idempotency ---
	idem, closeIdem, err := openIdempotency(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIdem()

	// --- Services ---
	orderSvc := service.NewOrderService(store)
	relay := service.NewOutboxRelay(store, broker, cfg.OutboxInterval, cfg.OutboxBatch)

	// --- HTTP API ---
	serverMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer)
	handler := delivery.NewHandler(delivery.Services{
		Catalog:  catalogSvc,
		Carts:    service.NewCartService(store),
		Checkout: service.NewCheckoutService(store),
		Orders:   orderSvc,
	}, idem, serverMetrics, delivery.Options{
		AdminToken:      cfg.AdminToken,
		CheckoutTimeout: cfg.CheckoutTimeout,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           delivery.EnableCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// --- Start everything ---
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	// Outbox → broker
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()

	// Consumer: orders.placed → OrderService (notification log)
	go func() {
		defer wg.Done()
		broker.Consume(ctx, entity.TopicOrderPlaced, notificationsGroup, func(ctx context.Context, payload []byte) error {
			var event entity.OrderPlaced
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return orderSvc.HandleOrderPlaced(ctx, &event)
		})
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("🚀 HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	slog.Info("🔄 Outbox relay and consumers started", "messaging", cfg.MessagingDriver, "storage", cfg.StorageDriver)

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.CheckoutTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down HTTP server", "err", err)
	}
	cancel()
	wg.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, func(), error) {
	if cfg.StorageDriver == "memory" {
		slog.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.InitDB(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}
	return postgres.NewStore(db), func() { closeDB(db) }, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "err", err)
	}
}

func openBroker(cfg config.Config, logger *slog.Logger) (messaging.Broker, error) {
	switch cfg.MessagingDriver {
	case "kafka":
		return kafka.NewKafkaBroker(cfg.KafkaBrokers), nil
	case "watermill":
		return watermill.NewKafkaBroker(cfg.KafkaBrokers, "storefront", logger)
	case "rabbitmq":
		return rabbitmq.NewRabbitBroker(cfg.RabbitMQURI)
	default:
		slog.Info("No external broker configured; events are delivered in-process")
		return watermill.NewGoChannelBroker(logger), nil
	}
}

func openIdempotency(ctx context.Context, cfg config.Config) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}, nil
	}
	client, err := idempotency.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			slog.Error("Failed to close redis client", "err", err)
		}
	}
	return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), closeClient, nil
}
