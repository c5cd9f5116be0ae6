/*
main.go - Application entry point.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env honored if present)
  2. Build the structured logger
  3. Open the configured store (sqlite or postgres)
  4. Wire the domain services, the aging cache, and the event worker
  5. Start the HTTP server and the event worker
  6. On SIGINT/SIGTERM, stop accepting connections, drain in-flight
     requests, stop the event worker, close the store

SEE ALSO:
  - internal/httpapi/server.go: router configuration
  - internal/httpapi/handlers.go: HTTP handlers
  - internal/config/config.go: environment-driven configuration
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/cache"
	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/config"
	"github.com/ledgercore/core/internal/events"
	"github.com/ledgercore/core/internal/httpapi"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/observability"
	"github.com/ledgercore/core/internal/store/postgres"
	"github.com/ledgercore/core/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	clk := clock.SystemClock{}
	posting := ledger.NewPostingService(store, clk, log)
	invoices := ledger.NewInvoiceService(store, clk, posting, log)
	payments := ledger.NewPaymentService(store, clk, posting, log)
	orders := ledger.NewOrderService(store, clk, log)
	reversals := ledger.NewReversalService(store, clk, log)
	approvals := ledger.NewApprovalGate(store, clk, log)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("parse redis url", zap.Error(err))
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
	}
	agingCache := cache.NewAgingCache(redisClient)

	handler := httpapi.NewHandler(store, posting, invoices, payments, orders, reversals, approvals, agingCache, clk)
	router := httpapi.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	worker := events.NewWorker(store, events.NewWebhookTransport(cfg.DefaultWebhookTimeout), events.NewLoggingTransport(log), log)
	worker.PollInterval = cfg.EventWorkerPollInterval
	worker.BatchSize = cfg.EventWorkerBatchSize
	worker.Start()
	defer worker.Stop()

	go func() {
		log.Info("server starting", zap.Int("port", cfg.HTTPPort), zap.String("store_backend", cfg.StoreBackend()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// openStore picks sqlite or postgres per cfg.StoreBackend() and returns a
// close func that never errors on nil, so main's defer is unconditional.
func openStore(ctx context.Context, cfg config.Config) (interface {
	ledger.Store
	events.Store
}, func(), error) {
	switch cfg.StoreBackend() {
	case "postgres":
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres schema: %w", err)
		}
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() { store.Close() }, nil
	}
}
