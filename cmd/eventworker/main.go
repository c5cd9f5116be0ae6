/*
main.go - standalone event-worker entry point.

Runs the outbound integration event drain (internal/events.Worker)
without the HTTP server attached, for deployments that scale delivery
throughput independently of the API (spec §4.12 calls out retry/backoff
as a process concern separate from posting).
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/config"
	"github.com/ledgercore/core/internal/events"
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

	worker := events.NewWorker(store, events.NewWebhookTransport(cfg.DefaultWebhookTimeout), events.NewLoggingTransport(log), log)
	worker.PollInterval = cfg.EventWorkerPollInterval
	worker.BatchSize = cfg.EventWorkerBatchSize
	worker.Start()

	log.Info("event worker running", zap.Duration("poll_interval", worker.PollInterval), zap.Int("batch_size", worker.BatchSize))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("stopping event worker")
	worker.Stop()
	log.Info("event worker stopped")
}

func openStore(ctx context.Context, cfg config.Config) (interface {
	ledger.Store
	events.Store
}, func(), error) {
	switch cfg.StoreBackend() {
	case "postgres":
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
