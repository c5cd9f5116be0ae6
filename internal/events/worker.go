package events

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/observability"
)

// retrySchedule is the capped exponential series from spec §4.12: 30s,
// 60s, 120s, 300s, 600s. Each step is expressed as a cenkalti/backoff
// ConstantBackOff rather than a bare duration table, so the schedule is
// still produced through the backoff library's NextBackOff() contract
// (a future change to jitter or randomize a step only touches the step's
// BackOff value, not callers).
var retrySchedule = []backoff.BackOff{
	backoff.NewConstantBackOff(30 * time.Second),
	backoff.NewConstantBackOff(60 * time.Second),
	backoff.NewConstantBackOff(120 * time.Second),
	backoff.NewConstantBackOff(300 * time.Second),
	backoff.NewConstantBackOff(600 * time.Second),
}

func backoffFor(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return retrySchedule[idx].NextBackOff()
}

// MaxAttempts is the default ceiling after which an event becomes FAILED
// instead of RETRY, matching the length of the retry schedule above.
const MaxAttempts = len(retrySchedule)

// Worker drains due IntegrationEvent rows on a ticker, modeled on the
// teacher's api.ReconciliationScheduler: a ticker plus a stop channel and
// WaitGroup guarded by a mutex so Start/Stop are safe to call once each
// from any goroutine.
type Worker struct {
	Store           Store
	WebhookTransport Transport
	FallbackTransport Transport
	PollInterval    time.Duration
	DeliveryTimeout time.Duration
	BatchSize       int
	Log             *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewWorker builds a Worker with the spec's defaults: a 10s poll interval,
// a 10s per-delivery timeout independent of the posting path (§5), and a
// batch size of 50 events per tick.
func NewWorker(store Store, webhook Transport, fallback Transport, log *zap.Logger) *Worker {
	return &Worker{
		Store:             store,
		WebhookTransport:  webhook,
		FallbackTransport: fallback,
		PollInterval:      10 * time.Second,
		DeliveryTimeout:   10 * time.Second,
		BatchSize:         50,
		Log:               log,
		stop:              make(chan struct{}),
	}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ticker = time.NewTicker(w.PollInterval)
	w.wg.Add(1)
	go w.run()
	w.Log.Info("event worker started", zap.Duration("poll_interval", w.PollInterval))
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ticker == nil {
		return
	}
	w.ticker.Stop()
	close(w.stop)
	w.wg.Wait()
	w.Log.Info("event worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	w.drain()
	for {
		select {
		case <-w.ticker.C:
			w.drain()
		case <-w.stop:
			return
		}
	}
}

// drain picks due events ordered by next_retry_at, moves each to
// PROCESSING, delegates delivery to the transport for the event's
// company, and records the outcome — mirroring the consumer contract in
// spec §4.12 exactly.
func (w *Worker) drain() {
	ctx := context.Background()
	now := time.Now().UTC()

	due, err := w.Store.ListDueIntegrationEvents(ctx, now, w.BatchSize)
	if err != nil {
		w.Log.Error("list due integration events", zap.Error(err))
		return
	}
	observability.EventQueueDepth.Set(float64(len(due)))

	for _, e := range due {
		w.deliver(ctx, e)
	}
}

func (w *Worker) deliver(ctx context.Context, e ledger.IntegrationEvent) {
	feature, err := w.Store.GetCompanyFeature(ctx, e.CompanyID)
	if err != nil {
		w.Log.Error("load company feature for event delivery",
			zap.String("event_id", string(e.ID)), zap.Error(err))
		return
	}

	transport := w.FallbackTransport
	webhookURL := ""
	if feature.WebhookURL != "" {
		transport = w.WebhookTransport
		webhookURL = feature.WebhookURL
	}

	if markErr := w.Store.MarkIntegrationEventResult(ctx, e.ID, ledger.EventProcessing, e.Attempts, e.NextRetryAt, e.LastError, nil); markErr != nil {
		w.Log.Error("mark integration event processing", zap.String("event_id", string(e.ID)), zap.Error(markErr))
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, w.DeliveryTimeout)
	err = transport.Deliver(deliverCtx, e.EventType, e.Payload, webhookURL)
	cancel()

	now := time.Now().UTC()
	if err == nil {
		observability.EventDeliveriesTotal.WithLabelValues("success").Inc()
		if markErr := w.Store.MarkIntegrationEventResult(ctx, e.ID, ledger.EventSuccess, e.Attempts+1, now, "", &now); markErr != nil {
			w.Log.Error("mark integration event success", zap.String("event_id", string(e.ID)), zap.Error(markErr))
		}
		return
	}

	attempts := e.Attempts + 1
	maxAttempts := e.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = MaxAttempts
	}

	if !isRetryableDelivery(err) || attempts >= maxAttempts {
		observability.EventDeliveriesTotal.WithLabelValues("failed").Inc()
		if markErr := w.Store.MarkIntegrationEventResult(ctx, e.ID, ledger.EventFailed, attempts, now, err.Error(), nil); markErr != nil {
			w.Log.Error("mark integration event failed", zap.String("event_id", string(e.ID)), zap.Error(markErr))
		}
		w.Log.Warn("integration event delivery failed permanently",
			zap.String("event_id", string(e.ID)), zap.String("event_type", e.EventType), zap.Error(err))
		return
	}

	observability.EventDeliveriesTotal.WithLabelValues("retry").Inc()
	nextRetryAt := now.Add(backoffFor(attempts))
	if markErr := w.Store.MarkIntegrationEventResult(ctx, e.ID, ledger.EventRetry, attempts, nextRetryAt, err.Error(), nil); markErr != nil {
		w.Log.Error("mark integration event retry", zap.String("event_id", string(e.ID)), zap.Error(markErr))
	}
	w.Log.Info("integration event delivery scheduled for retry",
		zap.String("event_id", string(e.ID)), zap.Time("next_retry_at", nextRetryAt), zap.Error(err))
}
