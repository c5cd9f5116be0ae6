package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostingDuration times ledger.PostingService.Post end to end,
	// including idempotency lookup, balance validation, and the
	// transactional write — the hot path spec §5's concurrency budget
	// is written against.
	PostingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ledgercore",
		Subsystem: "posting",
		Name:      "duration_seconds",
		Help:      "Time to post a voucher, from idempotency check through commit.",
		Buckets:   prometheus.DefBuckets,
	})

	// FIFOAllocationsTotal counts individual stock-batch allocations
	// consumed while fulfilling an outbound voucher line, labelled by
	// outcome so a sudden rise in "insufficient_stock" is visible
	// without grepping logs.
	FIFOAllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgercore",
		Subsystem: "inventory",
		Name:      "fifo_allocations_total",
		Help:      "FIFO stock batch allocations, labelled by outcome.",
	}, []string{"outcome"})

	// EventQueueDepth reports the number of PENDING+RETRY integration
	// events at last poll, the gauge an operator watches to see the
	// event worker falling behind.
	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgercore",
		Subsystem: "events",
		Name:      "queue_depth",
		Help:      "Integration events currently PENDING or RETRY.",
	})

	// EventDeliveriesTotal counts webhook delivery attempts by the
	// event worker, labelled by result (success, retry, failed).
	EventDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgercore",
		Subsystem: "events",
		Name:      "deliveries_total",
		Help:      "Event delivery attempts, labelled by result.",
	}, []string{"result"})
)

// ObservePosting records d against PostingDuration. A small helper so
// call sites can defer a single closure rather than repeating
// time.Since boilerplate.
func ObservePosting(start time.Time) {
	PostingDuration.Observe(time.Since(start).Seconds())
}
