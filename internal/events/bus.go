/*
Package events implements the outbound integration event bus (spec §4.12):
a durable, at-least-once notification channel fed by the posting and
reversal services inside their transactions and drained by a background
worker with exponential-backoff retry.

DESIGN:
  Producer and consumer are split the same way the teacher splits
  generic.Store from api.ReconciliationScheduler: posting/reversal only
  ever call ledger.Store.EnqueueIntegrationEvent inside the posting
  transaction (the event row commits or rolls back with the voucher, and
  a failure to write it aborts the posting), while the consumer side
  lives here as a standalone ticker-driven Worker with its own store
  contract, transport, and backoff schedule — none of which the posting
  path needs to know about.

SEE ALSO:
  - internal/ledger/posting.go: enqueues "voucher.posted" inside the posting transaction
  - internal/ledger/reversal.go: enqueues "voucher.reversed" inside the reversal transaction
*/
package events

import (
	"context"
	"time"

	"github.com/ledgercore/core/internal/ledger"
)

const (
	EventVoucherPosted   = "voucher.posted"
	EventVoucherReversed = "voucher.reversed"
)

// Store is the narrow persistence contract the drain worker needs: list
// events due for (re)delivery and record the outcome of an attempt.
// Deliberately smaller than ledger.Store — dispatch is not part of the
// posting transaction, so it gets its own interface rather than growing
// ledger.Store with dispatch-only methods. Every concrete ledger.Store
// implementation (memory, sqlite, postgres) also satisfies this one.
type Store interface {
	GetCompanyFeature(ctx context.Context, id ledger.CompanyID) (ledger.CompanyFeature, error)
	ListDueIntegrationEvents(ctx context.Context, now time.Time, limit int) ([]ledger.IntegrationEvent, error)
	MarkIntegrationEventResult(ctx context.Context, id ledger.IntegrationEventID, status ledger.EventStatus, attempts int, nextRetryAt time.Time, lastError string, processedAt *time.Time) error
}
