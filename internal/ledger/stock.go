package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/observability"
)

// StockAllocation is one FIFO-drawn slice of an outbound movement,
// generalizing the teacher's ConsumptionDistributor.Allocations
// (generic/assignment.go) from policy buckets to stock batches: drain
// the oldest open batch first, then the next, until the requested
// quantity is satisfied or supply runs out.
type StockAllocation struct {
	BatchID  StockBatchID
	Quantity money.Money
	Rate     money.Money
}

// StockAllocationResult mirrors the teacher's ConsumptionDistribution
// shape (IsSatisfiable/Shortfall/Allocations) so the posting service can
// make the same "all-or-nothing" decision the teacher's consumption path
// makes: spec §4.4 never fabricates stock, so a shortfall always fails
// the whole posting rather than partially allocating it.
type StockAllocationResult struct {
	IsSatisfiable bool
	Shortfall     money.Money
	Allocations   []StockAllocation
}

// AllocateFIFO draws `quantity` units of item out of godown across its
// open batches, oldest first by batch CreatedAt (spec §4.4). It performs
// no writes; callers apply the returned allocations as StockMovement rows
// and StockBalance decrements inside the same transaction that locked the
// batches via ListOpenStockBatchesFIFO.
func AllocateFIFO(ctx context.Context, s Store, company CompanyID, item StockItemID, godown GodownID, quantity money.Money) (StockAllocationResult, error) {
	if quantity.LessThanOrEqual(money.Zero) {
		return StockAllocationResult{}, fmt.Errorf("ledger: AllocateFIFO quantity must be positive, got %s", quantity)
	}

	batches, err := s.ListOpenStockBatchesFIFO(ctx, company, item, godown)
	if err != nil {
		return StockAllocationResult{}, fmt.Errorf("list open batches: %w", err)
	}

	remaining := quantity
	var allocations []StockAllocation
	var available money.Money

	for _, bb := range batches {
		available = available.Add(bb.QuantityOnHand)
		if remaining.IsZero() {
			continue
		}
		if bb.QuantityOnHand.LessThanOrEqual(money.Zero) {
			continue
		}
		take := bb.QuantityOnHand
		if take.GreaterThan(remaining) {
			take = remaining
		}
		allocations = append(allocations, StockAllocation{
			BatchID:  bb.Batch.ID,
			Quantity: take,
		})
		remaining = remaining.Sub(take)
	}

	if !remaining.IsZero() {
		observability.FIFOAllocationsTotal.WithLabelValues("insufficient_stock").Inc()
		return StockAllocationResult{
			IsSatisfiable: false,
			Shortfall:     remaining,
			Allocations:   allocations,
		}, nil
	}

	observability.FIFOAllocationsTotal.WithLabelValues("satisfied").Inc()
	return StockAllocationResult{
		IsSatisfiable: true,
		Shortfall:     money.Zero,
		Allocations:   allocations,
	}, nil
}

// ApplyOutboundAllocation turns a satisfiable StockAllocationResult into
// StockMovement rows and the corresponding StockBalance decrements, all
// within the caller's transaction. It is the write-side counterpart to
// AllocateFIFO's pure read-only planning, split the same way the
// teacher's Distribute (plan) and the request service's actual consume
// (write) are split (generic/assignment.go, generic/request.go).
func ApplyOutboundAllocation(ctx context.Context, s Store, company CompanyID, voucher VoucherID, item StockItemID, godown GodownID, rate money.Money, result StockAllocationResult, movedAt func() time.Time) error {
	if !result.IsSatisfiable {
		var allocated []money.Money
		for _, a := range result.Allocations {
			allocated = append(allocated, a.Quantity)
		}
		return &InsufficientStockError{
			ItemID:    item,
			GodownID:  godown,
			Requested: money.Sum(allocatedPlusShortfall(result)).String(),
			Available: money.Sum(allocated).String(),
		}
	}

	for _, a := range result.Allocations {
		bal, err := s.GetStockBalance(ctx, StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: a.BatchID})
		if err != nil {
			return fmt.Errorf("load stock balance for batch %s: %w", a.BatchID, err)
		}
		newQty := bal.QuantityOnHand.Sub(a.Quantity)
		if newQty.IsNegative() {
			return fmt.Errorf("ledger: FIFO allocation would drive batch %s negative (invariant violated)", a.BatchID)
		}

		batchID := a.BatchID
		m := StockMovement{
			CompanyID:    company,
			VoucherID:    voucher,
			ItemID:       item,
			FromGodownID: &godown,
			BatchID:      &batchID,
			Quantity:     a.Quantity,
			Rate:         rate,
			MovementDate: movedAt(),
		}
		if err := s.InsertStockMovement(ctx, m); err != nil {
			return fmt.Errorf("insert stock movement: %w", err)
		}
		bal.QuantityOnHand = newQty
		if err := s.UpsertStockBalance(ctx, bal); err != nil {
			return fmt.Errorf("upsert stock balance: %w", err)
		}
	}
	return nil
}

func allocatedPlusShortfall(r StockAllocationResult) []money.Money {
	var amts []money.Money
	for _, a := range r.Allocations {
		amts = append(amts, a.Quantity)
	}
	amts = append(amts, r.Shortfall)
	return amts
}
