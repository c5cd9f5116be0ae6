package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/store/memory"
)

func TestAllocateFIFODrainsOldestBatchFirst(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	item := ledger.StockItemID("widget")
	godown := ledger.GodownID("main")

	oldBatch := ledger.StockBatchID("batch-old")
	newBatch := ledger.StockBatchID("batch-new")
	store.SeedStockBatch(
		ledger.StockBatch{ID: oldBatch, CompanyID: company, ItemID: item, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		ledger.StockBalance{Key: ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: oldBatch}, QuantityOnHand: money.NewFromFloat(5)},
	)
	store.SeedStockBatch(
		ledger.StockBatch{ID: newBatch, CompanyID: company, ItemID: item, CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		ledger.StockBalance{Key: ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: newBatch}, QuantityOnHand: money.NewFromFloat(10)},
	)

	result, err := ledger.AllocateFIFO(context.Background(), store, company, item, godown, money.NewFromFloat(8))
	require.NoError(t, err)
	require.True(t, result.IsSatisfiable)
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, oldBatch, result.Allocations[0].BatchID)
	assert.True(t, result.Allocations[0].Quantity.Equal(money.NewFromFloat(5)))
	assert.Equal(t, newBatch, result.Allocations[1].BatchID)
	assert.True(t, result.Allocations[1].Quantity.Equal(money.NewFromFloat(3)))
}

func TestAllocateFIFOShortfallNeverFabricatesStock(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	item := ledger.StockItemID("widget")
	godown := ledger.GodownID("main")

	batch := ledger.StockBatchID("batch-1")
	store.SeedStockBatch(
		ledger.StockBatch{ID: batch, CompanyID: company, ItemID: item, CreatedAt: time.Now()},
		ledger.StockBalance{Key: ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: batch}, QuantityOnHand: money.NewFromFloat(2)},
	)

	result, err := ledger.AllocateFIFO(context.Background(), store, company, item, godown, money.NewFromFloat(5))
	require.NoError(t, err)
	assert.False(t, result.IsSatisfiable)
	assert.True(t, result.Shortfall.Equal(money.NewFromFloat(3)))
}

func TestApplyOutboundAllocationDecrementsBalance(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	item := ledger.StockItemID("widget")
	godown := ledger.GodownID("main")
	batch := ledger.StockBatchID("batch-1")

	store.SeedStockBatch(
		ledger.StockBatch{ID: batch, CompanyID: company, ItemID: item, CreatedAt: time.Now()},
		ledger.StockBalance{Key: ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: batch}, QuantityOnHand: money.NewFromFloat(10)},
	)

	result, err := ledger.AllocateFIFO(context.Background(), store, company, item, godown, money.NewFromFloat(4))
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	err = ledger.ApplyOutboundAllocation(context.Background(), store, company, ledger.VoucherID("v1"), item, godown, money.NewFromFloat(9.5), result, func() time.Time { return now })
	require.NoError(t, err)

	bal, err := store.GetStockBalance(context.Background(), ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: batch})
	require.NoError(t, err)
	assert.True(t, bal.QuantityOnHand.Equal(money.NewFromFloat(6)))
}
