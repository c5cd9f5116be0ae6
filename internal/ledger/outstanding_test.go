package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/store/memory"
	"github.com/ledgercore/core/internal/tenant"
)

func TestListOutstandingOmitsFullyPaidInvoices(t *testing.T) {
	store := memory.New()
	company, vt, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)

	posting := ledger.NewPostingService(store, clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	invSvc := ledger.NewInvoiceService(store, clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, posting, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	inv, err := invSvc.PostInvoice(context.Background(), p, ledger.InvoiceInput{
		CompanyID:      company,
		PartyID:        party,
		Type:           ledger.InvoiceSales,
		VoucherTypeID:  vt,
		Date:           "2024-06-01",
		DueDate:        "2024-07-01",
		IdempotencyKey: "outstanding-inv-1",
		Lines: []ledger.InvoiceLine{
			{LineNo: 1, StockItemID: &item, GodownID: &godown, Quantity: money.NewFromFloat(5), Rate: money.NewFromFloat(10), LedgerID: salesLedger},
		},
	}, partyLedger, "")
	require.NoError(t, err)

	open, err := ledger.ListOutstanding(context.Background(), store, company, party)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, inv.ID, open[0].InvoiceID)
	assert.True(t, open[0].Outstanding.Equal(money.NewFromFloat(50)))

	require.NoError(t, store.UpdateInvoiceReceived(context.Background(), company, inv.ID, money.NewFromFloat(50), ledger.InvoiceStatusPaid))

	open, err = ledger.ListOutstanding(context.Background(), store, company, party)
	require.NoError(t, err)
	assert.Empty(t, open)

	total, err := ledger.TotalOutstanding(context.Background(), store, company, party)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestTrialBalanceReflectsPostedVoucher(t *testing.T) {
	store := memory.New()
	company, _, vt, cash, sales := seedBasicCompany(store)
	posting := ledger.NewPostingService(store, clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	result, err := posting.Post(context.Background(), p, ledger.PostingInput{
		CompanyID:      company,
		VoucherTypeID:  vt,
		Date:           "2024-06-01",
		IdempotencyKey: "trial-1",
		Lines: []ledger.PostingLineInput{
			{LedgerID: cash, Amount: money.NewFromFloat(300), EntryType: ledger.EntryDR},
			{LedgerID: sales, Amount: money.NewFromFloat(300), EntryType: ledger.EntryCR},
		},
	})
	require.NoError(t, err)

	rows, err := ledger.TrialBalance(context.Background(), store, company, result.Voucher.FinancialYearID, []ledger.LedgerID{cash, sales})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byLedger := map[ledger.LedgerID]ledger.TrialBalanceRow{}
	for _, r := range rows {
		byLedger[r.LedgerID] = r
	}
	assert.True(t, byLedger[cash].Net.Equal(money.NewFromFloat(300)))
	assert.True(t, byLedger[sales].Net.Equal(money.NewFromFloat(-300)))
}
