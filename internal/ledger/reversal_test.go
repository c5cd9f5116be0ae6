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

func TestReverseFlipsEntriesAndLinksVouchers(t *testing.T) {
	store := memory.New()
	company, _, vt, cash, sales := seedBasicCompany(store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	reversal := ledger.NewReversalService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	original, err := posting.Post(context.Background(), p, ledger.PostingInput{
		CompanyID:      company,
		VoucherTypeID:  vt,
		Date:           "2024-06-01",
		IdempotencyKey: "orig-1",
		Lines: []ledger.PostingLineInput{
			{LedgerID: cash, Amount: money.NewFromFloat(100), EntryType: ledger.EntryDR},
			{LedgerID: sales, Amount: money.NewFromFloat(100), EntryType: ledger.EntryCR},
		},
	})
	require.NoError(t, err)

	reversed, err := reversal.Reverse(context.Background(), p, company, original.Voucher.ID, "data entry error", "rev-1", false)
	require.NoError(t, err)
	assert.NotEqual(t, original.Voucher.ID, reversed.ID)

	updatedOriginal, err := store.GetVoucher(context.Background(), company, original.Voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.VoucherReversed, updatedOriginal.Status)
	require.NotNil(t, updatedOriginal.ReversedVoucherID)
	assert.Equal(t, reversed.ID, *updatedOriginal.ReversedVoucherID)

	// the reversal nets the cash ledger back to zero
	bal, err := store.GetLedgerBalance(context.Background(), ledger.LedgerBalanceKey{
		CompanyID: company, LedgerID: cash, FinancialYearID: original.Voucher.FinancialYearID,
	})
	require.NoError(t, err)
	assert.True(t, bal.BalanceDR.Sub(bal.BalanceCR).IsZero())
}

func TestReverseAlreadyReversedVoucherRejected(t *testing.T) {
	store := memory.New()
	company, _, vt, cash, sales := seedBasicCompany(store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	reversal := ledger.NewReversalService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	original, err := posting.Post(context.Background(), p, ledger.PostingInput{
		CompanyID:      company,
		VoucherTypeID:  vt,
		Date:           "2024-06-01",
		IdempotencyKey: "orig-2",
		Lines: []ledger.PostingLineInput{
			{LedgerID: cash, Amount: money.NewFromFloat(50), EntryType: ledger.EntryDR},
			{LedgerID: sales, Amount: money.NewFromFloat(50), EntryType: ledger.EntryCR},
		},
	})
	require.NoError(t, err)

	_, err = reversal.Reverse(context.Background(), p, company, original.Voucher.ID, "first reversal", "rev-2", false)
	require.NoError(t, err)

	_, err = reversal.Reverse(context.Background(), p, company, original.Voucher.ID, "second reversal", "rev-3", false)
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
}

func TestReverseUnpostedVoucherRejected(t *testing.T) {
	store := memory.New()
	company, _, vt, cash, sales := seedBasicCompany(store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	reversal := ledger.NewReversalService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	draft, err := posting.CreateDraft(context.Background(), p, ledger.PostingInput{
		CompanyID:     company,
		VoucherTypeID: vt,
		Date:          "2024-06-01",
		Lines: []ledger.PostingLineInput{
			{LedgerID: cash, Amount: money.NewFromFloat(10), EntryType: ledger.EntryDR},
			{LedgerID: sales, Amount: money.NewFromFloat(10), EntryType: ledger.EntryCR},
		},
	})
	require.NoError(t, err)

	_, err = reversal.Reverse(context.Background(), p, company, draft.ID, "n/a", "rev-4", false)
	assert.ErrorIs(t, err, ledger.ErrVoucherNotPosted)
}
