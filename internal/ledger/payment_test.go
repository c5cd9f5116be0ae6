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

func postTestInvoice(t *testing.T, store *memory.Store, invSvc *ledger.InvoiceService, p tenant.Principal, company ledger.CompanyID, vt ledger.VoucherTypeID, party ledger.PartyID, partyLedger, salesLedger ledger.LedgerID, item ledger.StockItemID, godown ledger.GodownID, idempotencyKey string, qty float64) ledger.Invoice {
	t.Helper()
	inv, err := invSvc.PostInvoice(context.Background(), p, ledger.InvoiceInput{
		CompanyID:      company,
		PartyID:        party,
		Type:           ledger.InvoiceSales,
		VoucherTypeID:  vt,
		Date:           "2024-06-01",
		DueDate:        "2024-07-01",
		IdempotencyKey: idempotencyKey,
		Lines: []ledger.InvoiceLine{
			{LineNo: 1, StockItemID: &item, GodownID: &godown, Quantity: money.NewFromFloat(qty), Rate: money.NewFromFloat(20), LedgerID: salesLedger},
		},
	}, partyLedger, "")
	require.NoError(t, err)
	return inv
}

func TestPostPaymentReducesInvoiceOutstandingAndTransitionsStatus(t *testing.T) {
	store := memory.New()
	company, vt, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	receiptType := ledger.VoucherTypeID("receipt")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: company, Code: "RCT", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})
	bankLedger := ledger.LedgerID("bank")
	store.SeedLedger(ledger.Ledger_{ID: bankLedger, CompanyID: company, Code: "Bank", Type: ledger.AccountAsset, IsActive: true})

	inv := postTestInvoice(t, store, invSvc, p, company, vt, party, partyLedger, salesLedger, item, godown, "inv-pay-1", 10)
	require.True(t, inv.TotalValue.Equal(money.NewFromFloat(200)))

	partial, err := paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID:      company,
		PartyID:        party,
		VoucherTypeID:  receiptType,
		Type:           ledger.PaymentTypeReceipt,
		Date:           "2024-06-05",
		BankAccount:    "HDFC-001",
		PaymentMode:    "NEFT",
		IdempotencyKey: "pay-1",
		Lines: []ledger.PaymentLineInput{
			{InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(80)},
		},
	}, partyLedger, bankLedger)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentStatusPosted, partial.Status)

	afterPartial, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.True(t, afterPartial.AmountReceived.Equal(money.NewFromFloat(80)))
	assert.Equal(t, ledger.InvoiceStatusPartiallyPaid, afterPartial.Status)

	_, err = paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID:      company,
		PartyID:        party,
		VoucherTypeID:  receiptType,
		Type:           ledger.PaymentTypeReceipt,
		Date:           "2024-06-10",
		BankAccount:    "HDFC-001",
		PaymentMode:    "NEFT",
		IdempotencyKey: "pay-2",
		Lines: []ledger.PaymentLineInput{
			{InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(120)},
		},
	}, partyLedger, bankLedger)
	require.NoError(t, err)

	afterFull, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.True(t, afterFull.AmountReceived.Equal(money.NewFromFloat(200)))
	assert.Equal(t, ledger.InvoiceStatusPaid, afterFull.Status)
}

func TestPostPaymentOverAllocationRejected(t *testing.T) {
	store := memory.New()
	company, vt, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	receiptType := ledger.VoucherTypeID("receipt")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: company, Code: "RCT", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})
	bankLedger := ledger.LedgerID("bank")
	store.SeedLedger(ledger.Ledger_{ID: bankLedger, CompanyID: company, Code: "Bank", Type: ledger.AccountAsset, IsActive: true})

	inv := postTestInvoice(t, store, invSvc, p, company, vt, party, partyLedger, salesLedger, item, godown, "inv-pay-over", 10)

	_, err := paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID:      company,
		PartyID:        party,
		VoucherTypeID:  receiptType,
		Type:           ledger.PaymentTypeReceipt,
		Date:           "2024-06-05",
		IdempotencyKey: "pay-over-1",
		Lines: []ledger.PaymentLineInput{
			{InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(500)},
		},
	}, partyLedger, bankLedger)
	require.Error(t, err)
	var ve *ledger.ValidationError
	assert.ErrorAs(t, err, &ve)

	afterRejected, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.True(t, afterRejected.AmountReceived.IsZero())
}

func TestPostPaymentIdempotentReplayReturnsSamePayment(t *testing.T) {
	store := memory.New()
	company, vt, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	receiptType := ledger.VoucherTypeID("receipt")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: company, Code: "RCT", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})
	bankLedger := ledger.LedgerID("bank")
	store.SeedLedger(ledger.Ledger_{ID: bankLedger, CompanyID: company, Code: "Bank", Type: ledger.AccountAsset, IsActive: true})

	inv := postTestInvoice(t, store, invSvc, p, company, vt, party, partyLedger, salesLedger, item, godown, "inv-pay-replay", 10)

	in := ledger.PaymentInput{
		CompanyID:      company,
		PartyID:        party,
		VoucherTypeID:  receiptType,
		Type:           ledger.PaymentTypeReceipt,
		Date:           "2024-06-05",
		IdempotencyKey: "pay-replay-1",
		Lines: []ledger.PaymentLineInput{
			{InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(50)},
		},
	}

	first, err := paySvc.PostPayment(context.Background(), p, in, partyLedger, bankLedger)
	require.NoError(t, err)

	second, err := paySvc.PostPayment(context.Background(), p, in, partyLedger, bankLedger)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.VoucherID, second.VoucherID)

	afterReplay, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.True(t, afterReplay.AmountReceived.Equal(money.NewFromFloat(50)))
}

func TestReversePaymentVoucherRevertsInvoiceStatus(t *testing.T) {
	store := memory.New()
	company, vt, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	reversal := ledger.NewReversalService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	receiptType := ledger.VoucherTypeID("receipt")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: company, Code: "RCT", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})
	bankLedger := ledger.LedgerID("bank")
	store.SeedLedger(ledger.Ledger_{ID: bankLedger, CompanyID: company, Code: "Bank", Type: ledger.AccountAsset, IsActive: true})

	inv := postTestInvoice(t, store, invSvc, p, company, vt, party, partyLedger, salesLedger, item, godown, "inv-pay-reverse", 10)

	payment, err := paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID:      company,
		PartyID:        party,
		VoucherTypeID:  receiptType,
		Type:           ledger.PaymentTypeReceipt,
		Date:           "2024-06-05",
		IdempotencyKey: "pay-reverse-1",
		Lines: []ledger.PaymentLineInput{
			{InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(200)},
		},
	}, partyLedger, bankLedger)
	require.NoError(t, err)

	afterPay, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, afterPay.Status)

	_, err = reversal.Reverse(context.Background(), p, company, payment.VoucherID, "payment bounced", "pay-reverse-undo-1", false)
	require.NoError(t, err)

	afterReversal, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.True(t, afterReversal.AmountReceived.IsZero())
	assert.Equal(t, ledger.InvoiceStatusPosted, afterReversal.Status)
}

func TestPaymentDraftLifecycle(t *testing.T) {
	store := memory.New()
	company, vt, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	p := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)

	receiptType := ledger.VoucherTypeID("receipt-draft")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: company, Code: "RCTD", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})
	bankLedger := ledger.LedgerID("bank-draft")
	store.SeedLedger(ledger.Ledger_{ID: bankLedger, CompanyID: company, Code: "Bank", Type: ledger.AccountAsset, IsActive: true})

	inv := postTestInvoice(t, store, invSvc, p, company, vt, party, partyLedger, salesLedger, item, godown, "inv-draft-1", 10)

	draft, err := paySvc.CreatePaymentDraft(context.Background(), p, ledger.PaymentDraftInput{
		CompanyID: company, PartyID: party, Type: ledger.PaymentTypeReceipt, BankAccount: "acc-1", PaymentMode: "NEFT",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentStatusDraft, draft.Status)

	draft, err = paySvc.AllocatePayment(context.Background(), p, company, draft.ID, ledger.PaymentLineInput{
		InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(120),
	})
	require.NoError(t, err)
	require.Len(t, draft.Lines, 1)

	_, err = paySvc.AllocatePayment(context.Background(), p, company, draft.ID, ledger.PaymentLineInput{
		InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(1000),
	})
	var verr *ledger.ValidationError
	assert.ErrorAs(t, err, &verr)

	lineID := draft.Lines[0].LineID
	draft, err = paySvc.RemoveAllocation(context.Background(), p, company, draft.ID, lineID)
	require.NoError(t, err)
	assert.Empty(t, draft.Lines)

	draft, err = paySvc.AllocatePayment(context.Background(), p, company, draft.ID, ledger.PaymentLineInput{
		InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(200),
	})
	require.NoError(t, err)

	posted, err := paySvc.PostPaymentDraft(context.Background(), p, company, draft.ID, receiptType, "2024-06-05", "pay-draft-post-1", partyLedger, bankLedger)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentStatusPosted, posted.Status)
	assert.NotEmpty(t, posted.VoucherID)

	afterPay, err := store.GetInvoice(context.Background(), company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, afterPay.Status)

	_, err = paySvc.AllocatePayment(context.Background(), p, company, posted.ID, ledger.PaymentLineInput{
		InvoiceID: inv.ID, AmountApplied: money.NewFromFloat(1),
	})
	assert.ErrorIs(t, err, ledger.ErrPaymentNotDraft)
}
