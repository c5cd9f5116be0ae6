package ledger_test

import (
	"context"
	"encoding/json"
	"os"
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

// loadScenarioFixture decodes one of the testdata/scenarios/*.json files
// (spec §8's "End-to-end scenarios" 1-7, numbered to match) into v.
func loadScenarioFixture(t *testing.T, name string, v any) {
	t.Helper()
	raw, err := os.ReadFile("testdata/scenarios/" + name)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

// scenarioRig bundles a fresh inventory-capable company with a tax
// ledger, mirroring seedInventoryCompany but adding the GST/bank ledgers
// the end-to-end scenarios need on top of it.
type scenarioRig struct {
	company     ledger.CompanyID
	vt          ledger.VoucherTypeID
	party       ledger.PartyID
	partyLedger ledger.LedgerID
	salesLedger ledger.LedgerID
	taxLedger   ledger.LedgerID
	bankLedger  ledger.LedgerID
	item        ledger.StockItemID
	godown      ledger.GodownID
}

func seedScenarioRig(t *testing.T, store *memory.Store, creditLimit money.Money) scenarioRig {
	t.Helper()
	company, _, party, partyLedger, salesLedger, item, godown := seedInventoryCompany(t, store)

	limit := creditLimit
	store.SeedParty(ledger.Party{ID: party, CompanyID: company, Type: ledger.PartyCustomer, LedgerID: partyLedger, CreditLimit: &limit})

	taxLedger := ledger.LedgerID("gst-output")
	store.SeedLedger(ledger.Ledger_{ID: taxLedger, CompanyID: company, Code: "GST Output", Type: ledger.AccountLiability, IsActive: true})
	bankLedger := ledger.LedgerID("bank")
	store.SeedLedger(ledger.Ledger_{ID: bankLedger, CompanyID: company, Code: "Bank", Type: ledger.AccountAsset, IsActive: true})

	vt := ledger.VoucherTypeID("scenario-sales-inv")
	store.SeedVoucherType(ledger.VoucherType{ID: vt, CompanyID: company, Code: "SSI", Category: ledger.CategorySales, IsAccounting: true, IsInventory: true, IsActive: true})

	return scenarioRig{
		company: company, vt: vt, party: party, partyLedger: partyLedger,
		salesLedger: salesLedger, taxLedger: taxLedger, bankLedger: bankLedger,
		item: item, godown: godown,
	}
}

// scenario1Fixture / scenario6Fixture mirror the shape of their JSON
// fixtures; fields are decimal strings so money.NewFromString round-trips
// exactly instead of going through a float64.
type scenario1Fixture struct {
	CreditLimit   string `json:"credit_limit"`
	Quantity      string `json:"quantity"`
	Rate          string `json:"rate"`
	GSTRate       string `json:"gst_rate"`
	FirstPayment  string `json:"first_payment"`
	SecondPayment string `json:"second_payment"`
}

func mustMoney(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.NewFromString(s)
	require.NoError(t, err)
	return m
}

// TestScenario1OrderInvoicePayment drives spec §8 scenario 1 end to end:
// confirm a sales order, post the resulting invoice with GST, and apply
// two payments that move the invoice from PARTIALLY_PAID to PAID.
func TestScenario1OrderInvoicePayment(t *testing.T) {
	var fx scenario1Fixture
	loadScenarioFixture(t, "01_order_invoice_payment.json", &fx)

	store := memory.New()
	rig := seedScenarioRig(t, store, mustMoney(t, fx.CreditLimit))
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	orderSvc := ledger.NewOrderService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	p := tenant.NewPrincipal("u1", string(rig.company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	qty := mustMoney(t, fx.Quantity)
	rate := mustMoney(t, fx.Rate)
	gstRate := mustMoney(t, fx.GSTRate)
	lineTotal := money.New(qty.Decimal().Mul(rate.Decimal()))
	gstAmount := money.New(lineTotal.Decimal().Mul(gstRate.Decimal())).Quantize()
	invoiceTotal := lineTotal.Add(gstAmount)

	order, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: rig.company, PartyID: rig.party, Type: ledger.OrderSales, Date: "2024-06-01",
	})
	require.NoError(t, err)

	order, err = orderSvc.AddItem(context.Background(), p, rig.company, order.ID, ledger.AddItemInput{
		StockItemID: rig.item, GodownID: rig.godown, Quantity: qty, Rate: rate,
	})
	require.NoError(t, err)

	order, err = orderSvc.ConfirmOrder(context.Background(), p, rig.company, order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderConfirmed, order.Status)

	inv, err := invSvc.PostInvoice(context.Background(), p, ledger.InvoiceInput{
		CompanyID:      rig.company,
		PartyID:        rig.party,
		Type:           ledger.InvoiceSales,
		VoucherTypeID:  rig.vt,
		Date:           "2024-06-01",
		DueDate:        "2024-07-01",
		IdempotencyKey: "scenario1-invoice",
		Lines: []ledger.InvoiceLine{
			{LineNo: 1, StockItemID: &rig.item, GodownID: &rig.godown, Quantity: qty, Rate: rate, LedgerID: rig.salesLedger, TaxLedgerID: &rig.taxLedger, TaxAmount: gstAmount},
		},
	}, rig.partyLedger, rig.taxLedger)
	require.NoError(t, err)
	assert.True(t, inv.TotalValue.Equal(invoiceTotal), "expected total %s, got %s", invoiceTotal, inv.TotalValue)

	receiptType := ledger.VoucherTypeID("scenario-receipt")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: rig.company, Code: "SRC", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})

	firstPayment := mustMoney(t, fx.FirstPayment)
	_, err = paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID: rig.company, PartyID: rig.party, VoucherTypeID: receiptType, Type: ledger.PaymentTypeReceipt,
		Date: "2024-06-10", IdempotencyKey: "scenario1-pay-1",
		Lines: []ledger.PaymentLineInput{{InvoiceID: inv.ID, AmountApplied: firstPayment}},
	}, rig.partyLedger, rig.bankLedger)
	require.NoError(t, err)

	afterFirst, err := store.GetInvoice(context.Background(), rig.company, inv.ID)
	require.NoError(t, err)
	assert.True(t, afterFirst.AmountReceived.Equal(firstPayment))
	assert.Equal(t, ledger.InvoiceStatusPartiallyPaid, afterFirst.Status)

	secondPayment := mustMoney(t, fx.SecondPayment)
	_, err = paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID: rig.company, PartyID: rig.party, VoucherTypeID: receiptType, Type: ledger.PaymentTypeReceipt,
		Date: "2024-06-20", IdempotencyKey: "scenario1-pay-2",
		Lines: []ledger.PaymentLineInput{{InvoiceID: inv.ID, AmountApplied: secondPayment}},
	}, rig.partyLedger, rig.bankLedger)
	require.NoError(t, err)

	afterSecond, err := store.GetInvoice(context.Background(), rig.company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, afterSecond.Status)
}

type scenario2Fixture struct {
	CreditLimit         string `json:"credit_limit"`
	ExistingOutstanding string `json:"existing_outstanding"`
	OrderQuantity       string `json:"order_quantity"`
	OrderRate           string `json:"order_rate"`
}

// TestScenario2CreditLimitBlock drives spec §8 scenario 2: an order whose
// confirmation would push outstanding past the party's credit limit is
// rejected and the order stays DRAFT.
func TestScenario2CreditLimitBlock(t *testing.T) {
	var fx scenario2Fixture
	loadScenarioFixture(t, "02_credit_limit_block.json", &fx)

	store := memory.New()
	rig := seedScenarioRig(t, store, mustMoney(t, fx.CreditLimit))
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	orderSvc := ledger.NewOrderService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(rig.company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	// seed existing_outstanding via a prior posted invoice, so
	// checkCreditLimit sees real TotalOutstanding rather than a fixture value.
	existing := mustMoney(t, fx.ExistingOutstanding)
	_, err := invSvc.PostInvoice(context.Background(), p, ledger.InvoiceInput{
		CompanyID: rig.company, PartyID: rig.party, Type: ledger.InvoiceSales, VoucherTypeID: rig.vt,
		Date: "2024-05-01", DueDate: "2024-06-01", IdempotencyKey: "scenario2-prior-invoice",
		Lines: []ledger.InvoiceLine{
			{LineNo: 1, StockItemID: &rig.item, GodownID: &rig.godown, Quantity: money.NewFromFloat(1), Rate: existing, LedgerID: rig.salesLedger},
		},
	}, rig.partyLedger, rig.taxLedger)
	require.NoError(t, err)

	order, err := orderSvc.CreateSalesOrder(context.Background(), p, ledger.CreateSalesOrderInput{
		CompanyID: rig.company, PartyID: rig.party, Type: ledger.OrderSales, Date: "2024-06-05",
	})
	require.NoError(t, err)

	order, err = orderSvc.AddItem(context.Background(), p, rig.company, order.ID, ledger.AddItemInput{
		StockItemID: rig.item, GodownID: rig.godown, Quantity: mustMoney(t, fx.OrderQuantity), Rate: mustMoney(t, fx.OrderRate),
	})
	require.NoError(t, err)

	_, err = orderSvc.ConfirmOrder(context.Background(), p, rig.company, order.ID)
	assert.ErrorIs(t, err, ledger.ErrCreditLimitExceeded)

	stillDraft, err := store.GetOrder(context.Background(), rig.company, order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderDraft, stillDraft.Status)
}

type scenario3Fixture struct {
	Batch1Manufactured string `json:"batch1_manufactured"`
	Batch1Quantity     string `json:"batch1_quantity"`
	Batch2Manufactured string `json:"batch2_manufactured"`
	Batch2Quantity     string `json:"batch2_quantity"`
	OutboundQuantity   string `json:"outbound_quantity"`
}

// TestScenario3FIFOTwoBatches drives spec §8 scenario 3: an outbound
// request spanning two batches drains the older one first.
func TestScenario3FIFOTwoBatches(t *testing.T) {
	var fx scenario3Fixture
	loadScenarioFixture(t, "03_fifo_two_batches.json", &fx)

	store := memory.New()
	company, _, _, _, _ := seedBasicCompany(store)
	item := ledger.StockItemID("widget")
	godown := ledger.GodownID("main")
	store.SeedStockItem(ledger.StockItem{ID: item, CompanyID: company, SKU: "WID-1", IsStockItem: true, IsActive: true})
	store.SeedGodown(ledger.Godown{ID: godown, CompanyID: company})

	b1Date, err := time.Parse("2006-01-02", fx.Batch1Manufactured)
	require.NoError(t, err)
	b2Date, err := time.Parse("2006-01-02", fx.Batch2Manufactured)
	require.NoError(t, err)

	b1 := ledger.StockBatchID("b1")
	b2 := ledger.StockBatchID("b2")
	store.SeedStockBatch(
		ledger.StockBatch{ID: b1, CompanyID: company, ItemID: item, CreatedAt: b1Date},
		ledger.StockBalance{Key: ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: b1}, QuantityOnHand: mustMoney(t, fx.Batch1Quantity)},
	)
	store.SeedStockBatch(
		ledger.StockBatch{ID: b2, CompanyID: company, ItemID: item, CreatedAt: b2Date},
		ledger.StockBalance{Key: ledger.StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: b2}, QuantityOnHand: mustMoney(t, fx.Batch2Quantity)},
	)

	result, err := ledger.AllocateFIFO(context.Background(), store, company, item, godown, mustMoney(t, fx.OutboundQuantity))
	require.NoError(t, err)
	require.True(t, result.IsSatisfiable)
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, b1, result.Allocations[0].BatchID)
	assert.True(t, result.Allocations[0].Quantity.Equal(mustMoney(t, fx.Batch1Quantity)))
	assert.Equal(t, b2, result.Allocations[1].BatchID)
	assert.True(t, result.Allocations[1].Quantity.Equal(mustMoney(t, fx.OutboundQuantity).Sub(mustMoney(t, fx.Batch1Quantity))))
}

// TestScenario4ReversalRevertsInvoiceStatus drives spec §8 scenario 4:
// starting from scenario 1's PAID state, reversing the second payment
// voucher reverts the invoice to PARTIALLY_PAID and restores outstanding.
func TestScenario4ReversalRevertsInvoiceStatus(t *testing.T) {
	var fx scenario1Fixture
	loadScenarioFixture(t, "04_reversal_reverts_invoice_status.json", &fx)

	store := memory.New()
	rig := seedScenarioRig(t, store, mustMoney(t, fx.CreditLimit))
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	paySvc := ledger.NewPaymentService(store, clk, posting, nil)
	reversal := ledger.NewReversalService(store, clk, nil)
	p := tenant.NewPrincipal("u1", string(rig.company), tenant.CapabilityMaker, tenant.CapabilityPoster)

	qty := mustMoney(t, fx.Quantity)
	rate := mustMoney(t, fx.Rate)
	gstRate := mustMoney(t, fx.GSTRate)
	lineTotal := money.New(qty.Decimal().Mul(rate.Decimal()))
	gstAmount := money.New(lineTotal.Decimal().Mul(gstRate.Decimal())).Quantize()

	inv, err := invSvc.PostInvoice(context.Background(), p, ledger.InvoiceInput{
		CompanyID: rig.company, PartyID: rig.party, Type: ledger.InvoiceSales, VoucherTypeID: rig.vt,
		Date: "2024-06-01", DueDate: "2024-07-01", IdempotencyKey: "scenario4-invoice",
		Lines: []ledger.InvoiceLine{
			{LineNo: 1, StockItemID: &rig.item, GodownID: &rig.godown, Quantity: qty, Rate: rate, LedgerID: rig.salesLedger, TaxLedgerID: &rig.taxLedger, TaxAmount: gstAmount},
		},
	}, rig.partyLedger, rig.taxLedger)
	require.NoError(t, err)

	receiptType := ledger.VoucherTypeID("scenario4-receipt")
	store.SeedVoucherType(ledger.VoucherType{ID: receiptType, CompanyID: rig.company, Code: "S4R", Category: ledger.CategoryReceipt, IsAccounting: true, IsActive: true})

	firstPayment := mustMoney(t, fx.FirstPayment)
	_, err = paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID: rig.company, PartyID: rig.party, VoucherTypeID: receiptType, Type: ledger.PaymentTypeReceipt,
		Date: "2024-06-10", IdempotencyKey: "scenario4-pay-1",
		Lines: []ledger.PaymentLineInput{{InvoiceID: inv.ID, AmountApplied: firstPayment}},
	}, rig.partyLedger, rig.bankLedger)
	require.NoError(t, err)

	secondPayment := mustMoney(t, fx.SecondPayment)
	secondResult, err := paySvc.PostPayment(context.Background(), p, ledger.PaymentInput{
		CompanyID: rig.company, PartyID: rig.party, VoucherTypeID: receiptType, Type: ledger.PaymentTypeReceipt,
		Date: "2024-06-20", IdempotencyKey: "scenario4-pay-2",
		Lines: []ledger.PaymentLineInput{{InvoiceID: inv.ID, AmountApplied: secondPayment}},
	}, rig.partyLedger, rig.bankLedger)
	require.NoError(t, err)
	require.NotEmpty(t, secondResult.VoucherID)

	paid, err := store.GetInvoice(context.Background(), rig.company, inv.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.InvoiceStatusPaid, paid.Status)

	beforeReverse, err := ledger.TotalOutstanding(context.Background(), store, rig.company, rig.party)
	require.NoError(t, err)

	_, err = reversal.Reverse(context.Background(), p, rig.company, secondResult.VoucherID, "second payment reversed", "scenario4-reverse", false)
	require.NoError(t, err)

	reverted, err := store.GetInvoice(context.Background(), rig.company, inv.ID)
	require.NoError(t, err)
	assert.True(t, reverted.AmountReceived.Equal(firstPayment))
	assert.Equal(t, ledger.InvoiceStatusPartiallyPaid, reverted.Status)

	afterReverse, err := ledger.TotalOutstanding(context.Background(), store, rig.company, rig.party)
	require.NoError(t, err)
	assert.True(t, afterReverse.Sub(beforeReverse).Equal(secondPayment), "outstanding should increase by exactly the reversed payment")
}

type scenario5Fixture struct {
	ClosedFYStart        string `json:"closed_fy_start"`
	ClosedFYEnd          string `json:"closed_fy_end"`
	OriginalVoucherDate  string `json:"original_voucher_date"`
	BlockedVoucherDate   string `json:"blocked_voucher_date"`
	Amount               string `json:"amount"`
}

// TestScenario5ClosedFYPostingAndOverride drives spec §8 scenario 5: a
// fresh post into a closed FY is rejected regardless of capability; an
// admin's reversal with allow_override=true on a voucher already inside
// the closed FY is accepted; a non-admin's override request still fails.
func TestScenario5ClosedFYPostingAndOverride(t *testing.T) {
	var fx scenario5Fixture
	loadScenarioFixture(t, "05_closed_fy_override.json", &fx)

	store := memory.New()
	company, _, vt, cash, sales := seedBasicCompany(store)
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	reversal := ledger.NewReversalService(store, clk, nil)
	poster := tenant.NewPrincipal("u1", string(company), tenant.CapabilityPoster)
	admin := tenant.NewPrincipal("admin1", string(company), tenant.CapabilityPoster, tenant.CapabilityAdmin)

	start, err := time.Parse("2006-01-02", fx.ClosedFYStart)
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02", fx.ClosedFYEnd)
	require.NoError(t, err)

	closedFY := ledger.FinancialYearID("acme-fy23")
	store.SeedFinancialYear(ledger.FinancialYear{ID: closedFY, CompanyID: company, Name: "FY23", StartDate: start, EndDate: end})

	amount := mustMoney(t, fx.Amount)

	// the original voucher was posted before the FY was closed.
	original, err := posting.Post(context.Background(), poster, ledger.PostingInput{
		CompanyID: company, VoucherTypeID: vt, Date: fx.OriginalVoucherDate, IdempotencyKey: "scenario5-original",
		Lines: []ledger.PostingLineInput{
			{LedgerID: cash, Amount: amount, EntryType: ledger.EntryDR},
			{LedgerID: sales, Amount: amount, EntryType: ledger.EntryCR},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.CloseFinancialYear(context.Background(), company, closedFY))

	_, err = posting.Post(context.Background(), poster, ledger.PostingInput{
		CompanyID: company, VoucherTypeID: vt, Date: fx.BlockedVoucherDate, IdempotencyKey: "scenario5-blocked",
		Lines: []ledger.PostingLineInput{
			{LedgerID: cash, Amount: amount, EntryType: ledger.EntryDR},
			{LedgerID: sales, Amount: amount, EntryType: ledger.EntryCR},
		},
	})
	assert.ErrorIs(t, err, ledger.ErrFinancialYearClosed)

	_, err = reversal.Reverse(context.Background(), poster, company, original.Voucher.ID, "correction, non-admin", "scenario5-nonadmin-reverse", true)
	assert.ErrorIs(t, err, ledger.ErrFinancialYearClosed, "a non-admin allow_override request is still rejected")

	_, err = reversal.Reverse(context.Background(), admin, company, original.Voucher.ID, "year-end correction", "scenario5-admin-reverse", true)
	require.NoError(t, err)
}

type scenario6Fixture struct {
	IdempotencyKey string `json:"idempotency_key"`
	Quantity       string `json:"quantity"`
	Rate           string `json:"rate"`
}

// TestScenario6IdempotentPost drives spec §8 scenario 6: reposting an
// invoice with the same idempotency_key returns the original voucher
// with no new ledger movement.
func TestScenario6IdempotentPost(t *testing.T) {
	var fx scenario6Fixture
	loadScenarioFixture(t, "06_idempotent_post.json", &fx)

	store := memory.New()
	rig := seedScenarioRig(t, store, money.NewFromFloat(100000))
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invSvc := ledger.NewInvoiceService(store, clk, posting, nil)
	p := tenant.NewPrincipal("u1", string(rig.company), tenant.CapabilityPoster)

	input := ledger.InvoiceInput{
		CompanyID: rig.company, PartyID: rig.party, Type: ledger.InvoiceSales, VoucherTypeID: rig.vt,
		Date: "2024-06-01", DueDate: "2024-07-01", IdempotencyKey: fx.IdempotencyKey,
		Lines: []ledger.InvoiceLine{
			{LineNo: 1, StockItemID: &rig.item, GodownID: &rig.godown, Quantity: mustMoney(t, fx.Quantity), Rate: mustMoney(t, fx.Rate), LedgerID: rig.salesLedger},
		},
	}

	first, err := invSvc.PostInvoice(context.Background(), p, input, rig.partyLedger, rig.taxLedger)
	require.NoError(t, err)

	second, err := invSvc.PostInvoice(context.Background(), p, input, rig.partyLedger, rig.taxLedger)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.VoucherID)
	require.NotNil(t, first.VoucherID)
	assert.Equal(t, *first.VoucherID, *second.VoucherID)

	bal, err := store.GetLedgerBalance(context.Background(), ledger.LedgerBalanceKey{CompanyID: rig.company, LedgerID: rig.salesLedger, FinancialYearID: mustFYForDate(t, store, rig.company, input.Date)})
	require.NoError(t, err)
	lineTotal := mustMoney(t, fx.Quantity).Decimal().Mul(mustMoney(t, fx.Rate).Decimal())
	assert.True(t, bal.BalanceCR.Equal(money.New(lineTotal)), "replay must not double the ledger movement")
}

func mustFYForDate(t *testing.T, store *memory.Store, company ledger.CompanyID, wireDate string) ledger.FinancialYearID {
	t.Helper()
	date, err := time.Parse("2006-01-02", wireDate)
	require.NoError(t, err)
	fy, err := store.GetFinancialYearForDate(context.Background(), company, date)
	require.NoError(t, err)
	return fy.ID
}
