package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/cache"
	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/httpapi"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/store/memory"
)

func seedCompany(s *memory.Store) (ledger.CompanyID, ledger.VoucherTypeID, ledger.LedgerID, ledger.LedgerID) {
	company := ledger.CompanyID("acme")
	s.SeedCompany(ledger.Company{ID: company, Code: "ACME", BaseCurrency: "INR", IsActive: true})
	s.SeedFeature(ledger.CompanyFeature{CompanyID: company, Flags: ledger.FeatureFlags{Accounting: true, Inventory: true}})
	s.SeedFinancialYear(ledger.FinancialYear{
		ID: "acme-fy24", CompanyID: company, Name: "FY24",
		StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		IsCurrent: true,
	})
	vt := ledger.VoucherTypeID("jv")
	s.SeedVoucherType(ledger.VoucherType{ID: vt, CompanyID: company, Code: "JV", Category: ledger.CategoryJournal, IsAccounting: true, IsActive: true})

	cash := ledger.LedgerID("cash")
	sales := ledger.LedgerID("sales")
	s.SeedLedger(ledger.Ledger_{ID: cash, CompanyID: company, Code: "Cash", Type: ledger.AccountAsset, IsActive: true})
	s.SeedLedger(ledger.Ledger_{ID: sales, CompanyID: company, Code: "Sales", Type: ledger.AccountIncome, IsActive: true})
	return company, vt, cash, sales
}

func newTestHandler(store *memory.Store) *httpapi.Handler {
	clk := clock.Fixed{At: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	posting := ledger.NewPostingService(store, clk, nil)
	invoices := ledger.NewInvoiceService(store, clk, posting, nil)
	payments := ledger.NewPaymentService(store, clk, posting, nil)
	orders := ledger.NewOrderService(store, clk, nil)
	reversals := ledger.NewReversalService(store, clk, nil)
	approvals := ledger.NewApprovalGate(store, clk, nil)
	return httpapi.NewHandler(store, posting, invoices, payments, orders, reversals, approvals, cache.NewAgingCache(nil), clk)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func posterHeaders() map[string]string {
	return map[string]string{"X-User-ID": "u1", "X-Capabilities": "POSTER,CHECKER,MAKER"}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(memory.New())
	router := httpapi.NewRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostVoucherThenGetIt(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(100), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(100), EntryType: "CR"},
		},
		IdempotencyKey: "key-1",
	}

	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "JV-0001", created.VoucherNumber)
	assert.False(t, created.Replayed)

	rec = doRequest(t, router, http.MethodGet, "/api/companies/"+string(company)+"/vouchers/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var fetched httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Len(t, fetched.Lines, 2)
}

func TestPostVoucherReplaysOnDuplicateIdempotencyKey(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(50), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(50), EntryType: "CR"},
		},
		IdempotencyKey: "same-key",
	}

	first := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
	require.Equal(t, http.StatusCreated, first.Code)
	var firstVoucher httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstVoucher))

	second := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
	require.Equal(t, http.StatusCreated, second.Code)
	var secondVoucher httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondVoucher))

	assert.Equal(t, firstVoucher.ID, secondVoucher.ID)
	assert.True(t, secondVoucher.Replayed)
}

func TestPostVoucherUnbalancedReturnsBadRequest(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(100), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(40), EntryType: "CR"},
		},
		IdempotencyKey: "key-unbalanced",
	}

	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp httpapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "ValidationFailed", errResp.Code)
}

func TestPostVoucherWithoutCapabilityIsForbidden(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(10), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(10), EntryType: "CR"},
		},
		IdempotencyKey: "key-noauth",
	}

	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, map[string]string{"X-User-ID": "u2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReverseVoucher(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	postBody := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(70), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(70), EntryType: "CR"},
		},
		IdempotencyKey: "key-reverse",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", postBody, posterHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)
	var posted httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))

	reverseBody := httpapi.ReverseVoucherRequest{Reason: "data entry error", IdempotencyKey: "key-reverse-rev"}
	rec = doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers/"+posted.ID+"/reverse", reverseBody, posterHeaders())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reversal httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reversal))
	assert.Equal(t, posted.ID, reversal.ReversalOfVoucherID)

	// Reversing the already-reversed voucher again must fail.
	rec = doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers/"+posted.ID+"/reverse",
		httpapi.ReverseVoucherRequest{Reason: "again", IdempotencyKey: "key-reverse-again"}, posterHeaders())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostPaymentWithoutCapabilityIsForbidden(t *testing.T) {
	store := memory.New()
	company, _, _, _ := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostPaymentRequest{
		PartyID:        "cust-1",
		Type:           "RECEIPT",
		VoucherTypeID:  "receipt",
		Date:           "2024-06-01",
		PartyLedgerID:  "debtor-control",
		BankLedgerID:   "bank",
		IdempotencyKey: "pay-noauth",
		Lines: []httpapi.PaymentLineRequest{
			{InvoiceID: "inv-1", AmountApplied: money.NewFromFloat(10)},
		},
	}

	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/payments", body, map[string]string{"X-User-ID": "u2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostPaymentWithNoLinesReturnsBadRequest(t *testing.T) {
	store := memory.New()
	company, _, _, _ := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostPaymentRequest{
		PartyID:        "cust-1",
		Type:           "RECEIPT",
		VoucherTypeID:  "receipt",
		Date:           "2024-06-01",
		PartyLedgerID:  "debtor-control",
		BankLedgerID:   "bank",
		IdempotencyKey: "pay-empty",
	}

	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/payments", body, posterHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestListVouchersFiltersByStatus(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	for i := 0; i < 2; i++ {
		body := httpapi.PostVoucherRequest{
			VoucherTypeID: string(vt),
			Date:          "2024-06-01",
			Lines: []httpapi.PostVoucherLineInput{
				{LedgerID: string(cash), Amount: money.NewFromFloat(10), EntryType: "DR"},
				{LedgerID: string(sales), Amount: money.NewFromFloat(10), EntryType: "CR"},
			},
			IdempotencyKey: "list-key-" + string(rune('a'+i)),
		}
		rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/companies/"+string(company)+"/vouchers?status=POSTED", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []httpapi.VoucherDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestTrialBalanceBalancesAfterPosting(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(200), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(200), EntryType: "CR"},
		},
		IdempotencyKey: "tb-key",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/companies/"+string(company)+"/trial-balance?fy=acme-fy24", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rows []httpapi.TrialBalanceRowDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
}

func TestApprovalWorkflowSubmitApproveThenGetStatus(t *testing.T) {
	store := memory.New()
	company, _, _, _ := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	submit := httpapi.ApprovalActionRequest{TargetType: "VOUCHER", TargetID: "v-1"}
	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/approvals/submit", submit,
		map[string]string{"X-User-ID": "maker", "X-Capabilities": "MAKER"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	approve := httpapi.ApprovalActionRequest{TargetType: "VOUCHER", TargetID: "v-1", Remarks: "looks fine"}
	rec = doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/approvals/approve", approve,
		map[string]string{"X-User-ID": "checker", "X-Capabilities": "CHECKER"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/companies/"+string(company)+"/approvals/status?target_type=VOUCHER&target_id=v-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var a httpapi.ApprovalDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "APPROVED", a.Status)
}

func TestApprovalSelfApprovalRejected(t *testing.T) {
	store := memory.New()
	company, _, _, _ := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	submit := httpapi.ApprovalActionRequest{TargetType: "VOUCHER", TargetID: "v-2"}
	headers := map[string]string{"X-User-ID": "same-user", "X-Capabilities": "MAKER,CHECKER"}
	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/approvals/submit", submit, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/approvals/approve",
		httpapi.ApprovalActionRequest{TargetType: "VOUCHER", TargetID: "v-2"}, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuditTrailReturnsEntriesForCompany(t *testing.T) {
	store := memory.New()
	company, vt, cash, sales := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	body := httpapi.PostVoucherRequest{
		VoucherTypeID: string(vt),
		Date:          "2024-06-01",
		Lines: []httpapi.PostVoucherLineInput{
			{LedgerID: string(cash), Amount: money.NewFromFloat(30), EntryType: "DR"},
			{LedgerID: string(sales), Amount: money.NewFromFloat(30), EntryType: "CR"},
		},
		IdempotencyKey: "audit-key",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/companies/"+string(company)+"/vouchers", body, posterHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/companies/"+string(company)+"/audit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []httpapi.AuditLogDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.NotEmpty(t, entries)
}

func TestAgingReportForEmptyCompanyIsBalanced(t *testing.T) {
	store := memory.New()
	company, _, _, _ := seedCompany(store)
	h := newTestHandler(store)
	router := httpapi.NewRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/api/companies/"+string(company)+"/aging?as_of=2024-06-01", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report httpapi.CompanyAgingReportDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.IsBalanced)
	assert.Empty(t, report.Groups)
}
