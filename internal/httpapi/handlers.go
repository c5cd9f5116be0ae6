/*
handlers.go - HTTP handlers for the ledger core's external surface
(spec §6), generalizing the teacher's api/handlers.go: same
Handler-holds-dependencies shape, same writeJSON/writeError helpers, same
"parse body, call domain, serialize" flow — retargeted from leave
requests to vouchers, invoices, approvals, and the read-model selectors.
*/
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgercore/core/internal/audit"
	"github.com/ledgercore/core/internal/cache"
	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/tenant"
)

// Handler holds every dependency the REST surface needs, the same shape
// as the teacher's Handler (Store, PolicyFactory, caches) generalized to
// this domain's service objects.
type Handler struct {
	Store     ledger.Store
	Posting   *ledger.PostingService
	Invoices  *ledger.InvoiceService
	Payments  *ledger.PaymentService
	Orders    *ledger.OrderService
	Reversals *ledger.ReversalService
	Approvals *ledger.ApprovalGate
	Aging     *cache.AgingCache
	Audit     *audit.Reader
	Clock     clock.Clock
}

func NewHandler(store ledger.Store, posting *ledger.PostingService, invoices *ledger.InvoiceService, payments *ledger.PaymentService, orders *ledger.OrderService, reversals *ledger.ReversalService, approvals *ledger.ApprovalGate, agingCache *cache.AgingCache, clk clock.Clock) *Handler {
	return &Handler{
		Store:     store,
		Posting:   posting,
		Invoices:  invoices,
		Payments:  payments,
		Orders:    orders,
		Reversals: reversals,
		Approvals: approvals,
		Aging:     agingCache,
		Audit:     audit.NewReader(store),
		Clock:     clk,
	}
}

// Health reports process liveness — no dependency checks, just "the
// process is up and answering".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principalFrom builds a tenant.Principal from request headers. No
// authentication happens here — per the spec, a Principal is constructed
// by the (external) caller and handed in; this reads the headers an
// upstream gateway or test client sets, it does not verify them.
func principalFrom(r *http.Request, company string) tenant.Principal {
	userID := r.Header.Get("X-User-ID")
	var caps []tenant.Capability
	if raw := r.Header.Get("X-Capabilities"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			caps = append(caps, tenant.Capability(strings.TrimSpace(c)))
		}
	}
	return tenant.NewPrincipal(userID, company, caps...)
}

func companyParam(r *http.Request) ledger.CompanyID {
	return ledger.CompanyID(chi.URLParam(r, "company"))
}

// =============================================================================
// VOUCHERS
// =============================================================================

// PostVoucher posts a journal-style voucher.
// POST /api/companies/{company}/vouchers
func (h *Handler) PostVoucher(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)

	var req PostVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	lines := make([]ledger.PostingLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = ledger.PostingLineInput{
			LedgerID:   ledger.LedgerID(l.LedgerID),
			Amount:     l.Amount,
			EntryType:  ledger.EntryType(l.EntryType),
			CostCenter: l.CostCenter,
		}
	}

	result, err := h.Posting.Post(r.Context(), principalFrom(r, string(company)), ledger.PostingInput{
		CompanyID:      company,
		VoucherTypeID:  ledger.VoucherTypeID(req.VoucherTypeID),
		Date:           req.Date,
		Lines:          lines,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVoucherDTO(result.Voucher, result.Replayed))
}

// GetVoucher returns a single voucher with its lines.
// GET /api/companies/{company}/vouchers/{id}
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.VoucherID(chi.URLParam(r, "id"))

	v, err := h.Store.GetVoucher(r.Context(), company, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(v, false))
}

// ListVouchers lists a company's vouchers, optionally filtered by
// financial year and/or status via query params.
// GET /api/companies/{company}/vouchers?fy=...&status=...&limit=...
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	fy := ledger.FinancialYearID(r.URL.Query().Get("fy"))
	status := ledger.VoucherStatus(r.URL.Query().Get("status"))
	limit := parseLimit(r, 100)

	vouchers, err := h.Store.ListVouchers(r.Context(), company, fy, status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list vouchers", err)
		return
	}

	dtos := make([]VoucherDTO, len(vouchers))
	for i, v := range vouchers {
		dtos[i] = toVoucherDTO(v, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReverseVoucher reverses a posted voucher.
// POST /api/companies/{company}/vouchers/{id}/reverse
func (h *Handler) ReverseVoucher(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.VoucherID(chi.URLParam(r, "id"))

	var req ReverseVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	reversal, err := h.Reversals.Reverse(r.Context(), principalFrom(r, string(company)), company, id, req.Reason, req.IdempotencyKey, req.AllowOverride)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(reversal, false))
}

// =============================================================================
// INVOICES
// =============================================================================

// PostInvoice posts a sales or purchase invoice.
// POST /api/companies/{company}/invoices
func (h *Handler) PostInvoice(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)

	var req PostInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	lines := make([]ledger.InvoiceLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = ledger.InvoiceLine{
			LineNo:   i + 1,
			Quantity: l.Quantity,
			Rate:     l.Rate,
			LedgerID: ledger.LedgerID(l.LedgerID),
			TaxAmount: l.TaxAmount,
		}
		if l.StockItemID != "" {
			sid := ledger.StockItemID(l.StockItemID)
			lines[i].StockItemID = &sid
		}
		if l.GodownID != "" {
			gid := ledger.GodownID(l.GodownID)
			lines[i].GodownID = &gid
		}
		if l.TaxLedgerID != "" {
			tid := ledger.LedgerID(l.TaxLedgerID)
			lines[i].TaxLedgerID = &tid
		}
	}

	var defaultTaxLedger ledger.LedgerID
	if req.DefaultTaxLedgerID != "" {
		defaultTaxLedger = ledger.LedgerID(req.DefaultTaxLedgerID)
	}

	inv, err := h.Invoices.PostInvoice(r.Context(), principalFrom(r, string(company)), ledger.InvoiceInput{
		CompanyID:      company,
		PartyID:        ledger.PartyID(req.PartyID),
		Type:           ledger.InvoiceType(req.Type),
		VoucherTypeID:  ledger.VoucherTypeID(req.VoucherTypeID),
		Date:           req.Date,
		DueDate:        req.DueDate,
		Lines:          lines,
		IdempotencyKey: req.IdempotencyKey,
	}, ledger.LedgerID(req.PartyLedgerID), defaultTaxLedger)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PostPayment posts a payment or receipt and allocates it against one or
// more invoices.
// POST /api/companies/{company}/payments
func (h *Handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)

	var req PostPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	lines := make([]ledger.PaymentLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = ledger.PaymentLineInput{
			InvoiceID:     ledger.InvoiceID(l.InvoiceID),
			AmountApplied: l.AmountApplied,
		}
	}

	pay, err := h.Payments.PostPayment(r.Context(), principalFrom(r, string(company)), ledger.PaymentInput{
		CompanyID:      company,
		PartyID:        ledger.PartyID(req.PartyID),
		VoucherTypeID:  ledger.VoucherTypeID(req.VoucherTypeID),
		Type:           ledger.PaymentType(req.Type),
		Date:           req.Date,
		BankAccount:    req.BankAccount,
		PaymentMode:    req.PaymentMode,
		Lines:          lines,
		IdempotencyKey: req.IdempotencyKey,
	}, ledger.LedgerID(req.PartyLedgerID), ledger.LedgerID(req.BankLedgerID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(pay))
}

// CreatePaymentDraft opens a DRAFT payment with no allocations yet.
// POST /api/companies/{company}/payments/drafts
func (h *Handler) CreatePaymentDraft(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)

	var req CreatePaymentDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	pay, err := h.Payments.CreatePaymentDraft(r.Context(), principalFrom(r, string(company)), ledger.PaymentDraftInput{
		CompanyID:   company,
		PartyID:     ledger.PartyID(req.PartyID),
		Type:        ledger.PaymentType(req.Type),
		BankAccount: req.BankAccount,
		PaymentMode: req.PaymentMode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(pay))
}

// AllocatePayment appends one invoice allocation to a DRAFT payment.
// POST /api/companies/{company}/payments/drafts/{id}/allocations
func (h *Handler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.PaymentID(chi.URLParam(r, "id"))

	var req AllocatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	pay, err := h.Payments.AllocatePayment(r.Context(), principalFrom(r, string(company)), company, id, ledger.PaymentLineInput{
		InvoiceID:     ledger.InvoiceID(req.InvoiceID),
		AmountApplied: req.AmountApplied,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(pay))
}

// RemoveAllocation drops one allocation line from a DRAFT payment.
// DELETE /api/companies/{company}/payments/drafts/{id}/allocations/{line_id}
func (h *Handler) RemoveAllocation(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	lineID := chi.URLParam(r, "line_id")

	pay, err := h.Payments.RemoveAllocation(r.Context(), principalFrom(r, string(company)), company, id, lineID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(pay))
}

// PostPaymentDraft posts the voucher for a DRAFT payment's accumulated
// allocations.
// POST /api/companies/{company}/payments/drafts/{id}/post
func (h *Handler) PostPaymentDraft(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.PaymentID(chi.URLParam(r, "id"))

	var req PostPaymentDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	pay, err := h.Payments.PostPaymentDraft(r.Context(), principalFrom(r, string(company)), company, id,
		ledger.VoucherTypeID(req.VoucherTypeID), req.Date, req.IdempotencyKey,
		ledger.LedgerID(req.PartyLedgerID), ledger.LedgerID(req.BankLedgerID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(pay))
}

// ListOutstandingInvoices returns a party's (or, with no party param, the
// whole company's) open invoices.
// GET /api/companies/{company}/invoices/outstanding?party=...
func (h *Handler) ListOutstandingInvoices(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	party := r.URL.Query().Get("party")

	if party == "" {
		report, err := h.Store.ListOutstandingInvoicesForCompany(r.Context(), company)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "InternalError", "failed to list outstanding invoices", err)
			return
		}
		dtos := make([]OutstandingInvoiceDTO, 0, len(report))
		for _, inv := range report {
			dtos = append(dtos, toOutstandingDTO(ledger.OutstandingInvoice{
				InvoiceID: inv.ID, InvoiceNumber: inv.InvoiceNumber,
				TotalValue: inv.TotalValue, AmountReceived: inv.AmountReceived,
				Outstanding: inv.Outstanding(), DueDate: inv.DueDate.Format("2006-01-02"),
			}))
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}

	outstanding, err := ledger.ListOutstanding(r.Context(), h.Store, company, ledger.PartyID(party))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list outstanding invoices", err)
		return
	}
	dtos := make([]OutstandingInvoiceDTO, len(outstanding))
	for i, o := range outstanding {
		dtos[i] = toOutstandingDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ORDERS
// =============================================================================

// CreateSalesOrder opens a DRAFT order (sales or purchase, per req.Type).
// POST /api/companies/{company}/orders
func (h *Handler) CreateSalesOrder(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	order, err := h.Orders.CreateSalesOrder(r.Context(), principalFrom(r, string(company)), ledger.CreateSalesOrderInput{
		CompanyID: company,
		PartyID:   ledger.PartyID(req.PartyID),
		Type:      ledger.OrderType(req.Type),
		Date:      req.Date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// AddItem appends a line to a DRAFT order.
// POST /api/companies/{company}/orders/{id}/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.OrderID(chi.URLParam(r, "id"))

	var req AddOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	order, err := h.Orders.AddItem(r.Context(), principalFrom(r, string(company)), company, id, ledger.AddItemInput{
		StockItemID: ledger.StockItemID(req.StockItemID),
		GodownID:    ledger.GodownID(req.GodownID),
		Quantity:    req.Quantity,
		Rate:        req.Rate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// ConfirmOrder runs credit/stock control and moves a DRAFT order to
// CONFIRMED.
// POST /api/companies/{company}/orders/{id}/confirm
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.OrderID(chi.URLParam(r, "id"))

	order, err := h.Orders.ConfirmOrder(r.Context(), principalFrom(r, string(company)), company, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// CancelOrder moves a DRAFT or CONFIRMED order to CANCELLED.
// POST /api/companies/{company}/orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	id := ledger.OrderID(chi.URLParam(r, "id"))

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	order, err := h.Orders.CancelOrder(r.Context(), principalFrom(r, string(company)), company, id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// APPROVALS
// =============================================================================

// SubmitApproval submits a target for approval.
// POST /api/companies/{company}/approvals/submit
func (h *Handler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)

	var req ApprovalActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
		return
	}

	a, err := h.Approvals.Submit(r.Context(), principalFrom(r, string(company)), company, ledger.TargetType(req.TargetType), req.TargetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApprovalDTO(a))
}

// DecideApproval returns a handler that approves (approve=true) or
// rejects (approve=false) a pending approval — the two endpoints share
// every step but the boolean ApprovalGate.Decide takes.
func (h *Handler) DecideApproval(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		company := companyParam(r)

		var req ApprovalActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequestBody", "request body is not valid JSON", err)
			return
		}

		a, err := h.Approvals.Decide(r.Context(), principalFrom(r, string(company)), company, ledger.TargetType(req.TargetType), req.TargetID, approve, req.Remarks)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApprovalDTO(a))
	}
}

// ApprovalStatus returns the current approval for a target, if any.
// GET /api/companies/{company}/approvals/status?target_type=...&target_id=...
func (h *Handler) ApprovalStatus(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	targetType := ledger.TargetType(r.URL.Query().Get("target_type"))
	targetID := r.URL.Query().Get("target_id")

	a, found, err := h.Store.GetApproval(r.Context(), company, targetType, targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to load approval", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NotFound", "no approval found for target", nil)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(a))
}

// =============================================================================
// READ MODELS
// =============================================================================

// TrialBalance folds every ledger in the company's chart of accounts for
// the given financial year.
// GET /api/companies/{company}/trial-balance?fy=...
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	fy := ledger.FinancialYearID(r.URL.Query().Get("fy"))
	if fy == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "fy query parameter is required", nil)
		return
	}

	ledgers, err := h.Store.ListLedgersForCompany(r.Context(), company)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list ledgers", err)
		return
	}
	ids := make([]ledger.LedgerID, len(ledgers))
	for i, l := range ledgers {
		ids[i] = l.ID
	}

	rows, err := ledger.TrialBalance(r.Context(), h.Store, company, fy, ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to compute trial balance", err)
		return
	}
	dtos := make([]TrialBalanceRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = TrialBalanceRowDTO{LedgerID: string(row.LedgerID), BalanceDR: row.BalanceDR, BalanceCR: row.BalanceCR, Net: row.Net}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Aging returns the company-wide aging report, served from the 24h cache
// when present (spec §4.11).
// GET /api/companies/{company}/aging?as_of=2006-01-02
func (h *Handler) Aging(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	asOf := h.Clock.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "as_of must be YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	report, err := cache.GetOrCompute(r.Context(), h.Aging, h.Store, company, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to compute aging report", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyAgingReportDTO(report))
}

// AuditTrail returns the company's audit trail, optionally narrowed to a
// single object.
// GET /api/companies/{company}/audit?object_type=...&object_id=...&limit=...
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	company := companyParam(r)
	objectType := r.URL.Query().Get("object_type")
	objectID := r.URL.Query().Get("object_id")
	limit := parseLimit(r, audit.DefaultLimit)

	var entries []ledger.AuditLog
	var err error
	if objectType != "" && objectID != "" {
		entries, err = h.Audit.ForObject(r.Context(), company, objectType, objectID, limit)
	} else {
		entries, err = h.Audit.ForCompany(r.Context(), company, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to load audit trail", err)
		return
	}

	dtos := make([]AuditLogDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditLogDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Code: code, Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the ledger error taxonomy (spec §7) to an HTTP
// status class: validation/state guards land on 4xx, not-found on 404,
// everything else is treated as an infrastructure failure (5xx).
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "ValidationFailed", verr.Error(), nil)
		return
	}
	var serr *ledger.InsufficientStockError
	if errors.As(err, &serr) {
		writeError(w, http.StatusConflict, "InsufficientStock", serr.Error(), nil)
		return
	}

	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "NotFound", "entity not found", err)
	case errors.Is(err, ledger.ErrCompanyInactive),
		errors.Is(err, ledger.ErrCompanyLocked),
		errors.Is(err, ledger.ErrFinancialYearClosed),
		errors.Is(err, ledger.ErrNoCurrentFY),
		errors.Is(err, ledger.ErrDateOutsideFY),
		errors.Is(err, ledger.ErrLedgerInactive),
		errors.Is(err, ledger.ErrStockItemInactive),
		errors.Is(err, ledger.ErrCrossCompanyRef):
		writeError(w, http.StatusForbidden, "TenantGuardViolation", err.Error(), nil)
	case errors.Is(err, ledger.ErrUnbalancedVoucher),
		errors.Is(err, ledger.ErrEmptyVoucher),
		errors.Is(err, ledger.ErrZeroAmountLine):
		writeError(w, http.StatusBadRequest, "ValidationFailed", err.Error(), nil)
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "IdempotencyConflict", err.Error(), nil)
	case errors.Is(err, ledger.ErrVoucherNotPosted),
		errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrAlreadyPosted),
		errors.Is(err, ledger.ErrInvalidVoucherState),
		errors.Is(err, ledger.ErrCannotModifyPostedVoucher),
		errors.Is(err, ledger.ErrVoucherTypeInactive),
		errors.Is(err, ledger.ErrOrderNotConfirmable),
		errors.Is(err, ledger.ErrOrderAlreadyClosed),
		errors.Is(err, ledger.ErrPaymentNotDraft):
		writeError(w, http.StatusConflict, "InvalidVoucherState", err.Error(), nil)
	case errors.Is(err, ledger.ErrApprovalPending),
		errors.Is(err, ledger.ErrApprovalRejected),
		errors.Is(err, ledger.ErrApprovalRequired),
		errors.Is(err, ledger.ErrSelfApproval):
		writeError(w, http.StatusConflict, "ApprovalWorkflow", err.Error(), nil)
	case errors.Is(err, ledger.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "NotAuthorized", err.Error(), nil)
	case errors.Is(err, ledger.ErrCreditLimitExceeded):
		writeError(w, http.StatusConflict, "CreditLimitExceeded", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "InternalError", "unexpected error", err)
	}
}
