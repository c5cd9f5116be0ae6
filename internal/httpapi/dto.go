/*
dto.go - request/response shapes for the ledger HTTP surface.

Decouples the wire contract from internal/ledger's domain types the way
the teacher's api/dto.go decouples EmployeeDTO from generic.Entity: *DTO
for responses, *Request for request bodies. Money fields use money.Money
directly rather than float64 — its own MarshalJSON already renders the
quantized decimal, so there's no precision loss to work around the way
the teacher's DTOs work around generic.Amount with plain float64s.
*/
package httpapi

import (
	"time"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
)

// ErrorResponse is the structured error body spec §7 requires:
// {code, message, details?}.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PostVoucherRequest is the body for POST /api/companies/{company}/vouchers.
type PostVoucherRequest struct {
	VoucherTypeID  string                  `json:"voucher_type_id"`
	Date           string                  `json:"date"`
	Lines          []PostVoucherLineInput  `json:"lines"`
	IdempotencyKey string                  `json:"idempotency_key"`
}

type PostVoucherLineInput struct {
	LedgerID   string      `json:"ledger_id"`
	Amount     money.Money `json:"amount"`
	EntryType  string      `json:"entry_type"`
	CostCenter string      `json:"cost_center,omitempty"`
}

// VoucherDTO is the response shape for a posted voucher, including its
// lines and, if applicable, its reversal linkage in both directions.
type VoucherDTO struct {
	ID                  string          `json:"id"`
	CompanyID           string          `json:"company_id"`
	VoucherTypeID       string          `json:"voucher_type_id"`
	FinancialYearID     string          `json:"financial_year_id"`
	VoucherNumber       string          `json:"voucher_number"`
	Date                string          `json:"date"`
	Status              string          `json:"status"`
	Lines               []VoucherLineDTO `json:"lines"`
	ReversedVoucherID   string          `json:"reversed_voucher_id,omitempty"`
	ReversalOfVoucherID string          `json:"reversal_of_voucher_id,omitempty"`
	ReversalReason      string          `json:"reversal_reason,omitempty"`
	Replayed            bool            `json:"replayed,omitempty"`
}

type VoucherLineDTO struct {
	LineNo     int         `json:"line_no"`
	LedgerID   string      `json:"ledger_id"`
	Amount     money.Money `json:"amount"`
	EntryType  string      `json:"entry_type"`
	CostCenter string      `json:"cost_center,omitempty"`
}

func toVoucherDTO(v ledger.Voucher, replayed bool) VoucherDTO {
	dto := VoucherDTO{
		ID:              string(v.ID),
		CompanyID:       string(v.CompanyID),
		VoucherTypeID:   string(v.VoucherTypeID),
		FinancialYearID: string(v.FinancialYearID),
		VoucherNumber:   v.VoucherNumber,
		Date:            v.Date.Format("2006-01-02"),
		Status:          string(v.Status),
		ReversalReason:  v.ReversalReason,
		Replayed:        replayed,
	}
	if v.ReversedVoucherID != nil {
		dto.ReversedVoucherID = string(*v.ReversedVoucherID)
	}
	if v.ReversalOfVoucherID != nil {
		dto.ReversalOfVoucherID = string(*v.ReversalOfVoucherID)
	}
	for _, l := range v.Lines {
		dto.Lines = append(dto.Lines, VoucherLineDTO{
			LineNo:     l.LineNo,
			LedgerID:   string(l.LedgerID),
			Amount:     l.Amount,
			EntryType:  string(l.EntryType),
			CostCenter: l.CostCenter,
		})
	}
	return dto
}

// ReverseVoucherRequest is the body for POST /vouchers/{id}/reverse.
// AllowOverride lets an admin reverse into a closed financial year;
// anyone else passing it true is rejected anyway (spec §4.7 edge case).
type ReverseVoucherRequest struct {
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	AllowOverride  bool   `json:"allow_override,omitempty"`
}

// PostInvoiceRequest is the body for POST /api/companies/{company}/invoices.
type PostInvoiceRequest struct {
	PartyID          string             `json:"party_id"`
	Type             string             `json:"type"`
	VoucherTypeID    string             `json:"voucher_type_id"`
	Date             string             `json:"date"`
	DueDate          string             `json:"due_date"`
	PartyLedgerID    string             `json:"party_ledger_id"`
	DefaultTaxLedgerID string           `json:"default_tax_ledger_id,omitempty"`
	IdempotencyKey   string             `json:"idempotency_key"`
	Lines            []InvoiceLineInput `json:"lines"`
}

type InvoiceLineInput struct {
	StockItemID string      `json:"stock_item_id,omitempty"`
	GodownID    string      `json:"godown_id,omitempty"`
	Quantity    money.Money `json:"quantity"`
	Rate        money.Money `json:"rate"`
	LedgerID    string      `json:"ledger_id"`
	TaxLedgerID string      `json:"tax_ledger_id,omitempty"`
	TaxAmount   money.Money `json:"tax_amount,omitempty"`
}

type InvoiceDTO struct {
	ID              string `json:"id"`
	CompanyID       string `json:"company_id"`
	PartyID         string `json:"party_id"`
	Type            string `json:"type"`
	InvoiceNumber   string `json:"invoice_number"`
	Date            string `json:"date"`
	DueDate         string `json:"due_date"`
	VoucherID       string `json:"voucher_id,omitempty"`
	TotalValue      money.Money `json:"total_value"`
	AmountReceived  money.Money `json:"amount_received"`
	Status          string `json:"status"`
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:             string(inv.ID),
		CompanyID:      string(inv.CompanyID),
		PartyID:        string(inv.PartyID),
		Type:           string(inv.Type),
		InvoiceNumber:  inv.InvoiceNumber,
		Date:           inv.Date.Format("2006-01-02"),
		DueDate:        inv.DueDate.Format("2006-01-02"),
		TotalValue:     inv.TotalValue,
		AmountReceived: inv.AmountReceived,
		Status:         string(inv.Status),
	}
	if inv.VoucherID != nil {
		dto.VoucherID = string(*inv.VoucherID)
	}
	return dto
}

// PostPaymentRequest is the body for POST /api/companies/{company}/payments.
// PartyLedgerID/BankLedgerID pick which ledgers the balancing voucher
// posts against, the same way PostInvoiceRequest.PartyLedgerID does —
// neither is stored on Party or Company, so the caller supplies them
// per request.
type PostPaymentRequest struct {
	PartyID        string               `json:"party_id"`
	Type           string               `json:"type"`
	VoucherTypeID  string               `json:"voucher_type_id"`
	Date           string               `json:"date"`
	PartyLedgerID  string               `json:"party_ledger_id"`
	BankLedgerID   string               `json:"bank_ledger_id"`
	BankAccount    string               `json:"bank_account,omitempty"`
	PaymentMode    string               `json:"payment_mode,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
	Lines          []PaymentLineRequest `json:"lines"`
}

type PaymentLineRequest struct {
	InvoiceID     string      `json:"invoice_id"`
	AmountApplied money.Money `json:"amount_applied"`
}

type PaymentDTO struct {
	ID          string           `json:"id"`
	CompanyID   string           `json:"company_id"`
	PartyID     string           `json:"party_id"`
	VoucherID   string           `json:"voucher_id"`
	Type        string           `json:"type"`
	BankAccount string           `json:"bank_account,omitempty"`
	PaymentMode string           `json:"payment_mode,omitempty"`
	Status      string           `json:"status"`
	Lines       []PaymentLineDTO `json:"lines"`
}

type PaymentLineDTO struct {
	InvoiceID     string      `json:"invoice_id"`
	AmountApplied money.Money `json:"amount_applied"`
}

func toPaymentDTO(p ledger.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:          string(p.ID),
		CompanyID:   string(p.CompanyID),
		PartyID:     string(p.PartyID),
		VoucherID:   string(p.VoucherID),
		Type:        string(p.Type),
		BankAccount: p.BankAccount,
		PaymentMode: p.PaymentMode,
		Status:      string(p.Status),
		Lines:       make([]PaymentLineDTO, len(p.Lines)),
	}
	for i, l := range p.Lines {
		dto.Lines[i] = PaymentLineDTO{
			InvoiceID:     string(l.InvoiceID),
			AmountApplied: l.AmountApplied,
		}
	}
	return dto
}

// =============================================================================
// PAYMENT DRAFTS
// =============================================================================

// CreatePaymentDraftRequest is the body for POST /payments/drafts.
type CreatePaymentDraftRequest struct {
	PartyID     string `json:"party_id"`
	Type        string `json:"type"`
	BankAccount string `json:"bank_account,omitempty"`
	PaymentMode string `json:"payment_mode,omitempty"`
}

// AllocatePaymentRequest is the body for POST /payments/drafts/{id}/allocations.
type AllocatePaymentRequest struct {
	InvoiceID     string      `json:"invoice_id"`
	AmountApplied money.Money `json:"amount_applied"`
}

// PostPaymentDraftRequest is the body for POST /payments/drafts/{id}/post.
type PostPaymentDraftRequest struct {
	VoucherTypeID  string `json:"voucher_type_id"`
	Date           string `json:"date"`
	PartyLedgerID  string `json:"party_ledger_id"`
	BankLedgerID   string `json:"bank_ledger_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// =============================================================================
// ORDERS
// =============================================================================

// CreateOrderRequest is the body for POST /orders.
type CreateOrderRequest struct {
	PartyID string `json:"party_id"`
	Type    string `json:"type"`
	Date    string `json:"date"`
}

// AddOrderItemRequest is the body for POST /orders/{id}/items.
type AddOrderItemRequest struct {
	StockItemID string      `json:"stock_item_id"`
	GodownID    string      `json:"godown_id"`
	Quantity    money.Money `json:"quantity"`
	Rate        money.Money `json:"rate"`
}

// CancelOrderRequest is the body for POST /orders/{id}/cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type OrderLineDTO struct {
	LineNo      int         `json:"line_no"`
	StockItemID string      `json:"stock_item_id"`
	GodownID    string      `json:"godown_id"`
	Quantity    money.Money `json:"quantity"`
	Rate        money.Money `json:"rate"`
}

type OrderDTO struct {
	ID           string         `json:"id"`
	CompanyID    string         `json:"company_id"`
	PartyID      string         `json:"party_id"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Lines        []OrderLineDTO `json:"lines"`
	Total        money.Money    `json:"total"`
	CancelReason string         `json:"cancel_reason,omitempty"`
}

func toOrderDTO(o ledger.Order) OrderDTO {
	dto := OrderDTO{
		ID:           string(o.ID),
		CompanyID:    string(o.CompanyID),
		PartyID:      string(o.PartyID),
		Type:         string(o.Type),
		Status:       string(o.Status),
		Date:         o.Date.Format("2006-01-02"),
		Total:        o.Total(),
		CancelReason: o.CancelReason,
	}
	for _, l := range o.Lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			LineNo:      l.LineNo,
			StockItemID: string(l.StockItemID),
			GodownID:    string(l.GodownID),
			Quantity:    l.Quantity,
			Rate:        l.Rate,
		})
	}
	return dto
}

// ApprovalActionRequest is the shared body for submit/approve/reject.
type ApprovalActionRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Remarks    string `json:"remarks,omitempty"`
}

type ApprovalDTO struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	Status      string `json:"status"`
	RequestedBy string `json:"requested_by"`
	ApprovedBy  string `json:"approved_by,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
}

func toApprovalDTO(a ledger.Approval) ApprovalDTO {
	return ApprovalDTO{
		ID:          string(a.ID),
		CompanyID:   string(a.CompanyID),
		TargetType:  string(a.TargetType),
		TargetID:    a.TargetID,
		Status:      string(a.Status),
		RequestedBy: a.RequestedBy,
		ApprovedBy:  a.ApprovedBy,
		Remarks:     a.Remarks,
	}
}

// TrialBalanceRowDTO mirrors ledger.TrialBalanceRow for the wire.
type TrialBalanceRowDTO struct {
	LedgerID  string      `json:"ledger_id"`
	BalanceDR money.Money `json:"balance_dr"`
	BalanceCR money.Money `json:"balance_cr"`
	Net       money.Money `json:"net"`
}

// OutstandingInvoiceDTO mirrors ledger.OutstandingInvoice for the wire.
type OutstandingInvoiceDTO struct {
	InvoiceID      string      `json:"invoice_id"`
	InvoiceNumber  string      `json:"invoice_number"`
	TotalValue     money.Money `json:"total_value"`
	AmountReceived money.Money `json:"amount_received"`
	Outstanding    money.Money `json:"outstanding"`
	DueDate        string      `json:"due_date"`
}

func toOutstandingDTO(o ledger.OutstandingInvoice) OutstandingInvoiceDTO {
	return OutstandingInvoiceDTO{
		InvoiceID:      string(o.InvoiceID),
		InvoiceNumber:  o.InvoiceNumber,
		TotalValue:     o.TotalValue,
		AmountReceived: o.AmountReceived,
		Outstanding:    o.Outstanding,
		DueDate:        o.DueDate,
	}
}

// AgingRowDTO mirrors ledger.AgingRow for the wire.
type AgingRowDTO struct {
	InvoiceID     string      `json:"invoice_id"`
	InvoiceNumber string      `json:"invoice_number"`
	Outstanding   money.Money `json:"outstanding"`
	DaysPastDue   int         `json:"days_past_due"`
	Bucket        string      `json:"bucket"`
}

func toAgingRowDTO(a ledger.AgingRow) AgingRowDTO {
	return AgingRowDTO{
		InvoiceID:     string(a.InvoiceID),
		InvoiceNumber: a.InvoiceNumber,
		Outstanding:   a.Outstanding,
		DaysPastDue:   a.DaysPastDue,
		Bucket:        string(a.Bucket),
	}
}

// CompanyAgingReportDTO mirrors ledger.CompanyAgingReport for the wire.
type CompanyAgingReportDTO struct {
	Groups     []PartyAgingGroupDTO `json:"groups"`
	Total      money.Money          `json:"total"`
	IsBalanced bool                 `json:"is_balanced"`
}

type PartyAgingGroupDTO struct {
	PartyID string        `json:"party_id"`
	Rows    []AgingRowDTO `json:"rows"`
	Total   money.Money   `json:"total"`
}

func toCompanyAgingReportDTO(r ledger.CompanyAgingReport) CompanyAgingReportDTO {
	dto := CompanyAgingReportDTO{Total: r.Total, IsBalanced: r.IsBalanced}
	for _, g := range r.Groups {
		group := PartyAgingGroupDTO{PartyID: string(g.PartyID), Total: g.Total}
		for _, row := range g.Rows {
			group.Rows = append(group.Rows, toAgingRowDTO(row))
		}
		dto.Groups = append(dto.Groups, group)
	}
	return dto
}

// AuditLogDTO mirrors ledger.AuditLog for the wire.
type AuditLogDTO struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	ActionType string         `json:"action_type"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

func toAuditLogDTO(a ledger.AuditLog) AuditLogDTO {
	return AuditLogDTO{
		ID:         a.ID,
		Actor:      a.Actor,
		ActionType: string(a.ActionType),
		ObjectType: a.ObjectType,
		ObjectID:   a.ObjectID,
		Changes:    a.Changes,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}
