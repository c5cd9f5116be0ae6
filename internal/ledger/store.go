package ledger

import (
	"context"
	"time"

	"github.com/ledgercore/core/internal/money"
)

// Store is the persistence boundary for the ledger package, generalizing
// the teacher's generic.Store/generic.TxStore (append-only Append/Load,
// plus WithTx for the read-modify-write sequences FIFO allocation and
// balance updates need). Concrete implementations live in
// internal/store/postgres (production, SELECT ... FOR UPDATE) and
// internal/store/sqlite (dev/single-writer, BEGIN IMMEDIATE).
//
// Every method takes CompanyID explicitly; there is no ambient "current
// company" (spec §9) — callers that skip the company argument don't
// compile.
type Store interface {
	// WithTx runs fn inside a single database transaction, scoped to a
	// Store handle bound to that transaction. Implementations roll back
	// on any returned error.
	WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	GetCompany(ctx context.Context, id CompanyID) (Company, error)
	GetCompanyFeature(ctx context.Context, id CompanyID) (CompanyFeature, error)

	GetCurrentFinancialYear(ctx context.Context, company CompanyID) (FinancialYear, error)
	GetFinancialYearForDate(ctx context.Context, company CompanyID, date time.Time) (FinancialYear, error)
	GetFinancialYear(ctx context.Context, company CompanyID, id FinancialYearID) (FinancialYear, error)
	CloseFinancialYear(ctx context.Context, company CompanyID, id FinancialYearID) error
	ReopenFinancialYear(ctx context.Context, company CompanyID, id FinancialYearID) error

	// NextSequenceValue atomically increments and returns the next value
	// for key, row-locked for the duration of the enclosing transaction
	// (spec §4.2: "concurrent posts within the same company+voucher_type
	// never receive the same number").
	NextSequenceValue(ctx context.Context, company CompanyID, key string, prefix string) (int64, error)

	GetLedger(ctx context.Context, company CompanyID, id LedgerID) (Ledger_, error)
	GetParty(ctx context.Context, company CompanyID, id PartyID) (Party, error)
	GetStockItem(ctx context.Context, company CompanyID, id StockItemID) (StockItem, error)
	GetGodown(ctx context.Context, company CompanyID, id GodownID) (Godown, error)
	GetVoucherType(ctx context.Context, company CompanyID, id VoucherTypeID) (VoucherType, error)

	// InsertVoucher persists a voucher and its lines atomically, in
	// whatever Status the caller sets. Every posting path inserts a DRAFT
	// and finalizes it with MarkVoucherPosted. Callers must already hold
	// the enclosing transaction (via WithTx).
	InsertVoucher(ctx context.Context, v Voucher) error
	GetVoucher(ctx context.Context, company CompanyID, id VoucherID) (Voucher, error)
	// GetVoucherForUpdate is GetVoucher with a row lock held for the
	// duration of the enclosing transaction (spec §5 lock order item 1:
	// "target voucher row, exclusive") — postgres issues SELECT ... FOR
	// UPDATE; sqlite/memory rely on their existing whole-transaction
	// serialization. PostDraft and Reverse use this instead of the
	// unlocked GetVoucher so two concurrent finalizers of the same
	// voucher are totally ordered rather than racing.
	GetVoucherForUpdate(ctx context.Context, company CompanyID, id VoucherID) (Voucher, error)
	// MarkVoucherPosted finalizes a DRAFT voucher in place: sets its
	// voucher_number, flips Status to POSTED, and stamps PostedAt. The
	// update is guarded by `WHERE status = 'DRAFT'`; ErrAlreadyPosted is
	// returned if no row matched, the backstop against a second
	// concurrent finalizer slipping past the GetVoucherForUpdate lock
	// window (spec §8: "concurrent posts against the same voucher are
	// totally ordered; first post wins, second sees AlreadyPosted").
	MarkVoucherPosted(ctx context.Context, company CompanyID, id VoucherID, voucherNumber string, postedAt time.Time) error
	MarkVoucherReversed(ctx context.Context, company CompanyID, id VoucherID, reversal VoucherID, reason, user string, at time.Time) error

	// ListVouchers backs the list_vouchers selector (spec §6), optionally
	// narrowed to a financial year and/or status; empty fy/status means
	// "any". Ordered newest-first by voucher_date, capped at limit.
	ListVouchers(ctx context.Context, company CompanyID, fy FinancialYearID, status VoucherStatus, limit int) ([]Voucher, error)

	// ListLedgersForCompany backs trial_balance (spec §6), which needs the
	// full chart of accounts to fold LedgerBalance over.
	ListLedgersForCompany(ctx context.Context, company CompanyID) ([]Ledger_, error)

	GetLedgerBalance(ctx context.Context, key LedgerBalanceKey) (LedgerBalance, error)
	UpsertLedgerBalance(ctx context.Context, b LedgerBalance) error

	// ListOpenStockBatchesFIFO returns batches of item in godown ordered
	// FIFO (oldest CreatedAt first; MfgDate is not consulted) with their current balance,
	// locked for update within the enclosing transaction.
	ListOpenStockBatchesFIFO(ctx context.Context, company CompanyID, item StockItemID, godown GodownID) ([]BatchBalance, error)
	GetStockBalance(ctx context.Context, key StockBalanceKey) (StockBalance, error)
	UpsertStockBalance(ctx context.Context, b StockBalance) error
	InsertStockMovement(ctx context.Context, m StockMovement) error
	InsertStockBatch(ctx context.Context, b StockBatch) error

	InsertInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, company CompanyID, id InvoiceID) (Invoice, error)
	UpdateInvoiceReceived(ctx context.Context, company CompanyID, id InvoiceID, received money.Money, status InvoiceStatus) error
	ListOutstandingInvoices(ctx context.Context, company CompanyID, party PartyID) ([]Invoice, error)
	// ListOutstandingInvoicesForCompany backs the company-wide aging
	// aggregate (spec §4.11 "per-party grouping and a company-level
	// total"), which needs every open invoice for the company rather
	// than one party at a time.
	ListOutstandingInvoicesForCompany(ctx context.Context, company CompanyID) ([]Invoice, error)

	InsertPayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, company CompanyID, id PaymentID) (Payment, error)
	// GetPaymentForUpdate locks the payment row so allocate_payment/
	// remove_allocation/post_payment can't race each other over the same
	// draft (mirrors GetVoucherForUpdate).
	GetPaymentForUpdate(ctx context.Context, company CompanyID, id PaymentID) (Payment, error)
	// UpdatePayment overwrites a payment's mutable fields (Status, Lines,
	// VoucherID once posted) — the single write path for the
	// create_payment_draft -> allocate_payment/remove_allocation ->
	// post_payment lifecycle (spec §6).
	UpdatePayment(ctx context.Context, p Payment) error
	// ListPaymentsForInvoice returns every payment (any status) holding a
	// line against invoiceID, for recomputing amount_received on payment
	// post and on voucher reversal (spec §4.9: "whenever a voucher
	// connected to this invoice transitions into or out of POSTED").
	ListPaymentsForInvoice(ctx context.Context, company CompanyID, invoiceID InvoiceID) ([]Payment, error)
	// GetPaymentByVoucher looks a payment back up by its 1:1 voucher, for
	// PaymentService.PostPayment's idempotent-replay path (the replayed
	// voucher already has a payment; there is no new one to report).
	GetPaymentByVoucher(ctx context.Context, company CompanyID, voucherID VoucherID) (Payment, bool, error)

	// CheckIdempotencyKey reports the VoucherID already associated with
	// key, if any (spec §4.5: replay returns the original result instead
	// of re-posting).
	CheckIdempotencyKey(ctx context.Context, company CompanyID, key string) (VoucherID, bool, error)
	ReserveIdempotencyKey(ctx context.Context, k IdempotencyKey) error

	InsertApproval(ctx context.Context, a Approval) error
	GetApproval(ctx context.Context, company CompanyID, targetType TargetType, targetID string) (Approval, bool, error)
	UpdateApprovalStatus(ctx context.Context, company CompanyID, id ApprovalID, status ApprovalStatus, approvedBy, remarks string) error
	GetApprovalRule(ctx context.Context, company CompanyID, t TargetType) (ApprovalRule, bool, error)

	EnqueueIntegrationEvent(ctx context.Context, e IntegrationEvent) error
	AppendAuditLog(ctx context.Context, a AuditLog) error

	// ListAuditLogs returns a company's audit trail newest-first, optionally
	// narrowed to a single object (objectType/objectID both non-empty) —
	// the query internal/audit's reader exposes for compliance review of a
	// specific voucher, approval, or reversal.
	ListAuditLogs(ctx context.Context, company CompanyID, objectType, objectID string, limit int) ([]AuditLog, error)

	// Orders back the Orders operation group (spec §6): create_sales_order
	// /add_item build up a DRAFT order, confirm_order locks and transitions
	// it after credit/stock checks, cancel_order terminates it.
	InsertOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, company CompanyID, id OrderID) (Order, error)
	// GetOrderForUpdate locks the order row for confirm_order/cancel_order,
	// mirroring GetVoucherForUpdate.
	GetOrderForUpdate(ctx context.Context, company CompanyID, id OrderID) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
}

// BatchBalance pairs a StockBatch with its current on-hand quantity, the
// shape ListOpenStockBatchesFIFO returns — avoids a second round trip per
// batch during allocation.
type BatchBalance struct {
	Batch          StockBatch
	QuantityOnHand money.Money
}
