/*
Package ledger is the transactional core: posting, reversal, FIFO stock
allocation, approval workflow, and the read models derived from posted
vouchers. It is the generalization of the teacher's generic+timeoff
packages to a double-entry accounting and inventory domain: where the
teacher's Ledger is a flat append-only transaction log with a single
Amount type, this package layers a Voucher/VoucherLine structure with
DR/CR vocabulary, per-company sequencing, and FIFO batch allocation on
top of the same append-only, derive-don't-mutate philosophy.

CRITICAL INVARIANTS (carried from the teacher's generic/ledger.go):
  1. Posted voucher lines are immutable. Corrections are reversals.
  2. Balances are derived, never hand-edited, and updated only inside
     the same transaction that writes the movement/line they derive from.
  3. Every write that can be retried carries an idempotency key; the
     store's unique constraint is the final arbiter of "exactly once".

All entities are company-scoped (spec §3): every business row carries a
CompanyID and every selector takes company as an explicit first argument
— there is no "default manager" doing invisible scoping (§9).
*/
package ledger

import (
	"time"

	"github.com/ledgercore/core/internal/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	CompanyID        string
	FinancialYearID  string
	LedgerID         string
	PartyID          string
	StockItemID      string
	GodownID         string
	StockBatchID     string
	VoucherTypeID    string
	VoucherID        string
	InvoiceID        string
	PaymentID        string
	ApprovalID       string
	IntegrationEventID string
	OrderID          string
)

// =============================================================================
// COMPANY / FEATURE / FINANCIAL YEAR
// =============================================================================

type Company struct {
	ID            CompanyID
	Code          string
	BaseCurrency  string
	IsActive      bool
}

type FeatureFlags struct {
	Inventory  bool
	Accounting bool
}

type CompanyFeature struct {
	CompanyID  CompanyID
	Flags      FeatureFlags
	Locked     bool
	WebhookURL string // empty = no webhook transport configured
}

type FinancialYear struct {
	ID        FinancialYearID
	CompanyID CompanyID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsCurrent bool
	IsClosed  bool
}

// Contains reports whether d falls within [StartDate, EndDate] inclusive,
// per spec §4.3 ("Voucher date lies within its financial year") and the
// boundary case in §8 (date == end_date is accepted).
func (fy FinancialYear) Contains(d time.Time) bool {
	start := fy.StartDate
	end := fy.EndDate
	return !d.Before(start) && !d.After(end)
}

// =============================================================================
// SEQUENCE
// =============================================================================

type Sequence struct {
	CompanyID CompanyID
	Key       string // "{company_id}:{voucher_type_code}:{fy_id}"
	Prefix    string
	LastValue int64
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type AccountType string

const (
	AccountAsset     AccountType = "ASSET"
	AccountLiability AccountType = "LIABILITY"
	AccountEquity    AccountType = "EQUITY"
	AccountIncome    AccountType = "INCOME"
	AccountExpense   AccountType = "EXPENSE"
)

type Ledger_ struct { // trailing underscore avoids colliding with the package name "ledger"
	ID        LedgerID
	CompanyID CompanyID
	Code      string
	Group     string
	Type      AccountType
	IsActive  bool
}

// =============================================================================
// PARTY
// =============================================================================

type PartyType string

const (
	PartyCustomer PartyType = "CUSTOMER"
	PartySupplier PartyType = "SUPPLIER"
	PartyBoth     PartyType = "BOTH"
)

type Party struct {
	ID          PartyID
	CompanyID   CompanyID
	Type        PartyType
	LedgerID    LedgerID // control ledger, 1:1, delete-protected
	CreditLimit *money.Money
	CreditDays  int
}

// =============================================================================
// INVENTORY MASTERS
// =============================================================================

type StockItem struct {
	ID          StockItemID
	CompanyID   CompanyID
	SKU         string
	UOM         string
	IsStockItem bool
	IsActive    bool
}

type Godown struct {
	ID        GodownID
	CompanyID CompanyID
	Code      string
}

type StockBatch struct {
	ID          StockBatchID
	CompanyID   CompanyID
	ItemID      StockItemID
	BatchNumber string
	MfgDate     *time.Time
	ExpDate     *time.Time
	CreatedAt   time.Time
}

// =============================================================================
// STOCK MOVEMENT / BALANCE
// =============================================================================

type StockMovement struct {
	ID           string
	CompanyID    CompanyID
	VoucherID    VoucherID
	ItemID       StockItemID
	FromGodownID *GodownID
	ToGodownID   *GodownID
	BatchID      *StockBatchID
	Quantity     money.Money // quantity > 0
	Rate         money.Money
	MovementDate time.Time
}

// IsOutbound reports whether this movement reduces stock at FromGodownID
// (a pure OUT, not the inbound leg of a transfer).
func (m StockMovement) IsOutbound() bool {
	return m.FromGodownID != nil && m.ToGodownID == nil
}

func (m StockMovement) IsInbound() bool {
	return m.ToGodownID != nil && m.FromGodownID == nil
}

func (m StockMovement) IsTransfer() bool {
	return m.FromGodownID != nil && m.ToGodownID != nil
}

// StockBalanceKey identifies one derived StockBalance row.
type StockBalanceKey struct {
	CompanyID CompanyID
	ItemID    StockItemID
	GodownID  GodownID
	BatchID   StockBatchID // empty string when balance is not batch-scoped
}

type StockBalance struct {
	Key             StockBalanceKey
	QuantityOnHand  money.Money
	LastMovementID  string
}

// =============================================================================
// LEDGER BALANCE
// =============================================================================

type LedgerBalanceKey struct {
	CompanyID       CompanyID
	LedgerID        LedgerID
	FinancialYearID FinancialYearID
}

type LedgerBalance struct {
	Key                 LedgerBalanceKey
	BalanceDR           money.Money
	BalanceCR           money.Money
	LastPostedVoucherID VoucherID
}

// Net returns BalanceDR - BalanceCR, the conventional signed balance.
func (b LedgerBalance) Net() money.Money { return b.BalanceDR.Sub(b.BalanceCR) }

// =============================================================================
// VOUCHER TYPE
// =============================================================================

type VoucherCategory string

const (
	CategoryJournal  VoucherCategory = "JOURNAL"
	CategoryPayment  VoucherCategory = "PAYMENT"
	CategoryReceipt  VoucherCategory = "RECEIPT"
	CategoryContra   VoucherCategory = "CONTRA"
	CategorySales    VoucherCategory = "SALES"
	CategoryPurchase VoucherCategory = "PURCHASE"
)

type VoucherType struct {
	ID           VoucherTypeID
	CompanyID    CompanyID
	Code         string
	Category     VoucherCategory
	IsAccounting bool
	IsInventory  bool
	IsActive     bool
}

// =============================================================================
// VOUCHER / VOUCHER LINE
// =============================================================================

type VoucherStatus string

const (
	VoucherDraft     VoucherStatus = "DRAFT"
	VoucherPosted    VoucherStatus = "POSTED"
	VoucherReversed  VoucherStatus = "REVERSED"
	VoucherCancelled VoucherStatus = "CANCELLED"
)

type EntryType string

const (
	EntryDR EntryType = "DR"
	EntryCR EntryType = "CR"
)

type Voucher struct {
	ID                VoucherID
	CompanyID         CompanyID
	VoucherTypeID     VoucherTypeID
	FinancialYearID   FinancialYearID
	VoucherNumber     string // "{prefix}-{n}", empty until posted
	Date              time.Time
	Status            VoucherStatus
	Lines             []VoucherLine

	ReversedVoucherID *VoucherID // set on the original once reversed
	ReversalReason    string
	ReversalUser      string
	ReversedAt        *time.Time

	// ReversalOfVoucherID points the other direction: set on the NEW
	// voucher created by a reversal, back to the original it reverses.
	ReversalOfVoucherID *VoucherID
}

type VoucherLine struct {
	VoucherID     VoucherID
	LineNo        int
	LedgerID      LedgerID
	Amount        money.Money // > 0
	EntryType     EntryType
	CostCenter    string
	AgainstVoucher *VoucherID
}

// =============================================================================
// INVOICE
// =============================================================================

type InvoiceType string

const (
	InvoiceSales    InvoiceType = "SALES"
	InvoicePurchase InvoiceType = "PURCHASE"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusPosted        InvoiceStatus = "POSTED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

type InvoiceLine struct {
	LineNo      int
	StockItemID *StockItemID // nil for a pure service line
	GodownID    *GodownID
	Quantity    money.Money
	Rate        money.Money
	LedgerID    LedgerID // revenue/expense ledger for this line
	TaxLedgerID *LedgerID
	TaxAmount   money.Money
}

type Invoice struct {
	ID             InvoiceID
	CompanyID      CompanyID
	PartyID        PartyID
	Type           InvoiceType
	InvoiceNumber  string
	Date           time.Time
	DueDate        time.Time
	SalesOrderID   string
	PurchaseOrderID string
	VoucherID      *VoucherID // 1:1 after posting
	Lines          []InvoiceLine
	TotalValue     money.Money
	AmountReceived money.Money
	Status         InvoiceStatus
}

// Outstanding is total_value - amount_received (spec GLOSSARY).
func (inv Invoice) Outstanding() money.Money {
	return inv.TotalValue.Sub(inv.AmountReceived)
}

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT"
	PaymentTypeReceipt PaymentType = "RECEIPT"
)

type PaymentStatus string

const (
	PaymentStatusDraft  PaymentStatus = "DRAFT"
	PaymentStatusPosted PaymentStatus = "POSTED"
)

type Payment struct {
	ID          PaymentID
	CompanyID   CompanyID
	PartyID     PartyID
	VoucherID   VoucherID
	Type        PaymentType
	BankAccount string
	PaymentMode string
	Status      PaymentStatus
	Lines       []PaymentLine
}

type PaymentLine struct {
	PaymentID     PaymentID
	LineID        string
	InvoiceID     InvoiceID
	AmountApplied money.Money // > 0
}

// =============================================================================
// ORDER
// =============================================================================

// OrderType mirrors InvoiceType: the same order shape serves sales and
// purchase orders, discriminated by Type (spec §9 REDESIGN FLAGS,
// "Polymorphic OrderItem" — this repo takes the single-entity-with-
// discriminator option, not the two-distinct-entities option).
type OrderType string

const (
	OrderSales    OrderType = "SALES"
	OrderPurchase OrderType = "PURCHASE"
)

type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderInvoiced  OrderStatus = "INVOICED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type OrderLine struct {
	LineNo      int
	StockItemID StockItemID
	GodownID    GodownID
	Quantity    money.Money // > 0
	Rate        money.Money
}

type Order struct {
	ID           OrderID
	CompanyID    CompanyID
	PartyID      PartyID
	Type         OrderType
	Status       OrderStatus
	Date         time.Time
	Lines        []OrderLine
	CancelReason string
}

// Total sums Quantity*Rate across every line — the amount confirm_order
// checks against the party's credit limit (spec §4.10).
func (o Order) Total() money.Money {
	var total money.Money
	for _, l := range o.Lines {
		total = total.Add(money.New(l.Quantity.Decimal().Mul(l.Rate.Decimal())))
	}
	return total.Quantize()
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

type IdempotencyKey struct {
	Key       string
	CompanyID CompanyID
	VoucherID VoucherID
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type TargetType string

const (
	TargetVoucher TargetType = "VOUCHER"
	TargetInvoice TargetType = "INVOICE"
	TargetPayment TargetType = "PAYMENT"
)

type Approval struct {
	ID          ApprovalID
	CompanyID   CompanyID
	TargetType  TargetType
	TargetID    string
	Status      ApprovalStatus
	RequestedBy string
	ApprovedBy  string
	Remarks     string
}

type ApprovalRule struct {
	CompanyID               CompanyID
	TargetType              TargetType
	ApprovalRequired        bool
	ThresholdAmount         *money.Money
	AutoApproveBelowThreshold bool
}

// =============================================================================
// INTEGRATION EVENT
// =============================================================================

type EventStatus string

const (
	EventPending    EventStatus = "PENDING"
	EventProcessing EventStatus = "PROCESSING"
	EventSuccess    EventStatus = "SUCCESS"
	EventFailed     EventStatus = "FAILED"
	EventRetry      EventStatus = "RETRY"
)

type IntegrationEvent struct {
	ID            IntegrationEventID
	CompanyID     CompanyID
	EventType     string
	Payload       []byte // JSON
	Status        EventStatus
	Attempts      int
	MaxAttempts   int
	NextRetryAt   time.Time
	LastError     string
	SourceObjectID string
	ProcessedAt   *time.Time
}

// =============================================================================
// AUDIT LOG
// =============================================================================

type AuditActionType string

const (
	AuditPosted            AuditActionType = "POSTED"
	AuditReversed          AuditActionType = "REVERSED"
	AuditApprovalSubmitted AuditActionType = "APPROVAL_SUBMITTED"
	AuditApprovalApproved  AuditActionType = "APPROVAL_APPROVED"
	AuditApprovalRejected  AuditActionType = "APPROVAL_REJECTED"
	AuditPostCommitFailure AuditActionType = "POST_COMMIT_FAILURE"
	AuditOrderConfirmed    AuditActionType = "ORDER_CONFIRMED"
	AuditOrderCancelled    AuditActionType = "ORDER_CANCELLED"
)

type AuditLog struct {
	ID         string
	CompanyID  CompanyID
	Actor      string
	ActionType AuditActionType
	ObjectType string
	ObjectID   string
	Changes    map[string]any
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}
