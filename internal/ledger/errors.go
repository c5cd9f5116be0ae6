package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors, generalizing the teacher's generic/errors.go sentinel
// set (ErrInsufficientBalance, ErrDuplicateIdempotencyKey, ...) to the
// voucher/invoice/stock domain. Callers should prefer errors.Is against
// these over string matching.
var (
	ErrCompanyInactive      = errors.New("ledger: company is inactive")
	ErrCompanyLocked        = errors.New("ledger: company is locked")
	ErrFinancialYearClosed  = errors.New("ledger: financial year is closed")
	ErrNoCurrentFY          = errors.New("ledger: no current financial year for company")
	ErrDateOutsideFY        = errors.New("ledger: voucher date falls outside its financial year")
	ErrLedgerInactive       = errors.New("ledger: account is inactive")
	ErrStockItemInactive    = errors.New("ledger: stock item is inactive")
	ErrCrossCompanyRef      = errors.New("ledger: referenced entity belongs to a different company")
	ErrUnbalancedVoucher    = errors.New("ledger: voucher DR total does not equal CR total")
	ErrEmptyVoucher         = errors.New("ledger: voucher has no lines")
	ErrZeroAmountLine       = errors.New("ledger: voucher line amount must be positive")
	ErrDuplicateIdempotencyKey = errors.New("ledger: idempotency key already used by a different request")
	ErrVoucherNotPosted     = errors.New("ledger: voucher is not posted")
	ErrAlreadyReversed      = errors.New("ledger: voucher already reversed")
	ErrApprovalPending      = errors.New("ledger: target has a pending approval and cannot be posted")
	ErrApprovalRejected     = errors.New("ledger: target was rejected and cannot be posted")
	ErrSelfApproval         = errors.New("ledger: approver cannot be the requester")
	ErrNotAuthorized        = errors.New("ledger: principal lacks the required capability")
	ErrCreditLimitExceeded  = errors.New("ledger: posting would exceed party credit limit")
	ErrNotFound             = errors.New("ledger: entity not found")

	ErrAlreadyPosted             = errors.New("ledger: voucher is already posted")
	ErrInvalidVoucherState       = errors.New("ledger: voucher is not in a state that permits this operation")
	ErrCannotModifyPostedVoucher = errors.New("ledger: a posted voucher's lines cannot be modified")
	ErrVoucherTypeInactive       = errors.New("ledger: voucher type is inactive")
	ErrApprovalRequired          = errors.New("ledger: target requires approval before it can be posted")

	ErrOrderNotConfirmable = errors.New("ledger: order is not in a state that can be confirmed")
	ErrOrderAlreadyClosed  = errors.New("ledger: order is already invoiced or cancelled")
	ErrPaymentNotDraft     = errors.New("ledger: payment is not in DRAFT status")
)

// InsufficientStockError reports a FIFO allocation shortfall, generalizing
// the teacher's InsufficientBalanceError (generic/errors.go) from a single
// Amount shortfall to a per-item/godown/batch stock shortfall.
type InsufficientStockError struct {
	ItemID    StockItemID
	GodownID  GodownID
	Requested string
	Available string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for item %s in godown %s: requested %s, available %s",
		e.ItemID, e.GodownID, e.Requested, e.Available)
}

// ValidationError collects one or more field-level validation failures
// from posting a voucher or invoice, mirroring the teacher's
// ValidationErrorDetail/ValidationError pair (generic/types.go,
// generic/errors.go) with Field renamed to suit voucher lines.
type ValidationError struct {
	Violations []Violation
}

type Violation struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "ledger: validation failed"
	}
	if len(e.Violations) == 1 {
		return fmt.Sprintf("ledger: validation failed: %s: %s", e.Violations[0].Field, e.Violations[0].Message)
	}
	return fmt.Sprintf("ledger: validation failed with %d violations, first: %s: %s",
		len(e.Violations), e.Violations[0].Field, e.Violations[0].Message)
}

func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool { return len(e.Violations) > 0 }

// IsRetryable classifies whether a caller should retry the operation that
// produced err. Generalizes the teacher's
// IsRetryable (generic/errors.go): validation and authorization failures
// are never retryable, locking/contention failures are.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrDuplicateIdempotencyKey),
		errors.Is(err, ErrUnbalancedVoucher),
		errors.Is(err, ErrEmptyVoucher),
		errors.Is(err, ErrZeroAmountLine),
		errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrSelfApproval),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyPosted),
		errors.Is(err, ErrInvalidVoucherState),
		errors.Is(err, ErrCannotModifyPostedVoucher),
		errors.Is(err, ErrVoucherTypeInactive),
		errors.Is(err, ErrApprovalRequired),
		errors.Is(err, ErrOrderNotConfirmable),
		errors.Is(err, ErrOrderAlreadyClosed),
		errors.Is(err, ErrPaymentNotDraft),
		errors.Is(err, ErrCreditLimitExceeded),
		errors.Is(err, ErrDateOutsideFY),
		errors.Is(err, ErrCrossCompanyRef),
		errors.Is(err, ErrLedgerInactive),
		errors.Is(err, ErrStockItemInactive),
		errors.Is(err, ErrVoucherNotPosted),
		errors.Is(err, ErrAlreadyReversed):
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return false
	}
	return true
}

// IsNotFound generalizes the teacher's IsNotFound classifier.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
