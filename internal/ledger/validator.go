package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/tenant"
)

// PostingInput is the pre-validation shape of a voucher before it has a
// number or a status — the caller's request, not yet a Voucher. Posting
// turns one of these into a posted Voucher only after ValidatePosting
// passes.
type PostingInput struct {
	CompanyID     CompanyID
	VoucherTypeID VoucherTypeID
	Date          string // RFC3339 or "2006-01-02"; parsed by the caller
	Lines         []PostingLineInput
	IdempotencyKey string
	RequestedBy    string

	// ReversalOfVoucherID is set by ReversalService.Reverse so the new
	// voucher carries a pointer back to the voucher it reverses,
	// independent of (and in the opposite direction from) the original's
	// own ReversedVoucherID.
	ReversalOfVoucherID *VoucherID
}

type PostingLineInput struct {
	LedgerID   LedgerID
	Amount     money.Money
	EntryType  EntryType
	CostCenter string
}

// ValidatePosting runs every structural and tenant check spec §4.3
// requires before a voucher may be posted: balance, non-empty, positive
// lines, company/FY guards, and cross-company reference checks on every
// line's ledger. It performs no writes — callers run it inside the same
// transaction as the subsequent insert so the checked state can't change
// underneath it.
func ValidatePosting(ctx context.Context, s Store, p tenant.Principal, in PostingInput, date time.Time) (Company, FinancialYear, VoucherType, error) {
	var verr ValidationError

	company, err := s.GetCompany(ctx, in.CompanyID)
	if err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, fmt.Errorf("load company: %w", err)
	}
	if err := requireSameCompany(CompanyID(p.CompanyID), company.ID); err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, err
	}
	if err := requireCompanyActive(company); err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, err
	}

	feature, err := s.GetCompanyFeature(ctx, in.CompanyID)
	if err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, fmt.Errorf("load company feature: %w", err)
	}
	if err := requireCompanyUnlocked(feature); err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, err
	}

	vt, err := s.GetVoucherType(ctx, in.CompanyID, in.VoucherTypeID)
	if err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, fmt.Errorf("load voucher type: %w", err)
	}
	if !vt.IsActive {
		return Company{}, FinancialYear{}, VoucherType{}, fmt.Errorf("%w: voucher type %s", ErrVoucherTypeInactive, vt.ID)
	}

	fy, err := s.GetFinancialYearForDate(ctx, in.CompanyID, date)
	if err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, fmt.Errorf("%w: %v", ErrNoCurrentFY, err)
	}
	if err := requireOpenFY(fy, date, p); err != nil {
		return Company{}, FinancialYear{}, VoucherType{}, err
	}

	if len(in.Lines) == 0 {
		return Company{}, FinancialYear{}, VoucherType{}, ErrEmptyVoucher
	}

	var dr, cr money.Money
	for i, line := range in.Lines {
		if line.Amount.LessThanOrEqual(money.Zero) {
			verr.Add(fmt.Sprintf("lines[%d].amount", i), "amount must be positive")
			continue
		}
		ldg, err := s.GetLedger(ctx, in.CompanyID, line.LedgerID)
		if err != nil {
			verr.Add(fmt.Sprintf("lines[%d].ledger_id", i), "ledger not found")
			continue
		}
		if err := requireSameCompany(in.CompanyID, ldg.CompanyID); err != nil {
			verr.Add(fmt.Sprintf("lines[%d].ledger_id", i), "ledger belongs to a different company")
			continue
		}
		if err := requireLedgerActive(ldg); err != nil {
			verr.Add(fmt.Sprintf("lines[%d].ledger_id", i), "ledger is inactive")
			continue
		}
		switch line.EntryType {
		case EntryDR:
			dr = dr.Add(line.Amount)
		case EntryCR:
			cr = cr.Add(line.Amount)
		default:
			verr.Add(fmt.Sprintf("lines[%d].entry_type", i), "entry_type must be DR or CR")
		}
	}

	if verr.HasErrors() {
		return Company{}, FinancialYear{}, VoucherType{}, &verr
	}

	if !dr.Quantize().Equal(cr.Quantize()) {
		return Company{}, FinancialYear{}, VoucherType{}, fmt.Errorf("%w: dr=%s cr=%s", ErrUnbalancedVoucher, dr, cr)
	}

	return company, fy, vt, nil
}
