package ledger

import (
	"context"
	"fmt"
)

// SequenceKey builds the composite key spec §4.2 numbers vouchers by:
// "{company_id}:{voucher_type_code}:{financial_year_id}". One allocator
// series per company, per voucher type, per financial year — a new FY
// restarts numbering at 1. The rendered number (see AllocateVoucherNumber)
// carries no FY marker, so "JV-0001" recurs in every financial year.
func SequenceKey(company CompanyID, voucherTypeCode string, fy FinancialYearID) string {
	return fmt.Sprintf("%s:%s:%s", company, voucherTypeCode, fy)
}

// AllocateVoucherNumber reserves the next sequence value for the given
// voucher type within its financial year and renders it as
// "{prefix}-{n}" zero-padded to 4 digits, e.g. "JV-0001". Must be called
// from inside the same transaction that subsequently inserts the voucher
// (spec §4.2: "two concurrent posts within the same company + voucher
// type never receive the same number" — the row lock inside
// NextSequenceValue is what makes that true, not anything in this
// function).
func AllocateVoucherNumber(ctx context.Context, s Store, company CompanyID, vt VoucherType, fy FinancialYear) (string, error) {
	key := SequenceKey(company, vt.Code, fy.ID)
	n, err := s.NextSequenceValue(ctx, company, key, vt.Code)
	if err != nil {
		return "", fmt.Errorf("allocate voucher number: %w", err)
	}
	return fmt.Sprintf("%s-%04d", vt.Code, n), nil
}
