package ledger

import (
	"fmt"
	"time"

	"github.com/ledgercore/core/internal/tenant"
)

// Guards are the small, composable predicate checks every posting path
// runs before touching the store — the generalization of the teacher's
// scattered "entity.CompanyID == requestCompanyID" checks into named,
// reusable functions. They live here rather than in package tenant to
// avoid tenant depending on ledger's error types; tenant stays a pure
// leaf package (Principal/Capability only).

// requireCapability returns ErrNotAuthorized unless p holds cap.
func requireCapability(p tenant.Principal, cap tenant.Capability) error {
	if !p.Has(cap) {
		return fmt.Errorf("%w: missing capability %s", ErrNotAuthorized, cap)
	}
	return nil
}

// requireSameCompany rejects cross-company references (spec §4.3,
// "Cross-company reference: every ledger/party/item/godown on a voucher
// line must belong to the voucher's own company").
func requireSameCompany(principalCompany, entityCompany CompanyID) error {
	if principalCompany != entityCompany {
		return fmt.Errorf("%w: principal company %s, entity company %s",
			ErrCrossCompanyRef, principalCompany, entityCompany)
	}
	return nil
}

func requireCompanyActive(c Company) error {
	if !c.IsActive {
		return fmt.Errorf("%w: company %s", ErrCompanyInactive, c.ID)
	}
	return nil
}

func requireCompanyUnlocked(cf CompanyFeature) error {
	if cf.Locked {
		return fmt.Errorf("%w: company %s", ErrCompanyLocked, cf.CompanyID)
	}
	return nil
}

// requireOpenFY checks the financial year the voucher date falls in is
// not closed, and that the date actually falls within it. A closed year
// rejects every post whatever the principal's capabilities; the admin
// allow_override path for reversals is a separate check in reversal.go.
func requireOpenFY(fy FinancialYear, voucherDate time.Time, p tenant.Principal) error {
	if !fy.Contains(voucherDate) {
		return fmt.Errorf("%w: %s not within [%s, %s]",
			ErrDateOutsideFY, voucherDate.Format("2006-01-02"),
			fy.StartDate.Format("2006-01-02"), fy.EndDate.Format("2006-01-02"))
	}
	if fy.IsClosed {
		return fmt.Errorf("%w: financial year %s", ErrFinancialYearClosed, fy.ID)
	}
	return nil
}

func requireLedgerActive(l Ledger_) error {
	if !l.IsActive {
		return fmt.Errorf("%w: ledger %s", ErrLedgerInactive, l.ID)
	}
	return nil
}

func requireStockItemActive(item StockItem) error {
	if !item.IsActive {
		return fmt.Errorf("%w: item %s", ErrStockItemInactive, item.ID)
	}
	return nil
}
