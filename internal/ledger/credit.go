package ledger

import (
	"context"
	"fmt"

	"github.com/ledgercore/core/internal/money"
)

// checkCreditLimit enforces spec §4.10: a sales invoice that would push a
// customer's total outstanding (existing outstanding + the new invoice's
// value) past Party.CreditLimit is rejected before posting. A nil
// CreditLimit means no limit is enforced.
func checkCreditLimit(ctx context.Context, s Store, party Party, invoiceTotal money.Money) error {
	if party.CreditLimit == nil {
		return nil
	}
	existing, err := TotalOutstanding(ctx, s, party.CompanyID, party.ID)
	if err != nil {
		return fmt.Errorf("compute existing outstanding: %w", err)
	}
	projected := existing.Add(invoiceTotal)
	if projected.GreaterThan(*party.CreditLimit) {
		return fmt.Errorf("%w: projected outstanding %s exceeds limit %s for party %s",
			ErrCreditLimitExceeded, projected, *party.CreditLimit, party.ID)
	}
	return nil
}

// TrialBalanceRow is one ledger's net position within a financial year —
// the SPEC_FULL.md supplemented trial_balance selector, grounded the same
// way as outstanding.go: a pure read projection over LedgerBalance rows,
// nothing derived that isn't already stored.
type TrialBalanceRow struct {
	LedgerID  LedgerID
	BalanceDR money.Money
	BalanceCR money.Money
	Net       money.Money
}

// TrialBalance computes the net position of every ledger supplied, for
// the given financial year. Callers pass the chart-of-accounts ledger
// list (from store.GetLedger or a bulk lister added at the store layer);
// this function stays a pure fold over LedgerBalance to keep it testable
// without a full chart-of-accounts fixture.
func TrialBalance(ctx context.Context, s Store, company CompanyID, fy FinancialYearID, ledgerIDs []LedgerID) ([]TrialBalanceRow, error) {
	rows := make([]TrialBalanceRow, 0, len(ledgerIDs))
	for _, id := range ledgerIDs {
		bal, err := s.GetLedgerBalance(ctx, LedgerBalanceKey{CompanyID: company, LedgerID: id, FinancialYearID: fy})
		if err != nil {
			return nil, fmt.Errorf("load ledger balance %s: %w", id, err)
		}
		rows = append(rows, TrialBalanceRow{
			LedgerID:  id,
			BalanceDR: bal.BalanceDR,
			BalanceCR: bal.BalanceCR,
			Net:       bal.Net(),
		})
	}
	return rows, nil
}
