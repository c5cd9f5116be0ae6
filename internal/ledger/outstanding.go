package ledger

import (
	"context"
	"fmt"

	"github.com/ledgercore/core/internal/money"
)

// OutstandingInvoice is one line of the read model spec §4.9 derives
// from posted invoices and applied payments: every unpaid or
// partially-paid invoice for a party, never a separately maintained
// running total.
type OutstandingInvoice struct {
	InvoiceID     InvoiceID
	InvoiceNumber string
	TotalValue    money.Money
	AmountReceived money.Money
	Outstanding   money.Money
	DueDate       string
}

// ListOutstanding returns every invoice for party whose Outstanding() is
// non-zero, computed directly from Invoice.TotalValue/AmountReceived —
// the projection is read-only and derives nothing that isn't already on
// the invoice row.
func ListOutstanding(ctx context.Context, s Store, company CompanyID, party PartyID) ([]OutstandingInvoice, error) {
	invoices, err := s.ListOutstandingInvoices(ctx, company, party)
	if err != nil {
		return nil, fmt.Errorf("list outstanding invoices: %w", err)
	}
	out := make([]OutstandingInvoice, 0, len(invoices))
	for _, inv := range invoices {
		outstanding := inv.Outstanding()
		if outstanding.IsZero() {
			continue
		}
		out = append(out, OutstandingInvoice{
			InvoiceID:      inv.ID,
			InvoiceNumber:  inv.InvoiceNumber,
			TotalValue:     inv.TotalValue,
			AmountReceived: inv.AmountReceived,
			Outstanding:    outstanding,
			DueDate:        inv.DueDate.Format("2006-01-02"),
		})
	}
	return out, nil
}

// TotalOutstanding sums every open invoice's Outstanding() for party,
// the figure credit control compares against CreditLimit.
func TotalOutstanding(ctx context.Context, s Store, company CompanyID, party PartyID) (money.Money, error) {
	lines, err := ListOutstanding(ctx, s, company, party)
	if err != nil {
		return money.Money{}, err
	}
	amounts := make([]money.Money, 0, len(lines))
	for _, l := range lines {
		amounts = append(amounts, l.Outstanding)
	}
	return money.Sum(amounts), nil
}
