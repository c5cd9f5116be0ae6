package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/store/memory"
)

func TestAgingReportBucketsByDaysPastDue(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	party := ledger.PartyID("cust-1")
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id, due string, total, received float64) ledger.Invoice {
		d, _ := time.Parse("2006-01-02", due)
		return ledger.Invoice{
			ID: ledger.InvoiceID(id), CompanyID: company, PartyID: party,
			InvoiceNumber: id, DueDate: d,
			TotalValue: money.NewFromFloat(total), AmountReceived: money.NewFromFloat(received),
			Status: ledger.InvoiceStatusPosted,
		}
	}

	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-current", "2024-07-15", 100, 0)))
	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-15", "2024-06-16", 100, 0)))
	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-45", "2024-05-17", 100, 0)))
	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-paid", "2024-01-01", 100, 100)))

	rows, err := ledger.AgingReport(context.Background(), store, company, party, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byID := map[ledger.InvoiceID]ledger.AgingRow{}
	for _, r := range rows {
		byID[r.InvoiceID] = r
	}
	assert.Equal(t, ledger.BucketCurrent, byID["inv-current"].Bucket)
	assert.Equal(t, ledger.Bucket1To30, byID["inv-15"].Bucket)
	assert.Equal(t, ledger.Bucket31To60, byID["inv-45"].Bucket)
}

func TestCompanyAgingReportGroupsByPartyAndSelfChecks(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id string, party ledger.PartyID, due string, total, received float64) ledger.Invoice {
		d, _ := time.Parse("2006-01-02", due)
		return ledger.Invoice{
			ID: ledger.InvoiceID(id), CompanyID: company, PartyID: party,
			InvoiceNumber: id, DueDate: d,
			TotalValue: money.NewFromFloat(total), AmountReceived: money.NewFromFloat(received),
			Status: ledger.InvoiceStatusPosted,
		}
	}

	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-a1", "cust-a", "2024-06-16", 100, 0)))
	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-a2", "cust-a", "2024-05-17", 50, 0)))
	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-b1", "cust-b", "2024-06-01", 200, 0)))
	require.NoError(t, store.InsertInvoice(context.Background(), mk("inv-b2-paid", "cust-b", "2024-01-01", 75, 75)))

	report, err := ledger.AgingReportForCompany(context.Background(), store, company, asOf)
	require.NoError(t, err)

	assert.True(t, report.IsBalanced)
	assert.True(t, report.Total.Equal(money.NewFromFloat(350)))
	require.Len(t, report.Groups, 2)

	byParty := map[ledger.PartyID]ledger.PartyAgingGroup{}
	for _, g := range report.Groups {
		byParty[g.PartyID] = g
	}
	assert.True(t, byParty["cust-a"].Total.Equal(money.NewFromFloat(150)))
	assert.True(t, byParty["cust-b"].Total.Equal(money.NewFromFloat(200)))
}
