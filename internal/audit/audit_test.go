package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/audit"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/store/memory"
)

func TestReaderForCompanyReturnsNewestFirst(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")

	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendAuditLog(context.Background(), ledger.AuditLog{
		ID: "a1", CompanyID: company, ActionType: ledger.AuditPosted,
		ObjectType: "voucher", ObjectID: "v1", CreatedAt: base,
	}))
	require.NoError(t, store.AppendAuditLog(context.Background(), ledger.AuditLog{
		ID: "a2", CompanyID: company, ActionType: ledger.AuditReversed,
		ObjectType: "voucher", ObjectID: "v1", CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, store.AppendAuditLog(context.Background(), ledger.AuditLog{
		ID: "a3", CompanyID: "other", ActionType: ledger.AuditPosted,
		ObjectType: "voucher", ObjectID: "v9", CreatedAt: base,
	}))

	reader := audit.NewReader(store)

	entries, err := reader.ForCompany(context.Background(), company, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a2", entries[0].ID)
	assert.Equal(t, "a1", entries[1].ID)
}

func TestReaderForObjectRequiresBothFields(t *testing.T) {
	reader := audit.NewReader(memory.New())
	_, err := reader.ForObject(context.Background(), "acme", "voucher", "", 10)
	assert.Error(t, err)
}

func TestReaderForObjectFiltersToSingleObject(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendAuditLog(context.Background(), ledger.AuditLog{
		ID: "a1", CompanyID: company, ActionType: ledger.AuditPosted,
		ObjectType: "voucher", ObjectID: "v1", CreatedAt: now,
	}))
	require.NoError(t, store.AppendAuditLog(context.Background(), ledger.AuditLog{
		ID: "a2", CompanyID: company, ActionType: ledger.AuditPosted,
		ObjectType: "voucher", ObjectID: "v2", CreatedAt: now,
	}))

	reader := audit.NewReader(store)
	entries, err := reader.ForObject(context.Background(), company, "voucher", "v1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1", entries[0].ID)
}
