package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/store/memory"
	"github.com/ledgercore/core/internal/tenant"
)

func TestApprovalSelfApprovalForbidden(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	gate := ledger.NewApprovalGate(store, clock.Fixed{At: time.Now()}, nil)

	maker := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker, tenant.CapabilityChecker)
	_, err := gate.Submit(context.Background(), maker, company, ledger.TargetVoucher, "v1")
	require.NoError(t, err)

	_, err = gate.Decide(context.Background(), maker, company, ledger.TargetVoucher, "v1", true, "")
	assert.ErrorIs(t, err, ledger.ErrSelfApproval)
}

func TestApprovalByDifferentCheckerSucceeds(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	gate := ledger.NewApprovalGate(store, clock.Fixed{At: time.Now()}, nil)

	maker := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker)
	checker := tenant.NewPrincipal("u2", string(company), tenant.CapabilityChecker)

	_, err := gate.Submit(context.Background(), maker, company, ledger.TargetVoucher, "v1")
	require.NoError(t, err)

	approval, err := gate.Decide(context.Background(), checker, company, ledger.TargetVoucher, "v1", true, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, ledger.ApprovalApproved, approval.Status)

	err = ledger.CheckGate(context.Background(), store, company, ledger.TargetVoucher, "v1", true)
	assert.NoError(t, err)
}

func TestCheckGatePendingBlocksPosting(t *testing.T) {
	store := memory.New()
	company := ledger.CompanyID("acme")
	gate := ledger.NewApprovalGate(store, clock.Fixed{At: time.Now()}, nil)
	maker := tenant.NewPrincipal("u1", string(company), tenant.CapabilityMaker)

	_, err := gate.Submit(context.Background(), maker, company, ledger.TargetInvoice, "inv-1")
	require.NoError(t, err)

	err = ledger.CheckGate(context.Background(), store, company, ledger.TargetInvoice, "inv-1", true)
	assert.ErrorIs(t, err, ledger.ErrApprovalPending)

	err = ledger.CheckGate(context.Background(), store, company, ledger.TargetInvoice, "no-such-target", true)
	assert.ErrorIs(t, err, ledger.ErrApprovalRequired)
}
