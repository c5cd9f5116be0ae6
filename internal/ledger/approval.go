package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/tenant"
)

// ApprovalGate implements the maker/checker workflow of spec §4.8:
// a target (voucher, invoice, or payment) whose company requires
// approval must sit PENDING until a different principal than the
// requester approves it. It generalizes the teacher's
// RequestService.Approve/Reject (generic/request.go), replacing
// "approver is a manager of the requester" with an explicit capability
// check and a same-user guard.
type ApprovalGate struct {
	Store Store
	Clock clock.Clock
	Log   *zap.Logger
}

func NewApprovalGate(store Store, clk clock.Clock, log *zap.Logger) *ApprovalGate {
	return &ApprovalGate{Store: store, Clock: clk, Log: log}
}

// RequiresApproval reports whether posting a target of targetType in
// company needs an approval first, given amount (nil amount skips the
// threshold comparison — used for targets without a single total, like a
// journal voucher whose "amount" is just its DR total, passed by the
// caller).
func (g *ApprovalGate) RequiresApproval(ctx context.Context, company CompanyID, targetType TargetType, amount *money.Money) (bool, error) {
	return requiresApproval(ctx, g.Store, company, targetType, amount)
}

// requiresApproval is the free-function core of ApprovalGate.RequiresApproval,
// pulled out so posting paths that already hold a Store bound to the
// enclosing transaction (inside postDraftWithinTx) can call it without
// constructing an ApprovalGate of their own.
func requiresApproval(ctx context.Context, s Store, company CompanyID, targetType TargetType, amount *money.Money) (bool, error) {
	rule, found, err := s.GetApprovalRule(ctx, company, targetType)
	if err != nil {
		return false, fmt.Errorf("load approval rule: %w", err)
	}
	if !found || !rule.ApprovalRequired {
		return false, nil
	}
	if rule.AutoApproveBelowThreshold && rule.ThresholdAmount != nil && amount != nil {
		if amount.LessThan(*rule.ThresholdAmount) {
			return false, nil
		}
	}
	return true, nil
}

// Submit creates a PENDING approval for a target. Posting services call
// this instead of posting directly when RequiresApproval is true.
func (g *ApprovalGate) Submit(ctx context.Context, p tenant.Principal, company CompanyID, targetType TargetType, targetID string) (Approval, error) {
	if err := requireCapability(p, tenant.CapabilityMaker); err != nil {
		return Approval{}, err
	}
	a := Approval{
		ID:          ApprovalID(uuid.NewString()),
		CompanyID:   company,
		TargetType:  targetType,
		TargetID:    targetID,
		Status:      ApprovalPending,
		RequestedBy: p.UserID,
	}
	if err := g.Store.InsertApproval(ctx, a); err != nil {
		return Approval{}, fmt.Errorf("insert approval: %w", err)
	}
	if err := g.Store.AppendAuditLog(ctx, AuditLog{
		ID: uuid.NewString(), CompanyID: company, Actor: p.UserID,
		ActionType: AuditApprovalSubmitted, ObjectType: string(targetType), ObjectID: targetID,
		CreatedAt: g.Clock.Now(),
	}); err != nil {
		return Approval{}, fmt.Errorf("append audit log: %w", err)
	}
	return a, nil
}

// Approve or reject a pending approval. Self-approval (approver ==
// requester) is always rejected, per spec §4.8, regardless of
// capability — an ADMIN cannot approve their own request either.
func (g *ApprovalGate) Decide(ctx context.Context, p tenant.Principal, company CompanyID, targetType TargetType, targetID string, approve bool, remarks string) (Approval, error) {
	if err := requireCapability(p, tenant.CapabilityChecker); err != nil {
		return Approval{}, err
	}

	existing, found, err := g.Store.GetApproval(ctx, company, targetType, targetID)
	if err != nil {
		return Approval{}, fmt.Errorf("load approval: %w", err)
	}
	if !found {
		return Approval{}, ErrNotFound
	}
	if existing.Status != ApprovalPending {
		return Approval{}, fmt.Errorf("ledger: approval %s is not pending (status=%s)", existing.ID, existing.Status)
	}
	if existing.RequestedBy == p.UserID {
		return Approval{}, ErrSelfApproval
	}

	status := ApprovalRejected
	action := AuditApprovalRejected
	if approve {
		status = ApprovalApproved
		action = AuditApprovalApproved
	}

	if err := g.Store.UpdateApprovalStatus(ctx, company, existing.ID, status, p.UserID, remarks); err != nil {
		return Approval{}, fmt.Errorf("update approval status: %w", err)
	}
	if err := g.Store.AppendAuditLog(ctx, AuditLog{
		ID: uuid.NewString(), CompanyID: company, Actor: p.UserID,
		ActionType: action, ObjectType: string(targetType), ObjectID: targetID,
		Changes: map[string]any{"remarks": remarks}, CreatedAt: g.Clock.Now(),
	}); err != nil {
		return Approval{}, fmt.Errorf("append audit log: %w", err)
	}

	existing.Status = status
	existing.ApprovedBy = p.UserID
	existing.Remarks = remarks
	return existing, nil
}

// CheckGate returns ErrApprovalPending/ErrApprovalRejected if targetID
// has a non-approved approval on file; posting paths call this right
// before writing, inside the same transaction, to close the race between
// "approval checked" and "voucher written". required reports whether the
// company's ApprovalRule (per requiresApproval) mandates an approval for
// this target at all: when it does and no approval was ever submitted,
// that is ErrApprovalRequired, not a silent pass (spec §4.5 step 8 and
// §7's Workflow error group).
func CheckGate(ctx context.Context, s Store, company CompanyID, targetType TargetType, targetID string, required bool) error {
	a, found, err := s.GetApproval(ctx, company, targetType, targetID)
	if err != nil {
		return fmt.Errorf("load approval: %w", err)
	}
	if !found {
		if required {
			return ErrApprovalRequired
		}
		return nil
	}
	switch a.Status {
	case ApprovalPending:
		return ErrApprovalPending
	case ApprovalRejected:
		return ErrApprovalRejected
	}
	return nil
}
