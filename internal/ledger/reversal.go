package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/tenant"
)

// ReversalService corrects a posted voucher by posting a new voucher
// with every DR/CR flipped, rather than mutating the original — spec
// §4.7's "corrections are reversals, never edits", the same rule the
// teacher enforces for leave balance corrections via a paired
// TxReversal/TxConsumption transaction (generic/request.go).
type ReversalService struct {
	Store Store
	Clock clock.Clock
	Log   *zap.Logger
}

func NewReversalService(store Store, clk clock.Clock, log *zap.Logger) *ReversalService {
	return &ReversalService{Store: store, Clock: clk, Log: log}
}

// Reverse posts the mirror voucher and links it back to the original,
// running load-guard-post-mark-audit entirely inside one store transaction
// (spec §4.7 "within a single transaction"; spec §9's anti-pattern rule:
// "a service must not call another service that opens its own
// transaction" — this is why Reverse drives postWithinTx directly instead
// of calling PostingService.Post). allowOverride lets an admin reverse
// into a closed financial year; anyone else is rejected even if they pass
// allowOverride=true (spec §4.7 edge case).
func (svc *ReversalService) Reverse(ctx context.Context, p tenant.Principal, company CompanyID, originalID VoucherID, reason, idempotencyKey string, allowOverride bool) (Voucher, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Voucher{}, err
	}
	if idempotencyKey == "" {
		return Voucher{}, fmt.Errorf("ledger: idempotency_key is required")
	}

	var result PostResult
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		r, err := reverseWithinTx(ctx, s, svc.Clock, p, company, originalID, reason, idempotencyKey, allowOverride)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}

	if svc.Log != nil {
		svc.Log.Info("voucher reversed",
			zap.String("company_id", string(company)),
			zap.String("original_voucher_id", string(originalID)),
			zap.String("reversal_voucher_id", string(result.Voucher.ID)),
			zap.Bool("replayed", result.Replayed),
		)
	}
	return result.Voucher, nil
}

// reverseWithinTx is Reverse's transaction-scoped body. It locks the
// original voucher with GetVoucherForUpdate (spec §5 lock order item 1)
// before building the flipped lines, so two concurrent Reverse calls
// against the same original are totally ordered: the second sees
// ErrAlreadyReversed instead of both succeeding.
func reverseWithinTx(ctx context.Context, s Store, clk clock.Clock, p tenant.Principal, company CompanyID, originalID VoucherID, reason, idempotencyKey string, allowOverride bool) (PostResult, error) {
	if existingID, found, err := s.CheckIdempotencyKey(ctx, company, idempotencyKey); err != nil {
		return PostResult{}, fmt.Errorf("check idempotency key: %w", err)
	} else if found {
		v, err := s.GetVoucher(ctx, company, existingID)
		if err != nil {
			return PostResult{}, fmt.Errorf("load replayed voucher: %w", err)
		}
		return PostResult{Voucher: v, Replayed: true}, nil
	}

	original, err := s.GetVoucherForUpdate(ctx, company, originalID)
	if err != nil {
		return PostResult{}, fmt.Errorf("load original voucher: %w", err)
	}
	switch original.Status {
	case VoucherPosted:
		// proceeds below
	case VoucherReversed:
		return PostResult{}, ErrAlreadyReversed
	default:
		return PostResult{}, ErrVoucherNotPosted
	}
	if original.ReversedVoucherID != nil {
		return PostResult{}, ErrAlreadyReversed
	}

	fy, err := s.GetFinancialYear(ctx, company, original.FinancialYearID)
	if err != nil {
		return PostResult{}, fmt.Errorf("load financial year: %w", err)
	}
	if fy.IsClosed && !(allowOverride && p.Has(tenant.CapabilityAdmin)) {
		return PostResult{}, fmt.Errorf("%w: financial year %s", ErrFinancialYearClosed, fy.ID)
	}

	lines := make([]PostingLineInput, 0, len(original.Lines))
	for _, l := range original.Lines {
		flipped := EntryCR
		if l.EntryType == EntryCR {
			flipped = EntryDR
		}
		lines = append(lines, PostingLineInput{
			LedgerID:   l.LedgerID,
			Amount:     l.Amount,
			EntryType:  flipped,
			CostCenter: l.CostCenter,
		})
	}

	now := clk.Now()
	in := PostingInput{
		CompanyID:           company,
		VoucherTypeID:       original.VoucherTypeID,
		Date:                now.Format("2006-01-02"),
		Lines:               lines,
		IdempotencyKey:      idempotencyKey,
		RequestedBy:         p.UserID,
		ReversalOfVoucherID: &originalID,
	}
	date, err := parseWireDate(in.Date)
	if err != nil {
		return PostResult{}, err
	}

	result, err := postWithinTx(ctx, s, clk, p, in, date, nil)
	if err != nil {
		return PostResult{}, err
	}
	if result.Replayed {
		return result, nil
	}

	if err := s.MarkVoucherReversed(ctx, company, originalID, result.Voucher.ID, reason, p.UserID, now); err != nil {
		return PostResult{}, fmt.Errorf("mark voucher reversed: %w", err)
	}

	// If the reversed voucher was a payment's voucher, its allocations
	// no longer count toward any invoice's amount_received (spec §4.9:
	// "Reversed payments' allocations are excluded, their voucher is
	// no longer POSTED"). Scenario 4 in spec §8 depends on this:
	// reversing a payment voucher must push the invoice back out of
	// PAID.
	if payment, found, err := s.GetPaymentByVoucher(ctx, company, originalID); err != nil {
		return PostResult{}, fmt.Errorf("load payment for reversed voucher: %w", err)
	} else if found {
		touched := map[InvoiceID]bool{}
		for _, l := range payment.Lines {
			touched[l.InvoiceID] = true
		}
		for invoiceID := range touched {
			if err := recomputeInvoiceOutstanding(ctx, s, company, invoiceID); err != nil {
				return PostResult{}, fmt.Errorf("recompute invoice %s outstanding: %w", invoiceID, err)
			}
		}
	}

	if err := s.AppendAuditLog(ctx, AuditLog{
		ID:         uuid.NewString(),
		CompanyID:  company,
		Actor:      p.UserID,
		ActionType: AuditReversed,
		ObjectType: "voucher",
		ObjectID:   string(originalID),
		Changes:    map[string]any{"reversal_voucher_id": string(result.Voucher.ID), "reason": reason},
		CreatedAt:  now,
	}); err != nil {
		return PostResult{}, fmt.Errorf("append audit log: %w", err)
	}

	// A second, distinct event from the reversal voucher's own
	// "voucher.posted" — consumers that only care about reversals
	// shouldn't have to inspect every posted-voucher payload for a
	// reversal_of_voucher_id field (spec §4.12 producer list).
	payload := fmt.Sprintf(`{"original_voucher_id":%q,"reversal_voucher_id":%q,"reason":%q,"company_id":%q}`,
		originalID, result.Voucher.ID, reason, company)
	if err := s.EnqueueIntegrationEvent(ctx, IntegrationEvent{
		ID:             IntegrationEventID(uuid.NewString()),
		CompanyID:      company,
		EventType:      "voucher.reversed",
		Payload:        []byte(payload),
		Status:         EventPending,
		MaxAttempts:    5,
		NextRetryAt:    now,
		SourceObjectID: string(originalID),
	}); err != nil {
		return PostResult{}, fmt.Errorf("enqueue integration event: %w", err)
	}

	return result, nil
}
