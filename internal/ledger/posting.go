package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/observability"
	"github.com/ledgercore/core/internal/tenant"
)

// PostingService orchestrates the full posting path: idempotency check,
// validation, sequence allocation, write, balance update, audit, and
// event emission — generalizing the teacher's RequestService.CreateRequest
// (generic/request.go), which chains the same
// check-then-validate-then-append-then-record steps for leave requests.
type PostingService struct {
	Store Store
	Clock clock.Clock
	Log   *zap.Logger
}

func NewPostingService(store Store, clk clock.Clock, log *zap.Logger) *PostingService {
	return &PostingService{Store: store, Clock: clk, Log: log}
}

// PostResult is returned for both a fresh post and an idempotent replay;
// Replayed distinguishes the two for callers that want to log/metric them
// differently (spec §4.5).
type PostResult struct {
	Voucher  Voucher
	Replayed bool
}

// Post validates and commits a voucher, or returns the prior result
// unchanged if IdempotencyKey has already been used for this company
// (spec §4.5: "Replay semantics: posting twice with the same idempotency
// key returns the original result, never a second voucher"). It is a
// convenience wrapper around the two-step DRAFT -> POSTED lifecycle
// (CreateDraft then PostDraft): most callers (the HTTP PostVoucher
// handler, InvoiceService, PaymentService) don't need the draft to be
// independently visible before posting, so Post composes both steps
// inside one transaction.
func (svc *PostingService) Post(ctx context.Context, p tenant.Principal, in PostingInput) (PostResult, error) {
	start := time.Now()
	defer observability.ObservePosting(start)

	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return PostResult{}, err
	}
	if in.IdempotencyKey == "" {
		return PostResult{}, fmt.Errorf("ledger: idempotency_key is required")
	}

	date, err := parseWireDate(in.Date)
	if err != nil {
		return PostResult{}, err
	}

	var result PostResult

	err = svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		r, err := postWithinTx(ctx, s, svc.Clock, p, in, date, nil)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}

	if svc.Log != nil {
		svc.Log.Info("voucher posted",
			zap.String("company_id", string(in.CompanyID)),
			zap.String("voucher_id", string(result.Voucher.ID)),
			zap.String("voucher_number", result.Voucher.VoucherNumber),
			zap.Bool("replayed", result.Replayed),
		)
	}
	return result, nil
}

// CreateDraft validates in and inserts a DRAFT voucher (spec §4.5 step 3),
// with no voucher number, no ledger balance effect, no audit log, and no
// integration event yet — none of those happen until PostDraft finalizes
// it. Callers that want the draft visible to other principals before
// posting (e.g. a maker/checker review of the line items themselves, not
// just the approval-gate metadata) use this directly instead of Post.
func (svc *PostingService) CreateDraft(ctx context.Context, p tenant.Principal, in PostingInput) (Voucher, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Voucher{}, err
	}
	date, err := parseWireDate(in.Date)
	if err != nil {
		return Voucher{}, err
	}

	var v Voucher
	err = svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		vv, err := createDraftWithinTx(ctx, s, p, in, date)
		if err != nil {
			return err
		}
		v = vv
		return nil
	})
	return v, err
}

// PostDraft loads an existing DRAFT voucher by id, locks it
// (GetVoucherForUpdate), and finalizes it in place: state guard, tenant
// guards re-checked against its now-current company/FY/voucher-type rows,
// approval gate, sequence allocation, ledger balances, audit log, event
// (spec §4.5 steps 4-15).
func (svc *PostingService) PostDraft(ctx context.Context, p tenant.Principal, company CompanyID, id VoucherID, idempotencyKey string) (PostResult, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return PostResult{}, err
	}

	var result PostResult
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		r, err := postDraftWithinTx(ctx, s, svc.Clock, p, company, id, idempotencyKey, nil)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// createDraftWithinTx is CreateDraft's transaction-scoped body, reused by
// postWithinTx so the convenience Post path shares the exact same
// validation and line-construction logic as the explicit two-step path.
func createDraftWithinTx(ctx context.Context, s Store, p tenant.Principal, in PostingInput, date time.Time) (Voucher, error) {
	_, fy, _, err := ValidatePosting(ctx, s, p, in, date)
	if err != nil {
		return Voucher{}, err
	}

	voucherID := VoucherID(uuid.NewString())
	lines := make([]VoucherLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		lines = append(lines, VoucherLine{
			VoucherID:  voucherID,
			LineNo:     i + 1,
			LedgerID:   l.LedgerID,
			Amount:     l.Amount.Quantize(),
			EntryType:  l.EntryType,
			CostCenter: l.CostCenter,
		})
	}

	v := Voucher{
		ID:                  voucherID,
		CompanyID:           in.CompanyID,
		VoucherTypeID:       in.VoucherTypeID,
		FinancialYearID:     fy.ID,
		Date:                date,
		Status:              VoucherDraft,
		Lines:               lines,
		ReversalOfVoucherID: in.ReversalOfVoucherID,
	}
	if err := s.InsertVoucher(ctx, v); err != nil {
		return Voucher{}, fmt.Errorf("insert voucher: %w", err)
	}
	return v, nil
}

// postWithinTx is the transaction-scoped body of Post, factored out so
// InvoiceService.PostInvoice can run the accounting voucher and its FIFO
// stock allocation inside a single store transaction instead of two: a
// sales invoice with insufficient stock must leave no accounting trace
// at all, not a posted voucher with a missing stock movement. afterInsert
// runs after the voucher is finalized POSTED but before the idempotency
// key is reserved, so a stock shortfall aborts the whole transaction
// including the voucher insert; pass nil when there's nothing to run. It
// composes createDraftWithinTx and postDraftWithinTx so a single Post
// call exercises the real DRAFT -> POSTED state machine rather than
// minting an already-POSTED voucher directly.
func postWithinTx(ctx context.Context, s Store, clk clock.Clock, p tenant.Principal, in PostingInput, date time.Time, afterInsert func(ctx context.Context, s Store, v Voucher) error) (PostResult, error) {
	if existingID, found, err := s.CheckIdempotencyKey(ctx, in.CompanyID, in.IdempotencyKey); err != nil {
		return PostResult{}, fmt.Errorf("check idempotency key: %w", err)
	} else if found {
		v, err := s.GetVoucher(ctx, in.CompanyID, existingID)
		if err != nil {
			return PostResult{}, fmt.Errorf("load replayed voucher: %w", err)
		}
		return PostResult{Voucher: v, Replayed: true}, nil
	}

	draft, err := createDraftWithinTx(ctx, s, p, in, date)
	if err != nil {
		return PostResult{}, err
	}

	return postDraftWithinTx(ctx, s, clk, p, in.CompanyID, draft.ID, in.IdempotencyKey, afterInsert)
}

// postDraftWithinTx is PostDraft's transaction-scoped body. idempotencyKey
// may be empty when called from a path (like reversal) that enforces
// idempotency some other way; non-empty keys are checked and reserved
// exactly as the legacy single-step Post did.
func postDraftWithinTx(ctx context.Context, s Store, clk clock.Clock, p tenant.Principal, company CompanyID, id VoucherID, idempotencyKey string, afterInsert func(ctx context.Context, s Store, v Voucher) error) (PostResult, error) {
	if idempotencyKey != "" {
		if existingID, found, err := s.CheckIdempotencyKey(ctx, company, idempotencyKey); err != nil {
			return PostResult{}, fmt.Errorf("check idempotency key: %w", err)
		} else if found {
			v, err := s.GetVoucher(ctx, company, existingID)
			if err != nil {
				return PostResult{}, fmt.Errorf("load replayed voucher: %w", err)
			}
			return PostResult{Voucher: v, Replayed: true}, nil
		}
	}

	v, err := s.GetVoucherForUpdate(ctx, company, id)
	if err != nil {
		return PostResult{}, fmt.Errorf("load voucher: %w", err)
	}

	switch v.Status {
	case VoucherDraft:
		// proceeds below
	case VoucherPosted:
		return PostResult{}, fmt.Errorf("%w: voucher %s", ErrAlreadyPosted, v.ID)
	default:
		return PostResult{}, fmt.Errorf("%w: voucher %s has status %s", ErrInvalidVoucherState, v.ID, v.Status)
	}

	company2, err := s.GetCompany(ctx, company)
	if err != nil {
		return PostResult{}, fmt.Errorf("load company: %w", err)
	}
	if err := requireCompanyActive(company2); err != nil {
		return PostResult{}, err
	}
	feature, err := s.GetCompanyFeature(ctx, company)
	if err != nil {
		return PostResult{}, fmt.Errorf("load company feature: %w", err)
	}
	if err := requireCompanyUnlocked(feature); err != nil {
		return PostResult{}, err
	}

	vt, err := s.GetVoucherType(ctx, company, v.VoucherTypeID)
	if err != nil {
		return PostResult{}, fmt.Errorf("load voucher type: %w", err)
	}
	if !vt.IsActive {
		return PostResult{}, fmt.Errorf("%w: voucher type %s", ErrVoucherTypeInactive, vt.ID)
	}

	fy, err := s.GetFinancialYear(ctx, company, v.FinancialYearID)
	if err != nil {
		return PostResult{}, fmt.Errorf("load financial year: %w", err)
	}
	if err := requireOpenFY(fy, v.Date, p); err != nil {
		return PostResult{}, err
	}

	var drTotal money.Money
	for _, l := range v.Lines {
		if l.EntryType == EntryDR {
			drTotal = drTotal.Add(l.Amount)
		}
	}
	required, err := requiresApproval(ctx, s, company, TargetVoucher, &drTotal)
	if err != nil {
		return PostResult{}, fmt.Errorf("check approval rule: %w", err)
	}
	if err := CheckGate(ctx, s, company, TargetVoucher, string(v.ID), required); err != nil {
		return PostResult{}, err
	}

	voucherNumber, err := AllocateVoucherNumber(ctx, s, company, vt, fy)
	if err != nil {
		return PostResult{}, err
	}

	postedAt := clk.Now()
	if err := s.MarkVoucherPosted(ctx, company, v.ID, voucherNumber, postedAt); err != nil {
		return PostResult{}, fmt.Errorf("mark voucher posted: %w", err)
	}
	v.VoucherNumber = voucherNumber
	v.Status = VoucherPosted

	if afterInsert != nil {
		if err := afterInsert(ctx, s, v); err != nil {
			return PostResult{}, err
		}
	}

	if idempotencyKey != "" {
		if err := s.ReserveIdempotencyKey(ctx, IdempotencyKey{Key: idempotencyKey, CompanyID: company, VoucherID: v.ID}); err != nil {
			return PostResult{}, fmt.Errorf("%w: %v", ErrDuplicateIdempotencyKey, err)
		}
	}

	if err := applyLedgerBalances(ctx, s, v); err != nil {
		return PostResult{}, fmt.Errorf("apply ledger balances: %w", err)
	}

	if err := s.AppendAuditLog(ctx, AuditLog{
		ID:         uuid.NewString(),
		CompanyID:  company,
		Actor:      p.UserID,
		ActionType: AuditPosted,
		ObjectType: "voucher",
		ObjectID:   string(v.ID),
		CreatedAt:  clk.Now(),
	}); err != nil {
		return PostResult{}, fmt.Errorf("append audit log: %w", err)
	}

	payload := fmt.Sprintf(`{"voucher_id":%q,"voucher_number":%q,"company_id":%q}`, v.ID, voucherNumber, company)
	if err := s.EnqueueIntegrationEvent(ctx, IntegrationEvent{
		ID:             IntegrationEventID(uuid.NewString()),
		CompanyID:      company,
		EventType:      "voucher.posted",
		Payload:        []byte(payload),
		Status:         EventPending,
		MaxAttempts:    5,
		NextRetryAt:    clk.Now(),
		SourceObjectID: string(v.ID),
	}); err != nil {
		return PostResult{}, fmt.Errorf("enqueue integration event: %w", err)
	}

	return PostResult{Voucher: v, Replayed: false}, nil
}

// applyLedgerBalances folds every DR/CR line of v into its ledger's
// per-financial-year balance, the derived-state update the teacher's
// BalanceCache pattern performs after every Ledger.Append.
func applyLedgerBalances(ctx context.Context, s Store, v Voucher) error {
	type delta struct{ dr, cr money.Money }
	deltas := map[LedgerID]*delta{}
	for _, line := range v.Lines {
		d, ok := deltas[line.LedgerID]
		if !ok {
			d = &delta{}
			deltas[line.LedgerID] = d
		}
		if line.EntryType == EntryDR {
			d.dr = d.dr.Add(line.Amount)
		} else {
			d.cr = d.cr.Add(line.Amount)
		}
	}

	for ledgerID, d := range deltas {
		key := LedgerBalanceKey{CompanyID: v.CompanyID, LedgerID: ledgerID, FinancialYearID: v.FinancialYearID}
		bal, err := s.GetLedgerBalance(ctx, key)
		if err != nil {
			return fmt.Errorf("load ledger balance %s: %w", ledgerID, err)
		}
		bal.Key = key
		bal.BalanceDR = bal.BalanceDR.Add(d.dr)
		bal.BalanceCR = bal.BalanceCR.Add(d.cr)
		bal.LastPostedVoucherID = v.ID
		if err := s.UpsertLedgerBalance(ctx, bal); err != nil {
			return fmt.Errorf("upsert ledger balance %s: %w", ledgerID, err)
		}
	}
	return nil
}
