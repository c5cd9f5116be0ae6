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

// PaymentService posts payments and receipts (spec §4, "Payments" row of
// the data model, and §6's create_payment_draft/allocate_payment/
// remove_allocation/post_payment operation group). PostPayment remains the
// single-call convenience path for callers that already know the full set
// of allocations up front; CreatePaymentDraft/AllocatePayment/
// RemoveAllocation/PostPaymentDraft below implement the real multi-step
// lifecycle for callers building up a payment's allocations incrementally
// (e.g. a cashier applying one receipt across several open invoices one
// at a time).
type PaymentService struct {
	Store   Store
	Clock   clock.Clock
	Posting *PostingService
	Log     *zap.Logger
}

func NewPaymentService(store Store, clk clock.Clock, posting *PostingService, log *zap.Logger) *PaymentService {
	return &PaymentService{Store: store, Clock: clk, Posting: posting, Log: log}
}

// PaymentLineInput allocates part of the payment to one invoice.
type PaymentLineInput struct {
	InvoiceID     InvoiceID
	AmountApplied money.Money
}

// PaymentInput is the caller-facing request to post a payment or receipt,
// before it has a voucher.
type PaymentInput struct {
	CompanyID      CompanyID
	PartyID        PartyID
	VoucherTypeID  VoucherTypeID
	Type           PaymentType
	Date           string
	BankAccount    string
	PaymentMode    string
	Lines          []PaymentLineInput
	IdempotencyKey string
}

// PostPayment validates each line's allocation against its invoice's
// outstanding balance, posts the balancing voucher (bank/cash vs the
// party's control ledger), persists the Payment, and recomputes
// amount_received/status on every invoice it touches (spec §4.9: "derives
// amount_received from the sum of its allocations on posted payment
// vouchers").
func (svc *PaymentService) PostPayment(ctx context.Context, p tenant.Principal, in PaymentInput, partyLedger, bankLedger LedgerID) (Payment, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Payment{}, err
	}
	if len(in.Lines) == 0 {
		return Payment{}, ErrEmptyVoucher
	}
	if in.IdempotencyKey == "" {
		return Payment{}, fmt.Errorf("ledger: idempotency_key is required")
	}

	date, err := parseWireDate(in.Date)
	if err != nil {
		return Payment{}, err
	}

	var total money.Money
	ve := &ValidationError{}
	for i, l := range in.Lines {
		if !l.AmountApplied.IsPositive() {
			ve.Add(fmt.Sprintf("lines[%d].amount_applied", i), "must be positive")
			continue
		}
		total = total.Add(l.AmountApplied)
	}
	total = total.Quantize()
	if ve.HasErrors() {
		return Payment{}, ve
	}

	entryType := EntryDR // RECEIPT: bank DR, party control ledger CR
	partyEntry := EntryCR
	if in.Type == PaymentTypePayment {
		entryType = EntryCR // PAYMENT: bank CR, party control ledger DR
		partyEntry = EntryDR
	}

	lines := []PostingLineInput{
		{LedgerID: bankLedger, Amount: total, EntryType: entryType},
		{LedgerID: partyLedger, Amount: total, EntryType: partyEntry},
	}

	paymentID := PaymentID(uuid.NewString())
	var postResult PostResult
	touchedInvoices := make(map[InvoiceID]bool, len(in.Lines))

	err = svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		validateAllocations := func(ctx context.Context, s Store, v Voucher) error {
			for i, l := range in.Lines {
				inv, err := s.GetInvoice(ctx, in.CompanyID, l.InvoiceID)
				if err != nil {
					return fmt.Errorf("load invoice %s: %w", l.InvoiceID, err)
				}
				if inv.CompanyID != in.CompanyID {
					return ErrCrossCompanyRef
				}
				if l.AmountApplied.GreaterThan(inv.Outstanding()) {
					return &ValidationError{Violations: []Violation{{
						Field:   fmt.Sprintf("lines[%d].amount_applied", i),
						Message: fmt.Sprintf("%s exceeds invoice %s outstanding %s", l.AmountApplied, inv.InvoiceNumber, inv.Outstanding()),
					}}}
				}
			}
			return nil
		}

		r, err := postWithinTx(ctx, s, svc.Clock, p, PostingInput{
			CompanyID:      in.CompanyID,
			VoucherTypeID:  in.VoucherTypeID,
			Date:           in.Date,
			Lines:          lines,
			IdempotencyKey: in.IdempotencyKey,
			RequestedBy:    p.UserID,
		}, date, validateAllocations)
		if err != nil {
			return err
		}
		postResult = r

		if !r.Replayed {
			paymentLines := make([]PaymentLine, len(in.Lines))
			for i, l := range in.Lines {
				paymentLines[i] = PaymentLine{
					PaymentID:     paymentID,
					LineID:        uuid.NewString(),
					InvoiceID:     l.InvoiceID,
					AmountApplied: l.AmountApplied.Quantize(),
				}
				touchedInvoices[l.InvoiceID] = true
			}

			if err := s.InsertPayment(ctx, Payment{
				ID:          paymentID,
				CompanyID:   in.CompanyID,
				PartyID:     in.PartyID,
				VoucherID:   r.Voucher.ID,
				Type:        in.Type,
				BankAccount: in.BankAccount,
				PaymentMode: in.PaymentMode,
				Status:      PaymentStatusPosted,
				Lines:       paymentLines,
			}); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}

			for invoiceID := range touchedInvoices {
				if err := recomputeInvoiceOutstanding(ctx, s, in.CompanyID, invoiceID); err != nil {
					return fmt.Errorf("recompute invoice %s outstanding: %w", invoiceID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	if svc.Log != nil {
		svc.Log.Info("payment posted",
			zap.String("company_id", string(in.CompanyID)),
			zap.String("payment_id", string(paymentID)),
			zap.String("voucher_id", string(postResult.Voucher.ID)),
			zap.Bool("replayed", postResult.Replayed),
		)
	}

	payment, found, err := svc.Store.GetPaymentByVoucher(ctx, in.CompanyID, postResult.Voucher.ID)
	if err != nil {
		return Payment{}, fmt.Errorf("load payment: %w", err)
	}
	if !found {
		return Payment{}, fmt.Errorf("ledger: payment for voucher %s: %w", postResult.Voucher.ID, ErrNotFound)
	}
	return payment, nil
}

// PaymentDraftInput is the caller-facing request to open a new payment
// draft — the party/type/bank details that are stable for the life of the
// payment. VoucherTypeID and Date are supplied later, at PostPaymentDraft,
// the same way an order's lines are added after CreateSalesOrder rather
// than all at once.
type PaymentDraftInput struct {
	CompanyID   CompanyID
	PartyID     PartyID
	Type        PaymentType
	BankAccount string
	PaymentMode string
}

// CreatePaymentDraft opens a DRAFT payment with no allocations and no
// voucher yet.
func (svc *PaymentService) CreatePaymentDraft(ctx context.Context, p tenant.Principal, in PaymentDraftInput) (Payment, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Payment{}, err
	}
	payment := Payment{
		ID:          PaymentID(uuid.NewString()),
		CompanyID:   in.CompanyID,
		PartyID:     in.PartyID,
		Type:        in.Type,
		BankAccount: in.BankAccount,
		PaymentMode: in.PaymentMode,
		Status:      PaymentStatusDraft,
	}
	if err := svc.Store.InsertPayment(ctx, payment); err != nil {
		return Payment{}, fmt.Errorf("insert payment draft: %w", err)
	}
	return payment, nil
}

// AllocatePayment appends one invoice allocation to a DRAFT payment,
// rejecting an allocation that would push the invoice's total allocated
// amount (across every line already on this draft, plus the new one)
// past its outstanding balance — the same check PostPayment runs at post
// time, run early here so a caller building up allocations one at a time
// gets the error at the point it happened rather than only at posting.
func (svc *PaymentService) AllocatePayment(ctx context.Context, p tenant.Principal, company CompanyID, id PaymentID, in PaymentLineInput) (Payment, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Payment{}, err
	}
	if !in.AmountApplied.IsPositive() {
		return Payment{}, &ValidationError{Violations: []Violation{{Field: "amount_applied", Message: "must be positive"}}}
	}

	var result Payment
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		payment, err := s.GetPaymentForUpdate(ctx, company, id)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment.Status != PaymentStatusDraft {
			return ErrPaymentNotDraft
		}

		inv, err := s.GetInvoice(ctx, company, in.InvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice %s: %w", in.InvoiceID, err)
		}
		if inv.CompanyID != company {
			return ErrCrossCompanyRef
		}

		var alreadyAllocated money.Money
		for _, l := range payment.Lines {
			if l.InvoiceID == in.InvoiceID {
				alreadyAllocated = alreadyAllocated.Add(l.AmountApplied)
			}
		}
		if alreadyAllocated.Add(in.AmountApplied).GreaterThan(inv.Outstanding()) {
			return &ValidationError{Violations: []Violation{{
				Field:   "amount_applied",
				Message: fmt.Sprintf("%s exceeds invoice %s outstanding %s", in.AmountApplied, inv.InvoiceNumber, inv.Outstanding()),
			}}}
		}

		payment.Lines = append(payment.Lines, PaymentLine{
			PaymentID:     id,
			LineID:        uuid.NewString(),
			InvoiceID:     in.InvoiceID,
			AmountApplied: in.AmountApplied.Quantize(),
		})
		if err := s.UpdatePayment(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		result = payment
		return nil
	})
	return result, err
}

// RemoveAllocation drops one allocation line from a DRAFT payment by
// LineID. Removing a line that doesn't exist is a no-op, not an error —
// mirroring the teacher's idempotent-delete style in generic stores.
func (svc *PaymentService) RemoveAllocation(ctx context.Context, p tenant.Principal, company CompanyID, id PaymentID, lineID string) (Payment, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Payment{}, err
	}

	var result Payment
	err := svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		payment, err := s.GetPaymentForUpdate(ctx, company, id)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment.Status != PaymentStatusDraft {
			return ErrPaymentNotDraft
		}

		kept := payment.Lines[:0]
		for _, l := range payment.Lines {
			if l.LineID != lineID {
				kept = append(kept, l)
			}
		}
		payment.Lines = kept
		if err := s.UpdatePayment(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		result = payment
		return nil
	})
	return result, err
}

// PostPaymentDraft turns a DRAFT payment's accumulated allocations into a
// posted voucher, the same balancing-lines construction PostPayment uses,
// but driven off lines already persisted on the payment rather than lines
// supplied in the same call. It re-validates every allocation against its
// invoice's current outstanding balance (an invoice touched by another
// payment since the allocation was added could have less room left than
// it did at AllocatePayment time).
func (svc *PaymentService) PostPaymentDraft(ctx context.Context, p tenant.Principal, company CompanyID, id PaymentID, voucherTypeID VoucherTypeID, wireDate, idempotencyKey string, partyLedger, bankLedger LedgerID) (Payment, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Payment{}, err
	}
	if idempotencyKey == "" {
		return Payment{}, fmt.Errorf("ledger: idempotency_key is required")
	}
	date, err := parseWireDate(wireDate)
	if err != nil {
		return Payment{}, err
	}

	var postResult PostResult
	var final Payment

	err = svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		payment, err := s.GetPaymentForUpdate(ctx, company, id)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment.Status != PaymentStatusDraft {
			return ErrPaymentNotDraft
		}
		if len(payment.Lines) == 0 {
			return ErrEmptyVoucher
		}

		var total money.Money
		for _, l := range payment.Lines {
			total = total.Add(l.AmountApplied)
		}
		total = total.Quantize()

		entryType := EntryDR // RECEIPT: bank DR, party control ledger CR
		partyEntry := EntryCR
		if payment.Type == PaymentTypePayment {
			entryType = EntryCR // PAYMENT: bank CR, party control ledger DR
			partyEntry = EntryDR
		}
		lines := []PostingLineInput{
			{LedgerID: bankLedger, Amount: total, EntryType: entryType},
			{LedgerID: partyLedger, Amount: total, EntryType: partyEntry},
		}

		validateAllocations := func(ctx context.Context, s Store, v Voucher) error {
			for _, l := range payment.Lines {
				inv, err := s.GetInvoice(ctx, company, l.InvoiceID)
				if err != nil {
					return fmt.Errorf("load invoice %s: %w", l.InvoiceID, err)
				}
				if l.AmountApplied.GreaterThan(inv.Outstanding()) {
					return &ValidationError{Violations: []Violation{{
						Field:   "amount_applied",
						Message: fmt.Sprintf("%s exceeds invoice %s outstanding %s", l.AmountApplied, inv.InvoiceNumber, inv.Outstanding()),
					}}}
				}
			}
			return nil
		}

		r, err := postWithinTx(ctx, s, svc.Clock, p, PostingInput{
			CompanyID:      company,
			VoucherTypeID:  voucherTypeID,
			Date:           wireDate,
			Lines:          lines,
			IdempotencyKey: idempotencyKey,
			RequestedBy:    p.UserID,
		}, date, validateAllocations)
		if err != nil {
			return err
		}
		postResult = r

		if !r.Replayed {
			payment.Status = PaymentStatusPosted
			payment.VoucherID = r.Voucher.ID
			if err := s.UpdatePayment(ctx, payment); err != nil {
				return fmt.Errorf("update payment: %w", err)
			}

			touched := map[InvoiceID]bool{}
			for _, l := range payment.Lines {
				touched[l.InvoiceID] = true
			}
			for invoiceID := range touched {
				if err := recomputeInvoiceOutstanding(ctx, s, company, invoiceID); err != nil {
					return fmt.Errorf("recompute invoice %s outstanding: %w", invoiceID, err)
				}
			}
		}
		final = payment
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	if svc.Log != nil {
		svc.Log.Info("payment draft posted",
			zap.String("company_id", string(company)),
			zap.String("payment_id", string(id)),
			zap.String("voucher_id", string(postResult.Voucher.ID)),
			zap.Bool("replayed", postResult.Replayed),
		)
	}
	return final, nil
}

// recomputeInvoiceOutstanding folds every payment line against invoiceID
// whose voucher is still POSTED into a fresh amount_received and derives
// the invoice's status from it, then persists both in one call — the
// refresh spec §4.9 requires "whenever a PaymentLine is created, and
// whenever a voucher connected to this invoice transitions into or out
// of POSTED" (payment post here; reversal calls this too, from
// ReversalService).
func recomputeInvoiceOutstanding(ctx context.Context, s Store, company CompanyID, invoiceID InvoiceID) error {
	inv, err := s.GetInvoice(ctx, company, invoiceID)
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}

	payments, err := s.ListPaymentsForInvoice(ctx, company, invoiceID)
	if err != nil {
		return fmt.Errorf("list payments for invoice: %w", err)
	}

	var received money.Money
	for _, pay := range payments {
		v, err := s.GetVoucher(ctx, company, pay.VoucherID)
		if err != nil {
			return fmt.Errorf("load payment voucher %s: %w", pay.VoucherID, err)
		}
		if v.Status != VoucherPosted {
			continue
		}
		for _, l := range pay.Lines {
			if l.InvoiceID == invoiceID {
				received = received.Add(l.AmountApplied)
			}
		}
	}
	received = received.Quantize()

	status := InvoiceStatusPosted
	switch {
	case received.GreaterThanOrEqual(inv.TotalValue) && inv.TotalValue.IsPositive():
		status = InvoiceStatusPaid
	case received.IsPositive():
		status = InvoiceStatusPartiallyPaid
	}
	if inv.Status == InvoiceStatusCancelled {
		status = InvoiceStatusCancelled
	}

	return s.UpdateInvoiceReceived(ctx, company, invoiceID, received, status)
}

