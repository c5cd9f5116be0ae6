package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgercore/core/internal/clock"
	"github.com/ledgercore/core/internal/money"
	"github.com/ledgercore/core/internal/tenant"
)

// InvoiceService posts sales/purchase invoices: it builds the
// corresponding accounting voucher (party control ledger vs
// revenue/expense ledgers) and, for stock-carrying lines, draws FIFO
// stock via AllocateFIFO/ApplyOutboundAllocation in the same transaction
// (spec §4.6). Like PostingService, it is a generalization of the
// teacher's RequestService: one service method chains validate, derive,
// write, and record.
type InvoiceService struct {
	Store   Store
	Clock   clock.Clock
	Posting *PostingService
	Log     *zap.Logger
}

func NewInvoiceService(store Store, clk clock.Clock, posting *PostingService, log *zap.Logger) *InvoiceService {
	return &InvoiceService{Store: store, Clock: clk, Posting: posting, Log: log}
}

// InvoiceInput is the caller-facing request to post an invoice, before it
// has a number or a voucher.
type InvoiceInput struct {
	CompanyID       CompanyID
	PartyID         PartyID
	Type            InvoiceType
	VoucherTypeID   VoucherTypeID
	Date            string
	DueDate         string
	Lines           []InvoiceLine
	IdempotencyKey  string
}

// PostInvoice validates credit control (for sales invoices), builds the
// balancing voucher, allocates stock for every stock-carrying line, and
// persists both atomically. It does not itself acquire an approval —
// callers route through ApprovalGate first when the company's
// ApprovalRule requires it (spec §4.8).
func (svc *InvoiceService) PostInvoice(ctx context.Context, p tenant.Principal, in InvoiceInput, partyLedger, defaultTaxLedger LedgerID) (Invoice, error) {
	if err := requireCapability(p, tenant.CapabilityPoster); err != nil {
		return Invoice{}, err
	}
	if len(in.Lines) == 0 {
		return Invoice{}, ErrEmptyVoucher
	}
	if in.IdempotencyKey == "" {
		return Invoice{}, fmt.Errorf("ledger: idempotency_key is required")
	}

	date, err := parseWireDate(in.Date)
	if err != nil {
		return Invoice{}, err
	}
	dueDate, err := parseWireDate(in.DueDate)
	if err != nil {
		return Invoice{}, err
	}

	var total money.Money
	for _, l := range in.Lines {
		total = total.Add(money.New(l.Quantity.Decimal().Mul(l.Rate.Decimal()))).Add(l.TaxAmount)
	}
	total = total.Quantize()

	if in.Type == InvoiceSales {
		party, err := svc.Store.GetParty(ctx, in.CompanyID, in.PartyID)
		if err != nil {
			return Invoice{}, fmt.Errorf("load party: %w", err)
		}
		if err := checkCreditLimit(ctx, svc.Store, party, total); err != nil {
			return Invoice{}, err
		}
	}

	lines := make([]PostingLineInput, 0, len(in.Lines)+1)
	for _, l := range in.Lines {
		lineTotal := l.Quantity.Decimal().Mul(l.Rate.Decimal())
		entryType := EntryCR
		if in.Type == InvoicePurchase {
			entryType = EntryDR
		}
		lines = append(lines, PostingLineInput{LedgerID: l.LedgerID, Amount: money.New(lineTotal), EntryType: entryType})
		if !l.TaxAmount.IsZero() {
			taxLedger := defaultTaxLedger
			if l.TaxLedgerID != nil {
				taxLedger = *l.TaxLedgerID
			}
			lines = append(lines, PostingLineInput{LedgerID: taxLedger, Amount: l.TaxAmount, EntryType: entryType})
		}
	}
	partyEntry := EntryDR
	if in.Type == InvoicePurchase {
		partyEntry = EntryCR
	}
	lines = append(lines, PostingLineInput{LedgerID: partyLedger, Amount: total, EntryType: partyEntry})

	invoiceID := InvoiceID(uuid.NewString())
	var postResult PostResult

	err = svc.Store.WithTx(ctx, func(ctx context.Context, s Store) error {
		allocateStock := func(ctx context.Context, s Store, v Voucher) error {
			for _, l := range in.Lines {
				if l.StockItemID == nil || l.GodownID == nil {
					continue
				}
				switch in.Type {
				case InvoiceSales:
					result, err := AllocateFIFO(ctx, s, in.CompanyID, *l.StockItemID, *l.GodownID, l.Quantity)
					if err != nil {
						return err
					}
					if err := ApplyOutboundAllocation(ctx, s, in.CompanyID, v.ID, *l.StockItemID, *l.GodownID, l.Rate, result, func() time.Time { return date }); err != nil {
						return err
					}
				case InvoicePurchase:
					if err := receiveGoods(ctx, s, in.CompanyID, v.ID, *l.StockItemID, *l.GodownID, l.Quantity, l.Rate, date, svc.Clock); err != nil {
						return err
					}
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
		}, date, allocateStock)
		if err != nil {
			return err
		}
		postResult = r

		if !r.Replayed {
			inv := Invoice{
				ID:            invoiceID,
				CompanyID:     in.CompanyID,
				PartyID:       in.PartyID,
				Type:          in.Type,
				InvoiceNumber: r.Voucher.VoucherNumber,
				Date:          date,
				DueDate:       dueDate,
				VoucherID:     &r.Voucher.ID,
				Lines:         in.Lines,
				TotalValue:    total,
				Status:        InvoiceStatusPosted,
			}
			if err := s.InsertInvoice(ctx, inv); err != nil {
				return fmt.Errorf("insert invoice: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	voucherID := postResult.Voucher.ID
	return Invoice{
		ID:            invoiceID,
		CompanyID:     in.CompanyID,
		PartyID:       in.PartyID,
		Type:          in.Type,
		InvoiceNumber: postResult.Voucher.VoucherNumber,
		Date:          date,
		DueDate:       dueDate,
		VoucherID:     &voucherID,
		Lines:         in.Lines,
		TotalValue:    total,
		Status:        InvoiceStatusPosted,
	}, nil
}

// receiveGoods implements the goods-receipt side of a purchase invoice
// (SPEC_FULL.md supplemented feature): it opens a fresh StockBatch for
// the received quantity and increments the godown's balance — the
// inbound mirror of AllocateFIFO's outbound draw.
func receiveGoods(ctx context.Context, s Store, company CompanyID, voucher VoucherID, item StockItemID, godown GodownID, qty, rate money.Money, date time.Time, clk clock.Clock) error {
	batchID := StockBatchID(uuid.NewString())
	if err := s.InsertStockBatch(ctx, StockBatch{
		ID:        batchID,
		CompanyID: company,
		ItemID:    item,
		CreatedAt: clk.Now(),
	}); err != nil {
		return fmt.Errorf("insert stock batch: %w", err)
	}

	m := StockMovement{
		CompanyID:    company,
		VoucherID:    voucher,
		ItemID:       item,
		ToGodownID:   &godown,
		BatchID:      &batchID,
		Quantity:     qty,
		Rate:         rate,
		MovementDate: date,
	}
	if err := s.InsertStockMovement(ctx, m); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}

	key := StockBalanceKey{CompanyID: company, ItemID: item, GodownID: godown, BatchID: batchID}
	bal, err := s.GetStockBalance(ctx, key)
	if err != nil {
		return fmt.Errorf("load stock balance: %w", err)
	}
	bal.Key = key
	bal.QuantityOnHand = bal.QuantityOnHand.Add(qty)
	return s.UpsertStockBalance(ctx, bal)
}

func parseWireDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return clock.Day(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: invalid date %q: %w", s, err)
	}
	return clock.Day(t), nil
}
