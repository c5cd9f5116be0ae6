// Package memory is an in-process ledger.Store used by unit tests and by
// example fixtures, the same role the teacher's SQLite store plays for
// its own test suite but without a database at all: a single mutex
// guards a handful of maps, WithTx only needs to serialize callers
// because there's no real transaction to roll back. Production paths use
// internal/store/postgres; this package exists purely so ledger package
// tests don't need a running database to exercise posting, FIFO
// allocation, and approval logic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
)

// Store is a single-process, mutex-guarded ledger.Store. It keeps
// everything in maps keyed the way the real stores key their tables, so
// tests written against Store exercise the same lookup shapes the SQL
// stores use.
type Store struct {
	mu sync.Mutex

	companies   map[ledger.CompanyID]ledger.Company
	features    map[ledger.CompanyID]ledger.CompanyFeature
	fys         map[ledger.FinancialYearID]ledger.FinancialYear
	sequences   map[string]int64
	ledgers     map[ledger.LedgerID]ledger.Ledger_
	parties     map[ledger.PartyID]ledger.Party
	items       map[ledger.StockItemID]ledger.StockItem
	godowns     map[ledger.GodownID]ledger.Godown
	voucherTypes map[ledger.VoucherTypeID]ledger.VoucherType

	vouchers map[ledger.VoucherID]ledger.Voucher

	ledgerBalances map[ledger.LedgerBalanceKey]ledger.LedgerBalance
	stockBalances  map[ledger.StockBalanceKey]ledger.StockBalance
	stockMovements []ledger.StockMovement
	stockBatches   map[ledger.StockBatchID]ledger.StockBatch

	invoices map[ledger.InvoiceID]ledger.Invoice
	payments map[ledger.PaymentID]ledger.Payment
	orders   map[ledger.OrderID]ledger.Order

	idempotency map[string]ledger.VoucherID

	approvals map[string]ledger.Approval // key: company|targetType|targetID
	rules     map[string]ledger.ApprovalRule

	events []ledger.IntegrationEvent
	audit  []ledger.AuditLog
}

// New returns an empty store. Use the On*/Seed helpers below (or direct
// field access via a constructor in _test.go files of this package) to
// load fixtures before running a scenario.
func New() *Store {
	return &Store{
		companies:    map[ledger.CompanyID]ledger.Company{},
		features:     map[ledger.CompanyID]ledger.CompanyFeature{},
		fys:          map[ledger.FinancialYearID]ledger.FinancialYear{},
		sequences:    map[string]int64{},
		ledgers:      map[ledger.LedgerID]ledger.Ledger_{},
		parties:      map[ledger.PartyID]ledger.Party{},
		items:        map[ledger.StockItemID]ledger.StockItem{},
		godowns:      map[ledger.GodownID]ledger.Godown{},
		voucherTypes: map[ledger.VoucherTypeID]ledger.VoucherType{},
		vouchers:     map[ledger.VoucherID]ledger.Voucher{},
		ledgerBalances: map[ledger.LedgerBalanceKey]ledger.LedgerBalance{},
		stockBalances:  map[ledger.StockBalanceKey]ledger.StockBalance{},
		stockBatches:   map[ledger.StockBatchID]ledger.StockBatch{},
		invoices:     map[ledger.InvoiceID]ledger.Invoice{},
		payments:     map[ledger.PaymentID]ledger.Payment{},
		orders:       map[ledger.OrderID]ledger.Order{},
		idempotency:  map[string]ledger.VoucherID{},
		approvals:    map[string]ledger.Approval{},
		rules:        map[string]ledger.ApprovalRule{},
	}
}

// SeedCompany, SeedFinancialYear, SeedLedger, SeedParty, SeedStockItem,
// SeedGodown and SeedVoucherType load master data directly, bypassing
// locking — test setup, not a code path under test.
func (s *Store) SeedCompany(c ledger.Company)               { s.companies[c.ID] = c }
func (s *Store) SeedFeature(f ledger.CompanyFeature)         { s.features[f.CompanyID] = f }
func (s *Store) SeedFinancialYear(fy ledger.FinancialYear)   { s.fys[fy.ID] = fy }
func (s *Store) SeedLedger(l ledger.Ledger_)                 { s.ledgers[l.ID] = l }
func (s *Store) SeedParty(p ledger.Party)                    { s.parties[p.ID] = p }
func (s *Store) SeedStockItem(i ledger.StockItem)            { s.items[i.ID] = i }
func (s *Store) SeedGodown(g ledger.Godown)                  { s.godowns[g.ID] = g }
func (s *Store) SeedVoucherType(vt ledger.VoucherType)       { s.voucherTypes[vt.ID] = vt }
func (s *Store) SeedApprovalRule(t ledger.TargetType, r ledger.ApprovalRule) {
	s.rules[string(t)] = r
}
func (s *Store) SeedStockBatch(b ledger.StockBatch, bal ledger.StockBalance) {
	s.stockBatches[b.ID] = b
	s.stockBalances[bal.Key] = bal
}

// WithTx takes the store lock for the duration of fn and restores every
// map to its pre-call contents if fn returns an error, the same
// all-or-nothing guarantee the real stores get from a database
// transaction. Map entries are always replaced wholesale (Insert/Upsert),
// never mutated in place, so a shallow copy of each top-level map is
// enough to snapshot and restore.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	companies      map[ledger.CompanyID]ledger.Company
	features       map[ledger.CompanyID]ledger.CompanyFeature
	fys            map[ledger.FinancialYearID]ledger.FinancialYear
	sequences      map[string]int64
	vouchers       map[ledger.VoucherID]ledger.Voucher
	ledgerBalances map[ledger.LedgerBalanceKey]ledger.LedgerBalance
	stockBalances  map[ledger.StockBalanceKey]ledger.StockBalance
	stockMovements []ledger.StockMovement
	stockBatches   map[ledger.StockBatchID]ledger.StockBatch
	invoices       map[ledger.InvoiceID]ledger.Invoice
	payments       map[ledger.PaymentID]ledger.Payment
	orders         map[ledger.OrderID]ledger.Order
	idempotency    map[string]ledger.VoucherID
	approvals      map[string]ledger.Approval
	events         []ledger.IntegrationEvent
	audit          []ledger.AuditLog
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() storeSnapshot {
	return storeSnapshot{
		companies:      cloneMap(s.companies),
		features:       cloneMap(s.features),
		fys:            cloneMap(s.fys),
		sequences:      cloneMap(s.sequences),
		vouchers:       cloneMap(s.vouchers),
		ledgerBalances: cloneMap(s.ledgerBalances),
		stockBalances:  cloneMap(s.stockBalances),
		stockMovements: append([]ledger.StockMovement{}, s.stockMovements...),
		stockBatches:   cloneMap(s.stockBatches),
		invoices:       cloneMap(s.invoices),
		payments:       cloneMap(s.payments),
		orders:         cloneMap(s.orders),
		idempotency:    cloneMap(s.idempotency),
		approvals:      cloneMap(s.approvals),
		events:         append([]ledger.IntegrationEvent{}, s.events...),
		audit:          append([]ledger.AuditLog{}, s.audit...),
	}
}

func (s *Store) restore(snap storeSnapshot) {
	s.companies = snap.companies
	s.features = snap.features
	s.fys = snap.fys
	s.sequences = snap.sequences
	s.vouchers = snap.vouchers
	s.ledgerBalances = snap.ledgerBalances
	s.stockBalances = snap.stockBalances
	s.stockMovements = snap.stockMovements
	s.stockBatches = snap.stockBatches
	s.invoices = snap.invoices
	s.payments = snap.payments
	s.orders = snap.orders
	s.idempotency = snap.idempotency
	s.approvals = snap.approvals
	s.events = snap.events
	s.audit = snap.audit
}

func (s *Store) GetCompany(ctx context.Context, id ledger.CompanyID) (ledger.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return ledger.Company{}, fmt.Errorf("company %s: %w", id, ledger.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetCompanyFeature(ctx context.Context, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	f, ok := s.features[id]
	if !ok {
		return ledger.CompanyFeature{CompanyID: id}, nil
	}
	return f, nil
}

func (s *Store) GetCurrentFinancialYear(ctx context.Context, company ledger.CompanyID) (ledger.FinancialYear, error) {
	for _, fy := range s.fys {
		if fy.CompanyID == company && fy.IsCurrent {
			return fy, nil
		}
	}
	return ledger.FinancialYear{}, fmt.Errorf("no current FY for %s: %w", company, ledger.ErrNotFound)
}

func (s *Store) GetFinancialYearForDate(ctx context.Context, company ledger.CompanyID, date time.Time) (ledger.FinancialYear, error) {
	for _, fy := range s.fys {
		if fy.CompanyID == company && fy.Contains(date) {
			return fy, nil
		}
	}
	return ledger.FinancialYear{}, fmt.Errorf("no FY covers %s for %s: %w", date.Format("2006-01-02"), company, ledger.ErrNotFound)
}

func (s *Store) GetFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) (ledger.FinancialYear, error) {
	fy, ok := s.fys[id]
	if !ok || fy.CompanyID != company {
		return ledger.FinancialYear{}, fmt.Errorf("financial year %s: %w", id, ledger.ErrNotFound)
	}
	return fy, nil
}

func (s *Store) CloseFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	fy, err := s.GetFinancialYear(ctx, company, id)
	if err != nil {
		return err
	}
	fy.IsClosed = true
	s.fys[id] = fy
	return nil
}

func (s *Store) ReopenFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	fy, err := s.GetFinancialYear(ctx, company, id)
	if err != nil {
		return err
	}
	fy.IsClosed = false
	s.fys[id] = fy
	return nil
}

func (s *Store) NextSequenceValue(ctx context.Context, company ledger.CompanyID, key, prefix string) (int64, error) {
	s.sequences[key]++
	return s.sequences[key], nil
}

func (s *Store) GetLedger(ctx context.Context, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	l, ok := s.ledgers[id]
	if !ok {
		return ledger.Ledger_{}, fmt.Errorf("ledger %s: %w", id, ledger.ErrNotFound)
	}
	return l, nil
}

func (s *Store) GetParty(ctx context.Context, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	p, ok := s.parties[id]
	if !ok {
		return ledger.Party{}, fmt.Errorf("party %s: %w", id, ledger.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetStockItem(ctx context.Context, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	i, ok := s.items[id]
	if !ok {
		return ledger.StockItem{}, fmt.Errorf("stock item %s: %w", id, ledger.ErrNotFound)
	}
	return i, nil
}

func (s *Store) GetGodown(ctx context.Context, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	g, ok := s.godowns[id]
	if !ok {
		return ledger.Godown{}, fmt.Errorf("godown %s: %w", id, ledger.ErrNotFound)
	}
	return g, nil
}

func (s *Store) GetVoucherType(ctx context.Context, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	vt, ok := s.voucherTypes[id]
	if !ok {
		return ledger.VoucherType{}, fmt.Errorf("voucher type %s: %w", id, ledger.ErrNotFound)
	}
	return vt, nil
}

func (s *Store) InsertVoucher(ctx context.Context, v ledger.Voucher) error {
	s.vouchers[v.ID] = v
	return nil
}

func (s *Store) GetVoucher(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	v, ok := s.vouchers[id]
	if !ok {
		return ledger.Voucher{}, fmt.Errorf("voucher %s: %w", id, ledger.ErrNotFound)
	}
	return v, nil
}

// GetVoucherForUpdate is GetVoucher; the store's single WithTx mutex
// already holds exclusive access to the whole map for the duration of
// the enclosing transaction, so there is no separate row lock to take.
func (s *Store) GetVoucherForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return s.GetVoucher(ctx, company, id)
}

// MarkVoucherPosted finalizes a DRAFT voucher, guarded the same way the
// postgres/sqlite backends guard their UPDATE: a voucher not found in
// DRAFT status is a conflict, not a silent no-op.
func (s *Store) MarkVoucherPosted(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string, postedAt time.Time) error {
	v, ok := s.vouchers[id]
	if !ok {
		return fmt.Errorf("voucher %s: %w", id, ledger.ErrNotFound)
	}
	if v.Status != ledger.VoucherDraft {
		return fmt.Errorf("%w: voucher %s", ledger.ErrAlreadyPosted, id)
	}
	v.Status = ledger.VoucherPosted
	v.VoucherNumber = voucherNumber
	s.vouchers[id] = v
	return nil
}

// ListVouchers mirrors the production stores' query, newest-date-first,
// optionally narrowed to a financial year and/or status.
func (s *Store) ListVouchers(ctx context.Context, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	var out []ledger.Voucher
	for _, v := range s.vouchers {
		if v.CompanyID != company {
			continue
		}
		if fy != "" && v.FinancialYearID != fy {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListLedgersForCompany backs trial_balance, which needs the full chart
// of accounts to fold LedgerBalance over.
func (s *Store) ListLedgersForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Ledger_, error) {
	var out []ledger.Ledger_
	for _, l := range s.ledgers {
		if l.CompanyID == company {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) MarkVoucherReversed(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	v, ok := s.vouchers[id]
	if !ok {
		return fmt.Errorf("voucher %s: %w", id, ledger.ErrNotFound)
	}
	if v.Status != ledger.VoucherPosted || v.ReversedVoucherID != nil {
		return fmt.Errorf("%w: voucher %s", ledger.ErrAlreadyReversed, id)
	}
	v.Status = ledger.VoucherReversed
	v.ReversedVoucherID = &reversal
	v.ReversalReason = reason
	v.ReversalUser = user
	v.ReversedAt = &at
	s.vouchers[id] = v
	return nil
}

func (s *Store) GetLedgerBalance(ctx context.Context, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	b, ok := s.ledgerBalances[key]
	if !ok {
		return ledger.LedgerBalance{Key: key}, nil
	}
	return b, nil
}

func (s *Store) UpsertLedgerBalance(ctx context.Context, b ledger.LedgerBalance) error {
	s.ledgerBalances[b.Key] = b
	return nil
}

func (s *Store) ListOpenStockBatchesFIFO(ctx context.Context, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	var out []ledger.BatchBalance
	for key, bal := range s.stockBalances {
		if key.CompanyID != company || key.ItemID != item || key.GodownID != godown {
			continue
		}
		batch, ok := s.stockBatches[key.BatchID]
		if !ok {
			continue
		}
		out = append(out, ledger.BatchBalance{Batch: batch, QuantityOnHand: bal.QuantityOnHand})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Batch.CreatedAt.Before(out[j].Batch.CreatedAt) })
	return out, nil
}

func (s *Store) GetStockBalance(ctx context.Context, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	b, ok := s.stockBalances[key]
	if !ok {
		return ledger.StockBalance{Key: key}, nil
	}
	return b, nil
}

func (s *Store) UpsertStockBalance(ctx context.Context, b ledger.StockBalance) error {
	s.stockBalances[b.Key] = b
	return nil
}

func (s *Store) InsertStockMovement(ctx context.Context, m ledger.StockMovement) error {
	s.stockMovements = append(s.stockMovements, m)
	return nil
}

func (s *Store) InsertStockBatch(ctx context.Context, b ledger.StockBatch) error {
	s.stockBatches[b.ID] = b
	return nil
}

func (s *Store) InsertInvoice(ctx context.Context, inv ledger.Invoice) error {
	s.invoices[inv.ID] = inv
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return ledger.Invoice{}, fmt.Errorf("invoice %s: %w", id, ledger.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) UpdateInvoiceReceived(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	inv, ok := s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s: %w", id, ledger.ErrNotFound)
	}
	inv.AmountReceived = received
	inv.Status = status
	s.invoices[id] = inv
	return nil
}

func (s *Store) ListOutstandingInvoices(ctx context.Context, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	var out []ledger.Invoice
	for _, inv := range s.invoices {
		if inv.CompanyID == company && inv.PartyID == party {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListOutstandingInvoicesForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Invoice, error) {
	var out []ledger.Invoice
	for _, inv := range s.invoices {
		if inv.CompanyID == company {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error {
	s.payments[p.ID] = p
	return nil
}

func (s *Store) GetPayment(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	p, ok := s.payments[id]
	if !ok || p.CompanyID != company {
		return ledger.Payment{}, fmt.Errorf("payment %s: %w", id, ledger.ErrNotFound)
	}
	return p, nil
}

// GetPaymentForUpdate is GetPayment; see GetVoucherForUpdate for why the
// memory store needs no separate row lock.
func (s *Store) GetPaymentForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return s.GetPayment(ctx, company, id)
}

func (s *Store) UpdatePayment(ctx context.Context, p ledger.Payment) error {
	if _, ok := s.payments[p.ID]; !ok {
		return fmt.Errorf("payment %s: %w", p.ID, ledger.ErrNotFound)
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) GetPaymentByVoucher(ctx context.Context, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	for _, p := range s.payments {
		if p.CompanyID == company && p.VoucherID == voucherID {
			return p, true, nil
		}
	}
	return ledger.Payment{}, false, nil
}

func (s *Store) ListPaymentsForInvoice(ctx context.Context, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	var out []ledger.Payment
	for _, p := range s.payments {
		if p.CompanyID != company {
			continue
		}
		for _, l := range p.Lines {
			if l.InvoiceID == invoiceID {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) CheckIdempotencyKey(ctx context.Context, company ledger.CompanyID, key string) (ledger.VoucherID, bool, error) {
	id, ok := s.idempotency[string(company)+"|"+key]
	return id, ok, nil
}

func (s *Store) ReserveIdempotencyKey(ctx context.Context, k ledger.IdempotencyKey) error {
	mapKey := string(k.CompanyID) + "|" + k.Key
	if _, exists := s.idempotency[mapKey]; exists {
		return fmt.Errorf("idempotency key %s already reserved", k.Key)
	}
	s.idempotency[mapKey] = k.VoucherID
	return nil
}

func approvalKey(company ledger.CompanyID, t ledger.TargetType, id string) string {
	return string(company) + "|" + string(t) + "|" + id
}

func (s *Store) InsertApproval(ctx context.Context, a ledger.Approval) error {
	s.approvals[approvalKey(a.CompanyID, a.TargetType, a.TargetID)] = a
	return nil
}

func (s *Store) GetApproval(ctx context.Context, company ledger.CompanyID, targetType ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	a, ok := s.approvals[approvalKey(company, targetType, targetID)]
	return a, ok, nil
}

func (s *Store) UpdateApprovalStatus(ctx context.Context, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	for k, a := range s.approvals {
		if a.ID == id {
			a.Status = status
			a.ApprovedBy = approvedBy
			a.Remarks = remarks
			s.approvals[k] = a
			return nil
		}
	}
	return fmt.Errorf("approval %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) GetApprovalRule(ctx context.Context, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	r, ok := s.rules[string(t)]
	return r, ok, nil
}

func (s *Store) EnqueueIntegrationEvent(ctx context.Context, e ledger.IntegrationEvent) error {
	s.events = append(s.events, e)
	return nil
}

func (s *Store) AppendAuditLog(ctx context.Context, a ledger.AuditLog) error {
	s.audit = append(s.audit, a)
	return nil
}

// Events and Audit expose the recorded side effects for test assertions.
func (s *Store) Events() []ledger.IntegrationEvent { return append([]ledger.IntegrationEvent{}, s.events...) }
func (s *Store) AuditEntries() []ledger.AuditLog    { return append([]ledger.AuditLog{}, s.audit...) }

// ListAuditLogs mirrors the production stores' query, newest first,
// optionally narrowed to a single object.
func (s *Store) ListAuditLogs(ctx context.Context, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	var out []ledger.AuditLog
	for i := len(s.audit) - 1; i >= 0; i-- {
		a := s.audit[i]
		if a.CompanyID != company {
			continue
		}
		if objectType != "" && objectID != "" && (a.ObjectType != objectType || a.ObjectID != objectID) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) InsertOrder(ctx context.Context, o ledger.Order) error {
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	o, ok := s.orders[id]
	if !ok || o.CompanyID != company {
		return ledger.Order{}, fmt.Errorf("order %s: %w", id, ledger.ErrNotFound)
	}
	return o, nil
}

// GetOrderForUpdate is GetOrder; see GetVoucherForUpdate for why the
// memory store needs no separate row lock.
func (s *Store) GetOrderForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return s.GetOrder(ctx, company, id)
}

func (s *Store) UpdateOrder(ctx context.Context, o ledger.Order) error {
	if _, ok := s.orders[o.ID]; !ok {
		return fmt.Errorf("order %s: %w", o.ID, ledger.ErrNotFound)
	}
	s.orders[o.ID] = o
	return nil
}

// ListDueIntegrationEvents and MarkIntegrationEventResult implement
// events.Store (internal/events/bus.go) in addition to
// ledger.Store — the worker that drains these events is a separate
// concern from posting, so it gets its own narrow interface rather than
// bloating ledger.Store with dispatch-only methods.
func (s *Store) ListDueIntegrationEvents(ctx context.Context, now time.Time, limit int) ([]ledger.IntegrationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []ledger.IntegrationEvent
	for _, e := range s.events {
		if (e.Status == ledger.EventPending || e.Status == ledger.EventRetry) && !e.NextRetryAt.After(now) {
			due = append(due, e)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (s *Store) MarkIntegrationEventResult(ctx context.Context, id ledger.IntegrationEventID, status ledger.EventStatus, attempts int, nextRetryAt time.Time, lastError string, processedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.events {
		if e.ID == id {
			e.Status = status
			e.Attempts = attempts
			e.NextRetryAt = nextRetryAt
			e.LastError = lastError
			e.ProcessedAt = processedAt
			s.events[i] = e
			return nil
		}
	}
	return fmt.Errorf("integration event %s: %w", id, ledger.ErrNotFound)
}
