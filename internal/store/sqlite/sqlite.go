// Package sqlite provides a SQLite-backed implementation of ledger.Store
// for local development and single-instance deployments. It follows the
// same shape as the production postgres store (internal/store/postgres)
// but serializes writers with SQLite's own locking instead of row-level
// FOR UPDATE: every WithTx opens with BEGIN IMMEDIATE, which takes the
// write lock up front so two concurrent posts never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
)

// Store implements ledger.Store on top of database/sql + mattn/go-sqlite3.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes BEGIN IMMEDIATE the way the teacher's sqlite store serializes writers
}

// New opens (and migrates) a SQLite database at dbPath. Use ":memory:" for
// an ephemeral database in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // WAL + single-writer: avoid SQLITE_BUSY from pooled writers

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY, code TEXT NOT NULL, base_currency TEXT NOT NULL, is_active BOOLEAN NOT NULL
	);
	CREATE TABLE IF NOT EXISTS company_features (
		company_id TEXT PRIMARY KEY, inventory BOOLEAN NOT NULL, accounting BOOLEAN NOT NULL,
		locked BOOLEAN NOT NULL, webhook_url TEXT
	);
	CREATE TABLE IF NOT EXISTS financial_years (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, name TEXT NOT NULL,
		start_date TEXT NOT NULL, end_date TEXT NOT NULL, is_current BOOLEAN NOT NULL, is_closed BOOLEAN NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fy_company ON financial_years(company_id);

	CREATE TABLE IF NOT EXISTS sequences (
		company_id TEXT NOT NULL, seq_key TEXT NOT NULL, prefix TEXT NOT NULL, last_value INTEGER NOT NULL,
		PRIMARY KEY (company_id, seq_key)
	);

	CREATE TABLE IF NOT EXISTS ledgers (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, code TEXT NOT NULL, grp TEXT,
		acct_type TEXT NOT NULL, is_active BOOLEAN NOT NULL
	);
	CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, party_type TEXT NOT NULL, ledger_id TEXT NOT NULL,
		credit_limit TEXT, credit_days INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS stock_items (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, sku TEXT, uom TEXT,
		is_stock_item BOOLEAN NOT NULL, is_active BOOLEAN NOT NULL
	);
	CREATE TABLE IF NOT EXISTS godowns (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, code TEXT
	);
	CREATE TABLE IF NOT EXISTS stock_batches (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, item_id TEXT NOT NULL, batch_number TEXT,
		mfg_date TEXT, exp_date TEXT, created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stock_batches_item ON stock_batches(company_id, item_id, created_at ASC);

	CREATE TABLE IF NOT EXISTS stock_balances (
		company_id TEXT NOT NULL, item_id TEXT NOT NULL, godown_id TEXT NOT NULL, batch_id TEXT NOT NULL DEFAULT '',
		quantity_on_hand TEXT NOT NULL, last_movement_id TEXT,
		PRIMARY KEY (company_id, item_id, godown_id, batch_id)
	);
	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, voucher_id TEXT NOT NULL, item_id TEXT NOT NULL,
		from_godown_id TEXT, to_godown_id TEXT, batch_id TEXT,
		quantity TEXT NOT NULL, rate TEXT NOT NULL, movement_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_balances (
		company_id TEXT NOT NULL, ledger_id TEXT NOT NULL, fy_id TEXT NOT NULL,
		balance_dr TEXT NOT NULL, balance_cr TEXT NOT NULL, last_posted_voucher_id TEXT,
		PRIMARY KEY (company_id, ledger_id, fy_id)
	);

	CREATE TABLE IF NOT EXISTS voucher_types (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, code TEXT NOT NULL, category TEXT NOT NULL,
		is_accounting BOOLEAN NOT NULL, is_inventory BOOLEAN NOT NULL, is_active BOOLEAN NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, voucher_type_id TEXT NOT NULL, fy_id TEXT NOT NULL,
		voucher_number TEXT NOT NULL, voucher_date TEXT NOT NULL, status TEXT NOT NULL,
		reversed_voucher_id TEXT, reversal_reason TEXT, reversal_user TEXT, reversed_at TEXT,
		reversal_of_voucher_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_vouchers_company ON vouchers(company_id);

	CREATE TABLE IF NOT EXISTS voucher_lines (
		voucher_id TEXT NOT NULL, line_no INTEGER NOT NULL, ledger_id TEXT NOT NULL,
		amount TEXT NOT NULL, entry_type TEXT NOT NULL, cost_center TEXT, against_voucher TEXT,
		PRIMARY KEY (voucher_id, line_no)
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, party_id TEXT NOT NULL, invoice_type TEXT NOT NULL,
		invoice_number TEXT NOT NULL, invoice_date TEXT NOT NULL, due_date TEXT NOT NULL,
		voucher_id TEXT, lines_json TEXT NOT NULL, total_value TEXT NOT NULL,
		amount_received TEXT NOT NULL, status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_party ON invoices(company_id, party_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, party_id TEXT NOT NULL, voucher_id TEXT NOT NULL,
		payment_type TEXT NOT NULL, bank_account TEXT, payment_mode TEXT, status TEXT NOT NULL, lines_json TEXT
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, party_id TEXT NOT NULL, order_type TEXT NOT NULL,
		status TEXT NOT NULL, order_date TEXT NOT NULL, cancel_reason TEXT
	);
	CREATE TABLE IF NOT EXISTS order_lines (
		order_id TEXT NOT NULL, line_no INTEGER NOT NULL, stock_item_id TEXT NOT NULL, godown_id TEXT NOT NULL,
		quantity TEXT NOT NULL, rate TEXT NOT NULL,
		PRIMARY KEY (order_id, line_no)
	);

	CREATE TABLE IF NOT EXISTS idempotency_keys (
		idem_key TEXT NOT NULL, company_id TEXT NOT NULL, voucher_id TEXT NOT NULL,
		PRIMARY KEY (company_id, idem_key)
	);

	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, target_type TEXT NOT NULL, target_id TEXT NOT NULL,
		status TEXT NOT NULL, requested_by TEXT, approved_by TEXT, remarks TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_target ON approvals(company_id, target_type, target_id);

	CREATE TABLE IF NOT EXISTS approval_rules (
		company_id TEXT NOT NULL, target_type TEXT NOT NULL, approval_required BOOLEAN NOT NULL,
		threshold_amount TEXT, auto_approve_below_threshold BOOLEAN NOT NULL,
		PRIMARY KEY (company_id, target_type)
	);

	CREATE TABLE IF NOT EXISTS integration_events (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, event_type TEXT NOT NULL, payload BLOB,
		status TEXT NOT NULL, attempts INTEGER NOT NULL DEFAULT 0, max_attempts INTEGER NOT NULL,
		next_retry_at TEXT NOT NULL, last_error TEXT, source_object_id TEXT, processed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_status ON integration_events(status, next_retry_at);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, actor TEXT, action_type TEXT NOT NULL,
		object_type TEXT NOT NULL, object_id TEXT NOT NULL, changes_json TEXT,
		ip TEXT, user_agent TEXT, created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_company ON audit_logs(company_id, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting every query
// helper run identically whether or not it's inside WithTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx opens BEGIN IMMEDIATE so the write lock is taken before any
// statement runs, the SQLite analogue of the postgres store's
// SELECT ... FOR UPDATE (spec §4.2/§4.4: sequence allocation and FIFO
// batch draws must never interleave).
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}
	tx := &txStore{db: s.db}
	if err := fn(ctx, tx); err != nil {
		s.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := s.db.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// txStore is the Store handle callers see inside WithTx. Every method
// delegates to the shared *sql.DB (already holding the write lock taken
// by BEGIN IMMEDIATE) through the same query helpers the outer Store uses,
// so read-only callers (e.g. posting.go's ValidatePosting) work identically
// whether or not they're inside a transaction.
type txStore struct {
	db execer
}

func (t *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	return fn(ctx, t) // already inside a transaction; nested calls just reuse it
}

// The remaining ledger.Store methods are implemented once as free
// functions over execer, with thin Store and txStore wrappers around
// them, so there is exactly one copy of every SQL statement
// regardless of transaction context.

func (s *Store) GetCompany(ctx context.Context, id ledger.CompanyID) (ledger.Company, error) {
	return getCompany(ctx, s.db, id)
}
func (t *txStore) GetCompany(ctx context.Context, id ledger.CompanyID) (ledger.Company, error) {
	return getCompany(ctx, t.db, id)
}
func getCompany(ctx context.Context, db execer, id ledger.CompanyID) (ledger.Company, error) {
	var c ledger.Company
	err := db.QueryRowContext(ctx, `SELECT id, code, base_currency, is_active FROM companies WHERE id = ?`, id).
		Scan(&c.ID, &c.Code, &c.BaseCurrency, &c.IsActive)
	if err == sql.ErrNoRows {
		return c, ledger.ErrNotFound
	}
	return c, err
}

func (s *Store) GetCompanyFeature(ctx context.Context, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	return getCompanyFeature(ctx, s.db, id)
}
func (t *txStore) GetCompanyFeature(ctx context.Context, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	return getCompanyFeature(ctx, t.db, id)
}
func getCompanyFeature(ctx context.Context, db execer, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	var f ledger.CompanyFeature
	var webhook sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT company_id, inventory, accounting, locked, webhook_url FROM company_features WHERE company_id = ?`, id).
		Scan(&f.CompanyID, &f.Flags.Inventory, &f.Flags.Accounting, &f.Locked, &webhook)
	if err == sql.ErrNoRows {
		return f, ledger.ErrNotFound
	}
	f.WebhookURL = webhook.String
	return f, err
}

func (s *Store) GetCurrentFinancialYear(ctx context.Context, company ledger.CompanyID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, s.db, "company_id = ? AND is_current = 1", company)
}
func (t *txStore) GetCurrentFinancialYear(ctx context.Context, company ledger.CompanyID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, t.db, "company_id = ? AND is_current = 1", company)
}

func (s *Store) GetFinancialYearForDate(ctx context.Context, company ledger.CompanyID, date time.Time) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, s.db, "company_id = ? AND ? BETWEEN start_date AND end_date", company, date.Format("2006-01-02"))
}
func (t *txStore) GetFinancialYearForDate(ctx context.Context, company ledger.CompanyID, date time.Time) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, t.db, "company_id = ? AND ? BETWEEN start_date AND end_date", company, date.Format("2006-01-02"))
}

func (s *Store) GetFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, s.db, "company_id = ? AND id = ?", company, id)
}
func (t *txStore) GetFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, t.db, "company_id = ? AND id = ?", company, id)
}

func getFYWhere(ctx context.Context, db execer, where string, args ...any) (ledger.FinancialYear, error) {
	var fy ledger.FinancialYear
	var start, end string
	query := fmt.Sprintf(`SELECT id, company_id, name, start_date, end_date, is_current, is_closed FROM financial_years WHERE %s`, where)
	err := db.QueryRowContext(ctx, query, args...).
		Scan(&fy.ID, &fy.CompanyID, &fy.Name, &start, &end, &fy.IsCurrent, &fy.IsClosed)
	if err == sql.ErrNoRows {
		return fy, ledger.ErrNotFound
	}
	if err != nil {
		return fy, err
	}
	fy.StartDate, _ = time.Parse("2006-01-02", start)
	fy.EndDate, _ = time.Parse("2006-01-02", end)
	return fy, nil
}

func (s *Store) CloseFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE financial_years SET is_closed = 1 WHERE company_id = ? AND id = ?`, company, id)
	return err
}
func (t *txStore) CloseFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := t.db.ExecContext(ctx, `UPDATE financial_years SET is_closed = 1 WHERE company_id = ? AND id = ?`, company, id)
	return err
}

func (s *Store) ReopenFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE financial_years SET is_closed = 0 WHERE company_id = ? AND id = ?`, company, id)
	return err
}
func (t *txStore) ReopenFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := t.db.ExecContext(ctx, `UPDATE financial_years SET is_closed = 0 WHERE company_id = ? AND id = ?`, company, id)
	return err
}

// NextSequenceValue relies on BEGIN IMMEDIATE having already taken the
// write lock (see WithTx) rather than a row-level lock statement — SQLite
// has no SELECT ... FOR UPDATE, so the whole-database write lock is the
// mutual-exclusion boundary instead.
func (s *Store) NextSequenceValue(ctx context.Context, company ledger.CompanyID, key, prefix string) (int64, error) {
	return nextSequenceValue(ctx, s.db, company, key, prefix)
}
func (t *txStore) NextSequenceValue(ctx context.Context, company ledger.CompanyID, key, prefix string) (int64, error) {
	return nextSequenceValue(ctx, t.db, company, key, prefix)
}
func nextSequenceValue(ctx context.Context, db execer, company ledger.CompanyID, key, prefix string) (int64, error) {
	var last int64
	err := db.QueryRowContext(ctx, `SELECT last_value FROM sequences WHERE company_id = ? AND seq_key = ?`, company, key).Scan(&last)
	if err == sql.ErrNoRows {
		last = 0
		if _, err := db.ExecContext(ctx, `INSERT INTO sequences (company_id, seq_key, prefix, last_value) VALUES (?, ?, ?, ?)`, company, key, prefix, 1); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	next := last + 1
	if _, err := db.ExecContext(ctx, `UPDATE sequences SET last_value = ? WHERE company_id = ? AND seq_key = ?`, next, company, key); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) GetLedger(ctx context.Context, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	return getLedger(ctx, s.db, company, id)
}
func (t *txStore) GetLedger(ctx context.Context, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	return getLedger(ctx, t.db, company, id)
}
func getLedger(ctx context.Context, db execer, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	var l ledger.Ledger_
	var grp sql.NullString
	err := db.QueryRowContext(ctx, `SELECT id, company_id, code, grp, acct_type, is_active FROM ledgers WHERE company_id = ? AND id = ?`, company, id).
		Scan(&l.ID, &l.CompanyID, &l.Code, &grp, &l.Type, &l.IsActive)
	if err == sql.ErrNoRows {
		return l, ledger.ErrNotFound
	}
	l.Group = grp.String
	return l, err
}

func (s *Store) GetParty(ctx context.Context, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, s.db, company, id)
}
func (t *txStore) GetParty(ctx context.Context, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, t.db, company, id)
}
func getParty(ctx context.Context, db execer, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	var p ledger.Party
	var limit sql.NullString
	err := db.QueryRowContext(ctx, `SELECT id, company_id, party_type, ledger_id, credit_limit, credit_days FROM parties WHERE company_id = ? AND id = ?`, company, id).
		Scan(&p.ID, &p.CompanyID, &p.Type, &p.LedgerID, &limit, &p.CreditDays)
	if err == sql.ErrNoRows {
		return p, ledger.ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if limit.Valid {
		m := money.MustParse(limit.String)
		p.CreditLimit = &m
	}
	return p, nil
}

func (s *Store) GetStockItem(ctx context.Context, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	return getStockItem(ctx, s.db, company, id)
}
func (t *txStore) GetStockItem(ctx context.Context, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	return getStockItem(ctx, t.db, company, id)
}
func getStockItem(ctx context.Context, db execer, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	var it ledger.StockItem
	var sku, uom sql.NullString
	err := db.QueryRowContext(ctx, `SELECT id, company_id, sku, uom, is_stock_item, is_active FROM stock_items WHERE company_id = ? AND id = ?`, company, id).
		Scan(&it.ID, &it.CompanyID, &sku, &uom, &it.IsStockItem, &it.IsActive)
	if err == sql.ErrNoRows {
		return it, ledger.ErrNotFound
	}
	it.SKU, it.UOM = sku.String, uom.String
	return it, err
}

func (s *Store) GetGodown(ctx context.Context, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	return getGodown(ctx, s.db, company, id)
}
func (t *txStore) GetGodown(ctx context.Context, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	return getGodown(ctx, t.db, company, id)
}
func getGodown(ctx context.Context, db execer, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	var g ledger.Godown
	var code sql.NullString
	err := db.QueryRowContext(ctx, `SELECT id, company_id, code FROM godowns WHERE company_id = ? AND id = ?`, company, id).
		Scan(&g.ID, &g.CompanyID, &code)
	if err == sql.ErrNoRows {
		return g, ledger.ErrNotFound
	}
	g.Code = code.String
	return g, err
}

func (s *Store) GetVoucherType(ctx context.Context, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	return getVoucherType(ctx, s.db, company, id)
}
func (t *txStore) GetVoucherType(ctx context.Context, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	return getVoucherType(ctx, t.db, company, id)
}
func getVoucherType(ctx context.Context, db execer, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	var vt ledger.VoucherType
	err := db.QueryRowContext(ctx, `SELECT id, company_id, code, category, is_accounting, is_inventory, is_active FROM voucher_types WHERE company_id = ? AND id = ?`, company, id).
		Scan(&vt.ID, &vt.CompanyID, &vt.Code, &vt.Category, &vt.IsAccounting, &vt.IsInventory, &vt.IsActive)
	if err == sql.ErrNoRows {
		return vt, ledger.ErrNotFound
	}
	return vt, err
}

func (s *Store) InsertVoucher(ctx context.Context, v ledger.Voucher) error { return insertVoucher(ctx, s.db, v) }
func (t *txStore) InsertVoucher(ctx context.Context, v ledger.Voucher) error {
	return insertVoucher(ctx, t.db, v)
}
func insertVoucher(ctx context.Context, db execer, v ledger.Voucher) error {
	var reversalOf any
	if v.ReversalOfVoucherID != nil {
		reversalOf = string(*v.ReversalOfVoucherID)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO vouchers (id, company_id, voucher_type_id, fy_id, voucher_number, voucher_date, status, reversal_of_voucher_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.CompanyID, v.VoucherTypeID, v.FinancialYearID, v.VoucherNumber, v.Date.Format("2006-01-02"), v.Status, reversalOf)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	for _, l := range v.Lines {
		var against any
		if l.AgainstVoucher != nil {
			against = string(*l.AgainstVoucher)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO voucher_lines (voucher_id, line_no, ledger_id, amount, entry_type, cost_center, against_voucher)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.VoucherID, l.LineNo, l.LedgerID, l.Amount.Decimal().String(), l.EntryType, l.CostCenter, against); err != nil {
			return fmt.Errorf("insert voucher line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (s *Store) GetVoucher(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucher(ctx, s.db, company, id)
}
func (t *txStore) GetVoucher(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucher(ctx, t.db, company, id)
}
func getVoucher(ctx context.Context, db execer, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	var v ledger.Voucher
	var dateStr string
	var reversedVoucherID, reversalReason, reversalUser, reversedAt, reversalOf sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, company_id, voucher_type_id, fy_id, voucher_number, voucher_date, status,
		       reversed_voucher_id, reversal_reason, reversal_user, reversed_at, reversal_of_voucher_id
		FROM vouchers WHERE company_id = ? AND id = ?`, company, id).
		Scan(&v.ID, &v.CompanyID, &v.VoucherTypeID, &v.FinancialYearID, &v.VoucherNumber, &dateStr, &v.Status,
			&reversedVoucherID, &reversalReason, &reversalUser, &reversedAt, &reversalOf)
	if err == sql.ErrNoRows {
		return v, ledger.ErrNotFound
	}
	if err != nil {
		return v, err
	}
	v.Date, _ = time.Parse("2006-01-02", dateStr)
	if reversedVoucherID.Valid {
		id := ledger.VoucherID(reversedVoucherID.String)
		v.ReversedVoucherID = &id
	}
	v.ReversalReason, v.ReversalUser = reversalReason.String, reversalUser.String
	if reversedAt.Valid {
		t, _ := time.Parse(time.RFC3339, reversedAt.String)
		v.ReversedAt = &t
	}
	if reversalOf.Valid {
		id := ledger.VoucherID(reversalOf.String)
		v.ReversalOfVoucherID = &id
	}

	rows, err := db.QueryContext(ctx, `SELECT voucher_id, line_no, ledger_id, amount, entry_type, cost_center, against_voucher FROM voucher_lines WHERE voucher_id = ? ORDER BY line_no`, id)
	if err != nil {
		return v, err
	}
	defer rows.Close()
	for rows.Next() {
		var l ledger.VoucherLine
		var amount, costCenter, against sql.NullString
		if err := rows.Scan(&l.VoucherID, &l.LineNo, &l.LedgerID, &amount, &l.EntryType, &costCenter, &against); err != nil {
			return v, err
		}
		l.Amount = money.MustParse(amount.String)
		l.CostCenter = costCenter.String
		if against.Valid {
			id := ledger.VoucherID(against.String)
			l.AgainstVoucher = &id
		}
		v.Lines = append(v.Lines, l)
	}
	return v, rows.Err()
}

// GetVoucherForUpdate is GetVoucher under sqlite's BEGIN IMMEDIATE, which
// has already taken the whole-database write lock by the time any query
// in the transaction runs — there is no per-row SELECT ... FOR UPDATE to
// issue, so this is a thin alias kept distinct for call-site symmetry
// with the postgres store.
func (s *Store) GetVoucherForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucher(ctx, s.db, company, id)
}
func (t *txStore) GetVoucherForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucher(ctx, t.db, company, id)
}

func (s *Store) MarkVoucherPosted(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string, postedAt time.Time) error {
	return markVoucherPosted(ctx, s.db, company, id, voucherNumber)
}
func (t *txStore) MarkVoucherPosted(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string, postedAt time.Time) error {
	return markVoucherPosted(ctx, t.db, company, id, voucherNumber)
}
func markVoucherPosted(ctx context.Context, db execer, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE vouchers SET status = ?, voucher_number = ? WHERE company_id = ? AND id = ? AND status = ?`,
		ledger.VoucherPosted, voucherNumber, company, id, ledger.VoucherDraft)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: voucher %s", ledger.ErrAlreadyPosted, id)
	}
	return nil
}

func (s *Store) MarkVoucherReversed(ctx context.Context, company ledger.CompanyID, id, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	return markVoucherReversed(ctx, s.db, company, id, reversal, reason, user, at)
}
func (t *txStore) MarkVoucherReversed(ctx context.Context, company ledger.CompanyID, id, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	return markVoucherReversed(ctx, t.db, company, id, reversal, reason, user, at)
}
func markVoucherReversed(ctx context.Context, db execer, company ledger.CompanyID, id, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE vouchers SET status = ?, reversed_voucher_id = ?, reversal_reason = ?, reversal_user = ?, reversed_at = ?
		WHERE company_id = ? AND id = ? AND status = ? AND reversed_voucher_id IS NULL`,
		ledger.VoucherReversed, reversal, reason, user, at.Format(time.RFC3339), company, id, ledger.VoucherPosted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: voucher %s", ledger.ErrAlreadyReversed, id)
	}
	_, err = db.ExecContext(ctx, `UPDATE vouchers SET reversal_of_voucher_id = ? WHERE company_id = ? AND id = ?`, id, company, reversal)
	return err
}

func (s *Store) GetLedgerBalance(ctx context.Context, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	return getLedgerBalance(ctx, s.db, key)
}
func (t *txStore) GetLedgerBalance(ctx context.Context, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	return getLedgerBalance(ctx, t.db, key)
}
func getLedgerBalance(ctx context.Context, db execer, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	var b ledger.LedgerBalance
	b.Key = key
	var dr, cr string
	var last sql.NullString
	err := db.QueryRowContext(ctx, `SELECT balance_dr, balance_cr, last_posted_voucher_id FROM ledger_balances WHERE company_id = ? AND ledger_id = ? AND fy_id = ?`,
		key.CompanyID, key.LedgerID, key.FinancialYearID).Scan(&dr, &cr, &last)
	if err == sql.ErrNoRows {
		return b, nil // zero balance until first post, not a NotFound error
	}
	if err != nil {
		return b, err
	}
	b.BalanceDR, b.BalanceCR = money.MustParse(dr), money.MustParse(cr)
	b.LastPostedVoucherID = ledger.VoucherID(last.String)
	return b, nil
}

func (s *Store) UpsertLedgerBalance(ctx context.Context, b ledger.LedgerBalance) error {
	return upsertLedgerBalance(ctx, s.db, b)
}
func (t *txStore) UpsertLedgerBalance(ctx context.Context, b ledger.LedgerBalance) error {
	return upsertLedgerBalance(ctx, t.db, b)
}
func upsertLedgerBalance(ctx context.Context, db execer, b ledger.LedgerBalance) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_balances (company_id, ledger_id, fy_id, balance_dr, balance_cr, last_posted_voucher_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, ledger_id, fy_id) DO UPDATE SET
			balance_dr = excluded.balance_dr, balance_cr = excluded.balance_cr, last_posted_voucher_id = excluded.last_posted_voucher_id`,
		b.Key.CompanyID, b.Key.LedgerID, b.Key.FinancialYearID, b.BalanceDR.Decimal().String(), b.BalanceCR.Decimal().String(), b.LastPostedVoucherID)
	return err
}

// ListOpenStockBatchesFIFO relies on the enclosing BEGIN IMMEDIATE for
// locking (see NextSequenceValue); ORDER BY created_at ASC is the FIFO
// ordering spec §4.4 requires.
func (s *Store) ListOpenStockBatchesFIFO(ctx context.Context, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	return listOpenStockBatchesFIFO(ctx, s.db, company, item, godown)
}
func (t *txStore) ListOpenStockBatchesFIFO(ctx context.Context, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	return listOpenStockBatchesFIFO(ctx, t.db, company, item, godown)
}
func listOpenStockBatchesFIFO(ctx context.Context, db execer, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.company_id, b.item_id, b.batch_number, b.mfg_date, b.exp_date, b.created_at, sb.quantity_on_hand
		FROM stock_batches b
		JOIN stock_balances sb ON sb.company_id = b.company_id AND sb.item_id = b.item_id AND sb.batch_id = b.id AND sb.godown_id = ?
		WHERE b.company_id = ? AND b.item_id = ? AND sb.quantity_on_hand != '0'
		ORDER BY b.created_at ASC`, godown, company, item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.BatchBalance
	for rows.Next() {
		var bb ledger.BatchBalance
		var mfg, exp sql.NullString
		var createdAt, qty string
		if err := rows.Scan(&bb.Batch.ID, &bb.Batch.CompanyID, &bb.Batch.ItemID, &bb.Batch.BatchNumber, &mfg, &exp, &createdAt, &qty); err != nil {
			return nil, err
		}
		bb.Batch.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		bb.QuantityOnHand = money.MustParse(qty)
		out = append(out, bb)
	}
	return out, rows.Err()
}

func (s *Store) GetStockBalance(ctx context.Context, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	return getStockBalance(ctx, s.db, key)
}
func (t *txStore) GetStockBalance(ctx context.Context, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	return getStockBalance(ctx, t.db, key)
}
func getStockBalance(ctx context.Context, db execer, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	var b ledger.StockBalance
	b.Key = key
	var qty string
	var last sql.NullString
	err := db.QueryRowContext(ctx, `SELECT quantity_on_hand, last_movement_id FROM stock_balances WHERE company_id = ? AND item_id = ? AND godown_id = ? AND batch_id = ?`,
		key.CompanyID, key.ItemID, key.GodownID, key.BatchID).Scan(&qty, &last)
	if err == sql.ErrNoRows {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	b.QuantityOnHand = money.MustParse(qty)
	b.LastMovementID = last.String
	return b, nil
}

func (s *Store) UpsertStockBalance(ctx context.Context, b ledger.StockBalance) error {
	return upsertStockBalance(ctx, s.db, b)
}
func (t *txStore) UpsertStockBalance(ctx context.Context, b ledger.StockBalance) error {
	return upsertStockBalance(ctx, t.db, b)
}
func upsertStockBalance(ctx context.Context, db execer, b ledger.StockBalance) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_balances (company_id, item_id, godown_id, batch_id, quantity_on_hand, last_movement_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, item_id, godown_id, batch_id) DO UPDATE SET
			quantity_on_hand = excluded.quantity_on_hand, last_movement_id = excluded.last_movement_id`,
		b.Key.CompanyID, b.Key.ItemID, b.Key.GodownID, b.Key.BatchID, b.QuantityOnHand.Decimal().String(), b.LastMovementID)
	return err
}

func (s *Store) InsertStockMovement(ctx context.Context, m ledger.StockMovement) error {
	return insertStockMovement(ctx, s.db, m)
}
func (t *txStore) InsertStockMovement(ctx context.Context, m ledger.StockMovement) error {
	return insertStockMovement(ctx, t.db, m)
}
func insertStockMovement(ctx context.Context, db execer, m ledger.StockMovement) error {
	var from, to, batch any
	if m.FromGodownID != nil {
		from = string(*m.FromGodownID)
	}
	if m.ToGodownID != nil {
		to = string(*m.ToGodownID)
	}
	if m.BatchID != nil {
		batch = string(*m.BatchID)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_movements (id, company_id, voucher_id, item_id, from_godown_id, to_godown_id, batch_id, quantity, rate, movement_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CompanyID, m.VoucherID, m.ItemID, from, to, batch, m.Quantity.Decimal().String(), m.Rate.Decimal().String(), m.MovementDate.Format("2006-01-02"))
	return err
}

func (s *Store) InsertStockBatch(ctx context.Context, b ledger.StockBatch) error {
	return insertStockBatch(ctx, s.db, b)
}
func (t *txStore) InsertStockBatch(ctx context.Context, b ledger.StockBatch) error {
	return insertStockBatch(ctx, t.db, b)
}
func insertStockBatch(ctx context.Context, db execer, b ledger.StockBatch) error {
	var mfg, exp any
	if b.MfgDate != nil {
		mfg = b.MfgDate.Format("2006-01-02")
	}
	if b.ExpDate != nil {
		exp = b.ExpDate.Format("2006-01-02")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_batches (id, company_id, item_id, batch_number, mfg_date, exp_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CompanyID, b.ItemID, b.BatchNumber, mfg, exp, b.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) InsertInvoice(ctx context.Context, inv ledger.Invoice) error { return insertInvoice(ctx, s.db, inv) }
func (t *txStore) InsertInvoice(ctx context.Context, inv ledger.Invoice) error {
	return insertInvoice(ctx, t.db, inv)
}
func insertInvoice(ctx context.Context, db execer, inv ledger.Invoice) error {
	linesJSON, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("marshal invoice lines: %w", err)
	}
	var voucherID any
	if inv.VoucherID != nil {
		voucherID = string(*inv.VoucherID)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO invoices (id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CompanyID, inv.PartyID, inv.Type, inv.InvoiceNumber, inv.Date.Format("2006-01-02"), inv.DueDate.Format("2006-01-02"),
		voucherID, string(linesJSON), inv.TotalValue.Decimal().String(), inv.AmountReceived.Decimal().String(), inv.Status)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	return getInvoice(ctx, s.db, company, id)
}
func (t *txStore) GetInvoice(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	return getInvoice(ctx, t.db, company, id)
}
func getInvoice(ctx context.Context, db execer, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status
		FROM invoices WHERE company_id = ? AND id = ?`, company, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return inv, ledger.ErrNotFound
	}
	return inv, err
}

func scanInvoice(row *sql.Row) (ledger.Invoice, error) {
	var inv ledger.Invoice
	var dateStr, dueStr, linesJSON, total, received string
	var voucherID sql.NullString
	if err := row.Scan(&inv.ID, &inv.CompanyID, &inv.PartyID, &inv.Type, &inv.InvoiceNumber, &dateStr, &dueStr, &voucherID, &linesJSON, &total, &received, &inv.Status); err != nil {
		return inv, err
	}
	inv.Date, _ = time.Parse("2006-01-02", dateStr)
	inv.DueDate, _ = time.Parse("2006-01-02", dueStr)
	if voucherID.Valid {
		id := ledger.VoucherID(voucherID.String)
		inv.VoucherID = &id
	}
	json.Unmarshal([]byte(linesJSON), &inv.Lines)
	inv.TotalValue = money.MustParse(total)
	inv.AmountReceived = money.MustParse(received)
	return inv, nil
}

func (s *Store) UpdateInvoiceReceived(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	return updateInvoiceReceived(ctx, s.db, company, id, received, status)
}
func (t *txStore) UpdateInvoiceReceived(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	return updateInvoiceReceived(ctx, t.db, company, id, received, status)
}
func updateInvoiceReceived(ctx context.Context, db execer, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE invoices SET amount_received = ?, status = ? WHERE company_id = ? AND id = ?`,
		received.Decimal().String(), status, company, id)
	return err
}

func (s *Store) ListOutstandingInvoices(ctx context.Context, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoices(ctx, s.db, company, party)
}
func (t *txStore) ListOutstandingInvoices(ctx context.Context, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoices(ctx, t.db, company, party)
}
func listOutstandingInvoices(ctx context.Context, db execer, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status
		FROM invoices WHERE company_id = ? AND party_id = ? AND status != ?`, company, party, ledger.InvoiceStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

func (s *Store) ListOutstandingInvoicesForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoicesForCompany(ctx, s.db, company)
}
func (t *txStore) ListOutstandingInvoicesForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoicesForCompany(ctx, t.db, company)
}
func listOutstandingInvoicesForCompany(ctx context.Context, db execer, company ledger.CompanyID) ([]ledger.Invoice, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status
		FROM invoices WHERE company_id = ? AND status != ?`, company, ledger.InvoiceStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

func scanInvoiceRows(rows *sql.Rows) ([]ledger.Invoice, error) {
	var out []ledger.Invoice
	for rows.Next() {
		var inv ledger.Invoice
		var dateStr, dueStr, linesJSON, total, received string
		var voucherID sql.NullString
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.PartyID, &inv.Type, &inv.InvoiceNumber, &dateStr, &dueStr, &voucherID, &linesJSON, &total, &received, &inv.Status); err != nil {
			return nil, err
		}
		inv.Date, _ = time.Parse("2006-01-02", dateStr)
		inv.DueDate, _ = time.Parse("2006-01-02", dueStr)
		if voucherID.Valid {
			id := ledger.VoucherID(voucherID.String)
			inv.VoucherID = &id
		}
		json.Unmarshal([]byte(linesJSON), &inv.Lines)
		inv.TotalValue = money.MustParse(total)
		inv.AmountReceived = money.MustParse(received)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error { return insertPayment(ctx, s.db, p) }
func (t *txStore) InsertPayment(ctx context.Context, p ledger.Payment) error {
	return insertPayment(ctx, t.db, p)
}
func insertPayment(ctx context.Context, db execer, p ledger.Payment) error {
	linesJSON, err := json.Marshal(p.Lines)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO payments (id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.PartyID, p.VoucherID, p.Type, p.BankAccount, p.PaymentMode, p.Status, string(linesJSON))
	return err
}

func (s *Store) GetPayment(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPayment(ctx, s.db, company, id)
}
func (t *txStore) GetPayment(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPayment(ctx, t.db, company, id)
}
func getPayment(ctx context.Context, db execer, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	var p ledger.Payment
	var linesJSON string
	var bankAccount, paymentMode sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json
		FROM payments WHERE company_id = ? AND id = ?`, company, id).
		Scan(&p.ID, &p.CompanyID, &p.PartyID, &p.VoucherID, &p.Type, &bankAccount, &paymentMode, &p.Status, &linesJSON)
	if err == sql.ErrNoRows {
		return p, ledger.ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.BankAccount = bankAccount.String
	p.PaymentMode = paymentMode.String
	if err := json.Unmarshal([]byte(linesJSON), &p.Lines); err != nil {
		return p, fmt.Errorf("unmarshal payment lines: %w", err)
	}
	return p, nil
}

// GetPaymentForUpdate mirrors GetVoucherForUpdate: under BEGIN IMMEDIATE
// the write lock is already held, so this is a thin alias.
func (s *Store) GetPaymentForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPayment(ctx, s.db, company, id)
}
func (t *txStore) GetPaymentForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPayment(ctx, t.db, company, id)
}

func (s *Store) UpdatePayment(ctx context.Context, p ledger.Payment) error { return updatePayment(ctx, s.db, p) }
func (t *txStore) UpdatePayment(ctx context.Context, p ledger.Payment) error {
	return updatePayment(ctx, t.db, p)
}
func updatePayment(ctx context.Context, db execer, p ledger.Payment) error {
	linesJSON, err := json.Marshal(p.Lines)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE payments SET voucher_id = ?, payment_type = ?, bank_account = ?, payment_mode = ?, status = ?, lines_json = ?
		WHERE company_id = ? AND id = ?`,
		p.VoucherID, p.Type, p.BankAccount, p.PaymentMode, p.Status, string(linesJSON), p.CompanyID, p.ID)
	return err
}

func (s *Store) GetPaymentByVoucher(ctx context.Context, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	return getPaymentByVoucher(ctx, s.db, company, voucherID)
}
func (t *txStore) GetPaymentByVoucher(ctx context.Context, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	return getPaymentByVoucher(ctx, t.db, company, voucherID)
}
func getPaymentByVoucher(ctx context.Context, db execer, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	var p ledger.Payment
	var linesJSON string
	var bankAccount, paymentMode sql.NullString
	row := db.QueryRowContext(ctx, `
		SELECT id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json
		FROM payments WHERE company_id = ? AND voucher_id = ?`, company, voucherID)
	if err := row.Scan(&p.ID, &p.CompanyID, &p.PartyID, &p.VoucherID, &p.Type, &bankAccount, &paymentMode, &p.Status, &linesJSON); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Payment{}, false, nil
		}
		return ledger.Payment{}, false, err
	}
	p.BankAccount = bankAccount.String
	p.PaymentMode = paymentMode.String
	if err := json.Unmarshal([]byte(linesJSON), &p.Lines); err != nil {
		return ledger.Payment{}, false, fmt.Errorf("unmarshal payment lines: %w", err)
	}
	return p, true, nil
}

func (s *Store) ListPaymentsForInvoice(ctx context.Context, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	return listPaymentsForInvoice(ctx, s.db, company, invoiceID)
}
func (t *txStore) ListPaymentsForInvoice(ctx context.Context, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	return listPaymentsForInvoice(ctx, t.db, company, invoiceID)
}

// listPaymentsForInvoice loads every payment for company and filters in
// Go on the unmarshalled lines_json blob — go-sqlite3 isn't built with
// the JSON1 extension here, so there's no SQL-side way to query inside
// the blob the way Postgres's JSONB operators could.
func listPaymentsForInvoice(ctx context.Context, db execer, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json
		FROM payments WHERE company_id = ?`, company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		var linesJSON string
		var bankAccount, paymentMode sql.NullString
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.PartyID, &p.VoucherID, &p.Type, &bankAccount, &paymentMode, &p.Status, &linesJSON); err != nil {
			return nil, err
		}
		p.BankAccount = bankAccount.String
		p.PaymentMode = paymentMode.String
		if err := json.Unmarshal([]byte(linesJSON), &p.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal payment lines: %w", err)
		}
		for _, l := range p.Lines {
			if l.InvoiceID == invoiceID {
				out = append(out, p)
				break
			}
		}
	}
	return out, rows.Err()
}

func (s *Store) CheckIdempotencyKey(ctx context.Context, company ledger.CompanyID, key string) (ledger.VoucherID, bool, error) {
	return checkIdempotencyKey(ctx, s.db, company, key)
}
func (t *txStore) CheckIdempotencyKey(ctx context.Context, company ledger.CompanyID, key string) (ledger.VoucherID, bool, error) {
	return checkIdempotencyKey(ctx, t.db, company, key)
}
func checkIdempotencyKey(ctx context.Context, db execer, company ledger.CompanyID, key string) (ledger.VoucherID, bool, error) {
	var voucherID string
	err := db.QueryRowContext(ctx, `SELECT voucher_id FROM idempotency_keys WHERE company_id = ? AND idem_key = ?`, company, key).Scan(&voucherID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ledger.VoucherID(voucherID), true, nil
}

func (s *Store) ReserveIdempotencyKey(ctx context.Context, k ledger.IdempotencyKey) error {
	return reserveIdempotencyKey(ctx, s.db, k)
}
func (t *txStore) ReserveIdempotencyKey(ctx context.Context, k ledger.IdempotencyKey) error {
	return reserveIdempotencyKey(ctx, t.db, k)
}
func reserveIdempotencyKey(ctx context.Context, db execer, k ledger.IdempotencyKey) error {
	_, err := db.ExecContext(ctx, `INSERT INTO idempotency_keys (idem_key, company_id, voucher_id) VALUES (?, ?, ?)`, k.Key, k.CompanyID, k.VoucherID)
	if err != nil && isUniqueConstraintError(err) {
		return ledger.ErrDuplicateIdempotencyKey
	}
	return err
}

func (s *Store) InsertApproval(ctx context.Context, a ledger.Approval) error { return insertApproval(ctx, s.db, a) }
func (t *txStore) InsertApproval(ctx context.Context, a ledger.Approval) error {
	return insertApproval(ctx, t.db, a)
}
func insertApproval(ctx context.Context, db execer, a ledger.Approval) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO approvals (id, company_id, target_type, target_id, status, requested_by, approved_by, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CompanyID, a.TargetType, a.TargetID, a.Status, a.RequestedBy, a.ApprovedBy, a.Remarks)
	return err
}

func (s *Store) GetApproval(ctx context.Context, company ledger.CompanyID, t ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	return getApproval(ctx, s.db, company, t, targetID)
}
func (ts *txStore) GetApproval(ctx context.Context, company ledger.CompanyID, t ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	return getApproval(ctx, ts.db, company, t, targetID)
}
func getApproval(ctx context.Context, db execer, company ledger.CompanyID, t ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	var a ledger.Approval
	err := db.QueryRowContext(ctx, `
		SELECT id, company_id, target_type, target_id, status, requested_by, approved_by, remarks
		FROM approvals WHERE company_id = ? AND target_type = ? AND target_id = ?`, company, t, targetID).
		Scan(&a.ID, &a.CompanyID, &a.TargetType, &a.TargetID, &a.Status, &a.RequestedBy, &a.ApprovedBy, &a.Remarks)
	if err == sql.ErrNoRows {
		return a, false, nil
	}
	if err != nil {
		return a, false, err
	}
	return a, true, nil
}

func (s *Store) UpdateApprovalStatus(ctx context.Context, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	return updateApprovalStatus(ctx, s.db, company, id, status, approvedBy, remarks)
}
func (t *txStore) UpdateApprovalStatus(ctx context.Context, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	return updateApprovalStatus(ctx, t.db, company, id, status, approvedBy, remarks)
}
func updateApprovalStatus(ctx context.Context, db execer, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	_, err := db.ExecContext(ctx, `UPDATE approvals SET status = ?, approved_by = ?, remarks = ? WHERE company_id = ? AND id = ?`,
		status, approvedBy, remarks, company, id)
	return err
}

func (s *Store) GetApprovalRule(ctx context.Context, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	return getApprovalRule(ctx, s.db, company, t)
}
func (ts *txStore) GetApprovalRule(ctx context.Context, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	return getApprovalRule(ctx, ts.db, company, t)
}
func getApprovalRule(ctx context.Context, db execer, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	var r ledger.ApprovalRule
	r.CompanyID, r.TargetType = company, t
	var threshold sql.NullString
	err := db.QueryRowContext(ctx, `SELECT approval_required, threshold_amount, auto_approve_below_threshold FROM approval_rules WHERE company_id = ? AND target_type = ?`, company, t).
		Scan(&r.ApprovalRequired, &threshold, &r.AutoApproveBelowThreshold)
	if err == sql.ErrNoRows {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	if threshold.Valid {
		m := money.MustParse(threshold.String)
		r.ThresholdAmount = &m
	}
	return r, true, nil
}

func (s *Store) EnqueueIntegrationEvent(ctx context.Context, e ledger.IntegrationEvent) error {
	return enqueueIntegrationEvent(ctx, s.db, e)
}
func (t *txStore) EnqueueIntegrationEvent(ctx context.Context, e ledger.IntegrationEvent) error {
	return enqueueIntegrationEvent(ctx, t.db, e)
}
func enqueueIntegrationEvent(ctx context.Context, db execer, e ledger.IntegrationEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO integration_events (id, company_id, event_type, payload, status, attempts, max_attempts, next_retry_at, last_error, source_object_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CompanyID, e.EventType, e.Payload, e.Status, e.Attempts, e.MaxAttempts, e.NextRetryAt.Format(time.RFC3339), e.LastError, e.SourceObjectID)
	return err
}

func (s *Store) AppendAuditLog(ctx context.Context, a ledger.AuditLog) error { return appendAuditLog(ctx, s.db, a) }
func (t *txStore) AppendAuditLog(ctx context.Context, a ledger.AuditLog) error {
	return appendAuditLog(ctx, t.db, a)
}
func appendAuditLog(ctx context.Context, db execer, a ledger.AuditLog) error {
	changesJSON, _ := json.Marshal(a.Changes)
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, company_id, actor, action_type, object_type, object_id, changes_json, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CompanyID, a.Actor, a.ActionType, a.ObjectType, a.ObjectID, string(changesJSON), a.IP, a.UserAgent, a.CreatedAt.Format(time.RFC3339))
	return err
}

// ListVouchers backs the list_vouchers selector, optionally narrowed to a
// financial year and/or status.
func (s *Store) ListVouchers(ctx context.Context, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	return listVouchers(ctx, s.db, company, fy, status, limit)
}
func (t *txStore) ListVouchers(ctx context.Context, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	return listVouchers(ctx, t.db, company, fy, status, limit)
}

func listVouchers(ctx context.Context, db execer, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	query := `SELECT id FROM vouchers WHERE company_id = ?`
	args := []any{company}
	if fy != "" {
		query += ` AND fy_id = ?`
		args = append(args, fy)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY voucher_date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []ledger.VoucherID
	for rows.Next() {
		var id ledger.VoucherID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ledger.Voucher, 0, len(ids))
	for _, id := range ids {
		v, err := getVoucher(ctx, db, company, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ListLedgersForCompany backs trial_balance, which needs the full chart
// of accounts to fold LedgerBalance over.
func (s *Store) ListLedgersForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Ledger_, error) {
	return listLedgersForCompany(ctx, s.db, company)
}
func (t *txStore) ListLedgersForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Ledger_, error) {
	return listLedgersForCompany(ctx, t.db, company)
}

func listLedgersForCompany(ctx context.Context, db execer, company ledger.CompanyID) ([]ledger.Ledger_, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, company_id, code, grp, acct_type, is_active FROM ledgers WHERE company_id = ? ORDER BY code`, company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Ledger_
	for rows.Next() {
		var l ledger.Ledger_
		var group sql.NullString
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.Code, &group, &l.Type, &l.IsActive); err != nil {
			return nil, err
		}
		l.Group = group.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListAuditLogs backs internal/audit's reader, optionally narrowed to a
// single object.
func (s *Store) ListAuditLogs(ctx context.Context, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	return listAuditLogs(ctx, s.db, company, objectType, objectID, limit)
}
func (t *txStore) ListAuditLogs(ctx context.Context, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	return listAuditLogs(ctx, t.db, company, objectType, objectID, limit)
}

func listAuditLogs(ctx context.Context, db execer, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	query := `
		SELECT id, company_id, actor, action_type, object_type, object_id, changes_json, ip, user_agent, created_at
		FROM audit_logs WHERE company_id = ?`
	args := []any{company}
	if objectType != "" && objectID != "" {
		query += ` AND object_type = ? AND object_id = ?`
		args = append(args, objectType, objectID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.AuditLog
	for rows.Next() {
		var a ledger.AuditLog
		var changesJSON, createdAt string
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Actor, &a.ActionType, &a.ObjectType, &a.ObjectID, &changesJSON, &a.IP, &a.UserAgent, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(changesJSON), &a.Changes)
		a.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) InsertOrder(ctx context.Context, o ledger.Order) error { return insertOrder(ctx, s.db, o) }
func (t *txStore) InsertOrder(ctx context.Context, o ledger.Order) error {
	return insertOrder(ctx, t.db, o)
}
func insertOrder(ctx context.Context, db execer, o ledger.Order) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO orders (id, company_id, party_id, order_type, status, order_date, cancel_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CompanyID, o.PartyID, o.Type, o.Status, o.Date.Format("2006-01-02"), o.CancelReason)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, l := range o.Lines {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, stock_item_id, godown_id, quantity, rate)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, l.LineNo, l.StockItemID, l.GodownID, l.Quantity.Decimal().String(), l.Rate.Decimal().String()); err != nil {
			return fmt.Errorf("insert order line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrder(ctx, s.db, company, id)
}
func (t *txStore) GetOrder(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrder(ctx, t.db, company, id)
}
func getOrder(ctx context.Context, db execer, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	var o ledger.Order
	var dateStr string
	var cancelReason sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, company_id, party_id, order_type, status, order_date, cancel_reason
		FROM orders WHERE company_id = ? AND id = ?`, company, id).
		Scan(&o.ID, &o.CompanyID, &o.PartyID, &o.Type, &o.Status, &dateStr, &cancelReason)
	if err == sql.ErrNoRows {
		return o, ledger.ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.Date, _ = time.Parse("2006-01-02", dateStr)
	o.CancelReason = cancelReason.String

	rows, err := db.QueryContext(ctx, `SELECT line_no, stock_item_id, godown_id, quantity, rate FROM order_lines WHERE order_id = ? ORDER BY line_no`, id)
	if err != nil {
		return o, err
	}
	defer rows.Close()
	for rows.Next() {
		var l ledger.OrderLine
		var qty, rate string
		if err := rows.Scan(&l.LineNo, &l.StockItemID, &l.GodownID, &qty, &rate); err != nil {
			return o, err
		}
		l.Quantity = money.MustParse(qty)
		l.Rate = money.MustParse(rate)
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

// GetOrderForUpdate mirrors GetVoucherForUpdate: BEGIN IMMEDIATE already
// holds the write lock, so this is a thin alias.
func (s *Store) GetOrderForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrder(ctx, s.db, company, id)
}
func (t *txStore) GetOrderForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrder(ctx, t.db, company, id)
}

func (s *Store) UpdateOrder(ctx context.Context, o ledger.Order) error { return updateOrder(ctx, s.db, o) }
func (t *txStore) UpdateOrder(ctx context.Context, o ledger.Order) error {
	return updateOrder(ctx, t.db, o)
}
func updateOrder(ctx context.Context, db execer, o ledger.Order) error {
	_, err := db.ExecContext(ctx, `UPDATE orders SET status = ?, cancel_reason = ? WHERE company_id = ? AND id = ?`,
		o.Status, o.CancelReason, o.CompanyID, o.ID)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, o.ID); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, stock_item_id, godown_id, quantity, rate)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, l.LineNo, l.StockItemID, l.GodownID, l.Quantity.Decimal().String(), l.Rate.Decimal().String()); err != nil {
			return fmt.Errorf("insert order line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// ListDueIntegrationEvents and MarkIntegrationEventResult implement
// events.Store for the drain worker (internal/events), kept separate from
// ledger.Store since dispatch is not part of the posting transaction.
func (s *Store) ListDueIntegrationEvents(ctx context.Context, now time.Time, limit int) ([]ledger.IntegrationEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, event_type, payload, status, attempts, max_attempts, next_retry_at, last_error, source_object_id
		FROM integration_events WHERE status IN ('PENDING', 'RETRY') AND next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`,
		now.Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.IntegrationEvent
	for rows.Next() {
		var e ledger.IntegrationEvent
		var nextRetry string
		var lastError, sourceObjectID sql.NullString
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.EventType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts, &nextRetry, &lastError, &sourceObjectID); err != nil {
			return nil, err
		}
		e.NextRetryAt, _ = time.Parse(time.RFC3339, nextRetry)
		e.LastError, e.SourceObjectID = lastError.String, sourceObjectID.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkIntegrationEventResult(ctx context.Context, id ledger.IntegrationEventID, status ledger.EventStatus, attempts int, nextRetryAt time.Time, lastError string, processedAt *time.Time) error {
	var processed any
	if processedAt != nil {
		processed = processedAt.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE integration_events SET status = ?, attempts = ?, next_retry_at = ?, last_error = ?, processed_at = ? WHERE id = ?`,
		status, attempts, nextRetryAt.Format(time.RFC3339), lastError, processed, id)
	return err
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
