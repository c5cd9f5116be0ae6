// Package postgres is the production ledger.Store: a pgxpool-backed
// implementation that takes row-level locks with SELECT ... FOR UPDATE
// for the two read-modify-write paths that must never interleave across
// concurrent posts — sequence allocation (spec §4.2) and FIFO stock batch
// draws (spec §4.4) — instead of the whole-database lock the sqlite store
// takes via BEGIN IMMEDIATE.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgercore/core/internal/ledger"
	"github.com/ledgercore/core/internal/money"
)

// Store implements ledger.Store against a PostgreSQL database via pgx.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and returns a ready-to-use Store. Schema migration is
// handled separately by goose against migrations/ (see cmd/server/main.go);
// this constructor assumes the schema already exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// querier is satisfied by *pgxpool.Pool and pgx.Tx, so every query helper
// below works whether or not it's inside WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txStore struct{ q querier }

func (t *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, st ledger.Store) error) error {
	return fn(ctx, t)
}

func (s *Store) GetCompany(ctx context.Context, id ledger.CompanyID) (ledger.Company, error) {
	return getCompany(ctx, s.pool, id)
}
func (t *txStore) GetCompany(ctx context.Context, id ledger.CompanyID) (ledger.Company, error) {
	return getCompany(ctx, t.q, id)
}
func getCompany(ctx context.Context, q querier, id ledger.CompanyID) (ledger.Company, error) {
	var c ledger.Company
	err := q.QueryRow(ctx, `SELECT id, code, base_currency, is_active FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.BaseCurrency, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ledger.ErrNotFound
	}
	return c, err
}

func (s *Store) GetCompanyFeature(ctx context.Context, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	return getCompanyFeature(ctx, s.pool, id)
}
func (t *txStore) GetCompanyFeature(ctx context.Context, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	return getCompanyFeature(ctx, t.q, id)
}
func getCompanyFeature(ctx context.Context, q querier, id ledger.CompanyID) (ledger.CompanyFeature, error) {
	var f ledger.CompanyFeature
	var webhook *string
	err := q.QueryRow(ctx, `SELECT company_id, inventory, accounting, locked, webhook_url FROM company_features WHERE company_id = $1`, id).
		Scan(&f.CompanyID, &f.Flags.Inventory, &f.Flags.Accounting, &f.Locked, &webhook)
	if errors.Is(err, pgx.ErrNoRows) {
		return f, ledger.ErrNotFound
	}
	if webhook != nil {
		f.WebhookURL = *webhook
	}
	return f, err
}

func (s *Store) GetCurrentFinancialYear(ctx context.Context, company ledger.CompanyID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, s.pool, "company_id = $1 AND is_current = true", company)
}
func (t *txStore) GetCurrentFinancialYear(ctx context.Context, company ledger.CompanyID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, t.q, "company_id = $1 AND is_current = true", company)
}

func (s *Store) GetFinancialYearForDate(ctx context.Context, company ledger.CompanyID, date time.Time) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, s.pool, "company_id = $1 AND $2::date BETWEEN start_date AND end_date", company, date)
}
func (t *txStore) GetFinancialYearForDate(ctx context.Context, company ledger.CompanyID, date time.Time) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, t.q, "company_id = $1 AND $2::date BETWEEN start_date AND end_date", company, date)
}

func (s *Store) GetFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, s.pool, "company_id = $1 AND id = $2", company, id)
}
func (t *txStore) GetFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) (ledger.FinancialYear, error) {
	return getFYWhere(ctx, t.q, "company_id = $1 AND id = $2", company, id)
}

func getFYWhere(ctx context.Context, q querier, where string, args ...any) (ledger.FinancialYear, error) {
	var fy ledger.FinancialYear
	query := fmt.Sprintf(`SELECT id, company_id, name, start_date, end_date, is_current, is_closed FROM financial_years WHERE %s`, where)
	err := q.QueryRow(ctx, query, args...).Scan(&fy.ID, &fy.CompanyID, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.IsCurrent, &fy.IsClosed)
	if errors.Is(err, pgx.ErrNoRows) {
		return fy, ledger.ErrNotFound
	}
	return fy, err
}

func (s *Store) CloseFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := s.pool.Exec(ctx, `UPDATE financial_years SET is_closed = true WHERE company_id = $1 AND id = $2`, company, id)
	return err
}
func (t *txStore) CloseFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := t.q.Exec(ctx, `UPDATE financial_years SET is_closed = true WHERE company_id = $1 AND id = $2`, company, id)
	return err
}

func (s *Store) ReopenFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := s.pool.Exec(ctx, `UPDATE financial_years SET is_closed = false WHERE company_id = $1 AND id = $2`, company, id)
	return err
}
func (t *txStore) ReopenFinancialYear(ctx context.Context, company ledger.CompanyID, id ledger.FinancialYearID) error {
	_, err := t.q.Exec(ctx, `UPDATE financial_years SET is_closed = false WHERE company_id = $1 AND id = $2`, company, id)
	return err
}

// NextSequenceValue takes a row lock with SELECT ... FOR UPDATE before
// incrementing, so two concurrent posts for the same company+voucher_type
// serialize on this row instead of racing (spec §4.2). Must be called
// inside WithTx — the lock is only held for the enclosing transaction.
func (s *Store) NextSequenceValue(ctx context.Context, company ledger.CompanyID, key, prefix string) (int64, error) {
	return nextSequenceValue(ctx, s.pool, company, key, prefix)
}
func (t *txStore) NextSequenceValue(ctx context.Context, company ledger.CompanyID, key, prefix string) (int64, error) {
	return nextSequenceValue(ctx, t.q, company, key, prefix)
}
func nextSequenceValue(ctx context.Context, q querier, company ledger.CompanyID, key, prefix string) (int64, error) {
	var last int64
	err := q.QueryRow(ctx, `SELECT last_value FROM sequences WHERE company_id = $1 AND seq_key = $2 FOR UPDATE`, company, key).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := q.Exec(ctx, `INSERT INTO sequences (company_id, seq_key, prefix, last_value) VALUES ($1, $2, $3, 1)`, company, key, prefix); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	next := last + 1
	if _, err := q.Exec(ctx, `UPDATE sequences SET last_value = $1 WHERE company_id = $2 AND seq_key = $3`, next, company, key); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) GetLedger(ctx context.Context, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	return getLedger(ctx, s.pool, company, id)
}
func (t *txStore) GetLedger(ctx context.Context, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	return getLedger(ctx, t.q, company, id)
}
func getLedger(ctx context.Context, q querier, company ledger.CompanyID, id ledger.LedgerID) (ledger.Ledger_, error) {
	var l ledger.Ledger_
	var grp *string
	err := q.QueryRow(ctx, `SELECT id, company_id, code, grp, acct_type, is_active FROM ledgers WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&l.ID, &l.CompanyID, &l.Code, &grp, &l.Type, &l.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, ledger.ErrNotFound
	}
	if grp != nil {
		l.Group = *grp
	}
	return l, err
}

func (s *Store) GetParty(ctx context.Context, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, s.pool, company, id)
}
func (t *txStore) GetParty(ctx context.Context, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	return getParty(ctx, t.q, company, id)
}
func getParty(ctx context.Context, q querier, company ledger.CompanyID, id ledger.PartyID) (ledger.Party, error) {
	var p ledger.Party
	var limit *string
	err := q.QueryRow(ctx, `SELECT id, company_id, party_type, ledger_id, credit_limit, credit_days FROM parties WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&p.ID, &p.CompanyID, &p.Type, &p.LedgerID, &limit, &p.CreditDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ledger.ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if limit != nil {
		m := money.MustParse(*limit)
		p.CreditLimit = &m
	}
	return p, nil
}

func (s *Store) GetStockItem(ctx context.Context, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	return getStockItem(ctx, s.pool, company, id)
}
func (t *txStore) GetStockItem(ctx context.Context, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	return getStockItem(ctx, t.q, company, id)
}
func getStockItem(ctx context.Context, q querier, company ledger.CompanyID, id ledger.StockItemID) (ledger.StockItem, error) {
	var it ledger.StockItem
	err := q.QueryRow(ctx, `SELECT id, company_id, sku, uom, is_stock_item, is_active FROM stock_items WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&it.ID, &it.CompanyID, &it.SKU, &it.UOM, &it.IsStockItem, &it.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return it, ledger.ErrNotFound
	}
	return it, err
}

func (s *Store) GetGodown(ctx context.Context, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	return getGodown(ctx, s.pool, company, id)
}
func (t *txStore) GetGodown(ctx context.Context, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	return getGodown(ctx, t.q, company, id)
}
func getGodown(ctx context.Context, q querier, company ledger.CompanyID, id ledger.GodownID) (ledger.Godown, error) {
	var g ledger.Godown
	err := q.QueryRow(ctx, `SELECT id, company_id, code FROM godowns WHERE company_id = $1 AND id = $2`, company, id).Scan(&g.ID, &g.CompanyID, &g.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, ledger.ErrNotFound
	}
	return g, err
}

func (s *Store) GetVoucherType(ctx context.Context, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	return getVoucherType(ctx, s.pool, company, id)
}
func (t *txStore) GetVoucherType(ctx context.Context, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	return getVoucherType(ctx, t.q, company, id)
}
func getVoucherType(ctx context.Context, q querier, company ledger.CompanyID, id ledger.VoucherTypeID) (ledger.VoucherType, error) {
	var vt ledger.VoucherType
	err := q.QueryRow(ctx, `SELECT id, company_id, code, category, is_accounting, is_inventory, is_active FROM voucher_types WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&vt.ID, &vt.CompanyID, &vt.Code, &vt.Category, &vt.IsAccounting, &vt.IsInventory, &vt.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return vt, ledger.ErrNotFound
	}
	return vt, err
}

func (s *Store) InsertVoucher(ctx context.Context, v ledger.Voucher) error { return insertVoucher(ctx, s.pool, v) }
func (t *txStore) InsertVoucher(ctx context.Context, v ledger.Voucher) error {
	return insertVoucher(ctx, t.q, v)
}
func insertVoucher(ctx context.Context, q querier, v ledger.Voucher) error {
	var reversalOf any
	if v.ReversalOfVoucherID != nil {
		reversalOf = string(*v.ReversalOfVoucherID)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO vouchers (id, company_id, voucher_type_id, fy_id, voucher_number, voucher_date, status, reversal_of_voucher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.CompanyID, v.VoucherTypeID, v.FinancialYearID, v.VoucherNumber, v.Date, v.Status, reversalOf)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	for _, l := range v.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO voucher_lines (voucher_id, line_no, ledger_id, amount, entry_type, cost_center, against_voucher)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.VoucherID, l.LineNo, l.LedgerID, l.Amount.Decimal().String(), l.EntryType, l.CostCenter, l.AgainstVoucher); err != nil {
			return fmt.Errorf("insert voucher line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (s *Store) GetVoucher(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucher(ctx, s.pool, company, id)
}
func (t *txStore) GetVoucher(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucher(ctx, t.q, company, id)
}
func getVoucher(ctx context.Context, q querier, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	var v ledger.Voucher
	var reversedVoucherID, reversalOf *string
	var reversedAt *time.Time
	err := q.QueryRow(ctx, `
		SELECT id, company_id, voucher_type_id, fy_id, voucher_number, voucher_date, status,
		       reversed_voucher_id, reversal_reason, reversal_user, reversed_at, reversal_of_voucher_id
		FROM vouchers WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&v.ID, &v.CompanyID, &v.VoucherTypeID, &v.FinancialYearID, &v.VoucherNumber, &v.Date, &v.Status,
			&reversedVoucherID, &v.ReversalReason, &v.ReversalUser, &reversedAt, &reversalOf)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ledger.ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if reversedVoucherID != nil {
		id := ledger.VoucherID(*reversedVoucherID)
		v.ReversedVoucherID = &id
	}
	v.ReversedAt = reversedAt
	if reversalOf != nil {
		id := ledger.VoucherID(*reversalOf)
		v.ReversalOfVoucherID = &id
	}

	rows, err := q.Query(ctx, `SELECT voucher_id, line_no, ledger_id, amount, entry_type, cost_center, against_voucher FROM voucher_lines WHERE voucher_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return v, err
	}
	defer rows.Close()
	for rows.Next() {
		var l ledger.VoucherLine
		var amount string
		var against *string
		if err := rows.Scan(&l.VoucherID, &l.LineNo, &l.LedgerID, &amount, &l.EntryType, &l.CostCenter, &against); err != nil {
			return v, err
		}
		l.Amount = money.MustParse(amount)
		if against != nil {
			id := ledger.VoucherID(*against)
			l.AgainstVoucher = &id
		}
		v.Lines = append(v.Lines, l)
	}
	return v, rows.Err()
}

// GetVoucherForUpdate takes SELECT ... FOR UPDATE on the target voucher
// row (spec §5 lock order item 1: "target voucher row, exclusive"), so
// PostDraft and Reverse see a consistent row and serialize against any
// other transaction racing to finalize the same voucher.
func (s *Store) GetVoucherForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucherForUpdate(ctx, s.pool, company, id)
}
func (t *txStore) GetVoucherForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	return getVoucherForUpdate(ctx, t.q, company, id)
}
func getVoucherForUpdate(ctx context.Context, q querier, company ledger.CompanyID, id ledger.VoucherID) (ledger.Voucher, error) {
	var discard string
	err := q.QueryRow(ctx, `SELECT id FROM vouchers WHERE company_id = $1 AND id = $2 FOR UPDATE`, company, id).Scan(&discard)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Voucher{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Voucher{}, err
	}
	return getVoucher(ctx, q, company, id)
}

func (s *Store) MarkVoucherPosted(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string, postedAt time.Time) error {
	return markVoucherPosted(ctx, s.pool, company, id, voucherNumber)
}
func (t *txStore) MarkVoucherPosted(ctx context.Context, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string, postedAt time.Time) error {
	return markVoucherPosted(ctx, t.q, company, id, voucherNumber)
}
func markVoucherPosted(ctx context.Context, q querier, company ledger.CompanyID, id ledger.VoucherID, voucherNumber string) error {
	tag, err := q.Exec(ctx, `
		UPDATE vouchers SET status = $1, voucher_number = $2 WHERE company_id = $3 AND id = $4 AND status = $5`,
		ledger.VoucherPosted, voucherNumber, company, id, ledger.VoucherDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher %s", ledger.ErrAlreadyPosted, id)
	}
	return nil
}

func (s *Store) MarkVoucherReversed(ctx context.Context, company ledger.CompanyID, id, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	return markVoucherReversed(ctx, s.pool, company, id, reversal, reason, user, at)
}
func (t *txStore) MarkVoucherReversed(ctx context.Context, company ledger.CompanyID, id, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	return markVoucherReversed(ctx, t.q, company, id, reversal, reason, user, at)
}
func markVoucherReversed(ctx context.Context, q querier, company ledger.CompanyID, id, reversal ledger.VoucherID, reason, user string, at time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE vouchers SET status = $1, reversed_voucher_id = $2, reversal_reason = $3, reversal_user = $4, reversed_at = $5
		WHERE company_id = $6 AND id = $7 AND status = $8 AND reversed_voucher_id IS NULL`,
		ledger.VoucherReversed, reversal, reason, user, at, company, id, ledger.VoucherPosted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher %s", ledger.ErrAlreadyReversed, id)
	}
	_, err = q.Exec(ctx, `UPDATE vouchers SET reversal_of_voucher_id = $1 WHERE company_id = $2 AND id = $3`, id, company, reversal)
	return err
}

func (s *Store) GetLedgerBalance(ctx context.Context, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	return getLedgerBalance(ctx, s.pool, key)
}
func (t *txStore) GetLedgerBalance(ctx context.Context, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	return getLedgerBalance(ctx, t.q, key)
}
func getLedgerBalance(ctx context.Context, q querier, key ledger.LedgerBalanceKey) (ledger.LedgerBalance, error) {
	var b ledger.LedgerBalance
	b.Key = key
	var dr, cr string
	var last *string
	err := q.QueryRow(ctx, `SELECT balance_dr, balance_cr, last_posted_voucher_id FROM ledger_balances WHERE company_id = $1 AND ledger_id = $2 AND fy_id = $3 FOR UPDATE`,
		key.CompanyID, key.LedgerID, key.FinancialYearID).Scan(&dr, &cr, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	b.BalanceDR, b.BalanceCR = money.MustParse(dr), money.MustParse(cr)
	if last != nil {
		b.LastPostedVoucherID = ledger.VoucherID(*last)
	}
	return b, nil
}

func (s *Store) UpsertLedgerBalance(ctx context.Context, b ledger.LedgerBalance) error {
	return upsertLedgerBalance(ctx, s.pool, b)
}
func (t *txStore) UpsertLedgerBalance(ctx context.Context, b ledger.LedgerBalance) error {
	return upsertLedgerBalance(ctx, t.q, b)
}
func upsertLedgerBalance(ctx context.Context, q querier, b ledger.LedgerBalance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO ledger_balances (company_id, ledger_id, fy_id, balance_dr, balance_cr, last_posted_voucher_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, ledger_id, fy_id) DO UPDATE SET
			balance_dr = excluded.balance_dr, balance_cr = excluded.balance_cr, last_posted_voucher_id = excluded.last_posted_voucher_id`,
		b.Key.CompanyID, b.Key.LedgerID, b.Key.FinancialYearID, b.BalanceDR.Decimal().String(), b.BalanceCR.Decimal().String(), b.LastPostedVoucherID)
	return err
}

// ListOpenStockBatchesFIFO locks every candidate batch's balance row with
// FOR UPDATE so two concurrent sales against the same batch serialize
// instead of both reading the same "available" quantity (spec §4.4).
func (s *Store) ListOpenStockBatchesFIFO(ctx context.Context, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	return listOpenStockBatchesFIFO(ctx, s.pool, company, item, godown)
}
func (t *txStore) ListOpenStockBatchesFIFO(ctx context.Context, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	return listOpenStockBatchesFIFO(ctx, t.q, company, item, godown)
}
func listOpenStockBatchesFIFO(ctx context.Context, q querier, company ledger.CompanyID, item ledger.StockItemID, godown ledger.GodownID) ([]ledger.BatchBalance, error) {
	rows, err := q.Query(ctx, `
		SELECT b.id, b.company_id, b.item_id, b.batch_number, b.created_at, sb.quantity_on_hand
		FROM stock_batches b
		JOIN stock_balances sb ON sb.company_id = b.company_id AND sb.item_id = b.item_id AND sb.batch_id = b.id AND sb.godown_id = $1
		WHERE b.company_id = $2 AND b.item_id = $3 AND sb.quantity_on_hand != 0
		ORDER BY b.created_at ASC
		FOR UPDATE OF sb`, godown, company, item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.BatchBalance
	for rows.Next() {
		var bb ledger.BatchBalance
		var qty string
		if err := rows.Scan(&bb.Batch.ID, &bb.Batch.CompanyID, &bb.Batch.ItemID, &bb.Batch.BatchNumber, &bb.Batch.CreatedAt, &qty); err != nil {
			return nil, err
		}
		bb.QuantityOnHand = money.MustParse(qty)
		out = append(out, bb)
	}
	return out, rows.Err()
}

func (s *Store) GetStockBalance(ctx context.Context, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	return getStockBalance(ctx, s.pool, key)
}
func (t *txStore) GetStockBalance(ctx context.Context, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	return getStockBalance(ctx, t.q, key)
}
func getStockBalance(ctx context.Context, q querier, key ledger.StockBalanceKey) (ledger.StockBalance, error) {
	var b ledger.StockBalance
	b.Key = key
	var qty string
	var last *string
	err := q.QueryRow(ctx, `SELECT quantity_on_hand, last_movement_id FROM stock_balances WHERE company_id = $1 AND item_id = $2 AND godown_id = $3 AND batch_id = $4 FOR UPDATE`,
		key.CompanyID, key.ItemID, key.GodownID, key.BatchID).Scan(&qty, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	b.QuantityOnHand = money.MustParse(qty)
	if last != nil {
		b.LastMovementID = *last
	}
	return b, nil
}

func (s *Store) UpsertStockBalance(ctx context.Context, b ledger.StockBalance) error {
	return upsertStockBalance(ctx, s.pool, b)
}
func (t *txStore) UpsertStockBalance(ctx context.Context, b ledger.StockBalance) error {
	return upsertStockBalance(ctx, t.q, b)
}
func upsertStockBalance(ctx context.Context, q querier, b ledger.StockBalance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO stock_balances (company_id, item_id, godown_id, batch_id, quantity_on_hand, last_movement_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, item_id, godown_id, batch_id) DO UPDATE SET
			quantity_on_hand = excluded.quantity_on_hand, last_movement_id = excluded.last_movement_id`,
		b.Key.CompanyID, b.Key.ItemID, b.Key.GodownID, b.Key.BatchID, b.QuantityOnHand.Decimal().String(), b.LastMovementID)
	return err
}

func (s *Store) InsertStockMovement(ctx context.Context, m ledger.StockMovement) error {
	return insertStockMovement(ctx, s.pool, m)
}
func (t *txStore) InsertStockMovement(ctx context.Context, m ledger.StockMovement) error {
	return insertStockMovement(ctx, t.q, m)
}
func insertStockMovement(ctx context.Context, q querier, m ledger.StockMovement) error {
	_, err := q.Exec(ctx, `
		INSERT INTO stock_movements (id, company_id, voucher_id, item_id, from_godown_id, to_godown_id, batch_id, quantity, rate, movement_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.CompanyID, m.VoucherID, m.ItemID, m.FromGodownID, m.ToGodownID, m.BatchID, m.Quantity.Decimal().String(), m.Rate.Decimal().String(), m.MovementDate)
	return err
}

func (s *Store) InsertStockBatch(ctx context.Context, b ledger.StockBatch) error {
	return insertStockBatch(ctx, s.pool, b)
}
func (t *txStore) InsertStockBatch(ctx context.Context, b ledger.StockBatch) error {
	return insertStockBatch(ctx, t.q, b)
}
func insertStockBatch(ctx context.Context, q querier, b ledger.StockBatch) error {
	_, err := q.Exec(ctx, `
		INSERT INTO stock_batches (id, company_id, item_id, batch_number, mfg_date, exp_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.CompanyID, b.ItemID, b.BatchNumber, b.MfgDate, b.ExpDate, b.CreatedAt)
	return err
}

func (s *Store) InsertInvoice(ctx context.Context, inv ledger.Invoice) error { return insertInvoice(ctx, s.pool, inv) }
func (t *txStore) InsertInvoice(ctx context.Context, inv ledger.Invoice) error {
	return insertInvoice(ctx, t.q, inv)
}
func insertInvoice(ctx context.Context, q querier, inv ledger.Invoice) error {
	linesJSON, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("marshal invoice lines: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO invoices (id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.CompanyID, inv.PartyID, inv.Type, inv.InvoiceNumber, inv.Date, inv.DueDate,
		inv.VoucherID, linesJSON, inv.TotalValue.Decimal().String(), inv.AmountReceived.Decimal().String(), inv.Status)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	return getInvoice(ctx, s.pool, company, id)
}
func (t *txStore) GetInvoice(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	return getInvoice(ctx, t.q, company, id)
}
func getInvoice(ctx context.Context, q querier, company ledger.CompanyID, id ledger.InvoiceID) (ledger.Invoice, error) {
	var inv ledger.Invoice
	var linesJSON []byte
	var total, received string
	err := q.QueryRow(ctx, `
		SELECT id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status
		FROM invoices WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&inv.ID, &inv.CompanyID, &inv.PartyID, &inv.Type, &inv.InvoiceNumber, &inv.Date, &inv.DueDate, &inv.VoucherID, &linesJSON, &total, &received, &inv.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return inv, ledger.ErrNotFound
	}
	if err != nil {
		return inv, err
	}
	json.Unmarshal(linesJSON, &inv.Lines)
	inv.TotalValue = money.MustParse(total)
	inv.AmountReceived = money.MustParse(received)
	return inv, nil
}

func (s *Store) UpdateInvoiceReceived(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	return updateInvoiceReceived(ctx, s.pool, company, id, received, status)
}
func (t *txStore) UpdateInvoiceReceived(ctx context.Context, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	return updateInvoiceReceived(ctx, t.q, company, id, received, status)
}
func updateInvoiceReceived(ctx context.Context, q querier, company ledger.CompanyID, id ledger.InvoiceID, received money.Money, status ledger.InvoiceStatus) error {
	_, err := q.Exec(ctx, `UPDATE invoices SET amount_received = $1, status = $2 WHERE company_id = $3 AND id = $4`,
		received.Decimal().String(), status, company, id)
	return err
}

func (s *Store) ListOutstandingInvoices(ctx context.Context, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoices(ctx, s.pool, company, party)
}
func (t *txStore) ListOutstandingInvoices(ctx context.Context, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoices(ctx, t.q, company, party)
}
func listOutstandingInvoices(ctx context.Context, q querier, company ledger.CompanyID, party ledger.PartyID) ([]ledger.Invoice, error) {
	rows, err := q.Query(ctx, `
		SELECT id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status
		FROM invoices WHERE company_id = $1 AND party_id = $2 AND status != $3`, company, party, ledger.InvoiceStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

func (s *Store) ListOutstandingInvoicesForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoicesForCompany(ctx, s.pool, company)
}
func (t *txStore) ListOutstandingInvoicesForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Invoice, error) {
	return listOutstandingInvoicesForCompany(ctx, t.q, company)
}
func listOutstandingInvoicesForCompany(ctx context.Context, q querier, company ledger.CompanyID) ([]ledger.Invoice, error) {
	rows, err := q.Query(ctx, `
		SELECT id, company_id, party_id, invoice_type, invoice_number, invoice_date, due_date, voucher_id, lines_json, total_value, amount_received, status
		FROM invoices WHERE company_id = $1 AND status != $2`, company, ledger.InvoiceStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

func scanInvoiceRows(rows pgx.Rows) ([]ledger.Invoice, error) {
	var out []ledger.Invoice
	for rows.Next() {
		var inv ledger.Invoice
		var linesJSON []byte
		var total, received string
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.PartyID, &inv.Type, &inv.InvoiceNumber, &inv.Date, &inv.DueDate, &inv.VoucherID, &linesJSON, &total, &received, &inv.Status); err != nil {
			return nil, err
		}
		json.Unmarshal(linesJSON, &inv.Lines)
		inv.TotalValue = money.MustParse(total)
		inv.AmountReceived = money.MustParse(received)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error { return insertPayment(ctx, s.pool, p) }
func (t *txStore) InsertPayment(ctx context.Context, p ledger.Payment) error {
	return insertPayment(ctx, t.q, p)
}
func insertPayment(ctx context.Context, q querier, p ledger.Payment) error {
	linesJSON, err := json.Marshal(p.Lines)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO payments (id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.CompanyID, p.PartyID, nullableVoucherID(p.VoucherID), p.Type, p.BankAccount, p.PaymentMode, p.Status, linesJSON)
	return err
}

// nullableVoucherID maps the empty-string "no voucher yet" sentinel a
// draft Payment carries (ledger.Payment.VoucherID is a bare string alias,
// not a pointer) onto SQL NULL, since voucher_id has a foreign key into
// vouchers(id) that an empty string would violate.
func nullableVoucherID(id ledger.VoucherID) any {
	if id == "" {
		return nil
	}
	return id
}

func (s *Store) GetPayment(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPayment(ctx, s.pool, company, id)
}
func (t *txStore) GetPayment(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPayment(ctx, t.q, company, id)
}
func getPayment(ctx context.Context, q querier, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	var p ledger.Payment
	var linesJSON []byte
	var bankAccount, paymentMode, voucherID *string
	err := q.QueryRow(ctx, `
		SELECT id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json
		FROM payments WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&p.ID, &p.CompanyID, &p.PartyID, &voucherID, &p.Type, &bankAccount, &paymentMode, &p.Status, &linesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ledger.ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if voucherID != nil {
		p.VoucherID = ledger.VoucherID(*voucherID)
	}
	if bankAccount != nil {
		p.BankAccount = *bankAccount
	}
	if paymentMode != nil {
		p.PaymentMode = *paymentMode
	}
	if err := json.Unmarshal(linesJSON, &p.Lines); err != nil {
		return p, fmt.Errorf("unmarshal payment lines: %w", err)
	}
	return p, nil
}

// GetPaymentForUpdate takes SELECT ... FOR UPDATE on the payment row so
// allocate_payment/remove_allocation/post_payment can't race each other
// over the same draft, mirroring GetVoucherForUpdate.
func (s *Store) GetPaymentForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPaymentForUpdate(ctx, s.pool, company, id)
}
func (t *txStore) GetPaymentForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	return getPaymentForUpdate(ctx, t.q, company, id)
}
func getPaymentForUpdate(ctx context.Context, q querier, company ledger.CompanyID, id ledger.PaymentID) (ledger.Payment, error) {
	var discard string
	err := q.QueryRow(ctx, `SELECT id FROM payments WHERE company_id = $1 AND id = $2 FOR UPDATE`, company, id).Scan(&discard)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Payment{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Payment{}, err
	}
	return getPayment(ctx, q, company, id)
}

func (s *Store) UpdatePayment(ctx context.Context, p ledger.Payment) error { return updatePayment(ctx, s.pool, p) }
func (t *txStore) UpdatePayment(ctx context.Context, p ledger.Payment) error {
	return updatePayment(ctx, t.q, p)
}
func updatePayment(ctx context.Context, q querier, p ledger.Payment) error {
	linesJSON, err := json.Marshal(p.Lines)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		UPDATE payments SET voucher_id = $1, payment_type = $2, bank_account = $3, payment_mode = $4, status = $5, lines_json = $6
		WHERE company_id = $7 AND id = $8`,
		nullableVoucherID(p.VoucherID), p.Type, p.BankAccount, p.PaymentMode, p.Status, linesJSON, p.CompanyID, p.ID)
	return err
}

func (s *Store) GetPaymentByVoucher(ctx context.Context, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	return getPaymentByVoucher(ctx, s.pool, company, voucherID)
}
func (t *txStore) GetPaymentByVoucher(ctx context.Context, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	return getPaymentByVoucher(ctx, t.q, company, voucherID)
}
func getPaymentByVoucher(ctx context.Context, q querier, company ledger.CompanyID, voucherID ledger.VoucherID) (ledger.Payment, bool, error) {
	var p ledger.Payment
	var linesJSON []byte
	var bankAccount, paymentMode *string
	row := q.QueryRow(ctx, `
		SELECT id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json
		FROM payments WHERE company_id = $1 AND voucher_id = $2`, company, voucherID)
	if err := row.Scan(&p.ID, &p.CompanyID, &p.PartyID, &p.VoucherID, &p.Type, &bankAccount, &paymentMode, &p.Status, &linesJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Payment{}, false, nil
		}
		return ledger.Payment{}, false, err
	}
	if bankAccount != nil {
		p.BankAccount = *bankAccount
	}
	if paymentMode != nil {
		p.PaymentMode = *paymentMode
	}
	if err := json.Unmarshal(linesJSON, &p.Lines); err != nil {
		return ledger.Payment{}, false, fmt.Errorf("unmarshal payment lines: %w", err)
	}
	return p, true, nil
}

func (s *Store) ListPaymentsForInvoice(ctx context.Context, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	return listPaymentsForInvoice(ctx, s.pool, company, invoiceID)
}
func (t *txStore) ListPaymentsForInvoice(ctx context.Context, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	return listPaymentsForInvoice(ctx, t.q, company, invoiceID)
}

// listPaymentsForInvoice loads every payment for company and filters on
// the unmarshalled lines_json in Go rather than a jsonb containment
// operator, so the filter doesn't depend on the exact key casing
// encoding/json chose for PaymentLine — the same approach the sqlite
// store uses, which has no jsonb operators to reach for at all.
func listPaymentsForInvoice(ctx context.Context, q querier, company ledger.CompanyID, invoiceID ledger.InvoiceID) ([]ledger.Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, company_id, party_id, voucher_id, payment_type, bank_account, payment_mode, status, lines_json
		FROM payments WHERE company_id = $1`, company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		var linesJSON []byte
		var bankAccount, paymentMode *string
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.PartyID, &p.VoucherID, &p.Type, &bankAccount, &paymentMode, &p.Status, &linesJSON); err != nil {
			return nil, err
		}
		if bankAccount != nil {
			p.BankAccount = *bankAccount
		}
		if paymentMode != nil {
			p.PaymentMode = *paymentMode
		}
		if err := json.Unmarshal(linesJSON, &p.Lines); err != nil {
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
	return checkIdempotencyKey(ctx, s.pool, company, key)
}
func (t *txStore) CheckIdempotencyKey(ctx context.Context, company ledger.CompanyID, key string) (ledger.VoucherID, bool, error) {
	return checkIdempotencyKey(ctx, t.q, company, key)
}
func checkIdempotencyKey(ctx context.Context, q querier, company ledger.CompanyID, key string) (ledger.VoucherID, bool, error) {
	var voucherID string
	err := q.QueryRow(ctx, `SELECT voucher_id FROM idempotency_keys WHERE company_id = $1 AND idem_key = $2`, company, key).Scan(&voucherID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ledger.VoucherID(voucherID), true, nil
}

func (s *Store) ReserveIdempotencyKey(ctx context.Context, k ledger.IdempotencyKey) error {
	return reserveIdempotencyKey(ctx, s.pool, k)
}
func (t *txStore) ReserveIdempotencyKey(ctx context.Context, k ledger.IdempotencyKey) error {
	return reserveIdempotencyKey(ctx, t.q, k)
}
func reserveIdempotencyKey(ctx context.Context, q querier, k ledger.IdempotencyKey) error {
	_, err := q.Exec(ctx, `INSERT INTO idempotency_keys (idem_key, company_id, voucher_id) VALUES ($1, $2, $3)`, k.Key, k.CompanyID, k.VoucherID)
	if err != nil && isUniqueViolation(err) {
		return ledger.ErrDuplicateIdempotencyKey
	}
	return err
}

func (s *Store) InsertApproval(ctx context.Context, a ledger.Approval) error { return insertApproval(ctx, s.pool, a) }
func (t *txStore) InsertApproval(ctx context.Context, a ledger.Approval) error {
	return insertApproval(ctx, t.q, a)
}
func insertApproval(ctx context.Context, q querier, a ledger.Approval) error {
	_, err := q.Exec(ctx, `
		INSERT INTO approvals (id, company_id, target_type, target_id, status, requested_by, approved_by, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.CompanyID, a.TargetType, a.TargetID, a.Status, a.RequestedBy, a.ApprovedBy, a.Remarks)
	return err
}

func (s *Store) GetApproval(ctx context.Context, company ledger.CompanyID, t ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	return getApproval(ctx, s.pool, company, t, targetID)
}
func (ts *txStore) GetApproval(ctx context.Context, company ledger.CompanyID, t ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	return getApproval(ctx, ts.q, company, t, targetID)
}
func getApproval(ctx context.Context, q querier, company ledger.CompanyID, t ledger.TargetType, targetID string) (ledger.Approval, bool, error) {
	var a ledger.Approval
	err := q.QueryRow(ctx, `
		SELECT id, company_id, target_type, target_id, status, requested_by, approved_by, remarks
		FROM approvals WHERE company_id = $1 AND target_type = $2 AND target_id = $3`, company, t, targetID).
		Scan(&a.ID, &a.CompanyID, &a.TargetType, &a.TargetID, &a.Status, &a.RequestedBy, &a.ApprovedBy, &a.Remarks)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, false, nil
	}
	if err != nil {
		return a, false, err
	}
	return a, true, nil
}

func (s *Store) UpdateApprovalStatus(ctx context.Context, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	return updateApprovalStatus(ctx, s.pool, company, id, status, approvedBy, remarks)
}
func (t *txStore) UpdateApprovalStatus(ctx context.Context, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	return updateApprovalStatus(ctx, t.q, company, id, status, approvedBy, remarks)
}
func updateApprovalStatus(ctx context.Context, q querier, company ledger.CompanyID, id ledger.ApprovalID, status ledger.ApprovalStatus, approvedBy, remarks string) error {
	_, err := q.Exec(ctx, `UPDATE approvals SET status = $1, approved_by = $2, remarks = $3 WHERE company_id = $4 AND id = $5`,
		status, approvedBy, remarks, company, id)
	return err
}

func (s *Store) GetApprovalRule(ctx context.Context, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	return getApprovalRule(ctx, s.pool, company, t)
}
func (ts *txStore) GetApprovalRule(ctx context.Context, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	return getApprovalRule(ctx, ts.q, company, t)
}
func getApprovalRule(ctx context.Context, q querier, company ledger.CompanyID, t ledger.TargetType) (ledger.ApprovalRule, bool, error) {
	var r ledger.ApprovalRule
	r.CompanyID, r.TargetType = company, t
	var threshold *string
	err := q.QueryRow(ctx, `SELECT approval_required, threshold_amount, auto_approve_below_threshold FROM approval_rules WHERE company_id = $1 AND target_type = $2`, company, t).
		Scan(&r.ApprovalRequired, &threshold, &r.AutoApproveBelowThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	if threshold != nil {
		m := money.MustParse(*threshold)
		r.ThresholdAmount = &m
	}
	return r, true, nil
}

func (s *Store) EnqueueIntegrationEvent(ctx context.Context, e ledger.IntegrationEvent) error {
	return enqueueIntegrationEvent(ctx, s.pool, e)
}
func (t *txStore) EnqueueIntegrationEvent(ctx context.Context, e ledger.IntegrationEvent) error {
	return enqueueIntegrationEvent(ctx, t.q, e)
}
func enqueueIntegrationEvent(ctx context.Context, q querier, e ledger.IntegrationEvent) error {
	_, err := q.Exec(ctx, `
		INSERT INTO integration_events (id, company_id, event_type, payload, status, attempts, max_attempts, next_retry_at, last_error, source_object_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.CompanyID, e.EventType, e.Payload, e.Status, e.Attempts, e.MaxAttempts, e.NextRetryAt, e.LastError, e.SourceObjectID)
	return err
}

func (s *Store) AppendAuditLog(ctx context.Context, a ledger.AuditLog) error { return appendAuditLog(ctx, s.pool, a) }
func (t *txStore) AppendAuditLog(ctx context.Context, a ledger.AuditLog) error {
	return appendAuditLog(ctx, t.q, a)
}
func appendAuditLog(ctx context.Context, q querier, a ledger.AuditLog) error {
	changesJSON, _ := json.Marshal(a.Changes)
	_, err := q.Exec(ctx, `
		INSERT INTO audit_logs (id, company_id, actor, action_type, object_type, object_id, changes_json, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.CompanyID, a.Actor, a.ActionType, a.ObjectType, a.ObjectID, changesJSON, a.IP, a.UserAgent, a.CreatedAt)
	return err
}

// ListVouchers backs the list_vouchers selector, optionally narrowed to a
// financial year and/or status.
func (s *Store) ListVouchers(ctx context.Context, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	return listVouchers(ctx, s.pool, company, fy, status, limit)
}
func (t *txStore) ListVouchers(ctx context.Context, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	return listVouchers(ctx, t.q, company, fy, status, limit)
}

func listVouchers(ctx context.Context, q querier, company ledger.CompanyID, fy ledger.FinancialYearID, status ledger.VoucherStatus, limit int) ([]ledger.Voucher, error) {
	query := `SELECT id FROM vouchers WHERE company_id = $1`
	args := []any{company}
	if fy != "" {
		args = append(args, fy)
		query += fmt.Sprintf(` AND fy_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY voucher_date DESC, id DESC LIMIT $%d`, len(args))

	rows, err := q.Query(ctx, query, args...)
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
		v, err := getVoucher(ctx, q, company, id)
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
	return listLedgersForCompany(ctx, s.pool, company)
}
func (t *txStore) ListLedgersForCompany(ctx context.Context, company ledger.CompanyID) ([]ledger.Ledger_, error) {
	return listLedgersForCompany(ctx, t.q, company)
}

func listLedgersForCompany(ctx context.Context, q querier, company ledger.CompanyID) ([]ledger.Ledger_, error) {
	rows, err := q.Query(ctx, `SELECT id, company_id, code, grp, acct_type, is_active FROM ledgers WHERE company_id = $1 ORDER BY code`, company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Ledger_
	for rows.Next() {
		var l ledger.Ledger_
		var grp *string
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.Code, &grp, &l.Type, &l.IsActive); err != nil {
			return nil, err
		}
		if grp != nil {
			l.Group = *grp
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListAuditLogs backs internal/audit's reader, optionally narrowed to a
// single object.
func (s *Store) ListAuditLogs(ctx context.Context, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	return listAuditLogs(ctx, s.pool, company, objectType, objectID, limit)
}
func (t *txStore) ListAuditLogs(ctx context.Context, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	return listAuditLogs(ctx, t.q, company, objectType, objectID, limit)
}

func listAuditLogs(ctx context.Context, q querier, company ledger.CompanyID, objectType, objectID string, limit int) ([]ledger.AuditLog, error) {
	query := `
		SELECT id, company_id, actor, action_type, object_type, object_id, changes_json, ip, user_agent, created_at
		FROM audit_logs WHERE company_id = $1`
	args := []any{company}
	if objectType != "" && objectID != "" {
		query += ` AND object_type = $2 AND object_id = $3`
		args = append(args, objectType, objectID)
		query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.AuditLog
	for rows.Next() {
		var a ledger.AuditLog
		var changesJSON []byte
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Actor, &a.ActionType, &a.ObjectType, &a.ObjectID, &changesJSON, &a.IP, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(changesJSON, &a.Changes)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) InsertOrder(ctx context.Context, o ledger.Order) error { return insertOrder(ctx, s.pool, o) }
func (t *txStore) InsertOrder(ctx context.Context, o ledger.Order) error {
	return insertOrder(ctx, t.q, o)
}
func insertOrder(ctx context.Context, q querier, o ledger.Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders (id, company_id, party_id, order_type, status, order_date, cancel_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.CompanyID, o.PartyID, o.Type, o.Status, o.Date, o.CancelReason)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, l := range o.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_lines (order_id, line_no, stock_item_id, godown_id, quantity, rate)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, l.LineNo, l.StockItemID, l.GodownID, l.Quantity.Decimal().String(), l.Rate.Decimal().String()); err != nil {
			return fmt.Errorf("insert order line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrder(ctx, s.pool, company, id)
}
func (t *txStore) GetOrder(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrder(ctx, t.q, company, id)
}
func getOrder(ctx context.Context, q querier, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	var o ledger.Order
	var cancelReason *string
	err := q.QueryRow(ctx, `
		SELECT id, company_id, party_id, order_type, status, order_date, cancel_reason
		FROM orders WHERE company_id = $1 AND id = $2`, company, id).
		Scan(&o.ID, &o.CompanyID, &o.PartyID, &o.Type, &o.Status, &o.Date, &cancelReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ledger.ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if cancelReason != nil {
		o.CancelReason = *cancelReason
	}

	rows, err := q.Query(ctx, `SELECT line_no, stock_item_id, godown_id, quantity, rate FROM order_lines WHERE order_id = $1 ORDER BY line_no`, id)
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

// GetOrderForUpdate takes SELECT ... FOR UPDATE on the order row so
// confirm_order/cancel_order can't race each other over the same order,
// mirroring GetVoucherForUpdate.
func (s *Store) GetOrderForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrderForUpdate(ctx, s.pool, company, id)
}
func (t *txStore) GetOrderForUpdate(ctx context.Context, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	return getOrderForUpdate(ctx, t.q, company, id)
}
func getOrderForUpdate(ctx context.Context, q querier, company ledger.CompanyID, id ledger.OrderID) (ledger.Order, error) {
	var discard string
	err := q.QueryRow(ctx, `SELECT id FROM orders WHERE company_id = $1 AND id = $2 FOR UPDATE`, company, id).Scan(&discard)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Order{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Order{}, err
	}
	return getOrder(ctx, q, company, id)
}

func (s *Store) UpdateOrder(ctx context.Context, o ledger.Order) error { return updateOrder(ctx, s.pool, o) }
func (t *txStore) UpdateOrder(ctx context.Context, o ledger.Order) error {
	return updateOrder(ctx, t.q, o)
}
func updateOrder(ctx context.Context, q querier, o ledger.Order) error {
	_, err := q.Exec(ctx, `UPDATE orders SET status = $1, cancel_reason = $2 WHERE company_id = $3 AND id = $4`,
		o.Status, o.CancelReason, o.CompanyID, o.ID)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, o.ID); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_lines (order_id, line_no, stock_item_id, godown_id, quantity, rate)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, l.LineNo, l.StockItemID, l.GodownID, l.Quantity.Decimal().String(), l.Rate.Decimal().String()); err != nil {
			return fmt.Errorf("insert order line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// ListDueIntegrationEvents and MarkIntegrationEventResult implement
// events.Store for the drain worker (internal/events); kept off
// ledger.Store since dispatch runs outside the posting transaction.
func (s *Store) ListDueIntegrationEvents(ctx context.Context, now time.Time, limit int) ([]ledger.IntegrationEvent, error) {
	return listDueIntegrationEvents(ctx, s.pool, now, limit)
}
func (t *txStore) ListDueIntegrationEvents(ctx context.Context, now time.Time, limit int) ([]ledger.IntegrationEvent, error) {
	return listDueIntegrationEvents(ctx, t.q, now, limit)
}
func listDueIntegrationEvents(ctx context.Context, q querier, now time.Time, limit int) ([]ledger.IntegrationEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT id, company_id, event_type, payload, status, attempts, max_attempts, next_retry_at, last_error, source_object_id
		FROM integration_events WHERE status IN ('PENDING', 'RETRY') AND next_retry_at <= $1 ORDER BY next_retry_at ASC LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.IntegrationEvent
	for rows.Next() {
		var e ledger.IntegrationEvent
		var lastError, sourceObjectID *string
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.EventType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts, &e.NextRetryAt, &lastError, &sourceObjectID); err != nil {
			return nil, err
		}
		if lastError != nil {
			e.LastError = *lastError
		}
		if sourceObjectID != nil {
			e.SourceObjectID = *sourceObjectID
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkIntegrationEventResult(ctx context.Context, id ledger.IntegrationEventID, status ledger.EventStatus, attempts int, nextRetryAt time.Time, lastError string, processedAt *time.Time) error {
	return markIntegrationEventResult(ctx, s.pool, id, status, attempts, nextRetryAt, lastError, processedAt)
}
func (t *txStore) MarkIntegrationEventResult(ctx context.Context, id ledger.IntegrationEventID, status ledger.EventStatus, attempts int, nextRetryAt time.Time, lastError string, processedAt *time.Time) error {
	return markIntegrationEventResult(ctx, t.q, id, status, attempts, nextRetryAt, lastError, processedAt)
}
func markIntegrationEventResult(ctx context.Context, q querier, id ledger.IntegrationEventID, status ledger.EventStatus, attempts int, nextRetryAt time.Time, lastError string, processedAt *time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE integration_events SET status = $1, attempts = $2, next_retry_at = $3, last_error = $4, processed_at = $5 WHERE id = $6`,
		status, attempts, nextRetryAt, lastError, processedAt, id)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
