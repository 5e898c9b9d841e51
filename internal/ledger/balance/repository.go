package balance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/db"
)

// Repository encapsulates DB access for the balance engine. Cache
// mutations run under WithAccountLock so concurrent refreshes of one
// account serialize on the cache row.
type Repository interface {
	GetAccount(ctx context.Context, id int64) (accounts.Account, error)
	GetCache(ctx context.Context, accountID int64) (CacheRow, bool, error)
	WithAccountLock(ctx context.Context, accountID int64, fn func(context.Context, TxStore) error) error

	SumPostedLines(ctx context.Context, accountID int64, from, to *time.Time) (Sums, error)
	SumDraftLines(ctx context.Context, accountID int64) (Sums, error)
	SumPostedLinesAfter(ctx context.Context, accountID int64, snapDate time.Time, lastEntryID int64, to time.Time) (Sums, error)

	LatestSnapshotBefore(ctx context.Context, accountID int64, date time.Time) (Snapshot, bool, error)
	InsertSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
	InsertAudit(ctx context.Context, entry AuditEntry) error

	RunningLines(ctx context.Context, accountID int64, from, to *time.Time) ([]RunningLine, error)
}

// TxStore exposes cache writes inside the per-account critical section.
type TxStore interface {
	GetCacheForUpdate(ctx context.Context, accountID int64) (CacheRow, bool, error)
	UpsertCache(ctx context.Context, row CacheRow) error
	InsertAudit(ctx context.Context, entry AuditEntry) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetAccount(ctx context.Context, id int64) (accounts.Account, error) {
	var a accounts.Account
	err := r.db.QueryRow(ctx, `SELECT a.id, a.code, a.name, a.parent_id, a.type_id, t.category, t.nature,
a.is_leaf, a.is_active, a.is_cash_account, a.is_bank_account, a.created_at, a.updated_at
FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE a.id=$1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.ParentID, &a.TypeID, &a.Category, &a.Nature,
			&a.IsLeaf, &a.IsActive, &a.IsCashAccount, &a.IsBankAccount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return a, nil
}

const cacheColumns = `account_id, current_balance::text, available_balance::text, pending_balance::text,
total_debits::text, total_credits::text, transactions_count, last_entry_id, is_valid, needs_refresh, last_updated`

func scanCache(row pgx.Row) (CacheRow, bool, error) {
	var c CacheRow
	var current, available, pending, debits, credits string
	err := row.Scan(&c.AccountID, &current, &available, &pending, &debits, &credits,
		&c.TransactionsCount, &c.LastEntryID, &c.IsValid, &c.NeedsRefresh, &c.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CacheRow{}, false, nil
		}
		return CacheRow{}, false, err
	}
	for dst, src := range map[*decimal.Decimal]string{
		&c.CurrentBalance: current, &c.AvailableBalance: available, &c.PendingBalance: pending,
		&c.TotalDebits: debits, &c.TotalCredits: credits,
	} {
		v, err := decimal.NewFromString(src)
		if err != nil {
			return CacheRow{}, false, err
		}
		*dst = v
	}
	return c, true, nil
}

func (r *repository) GetCache(ctx context.Context, accountID int64) (CacheRow, bool, error) {
	return scanCache(r.db.QueryRow(ctx, `SELECT `+cacheColumns+` FROM balance_caches WHERE account_id=$1`, accountID))
}

func (r *repository) WithAccountLock(ctx context.Context, accountID int64, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func sumQuery(where string) string {
	return `SELECT COALESCE(SUM(l.debit),0)::text, COALESCE(SUM(l.credit),0)::text, COUNT(l.id), COALESCE(MAX(e.id),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id=$1 ` + where
}

func scanSums(row pgx.Row) (Sums, error) {
	var s Sums
	var debit, credit string
	if err := row.Scan(&debit, &credit, &s.Count, &s.LastEntryID); err != nil {
		return Sums{}, err
	}
	var err error
	if s.Debit, err = decimal.NewFromString(debit); err != nil {
		return Sums{}, err
	}
	if s.Credit, err = decimal.NewFromString(credit); err != nil {
		return Sums{}, err
	}
	return s, nil
}

func (r *repository) SumPostedLines(ctx context.Context, accountID int64, from, to *time.Time) (Sums, error) {
	query := sumQuery(`AND e.status='POSTED'`)
	args := []any{accountID}
	if from != nil {
		args = append(args, *from)
		query += ` AND e.date >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND e.date <= $3`
		} else {
			query += ` AND e.date <= $2`
		}
	}
	return scanSums(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) SumDraftLines(ctx context.Context, accountID int64) (Sums, error) {
	return scanSums(r.db.QueryRow(ctx, sumQuery(`AND e.status='DRAFT'`), accountID))
}

func (r *repository) SumPostedLinesAfter(ctx context.Context, accountID int64, snapDate time.Time, lastEntryID int64, to time.Time) (Sums, error) {
	query := sumQuery(`AND e.status='POSTED' AND (e.date > $2 OR (e.date = $2 AND e.id > $3)) AND e.date <= $4`)
	return scanSums(r.db.QueryRow(ctx, query, accountID, snapDate, lastEntryID, to))
}

func (r *repository) LatestSnapshotBefore(ctx context.Context, accountID int64, date time.Time) (Snapshot, bool, error) {
	var s Snapshot
	var bal string
	err := r.db.QueryRow(ctx, `SELECT id, account_id, snapshot_date, balance::text, transactions_count, last_entry_id, created_at
FROM balance_snapshots WHERE account_id=$1 AND snapshot_date <= $2 ORDER BY snapshot_date DESC LIMIT 1`, accountID, date).
		Scan(&s.ID, &s.AccountID, &s.SnapshotDate, &bal, &s.TransactionsCount, &s.LastEntryID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	if s.Balance, err = decimal.NewFromString(bal); err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

func (r *repository) InsertSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO balance_snapshots (account_id, snapshot_date, balance, transactions_count, last_entry_id)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (account_id, snapshot_date) DO UPDATE
SET balance=EXCLUDED.balance, transactions_count=EXCLUDED.transactions_count, last_entry_id=EXCLUDED.last_entry_id
RETURNING id, created_at`,
		snap.AccountID, snap.SnapshotDate, snap.Balance.StringFixed(2), snap.TransactionsCount, snap.LastEntryID)
	if err := row.Scan(&snap.ID, &snap.CreatedAt); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func insertAudit(ctx context.Context, execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, entry AuditEntry) error {
	var oldBal, newBal any
	if entry.OldBalance != nil {
		oldBal = entry.OldBalance.StringFixed(2)
	}
	if entry.NewBalance != nil {
		newBal = entry.NewBalance.StringFixed(2)
	}
	_, err := execer.Exec(ctx, `INSERT INTO balance_audit_logs (account_id, action, old_balance, new_balance, journal_entry_id, actor_id, notes, system_generated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.AccountID, entry.Action, oldBal, newBal, entry.EntryID, entry.ActorID, entry.Notes, entry.SystemGenerated)
	return err
}

func (r *repository) InsertAudit(ctx context.Context, entry AuditEntry) error {
	return insertAudit(ctx, r.db, entry)
}

func (r *repository) RunningLines(ctx context.Context, accountID int64, from, to *time.Time) ([]RunningLine, error) {
	query := `SELECT e.id, e.number, l.id, e.date, l.description, l.debit::text, l.credit::text,
SUM(l.debit - l.credit) OVER (ORDER BY e.date, e.id, l.id)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id=$1 AND e.status='POSTED'`
	args := []any{accountID}
	if from != nil {
		args = append(args, *from)
		query += ` AND e.date >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND e.date <= $3`
		} else {
			query += ` AND e.date <= $2`
		}
	}
	query += ` ORDER BY e.date ASC, e.id ASC, l.id ASC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunningLine
	for rows.Next() {
		var line RunningLine
		var debit, credit, running string
		if err := rows.Scan(&line.EntryID, &line.EntryNumber, &line.LineID, &line.Date, &line.Description, &debit, &credit, &running); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		if line.Running, err = decimal.NewFromString(running); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) GetCacheForUpdate(ctx context.Context, accountID int64) (CacheRow, bool, error) {
	return scanCache(s.tx.QueryRow(ctx, `SELECT `+cacheColumns+` FROM balance_caches WHERE account_id=$1 FOR UPDATE`, accountID))
}

// UpsertCache writes the whole row in one statement so readers outside
// the transaction never observe a partially refreshed cache.
func (s *txStore) UpsertCache(ctx context.Context, row CacheRow) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO balance_caches
(account_id, current_balance, available_balance, pending_balance, total_debits, total_credits,
 transactions_count, last_entry_id, is_valid, needs_refresh, last_updated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
ON CONFLICT (account_id) DO UPDATE SET
 current_balance=EXCLUDED.current_balance, available_balance=EXCLUDED.available_balance,
 pending_balance=EXCLUDED.pending_balance, total_debits=EXCLUDED.total_debits,
 total_credits=EXCLUDED.total_credits, transactions_count=EXCLUDED.transactions_count,
 last_entry_id=EXCLUDED.last_entry_id, is_valid=EXCLUDED.is_valid,
 needs_refresh=EXCLUDED.needs_refresh, last_updated=NOW()`,
		row.AccountID, row.CurrentBalance.StringFixed(2), row.AvailableBalance.StringFixed(2),
		row.PendingBalance.StringFixed(2), row.TotalDebits.StringFixed(2), row.TotalCredits.StringFixed(2),
		row.TransactionsCount, row.LastEntryID, row.IsValid, row.NeedsRefresh)
	return err
}

func (s *txStore) InsertAudit(ctx context.Context, entry AuditEntry) error {
	return insertAudit(ctx, s.tx, entry)
}
