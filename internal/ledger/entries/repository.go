package entries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/periods"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/db"
)

// Repository encapsulates DB operations for journal entries. State
// transitions run through WithTx so period and cache rows serialize with
// the entry row.
type Repository interface {
	GetWithLines(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error
	GetEntryForUpdate(ctx context.Context, id int64) (Entry, error)
	GetLines(ctx context.Context, entryID int64) ([]Line, error)
	UpdateHeader(ctx context.Context, id int64, date time.Time, description, notes string) error
	MarkPosted(ctx context.Context, id, periodID, postedBy int64, postedAt time.Time) error
	MarkDraft(ctx context.Context, id int64) error
	MarkCancelled(ctx context.Context, id int64) error
	DeleteEntry(ctx context.Context, id int64) error

	// Period and account reads needed for transaction-safe checks.
	GetPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error)
	GetPeriodByDateForUpdate(ctx context.Context, date time.Time) (periods.Period, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (periods.Period, error)
	GetAccounts(ctx context.Context, ids []int64) ([]accounts.Account, error)

	// MarkCachesStale flags balance cache rows of the given accounts so
	// the next balance read recomputes. Runs inside the posting
	// transaction to keep invariant 5 atomic with the status change.
	MarkCachesStale(ctx context.Context, accountIDs []int64, entryID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, number, reference, date, description, notes, period_id, status, entry_type,
created_by, posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Number, &e.Reference, &e.Date, &e.Description, &e.Notes, &e.PeriodID,
		&e.Status, &e.EntryType, &e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		var debit, credit string
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &debit, &credit, &l.Description, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		var err error
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const lineSelect = `SELECT id, entry_id, account_id, debit::text, credit::text, description, created_at, updated_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`

func (r *repository) GetWithLines(ctx context.Context, id int64) (Entry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return Entry{}, err
	}
	rows, err := r.db.Query(ctx, lineSelect, id)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = scanLines(rows)
	return entry, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries e WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		query += ` AND e.status=` + arg(filter.Status)
	}
	if filter.AccountID != 0 {
		query += ` AND EXISTS (SELECT 1 FROM journal_lines l WHERE l.entry_id=e.id AND l.account_id=` + arg(filter.AccountID) + `)`
	}
	if filter.DateFrom != nil {
		query += ` AND e.date >= ` + arg(*filter.DateFrom)
	}
	if filter.DateTo != nil {
		query += ` AND e.date <= ` + arg(*filter.DateTo)
	}
	query += ` ORDER BY e.date ASC, e.id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (reference, date, description, notes, status, entry_type, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, number, created_at, updated_at`,
		e.Reference, e.Date, e.Description, e.Notes, e.Status, e.EntryType, e.CreatedBy)
	if err := row.Scan(&e.ID, &e.Number, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	return r.InsertLines(ctx, entryID, lines)
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, lineSelect, entryID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *txRepository) UpdateHeader(ctx context.Context, id int64, date time.Time, description, notes string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET date=$2, description=$3, notes=$4, updated_at=NOW() WHERE id=$1`,
		id, date, description, notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id, periodID, postedBy int64, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, period_id=$3, posted_by=$4, posted_at=$5, updated_at=NOW() WHERE id=$1`,
		id, StatusPosted, periodID, postedBy, postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkDraft(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, period_id=NULL, posted_by=NULL, posted_at=NULL, updated_at=NOW() WHERE id=$1`,
		id, StatusDraft)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, StatusCancelled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

const txPeriodSelect = `SELECT id, name, start_date, end_date, status, closed_at, closed_by, created_at, updated_at
FROM accounting_periods`

func (r *txRepository) scanPeriod(row pgx.Row) (periods.Period, error) {
	var p periods.Period
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, shared.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) GetPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error) {
	return r.scanPeriod(r.tx.QueryRow(ctx, txPeriodSelect+` WHERE start_date <= $1 AND end_date >= $1 ORDER BY start_date LIMIT 1`, date))
}

// GetPeriodByDateForUpdate locks the period row so a concurrent close
// serializes with the posting.
func (r *txRepository) GetPeriodByDateForUpdate(ctx context.Context, date time.Time) (periods.Period, error) {
	return r.scanPeriod(r.tx.QueryRow(ctx, txPeriodSelect+` WHERE start_date <= $1 AND end_date >= $1 ORDER BY start_date LIMIT 1 FOR UPDATE`, date))
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (periods.Period, error) {
	return r.scanPeriod(r.tx.QueryRow(ctx, txPeriodSelect+` WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetAccounts(ctx context.Context, ids []int64) ([]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.parent_id, a.type_id, t.category, t.nature,
a.is_leaf, a.is_active, a.is_cash_account, a.is_bank_account, a.created_at, a.updated_at
FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE a.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.ParentID, &a.TypeID, &a.Category, &a.Nature,
			&a.IsLeaf, &a.IsActive, &a.IsCashAccount, &a.IsBankAccount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) MarkCachesStale(ctx context.Context, accountIDs []int64, entryID int64) error {
	if len(accountIDs) == 0 {
		return nil
	}
	if _, err := r.tx.Exec(ctx, `UPDATE balance_caches SET is_valid=FALSE, needs_refresh=TRUE, last_updated=NOW()
WHERE account_id = ANY($1)`, accountIDs); err != nil {
		return err
	}
	for _, accountID := range accountIDs {
		if _, err := r.tx.Exec(ctx, `INSERT INTO balance_audit_logs (account_id, action, journal_entry_id, notes, system_generated)
VALUES ($1,'invalidate',$2,'entry state change',TRUE)`, accountID, entryID); err != nil {
			return err
		}
	}
	return nil
}
