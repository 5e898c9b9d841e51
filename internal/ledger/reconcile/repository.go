package reconcile

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

// AccountBalance pairs an account's authoritative journal balance with
// its cached value, both nature-combined. Cached is nil when no cache
// row exists yet.
type AccountBalance struct {
	AccountID  int64
	Code       string
	Name       string
	Category   accounts.Category
	Nature     accounts.Nature
	Computed   decimal.Decimal
	Cached     *decimal.Decimal
	CacheValid bool
}

type Repository interface {
	AccountBalances(ctx context.Context, asOf *time.Time) ([]AccountBalance, error)
	AccountBalance(ctx context.Context, accountID int64, asOf *time.Time) (AccountBalance, error)
	UnbalancedEntries(ctx context.Context, asOf time.Time) ([]UnbalancedEntry, error)
	DormantAccounts(ctx context.Context, cutoff time.Time) ([]DormantAccount, error)
	RepairCache(ctx context.Context, accountID int64, computed decimal.Decimal, actorID *int64) error
	InsertRecord(ctx context.Context, rec Record) (Record, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func balancesQuery(asOf *time.Time, accountID *int64) (string, []any) {
	query := `SELECT a.id, a.code, a.name, t.category, t.nature,
COALESCE(s.debit, 0)::text, COALESCE(s.credit, 0)::text,
c.current_balance::text, c.is_valid
FROM accounts a
JOIN account_types t ON t.id = a.type_id
LEFT JOIN LATERAL (
	SELECT SUM(l.debit) AS debit, SUM(l.credit) AS credit
	FROM journal_lines l
	JOIN journal_entries e ON e.id = l.entry_id
	WHERE l.account_id = a.id AND e.status = 'POSTED'`
	var args []any
	if asOf != nil {
		args = append(args, *asOf)
		query += ` AND e.date <= $1`
	}
	query += `
) s ON TRUE
LEFT JOIN balance_caches c ON c.account_id = a.id
WHERE a.is_leaf AND a.is_active`
	if accountID != nil {
		args = append(args, *accountID)
		if asOf != nil {
			query += ` AND a.id = $2`
		} else {
			query += ` AND a.id = $1`
		}
	}
	query += ` ORDER BY a.code ASC`
	return query, args
}

func scanAccountBalance(rows pgx.Rows) (AccountBalance, error) {
	var b AccountBalance
	var debit, credit string
	var cached *string
	var valid *bool
	if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Category, &b.Nature,
		&debit, &credit, &cached, &valid); err != nil {
		return AccountBalance{}, err
	}
	d, err := decimal.NewFromString(debit)
	if err != nil {
		return AccountBalance{}, err
	}
	c, err := decimal.NewFromString(credit)
	if err != nil {
		return AccountBalance{}, err
	}
	if b.Nature == accounts.NatureDebit {
		b.Computed = d.Sub(c)
	} else {
		b.Computed = c.Sub(d)
	}
	if cached != nil {
		v, err := decimal.NewFromString(*cached)
		if err != nil {
			return AccountBalance{}, err
		}
		b.Cached = &v
	}
	if valid != nil {
		b.CacheValid = *valid
	}
	return b, nil
}

func (r *repository) AccountBalances(ctx context.Context, asOf *time.Time) ([]AccountBalance, error) {
	query, args := balancesQuery(asOf, nil)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		b, err := scanAccountBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) AccountBalance(ctx context.Context, accountID int64, asOf *time.Time) (AccountBalance, error) {
	query, args := balancesQuery(asOf, &accountID)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return AccountBalance{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return AccountBalance{}, err
		}
		return AccountBalance{}, shared.ErrAccountNotFound
	}
	return scanAccountBalance(rows)
}

func (r *repository) UnbalancedEntries(ctx context.Context, asOf time.Time) ([]UnbalancedEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.number, e.date,
COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
FROM journal_entries e
JOIN journal_lines l ON l.entry_id = e.id
WHERE e.status = 'POSTED' AND e.date <= $1
GROUP BY e.id, e.number, e.date
HAVING SUM(l.debit) <> SUM(l.credit)
ORDER BY e.date ASC, e.id ASC`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedEntry
	for rows.Next() {
		var u UnbalancedEntry
		var debit, credit string
		if err := rows.Scan(&u.EntryID, &u.Number, &u.Date, &debit, &credit); err != nil {
			return nil, err
		}
		if u.TotalDebit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if u.TotalCredit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *repository) DormantAccounts(ctx context.Context, cutoff time.Time) ([]DormantAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, last.activity
FROM accounts a
LEFT JOIN LATERAL (
	SELECT MAX(e.date) AS activity
	FROM journal_lines l
	JOIN journal_entries e ON e.id = l.entry_id
	WHERE l.account_id = a.id AND e.status = 'POSTED'
) last ON TRUE
WHERE a.is_leaf AND a.is_active
  AND (last.activity IS NULL OR last.activity < $1)
ORDER BY a.code ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DormantAccount
	for rows.Next() {
		var d DormantAccount
		if err := rows.Scan(&d.AccountID, &d.Code, &d.Name, &d.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RepairCache writes the computed balance back over a drifted cache row
// under the row lock and records an update action in the audit log.
func (r *repository) RepairCache(ctx context.Context, accountID int64, computed decimal.Decimal, actorID *int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var old *string
		err := tx.QueryRow(ctx, `SELECT current_balance::text FROM balance_caches WHERE account_id=$1 FOR UPDATE`, accountID).Scan(&old)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO balance_caches (account_id, current_balance, available_balance, is_valid, needs_refresh, last_updated)
VALUES ($1, $2, $2, TRUE, FALSE, NOW())
ON CONFLICT (account_id) DO UPDATE SET
 current_balance=EXCLUDED.current_balance, available_balance=EXCLUDED.available_balance,
 is_valid=TRUE, needs_refresh=FALSE, last_updated=NOW()`,
			accountID, computed.StringFixed(2))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO balance_audit_logs (account_id, action, old_balance, new_balance, actor_id, notes, system_generated)
VALUES ($1, 'update', $2, $3, $4, 'reconciliation self-heal', $5)`,
			accountID, old, computed.StringFixed(2), actorID, actorID == nil)
		return err
	})
}

func (r *repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	var external any
	if rec.ExternalBalance != nil {
		external = rec.ExternalBalance.StringFixed(2)
	}
	err := r.db.QueryRow(ctx, `INSERT INTO reconciliations
(account_id, reconciliation_date, system_balance, calculated_balance, external_balance, difference, status, reconciled_by, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id, created_at`,
		rec.AccountID, rec.ReconciliationDate, rec.SystemBalance.StringFixed(2),
		rec.CalculatedBalance.StringFixed(2), external, rec.Difference.StringFixed(2),
		rec.Status, rec.ReconciledBy, rec.Notes).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, shared.ErrReconciliationExists
		}
		return Record{}, err
	}
	return rec, nil
}
