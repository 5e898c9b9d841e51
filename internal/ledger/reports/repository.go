package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
)

// Repository serves the aggregation queries behind the report builders.
// All queries see posted entries only.
type Repository interface {
	AccountTotals(ctx context.Context, from, to *time.Time, categories []accounts.Category) ([]AccountRow, error)
	CashAccountIDs(ctx context.Context, codePrefix string) ([]int64, error)
	CashLines(ctx context.Context, accountIDs []int64, from, to time.Time) ([]CashLine, error)
	CashBalance(ctx context.Context, accountIDs []int64, to time.Time) (decimal.Decimal, error)
	WindowBalance(ctx context.Context, baseCode string, nature accounts.Nature, from *time.Time, to time.Time) (decimal.Decimal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) AccountTotals(ctx context.Context, from, to *time.Time, categories []accounts.Category) ([]AccountRow, error) {
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	lineFilter := `e.status = 'POSTED'`
	if from != nil {
		lineFilter += ` AND e.date >= ` + arg(*from)
	}
	if to != nil {
		lineFilter += ` AND e.date <= ` + arg(*to)
	}
	query := `SELECT a.id, a.code, a.name, t.category, t.nature, a.is_cash_account, a.is_bank_account,
COALESCE(s.debit, 0)::text, COALESCE(s.credit, 0)::text
FROM accounts a
JOIN account_types t ON t.id = a.type_id
LEFT JOIN LATERAL (
	SELECT SUM(l.debit) AS debit, SUM(l.credit) AS credit
	FROM journal_lines l
	JOIN journal_entries e ON e.id = l.entry_id
	WHERE l.account_id = a.id AND ` + lineFilter + `
) s ON TRUE
WHERE a.is_leaf AND a.is_active`
	if len(categories) > 0 {
		query += ` AND t.category = ANY(` + arg(categories) + `)`
	}
	query += ` ORDER BY a.code ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountRow
	for rows.Next() {
		var row AccountRow
		var debit, credit string
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Category, &row.Nature,
			&row.IsCashAccount, &row.IsBankAccount, &debit, &credit); err != nil {
			return nil, err
		}
		if row.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if row.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CashAccountIDs returns accounts flagged cash or bank. When none are
// flagged it falls back to the configured cash code prefix.
func (r *repository) CashAccountIDs(ctx context.Context, codePrefix string) ([]int64, error) {
	ids, err := r.queryIDs(ctx, `SELECT id FROM accounts
WHERE is_leaf AND is_active AND (is_cash_account OR is_bank_account) ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 || codePrefix == "" {
		return ids, nil
	}
	return r.queryIDs(ctx, `SELECT id FROM accounts
WHERE is_leaf AND is_active AND code LIKE $1 ORDER BY code ASC`, codePrefix+"%")
}

func (r *repository) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) CashLines(ctx context.Context, accountIDs []int64, from, to time.Time) ([]CashLine, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT e.id, l.account_id, e.date, COALESCE(l.description, e.description), e.reference,
l.debit::text, l.credit::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = ANY($1) AND e.status = 'POSTED' AND e.date >= $2 AND e.date <= $3
ORDER BY e.date ASC, e.id ASC, l.id ASC`, accountIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CashLine
	for rows.Next() {
		var line CashLine
		var debit, credit string
		if err := rows.Scan(&line.EntryID, &line.AccountID, &line.Date, &line.Description, &line.Reference,
			&debit, &credit); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *repository) CashBalance(ctx context.Context, accountIDs []int64, to time.Time) (decimal.Decimal, error) {
	if len(accountIDs) == 0 {
		return decimal.Zero, nil
	}
	var net string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit - l.credit), 0)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = ANY($1) AND e.status = 'POSTED' AND e.date <= $2`, accountIDs, to).Scan(&net)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(net)
}

// WindowBalance nets movement on accounts under a code prefix inside a
// window, in the given nature's direction. The aging report calls this
// once per bucket.
func (r *repository) WindowBalance(ctx context.Context, baseCode string, nature accounts.Nature, from *time.Time, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE a.code LIKE $1 AND e.status = 'POSTED' AND e.date <= $2`
	args := []any{baseCode + "%", to}
	if from != nil {
		args = append(args, *from)
		query += ` AND e.date >= $3`
	}
	var debit, credit string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&debit, &credit); err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(debit)
	if err != nil {
		return decimal.Zero, err
	}
	c, err := decimal.NewFromString(credit)
	if err != nil {
		return decimal.Zero, err
	}
	if nature == accounts.NatureDebit {
		return d.Sub(c), nil
	}
	return c.Sub(d), nil
}
