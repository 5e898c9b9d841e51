package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, filter Filter) ([]Account, error)
	Insert(ctx context.Context, acc Account) (Account, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	CountLines(ctx context.Context, id int64) (int64, error)
	GetType(ctx context.Context, id int64) (AccountType, error)
	ListTypes(ctx context.Context) ([]AccountType, error)
	InsertType(ctx context.Context, t AccountType) (AccountType, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `a.id, a.code, a.name, a.parent_id, a.type_id, t.category, t.nature,
a.is_leaf, a.is_active, a.is_cash_account, a.is_bank_account, a.created_at, a.updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.ParentID, &a.TypeID, &a.Category, &a.Nature,
		&a.IsLeaf, &a.IsActive, &a.IsCashAccount, &a.IsBankAccount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE a.id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE a.code=$1`, code))
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Account, error) {
	query := `SELECT ` + accountColumns + `
FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE 1=1`
	args := []any{}
	if filter.LeafOnly {
		query += ` AND a.is_leaf`
	}
	if filter.ActiveOnly {
		query += ` AND a.is_active`
	}
	if filter.CashOnly {
		query += ` AND a.is_cash_account`
	}
	if filter.BankOnly {
		query += ` AND a.is_bank_account`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` AND t.category=$1`
	}
	query += ` ORDER BY a.code`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Insert(ctx context.Context, acc Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, parent_id, type_id, is_leaf, is_active, is_cash_account, is_bank_account)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		acc.Code, acc.Name, acc.ParentID, acc.TypeID, acc.IsLeaf, acc.IsActive, acc.IsCashAccount, acc.IsBankAccount)
	if err := row.Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, errors.Join(shared.ErrValidation, errors.New("account code already exists"))
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) CountLines(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, id).Scan(&count)
	return count, err
}

func (r *repository) GetType(ctx context.Context, id int64) (AccountType, error) {
	var t AccountType
	err := r.db.QueryRow(ctx, `SELECT id, code, name, category, nature, created_at, updated_at FROM account_types WHERE id=$1`, id).
		Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.Nature, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountType{}, shared.ErrNotFound
		}
		return AccountType{}, err
	}
	return t, nil
}

func (r *repository) ListTypes(ctx context.Context) ([]AccountType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, category, nature, created_at, updated_at FROM account_types ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []AccountType
	for rows.Next() {
		var t AccountType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.Nature, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *repository) InsertType(ctx context.Context, t AccountType) (AccountType, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO account_types (code, name, category, nature)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`, t.Code, t.Name, t.Category, t.Nature)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return AccountType{}, err
	}
	return t, nil
}
