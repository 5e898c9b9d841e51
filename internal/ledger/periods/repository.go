package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for accounting periods.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context) ([]Period, error)
	FindByDate(ctx context.Context, date time.Time) (Period, error)
	FindOverlapping(ctx context.Context, start, end time.Time) ([]Period, error)
	Insert(ctx context.Context, p Period) (Period, error)
	UpdateStatus(ctx context.Context, id int64, status Status, actor int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, name, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE start_date <= $1 AND end_date >= $1 ORDER BY start_date LIMIT 1`, date))
}

func (r *repository) FindOverlapping(ctx context.Context, start, end time.Time) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE end_date >= $1 AND start_date <= $2 ORDER BY start_date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, p Period) (Period, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounting_periods (name, start_date, end_date, status)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`, p.Name, p.StartDate, p.EndDate, p.Status)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return Period{}, shared.ErrPeriodOverlap
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, actor int64, at time.Time) error {
	var cmd pgconn.CommandTag
	var err error
	if status == StatusClosed {
		cmd, err = r.db.Exec(ctx, `UPDATE accounting_periods SET status=$2, closed_at=$3, closed_by=$4, updated_at=NOW() WHERE id=$1`, id, status, at, actor)
	} else {
		cmd, err = r.db.Exec(ctx, `UPDATE accounting_periods SET status=$2, closed_at=NULL, closed_by=NULL, updated_at=NOW() WHERE id=$1`, id, status)
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}
