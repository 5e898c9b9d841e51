// Package reset rebuilds a clean system state: transactional data
// cleared, schema applied, baseline users and chart of accounts seeded,
// the current calendar-year period opened, and seed counts verified.
// The sequence is staged and reports progress out of band so a long
// reset stays observable.
package reset

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

//go:embed schema.sql
var schemaSQL string

// Stage is one step of the reset sequence.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes the staged reset. Stages run in order; the first
// failure aborts the sequence and is recorded against the operation id.
type Runner struct {
	stages  []Stage
	tracker Tracker
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

// NewRunner assembles the default stages against the database.
func NewRunner(db *pgxpool.Pool, tracker Tracker, logger *slog.Logger) *Runner {
	return NewRunnerWithStages(defaultStages(db), tracker, logger)
}

// NewRunnerWithStages injects a custom stage list.
func NewRunnerWithStages(stages []Stage, tracker Tracker, logger *slog.Logger) *Runner {
	return &Runner{
		stages:  stages,
		tracker: tracker,
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Run executes all stages and returns the operation id the progress was
// published under.
func (r *Runner) Run(ctx context.Context) (string, error) {
	p := Progress{
		OperationID: r.newID(),
		Status:      StatusRunning,
		TotalSteps:  len(r.stages),
		StartedAt:   r.now(),
	}
	r.publish(ctx, &p, "reset started")

	for i, stage := range r.stages {
		p.CurrentStep = i + 1
		p.StepName = stage.Name
		r.logger.Info("reset stage", slog.Int("step", p.CurrentStep), slog.String("name", stage.Name))
		if err := stage.Run(ctx); err != nil {
			p.Status = StatusFailed
			p.Error = fmt.Sprintf("stage %d (%s): %v", p.CurrentStep, stage.Name, err)
			r.publish(ctx, &p, "failed: "+stage.Name)
			r.logger.Error("reset failed", slog.String("stage", stage.Name), slog.Any("error", err))
			return p.OperationID, fmt.Errorf("reset stage %q: %w", stage.Name, err)
		}
		p.Percentage = p.CurrentStep * 100 / p.TotalSteps
		r.publish(ctx, &p, "completed: "+stage.Name)
	}

	p.Status = StatusDone
	r.publish(ctx, &p, "reset complete")
	return p.OperationID, nil
}

func (r *Runner) publish(ctx context.Context, p *Progress, line string) {
	p.UpdatedAt = r.now()
	p.Log = append(p.Log, fmt.Sprintf("%s %s", p.UpdatedAt.Format(time.RFC3339), line))
	if r.tracker != nil {
		r.tracker.Publish(ctx, *p)
	}
}

func defaultStages(db *pgxpool.Pool) []Stage {
	return []Stage{
		{Name: "clear transactional data", Run: func(ctx context.Context) error { return clearData(ctx, db) }},
		{Name: "apply schema", Run: func(ctx context.Context) error { return applySchema(ctx, db) }},
		{Name: "create baseline users", Run: func(ctx context.Context) error { return seedUsers(ctx, db) }},
		{Name: "seed chart of accounts", Run: func(ctx context.Context) error { return seedAccounts(ctx, db) }},
		{Name: "open current-year period", Run: func(ctx context.Context) error { return seedPeriod(ctx, db, time.Now()) }},
		{Name: "verify seed data", Run: func(ctx context.Context) error { return verifySeed(ctx, db) }},
	}
}

// transactionalTables are cleared in dependency order. Reference data
// (accounts, types, users, periods) survives a reset only to be
// reseeded idempotently afterwards.
var transactionalTables = []string{
	"journal_lines",
	"journal_entries",
	"balance_caches",
	"balance_snapshots",
	"balance_audit_logs",
	"reconciliations",
	"audit_logs",
}

func clearData(ctx context.Context, db *pgxpool.Pool) error {
	for _, table := range transactionalTables {
		// A fresh database has no tables yet; skip what is not there.
		var exists *string
		if err := db.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&exists); err != nil {
			return err
		}
		if exists == nil {
			continue
		}
		if _, err := db.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY CASCADE`, table)); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

func applySchema(ctx context.Context, db *pgxpool.Pool) error {
	// Multi-statement DDL; pgx runs it over the simple protocol since
	// there are no bind parameters.
	_, err := db.Exec(ctx, schemaSQL)
	return err
}

func seedUsers(ctx context.Context, db *pgxpool.Pool) error {
	users := []struct {
		email    string
		name     string
		password string
		admin    bool
	}{
		{"admin@matbaa.local", "مدير النظام", "admin123", true},
		{"accountant@matbaa.local", "المحاسب", "accountant123", false},
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `INSERT INTO users (email, name, password_hash, is_admin, is_active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (email) DO NOTHING`, u.email, u.name, string(hash), u.admin)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedAccounts(ctx context.Context, db *pgxpool.Pool) error {
	types := []struct {
		code, name, category, nature string
	}{
		{"AST", "أصول", "ASSET", "DEBIT"},
		{"LIA", "خصوم", "LIABILITY", "CREDIT"},
		{"EQT", "حقوق الملكية", "EQUITY", "CREDIT"},
		{"REV", "إيرادات", "REVENUE", "CREDIT"},
		{"EXP", "مصروفات", "EXPENSE", "DEBIT"},
	}
	for _, t := range types {
		_, err := db.Exec(ctx, `INSERT INTO account_types (code, name, category, nature)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO NOTHING`, t.code, t.name, t.category, t.nature)
		if err != nil {
			return err
		}
	}

	accounts := []struct {
		code, name, typeCode string
		cash, bank           bool
	}{
		{"1001", "الصندوق", "AST", true, false},
		{"1002", "البنك", "AST", false, true},
		{"1201", "عملاء", "AST", false, false},
		{"1301", "معدات الطباعة", "AST", false, false},
		{"2001", "موردون", "LIA", false, false},
		{"2101", "قروض", "LIA", false, false},
		{"3001", "رأس المال", "EQT", false, false},
		{"4001", "إيرادات الطباعة", "REV", false, false},
		{"4002", "إيرادات التصميم", "REV", false, false},
		{"5001", "رواتب", "EXP", false, false},
		{"5002", "إيجار", "EXP", false, false},
		{"5003", "خامات ومستلزمات", "EXP", false, false},
	}
	for _, a := range accounts {
		_, err := db.Exec(ctx, `INSERT INTO accounts (code, name, type_id, is_leaf, is_active, is_cash_account, is_bank_account)
SELECT $1, $2, t.id, TRUE, TRUE, $4, $5 FROM account_types t WHERE t.code = $3
ON CONFLICT (code) DO NOTHING`, a.code, a.name, a.typeCode, a.cash, a.bank)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPeriod(ctx context.Context, db *pgxpool.Pool, at time.Time) error {
	start := time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(at.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	var existing int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM accounting_periods
WHERE end_date >= $1 AND start_date <= $2`, start, end).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	_, err = db.Exec(ctx, `INSERT INTO accounting_periods (name, start_date, end_date, status)
VALUES ($1, $2, $3, 'OPEN')`, fmt.Sprintf("%d", at.Year()), start, end)
	return err
}

func verifySeed(ctx context.Context, db *pgxpool.Pool) error {
	checks := []struct {
		query string
		min   int
		what  string
	}{
		{`SELECT COUNT(*) FROM account_types`, 5, "account types"},
		{`SELECT COUNT(*) FROM accounts`, 10, "accounts"},
		{`SELECT COUNT(*) FROM users`, 2, "users"},
		{`SELECT COUNT(*) FROM accounting_periods WHERE status = 'OPEN'`, 1, "open periods"},
	}
	for _, c := range checks {
		var count int
		if err := db.QueryRow(ctx, c.query).Scan(&count); err != nil {
			return err
		}
		if count < c.min {
			return fmt.Errorf("expected at least %d %s, found %d", c.min, c.what, count)
		}
	}
	return nil
}
