package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/balance"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reconcile"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconcileSweep validates cached balances and self-heals drift.
	TaskReconcileSweep = "ledger:reconcile_sweep"
	// TaskSnapshotSweep refreshes caches and snapshots active leaf accounts.
	TaskSnapshotSweep = "ledger:snapshot_sweep"
	// TaskReportWarmup pre-computes the report caches most dashboards hit.
	TaskReportWarmup = "ledger:report_warmup"
)

// SnapshotSweepPayload controls the snapshot date; empty means today.
type SnapshotSweepPayload struct {
	Date string `json:"date,omitempty"`
}

// NewReconcileSweepTask constructs the nightly reconciliation task.
func NewReconcileSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileSweep, nil)
}

// NewSnapshotSweepTask constructs the snapshot task.
func NewSnapshotSweepTask(payload SnapshotSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotSweep, data), nil
}

// NewReportWarmupTask constructs the report warmup task.
func NewReportWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportWarmup, nil)
}

// Maintenance bundles the ledger services the background tasks drive.
type Maintenance struct {
	Accounts  *accounts.Service
	Engine    *balance.Engine
	Reconcile *reconcile.Service
	Reports   *reports.Service
	Logger    *slog.Logger
	Now       func() time.Time
}

func (m *Maintenance) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Handlers returns the task registrations for the worker mux.
func (m *Maintenance) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskReconcileSweep, Handler: m.HandleReconcileSweep},
		{Type: TaskSnapshotSweep, Handler: m.HandleSnapshotSweep},
		{Type: TaskReportWarmup, Handler: m.HandleReportWarmup},
	}
}

// HandleReconcileSweep runs balance validation with self-heal enabled,
// then records the system health score.
func (m *Maintenance) HandleReconcileSweep(ctx context.Context, t *asynq.Task) error {
	report, err := m.Reconcile.ValidateBalances(ctx, true)
	if err != nil {
		return err
	}
	health, err := m.Reconcile.HealthCheck(ctx, m.now())
	if err != nil {
		return err
	}
	m.Logger.Info("reconcile sweep finished",
		slog.Int("checked", report.CheckedAccounts),
		slog.Int("discrepancies", len(report.Discrepancies)),
		slog.Int("repaired", report.Repaired),
		slog.Int("health_score", health.Score))
	return nil
}

// HandleSnapshotSweep refreshes every active leaf account and writes a
// balance snapshot for the payload date.
func (m *Maintenance) HandleSnapshotSweep(ctx context.Context, t *asynq.Task) error {
	var payload SnapshotSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	date := m.now().Truncate(24 * time.Hour)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		date = parsed
	}

	list, err := m.Accounts.List(ctx, accounts.Filter{LeafOnly: true, ActiveOnly: true})
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}

	result := m.Engine.BulkRefresh(ctx, ids)
	snapshots := 0
	for _, id := range ids {
		if _, err := m.Engine.CreateSnapshot(ctx, id, date); err != nil {
			m.Logger.Warn("snapshot failed",
				slog.Int64("account_id", id), slog.Any("error", err))
			continue
		}
		snapshots++
	}
	m.Logger.Info("snapshot sweep finished",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("refreshed", result.Refreshed),
		slog.Int("refresh_failures", len(result.Failures)),
		slog.Int("snapshots", snapshots))
	return nil
}

// HandleReportWarmup computes the trial balance and balance sheet so the
// first dashboard request of the day lands on a warm cache.
func (m *Maintenance) HandleReportWarmup(ctx context.Context, t *asynq.Task) error {
	asOf := m.now()
	if _, err := m.Reports.TrialBalance(ctx, nil, &asOf, reports.TrialBalanceOptions{GroupByCategory: true}); err != nil {
		return err
	}
	if _, err := m.Reports.BalanceSheet(ctx, asOf); err != nil {
		return err
	}
	from := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	if _, err := m.Reports.IncomeStatement(ctx, from, asOf, false); err != nil {
		return err
	}
	m.Logger.Info("report warmup finished", slog.String("as_of", asOf.Format("2006-01-02")))
	return nil
}
