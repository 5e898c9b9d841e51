package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	ledgershared "github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
	"github.com/matbaa-erp/matbaa-erp/internal/shared"
)

// Service verifies the financial core's internal consistency: cached
// balances against the journal, trial-balance totals, per-entry balance
// of stored lines, and the accounting identity. It repairs caches when
// asked; everything else is reported, never mutated.
type Service struct {
	repo        Repository
	logger      *slog.Logger
	dormantDays int
	now         func() time.Time
}

func NewService(repo Repository, logger *slog.Logger, dormantDays int) *Service {
	if dormantDays <= 0 {
		dormantDays = 90
	}
	return &Service{repo: repo, logger: logger, dormantDays: dormantDays, now: time.Now}
}

// ValidateBalances sweeps every active leaf account and compares its
// cached balance to the one recomputed from posted lines. The cache
// must match exactly; the monetary tolerance applies to derived totals,
// not to stored values. With fix set, drifted caches are overwritten
// and the repair is audited.
func (s *Service) ValidateBalances(ctx context.Context, fix bool) (ValidationReport, error) {
	balances, err := s.repo.AccountBalances(ctx, nil)
	if err != nil {
		return ValidationReport{}, err
	}
	report := ValidationReport{CheckedAccounts: len(balances), RanAt: s.now()}
	var actorID *int64
	if actor := shared.ActorFromContext(ctx); actor.ID != 0 {
		actorID = &actor.ID
	}
	for _, b := range balances {
		if b.Cached == nil {
			continue
		}
		if b.Cached.Equal(b.Computed) {
			continue
		}
		d := Discrepancy{
			AccountID:   b.AccountID,
			AccountCode: b.Code,
			AccountName: b.Name,
			Cached:      *b.Cached,
			Computed:    b.Computed,
			Difference:  b.Computed.Sub(*b.Cached),
		}
		if fix {
			if err := s.repo.RepairCache(ctx, b.AccountID, b.Computed, actorID); err != nil {
				return ValidationReport{}, err
			}
			d.Repaired = true
			report.Repaired++
			s.logger.Info("balance cache repaired",
				slog.String("account", b.Code),
				slog.String("cached", d.Cached.StringFixed(2)),
				slog.String("computed", d.Computed.StringFixed(2)))
		} else {
			s.logger.Warn("balance cache drift",
				slog.String("account", b.Code),
				slog.String("difference", d.Difference.StringFixed(2)))
		}
		report.Discrepancies = append(report.Discrepancies, d)
	}
	return report, nil
}

// decompose splits a nature-combined balance into exclusive debit and
// credit sides, so exactly one side is non-zero unless both are.
func decompose(nature accounts.Nature, b decimal.Decimal) (debit, credit decimal.Decimal) {
	if nature == accounts.NatureDebit {
		if b.IsNegative() {
			return decimal.Zero, b.Neg()
		}
		return b, decimal.Zero
	}
	if b.IsNegative() {
		return b.Neg(), decimal.Zero
	}
	return decimal.Zero, b
}

// TrialIntegrity builds trial-balance totals up to asOf, scans posted
// entries for stored lines that no longer balance, and lists dormant
// accounts.
func (s *Service) TrialIntegrity(ctx context.Context, asOf time.Time) (IntegrityReport, error) {
	balances, err := s.repo.AccountBalances(ctx, &asOf)
	if err != nil {
		return IntegrityReport{}, err
	}
	report := IntegrityReport{
		AsOf:         asOf,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for _, b := range balances {
		debit, credit := decompose(b.Nature, b.Computed)
		report.TotalDebits = report.TotalDebits.Add(debit)
		report.TotalCredits = report.TotalCredits.Add(credit)
	}
	report.Difference = report.TotalDebits.Sub(report.TotalCredits)
	report.Balanced = ledgershared.WithinTolerance(report.TotalDebits, report.TotalCredits)

	if report.UnbalancedEntries, err = s.repo.UnbalancedEntries(ctx, asOf); err != nil {
		return IntegrityReport{}, err
	}
	cutoff := asOf.AddDate(0, 0, -s.dormantDays)
	if report.DormantAccounts, err = s.repo.DormantAccounts(ctx, cutoff); err != nil {
		return IntegrityReport{}, err
	}
	return report, nil
}

// Identity checks Assets = Liabilities + Equity at asOf.
func (s *Service) Identity(ctx context.Context, asOf time.Time) (IdentityReport, error) {
	balances, err := s.repo.AccountBalances(ctx, &asOf)
	if err != nil {
		return IdentityReport{}, err
	}
	report := IdentityReport{
		AsOf:        asOf,
		Assets:      decimal.Zero,
		Liabilities: decimal.Zero,
		Equity:      decimal.Zero,
	}
	for _, b := range balances {
		switch b.Category {
		case accounts.CategoryAsset:
			report.Assets = report.Assets.Add(b.Computed)
		case accounts.CategoryLiability:
			report.Liabilities = report.Liabilities.Add(b.Computed)
		case accounts.CategoryEquity:
			report.Equity = report.Equity.Add(b.Computed)
		}
	}
	report.Difference = report.Assets.Sub(report.Liabilities.Add(report.Equity))
	report.Holds = ledgershared.WithinTolerance(report.Assets, report.Liabilities.Add(report.Equity))
	return report, nil
}

// HealthCheck scores overall consistency on a 0-100 scale. Cache drift
// costs up to 50 points proportionally, an unbalanced trial balance 30,
// a broken accounting identity 20.
func (s *Service) HealthCheck(ctx context.Context, asOf time.Time) (HealthReport, error) {
	balances, err := s.repo.AccountBalances(ctx, nil)
	if err != nil {
		return HealthReport{}, err
	}
	report := HealthReport{TotalAccounts: len(balances), RanAt: s.now()}
	for _, b := range balances {
		if b.Cached == nil {
			continue
		}
		if !b.CacheValid || !b.Cached.Equal(b.Computed) {
			report.InvalidCaches++
		}
	}

	integrity, err := s.TrialIntegrity(ctx, asOf)
	if err != nil {
		return HealthReport{}, err
	}
	identity, err := s.Identity(ctx, asOf)
	if err != nil {
		return HealthReport{}, err
	}
	report.TrialBalanced = integrity.Balanced
	report.IdentityHolds = identity.Holds
	report.Unbalanced = len(integrity.UnbalancedEntries)
	report.Dormant = len(integrity.DormantAccounts)

	score := 100
	if report.TotalAccounts > 0 && report.InvalidCaches > 0 {
		penalty := math.Round(50 * float64(report.InvalidCaches) / float64(report.TotalAccounts))
		if penalty > 50 {
			penalty = 50
		}
		score -= int(penalty)
	}
	if !report.TrialBalanced {
		score -= 30
	}
	if !report.IdentityHolds {
		score -= 20
	}
	if score < 0 {
		score = 0
	}
	report.Score = score
	report.Recommendations = recommendations(report, integrity)

	s.logger.Info("ledger health check",
		slog.Int("score", report.Score),
		slog.Int("invalid_caches", report.InvalidCaches),
		slog.Bool("trial_balanced", report.TrialBalanced),
		slog.Bool("identity_holds", report.IdentityHolds))
	return report, nil
}

func recommendations(h HealthReport, integrity IntegrityReport) []string {
	var out []string
	if h.InvalidCaches > 0 {
		out = append(out, fmt.Sprintf("%d accounts have cache drift - run balance validation with self-heal", h.InvalidCaches))
	}
	if !h.TrialBalanced {
		out = append(out, fmt.Sprintf("trial balance off by %s - inspect journal entries", integrity.Difference.Abs().StringFixed(2)))
	}
	if h.Unbalanced > 0 {
		out = append(out, fmt.Sprintf("%d posted entries have unbalanced lines - investigate data corruption", h.Unbalanced))
	}
	if !h.IdentityHolds {
		out = append(out, "accounting identity does not hold - review equity and liability postings")
	}
	if h.Dormant > 0 {
		out = append(out, fmt.Sprintf("%d accounts are dormant - consider deactivating them", h.Dormant))
	}
	if len(out) == 0 {
		out = append(out, "no issues found")
	}
	return out
}

// Reconcile records an immutable reconciliation of one account at a
// date. The status reflects whether the cached, computed, and optional
// external balances agree within tolerance.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (Record, error) {
	b, err := s.repo.AccountBalance(ctx, in.AccountID, &in.Date)
	if err != nil {
		return Record{}, err
	}
	system := b.Computed
	if b.Cached != nil {
		system = *b.Cached
	}
	rec := Record{
		AccountID:          in.AccountID,
		ReconciliationDate: in.Date,
		SystemBalance:      system,
		CalculatedBalance:  b.Computed,
		ExternalBalance:    in.ExternalBalance,
		Notes:              in.Notes,
	}
	rec.Difference = rec.CalculatedBalance.Sub(rec.SystemBalance)
	if in.ExternalBalance != nil {
		rec.Difference = rec.CalculatedBalance.Sub(*in.ExternalBalance)
	}
	if rec.Difference.Abs().LessThanOrEqual(ledgershared.Tolerance) {
		rec.Status = StatusReconciled
	} else {
		rec.Status = StatusDiscrepancy
	}
	if actor := shared.ActorFromContext(ctx); actor.ID != 0 {
		rec.ReconciledBy = &actor.ID
	}
	return s.repo.InsertRecord(ctx, rec)
}
