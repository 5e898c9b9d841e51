package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	ledgershared "github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
	"github.com/matbaa-erp/matbaa-erp/internal/shared"
)

type memRepo struct {
	balances   []AccountBalance
	unbalanced []UnbalancedEntry
	dormant    []DormantAccount
	records    map[string]Record
	repairs    []int64
	nextID     int64
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]Record{}}
}

func (m *memRepo) AccountBalances(_ context.Context, _ *time.Time) ([]AccountBalance, error) {
	return m.balances, nil
}

func (m *memRepo) AccountBalance(_ context.Context, accountID int64, _ *time.Time) (AccountBalance, error) {
	for _, b := range m.balances {
		if b.AccountID == accountID {
			return b, nil
		}
	}
	return AccountBalance{}, ledgershared.ErrAccountNotFound
}

func (m *memRepo) UnbalancedEntries(_ context.Context, _ time.Time) ([]UnbalancedEntry, error) {
	return m.unbalanced, nil
}

func (m *memRepo) DormantAccounts(_ context.Context, _ time.Time) ([]DormantAccount, error) {
	return m.dormant, nil
}

func (m *memRepo) RepairCache(_ context.Context, accountID int64, computed decimal.Decimal, _ *int64) error {
	m.repairs = append(m.repairs, accountID)
	for i := range m.balances {
		if m.balances[i].AccountID == accountID {
			v := computed
			m.balances[i].Cached = &v
			m.balances[i].CacheValid = true
		}
	}
	return nil
}

func (m *memRepo) InsertRecord(_ context.Context, rec Record) (Record, error) {
	key := rec.ReconciliationDate.Format("2006-01-02") + "/" + decimal.NewFromInt(rec.AccountID).String()
	if _, ok := m.records[key]; ok {
		return Record{}, ledgershared.ErrReconciliationExists
	}
	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = time.Now()
	m.records[key] = rec
	return rec, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func acct(id int64, code string, cat accounts.Category, computed, cached string) AccountBalance {
	b := AccountBalance{
		AccountID: id, Code: code, Name: code,
		Category: cat, Nature: accounts.NatureFor(cat),
		Computed: dec(computed), CacheValid: true,
	}
	if cached != "" {
		b.Cached = decp(cached)
	}
	return b
}

func testService(t *testing.T, repo *memRepo) *Service {
	t.Helper()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), 90)
}

func asOf() time.Time {
	return time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
}

func TestValidateBalancesReportsDrift(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "9999.99"),
		acct(2, "3001", accounts.CategoryEquity, "10000.00", "10000.00"),
	}
	svc := testService(t, repo)

	report, err := svc.ValidateBalances(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 2, report.CheckedAccounts)
	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	require.Equal(t, "1001", d.AccountCode)
	require.True(t, d.Difference.Equal(dec("0.01")))
	require.False(t, d.Repaired)
	require.Empty(t, repo.repairs)
}

func TestValidateBalancesSelfHeals(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "9999.99"),
		acct(2, "3001", accounts.CategoryEquity, "10000.00", "10000.00"),
	}
	svc := testService(t, repo)

	report, err := svc.ValidateBalances(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Repaired)
	require.Equal(t, []int64{1}, repo.repairs)
	require.True(t, report.Discrepancies[0].Repaired)

	// The repaired cache validates clean on the next sweep and the
	// health score recovers fully.
	report, err = svc.ValidateBalances(context.Background(), false)
	require.NoError(t, err)
	require.Empty(t, report.Discrepancies)

	health, err := svc.HealthCheck(context.Background(), asOf())
	require.NoError(t, err)
	require.Equal(t, 100, health.Score)
}

func TestValidateBalancesIgnoresColdCaches(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "500.00", ""),
	}
	svc := testService(t, repo)

	report, err := svc.ValidateBalances(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, report.Discrepancies)
	require.Empty(t, repo.repairs)
}

func TestTrialIntegrityBalanced(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "10000.00"),
		acct(2, "3001", accounts.CategoryEquity, "10000.00", "10000.00"),
	}
	svc := testService(t, repo)

	report, err := svc.TrialIntegrity(context.Background(), asOf())
	require.NoError(t, err)
	require.True(t, report.Balanced)
	require.True(t, report.TotalDebits.Equal(dec("10000.00")))
	require.True(t, report.TotalCredits.Equal(dec("10000.00")))
	require.True(t, report.Difference.IsZero())
}

func TestTrialIntegrityNegativeBalanceSwitchesSides(t *testing.T) {
	// An overdrawn asset carries a credit balance on the trial balance.
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1101", accounts.CategoryAsset, "-250.00", ""),
		acct(2, "2001", accounts.CategoryLiability, "-250.00", ""),
	}
	svc := testService(t, repo)

	report, err := svc.TrialIntegrity(context.Background(), asOf())
	require.NoError(t, err)
	require.True(t, report.TotalDebits.Equal(dec("250.00")))
	require.True(t, report.TotalCredits.Equal(dec("250.00")))
	require.True(t, report.Balanced)
}

func TestTrialIntegritySurfacesCorruption(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "100.00", ""),
	}
	repo.unbalanced = []UnbalancedEntry{{
		EntryID: 7, Number: 7, Date: asOf(),
		TotalDebit: dec("100.00"), TotalCredit: dec("90.00"),
	}}
	repo.dormant = []DormantAccount{{AccountID: 9, Code: "1999", Name: "مخزن قديم"}}
	svc := testService(t, repo)

	report, err := svc.TrialIntegrity(context.Background(), asOf())
	require.NoError(t, err)
	require.False(t, report.Balanced)
	require.Len(t, report.UnbalancedEntries, 1)
	require.Len(t, report.DormantAccounts, 1)
}

func TestIdentity(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "15000.00", ""),
		acct(2, "2001", accounts.CategoryLiability, "5000.00", ""),
		acct(3, "3001", accounts.CategoryEquity, "10000.00", ""),
		// Revenue stays out of the identity.
		acct(4, "4001", accounts.CategoryRevenue, "999.00", ""),
	}
	svc := testService(t, repo)

	report, err := svc.Identity(context.Background(), asOf())
	require.NoError(t, err)
	require.True(t, report.Holds)
	require.True(t, report.Assets.Equal(dec("15000.00")))
	require.True(t, report.Liabilities.Equal(dec("5000.00")))
	require.True(t, report.Equity.Equal(dec("10000.00")))
}

func TestHealthScorePenalties(t *testing.T) {
	repo := newMemRepo()
	// Identity broken (no equity backing the asset) and half the caches
	// drifted: 100 - round(50*1/2) - 30 - 20 = 25.
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "9000.00"),
		acct(2, "3001", accounts.CategoryEquity, "0.00", "0.00"),
	}
	svc := testService(t, repo)

	health, err := svc.HealthCheck(context.Background(), asOf())
	require.NoError(t, err)
	require.Equal(t, 1, health.InvalidCaches)
	require.False(t, health.TrialBalanced)
	require.False(t, health.IdentityHolds)
	require.Equal(t, 25, health.Score)
	require.NotEmpty(t, health.Recommendations)
}

func TestHealthScoreClampsAtZero(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "1.00"),
	}
	svc := testService(t, repo)

	health, err := svc.HealthCheck(context.Background(), asOf())
	require.NoError(t, err)
	// 100 - 50 - 30 - 20 = 0.
	require.Equal(t, 0, health.Score)
}

func TestHealthCheckFlagsSmallestDrift(t *testing.T) {
	// A cache off by a single cent is still drift, even though derived
	// totals tolerate that much rounding.
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "9999.99"),
		acct(2, "3001", accounts.CategoryEquity, "10000.00", "10000.00"),
	}
	svc := testService(t, repo)

	health, err := svc.HealthCheck(context.Background(), asOf())
	require.NoError(t, err)
	require.Equal(t, 1, health.InvalidCaches)
	require.True(t, health.TrialBalanced)
	require.True(t, health.IdentityHolds)
	require.Equal(t, 75, health.Score)
}

func TestHealthScoreCleanLedger(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1001", accounts.CategoryAsset, "10000.00", "10000.00"),
		acct(2, "3001", accounts.CategoryEquity, "10000.00", "10000.00"),
	}
	svc := testService(t, repo)

	health, err := svc.HealthCheck(context.Background(), asOf())
	require.NoError(t, err)
	require.Equal(t, 100, health.Score)
	require.Equal(t, []string{"no issues found"}, health.Recommendations)
}

func TestReconcileAgainstExternalBalance(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1101", accounts.CategoryAsset, "2500.00", "2500.00"),
	}
	svc := testService(t, repo)
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 3, Name: "سارة"})

	rec, err := svc.Reconcile(ctx, ReconcileInput{
		AccountID: 1, Date: asOf(),
		ExternalBalance: decp("2400.00"),
		Notes:           "bank statement June",
	})
	require.NoError(t, err)
	require.Equal(t, StatusDiscrepancy, rec.Status)
	require.True(t, rec.Difference.Equal(dec("100.00")))
	require.Equal(t, int64(3), *rec.ReconciledBy)

	// Same account and date again is rejected: records are immutable.
	_, err = svc.Reconcile(ctx, ReconcileInput{AccountID: 1, Date: asOf()})
	require.ErrorIs(t, err, ledgershared.ErrReconciliationExists)
	require.ErrorIs(t, err, ledgershared.ErrState)
}

func TestReconcileCleanAccount(t *testing.T) {
	repo := newMemRepo()
	repo.balances = []AccountBalance{
		acct(1, "1101", accounts.CategoryAsset, "2500.00", "2500.00"),
	}
	svc := testService(t, repo)

	rec, err := svc.Reconcile(context.Background(), ReconcileInput{AccountID: 1, Date: asOf()})
	require.NoError(t, err)
	require.Equal(t, StatusReconciled, rec.Status)
	require.True(t, rec.Difference.IsZero())
	require.Nil(t, rec.ReconciledBy)

	_, err = svc.Reconcile(context.Background(), ReconcileInput{AccountID: 99, Date: asOf()})
	require.ErrorIs(t, err, ledgershared.ErrAccountNotFound)
}
