package reports

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/querycache"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func row(id int64, code, name string, cat accounts.Category, debit, credit string) AccountRow {
	return AccountRow{
		AccountID: id, Code: code, Name: name,
		Category: cat, Nature: accounts.NatureFor(cat),
		Debit: dec(debit), Credit: dec(credit),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildTrialBalanceBalanced(t *testing.T) {
	input := []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "10000.00", "0.00"),
		row(2, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "10000.00"),
	}
	tb := BuildTrialBalance(input, nil, nil, TrialBalanceOptions{})
	require.True(t, tb.Balanced)
	require.True(t, tb.DebitBalance.Equal(dec("10000.00")))
	require.True(t, tb.CreditBalance.Equal(dec("10000.00")))
	require.True(t, tb.Difference.IsZero())
	require.Len(t, tb.Rows, 2)
	require.Equal(t, "1001", tb.Rows[0].Code)
}

func TestBuildTrialBalanceDecomposition(t *testing.T) {
	// An overdrawn asset shows on the credit side; exactly one side of
	// each row is non-zero.
	input := []AccountRow{
		row(1, "1101", "البنك", accounts.CategoryAsset, "100.00", "350.00"),
	}
	tb := BuildTrialBalance(input, nil, nil, TrialBalanceOptions{})
	r := tb.Rows[0]
	require.True(t, r.DebitBalance.IsZero())
	require.True(t, r.CreditBalance.Equal(dec("250.00")))
}

func TestBuildTrialBalanceZeroRows(t *testing.T) {
	input := []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "500.00", "0.00"),
		row(2, "1102", "عهدة", accounts.CategoryAsset, "0.00", "0.00"),
	}
	tb := BuildTrialBalance(input, nil, nil, TrialBalanceOptions{})
	require.Len(t, tb.Rows, 1)

	tb = BuildTrialBalance(input, nil, nil, TrialBalanceOptions{IncludeZero: true})
	require.Len(t, tb.Rows, 2)
}

func TestBuildTrialBalanceCategorySubtotals(t *testing.T) {
	input := []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "900.00", "0.00"),
		row(2, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "500.00"),
		row(3, "4001", "إيرادات", accounts.CategoryRevenue, "0.00", "400.00"),
	}
	tb := BuildTrialBalance(input, nil, nil, TrialBalanceOptions{GroupByCategory: true})
	require.Len(t, tb.Subtotals, 3)
	require.Equal(t, accounts.CategoryAsset, tb.Subtotals[0].Category)
	require.True(t, tb.Subtotals[0].DebitBalance.Equal(dec("900.00")))
	require.Equal(t, accounts.CategoryEquity, tb.Subtotals[1].Category)
	require.Equal(t, accounts.CategoryRevenue, tb.Subtotals[2].Category)
}

func TestBuildIncomeStatement(t *testing.T) {
	input := []AccountRow{
		row(1, "4001", "إيرادات الطباعة", accounts.CategoryRevenue, "0.00", "5000.00"),
		row(2, "5001", "إيجار", accounts.CategoryExpense, "2000.00", "0.00"),
	}
	st := BuildIncomeStatement(input, date(2025, time.February, 1), date(2025, time.February, 28))
	require.True(t, st.TotalRevenue.Equal(dec("5000.00")))
	require.True(t, st.TotalExpenses.Equal(dec("2000.00")))
	require.True(t, st.NetIncome.Equal(dec("3000.00")))
	require.True(t, st.ProfitMargin.Equal(dec("60.00")), "margin %s", st.ProfitMargin)
}

func TestBuildIncomeStatementZeroRevenue(t *testing.T) {
	input := []AccountRow{
		row(1, "5001", "إيجار", accounts.CategoryExpense, "750.00", "0.00"),
	}
	st := BuildIncomeStatement(input, date(2025, time.February, 1), date(2025, time.February, 28))
	require.True(t, st.NetIncome.Equal(dec("-750.00")))
	require.True(t, st.ProfitMargin.IsZero())
}

func TestComparativeWindow(t *testing.T) {
	// February 2025 compares against the preceding 28 days.
	from, to := ComparativeWindow(date(2025, time.February, 1), date(2025, time.February, 28))
	require.Equal(t, date(2025, time.January, 4), from)
	require.Equal(t, date(2025, time.January, 31), to)

	// A single-day window compares against the previous day.
	from, to = ComparativeWindow(date(2025, time.March, 10), date(2025, time.March, 10))
	require.Equal(t, date(2025, time.March, 9), from)
	require.Equal(t, date(2025, time.March, 9), to)
}

func TestWithComparative(t *testing.T) {
	current := BuildIncomeStatement([]AccountRow{
		row(1, "4001", "إيرادات", accounts.CategoryRevenue, "0.00", "1200.00"),
	}, date(2025, time.February, 1), date(2025, time.February, 28))
	prior := BuildIncomeStatement([]AccountRow{
		row(1, "4001", "إيرادات", accounts.CategoryRevenue, "0.00", "1000.00"),
	}, date(2025, time.January, 4), date(2025, time.January, 31))

	st := WithComparative(current, prior)
	require.NotNil(t, st.Prior)
	require.True(t, st.RevenueDelta.Absolute.Equal(dec("200.00")))
	require.True(t, st.RevenueDelta.Percent.Equal(dec("20.00")))
	// Zero base reports a zero percentage, not a division error.
	require.True(t, st.ExpensesDelta.Percent.IsZero())
}

func TestBuildBalanceSheet(t *testing.T) {
	input := []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "15000.00", "0.00"),
		row(2, "2001", "موردون", accounts.CategoryLiability, "0.00", "5000.00"),
		row(3, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "10000.00"),
	}
	bs := BuildBalanceSheet(input, date(2025, time.June, 30))
	require.True(t, bs.Assets.Total.Equal(dec("15000.00")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(dec("15000.00")))
	require.True(t, bs.Balanced)
	require.True(t, bs.Difference.IsZero())
}

func TestBuildBalanceSheetSurfacesGap(t *testing.T) {
	input := []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "15000.00", "0.00"),
		row(3, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "10000.00"),
	}
	bs := BuildBalanceSheet(input, date(2025, time.June, 30))
	require.False(t, bs.Balanced)
	require.True(t, bs.Difference.Equal(dec("5000.00")))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		description string
		reference   string
		want        Activity
	}{
		{"تحصيل مبيعات نقدية", "INC-20250101120000", ActivityOperating},
		{"payment to supplier", "", ActivityOperating},
		{"شراء معدات طباعة", "", ActivityInvesting},
		{"equipment purchase", "", ActivityInvesting},
		{"سداد قرض البنك", "", ActivityFinancing},
		{"capital injection", "", ActivityFinancing},
		{"تحويل داخلي", "", ActivityOperating}, // default
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.description, tc.reference), "%q", tc.description)
	}
}

func TestBuildCashFlowReconciles(t *testing.T) {
	from, to := date(2025, time.March, 1), date(2025, time.March, 31)
	lines := []CashLine{
		{EntryID: 1, Date: date(2025, time.March, 2), Description: "تحصيل مبيعات", Debit: dec("4000.00"), Credit: dec("0.00")},
		{EntryID: 2, Date: date(2025, time.March, 9), Description: "شراء معدات", Debit: dec("0.00"), Credit: dec("1500.00")},
		{EntryID: 3, Date: date(2025, time.March, 20), Description: "سداد قرض", Debit: dec("0.00"), Credit: dec("500.00")},
	}
	cf := BuildCashFlow(lines, dec("1000.00"), dec("3000.00"), from, to)
	require.True(t, cf.TotalOperating.Equal(dec("4000.00")))
	require.True(t, cf.TotalInvesting.Equal(dec("-1500.00")))
	require.True(t, cf.TotalFinancing.Equal(dec("-500.00")))
	require.True(t, cf.NetChange.Equal(dec("2000.00")))
	require.True(t, cf.Reconciled)

	cf = BuildCashFlow(lines, dec("1000.00"), dec("9999.00"), from, to)
	require.False(t, cf.Reconciled)
}

func TestBucketWindows(t *testing.T) {
	asOf := date(2025, time.June, 30)
	w := BucketWindows(asOf)
	require.Equal(t, "0-30", w[0].Label)
	require.Equal(t, date(2025, time.May, 31), *w[0].From)
	require.Equal(t, asOf, w[0].To)
	require.Equal(t, date(2025, time.May, 30), w[1].To)
	require.Equal(t, date(2025, time.May, 1), *w[1].From)
	require.Equal(t, date(2025, time.April, 1), *w[2].From)
	// An item exactly 91 days old falls in the open-ended tail.
	require.Nil(t, w[3].From)
	require.Equal(t, date(2025, time.March, 31), w[3].To)
	require.True(t, w[2].From.After(w[3].To))
}

func TestBuildAging(t *testing.T) {
	aging := BuildAging(AgingReceivables, "1201", date(2025, time.June, 30),
		[4]decimal.Decimal{dec("100.00"), dec("50.00"), dec("25.00"), dec("10.00")})
	require.Equal(t, ">90", aging.Buckets[3].Label)
	require.True(t, aging.Total.Equal(dec("185.00")))
}

func TestBuildRatios(t *testing.T) {
	bs := BuildBalanceSheet([]AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "20000.00", "0.00"),
		row(2, "2001", "موردون", accounts.CategoryLiability, "0.00", "5000.00"),
		row(3, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "15000.00"),
	}, date(2025, time.June, 30))
	pl := BuildIncomeStatement([]AccountRow{
		row(4, "4001", "إيرادات", accounts.CategoryRevenue, "0.00", "10000.00"),
		row(5, "5001", "مصروفات", accounts.CategoryExpense, "6000.00", "0.00"),
	}, date(2025, time.January, 1), date(2025, time.June, 30))

	ratios := BuildRatios(bs, pl)
	require.True(t, ratios.DebtToEquity.Equal(dec("0.3333")), "got %s", ratios.DebtToEquity)
	require.True(t, ratios.EquityRatio.Equal(dec("0.75")))
	require.True(t, ratios.DebtRatio.Equal(dec("0.25")))
	require.True(t, ratios.ReturnOnAssets.Equal(dec("0.2")))
	require.True(t, ratios.AssetTurnover.Equal(dec("0.5")))

	// The margin is a percentage on the same scale as the income
	// statement's own figure.
	require.True(t, ratios.ProfitMargin.Equal(dec("40.00")), "got %s", ratios.ProfitMargin)
	require.True(t, ratios.ProfitMargin.Equal(pl.ProfitMargin))
}

func TestBuildRatiosZeroDenominators(t *testing.T) {
	ratios := BuildRatios(BalanceSheet{}, IncomeStatement{})
	require.True(t, ratios.DebtToEquity.IsZero())
	require.True(t, ratios.ReturnOnEquity.IsZero())
	require.True(t, ratios.AssetTurnover.IsZero())
}

type stubRepo struct {
	totalsCalls int
	rows        []AccountRow
}

func (s *stubRepo) AccountTotals(_ context.Context, _, _ *time.Time, categories []accounts.Category) ([]AccountRow, error) {
	s.totalsCalls++
	if len(categories) == 0 {
		return s.rows, nil
	}
	var out []AccountRow
	for _, r := range s.rows {
		for _, cat := range categories {
			if r.Category == cat {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *stubRepo) CashAccountIDs(context.Context, string) ([]int64, error) { return nil, nil }

func (s *stubRepo) CashLines(context.Context, []int64, time.Time, time.Time) ([]CashLine, error) {
	return nil, nil
}

func (s *stubRepo) CashBalance(context.Context, []int64, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubRepo) WindowBalance(context.Context, string, accounts.Nature, *time.Time, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestServiceCachesTrialBalance(t *testing.T) {
	repo := &stubRepo{rows: []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "10000.00", "0.00"),
		row(2, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "10000.00"),
	}}
	cache := querycache.New(querycache.NewMemoryStore())
	svc := NewService(repo, cache, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})

	first, err := svc.TrialBalance(context.Background(), nil, nil, TrialBalanceOptions{})
	require.NoError(t, err)
	require.True(t, first.Balanced)
	require.Equal(t, 1, repo.totalsCalls)

	second, err := svc.TrialBalance(context.Background(), nil, nil, TrialBalanceOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.totalsCalls, "second call must come from cache")
	require.True(t, second.DebitBalance.Equal(first.DebitBalance))

	// Different options are a different report identity.
	_, err = svc.TrialBalance(context.Background(), nil, nil, TrialBalanceOptions{IncludeZero: true})
	require.NoError(t, err)
	require.Equal(t, 2, repo.totalsCalls)
}

func TestServiceInvalidationDropsTrialBalance(t *testing.T) {
	repo := &stubRepo{rows: []AccountRow{
		row(1, "1001", "الصندوق", accounts.CategoryAsset, "100.00", "0.00"),
		row(2, "3001", "رأس المال", accounts.CategoryEquity, "0.00", "100.00"),
	}}
	cache := querycache.New(querycache.NewMemoryStore())
	svc := NewService(repo, cache, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})

	_, err := svc.TrialBalance(context.Background(), nil, nil, TrialBalanceOptions{})
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateAccounts(context.Background(), []int64{1}))

	_, err = svc.TrialBalance(context.Background(), nil, nil, TrialBalanceOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.totalsCalls, "invalidation must force a rebuild")
}
