package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/formula"
)

// Ratios are the standard financial ratios derived from the balance
// sheet at a date and the year-to-date income statement. ProfitMargin
// is a percentage, matching the income statement's own margin; the
// rest are plain ratios. Every figure is zero when its denominator is
// zero.
type Ratios struct {
	AsOf           time.Time       `json:"as_of"`
	DebtToEquity   decimal.Decimal `json:"debt_to_equity"`
	EquityRatio    decimal.Decimal `json:"equity_ratio"`
	DebtRatio      decimal.Decimal `json:"debt_ratio"`
	ProfitMargin   decimal.Decimal `json:"profit_margin"`
	ReturnOnAssets decimal.Decimal `json:"return_on_assets"`
	ReturnOnEquity decimal.Decimal `json:"return_on_equity"`
	AssetTurnover  decimal.Decimal `json:"asset_turnover"`
}

// ratioVocabulary is the variable set the ratio formulas draw from.
var ratioVocabulary = []string{"assets", "liabilities", "equity", "net_income", "revenue"}

func mustFormula(source string) *formula.Formula {
	f, err := formula.Parse(source, ratioVocabulary)
	if err != nil {
		panic("reports: bad ratio formula: " + err.Error())
	}
	return f
}

// The ratio definitions, parsed once. Keeping them as formulas makes
// the definitions auditable as text and reuses the evaluator that
// serves configurable salary and pricing computations.
var (
	fDebtToEquity   = mustFormula("liabilities / equity")
	fEquityRatio    = mustFormula("equity / assets")
	fDebtRatio      = mustFormula("liabilities / assets")
	fProfitMargin   = mustFormula("net_income / revenue * 100")
	fReturnOnAssets = mustFormula("net_income / assets")
	fReturnOnEquity = mustFormula("net_income / equity")
	fAssetTurnover  = mustFormula("revenue / assets")
)

// YearToDateWindow is the ratio income window: Jan 1 of asOf's year
// through asOf.
func YearToDateWindow(asOf time.Time) (time.Time, time.Time) {
	return time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, asOf.Location()), asOf
}

// BuildRatios combines balance-sheet totals with year-to-date income
// figures by evaluating each ratio formula. A zero denominator reads
// as a zero ratio.
func BuildRatios(bs BalanceSheet, pl IncomeStatement) Ratios {
	vars := map[string]decimal.Decimal{
		"assets":      bs.Assets.Total,
		"liabilities": bs.Liabilities.Total,
		"equity":      bs.Equity.Total,
		"net_income":  pl.NetIncome,
		"revenue":     pl.TotalRevenue,
	}
	eval := func(f *formula.Formula, places int32) decimal.Decimal {
		v, err := f.Eval(vars)
		if err != nil {
			return decimal.Zero
		}
		return v.Round(places)
	}
	return Ratios{
		AsOf:           bs.AsOf,
		DebtToEquity:   eval(fDebtToEquity, 4),
		EquityRatio:    eval(fEquityRatio, 4),
		DebtRatio:      eval(fDebtRatio, 4),
		ProfitMargin:   eval(fProfitMargin, 2),
		ReturnOnAssets: eval(fReturnOnAssets, 4),
		ReturnOnEquity: eval(fReturnOnEquity, 4),
		AssetTurnover:  eval(fAssetTurnover, 4),
	}
}
