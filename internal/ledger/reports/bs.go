package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// BalanceSheetLine is one account inside a balance sheet section.
type BalanceSheetLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceSheetSection groups accounts of one classification.
type BalanceSheetSection struct {
	Label string             `json:"label"`
	Lines []BalanceSheetLine `json:"lines"`
	Total decimal.Decimal    `json:"total"`
}

// BalanceSheet is the statement of financial position at a date.
// Difference is the signed identity gap Assets − (Liabilities + Equity).
type BalanceSheet struct {
	AsOf                      time.Time           `json:"as_of"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
	Difference                decimal.Decimal     `json:"difference"`
	Balanced                  bool                `json:"balanced"`
}

// BuildBalanceSheet aggregates as-of balances into assets, liabilities,
// and equity sections.
func BuildBalanceSheet(input []AccountRow, asOf time.Time) BalanceSheet {
	bs := BalanceSheet{
		AsOf:        asOf,
		Assets:      BalanceSheetSection{Label: "Assets", Total: decimal.Zero},
		Liabilities: BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero},
		Equity:      BalanceSheetSection{Label: "Equity", Total: decimal.Zero},
	}
	for _, acc := range input {
		line := BalanceSheetLine{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: acc.Balance()}
		switch acc.Category {
		case accounts.CategoryAsset:
			bs.Assets.Lines = append(bs.Assets.Lines, line)
			bs.Assets.Total = bs.Assets.Total.Add(line.Balance)
		case accounts.CategoryLiability:
			bs.Liabilities.Lines = append(bs.Liabilities.Lines, line)
			bs.Liabilities.Total = bs.Liabilities.Total.Add(line.Balance)
		case accounts.CategoryEquity:
			bs.Equity.Lines = append(bs.Equity.Lines, line)
			bs.Equity.Total = bs.Equity.Total.Add(line.Balance)
		}
	}
	for _, section := range []*BalanceSheetSection{&bs.Assets, &bs.Liabilities, &bs.Equity} {
		sort.Slice(section.Lines, func(i, j int) bool { return section.Lines[i].Code < section.Lines[j].Code })
	}
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total)
	bs.Difference = bs.Assets.Total.Sub(bs.TotalLiabilitiesAndEquity)
	bs.Balanced = bs.Difference.Abs().LessThanOrEqual(shared.Tolerance)
	return bs
}
