package reports

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// Activity classifies a cash movement on the cash-flow statement.
type Activity string

const (
	ActivityOperating Activity = "OPERATING"
	ActivityInvesting Activity = "INVESTING"
	ActivityFinancing Activity = "FINANCING"
)

// Keyword lists for the classification heuristic. Entries come in both
// Arabic and English since descriptions are free text typed by either.
var (
	financingKeywords = []string{
		"loan", "capital", "share", "dividend",
		"قرض", "رأس المال", "راس المال", "أسهم", "توزيعات",
	}
	investingKeywords = []string{
		"investment", "asset purchase", "equipment", "machinery", "vehicle",
		"استثمار", "شراء أصل", "معدات", "آلات", "سيارة",
	}
	operatingKeywords = []string{
		"sales", "customer", "revenue", "purchase", "supplier", "expense", "salary", "rent",
		"مبيعات", "عميل", "إيراد", "مشتريات", "مورد", "مصروف", "راتب", "إيجار",
	}
)

// Classify assigns a cash line to an activity by keyword heuristic over
// the entry description and reference. Financing and investing match
// first; everything else is operating.
func Classify(description, reference string) Activity {
	text := strings.ToLower(description + " " + reference)
	for _, kw := range financingKeywords {
		if strings.Contains(text, kw) {
			return ActivityFinancing
		}
	}
	for _, kw := range investingKeywords {
		if strings.Contains(text, kw) {
			return ActivityInvesting
		}
	}
	for _, kw := range operatingKeywords {
		if strings.Contains(text, kw) {
			return ActivityOperating
		}
	}
	return ActivityOperating
}

// CashFlowItem is one classified cash movement, inflow positive.
type CashFlowItem struct {
	EntryID     int64           `json:"entry_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Activity    Activity        `json:"activity"`
}

// CashFlow is the cash-flow statement over a window. Reconciled holds
// when opening + net change equals the closing balance within
// tolerance.
type CashFlow struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Operating      []CashFlowItem  `json:"operating"`
	Investing      []CashFlowItem  `json:"investing"`
	Financing      []CashFlowItem  `json:"financing"`
	TotalOperating decimal.Decimal `json:"total_operating"`
	TotalInvesting decimal.Decimal `json:"total_investing"`
	TotalFinancing decimal.Decimal `json:"total_financing"`
	NetChange      decimal.Decimal `json:"net_change"`
	Opening        decimal.Decimal `json:"opening"`
	Closing        decimal.Decimal `json:"closing"`
	Reconciled     bool            `json:"reconciled"`
}

// BuildCashFlow classifies the window's cash lines and reconciles the
// net change against the opening and closing balances.
func BuildCashFlow(lines []CashLine, opening, closing decimal.Decimal, from, to time.Time) CashFlow {
	cf := CashFlow{
		From:           from,
		To:             to,
		TotalOperating: decimal.Zero,
		TotalInvesting: decimal.Zero,
		TotalFinancing: decimal.Zero,
		Opening:        opening,
		Closing:        closing,
	}
	for _, line := range lines {
		item := CashFlowItem{
			EntryID:     line.EntryID,
			Date:        line.Date,
			Description: line.Description,
			Reference:   line.Reference,
			Amount:      line.Amount(),
			Activity:    Classify(line.Description, line.Reference),
		}
		switch item.Activity {
		case ActivityInvesting:
			cf.Investing = append(cf.Investing, item)
			cf.TotalInvesting = cf.TotalInvesting.Add(item.Amount)
		case ActivityFinancing:
			cf.Financing = append(cf.Financing, item)
			cf.TotalFinancing = cf.TotalFinancing.Add(item.Amount)
		default:
			cf.Operating = append(cf.Operating, item)
			cf.TotalOperating = cf.TotalOperating.Add(item.Amount)
		}
	}
	cf.NetChange = cf.TotalOperating.Add(cf.TotalInvesting).Add(cf.TotalFinancing)
	cf.Reconciled = cf.Opening.Add(cf.NetChange).Sub(cf.Closing).Abs().LessThanOrEqual(shared.Tolerance)
	return cf
}
