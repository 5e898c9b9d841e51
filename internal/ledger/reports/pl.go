package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
)

// IncomeLine is one revenue or expense account, nature-positive.
type IncomeLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// IncomeDelta is the movement of one figure against the prior period.
// Percent is zero when the base is zero.
type IncomeDelta struct {
	Absolute decimal.Decimal `json:"absolute"`
	Percent  decimal.Decimal `json:"percent"`
}

// IncomeStatement is the profit & loss report for a window, optionally
// carrying the prior comparable window and deltas against it.
type IncomeStatement struct {
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	Revenue       []IncomeLine     `json:"revenue"`
	Expenses      []IncomeLine     `json:"expenses"`
	TotalRevenue  decimal.Decimal  `json:"total_revenue"`
	TotalExpenses decimal.Decimal  `json:"total_expenses"`
	NetIncome     decimal.Decimal  `json:"net_income"`
	ProfitMargin  decimal.Decimal  `json:"profit_margin"`
	Prior         *IncomeStatement `json:"prior,omitempty"`
	RevenueDelta  *IncomeDelta     `json:"revenue_delta,omitempty"`
	ExpensesDelta *IncomeDelta     `json:"expenses_delta,omitempty"`
	NetDelta      *IncomeDelta     `json:"net_delta,omitempty"`
}

// ComparativeWindow derives the prior period of the same length ending
// the day before the current window starts.
func ComparativeWindow(from, to time.Time) (time.Time, time.Time) {
	days := int(to.Sub(from).Hours()/24) + 1
	return from.AddDate(0, 0, -days), from.AddDate(0, 0, -1)
}

// BuildIncomeStatement aggregates revenue and expense rows. Revenue
// amounts are credit-natured positive, expenses debit-natured positive.
func BuildIncomeStatement(input []AccountRow, from, to time.Time) IncomeStatement {
	st := IncomeStatement{
		From:          from,
		To:            to,
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, acc := range input {
		line := IncomeLine{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.Balance()}
		switch acc.Category {
		case accounts.CategoryRevenue:
			st.Revenue = append(st.Revenue, line)
			st.TotalRevenue = st.TotalRevenue.Add(line.Amount)
		case accounts.CategoryExpense:
			st.Expenses = append(st.Expenses, line)
			st.TotalExpenses = st.TotalExpenses.Add(line.Amount)
		}
	}
	sort.Slice(st.Revenue, func(i, j int) bool { return st.Revenue[i].Code < st.Revenue[j].Code })
	sort.Slice(st.Expenses, func(i, j int) bool { return st.Expenses[i].Code < st.Expenses[j].Code })

	st.NetIncome = st.TotalRevenue.Sub(st.TotalExpenses)
	st.ProfitMargin = decimal.Zero
	if st.TotalRevenue.IsPositive() {
		st.ProfitMargin = st.NetIncome.Div(st.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return st
}

func delta(current, prior decimal.Decimal) *IncomeDelta {
	d := &IncomeDelta{Absolute: current.Sub(prior), Percent: decimal.Zero}
	if !prior.IsZero() {
		d.Percent = d.Absolute.Div(prior).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return d
}

// WithComparative attaches the prior period and the deltas against it.
func WithComparative(current, prior IncomeStatement) IncomeStatement {
	current.Prior = &prior
	current.RevenueDelta = delta(current.TotalRevenue, prior.TotalRevenue)
	current.ExpensesDelta = delta(current.TotalExpenses, prior.TotalExpenses)
	current.NetDelta = delta(current.NetIncome, prior.NetIncome)
	return current
}
