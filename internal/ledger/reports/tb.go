package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// TrialBalanceOptions tunes row selection and grouping.
type TrialBalanceOptions struct {
	IncludeZero     bool
	GroupByCategory bool
}

// TrialBalanceRow is one account on the trial balance. The balance is
// decomposed so that at most one of DebitBalance and CreditBalance is
// non-zero.
type TrialBalanceRow struct {
	AccountID     int64             `json:"account_id"`
	Code          string            `json:"code"`
	Name          string            `json:"name"`
	Category      accounts.Category `json:"category"`
	TotalDebit    decimal.Decimal   `json:"total_debit"`
	TotalCredit   decimal.Decimal   `json:"total_credit"`
	DebitBalance  decimal.Decimal   `json:"debit_balance"`
	CreditBalance decimal.Decimal   `json:"credit_balance"`
}

// CategorySubtotal aggregates trial balance rows of one category.
type CategorySubtotal struct {
	Category      accounts.Category `json:"category"`
	DebitBalance  decimal.Decimal   `json:"debit_balance"`
	CreditBalance decimal.Decimal   `json:"credit_balance"`
}

// TrialBalance is the comprehensive trial balance over an optional
// window. Difference is the balance diagnostic Σdebit − Σcredit.
type TrialBalance struct {
	From          *time.Time         `json:"from,omitempty"`
	To            *time.Time         `json:"to,omitempty"`
	Rows          []TrialBalanceRow  `json:"rows"`
	Subtotals     []CategorySubtotal `json:"subtotals,omitempty"`
	TotalDebit    decimal.Decimal    `json:"total_debit"`
	TotalCredit   decimal.Decimal    `json:"total_credit"`
	DebitBalance  decimal.Decimal    `json:"debit_balance"`
	CreditBalance decimal.Decimal    `json:"credit_balance"`
	Difference    decimal.Decimal    `json:"difference"`
	Balanced      bool               `json:"balanced"`
}

// splitBalance decomposes a nature-combined balance into exclusive
// debit and credit sides.
func splitBalance(nature accounts.Nature, b decimal.Decimal) (debit, credit decimal.Decimal) {
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

// BuildTrialBalance assembles the trial balance from aggregated rows,
// code-ordered.
func BuildTrialBalance(input []AccountRow, from, to *time.Time, opts TrialBalanceOptions) TrialBalance {
	tb := TrialBalance{
		From:          from,
		To:            to,
		TotalDebit:    decimal.Zero,
		TotalCredit:   decimal.Zero,
		DebitBalance:  decimal.Zero,
		CreditBalance: decimal.Zero,
	}
	subtotals := map[accounts.Category]*CategorySubtotal{}
	for _, acc := range input {
		balance := acc.Balance()
		if !opts.IncludeZero && balance.IsZero() && acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		debit, credit := splitBalance(acc.Nature, balance)
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID:     acc.AccountID,
			Code:          acc.Code,
			Name:          acc.Name,
			Category:      acc.Category,
			TotalDebit:    acc.Debit,
			TotalCredit:   acc.Credit,
			DebitBalance:  debit,
			CreditBalance: credit,
		})
		tb.TotalDebit = tb.TotalDebit.Add(acc.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(acc.Credit)
		tb.DebitBalance = tb.DebitBalance.Add(debit)
		tb.CreditBalance = tb.CreditBalance.Add(credit)
		if opts.GroupByCategory {
			sub, ok := subtotals[acc.Category]
			if !ok {
				sub = &CategorySubtotal{
					Category:      acc.Category,
					DebitBalance:  decimal.Zero,
					CreditBalance: decimal.Zero,
				}
				subtotals[acc.Category] = sub
			}
			sub.DebitBalance = sub.DebitBalance.Add(debit)
			sub.CreditBalance = sub.CreditBalance.Add(credit)
		}
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })

	if opts.GroupByCategory {
		// Statement order, not alphabetical.
		order := []accounts.Category{
			accounts.CategoryAsset, accounts.CategoryLiability, accounts.CategoryEquity,
			accounts.CategoryRevenue, accounts.CategoryExpense,
		}
		for _, cat := range order {
			if sub, ok := subtotals[cat]; ok {
				tb.Subtotals = append(tb.Subtotals, *sub)
			}
		}
	}

	tb.Difference = tb.DebitBalance.Sub(tb.CreditBalance)
	tb.Balanced = tb.Difference.Abs().LessThanOrEqual(shared.Tolerance)
	return tb
}
