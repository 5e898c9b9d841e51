package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
)

// AccountRow is one account with debit/credit totals aggregated over
// the report window. Only posted entries contribute; drafts are
// invisible to every report.
type AccountRow struct {
	AccountID     int64             `json:"account_id"`
	Code          string            `json:"code"`
	Name          string            `json:"name"`
	Category      accounts.Category `json:"category"`
	Nature        accounts.Nature   `json:"nature"`
	IsCashAccount bool              `json:"is_cash_account"`
	IsBankAccount bool              `json:"is_bank_account"`
	Debit         decimal.Decimal   `json:"debit"`
	Credit        decimal.Decimal   `json:"credit"`
}

// Balance nets the totals in the account's natural direction.
func (r AccountRow) Balance() decimal.Decimal {
	if r.Nature == accounts.NatureDebit {
		return r.Debit.Sub(r.Credit)
	}
	return r.Credit.Sub(r.Debit)
}

// CashLine is one posted journal line on a cash or bank account, used
// by the cash-flow statement.
type CashLine struct {
	EntryID     int64           `json:"entry_id"`
	AccountID   int64           `json:"account_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Amount is the signed cash movement of the line: inflow positive.
func (l CashLine) Amount() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}
