package entries

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates journal entry lifecycle values.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// EntryType tags the provenance of an entry.
type EntryType string

const (
	EntryTypeManual  EntryType = "MANUAL"
	EntryTypeExpense EntryType = "EXPENSE"
	EntryTypeIncome  EntryType = "INCOME"
	EntryTypeOpening EntryType = "OPENING"
)

// ReferencePrefix returns the reference prefix for an entry type.
func (t EntryType) ReferencePrefix() string {
	switch t {
	case EntryTypeExpense:
		return "EXP"
	case EntryTypeIncome:
		return "INC"
	case EntryTypeOpening:
		return "OPN"
	default:
		return "JE"
	}
}

// Entry is a journal entry header. Lines are owned exclusively by the
// entry; posted entries are immutable until unposted.
type Entry struct {
	ID          int64      `json:"id"`
	Number      int64      `json:"number"`
	Reference   string     `json:"reference"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	Notes       string     `json:"notes,omitempty"`
	PeriodID    *int64     `json:"period_id,omitempty"`
	Status      Status     `json:"status"`
	EntryType   EntryType  `json:"entry_type"`
	CreatedBy   int64      `json:"created_by"`
	PostedBy    *int64     `json:"posted_by,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lines       []Line     `json:"lines"`
}

// FormattedNumber renders the human entry number.
func (e Entry) FormattedNumber() string {
	return fmt.Sprintf("JE-%06d", e.Number)
}

// TotalDebit sums the debit side of the lines.
func (e Entry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side of the lines.
func (e Entry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// IsBalanced reports exact decimal equality of debits and credits.
func (e Entry) IsBalanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}

// AccountIDs returns the distinct account ids across the lines.
func (e Entry) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	out := make([]int64, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		out = append(out, l.AccountID)
	}
	return out
}

// Line stores a one-sided debit or credit amount for a leaf account.
type Line struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entry_id"`
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewReference builds a provenance reference of the form
// PREFIX-YYYYMMDDHHMMSS.
func NewReference(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, at.UTC().Format("20060102150405"))
}
