package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status classifies a persisted reconciliation record.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusReconciled  Status = "RECONCILED"
	StatusDiscrepancy Status = "DISCREPANCY"
)

// Record is one immutable reconciliation of an account at a date.
// ExternalBalance is a bank or counterparty statement figure when one
// exists; nil means the reconciliation is internal only.
type Record struct {
	ID                 int64            `json:"id"`
	AccountID          int64            `json:"account_id"`
	ReconciliationDate time.Time        `json:"reconciliation_date"`
	SystemBalance      decimal.Decimal  `json:"system_balance"`
	CalculatedBalance  decimal.Decimal  `json:"calculated_balance"`
	ExternalBalance    *decimal.Decimal `json:"external_balance,omitempty"`
	Difference         decimal.Decimal  `json:"difference"`
	Status             Status           `json:"status"`
	ReconciledBy       *int64           `json:"reconciled_by,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Discrepancy is one account whose cached balance drifted from the
// journal beyond tolerance.
type Discrepancy struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Cached      decimal.Decimal `json:"cached"`
	Computed    decimal.Decimal `json:"computed"`
	Difference  decimal.Decimal `json:"difference"`
	Repaired    bool            `json:"repaired"`
}

// ValidationReport summarises a full cache validation sweep.
type ValidationReport struct {
	CheckedAccounts int           `json:"checked_accounts"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
	Repaired        int           `json:"repaired"`
	RanAt           time.Time     `json:"ran_at"`
}

// UnbalancedEntry is a posted entry whose stored lines no longer
// balance. These should never exist; finding one means corruption.
type UnbalancedEntry struct {
	EntryID     int64           `json:"entry_id"`
	Number      int64           `json:"number"`
	Date        time.Time       `json:"date"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// DormantAccount is an active leaf with no line activity since the
// dormancy cutoff.
type DormantAccount struct {
	AccountID    int64      `json:"account_id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// IntegrityReport carries the trial-balance and journal scan results.
type IntegrityReport struct {
	AsOf              time.Time         `json:"as_of"`
	TotalDebits       decimal.Decimal   `json:"total_debits"`
	TotalCredits      decimal.Decimal   `json:"total_credits"`
	Difference        decimal.Decimal   `json:"difference"`
	Balanced          bool              `json:"balanced"`
	UnbalancedEntries []UnbalancedEntry `json:"unbalanced_entries"`
	DormantAccounts   []DormantAccount  `json:"dormant_accounts"`
}

// IdentityReport is the accounting identity check
// Assets = Liabilities + Equity at a date.
type IdentityReport struct {
	AsOf        time.Time       `json:"as_of"`
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
	Equity      decimal.Decimal `json:"equity"`
	Difference  decimal.Decimal `json:"difference"`
	Holds       bool            `json:"holds"`
}

// HealthReport is the synthetic 0-100 consistency summary with the
// findings it was scored from.
type HealthReport struct {
	Score           int       `json:"score"`
	TotalAccounts   int       `json:"total_accounts"`
	InvalidCaches   int       `json:"invalid_caches"`
	TrialBalanced   bool      `json:"trial_balanced"`
	IdentityHolds   bool      `json:"identity_holds"`
	Unbalanced      int       `json:"unbalanced"`
	Dormant         int       `json:"dormant"`
	Recommendations []string  `json:"recommendations"`
	RanAt           time.Time `json:"ran_at"`
}

// ReconcileInput requests one persisted reconciliation.
type ReconcileInput struct {
	AccountID       int64
	Date            time.Time
	ExternalBalance *decimal.Decimal
	Notes           string
}
