package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// CacheRow is the derived per-account balance cache. It is never
// authoritative: the journal lines can rebuild it at any time.
// CurrentBalance and AvailableBalance cover posted entries only;
// PendingBalance is the net movement sitting in drafts.
type CacheRow struct {
	AccountID         int64           `json:"account_id"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
	PendingBalance    decimal.Decimal `json:"pending_balance"`
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TransactionsCount int64           `json:"transactions_count"`
	LastEntryID       int64           `json:"last_entry_id"`
	IsValid           bool            `json:"is_valid"`
	NeedsRefresh      bool            `json:"needs_refresh"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// Snapshot stores an exact balance at a date so historical queries only
// recompute the tail after it. LastEntryID breaks ties for same-day
// entries.
type Snapshot struct {
	ID                int64           `json:"id"`
	AccountID         int64           `json:"account_id"`
	SnapshotDate      time.Time       `json:"snapshot_date"`
	Balance           decimal.Decimal `json:"balance"`
	TransactionsCount int64           `json:"transactions_count"`
	LastEntryID       int64           `json:"last_entry_id"`
	CreatedAt         time.Time       `json:"created_at"`
}

// AuditAction enumerates balance audit log actions.
type AuditAction string

const (
	AuditCalculate  AuditAction = "calculate"
	AuditUpdate     AuditAction = "update"
	AuditInvalidate AuditAction = "invalidate"
	AuditRefresh    AuditAction = "refresh"
	AuditSnapshot   AuditAction = "snapshot"
	AuditReconcile  AuditAction = "reconcile"
)

// AuditEntry is an append-only record of balance computations and cache
// mutations.
type AuditEntry struct {
	ID              int64
	AccountID       int64
	Action          AuditAction
	OldBalance      *decimal.Decimal
	NewBalance      *decimal.Decimal
	EntryID         *int64
	ActorID         *int64
	At              time.Time
	Notes           string
	SystemGenerated bool
}

// Sums aggregates line totals for one account over a window.
type Sums struct {
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Count       int64
	LastEntryID int64
}

// RunningLine is one ledger row with the running balance after it,
// ordered by (entry date, entry id, line id).
type RunningLine struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber int64           `json:"entry_number"`
	LineID      int64           `json:"line_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Running     decimal.Decimal `json:"running"`
}

// Options tunes a balance query.
type Options struct {
	UseCache     bool
	ForceRefresh bool
}

// DefaultOptions is the read-path default: serve from cache when valid.
func DefaultOptions() Options {
	return Options{UseCache: true}
}

// RefreshOutcome reports one account of a bulk refresh.
type RefreshOutcome struct {
	AccountID int64
	Err       error
}

// BulkResult summarises a bulk refresh run.
type BulkResult struct {
	Refreshed int
	Failures  []RefreshOutcome
}
