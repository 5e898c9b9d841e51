package shared

import (
	"errors"
	"fmt"
)

// Error kind roots. Specific ledger errors wrap exactly one of these so
// callers can classify with errors.Is without matching every sentinel.
var (
	// ErrValidation indicates the input violates a ledger invariant.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrNotFound indicates a referenced id or code does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrState indicates the operation is not allowed in the current state.
	ErrState = errors.New("ledger: invalid state")
	// ErrInfrastructure indicates a persistence or cache backend failure.
	ErrInfrastructure = errors.New("ledger: infrastructure failure")
)

var (
	// ErrUnbalanced indicates entry debits != credits.
	ErrUnbalanced = fmt.Errorf("%w: journal lines must balance", ErrValidation)
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = fmt.Errorf("%w: journal requires at least two lines", ErrValidation)
	// ErrOneSidedLine indicates a line carries both or neither side.
	ErrOneSidedLine = fmt.Errorf("%w: line must be debit or credit, not both", ErrValidation)
	// ErrMissingDebit indicates the entry has no debit line.
	ErrMissingDebit = fmt.Errorf("%w: at least one debit line required", ErrValidation)
	// ErrMissingCredit indicates the entry has no credit line.
	ErrMissingCredit = fmt.Errorf("%w: at least one credit line required", ErrValidation)
	// ErrAccountNotLeaf indicates a line references a non-leaf account.
	ErrAccountNotLeaf = fmt.Errorf("%w: account is not a leaf", ErrValidation)
	// ErrAccountInactive indicates a line references an inactive account.
	ErrAccountInactive = fmt.Errorf("%w: account is inactive", ErrValidation)
	// ErrPeriodClosed indicates the entry date falls in a closed period.
	ErrPeriodClosed = fmt.Errorf("%w: accounting period is closed", ErrValidation)
	// ErrPeriodOverlap indicates the new period window overlaps an existing one.
	ErrPeriodOverlap = fmt.Errorf("%w: accounting period overlaps", ErrValidation)
	// ErrAmountNotPositive indicates a required positive amount was zero or negative.
	ErrAmountNotPositive = fmt.Errorf("%w: amount must be positive", ErrValidation)
	// ErrNatureMismatch indicates an account type whose nature contradicts its category.
	ErrNatureMismatch = fmt.Errorf("%w: nature inconsistent with category", ErrValidation)

	// ErrAccountNotFound indicates a missing chart account.
	ErrAccountNotFound = fmt.Errorf("%w: account", ErrNotFound)
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = fmt.Errorf("%w: journal entry", ErrNotFound)
	// ErrPeriodNotFound indicates no period contains the date.
	ErrPeriodNotFound = fmt.Errorf("%w: accounting period", ErrNotFound)

	// ErrNotDraft indicates an edit or delete on a non-draft entry.
	ErrNotDraft = fmt.Errorf("%w: entry is not a draft", ErrState)
	// ErrNotPosted indicates an unpost on a non-posted entry.
	ErrNotPosted = fmt.Errorf("%w: entry is not posted", ErrState)
	// ErrUnpostClosedPeriod indicates unposting inside a closed period.
	ErrUnpostClosedPeriod = fmt.Errorf("%w: cannot unpost in a closed period", ErrState)
	// ErrAccountReferenced indicates a delete on an account with line activity.
	ErrAccountReferenced = fmt.Errorf("%w: account referenced by journal lines", ErrState)
	// ErrReconciliationExists indicates a second reconciliation for the
	// same account and date. Records are immutable once written.
	ErrReconciliationExists = fmt.Errorf("%w: reconciliation already recorded for this date", ErrState)
)
