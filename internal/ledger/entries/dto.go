package entries

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

var validate = validator.New()

// LineInput describes one journal line of a draft.
type LineInput struct {
	AccountID   int64 `validate:"required"`
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// CreateInput groups fields required to create a draft entry.
type CreateInput struct {
	Reference   string
	Date        time.Time `validate:"required"`
	Description string    `validate:"required"`
	Notes       string
	EntryType   EntryType
	CreatedBy   int64
	Lines       []LineInput `validate:"required,min=2,dive"`
}

// Validate checks structural shape and the ledger invariants: at least
// two one-sided lines, at least one per side, and exact decimal balance.
func (in CreateInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		if len(in.Lines) < 2 {
			return shared.ErrTooFewLines
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	var debit, credit decimal.Decimal
	var hasDebit, hasCredit bool
	for idx, line := range in.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("line %d: %w", idx, shared.ErrOneSidedLine)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("line %d: %w", idx, shared.ErrOneSidedLine)
		}
		if line.Debit.IsPositive() {
			hasDebit = true
		}
		if line.Credit.IsPositive() {
			hasCredit = true
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !hasDebit {
		return shared.ErrMissingDebit
	}
	if !hasCredit {
		return shared.ErrMissingCredit
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced
	}
	return nil
}

// UpdateInput carries editable draft fields. Nil Lines leaves the line
// set untouched.
type UpdateInput struct {
	Date        *time.Time
	Description *string
	Notes       *string
	Lines       []LineInput
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status    Status
	AccountID int64
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}

// TriggerInput is an external business event (a sale, an expense) that
// the convenience flows translate into a posted two-line entry.
type TriggerInput struct {
	Date           time.Time `validate:"required"`
	Amount         decimal.Decimal
	DebitAccountID int64  `validate:"required"`
	CreditAccount  int64  `validate:"required"`
	Description    string `validate:"required"`
	Notes          string
	CreatedBy      int64
}

// Validate rejects non-positive amounts and missing accounts.
func (in TriggerInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !in.Amount.IsPositive() {
		return shared.ErrAmountNotPositive
	}
	return nil
}
