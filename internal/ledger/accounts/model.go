package accounts

import "time"

// Category enumerates chart of account classifications.
type Category string

const (
	CategoryAsset     Category = "ASSET"
	CategoryLiability Category = "LIABILITY"
	CategoryEquity    Category = "EQUITY"
	CategoryRevenue   Category = "REVENUE"
	CategoryExpense   Category = "EXPENSE"
)

// Nature is the side on which a positive balance of the category lives.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// NatureFor returns the normal side implied by a category.
func NatureFor(cat Category) Nature {
	switch cat {
	case CategoryAsset, CategoryExpense:
		return NatureDebit
	default:
		return NatureCredit
	}
}

// AccountType describes a family of accounts sharing category and nature.
type AccountType struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Nature    Nature    `json:"nature"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account models a chart of accounts node. Only leaves may appear on
// journal lines.
type Account struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	ParentID      *int64    `json:"parent_id,omitempty"`
	TypeID        int64     `json:"type_id"`
	Category      Category  `json:"category"`
	Nature        Nature    `json:"nature"`
	IsLeaf        bool      `json:"is_leaf"`
	IsActive      bool      `json:"is_active"`
	IsCashAccount bool      `json:"is_cash_account"`
	IsBankAccount bool      `json:"is_bank_account"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Filter narrows account listings for report queries.
type Filter struct {
	LeafOnly   bool
	ActiveOnly bool
	Category   Category
	CashOnly   bool
	BankOnly   bool
}

// TreeNode is a code-ordered flat presentation row.
type TreeNode struct {
	Account
	Depth int `json:"depth"`
}
