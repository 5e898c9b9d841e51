package shared

import "github.com/shopspring/decimal"

// Tolerance is the largest absolute difference treated as zero when
// comparing derived balances. Entry balance checks are exact and do not
// use it.
var Tolerance = decimal.NewFromFloat(0.01)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// WithinTolerance reports whether |a - b| <= Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(Tolerance) <= 0
}

// IsZeroish reports whether |v| <= Tolerance.
func IsZeroish(v decimal.Decimal) bool {
	return v.Abs().Cmp(Tolerance) <= 0
}

// Money normalizes an amount to two fractional digits, the scale of the
// NUMERIC(17,2) columns backing the ledger.
func Money(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ParseMoney parses a monetary string as transported through the query
// cache. Empty strings decode to zero.
func ParseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
