package formula

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func vars(pairs map[string]string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(pairs))
	for k, v := range pairs {
		out[k] = decimal.RequireFromString(v)
	}
	return out
}

func TestEvalSalaryFormula(t *testing.T) {
	got, err := Eval("base_salary + overtime_hours * hourly_rate - deductions", vars(map[string]string{
		"base_salary":    "3000.00",
		"overtime_hours": "10",
		"hourly_rate":    "25.50",
		"deductions":     "120.00",
	}))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("3135.00")), "got %s", got)
}

func TestEvalPrecedenceAndParens(t *testing.T) {
	v := vars(map[string]string{"quantity": "4", "unit_price": "10", "discount": "2"})

	got, err := Eval("quantity * unit_price - discount", v)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(38)))

	got, err = Eval("quantity * (unit_price - discount)", v)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(32)))
}

func TestEvalUnaryMinus(t *testing.T) {
	got, err := Eval("-5 + 8", nil)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(3)))

	got, err = Eval("10 * -2", nil)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(-20)))
}

func TestEvalDecimalExactness(t *testing.T) {
	// 0.1 + 0.2 is exactly 0.3, not a float approximation.
	got, err := Eval("0.1 + 0.2", nil)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("0.3")))
}

func TestParseRejectsUnknownVariable(t *testing.T) {
	_, err := Parse("base_salary + bonus", []string{"base_salary"})
	require.ErrorIs(t, err, ErrUnknownVariable)
	require.Contains(t, err.Error(), "bonus")
}

func TestParseRejectsForeignTokens(t *testing.T) {
	for _, src := range []string{
		"__import__('os')",
		"base_salary; drop",
		"a ** b",
		"2 = 2",
		"salary[0]",
		"f(x)",
		"1 + ",
		"(1 + 2",
		"1..2",
		"",
	} {
		_, err := Parse(src, []string{"base_salary", "a", "b", "salary", "f", "x"})
		require.Error(t, err, "source %q must not parse", src)
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval("total / count", vars(map[string]string{"total": "100", "count": "0"}))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestParsedFormulaIsReusable(t *testing.T) {
	f, err := Parse("hours * rate", []string{"hours", "rate"})
	require.NoError(t, err)
	require.Equal(t, "hours * rate", f.Source())

	for _, tc := range []struct{ hours, rate, want string }{
		{"8", "50", "400"},
		{"7.5", "60", "450"},
		{"0", "100", "0"},
	} {
		got, err := f.Eval(vars(map[string]string{"hours": tc.hours, "rate": tc.rate}))
		require.NoError(t, err)
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "hours=%s rate=%s got %s", tc.hours, tc.rate, got)
	}
}

func TestIdentifiersAreCaseInsensitive(t *testing.T) {
	got, err := Eval("Base_Salary + 1", vars(map[string]string{"base_salary": "99"}))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(100)))
}
