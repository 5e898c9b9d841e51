package shared

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	if !WithinTolerance(a, decimal.RequireFromString("100.01")) {
		t.Fatalf("0.01 difference should be within tolerance")
	}
	if WithinTolerance(a, decimal.RequireFromString("100.02")) {
		t.Fatalf("0.02 difference should exceed tolerance")
	}
}

func TestParseMoneyRoundTrip(t *testing.T) {
	v, err := ParseMoney("1234.56")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "1234.56" {
		t.Fatalf("unexpected value: %s", v)
	}
	empty, err := ParseMoney("")
	if err != nil || !empty.IsZero() {
		t.Fatalf("empty string should parse to zero, got %v %v", empty, err)
	}
}

func TestErrorKinds(t *testing.T) {
	if !errors.Is(ErrUnbalanced, ErrValidation) {
		t.Fatalf("ErrUnbalanced should classify as validation")
	}
	if !errors.Is(ErrNotDraft, ErrState) {
		t.Fatalf("ErrNotDraft should classify as state")
	}
	if !errors.Is(ErrAccountNotFound, ErrNotFound) {
		t.Fatalf("ErrAccountNotFound should classify as not found")
	}
	if errors.Is(ErrUnbalanced, ErrState) {
		t.Fatalf("kinds must not overlap")
	}
}
