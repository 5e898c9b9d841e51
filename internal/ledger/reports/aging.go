package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingType selects which side of the balance sheet ages.
type AgingType string

const (
	AgingReceivables AgingType = "RECEIVABLES"
	AgingPayables    AgingType = "PAYABLES"
)

// BucketWindow is one aging window relative to the as-of date. A nil
// From means open-ended: everything on or before To.
type BucketWindow struct {
	Label string
	From  *time.Time
	To    time.Time
}

// BucketWindows derives the four standard aging windows at a date. An
// item dated D−31 is 31 days old and lands in the second bucket; one
// dated D−91 crosses into the open tail.
func BucketWindows(asOf time.Time) [4]BucketWindow {
	day := func(back int) time.Time { return asOf.AddDate(0, 0, -back) }
	b30, b31 := day(30), day(31)
	b60, b61 := day(60), day(61)
	b90, b91 := day(90), day(91)
	return [4]BucketWindow{
		{Label: "0-30", From: &b30, To: asOf},
		{Label: "31-60", From: &b60, To: b31},
		{Label: "61-90", From: &b90, To: b61},
		{Label: ">90", From: nil, To: b91},
	}
}

// AgingBucket is one window with its outstanding amount.
type AgingBucket struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Aging is the receivables or payables aging report.
type Aging struct {
	Type     AgingType       `json:"type"`
	BaseCode string          `json:"base_code"`
	AsOf     time.Time       `json:"as_of"`
	Buckets  [4]AgingBucket  `json:"buckets"`
	Total    decimal.Decimal `json:"total"`
}

// BuildAging assembles the report from per-window amounts, in the same
// order BucketWindows returns.
func BuildAging(typ AgingType, baseCode string, asOf time.Time, amounts [4]decimal.Decimal) Aging {
	windows := BucketWindows(asOf)
	report := Aging{Type: typ, BaseCode: baseCode, AsOf: asOf, Total: decimal.Zero}
	for i, w := range windows {
		report.Buckets[i] = AgingBucket{Label: w.Label, Amount: amounts[i]}
		report.Total = report.Total.Add(amounts[i])
	}
	return report
}
