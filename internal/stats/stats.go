package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/models"
)

// Stats summarizes a module's sale-price history. A zero SampleSize is the
// "insufficient data" sentinel: callers must treat it as not evaluable, never
// as a zero-price basis.
type Stats struct {
	Average    decimal.Decimal
	Median     decimal.Decimal
	Low        decimal.Decimal
	High       decimal.Decimal
	SampleSize int

	// TrendPct is the percentage change between the mean of the earliest
	// third and the latest third of the time-ordered population. Nil when
	// SampleSize < 3.
	TrendPct *float64
}

// Insufficient reports whether there is no sale population to judge against.
func (s Stats) Insufficient() bool {
	return s.SampleSize == 0
}

// Compute derives statistics over the full sale population. Pure and
// read-only, safe for concurrent use.
func Compute(records []models.SaleRecord) Stats {
	if len(records) == 0 {
		return Stats{}
	}

	prices := make([]decimal.Decimal, len(records))
	sum := decimal.Zero
	low := records[0].Price
	high := records[0].Price
	for i, r := range records {
		prices[i] = r.Price
		sum = sum.Add(r.Price)
		if r.Price.LessThan(low) {
			low = r.Price
		}
		if r.Price.GreaterThan(high) {
			high = r.Price
		}
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	n := len(prices)
	out := Stats{
		Average:    sum.Div(decimal.NewFromInt(int64(n))),
		Low:        low,
		High:       high,
		SampleSize: n,
	}
	if n%2 == 1 {
		out.Median = prices[n/2]
	} else {
		out.Median = prices[n/2-1].Add(prices[n/2]).Div(decimal.NewFromInt(2))
	}
	out.TrendPct = trend(records)
	return out
}

// ComputeFiltered restricts the population to one condition bucket before
// computing. An empty sub-population yields the insufficient sentinel; the
// evaluator falls back to the condition-agnostic basis in that case.
func ComputeFiltered(records []models.SaleRecord, bucket condition.Bucket) Stats {
	if bucket == "" || bucket == condition.Unknown {
		return Compute(records)
	}
	filtered := make([]models.SaleRecord, 0, len(records))
	for _, r := range records {
		if condition.Bucket(r.Condition) == bucket {
			filtered = append(filtered, r)
		}
	}
	return Compute(filtered)
}

func trend(records []models.SaleRecord) *float64 {
	if len(records) < 3 {
		return nil
	}
	ordered := make([]models.SaleRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SoldAt.Before(ordered[j].SoldAt) })

	third := len(ordered) / 3
	early := meanOf(ordered[:third])
	late := meanOf(ordered[len(ordered)-third:])
	if early.IsZero() {
		return nil
	}
	pct, _ := late.Sub(early).Div(early).Mul(decimal.NewFromInt(100)).Float64()
	return &pct
}

func meanOf(records []models.SaleRecord) decimal.Decimal {
	if len(records) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(records))))
}
