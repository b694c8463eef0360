package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/models"
)

func mkSale(price float64, cond condition.Bucket, soldAt time.Time) models.SaleRecord {
	return models.SaleRecord{
		Price:     decimal.NewFromFloat(price),
		Currency:  "EUR",
		Condition: string(cond),
		SoldAt:    soldAt,
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	if !s.Insufficient() {
		t.Fatalf("expected insufficient sentinel, got sample=%d", s.SampleSize)
	}
	if s.TrendPct != nil {
		t.Fatalf("trend must be nil on empty population")
	}
}

func TestComputeAverageMedian(t *testing.T) {
	now := time.Now().UTC()
	records := []models.SaleRecord{
		mkSale(300, condition.Good, now.AddDate(0, -3, 0)),
		mkSale(290, condition.Good, now.AddDate(0, -2, 0)),
		mkSale(280, condition.Fair, now.AddDate(0, -1, 0)),
		mkSale(310, condition.Mint, now),
	}
	s := Compute(records)
	if s.SampleSize != 4 {
		t.Fatalf("sample=%d want=4", s.SampleSize)
	}
	if s.Average.Cmp(decimal.NewFromInt(295)) != 0 {
		t.Fatalf("average=%s want=295", s.Average)
	}
	if s.Median.Cmp(decimal.NewFromInt(295)) != 0 {
		t.Fatalf("median=%s want=295", s.Median)
	}
	if s.Low.Cmp(decimal.NewFromInt(280)) != 0 || s.High.Cmp(decimal.NewFromInt(310)) != 0 {
		t.Fatalf("low=%s high=%s want 280/310", s.Low, s.High)
	}
}

func TestComputeMedianOdd(t *testing.T) {
	now := time.Now().UTC()
	records := []models.SaleRecord{
		mkSale(100, condition.Good, now),
		mkSale(400, condition.Good, now),
		mkSale(200, condition.Good, now),
	}
	s := Compute(records)
	if s.Median.Cmp(decimal.NewFromInt(200)) != 0 {
		t.Fatalf("median=%s want=200", s.Median)
	}
}

func TestTrendUndefinedBelowThree(t *testing.T) {
	now := time.Now().UTC()
	s := Compute([]models.SaleRecord{
		mkSale(100, condition.Good, now.AddDate(0, -1, 0)),
		mkSale(120, condition.Good, now),
	})
	if s.TrendPct != nil {
		t.Fatalf("trend must be nil for sample < 3, got %v", *s.TrendPct)
	}
}

func TestTrendEarliestVsLatestThird(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Earliest third mean = 100, latest third mean = 150 => +50%.
	records := []models.SaleRecord{
		mkSale(100, condition.Good, base),
		mkSale(100, condition.Good, base.AddDate(0, 1, 0)),
		mkSale(120, condition.Good, base.AddDate(0, 2, 0)),
		mkSale(130, condition.Good, base.AddDate(0, 3, 0)),
		mkSale(150, condition.Good, base.AddDate(0, 4, 0)),
		mkSale(150, condition.Good, base.AddDate(0, 5, 0)),
	}
	s := Compute(records)
	if s.TrendPct == nil {
		t.Fatalf("expected trend")
	}
	if got := *s.TrendPct; got < 49.99 || got > 50.01 {
		t.Fatalf("trend=%v want=50", got)
	}
}

func TestComputeFiltered(t *testing.T) {
	now := time.Now().UTC()
	records := []models.SaleRecord{
		mkSale(300, condition.Mint, now),
		mkSale(200, condition.Fair, now),
		mkSale(100, condition.Fair, now),
	}
	s := ComputeFiltered(records, condition.Fair)
	if s.SampleSize != 2 {
		t.Fatalf("sample=%d want=2", s.SampleSize)
	}
	if s.Average.Cmp(decimal.NewFromInt(150)) != 0 {
		t.Fatalf("average=%s want=150", s.Average)
	}

	// Bucket with no sales yields the sentinel, not zero arithmetic.
	if s := ComputeFiltered(records, condition.Poor); !s.Insufficient() {
		t.Fatalf("expected insufficient for empty sub-population")
	}

	// Unknown bucket means no filter.
	if s := ComputeFiltered(records, condition.Unknown); s.SampleSize != 3 {
		t.Fatalf("sample=%d want=3", s.SampleSize)
	}
}
