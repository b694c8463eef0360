package evaluate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/models"
	"mgmonitor/internal/stats"
)

func mkListing(price float64, region string, active bool) models.ListingSnapshot {
	return models.ListingSnapshot{
		ID:         "l1",
		ModuleID:   "m1",
		Price:      decimal.NewFromFloat(price),
		Currency:   "EUR",
		Region:     region,
		Active:     active,
		LastSeenAt: time.Now().UTC(),
	}
}

func mkStats(prices ...float64) stats.Stats {
	records := make([]models.SaleRecord, 0, len(prices))
	for _, p := range prices {
		records = append(records, models.SaleRecord{
			Price:  decimal.NewFromFloat(p),
			SoldAt: time.Now().UTC(),
		})
	}
	return stats.Compute(records)
}

func TestEvaluateDeal(t *testing.T) {
	// Average 295, price 220 => 25.4% below, threshold 15 => deal.
	overall := mkStats(300, 290, 280, 310)
	policy := Policy{ThresholdPct: 15, Regions: []string{"US"}}
	v := Evaluate(mkListing(220, "US", true), overall, stats.Stats{}, policy)
	if !v.IsDeal {
		t.Fatalf("expected deal, reason=%q", v.Reason)
	}
	if v.PercentBelow < 25.4 || v.PercentBelow > 25.5 {
		t.Fatalf("percent=%v want ~25.4", v.PercentBelow)
	}
	if v.BasisPrice.Cmp(decimal.NewFromInt(295)) != 0 {
		t.Fatalf("basis=%s want=295", v.BasisPrice)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	// Price 260 => 11.9% below < 15% => not a deal.
	overall := mkStats(300, 290, 280, 310)
	policy := Policy{ThresholdPct: 15}
	v := Evaluate(mkListing(260, "US", true), overall, stats.Stats{}, policy)
	if v.IsDeal || v.Reason != ReasonBelowThreshold {
		t.Fatalf("verdict=%+v want below_threshold", v)
	}
}

func TestEvaluateMaxPriceCeiling(t *testing.T) {
	// 28.8% below threshold-wise, but over the 200 ceiling => rejected.
	overall := mkStats(300, 290, 280, 310)
	ceiling := decimal.NewFromInt(200)
	policy := Policy{ThresholdPct: 15, MaxPrice: &ceiling, MaxPriceCurrency: "EUR"}
	v := Evaluate(mkListing(210, "US", true), overall, stats.Stats{}, policy)
	if v.IsDeal || v.Reason != ReasonOverMaxPrice {
		t.Fatalf("verdict=%+v want over_max_price", v)
	}
}

func TestEvaluateCeilingCurrencyMismatchIgnored(t *testing.T) {
	overall := mkStats(300, 290, 280, 310)
	ceiling := decimal.NewFromInt(200)
	policy := Policy{ThresholdPct: 15, MaxPrice: &ceiling, MaxPriceCurrency: "USD"}
	v := Evaluate(mkListing(210, "US", true), overall, stats.Stats{}, policy)
	if !v.IsDeal {
		t.Fatalf("ceiling in another currency must not apply, reason=%q", v.Reason)
	}
}

func TestEvaluateInactive(t *testing.T) {
	overall := mkStats(300)
	v := Evaluate(mkListing(10, "US", false), overall, stats.Stats{}, Policy{ThresholdPct: 15})
	if v.IsDeal || v.Reason != ReasonInactive {
		t.Fatalf("verdict=%+v want inactive", v)
	}
}

func TestEvaluateRegionFilter(t *testing.T) {
	overall := mkStats(300)
	policy := Policy{ThresholdPct: 15, Regions: []string{"EU", "USA"}}
	v := Evaluate(mkListing(10, "Asia", true), overall, stats.Stats{}, policy)
	if v.IsDeal || v.Reason != ReasonRegionUnwatched {
		t.Fatalf("verdict=%+v want region_unwatched", v)
	}
	// Empty region set monitors everything.
	if v := Evaluate(mkListing(10, "Asia", true), overall, stats.Stats{}, Policy{ThresholdPct: 15}); !v.IsDeal {
		t.Fatalf("empty region set must monitor all, reason=%q", v.Reason)
	}
	// An explicit "All" entry does too.
	policy.Regions = []string{"All"}
	if v := Evaluate(mkListing(10, "Asia", true), overall, stats.Stats{}, policy); !v.IsDeal {
		t.Fatalf("All region must monitor everything, reason=%q", v.Reason)
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	v := Evaluate(mkListing(1, "US", true), stats.Stats{}, stats.Stats{}, Policy{ThresholdPct: 15})
	if v.IsDeal || v.Reason != ReasonInsufficientData {
		t.Fatalf("verdict=%+v want insufficient_data", v)
	}
}

func TestEvaluateConditionAwareBasis(t *testing.T) {
	overall := mkStats(300, 100) // mixed-condition average 200
	byCond := mkStats(300, 300)  // listing's own bucket averages 300
	listing := mkListing(220, "US", true)
	listing.ConditionBucket = string(condition.Mint)
	v := Evaluate(listing, overall, byCond, Policy{ThresholdPct: 15})
	if !v.IsDeal {
		t.Fatalf("expected deal against condition basis, reason=%q", v.Reason)
	}
	if v.BasisPrice.Cmp(decimal.NewFromInt(300)) != 0 {
		t.Fatalf("basis=%s want condition-aware 300", v.BasisPrice)
	}
	if v.ConditionBasis != condition.Mint {
		t.Fatalf("condition basis=%q want mint", v.ConditionBasis)
	}

	// Empty sub-population falls back to the module-wide basis.
	v = Evaluate(listing, overall, stats.Stats{}, Policy{ThresholdPct: 5})
	if v.ConditionBasis != "" || v.BasisPrice.Cmp(decimal.NewFromInt(200)) != 0 {
		t.Fatalf("fallback basis=%s bucket=%q want 200/module-wide", v.BasisPrice, v.ConditionBasis)
	}
}

func TestResolvePolicy(t *testing.T) {
	global := GlobalPolicy{ThresholdPct: 15, Regions: []string{"EU"}}

	if p := Resolve(global, nil); p.ThresholdPct != 15 || p.MaxPrice != nil {
		t.Fatalf("nil entry must yield global policy, got %+v", p)
	}

	threshold := 25.0
	ceiling := decimal.NewFromInt(150)
	entry := &models.WatchlistEntry{
		ModuleID:         "m1",
		ThresholdPct:     &threshold,
		MaxPrice:         &ceiling,
		MaxPriceCurrency: "EUR",
	}
	p := Resolve(global, entry)
	if p.ThresholdPct != 25 {
		t.Fatalf("threshold=%v want watchlist override 25", p.ThresholdPct)
	}
	if p.MaxPrice == nil || p.MaxPrice.Cmp(ceiling) != 0 || p.MaxPriceCurrency != "EUR" {
		t.Fatalf("ceiling not carried: %+v", p)
	}

	// Entry without a threshold keeps the global default.
	entry.ThresholdPct = nil
	if p := Resolve(global, entry); p.ThresholdPct != 15 {
		t.Fatalf("threshold=%v want global 15", p.ThresholdPct)
	}
}
