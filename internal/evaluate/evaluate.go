package evaluate

import (
	"strings"

	"github.com/shopspring/decimal"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/models"
	"mgmonitor/internal/stats"
)

// GlobalPolicy is the user's default policy; watchlist entries override it
// per module.
type GlobalPolicy struct {
	ThresholdPct float64
	// Regions the user monitors. Empty means monitor everything.
	Regions []string
}

// Policy is the effective policy for one listing after watchlist resolution.
type Policy struct {
	ThresholdPct     float64
	MaxPrice         *decimal.Decimal
	MaxPriceCurrency string
	Regions          []string
}

// Resolve applies the watchlist override on top of the global defaults. A nil
// entry or a nil threshold means the global threshold; the max-price ceiling
// only ever comes from the watchlist.
func Resolve(global GlobalPolicy, entry *models.WatchlistEntry) Policy {
	p := Policy{
		ThresholdPct: global.ThresholdPct,
		Regions:      global.Regions,
	}
	if entry == nil {
		return p
	}
	if entry.ThresholdPct != nil {
		p.ThresholdPct = *entry.ThresholdPct
	}
	if entry.MaxPrice != nil {
		v := *entry.MaxPrice
		p.MaxPrice = &v
		p.MaxPriceCurrency = entry.MaxPriceCurrency
	}
	return p
}

// Verdict reason codes, in check order. Empty reason means the listing
// qualified.
const (
	ReasonInactive         = "inactive"
	ReasonRegionUnwatched  = "region_unwatched"
	ReasonInsufficientData = "insufficient_data"
	ReasonBelowThreshold   = "below_threshold"
	ReasonOverMaxPrice     = "over_max_price"
)

// Verdict is the evaluator's decision for one listing.
type Verdict struct {
	IsDeal       bool
	PercentBelow float64
	BasisPrice   decimal.Decimal

	// ConditionBasis names the bucket whose sub-population formed the basis;
	// empty when the module-wide average was used.
	ConditionBasis condition.Bucket
	SampleSize     int
	Reason         string
}

// Evaluate decides deal/no-deal for one listing. overall is the module-wide
// statistics; byCondition is the population restricted to the listing's own
// bucket and is preferred as the basis when non-empty. Pure and
// deterministic; the first failing check short-circuits.
func Evaluate(listing models.ListingSnapshot, overall, byCondition stats.Stats, policy Policy) Verdict {
	if !listing.Active {
		return Verdict{Reason: ReasonInactive}
	}
	if !regionMonitored(policy.Regions, listing.Region) {
		return Verdict{Reason: ReasonRegionUnwatched}
	}

	basis := overall
	basisBucket := condition.Bucket("")
	if byCondition.SampleSize > 0 {
		basis = byCondition
		basisBucket = condition.Bucket(listing.ConditionBucket)
	}
	if basis.Insufficient() || basis.Average.IsZero() {
		return Verdict{Reason: ReasonInsufficientData}
	}

	ratio := listing.Price.Div(basis.Average)
	percentBelow, _ := decimal.NewFromInt(1).Sub(ratio).Mul(decimal.NewFromInt(100)).Float64()

	v := Verdict{
		PercentBelow:   percentBelow,
		BasisPrice:     basis.Average,
		ConditionBasis: basisBucket,
		SampleSize:     basis.SampleSize,
	}
	if percentBelow <= policy.ThresholdPct {
		v.Reason = ReasonBelowThreshold
		return v
	}
	// The ceiling is independent of the threshold: a steep discount on an
	// expensive listing can still be over budget. Currencies must match for
	// the comparison to mean anything; otherwise the ceiling is ignored.
	if policy.MaxPrice != nil && currencyMatches(policy.MaxPriceCurrency, listing.Currency) {
		if listing.Price.GreaterThan(*policy.MaxPrice) {
			v.Reason = ReasonOverMaxPrice
			return v
		}
	}
	v.IsDeal = true
	return v
}

func regionMonitored(regions []string, region string) bool {
	if len(regions) == 0 {
		return true
	}
	for _, r := range regions {
		if strings.EqualFold(strings.TrimSpace(r), "all") {
			return true
		}
		if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(region)) {
			return true
		}
	}
	return false
}

func currencyMatches(ceiling, listing string) bool {
	if strings.TrimSpace(ceiling) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(ceiling), strings.TrimSpace(listing))
}
