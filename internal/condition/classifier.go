package condition

import (
	"regexp"
	"strings"
)

// Bucket is the closed condition enum the evaluator works with. Sellers write
// free text; the classifier maps it here so nothing downstream parses text.
type Bucket string

const (
	New       Bucket = "new"
	Mint      Bucket = "mint"
	Excellent Bucket = "excellent"
	Good      Bucket = "good"
	Fair      Bucket = "fair"
	Poor      Bucket = "poor"
	Unknown   Bucket = "unknown"
)

// Classifier maps a seller's free-text condition description to a Bucket.
// Injected into the ledger so the decision logic stays pure.
type Classifier func(description string) Bucket

type rule struct {
	bucket   Bucket
	patterns []string

	compiled []*regexp.Regexp
}

func defaultRules() []rule {
	return []rule{
		{
			bucket: New,
			patterns: []string{
				`(?i)\bbnib\b`,
				`(?i)brand\s*new`,
				`(?i)new\s*in\s*box`,
				`(?i)\bsealed\b`,
				`(?i)\bunopened\b`,
			},
		},
		{
			bucket: Mint,
			patterns: []string{
				`(?i)\bmint\b`,
				`(?i)as\s*new`,
				`(?i)like\s*new`,
				`(?i)\bflawless\b`,
			},
		},
		{
			bucket: Excellent,
			patterns: []string{
				`(?i)\bexcellent\b`,
				`(?i)\bpristine\b`,
				`(?i)barely\s*used`,
				`(?i)very\s*good`,
			},
		},
		{
			bucket: Good,
			patterns: []string{
				`(?i)\bgood\b`,
				`(?i)fully\s*(functional|working)`,
				`(?i)works\s*(great|fine|perfectly)`,
				`(?i)light\s*(rack\s*)?(rash|wear)`,
			},
		},
		{
			bucket: Fair,
			patterns: []string{
				`(?i)\bfair\b`,
				`(?i)\bused\b`,
				`(?i)(has|some|minor)\s*(marks|scratches|scuffs|wear)`,
				`(?i)rack\s*rash`,
				`(?i)cosmetic\s*(damage|issues)`,
			},
		},
		{
			bucket: Poor,
			patterns: []string{
				`(?i)\bpoor\b`,
				`(?i)for\s*(parts|repair)`,
				`(?i)not\s*working`,
				`(?i)\bbroken\b`,
				`(?i)\bfaulty\b`,
				`(?i)\bdefect`,
			},
		},
	}
}

// Default returns the rule-based classifier. First matching rule wins, rules
// are ordered best condition first so "brand new, minor marks on the box"
// lands on New rather than Fair.
func Default() Classifier {
	rules := defaultRules()
	for i := range rules {
		for _, p := range rules[i].patterns {
			rules[i].compiled = append(rules[i].compiled, regexp.MustCompile(p))
		}
	}
	return func(description string) Bucket {
		text := strings.TrimSpace(description)
		if text == "" {
			return Unknown
		}
		for _, r := range rules {
			for _, re := range r.compiled {
				if re.MatchString(text) {
					return r.bucket
				}
			}
		}
		return Unknown
	}
}
