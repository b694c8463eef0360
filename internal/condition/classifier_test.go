package condition

import (
	"testing"
)

func TestDefaultClassifier(t *testing.T) {
	classify := Default()
	tests := []struct {
		in   string
		want Bucket
	}{
		{"BNIB, never racked", New},
		{"Brand new in box", New},
		{"Mint condition, home studio only", Mint},
		{"like new", Mint},
		{"Excellent shape", Excellent},
		{"barely used", Excellent},
		{"Good condition, fully functional", Good},
		{"works great, light rack rash", Good},
		{"used, has marks on the panel", Fair},
		{"some scratches, cosmetic damage", Fair},
		{"for parts or repair", Poor},
		{"encoder broken", Poor},
		{"", Unknown},
		{"no description to speak of", Unknown},
	}
	for _, tt := range tests {
		if got := classify(tt.in); got != tt.want {
			t.Fatalf("classify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifierBestConditionWins(t *testing.T) {
	classify := Default()
	// Rules run best-first: a new-in-box module with box wear is still New.
	if got := classify("brand new, minor scuffs on the box only"); got != New {
		t.Fatalf("got %q, want %q", got, New)
	}
}
