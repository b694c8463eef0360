package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Feed supplies normalized marketplace data per scan cycle. The ledger only
// ever sees these records; how they are obtained (session handling, paging,
// scraping) stays behind this boundary.
type Feed interface {
	// FetchListings returns every listing currently visible in the given
	// regions. The result is finite per call; "All" expands server-side.
	FetchListings(ctx context.Context, regions []string) ([]Listing, error)
	// FetchSaleHistory returns completed sales for a module. An empty result
	// is legitimate "no data", not an error.
	FetchSaleHistory(ctx context.Context, moduleID string) ([]Sale, error)
}

// Listing is one marketplace offer as the feed reports it. Condition is the
// seller's free text; classification happens in the ledger.
type Listing struct {
	ListingID    string          `json:"listing_id"`
	ModuleID     string          `json:"module_id"`
	ModuleName   string          `json:"module_name"`
	Manufacturer string          `json:"manufacturer"`
	HP           int             `json:"hp"`
	ModuleType   string          `json:"module_type"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Condition    string          `json:"condition"`
	Seller       string          `json:"seller"`
	Region       string          `json:"region"`
	URL          string          `json:"url"`
	ListedAt     *time.Time      `json:"listed_at"`

	Raw json.RawMessage `json:"-"`
}

// Sale is one completed historical sale.
type Sale struct {
	ModuleID  string          `json:"module_id"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Condition string          `json:"condition"`
	SoldAt    time.Time       `json:"sold_at"`
}

// UnavailableError marks a transient feed failure. The scan cycle that hits
// one is skipped and retried on the next interval; it is never fatal.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("feed unavailable: %s", e.Op)
	}
	return fmt.Sprintf("feed unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is (or wraps) a feed availability
// failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
