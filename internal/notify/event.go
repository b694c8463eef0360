package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mgmonitor/internal/models"
	"mgmonitor/internal/stats"
)

// DealEvent carries everything a channel needs to render a notification
// without going back to the store.
type DealEvent struct {
	ID         string
	Deal       models.Deal
	Listing    models.ListingSnapshot
	Module     models.Module
	Stats      stats.Stats
	OccurredAt time.Time
}

func NewDealEvent(deal models.Deal, listing models.ListingSnapshot, module models.Module, st stats.Stats) DealEvent {
	return DealEvent{
		ID:         uuid.NewString(),
		Deal:       deal,
		Listing:    listing,
		Module:     module,
		Stats:      st,
		OccurredAt: time.Now(),
	}
}

// Subject is the one-line headline shared by every channel.
func (e DealEvent) Subject() string {
	return fmt.Sprintf("Deal: %s at %s %s (%.1f%% below average)",
		e.Module.Name, e.Listing.Price.StringFixed(2), e.Listing.Currency, e.Deal.PercentBelow)
}

// Body is the plain-text rendering used by email and desktop channels.
func (e DealEvent) Body() string {
	return fmt.Sprintf(
		"%s by %s\n"+
			"Price: %s %s (%s)\n"+
			"Average sale price: %s %s over %d sales\n"+
			"%.1f%% below average\n"+
			"Region: %s  Seller: %s\n"+
			"%s\n",
		e.Module.Name, e.Module.Manufacturer,
		e.Listing.Price.StringFixed(2), e.Listing.Currency, e.Listing.ConditionText,
		e.Deal.BasisPrice.StringFixed(2), e.Listing.Currency, e.Deal.SampleSize,
		e.Deal.PercentBelow,
		e.Listing.Region, e.Listing.Seller,
		e.Listing.URL,
	)
}
