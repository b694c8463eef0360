package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"mgmonitor/internal/config"
)

// WebhookNotifier POSTs the event as JSON to a user-provided endpoint.
type WebhookNotifier struct {
	url  string
	http *resty.Client
}

func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &WebhookNotifier{url: cfg.URL, http: client}
}

func (n *WebhookNotifier) Name() string {
	return "webhook"
}

type webhookPayload struct {
	EventID      string  `json:"event_id"`
	ModuleName   string  `json:"module_name"`
	Manufacturer string  `json:"manufacturer"`
	Price        string  `json:"price"`
	Currency     string  `json:"currency"`
	BasisPrice   string  `json:"basis_price"`
	PercentBelow float64 `json:"percent_below"`
	SampleSize   int     `json:"sample_size"`
	Condition    string  `json:"condition"`
	Region       string  `json:"region"`
	Seller       string  `json:"seller"`
	URL          string  `json:"url"`
}

func (n *WebhookNotifier) Send(ctx context.Context, event DealEvent) error {
	if n.url == "" {
		return fmt.Errorf("webhook notify: no url configured")
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{
			EventID:      event.ID,
			ModuleName:   event.Module.Name,
			Manufacturer: event.Module.Manufacturer,
			Price:        event.Listing.Price.StringFixed(2),
			Currency:     event.Listing.Currency,
			BasisPrice:   event.Deal.BasisPrice.StringFixed(2),
			PercentBelow: event.Deal.PercentBelow,
			SampleSize:   event.Deal.SampleSize,
			Condition:    event.Listing.ConditionText,
			Region:       event.Listing.Region,
			Seller:       event.Listing.Seller,
			URL:          event.Listing.URL,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook notify: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook notify: status %d", resp.StatusCode())
	}
	return nil
}
