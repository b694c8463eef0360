package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"mgmonitor/internal/config"
)

// allRegions mirrors the marketplace's region filter values, used when the
// user monitors "All".
var allRegions = []string{"EU", "USA", "Canada", "Australia", "Asia", "Africa", "South America"}

// ModularGridClient talks to the marketplace's listing and sale-history
// endpoints. It keeps a logged-in session and re-authenticates lazily when
// the session expires.
type ModularGridClient struct {
	http   *resty.Client
	cfg    config.FeedConfig
	logger *zap.Logger

	// mu serializes re-login so concurrent pages don't race the session.
	mu sync.Mutex
}

func NewModularGridClient(cfg config.FeedConfig, logger *zap.Logger) *ModularGridClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &ModularGridClient{
		http:   client,
		cfg:    cfg,
		logger: logger,
	}
}

type listingsPage struct {
	Listings []Listing `json:"listings"`
	HasMore  bool      `json:"has_more"`
}

type salesPayload struct {
	Sales []Sale `json:"sales"`
}

func (c *ModularGridClient) FetchListings(ctx context.Context, regions []string) ([]Listing, error) {
	if c == nil {
		return nil, &UnavailableError{Op: "fetch listings", Err: fmt.Errorf("client is nil")}
	}
	regions = expandRegions(regions)

	maxPages := c.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var out []Listing
	for _, region := range regions {
		for page := 1; page <= maxPages; page++ {
			batch, hasMore, err := c.fetchListingsPage(ctx, region, page)
			if err != nil {
				return nil, err
			}
			out = append(out, batch...)
			if !hasMore {
				break
			}
			// Be polite to the marketplace between pages.
			if c.cfg.PageDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.cfg.PageDelay):
				}
			}
		}
	}
	if c.logger != nil {
		c.logger.Debug("fetched marketplace listings",
			zap.Int("count", len(out)),
			zap.Strings("regions", regions),
		)
	}
	return out, nil
}

func (c *ModularGridClient) fetchListingsPage(ctx context.Context, region string, page int) ([]Listing, bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("region", region).
		SetQueryParam("page", fmt.Sprintf("%d", page)).
		Get("/api/marketplace/offers")
	if err != nil {
		return nil, false, &UnavailableError{Op: "fetch listings", Err: err}
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		if err := c.login(ctx); err != nil {
			return nil, false, err
		}
		resp, err = c.http.R().
			SetContext(ctx).
			SetQueryParam("region", region).
			SetQueryParam("page", fmt.Sprintf("%d", page)).
			Get("/api/marketplace/offers")
		if err != nil {
			return nil, false, &UnavailableError{Op: "fetch listings", Err: err}
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, false, &UnavailableError{
			Op:  "fetch listings",
			Err: fmt.Errorf("status %d for region %s page %d", resp.StatusCode(), region, page),
		}
	}

	var payload listingsPage
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, false, &UnavailableError{Op: "decode listings", Err: err}
	}
	for i := range payload.Listings {
		if payload.Listings[i].Region == "" {
			payload.Listings[i].Region = region
		}
	}
	return payload.Listings, payload.HasMore, nil
}

func (c *ModularGridClient) FetchSaleHistory(ctx context.Context, moduleID string) ([]Sale, error) {
	if c == nil || strings.TrimSpace(moduleID) == "" {
		return nil, nil
	}
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/modules/" + moduleID + "/sales")
	if err != nil {
		return nil, &UnavailableError{Op: "fetch sale history", Err: err}
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		// fallthrough to decode
	case http.StatusNotFound, http.StatusForbidden:
		// No history access for this module is a legitimate empty result.
		return nil, nil
	default:
		return nil, &UnavailableError{
			Op:  "fetch sale history",
			Err: fmt.Errorf("status %d for module %s", resp.StatusCode(), moduleID),
		}
	}

	var payload salesPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &UnavailableError{Op: "decode sale history", Err: err}
	}
	for i := range payload.Sales {
		if payload.Sales[i].ModuleID == "" {
			payload.Sales[i].ModuleID = moduleID
		}
	}
	return payload.Sales, nil
}

func (c *ModularGridClient) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return &UnavailableError{Op: "login", Err: fmt.Errorf("no credentials configured")}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username": c.cfg.Username,
			"password": c.cfg.Password,
		}).
		Post("/api/session")
	if err != nil {
		return &UnavailableError{Op: "login", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &UnavailableError{Op: "login", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if c.logger != nil {
		c.logger.Info("marketplace session established")
	}
	return nil
}

func expandRegions(regions []string) []string {
	cleaned := make([]string, 0, len(regions))
	for _, r := range regions {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if strings.EqualFold(r, "all") {
			return allRegions
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) == 0 {
		return allRegions
	}
	return cleaned
}
