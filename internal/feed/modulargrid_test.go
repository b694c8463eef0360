package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"mgmonitor/internal/config"
)

func testClient(t *testing.T, handler http.Handler) (*ModularGridClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewModularGridClient(config.FeedConfig{
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		MaxPages: 5,
	}, nil)
	return client, srv.Close
}

func TestFetchListingsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/marketplace/offers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("region") != "EU" {
			t.Errorf("region = %q, want EU", r.URL.Query().Get("region"))
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"listings":[{"listing_id":"l-1","module_id":"m-1","price":"220"}],"has_more":true}`)
		case "2":
			fmt.Fprint(w, `{"listings":[{"listing_id":"l-2","module_id":"m-2","price":"180"}],"has_more":false}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	client, done := testClient(t, mux)
	defer done()

	items, err := client.FetchListings(context.Background(), []string{"EU"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("listings = %d, want 2 across pages", len(items))
	}
	if items[0].ListingID != "l-1" || items[1].ListingID != "l-2" {
		t.Fatalf("unexpected listing order: %q, %q", items[0].ListingID, items[1].ListingID)
	}
	// Server omitted the region field; the client fills in the query region.
	if items[0].Region != "EU" {
		t.Fatalf("region backfill = %q, want EU", items[0].Region)
	}
}

func TestFetchListingsServerErrorIsUnavailable(t *testing.T) {
	client, done := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer done()

	_, err := client.FetchListings(context.Background(), []string{"EU"})
	if !IsUnavailable(err) {
		t.Fatalf("err = %v, want an availability failure", err)
	}
}

func TestFetchSaleHistoryNotFoundIsEmpty(t *testing.T) {
	client, done := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer done()

	sales, err := client.FetchSaleHistory(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("missing history must read as no data, got %v", err)
	}
	if sales != nil {
		t.Fatalf("sales = %v, want nil", sales)
	}
}

func TestFetchSaleHistoryBackfillsModuleID(t *testing.T) {
	client, done := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"sales":[{"price":"300","currency":"EUR","sold_at":"2026-01-01T00:00:00Z"}]}`)
	}))
	defer done()

	sales, err := client.FetchSaleHistory(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(sales) != 1 || sales[0].ModuleID != "m-1" {
		t.Fatalf("sales = %+v, want one row attributed to m-1", sales)
	}
}

func TestExpandRegions(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{nil, allRegions},
		{[]string{""}, allRegions},
		{[]string{"All"}, allRegions},
		{[]string{"EU", "all"}, allRegions},
		{[]string{"EU", "USA"}, []string{"EU", "USA"}},
		{[]string{" EU "}, []string{"EU"}},
	}
	for _, c := range cases {
		if got := expandRegions(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("expandRegions(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestUnavailableErrorUnwraps(t *testing.T) {
	root := errors.New("connection refused")
	err := &UnavailableError{Op: "fetch listings", Err: root}
	if !errors.Is(err, root) {
		t.Fatal("wrapped cause should survive errors.Is")
	}
	if !IsUnavailable(fmt.Errorf("cycle: %w", err)) {
		t.Fatal("IsUnavailable should see through wrapping")
	}
}
