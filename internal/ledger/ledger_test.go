package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mgmonitor/internal/config"
	"mgmonitor/internal/feed"
	"mgmonitor/internal/models"
	"mgmonitor/internal/notify"
	"mgmonitor/internal/repository"
)

// stubStore is a minimal in-memory Store for exercising the scan cycle.
type stubStore struct {
	mu       sync.Mutex
	modules  map[string]models.Module
	listings map[string]models.ListingSnapshot
	sales    []models.SaleRecord
	deals    []models.Deal
	watch    map[string]models.WatchlistEntry
	prefs    map[string]string
	runs     []models.ScanRun

	nextDealID uint64
}

func newStubStore() *stubStore {
	return &stubStore{
		modules:  map[string]models.Module{},
		listings: map[string]models.ListingSnapshot{},
		watch:    map[string]models.WatchlistEntry{},
		prefs:    map[string]string{},
	}
}

func (s *stubStore) GetModule(_ context.Context, id string) (*models.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modules[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *stubStore) UpsertModule(_ context.Context, item *models.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[item.ID] = *item
	return nil
}

func (s *stubStore) ListModules(context.Context, repository.ListModulesParams) ([]models.Module, error) {
	return nil, nil
}

func (s *stubStore) CountModules(context.Context, repository.ListModulesParams) (int64, error) {
	return 0, nil
}

func (s *stubStore) GetListing(_ context.Context, id string) (*models.ListingSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.listings[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (s *stubStore) UpsertListing(_ context.Context, item *models.ListingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[item.ID] = *item
	return nil
}

func (s *stubStore) ListListings(context.Context, repository.ListListingsParams) ([]models.ListingSnapshot, error) {
	return nil, nil
}

func (s *stubStore) CountListings(context.Context, repository.ListListingsParams) (int64, error) {
	return 0, nil
}

func (s *stubStore) MarkInactiveExcept(_ context.Context, seenIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, id := range seenIDs {
		seen[id] = true
	}
	var n int64
	for id, l := range s.listings {
		if l.Active && !seen[id] {
			l.Active = false
			s.listings[id] = l
			n++
		}
	}
	return n, nil
}

func (s *stubStore) AppendSaleRecords(_ context.Context, items []models.SaleRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, item := range items {
		dup := false
		for _, have := range s.sales {
			if have.ModuleID == item.ModuleID && have.Price.Equal(item.Price) &&
				have.Currency == item.Currency && have.SoldAt.Equal(item.SoldAt) {
				dup = true
				break
			}
		}
		if !dup {
			s.sales = append(s.sales, item)
			added++
		}
	}
	return added, nil
}

func (s *stubStore) ListSaleRecords(_ context.Context, moduleID, bucket string) ([]models.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SaleRecord
	for _, r := range s.sales {
		if r.ModuleID != moduleID {
			continue
		}
		if bucket != "" && r.Condition != bucket {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) CreateDeal(_ context.Context, item *models.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDealID++
	item.ID = s.nextDealID
	s.deals = append(s.deals, *item)
	return nil
}

func (s *stubStore) FindUnnotifiedDeal(_ context.Context, listingID string) (*models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deals {
		if d.ListingID == listingID && !d.Notified {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (s *stubStore) MarkDealNotified(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.deals {
		if d.ID == id && !d.Notified {
			s.deals[i].Notified = true
			s.deals[i].NotifiedAt = &at
		}
	}
	return nil
}

func (s *stubStore) ListDeals(_ context.Context, params repository.ListDealsParams) ([]models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Deal
	for _, d := range s.deals {
		if params.ListingID != nil && d.ListingID != *params.ListingID {
			continue
		}
		if params.Notified != nil && d.Notified != *params.Notified {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if params.Asc != nil && *params.Asc {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubStore) CountDeals(context.Context, repository.ListDealsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.deals)), nil
}

func (s *stubStore) GetWatchlistEntry(_ context.Context, moduleID string) (*models.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.watch[moduleID]; ok {
		return &e, nil
	}
	return nil, nil
}

func (s *stubStore) UpsertWatchlistEntry(_ context.Context, item *models.WatchlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watch[item.ModuleID] = *item
	return nil
}

func (s *stubStore) DeleteWatchlistEntry(_ context.Context, moduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watch, moduleID)
	return nil
}

func (s *stubStore) ListWatchlist(context.Context) ([]models.WatchlistEntry, error) {
	return nil, nil
}

func (s *stubStore) GetPreference(_ context.Context, name, fallback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.prefs[name]; ok {
		return v, nil
	}
	return fallback, nil
}

func (s *stubStore) SetPreference(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[name] = value
	return nil
}

func (s *stubStore) ListPreferences(context.Context) ([]models.Preference, error) {
	return nil, nil
}

func (s *stubStore) InsertScanRun(_ context.Context, item *models.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uint64(len(s.runs) + 1)
	s.runs = append(s.runs, *item)
	return nil
}

func (s *stubStore) UpdateScanRun(_ context.Context, item *models.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.runs {
		if r.ID == item.ID {
			s.runs[i] = *item
		}
	}
	return nil
}

func (s *stubStore) ListScanRuns(context.Context, int) ([]models.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScanRun(nil), s.runs...), nil
}

func (s *stubStore) LatestScanRun(context.Context) (*models.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil, nil
	}
	out := s.runs[len(s.runs)-1]
	return &out, nil
}

func (s *stubStore) dealCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deals)
}

func (s *stubStore) dealAt(i int) models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deals[i]
}

type stubFeed struct {
	mu       sync.Mutex
	listings []feed.Listing
	sales    map[string][]feed.Sale
	err      error
}

func (f *stubFeed) FetchListings(context.Context, []string) ([]feed.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]feed.Listing(nil), f.listings...), nil
}

func (f *stubFeed) FetchSaleHistory(_ context.Context, moduleID string) ([]feed.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.sales[moduleID], nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []notify.DealEvent
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, event notify.DealEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func saleHistory(moduleID string) map[string][]feed.Sale {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []int64{300, 290, 280, 310}
	out := make([]feed.Sale, 0, len(prices))
	for i, p := range prices {
		out = append(out, feed.Sale{
			ModuleID: moduleID,
			Price:    decimal.NewFromInt(p),
			Currency: "EUR",
			SoldAt:   base.AddDate(0, 0, i),
		})
	}
	return map[string][]feed.Sale{moduleID: out}
}

func mathsListing(price int64) feed.Listing {
	return feed.Listing{
		ListingID:    "l-1",
		ModuleID:     "m-1",
		ModuleName:   "Maths",
		Manufacturer: "Make Noise",
		HP:           20,
		Price:        decimal.NewFromInt(price),
		Currency:     "EUR",
		Condition:    "good condition, light rack rash",
		Region:       "EU",
	}
}

func newTestLedger(store *stubStore, src *stubFeed, pub *stubPublisher) *Ledger {
	return New(store, src, nil, pub,
		config.ScanConfig{Regions: []string{"All"}, Workers: 2},
		config.DealsConfig{DefaultThresholdPct: 15.0, RenotifyMarginPct: 1.0},
		zap.NewNop(),
	)
}

func TestScanDetectsAndNotifiesDeal(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	pub := &stubPublisher{}
	l := newTestLedger(store, src, pub)

	summary, err := l.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if summary.NewListings != 1 || summary.DealsFound != 1 {
		t.Fatalf("summary = %+v, want 1 new and 1 deal", summary)
	}
	if store.dealCount() != 1 {
		t.Fatalf("deals = %d, want 1", store.dealCount())
	}
	deal := store.dealAt(0)
	if !deal.Notified {
		t.Fatal("deal should be marked notified after a successful publish")
	}
	if deal.PercentBelow < 25.0 || deal.PercentBelow > 26.0 {
		t.Fatalf("percent below = %.2f, want ~25.4", deal.PercentBelow)
	}
	if pub.count() != 1 {
		t.Fatalf("published = %d, want 1", pub.count())
	}
}

func TestScanIsIdempotent(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	pub := &stubPublisher{}
	l := newTestLedger(store, src, pub)

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	summary, err := l.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if summary.NewListings != 0 || summary.UpdatedListings != 0 || summary.DealsFound != 0 {
		t.Fatalf("second pass over unchanged feed produced work: %+v", summary)
	}
	if store.dealCount() != 1 || pub.count() != 1 {
		t.Fatalf("deals = %d published = %d, want 1 and 1", store.dealCount(), pub.count())
	}
}

func TestFailedDeliveryIsTerminalMiss(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	pub := &stubPublisher{err: errors.New("smtp down")}
	l := newTestLedger(store, src, pub)

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if store.dealCount() != 1 {
		t.Fatalf("deals after failed delivery = %d, want 1", store.dealCount())
	}
	// A failed delivery never re-sends: the flag flips anyway and the miss is
	// only logged.
	if !store.dealAt(0).Notified {
		t.Fatal("deal must be marked notified even when delivery fails")
	}

	// Channel recovers, price jitters within the margin: nothing goes out.
	pub.err = nil
	src.mu.Lock()
	src.listings = []feed.Listing{mathsListing(219)}
	src.mu.Unlock()

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if store.dealCount() != 1 {
		t.Fatalf("deals = %d, want no duplicate for an insignificant change", store.dealCount())
	}
	if pub.count() != 0 {
		t.Fatalf("published = %d, want 0", pub.count())
	}
}

func TestMutedDealDeliveredAfterUnmute(t *testing.T) {
	store := newStubStore()
	store.watch["m-1"] = models.WatchlistEntry{ModuleID: "m-1", Notify: false}
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	pub := &stubPublisher{}
	l := newTestLedger(store, src, pub)

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("muted scan: %v", err)
	}
	if store.dealCount() != 1 || store.dealAt(0).Notified {
		t.Fatalf("muted deal should be recorded unnotified, got %+v", store.dealAt(0))
	}

	// Unmute and move the price: the open deal goes out instead of a new one.
	store.mu.Lock()
	store.watch["m-1"] = models.WatchlistEntry{ModuleID: "m-1", Notify: true}
	store.mu.Unlock()
	src.mu.Lock()
	src.listings = []feed.Listing{mathsListing(210)}
	src.mu.Unlock()

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("unmuted scan: %v", err)
	}
	if store.dealCount() != 1 {
		t.Fatalf("deals = %d, want the open deal re-used", store.dealCount())
	}
	if !store.dealAt(0).Notified || pub.count() != 1 {
		t.Fatalf("open deal should be delivered once after unmute, notified=%v published=%d",
			store.dealAt(0).Notified, pub.count())
	}
}

func TestRenotifyMarginSuppressesJitter(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	pub := &stubPublisher{}
	l := newTestLedger(store, src, pub)

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// 219 vs 220 moves the discount well under the 1pp margin.
	src.mu.Lock()
	src.listings = []feed.Listing{mathsListing(219)}
	src.mu.Unlock()
	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("jitter scan: %v", err)
	}
	if store.dealCount() != 1 {
		t.Fatalf("deals after jitter = %d, want 1", store.dealCount())
	}

	// A real price drop clears the margin and earns a fresh deal.
	src.mu.Lock()
	src.listings = []feed.Listing{mathsListing(180)}
	src.mu.Unlock()
	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("drop scan: %v", err)
	}
	if store.dealCount() != 2 {
		t.Fatalf("deals after real drop = %d, want 2", store.dealCount())
	}
	if pub.count() != 2 {
		t.Fatalf("published = %d, want 2", pub.count())
	}
}

func TestAbsentListingExpiresAndReappears(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{listings: []feed.Listing{mathsListing(260)}, sales: saleHistory("m-1")}
	l := newTestLedger(store, src, &stubPublisher{})

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	src.mu.Lock()
	src.listings = nil
	src.mu.Unlock()
	summary, err := l.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("empty scan: %v", err)
	}
	if summary.ExpiredListings != 1 {
		t.Fatalf("expired = %d, want 1", summary.ExpiredListings)
	}
	snap, _ := store.GetListing(context.Background(), "l-1")
	if snap == nil || snap.Active {
		t.Fatal("absent listing should be inactive")
	}

	src.mu.Lock()
	src.listings = []feed.Listing{mathsListing(260)}
	src.mu.Unlock()
	summary, err = l.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("reappearance scan: %v", err)
	}
	if summary.UpdatedListings != 1 {
		t.Fatalf("reappearance counted as updated = %d, want 1", summary.UpdatedListings)
	}
	snap, _ = store.GetListing(context.Background(), "l-1")
	if snap == nil || !snap.Active {
		t.Fatal("reappeared listing should be active again")
	}
}

func TestThresholdPreferenceOverridesConfig(t *testing.T) {
	store := newStubStore()
	// 260 is ~11.9% below the 295 average: no deal at the default 15, a deal
	// once the preference lowers the bar to 10.
	src := &stubFeed{listings: []feed.Listing{mathsListing(260)}, sales: saleHistory("m-1")}
	l := newTestLedger(store, src, &stubPublisher{})

	summary, err := l.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if summary.DealsFound != 0 {
		t.Fatalf("deals at default threshold = %d, want 0", summary.DealsFound)
	}

	if err := store.SetPreference(context.Background(), PrefThresholdPct, "10"); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	// Force re-evaluation with a one-cent move.
	src.mu.Lock()
	src.listings = []feed.Listing{mathsListing(259)}
	src.mu.Unlock()
	summary, err = l.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("scan with preference: %v", err)
	}
	if summary.DealsFound != 1 {
		t.Fatalf("deals at lowered threshold = %d, want 1", summary.DealsFound)
	}
}

func TestInvalidPreferenceAbortsCycle(t *testing.T) {
	store := newStubStore()
	store.prefs[PrefThresholdPct] = "cheap"
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	l := newTestLedger(store, src, &stubPublisher{})

	if _, err := l.RunScanCycle(context.Background()); err == nil {
		t.Fatal("expected an unparseable threshold preference to abort the cycle")
	}
	if store.dealCount() != 0 {
		t.Fatal("no deals may be recorded under a conflicting policy")
	}
	run, _ := store.LatestScanRun(context.Background())
	if run == nil || run.Error == nil {
		t.Fatal("aborted cycle should record its error on the scan run")
	}
}

func TestFeedOutageRecordsErrorAndSkipsCycle(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{err: &feed.UnavailableError{Op: "fetch listings", Err: errors.New("502")}}
	l := newTestLedger(store, src, &stubPublisher{})

	_, err := l.RunScanCycle(context.Background())
	if !feed.IsUnavailable(err) {
		t.Fatalf("err = %v, want feed unavailability", err)
	}
	run, _ := store.LatestScanRun(context.Background())
	if run == nil || run.Error == nil {
		t.Fatal("failed cycle should record its error on the scan run")
	}
}

func TestWatchlistMuteSkipsPublishButRecordsDeal(t *testing.T) {
	store := newStubStore()
	store.watch["m-1"] = models.WatchlistEntry{ModuleID: "m-1", Notify: false}
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	pub := &stubPublisher{}
	l := newTestLedger(store, src, pub)

	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if store.dealCount() != 1 {
		t.Fatalf("deals = %d, want 1", store.dealCount())
	}
	if pub.count() != 0 {
		t.Fatalf("published = %d, want 0 for a muted module", pub.count())
	}
}

func TestConcurrentScanRejected(t *testing.T) {
	store := newStubStore()
	src := &stubFeed{listings: []feed.Listing{mathsListing(220)}, sales: saleHistory("m-1")}
	l := newTestLedger(store, src, &stubPublisher{})

	l.scanMu.Lock()
	_, err := l.RunScanCycle(context.Background())
	l.scanMu.Unlock()
	if !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("err = %v, want ErrScanInProgress", err)
	}

	// The lock released, scanning proceeds normally.
	if _, err := l.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("scan after release: %v", err)
	}
}
