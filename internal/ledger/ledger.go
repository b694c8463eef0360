package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"mgmonitor/internal/condition"
	"mgmonitor/internal/config"
	"mgmonitor/internal/evaluate"
	"mgmonitor/internal/feed"
	"mgmonitor/internal/models"
	"mgmonitor/internal/notify"
	"mgmonitor/internal/repository"
	"mgmonitor/internal/stats"
)

// ErrScanInProgress is returned when a cycle is requested while another one
// is still running. Overlapping cycles never run.
var ErrScanInProgress = errors.New("scan already in progress")

// Preference names that override the static config at runtime.
const (
	PrefThresholdPct   = "deals.threshold_pct"
	PrefRenotifyMargin = "deals.renotify_margin_pct"
	PrefRegions        = "scan.regions"
)

// Ledger owns the scan cycle: it reconciles the feed against the store,
// evaluates candidate listings, and records and publishes deals exactly once
// per meaningful price state.
type Ledger struct {
	repo      repository.Store
	feed      feed.Feed
	classify  condition.Classifier
	publisher notify.Publisher
	logger    *zap.Logger

	scanCfg  config.ScanConfig
	dealsCfg config.DealsConfig

	scanMu sync.Mutex
	now    func() time.Time
}

func New(
	repo repository.Store,
	source feed.Feed,
	classify condition.Classifier,
	publisher notify.Publisher,
	scanCfg config.ScanConfig,
	dealsCfg config.DealsConfig,
	logger *zap.Logger,
) *Ledger {
	if classify == nil {
		classify = condition.Default()
	}
	return &Ledger{
		repo:      repo,
		feed:      source,
		classify:  classify,
		publisher: publisher,
		logger:    logger,
		scanCfg:   scanCfg,
		dealsCfg:  dealsCfg,
		now:       time.Now,
	}
}

// ScanSummary is the in-memory result of one cycle, mirrored into a ScanRun
// row.
type ScanSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	ListingsScanned int
	NewListings     int
	UpdatedListings int
	ExpiredListings int
	ListingsSkipped int
	DealsFound      int
}

// scanPolicy is the effective global policy for one cycle, resolved from
// config defaults and runtime preferences at cycle start.
type scanPolicy struct {
	global evaluate.GlobalPolicy
	// renotifyMargin suppresses a fresh deal when the new discount is within
	// this many percentage points of the last notified one.
	renotifyMargin float64
}

// candidate is one listing that needs (re-)evaluation this cycle, grouped by
// module so sale history is fetched once per module.
type candidate struct {
	listing models.ListingSnapshot
	module  models.Module
}

// RunScanCycle executes one full scan: fetch, reconcile, expire, evaluate,
// publish. At most one cycle runs at a time; a second caller gets
// ErrScanInProgress immediately. A failing listing is skipped and counted,
// never fatal; a failing feed aborts the cycle and surfaces in the ScanRun
// row.
func (l *Ledger) RunScanCycle(ctx context.Context) (*ScanSummary, error) {
	if !l.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer l.scanMu.Unlock()

	summary := &ScanSummary{StartedAt: l.now()}
	run := &models.ScanRun{StartedAt: summary.StartedAt}
	if err := l.repo.InsertScanRun(ctx, run); err != nil {
		l.logger.Warn("scan run row not recorded", zap.Error(err))
	}

	policy, err := l.loadPolicy(ctx)
	if err != nil {
		return l.finish(ctx, run, summary, fmt.Errorf("policy conflict: %w", err))
	}

	batch, err := l.feed.FetchListings(ctx, policy.global.Regions)
	if err != nil {
		return l.finish(ctx, run, summary, err)
	}
	summary.ListingsScanned = len(batch)

	seenIDs, groups := l.reconcile(ctx, batch, summary)

	expired, err := l.repo.MarkInactiveExcept(ctx, seenIDs)
	if err != nil {
		l.logger.Warn("expiring absent listings failed", zap.Error(err))
	}
	summary.ExpiredListings = int(expired)

	l.evaluateGroups(ctx, groups, policy, summary)

	return l.finish(ctx, run, summary, nil)
}

func (l *Ledger) finish(ctx context.Context, run *models.ScanRun, summary *ScanSummary, scanErr error) (*ScanSummary, error) {
	summary.FinishedAt = l.now()
	run.FinishedAt = &summary.FinishedAt
	run.ListingsScanned = summary.ListingsScanned
	run.NewListings = summary.NewListings
	run.UpdatedListings = summary.UpdatedListings
	run.ExpiredListings = summary.ExpiredListings
	run.ListingsSkipped = summary.ListingsSkipped
	run.DealsFound = summary.DealsFound
	if scanErr != nil {
		msg := scanErr.Error()
		run.Error = &msg
	}
	if run.ID != 0 {
		if err := l.repo.UpdateScanRun(ctx, run); err != nil {
			l.logger.Warn("scan run row not updated", zap.Error(err))
		}
	}
	if scanErr != nil {
		l.logger.Error("scan cycle failed", zap.Error(scanErr))
		return summary, scanErr
	}
	l.logger.Info("scan cycle finished",
		zap.Int("scanned", summary.ListingsScanned),
		zap.Int("new", summary.NewListings),
		zap.Int("updated", summary.UpdatedListings),
		zap.Int("expired", summary.ExpiredListings),
		zap.Int("skipped", summary.ListingsSkipped),
		zap.Int("deals", summary.DealsFound),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// loadPolicy resolves the cycle's global policy. Config supplies defaults;
// preferences override them. A preference that cannot be parsed aborts the
// cycle rather than silently scanning with the wrong threshold.
func (l *Ledger) loadPolicy(ctx context.Context) (scanPolicy, error) {
	p := scanPolicy{
		global: evaluate.GlobalPolicy{
			ThresholdPct: l.dealsCfg.DefaultThresholdPct,
			Regions:      l.scanCfg.Regions,
		},
		renotifyMargin: l.dealsCfg.RenotifyMarginPct,
	}

	raw, err := l.repo.GetPreference(ctx, PrefThresholdPct, "")
	if err != nil {
		return p, err
	}
	if raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("%s = %q: %w", PrefThresholdPct, raw, err)
		}
		p.global.ThresholdPct = v
	}

	raw, err = l.repo.GetPreference(ctx, PrefRenotifyMargin, "")
	if err != nil {
		return p, err
	}
	if raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("%s = %q: %w", PrefRenotifyMargin, raw, err)
		}
		p.renotifyMargin = v
	}

	raw, err = l.repo.GetPreference(ctx, PrefRegions, "")
	if err != nil {
		return p, err
	}
	if raw != "" {
		var regions []string
		for _, r := range strings.Split(raw, ",") {
			if r = strings.TrimSpace(r); r != "" {
				regions = append(regions, r)
			}
		}
		p.global.Regions = regions
	}
	return p, nil
}

// reconcile syncs a feed batch into the store and returns the seen listing
// identifiers plus the candidates needing evaluation, grouped by module. A
// listing is a candidate when it is new, reappeared after going inactive, or
// its price or condition bucket changed since the last cycle.
func (l *Ledger) reconcile(ctx context.Context, batch []feed.Listing, summary *ScanSummary) ([]string, map[string][]candidate) {
	seenIDs := make([]string, 0, len(batch))
	groups := make(map[string][]candidate)

	for _, item := range batch {
		if item.ListingID == "" || item.ModuleID == "" {
			summary.ListingsSkipped++
			continue
		}
		module := models.Module{
			ID:           item.ModuleID,
			Name:         item.ModuleName,
			Manufacturer: item.Manufacturer,
			HP:           item.HP,
			Type:         item.ModuleType,
		}
		if err := l.repo.UpsertModule(ctx, &module); err != nil {
			l.logger.Warn("module upsert failed",
				zap.String("module_id", item.ModuleID),
				zap.Error(err),
			)
			summary.ListingsSkipped++
			continue
		}

		bucket := l.classify(item.Condition)
		existing, err := l.repo.GetListing(ctx, item.ListingID)
		if err != nil {
			l.logger.Warn("listing lookup failed",
				zap.String("listing_id", item.ListingID),
				zap.Error(err),
			)
			summary.ListingsSkipped++
			continue
		}

		snapshot := models.ListingSnapshot{
			ID:              item.ListingID,
			ModuleID:        item.ModuleID,
			Price:           item.Price,
			Currency:        item.Currency,
			ConditionText:   item.Condition,
			ConditionBucket: string(bucket),
			Seller:          item.Seller,
			Region:          item.Region,
			URL:             item.URL,
			ListedAt:        item.ListedAt,
			Active:          true,
			LastSeenAt:      l.now(),
		}
		if len(item.Raw) > 0 {
			snapshot.RawJSON = datatypes.JSON(item.Raw)
		}

		needsEval := false
		switch {
		case existing == nil:
			summary.NewListings++
			needsEval = true
		case !existing.Active:
			// Reappeared after expiring; treat like a fresh sighting.
			summary.UpdatedListings++
			needsEval = true
		case !existing.Price.Equal(item.Price) || existing.ConditionBucket != string(bucket):
			summary.UpdatedListings++
			needsEval = true
		}

		if err := l.repo.UpsertListing(ctx, &snapshot); err != nil {
			l.logger.Warn("listing upsert failed",
				zap.String("listing_id", item.ListingID),
				zap.Error(err),
			)
			summary.ListingsSkipped++
			continue
		}
		seenIDs = append(seenIDs, item.ListingID)

		if needsEval {
			groups[item.ModuleID] = append(groups[item.ModuleID], candidate{
				listing: snapshot,
				module:  module,
			})
		}
	}
	return seenIDs, groups
}

// evaluateGroups fans module groups out over a bounded worker pool. Each
// group refreshes the module's sale history once and evaluates every
// candidate against it.
func (l *Ledger) evaluateGroups(ctx context.Context, groups map[string][]candidate, policy scanPolicy, summary *ScanSummary) {
	if len(groups) == 0 {
		return
	}
	workers := l.scanCfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	work := make(chan []candidate)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range work {
				deals, skipped := l.evaluateModule(ctx, group, policy)
				mu.Lock()
				summary.DealsFound += deals
				summary.ListingsSkipped += skipped
				mu.Unlock()
			}
		}()
	}
	for _, group := range groups {
		work <- group
	}
	close(work)
	wg.Wait()
}

func (l *Ledger) evaluateModule(ctx context.Context, group []candidate, policy scanPolicy) (deals, skipped int) {
	moduleID := group[0].module.ID

	records, err := l.refreshSaleHistory(ctx, moduleID)
	if err != nil {
		l.logger.Warn("sale history unavailable, deferring module",
			zap.String("module_id", moduleID),
			zap.Error(err),
		)
		return 0, len(group)
	}
	overall := stats.Compute(records)

	entry, err := l.repo.GetWatchlistEntry(ctx, moduleID)
	if err != nil {
		l.logger.Warn("watchlist lookup failed",
			zap.String("module_id", moduleID),
			zap.Error(err),
		)
		return 0, len(group)
	}
	effective := evaluate.Resolve(policy.global, entry)
	muted := entry != nil && !entry.Notify

	for _, c := range group {
		byCondition := stats.ComputeFiltered(records, condition.Bucket(c.listing.ConditionBucket))
		verdict := evaluate.Evaluate(c.listing, overall, byCondition, effective)
		if !verdict.IsDeal {
			if verdict.Reason != "" {
				l.logger.Debug("listing not a deal",
					zap.String("listing_id", c.listing.ID),
					zap.String("reason", verdict.Reason),
				)
			}
			continue
		}
		created, err := l.recordDeal(ctx, c, verdict, overall, policy.renotifyMargin, muted)
		if err != nil {
			l.logger.Warn("deal not recorded",
				zap.String("listing_id", c.listing.ID),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if created {
			deals++
		}
	}
	return deals, skipped
}

func (l *Ledger) refreshSaleHistory(ctx context.Context, moduleID string) ([]models.SaleRecord, error) {
	sales, err := l.feed.FetchSaleHistory(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if len(sales) > 0 {
		items := make([]models.SaleRecord, 0, len(sales))
		for _, s := range sales {
			items = append(items, models.SaleRecord{
				ModuleID:  moduleID,
				Price:     s.Price,
				Currency:  s.Currency,
				Condition: string(l.classify(s.Condition)),
				SoldAt:    s.SoldAt,
			})
		}
		if _, err := l.repo.AppendSaleRecords(ctx, items); err != nil {
			return nil, err
		}
	}
	return l.repo.ListSaleRecords(ctx, moduleID, "")
}

// recordDeal applies the dedup rules, then creates and publishes the deal.
// Returns true when a new deal row was created this cycle.
//
// Rules, in order: an existing unnotified deal for the listing is re-used
// (delivered now if the module is no longer muted, no new row); a prior deal
// whose discount is within the renotify margin of the new one suppresses the
// event entirely.
func (l *Ledger) recordDeal(ctx context.Context, c candidate, verdict evaluate.Verdict, overall stats.Stats, margin float64, muted bool) (bool, error) {
	open, err := l.repo.FindUnnotifiedDeal(ctx, c.listing.ID)
	if err != nil {
		return false, err
	}
	if open != nil {
		if !muted {
			l.publish(ctx, *open, c, overall)
		}
		return false, nil
	}

	last, err := l.latestDeal(ctx, c.listing.ID)
	if err != nil {
		return false, err
	}
	if last != nil && math.Abs(last.PercentBelow-verdict.PercentBelow) <= margin {
		l.logger.Debug("deal within renotify margin, suppressed",
			zap.String("listing_id", c.listing.ID),
			zap.Float64("previous_pct", last.PercentBelow),
			zap.Float64("current_pct", verdict.PercentBelow),
		)
		return false, nil
	}

	deal := models.Deal{
		ListingID:       c.listing.ID,
		BasisPrice:      verdict.BasisPrice,
		PriceDifference: verdict.BasisPrice.Sub(c.listing.Price),
		PercentBelow:    verdict.PercentBelow,
		ConditionBasis:  string(verdict.ConditionBasis),
		SampleSize:      verdict.SampleSize,
		DetectedAt:      l.now(),
	}
	if err := l.repo.CreateDeal(ctx, &deal); err != nil {
		return false, err
	}
	l.logger.Info("deal detected",
		zap.String("listing_id", c.listing.ID),
		zap.String("module", c.module.Name),
		zap.Float64("percent_below", verdict.PercentBelow),
		zap.Int("sample_size", verdict.SampleSize),
	)
	if !muted {
		l.publish(ctx, deal, c, overall)
	}
	return true, nil
}

func (l *Ledger) latestDeal(ctx context.Context, listingID string) (*models.Deal, error) {
	desc := false
	items, err := l.repo.ListDeals(ctx, repository.ListDealsParams{
		ListingID: &listingID,
		Limit:     1,
		OrderBy:   "detected_at",
		Asc:       &desc,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// publish hands the deal to the dispatcher and flips it to notified. The
// flag flips even when dispatch fails: a failed delivery is a logged miss,
// never grounds for re-sending the same deal and storming the channels.
func (l *Ledger) publish(ctx context.Context, deal models.Deal, c candidate, overall stats.Stats) {
	if l.publisher == nil {
		return
	}
	event := notify.NewDealEvent(deal, c.listing, c.module, overall)
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Warn("deal delivery failed",
			zap.String("listing_id", c.listing.ID),
			zap.Uint64("deal_id", deal.ID),
			zap.Error(err),
		)
	}
	if err := l.repo.MarkDealNotified(ctx, deal.ID, l.now()); err != nil {
		l.logger.Warn("deal notified flag not persisted",
			zap.Uint64("deal_id", deal.ID),
			zap.Error(err),
		)
	}
}
