package repository

import (
	"context"
	"time"

	"mgmonitor/internal/models"
)

// Store is the persisted-state surface the pipeline works against. One
// implementation backed by gorm lives in repository/gorm; tests use stubs.
type Store interface {
	// Modules.
	GetModule(ctx context.Context, id string) (*models.Module, error)
	UpsertModule(ctx context.Context, item *models.Module) error
	ListModules(ctx context.Context, params ListModulesParams) ([]models.Module, error)
	CountModules(ctx context.Context, params ListModulesParams) (int64, error)

	// Listings.
	GetListing(ctx context.Context, id string) (*models.ListingSnapshot, error)
	UpsertListing(ctx context.Context, item *models.ListingSnapshot) error
	ListListings(ctx context.Context, params ListListingsParams) ([]models.ListingSnapshot, error)
	CountListings(ctx context.Context, params ListListingsParams) (int64, error)
	// MarkInactiveExcept flips every active listing whose identifier is not
	// in seenIDs to inactive and returns how many were expired.
	MarkInactiveExcept(ctx context.Context, seenIDs []string) (int64, error)

	// Sale history. Append-only; duplicates of (module, price, currency,
	// sold-at) are silently skipped.
	AppendSaleRecords(ctx context.Context, items []models.SaleRecord) (int, error)
	ListSaleRecords(ctx context.Context, moduleID string, conditionBucket string) ([]models.SaleRecord, error)

	// Deals.
	CreateDeal(ctx context.Context, item *models.Deal) error
	FindUnnotifiedDeal(ctx context.Context, listingID string) (*models.Deal, error)
	MarkDealNotified(ctx context.Context, id uint64, at time.Time) error
	ListDeals(ctx context.Context, params ListDealsParams) ([]models.Deal, error)
	CountDeals(ctx context.Context, params ListDealsParams) (int64, error)

	// Watchlist.
	GetWatchlistEntry(ctx context.Context, moduleID string) (*models.WatchlistEntry, error)
	UpsertWatchlistEntry(ctx context.Context, item *models.WatchlistEntry) error
	DeleteWatchlistEntry(ctx context.Context, moduleID string) error
	ListWatchlist(ctx context.Context) ([]models.WatchlistEntry, error)

	// Flat key-value preferences (policy and notification settings).
	GetPreference(ctx context.Context, name, fallback string) (string, error)
	SetPreference(ctx context.Context, name, value string) error
	ListPreferences(ctx context.Context) ([]models.Preference, error)

	// Scan history.
	InsertScanRun(ctx context.Context, item *models.ScanRun) error
	UpdateScanRun(ctx context.Context, item *models.ScanRun) error
	ListScanRuns(ctx context.Context, limit int) ([]models.ScanRun, error)
	LatestScanRun(ctx context.Context) (*models.ScanRun, error)
}

type ListModulesParams struct {
	Limit        int
	Offset       int
	Query        *string
	Manufacturer *string
	OrderBy      string
	Asc          *bool
}

type ListListingsParams struct {
	Limit    int
	Offset   int
	ModuleID *string
	Active   *bool
	Region   *string
	OrderBy  string
	Asc      *bool
}

type ListDealsParams struct {
	Limit     int
	Offset    int
	ModuleID  *string
	ListingID *string
	Notified  *bool
	Since     *time.Time
	OrderBy   string
	Asc       *bool
}
