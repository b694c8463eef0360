package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mgmonitor/internal/models"
	"mgmonitor/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Modules ----------------------------------------------------------------

func (s *Store) GetModule(ctx context.Context, id string) (*models.Module, error) {
	if s == nil || s.db == nil || strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var item models.Module
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertModule(ctx context.Context, item *models.Module) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		// Description is deliberately not overwritten; the feed never carries
		// one and an enriched value should survive re-sync.
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"manufacturer",
			"hp",
			"type",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListModules(ctx context.Context, params repository.ListModulesParams) ([]models.Module, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.moduleQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "name")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Module
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountModules(ctx context.Context, params repository.ListModulesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.moduleQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) moduleQuery(ctx context.Context, params repository.ListModulesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Module{})
	if params.Query != nil && strings.TrimSpace(*params.Query) != "" {
		pattern := "%" + strings.TrimSpace(*params.Query) + "%"
		query = query.Where("name LIKE ? OR manufacturer LIKE ?", pattern, pattern)
	}
	if params.Manufacturer != nil && strings.TrimSpace(*params.Manufacturer) != "" {
		query = query.Where("manufacturer = ?", strings.TrimSpace(*params.Manufacturer))
	}
	return query
}

// --- Listings ---------------------------------------------------------------

func (s *Store) GetListing(ctx context.Context, id string) (*models.ListingSnapshot, error) {
	if s == nil || s.db == nil || strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var item models.ListingSnapshot
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertListing(ctx context.Context, item *models.ListingSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"module_id",
			"price",
			"currency",
			"condition_text",
			"condition_bucket",
			"seller",
			"region",
			"url",
			"listed_at",
			"active",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListListings(ctx context.Context, params repository.ListListingsParams) ([]models.ListingSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.listingQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "last_seen_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.ListingSnapshot
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.listingQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) listingQuery(ctx context.Context, params repository.ListListingsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ListingSnapshot{})
	if params.ModuleID != nil && strings.TrimSpace(*params.ModuleID) != "" {
		query = query.Where("module_id = ?", strings.TrimSpace(*params.ModuleID))
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Region != nil && strings.TrimSpace(*params.Region) != "" {
		query = query.Where("region = ?", strings.TrimSpace(*params.Region))
	}
	return query
}

func (s *Store) MarkInactiveExcept(ctx context.Context, seenIDs []string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.ListingSnapshot{}).
		Where("active = ?", true)
	ids := cleanStrings(seenIDs)
	if len(ids) > 0 {
		query = query.Where("id NOT IN ?", ids)
	}
	res := query.Updates(map[string]any{
		"active":     false,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected, res.Error
}

// --- Sale history -----------------------------------------------------------

func (s *Store) AppendSaleRecords(ctx context.Context, items []models.SaleRecord) (int, error) {
	if s == nil || s.db == nil || len(items) == 0 {
		return 0, nil
	}
	inserted := 0
	for i := range items {
		item := items[i]
		if strings.TrimSpace(item.ModuleID) == "" {
			continue
		}
		var existing int64
		err := s.db.WithContext(ctx).
			Model(&models.SaleRecord{}).
			Where("module_id = ? AND price = ? AND currency = ? AND sold_at = ?",
				item.ModuleID, item.Price, item.Currency, item.SoldAt).
			Count(&existing).Error
		if err != nil {
			return inserted, err
		}
		if existing > 0 {
			continue
		}
		if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (s *Store) ListSaleRecords(ctx context.Context, moduleID string, conditionBucket string) ([]models.SaleRecord, error) {
	if s == nil || s.db == nil || strings.TrimSpace(moduleID) == "" {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.SaleRecord{}).
		Where("module_id = ?", strings.TrimSpace(moduleID))
	if strings.TrimSpace(conditionBucket) != "" {
		query = query.Where("condition = ?", strings.TrimSpace(conditionBucket))
	}
	var items []models.SaleRecord
	if err := query.Order("sold_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Deals ------------------------------------------------------------------

func (s *Store) CreateDeal(ctx context.Context, item *models.Deal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) FindUnnotifiedDeal(ctx context.Context, listingID string) (*models.Deal, error) {
	if s == nil || s.db == nil || strings.TrimSpace(listingID) == "" {
		return nil, nil
	}
	var item models.Deal
	err := s.db.WithContext(ctx).
		Where("listing_id = ? AND notified = ?", strings.TrimSpace(listingID), false).
		Order("detected_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) MarkDealNotified(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	// Guarded by notified=false so the flag flips at most once.
	return s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("id = ? AND notified = ?", id, false).
		Updates(map[string]any{
			"notified":    true,
			"notified_at": at,
		}).Error
}

func (s *Store) ListDeals(ctx context.Context, params repository.ListDealsParams) ([]models.Deal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.dealQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "detected_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Deal
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDeals(ctx context.Context, params repository.ListDealsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.dealQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) dealQuery(ctx context.Context, params repository.ListDealsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Deal{})
	if params.ListingID != nil && strings.TrimSpace(*params.ListingID) != "" {
		query = query.Where("deals.listing_id = ?", strings.TrimSpace(*params.ListingID))
	}
	if params.ModuleID != nil && strings.TrimSpace(*params.ModuleID) != "" {
		query = query.
			Joins("JOIN listings ON listings.id = deals.listing_id").
			Where("listings.module_id = ?", strings.TrimSpace(*params.ModuleID))
	}
	if params.Notified != nil {
		query = query.Where("deals.notified = ?", *params.Notified)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("deals.detected_at >= ?", *params.Since)
	}
	return query
}

// --- Watchlist --------------------------------------------------------------

func (s *Store) GetWatchlistEntry(ctx context.Context, moduleID string) (*models.WatchlistEntry, error) {
	if s == nil || s.db == nil || strings.TrimSpace(moduleID) == "" {
		return nil, nil
	}
	var item models.WatchlistEntry
	err := s.db.WithContext(ctx).First(&item, "module_id = ?", strings.TrimSpace(moduleID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertWatchlistEntry(ctx context.Context, item *models.WatchlistEntry) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ModuleID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"threshold_pct",
			"max_price",
			"max_price_currency",
			"notify",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) DeleteWatchlistEntry(ctx context.Context, moduleID string) error {
	if s == nil || s.db == nil || strings.TrimSpace(moduleID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Delete(&models.WatchlistEntry{}, "module_id = ?", strings.TrimSpace(moduleID)).Error
}

func (s *Store) ListWatchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.WatchlistEntry
	if err := s.db.WithContext(ctx).
		Model(&models.WatchlistEntry{}).
		Order("module_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Preferences ------------------------------------------------------------

func (s *Store) GetPreference(ctx context.Context, name, fallback string) (string, error) {
	if s == nil || s.db == nil || strings.TrimSpace(name) == "" {
		return fallback, nil
	}
	var item models.Preference
	err := s.db.WithContext(ctx).First(&item, "name = ?", strings.TrimSpace(name)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return item.Value, nil
}

func (s *Store) SetPreference(ctx context.Context, name, value string) error {
	if s == nil || s.db == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	item := models.Preference{Name: strings.TrimSpace(name), Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
}

func (s *Store) ListPreferences(ctx context.Context) ([]models.Preference, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Preference
	if err := s.db.WithContext(ctx).
		Model(&models.Preference{}).
		Order("name asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Scan history -----------------------------------------------------------

func (s *Store) InsertScanRun(ctx context.Context, item *models.ScanRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateScanRun(ctx context.Context, item *models.ScanRun) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListScanRuns(ctx context.Context, limit int) ([]models.ScanRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ScanRun
	if err := s.db.WithContext(ctx).
		Model(&models.ScanRun{}).
		Order("started_at desc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LatestScanRun(ctx context.Context) (*models.ScanRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ScanRun
	err := s.db.WithContext(ctx).Order("started_at desc").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
