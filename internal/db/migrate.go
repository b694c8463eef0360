package db

import (
	"mgmonitor/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.Module{},
		&models.SaleRecord{},
		&models.ListingSnapshot{},
		&models.WatchlistEntry{},
		&models.Deal{},
		&models.Preference{},
		&models.ScanRun{},
	)
}
