package models

import (
	"time"
)

// ScanRun is the persisted summary of one scan cycle. Skipped counts rising
// across consecutive rows is the user-visible signal that the feed or store
// is unhealthy; the loop itself never stops on a failed cycle.
type ScanRun struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null;index"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`

	ListingsScanned int `gorm:"not null;default:0"`
	NewListings     int `gorm:"not null;default:0"`
	UpdatedListings int `gorm:"not null;default:0"`
	ExpiredListings int `gorm:"not null;default:0"`
	ListingsSkipped int `gorm:"not null;default:0"`
	DealsFound      int `gorm:"not null;default:0"`

	Error *string `gorm:"type:text"`
}

func (ScanRun) TableName() string {
	return "scan_runs"
}
