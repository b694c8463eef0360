package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchlistEntry is the per-module policy override. ThresholdPct nil means
// "use the global default threshold". MaxPrice is an absolute ceiling checked
// independently of the percentage threshold.
type WatchlistEntry struct {
	ModuleID string `gorm:"primaryKey;type:text"`

	ThresholdPct     *float64         `gorm:"type:numeric(10,4)"`
	MaxPrice         *decimal.Decimal `gorm:"type:numeric(20,10)"`
	MaxPriceCurrency string           `gorm:"type:varchar(10)"`
	Notify           bool             `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (WatchlistEntry) TableName() string {
	return "watchlist"
}
