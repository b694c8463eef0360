package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal is a materialized detection result. The price basis and percentage are
// a point-in-time snapshot of the sale population at detection; they are not
// recomputed when new sales arrive. Immutable after creation except for the
// Notified flag, which flips false to true exactly once.
type Deal struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ListingID string `gorm:"type:text;not null;index"`

	BasisPrice      decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	PriceDifference decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	PercentBelow    float64         `gorm:"not null"`

	// ConditionBasis records which sale sub-population formed the basis:
	// a condition bucket when the condition-aware basis was available,
	// empty when the module-wide average was used.
	ConditionBasis string `gorm:"type:varchar(20)"`
	SampleSize     int    `gorm:"not null"`

	DetectedAt time.Time `gorm:"type:timestamptz;not null;index"`
	Notified   bool      `gorm:"not null;default:false;index"`
	NotifiedAt *time.Time `gorm:"type:timestamptz"`
}

func (Deal) TableName() string {
	return "deals"
}
