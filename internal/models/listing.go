package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ListingSnapshot is the current persisted state of one marketplace offer,
// keyed by the marketplace listing identifier. Updated in place while the
// listing stays visible; flipped inactive when it drops out of a feed batch.
// Never hard-deleted so deal history stays auditable.
type ListingSnapshot struct {
	ID       string `gorm:"primaryKey;type:text"`
	ModuleID string `gorm:"type:text;not null;index"`

	Price    decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Currency string          `gorm:"type:varchar(10);not null"`

	// ConditionText is the seller's free-text description; ConditionBucket is
	// the classifier's closed-enum mapping of it.
	ConditionText   string `gorm:"type:text"`
	ConditionBucket string `gorm:"type:varchar(20);index"`

	Seller string `gorm:"type:text"`
	Region string `gorm:"type:varchar(50);index"`
	URL    string `gorm:"type:text"`

	ListedAt   *time.Time `gorm:"type:timestamptz"`
	Active     bool       `gorm:"not null;default:true;index"`
	LastSeenAt time.Time  `gorm:"type:timestamptz;not null"`

	RawJSON datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ListingSnapshot) TableName() string {
	return "listings"
}
