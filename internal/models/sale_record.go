package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleRecord is one completed historical sale for a module. Append-only:
// rows are never updated or deleted, statistics are computed over the
// population as stored.
type SaleRecord struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ModuleID string `gorm:"type:text;not null;index"`

	Price     decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Currency  string          `gorm:"type:varchar(10);not null"`
	Condition string          `gorm:"type:varchar(20);index"`
	SoldAt    time.Time       `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (SaleRecord) TableName() string {
	return "sale_records"
}
