package models

import (
	"time"
)

// Module is one monitored piece of equipment, keyed by its marketplace
// identifier. Rows are created on first sighting and never deleted.
type Module struct {
	ID           string `gorm:"primaryKey;type:text"`
	Name         string `gorm:"type:text;not null"`
	Manufacturer string `gorm:"type:text"`
	HP           int    `gorm:"not null;default:0"`
	Type         string `gorm:"type:text"`
	Description  string `gorm:"type:text"`

	FirstSeenAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Module) TableName() string {
	return "modules"
}
