package models

import (
	"time"
)

// Preference is one row of the flat key-value policy/settings store. Config
// file values seed defaults on first run; rows here override them afterwards.
type Preference struct {
	Name      string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Preference) TableName() string {
	return "preferences"
}
