package models

import (
	"time"

	"gorm.io/gorm"
)

// Account represents one MT5 trading account tracked by the journal.
// The snapshot fields are overwritten wholesale on every sync; the last
// sync always wins.
type Account struct {
	gorm.Model
	MT5Login             string `gorm:"uniqueIndex;not null"`
	MT5Server            string `gorm:"not null"`
	MT5PasswordEncrypted string `gorm:"not null"`
	AccountName          string

	// Snapshot from the last successful sync.
	Balance      float64
	Equity       float64
	Margin       float64
	MarginFree   float64
	Profit       float64
	Currency     string
	Leverage     int
	LastSyncedAt *time.Time

	IsActive bool `gorm:"default:true"`

	Trades []Trade `gorm:"constraint:OnDelete:CASCADE"`
}
