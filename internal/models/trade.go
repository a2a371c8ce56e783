package models

import "gorm.io/gorm"

// Trade represents one closed deal together with the analytical fields
// derived at ingest time. The (AccountID, DealID) pair is the identity of
// a trade: the composite unique index is what makes ingestion idempotent.
// Derived fields are fixed at creation and never recomputed, since the
// broker's view of a closed deal does not change.
type Trade struct {
	gorm.Model
	AccountID uint  `gorm:"uniqueIndex:idx_account_deal;not null" json:"account_id"`
	DealID    int64 `gorm:"uniqueIndex:idx_account_deal;not null" json:"deal_id"`

	// Raw fields as reported by the broker.
	Ticket     int64   `json:"ticket"`
	Symbol     string  `gorm:"index;not null" json:"symbol"`
	Direction  string  `gorm:"not null" json:"direction"` // "LONG" or "SHORT"
	Volume     float64 `gorm:"not null" json:"volume"`
	OpenPrice  float64 `gorm:"not null" json:"open_price"`
	ClosePrice float64 `json:"close_price"`
	StopLoss   float64 `json:"stop_loss"`   // 0 means no stop was set
	TakeProfit float64 `json:"take_profit"` // 0 means no target was set
	OpenTime   int64   `gorm:"index;not null" json:"open_time"` // epoch seconds, broker-local
	CloseTime  int64   `json:"close_time"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`

	// Derived fields, computed once at ingest.
	Weekday       string   `json:"weekday"`
	Session       string   `gorm:"index" json:"session"` // ASIA/FRANKFURT/LONDON/NEWYORK
	RiskPercent   *float64 `json:"risk_percent"`
	RiskReward    *float64 `json:"risk_reward"`
	Result        string   `gorm:"index" json:"result"` // BE/SL/TP/MANUAL
	ProfitPercent *float64 `json:"profit_percent"`

	// User-editable journal fields.
	Mistakes string `json:"mistakes"`
	Note     string `json:"note"`
	Trigger  string `json:"trigger"`
	Bias     string `json:"bias"`

	// Notion mirror state.
	Mirrored     bool    `gorm:"index;default:false" json:"mirrored"`
	NotionPageID *string `json:"notion_page_id"`
}
