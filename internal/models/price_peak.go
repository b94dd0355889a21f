package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePeak tracks the highest observed price for an asset since its most
// recent BUY. One row per asset; every BUY overwrites it with the BUY's unit
// price (a hard reset, not a max), and price observations between BUYs may
// only raise it.
type PricePeak struct {
	gorm.Model
	HolderID         uint            `gorm:"index;not null" json:"holder_id"`
	AssetID          uint            `gorm:"uniqueIndex;not null" json:"asset_id"`
	PeakPrice        decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"peak_price"`
	PeakTimestamp    time.Time       `gorm:"not null" json:"peak_timestamp"`
	BuyTransactionID uint            `gorm:"not null" json:"buy_transaction_id"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
}
