package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SellStrategy notifies the holder when the price gains ThresholdPercent over
// the average buy price. At most one active row per asset; superseded rows are
// kept deactivated as an audit trail of past thresholds.
type SellStrategy struct {
	gorm.Model
	HolderID         uint            `gorm:"index;not null" json:"holder_id"`
	AssetID          uint            `gorm:"index;not null" json:"asset_id"`
	ThresholdPercent decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"threshold_percent"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
}

// BuyStrategy notifies the holder when the price dips DipPercent below the
// tracked peak, suggesting a re-entry of BuyAmountUSD. At most one active row
// per asset.
type BuyStrategy struct {
	gorm.Model
	HolderID     uint            `gorm:"index;not null" json:"holder_id"`
	AssetID      uint            `gorm:"index;not null" json:"asset_id"`
	DipPercent   decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"dip_percent"`
	BuyAmountUSD decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"buy_amount_usd"`
	IsActive     bool            `gorm:"default:true" json:"is_active"`
}
