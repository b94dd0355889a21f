package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SwingStatus is the lifecycle state of an AccumulationTrade.
type SwingStatus string

const (
	SwingStatusOpen      SwingStatus = "OPEN"
	SwingStatusClosed    SwingStatus = "CLOSED"
	SwingStatusCancelled SwingStatus = "CANCELLED"
)

// AccumulationTrade links a SELL (the swing exit) to an optional later BUY
// (the re-entry) on the same asset, to measure whether the round trip
// increased the coin count.
type AccumulationTrade struct {
	gorm.Model
	HolderID uint `gorm:"index;not null" json:"holder_id"`
	AssetID  uint `gorm:"index;not null" json:"asset_id"`

	ExitTransactionID    uint  `gorm:"index;not null" json:"exit_transaction_id"`
	ReentryTransactionID *uint `gorm:"index" json:"reentry_transaction_id"`

	OldCoinAmount   decimal.Decimal     `gorm:"type:numeric(38,18);not null" json:"old_coin_amount"`
	NewCoinAmount   decimal.NullDecimal `gorm:"type:numeric(38,18)" json:"new_coin_amount"`
	ExitPriceUSD    decimal.Decimal     `gorm:"type:numeric(38,18);not null" json:"exit_price_usd"`
	ReentryPriceUSD decimal.NullDecimal `gorm:"type:numeric(38,18)" json:"reentry_price_usd"`

	Status   SwingStatus `gorm:"type:varchar(10);not null;index" json:"status"`
	ClosedAt *time.Time  `json:"closed_at"`
	Notes    string      `json:"notes"`
}

// AccumulationDelta is the net coin-count change achieved by the round trip,
// derived from the snapshots rather than stored. Invalid until the trade is
// CLOSED.
func (t *AccumulationTrade) AccumulationDelta() decimal.NullDecimal {
	if !t.NewCoinAmount.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: t.NewCoinAmount.Decimal.Sub(t.OldCoinAmount),
		Valid:   true,
	}
}
