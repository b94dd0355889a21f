package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType is the side of a recorded transaction.
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// FeeCurrencyUSD marks a fee denominated in USD rather than in the asset's coin.
const FeeCurrencyUSD = "USD"

// Transaction is an append-only record of a BUY or SELL event.
// Rows are never updated or deleted; corrections are new offsetting transactions.
type Transaction struct {
	gorm.Model
	HolderID   uint            `gorm:"index;not null" json:"holder_id"`
	AssetID    uint            `gorm:"index;not null" json:"asset_id"`
	ExchangeID uint            `gorm:"not null" json:"exchange_id"`
	Type       TransactionType `gorm:"type:varchar(4);not null" json:"type"`

	// GrossAmount is the coin amount of the order. NetAmount is gross minus fee
	// when the fee is coin-denominated, else equal to gross.
	GrossAmount decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"gross_amount"`
	FeeAmount   decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"fee_amount"`
	FeeCurrency string          `gorm:"type:varchar(16);not null" json:"fee_currency"`
	NetAmount   decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"net_amount"`

	UnitPriceUSD  decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"unit_price_usd"`
	TotalSpentUSD decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"total_spent_usd"`

	// RealizedPnL is only populated on SELL rows.
	RealizedPnL decimal.NullDecimal `gorm:"type:numeric(38,18)" json:"realized_pnl"`

	TransactionDate time.Time `gorm:"index;not null" json:"transaction_date"`
}
