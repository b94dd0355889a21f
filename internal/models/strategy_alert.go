package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StrategyType tells which kind of strategy produced an alert.
type StrategyType string

const (
	StrategyTypeBuy  StrategyType = "BUY"
	StrategyTypeSell StrategyType = "SELL"
)

// AlertStatus is the lifecycle state of a StrategyAlert.
type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "PENDING"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusExecuted     AlertStatus = "EXECUTED"
	AlertStatusDismissed    AlertStatus = "DISMISSED"
)

// StrategyAlert is a triggered opportunity. ReferencePrice snapshots the value
// the threshold was applied to: the average buy price for SELL alerts, the
// tracked peak for BUY alerts.
type StrategyAlert struct {
	gorm.Model
	HolderID         uint            `gorm:"index;not null" json:"holder_id"`
	AssetID          uint            `gorm:"index;not null" json:"asset_id"`
	StrategyType     StrategyType    `gorm:"type:varchar(4);not null" json:"strategy_type"`
	TriggerPrice     decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"trigger_price"`
	ThresholdPercent decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"threshold_percent"`
	ReferencePrice   decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"reference_price"`
	Status           AlertStatus     `gorm:"type:varchar(12);not null;index" json:"status"`
	AcknowledgedAt   *time.Time      `json:"acknowledged_at"`
	ExecutedAt       *time.Time      `json:"executed_at"`
}
