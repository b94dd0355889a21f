package ledger

import (
	"fmt"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position is the holder's aggregated position in one asset, folded from the
// transaction ledger at full decimal precision.
type Position struct {
	AssetID     uint            `json:"asset_id"`
	Balance     decimal.Decimal `json:"balance"`
	InvestedUSD decimal.Decimal `json:"invested_usd"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// Summary extends a Position with the valuation derived from a caller-supplied
// current price.
type Summary struct {
	Position
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
}

// position folds the asset's transactions into an aggregate. The fold runs in
// Go over decimals rather than in SQL so no precision is lost to the driver.
func (s *Service) position(tx *gorm.DB, assetID uint) (*Position, error) {
	var txns []models.Transaction
	err := tx.Where("holder_id = ? AND asset_id = ?", s.holderID, assetID).Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("could not load transactions for asset %d: %w", assetID, err)
	}

	pos := &Position{AssetID: assetID}
	boughtNet := decimal.Zero
	for _, txn := range txns {
		switch txn.Type {
		case models.TransactionTypeBuy:
			boughtNet = boughtNet.Add(txn.NetAmount)
			pos.InvestedUSD = pos.InvestedUSD.Add(txn.TotalSpentUSD)
		case models.TransactionTypeSell:
			pos.Balance = pos.Balance.Sub(txn.GrossAmount)
			if txn.RealizedPnL.Valid {
				pos.RealizedPnL = pos.RealizedPnL.Add(txn.RealizedPnL.Decimal)
			}
		}
	}
	pos.Balance = pos.Balance.Add(boughtNet)

	// An asset never bought has no defined average price.
	if boughtNet.IsPositive() {
		pos.AvgBuyPrice = pos.InvestedUSD.Div(boughtNet)
	}
	return pos, nil
}

// Position returns the holder's current position in the asset.
func (s *Service) Position(assetID uint) (*Position, error) {
	if _, err := s.findAsset(s.db, assetID); err != nil {
		return nil, err
	}
	return s.position(s.db, assetID)
}

// Summary values the position at the supplied current price and derives
// unrealized and total profit/loss.
func (s *Service) Summary(assetID uint, currentPrice decimal.Decimal) (*Summary, error) {
	if !currentPrice.IsPositive() {
		return nil, fmt.Errorf("%w: current price must be positive, got %s", ErrValidation, currentPrice)
	}

	pos, err := s.Position(assetID)
	if err != nil {
		return nil, err
	}

	value := pos.Balance.Mul(currentPrice)
	unrealized := value.Sub(pos.InvestedUSD)
	return &Summary{
		Position:      *pos,
		CurrentPrice:  currentPrice,
		CurrentValue:  value,
		UnrealizedPnL: unrealized,
		TotalPnL:      unrealized.Add(pos.RealizedPnL),
	}, nil
}
