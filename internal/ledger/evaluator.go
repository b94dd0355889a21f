package ledger

import (
	"fmt"
	"time"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Opportunity is a detected strategy condition: the supplied price crossed the
// threshold derived from the reference price (average buy price for sell
// opportunities, tracked peak for buy opportunities).
type Opportunity struct {
	AssetID          uint                `json:"asset_id"`
	Type             models.StrategyType `json:"type"`
	TriggerPrice     decimal.Decimal     `json:"trigger_price"`
	ThresholdPercent decimal.Decimal     `json:"threshold_percent"`
	ReferencePrice   decimal.Decimal     `json:"reference_price"`
}

// checkSell evaluates the active sell strategy against the supplied price.
// Pure read: no memory of prior evaluations, dedup belongs to the alert ledger.
func (s *Service) checkSell(tx *gorm.DB, assetID uint, price decimal.Decimal) (*Opportunity, error) {
	strat, err := s.activeSellStrategy(tx, assetID)
	if err != nil || strat == nil {
		return nil, err
	}

	pos, err := s.position(tx, assetID)
	if err != nil {
		return nil, err
	}
	// Zero net holdings means no meaningful average price; skip.
	if !pos.AvgBuyPrice.IsPositive() {
		return nil, nil
	}

	target := pos.AvgBuyPrice.Mul(hundred.Add(strat.ThresholdPercent)).Div(hundred)
	if price.LessThan(target) {
		return nil, nil
	}

	return &Opportunity{
		AssetID:          assetID,
		Type:             models.StrategyTypeSell,
		TriggerPrice:     price,
		ThresholdPercent: strat.ThresholdPercent,
		ReferencePrice:   pos.AvgBuyPrice,
	}, nil
}

// checkBuy evaluates the active buy-the-dip strategy against the supplied
// price and the tracked peak.
func (s *Service) checkBuy(tx *gorm.DB, assetID uint, price decimal.Decimal) (*Opportunity, error) {
	strat, err := s.activeBuyStrategy(tx, assetID)
	if err != nil || strat == nil {
		return nil, err
	}

	peak, err := s.activePeak(tx, assetID)
	if err != nil || peak == nil {
		return nil, err
	}

	target := peak.PeakPrice.Mul(hundred.Sub(strat.DipPercent)).Div(hundred)
	if price.GreaterThan(target) {
		return nil, nil
	}

	return &Opportunity{
		AssetID:          assetID,
		Type:             models.StrategyTypeBuy,
		TriggerPrice:     price,
		ThresholdPercent: strat.DipPercent,
		ReferencePrice:   peak.PeakPrice,
	}, nil
}

// CheckSellOpportunity reports whether the supplied price satisfies the
// asset's active sell strategy. Returns nil when nothing fires.
func (s *Service) CheckSellOpportunity(assetID uint, price decimal.Decimal) (*Opportunity, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: current price must be positive, got %s", ErrValidation, price)
	}
	if _, err := s.findAsset(s.db, assetID); err != nil {
		return nil, err
	}
	return s.checkSell(s.db, assetID, price)
}

// CheckBuyOpportunity reports whether the supplied price satisfies the asset's
// active buy strategy given the current peak. Returns nil when nothing fires.
func (s *Service) CheckBuyOpportunity(assetID uint, price decimal.Decimal) (*Opportunity, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: current price must be positive, got %s", ErrValidation, price)
	}
	if _, err := s.findAsset(s.db, assetID); err != nil {
		return nil, err
	}
	return s.checkBuy(s.db, assetID, price)
}

// ObservePrice is the entry point for an external price tick: it advances the
// peak tracker, evaluates both strategies and raises alerts for whatever
// fired. Returns the newly created alerts; triggers suppressed by an existing
// pending alert are not repeated.
func (s *Service) ObservePrice(assetID uint, price decimal.Decimal, ts time.Time) ([]models.StrategyAlert, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: observed price must be positive, got %s", ErrValidation, price)
	}

	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	var raised []models.StrategyAlert
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findAsset(tx, assetID); err != nil {
			return err
		}

		if _, err := s.observePeak(tx, assetID, price, ts.UTC()); err != nil {
			return err
		}

		for _, check := range []func(*gorm.DB, uint, decimal.Decimal) (*Opportunity, error){s.checkSell, s.checkBuy} {
			opp, err := check(tx, assetID, price)
			if err != nil {
				return err
			}
			if opp == nil {
				continue
			}
			alert, created, err := s.raiseAlert(tx, opp)
			if err != nil {
				return err
			}
			if created {
				raised = append(raised, *alert)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, alert := range raised {
		s.logger.Info("Alert raised",
			zap.Uint("alert_id", alert.ID),
			zap.Uint("asset_id", alert.AssetID),
			zap.String("strategy_type", string(alert.StrategyType)),
			zap.String("trigger_price", alert.TriggerPrice.String()),
			zap.String("reference_price", alert.ReferencePrice.String()),
		)
	}
	return raised, nil
}
