package ledger

import (
	"errors"
	"fmt"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) activeSellStrategy(tx *gorm.DB, assetID uint) (*models.SellStrategy, error) {
	var strat models.SellStrategy
	err := tx.Where("holder_id = ? AND asset_id = ? AND is_active = ?", s.holderID, assetID, true).
		First(&strat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load sell strategy for asset %d: %w", assetID, err)
	}
	return &strat, nil
}

func (s *Service) activeBuyStrategy(tx *gorm.DB, assetID uint) (*models.BuyStrategy, error) {
	var strat models.BuyStrategy
	err := tx.Where("holder_id = ? AND asset_id = ? AND is_active = ?", s.holderID, assetID, true).
		First(&strat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load buy strategy for asset %d: %w", assetID, err)
	}
	return &strat, nil
}

// SetSellStrategy upserts the asset's sell strategy: an existing active one is
// deactivated (kept as history) and replaced, never duplicated.
func (s *Service) SetSellStrategy(assetID uint, thresholdPercent decimal.Decimal) (*models.SellStrategy, error) {
	if !thresholdPercent.IsPositive() {
		return nil, fmt.Errorf("%w: threshold percent must be positive, got %s", ErrValidation, thresholdPercent)
	}

	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	var strat *models.SellStrategy
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findAsset(tx, assetID); err != nil {
			return err
		}

		err := tx.Model(&models.SellStrategy{}).
			Where("holder_id = ? AND asset_id = ? AND is_active = ?", s.holderID, assetID, true).
			Update("is_active", false).Error
		if err != nil {
			return fmt.Errorf("could not supersede sell strategy for asset %d: %w", assetID, err)
		}

		strat = &models.SellStrategy{
			HolderID:         s.holderID,
			AssetID:          assetID,
			ThresholdPercent: round(thresholdPercent),
			IsActive:         true,
		}
		if err := tx.Create(strat).Error; err != nil {
			return fmt.Errorf("could not create sell strategy for asset %d: %w", assetID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Set sell strategy",
		zap.Uint("asset_id", assetID),
		zap.String("threshold_percent", strat.ThresholdPercent.String()),
	)
	return strat, nil
}

// SetBuyStrategy upserts the asset's buy-the-dip strategy.
func (s *Service) SetBuyStrategy(assetID uint, dipPercent, buyAmountUSD decimal.Decimal) (*models.BuyStrategy, error) {
	if !dipPercent.IsPositive() {
		return nil, fmt.Errorf("%w: dip percent must be positive, got %s", ErrValidation, dipPercent)
	}
	if !buyAmountUSD.IsPositive() {
		return nil, fmt.Errorf("%w: buy amount must be positive, got %s", ErrValidation, buyAmountUSD)
	}

	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	var strat *models.BuyStrategy
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findAsset(tx, assetID); err != nil {
			return err
		}

		err := tx.Model(&models.BuyStrategy{}).
			Where("holder_id = ? AND asset_id = ? AND is_active = ?", s.holderID, assetID, true).
			Update("is_active", false).Error
		if err != nil {
			return fmt.Errorf("could not supersede buy strategy for asset %d: %w", assetID, err)
		}

		strat = &models.BuyStrategy{
			HolderID:     s.holderID,
			AssetID:      assetID,
			DipPercent:   round(dipPercent),
			BuyAmountUSD: round(buyAmountUSD),
			IsActive:     true,
		}
		if err := tx.Create(strat).Error; err != nil {
			return fmt.Errorf("could not create buy strategy for asset %d: %w", assetID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Set buy strategy",
		zap.Uint("asset_id", assetID),
		zap.String("dip_percent", strat.DipPercent.String()),
		zap.String("buy_amount_usd", strat.BuyAmountUSD.String()),
	)
	return strat, nil
}

// DeactivateSellStrategy soft-disables the asset's active sell strategy
// without deleting the row.
func (s *Service) DeactivateSellStrategy(assetID uint) error {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		strat, err := s.activeSellStrategy(tx, assetID)
		if err != nil {
			return err
		}
		if strat == nil {
			return fmt.Errorf("%w: no active sell strategy for asset %d", ErrNotFound, assetID)
		}
		if err := tx.Model(strat).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("could not deactivate sell strategy for asset %d: %w", assetID, err)
		}
		return nil
	})
}

// DeactivateBuyStrategy soft-disables the asset's active buy strategy without
// deleting the row.
func (s *Service) DeactivateBuyStrategy(assetID uint) error {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		strat, err := s.activeBuyStrategy(tx, assetID)
		if err != nil {
			return err
		}
		if strat == nil {
			return fmt.Errorf("%w: no active buy strategy for asset %d", ErrNotFound, assetID)
		}
		if err := tx.Model(strat).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("could not deactivate buy strategy for asset %d: %w", assetID, err)
		}
		return nil
	})
}
