package ledger

import (
	"errors"
	"fmt"
	"time"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// activePeak returns the asset's active price peak, or nil when the asset has
// never been bought (nothing to track until a BUY anchors it).
func (s *Service) activePeak(tx *gorm.DB, assetID uint) (*models.PricePeak, error) {
	var peak models.PricePeak
	err := tx.Where("holder_id = ? AND asset_id = ? AND is_active = ?", s.holderID, assetID, true).
		First(&peak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load price peak for asset %d: %w", assetID, err)
	}
	return &peak, nil
}

// resetPeak overwrites the asset's peak with the buy's unit price. This is a
// hard reset, not a max operation: every BUY starts a new peak window.
func (s *Service) resetPeak(tx *gorm.DB, assetID, buyTxnID uint, price decimal.Decimal, ts time.Time) error {
	var peak models.PricePeak
	err := tx.Where("holder_id = ? AND asset_id = ?", s.holderID, assetID).First(&peak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		peak = models.PricePeak{
			HolderID:         s.holderID,
			AssetID:          assetID,
			PeakPrice:        round(price),
			PeakTimestamp:    ts,
			BuyTransactionID: buyTxnID,
			IsActive:         true,
		}
		if err := tx.Create(&peak).Error; err != nil {
			return fmt.Errorf("could not create price peak for asset %d: %w", assetID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not load price peak for asset %d: %w", assetID, err)
	}

	updates := map[string]interface{}{
		"peak_price":         round(price),
		"peak_timestamp":     ts,
		"buy_transaction_id": buyTxnID,
		"is_active":          true,
	}
	if err := tx.Model(&peak).Updates(updates).Error; err != nil {
		return fmt.Errorf("could not reset price peak for asset %d: %w", assetID, err)
	}
	return nil
}

// observePeak raises the peak to the observed price when it strictly exceeds
// the stored one. A no-op when the asset has no active peak. Never lowers.
func (s *Service) observePeak(tx *gorm.DB, assetID uint, price decimal.Decimal, ts time.Time) (*models.PricePeak, error) {
	peak, err := s.activePeak(tx, assetID)
	if err != nil || peak == nil {
		return nil, err
	}

	if price.GreaterThan(peak.PeakPrice) {
		updates := map[string]interface{}{
			"peak_price":     round(price),
			"peak_timestamp": ts,
		}
		if err := tx.Model(peak).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("could not raise price peak for asset %d: %w", assetID, err)
		}
	}
	return peak, nil
}

// Observe feeds an external price observation into the peak tracker.
func (s *Service) Observe(assetID uint, price decimal.Decimal, ts time.Time) (*models.PricePeak, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: observed price must be positive, got %s", ErrValidation, price)
	}

	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	var peak *models.PricePeak
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findAsset(tx, assetID); err != nil {
			return err
		}
		var err error
		peak, err = s.observePeak(tx, assetID, price, ts.UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	if peak != nil {
		s.logger.Debug("Observed price",
			zap.Uint("asset_id", assetID),
			zap.String("price", price.String()),
			zap.String("peak", peak.PeakPrice.String()),
		)
	}
	return peak, nil
}

// DeactivatePeak retires the asset's peak row. Reserved for administrative
// removal of an asset; normal trading flow never reaches it.
func (s *Service) DeactivatePeak(assetID uint) error {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		peak, err := s.activePeak(tx, assetID)
		if err != nil {
			return err
		}
		if peak == nil {
			return fmt.Errorf("%w: no active price peak for asset %d", ErrNotFound, assetID)
		}
		if err := tx.Model(peak).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("could not deactivate price peak for asset %d: %w", assetID, err)
		}
		return nil
	})
}
