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

func (s *Service) findSwing(tx *gorm.DB, tradeID uint) (*models.AccumulationTrade, error) {
	var trade models.AccumulationTrade
	err := tx.Where("holder_id = ?", s.holderID).First(&trade, tradeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: accumulation trade %d", ErrNotFound, tradeID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load accumulation trade %d: %w", tradeID, err)
	}
	return &trade, nil
}

// OpenSwing marks an existing SELL transaction as the exit of a swing trade.
// The exit's gross amount and unit price are snapshotted; a SELL already
// referenced by an OPEN or CLOSED trade cannot be reused (a CANCELLED trade
// does not block).
func (s *Service) OpenSwing(exitTxnID uint, notes string) (*models.AccumulationTrade, error) {
	exit, err := s.findTransaction(s.db, exitTxnID)
	if err != nil {
		return nil, err
	}

	lock := s.assetLock(exit.AssetID)
	lock.Lock()
	defer lock.Unlock()

	var trade *models.AccumulationTrade
	err = s.db.Transaction(func(tx *gorm.DB) error {
		exit, err := s.findTransaction(tx, exitTxnID)
		if err != nil {
			return err
		}
		if exit.Type != models.TransactionTypeSell {
			return fmt.Errorf("%w: transaction %d is a %s, only a SELL can open a swing",
				ErrInvalidState, exitTxnID, exit.Type)
		}

		var count int64
		err = tx.Model(&models.AccumulationTrade{}).
			Where("holder_id = ? AND exit_transaction_id = ? AND status IN ?",
				s.holderID, exitTxnID, []models.SwingStatus{models.SwingStatusOpen, models.SwingStatusClosed}).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("could not check existing swings for transaction %d: %w", exitTxnID, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: transaction %d is already linked to an accumulation trade",
				ErrInvalidState, exitTxnID)
		}

		trade = &models.AccumulationTrade{
			HolderID:          s.holderID,
			AssetID:           exit.AssetID,
			ExitTransactionID: exit.ID,
			OldCoinAmount:     exit.GrossAmount,
			ExitPriceUSD:      exit.UnitPriceUSD,
			Status:            models.SwingStatusOpen,
			Notes:             notes,
		}
		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("could not open accumulation trade for transaction %d: %w", exitTxnID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Opened swing trade",
		zap.Uint("trade_id", trade.ID),
		zap.Uint("exit_transaction_id", trade.ExitTransactionID),
		zap.String("old_coin_amount", trade.OldCoinAmount.String()),
	)
	return trade, nil
}

// CloseSwing links a BUY transaction as the re-entry of an OPEN swing. The
// re-entry must be on the same asset and must not predate the exit. The
// accumulation delta (new minus old coin count) is derived from the
// snapshots, never stored authoritatively.
func (s *Service) CloseSwing(tradeID, reentryTxnID uint) (*models.AccumulationTrade, error) {
	trade, err := s.findSwing(s.db, tradeID)
	if err != nil {
		return nil, err
	}

	lock := s.assetLock(trade.AssetID)
	lock.Lock()
	defer lock.Unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		trade, err = s.findSwing(tx, tradeID)
		if err != nil {
			return err
		}
		if trade.Status != models.SwingStatusOpen {
			return fmt.Errorf("%w: accumulation trade %d is %s, only OPEN trades can be closed",
				ErrInvalidState, tradeID, trade.Status)
		}

		reentry, err := s.findTransaction(tx, reentryTxnID)
		if err != nil {
			return err
		}
		if reentry.Type != models.TransactionTypeBuy {
			return fmt.Errorf("%w: transaction %d is a %s, only a BUY can close a swing",
				ErrInvalidState, reentryTxnID, reentry.Type)
		}
		if reentry.AssetID != trade.AssetID {
			return fmt.Errorf("%w: re-entry transaction %d is for a different asset",
				ErrInvalidState, reentryTxnID)
		}

		exit, err := s.findTransaction(tx, trade.ExitTransactionID)
		if err != nil {
			return err
		}
		if reentry.TransactionDate.Before(exit.TransactionDate) {
			return fmt.Errorf("%w: re-entry transaction %d predates the exit",
				ErrInvalidState, reentryTxnID)
		}

		now := time.Now().UTC()
		trade.ReentryTransactionID = &reentry.ID
		trade.NewCoinAmount = decimal.NullDecimal{Decimal: reentry.NetAmount, Valid: true}
		trade.ReentryPriceUSD = decimal.NullDecimal{Decimal: reentry.UnitPriceUSD, Valid: true}
		trade.Status = models.SwingStatusClosed
		trade.ClosedAt = &now
		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("could not close accumulation trade %d: %w", tradeID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	delta := trade.AccumulationDelta()
	s.logger.Info("Closed swing trade",
		zap.Uint("trade_id", trade.ID),
		zap.Uint("reentry_transaction_id", reentryTxnID),
		zap.String("accumulation_delta", delta.Decimal.String()),
	)
	return trade, nil
}

// CancelSwing abandons an OPEN swing without linking a re-entry. CANCELLED is
// terminal.
func (s *Service) CancelSwing(tradeID uint) (*models.AccumulationTrade, error) {
	trade, err := s.findSwing(s.db, tradeID)
	if err != nil {
		return nil, err
	}

	lock := s.assetLock(trade.AssetID)
	lock.Lock()
	defer lock.Unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		trade, err = s.findSwing(tx, tradeID)
		if err != nil {
			return err
		}
		if trade.Status != models.SwingStatusOpen {
			return fmt.Errorf("%w: accumulation trade %d is %s, only OPEN trades can be cancelled",
				ErrInvalidState, tradeID, trade.Status)
		}

		trade.Status = models.SwingStatusCancelled
		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("could not cancel accumulation trade %d: %w", tradeID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cancelled swing trade", zap.Uint("trade_id", trade.ID))
	return trade, nil
}

// ListSwings returns the holder's accumulation trades, newest first. An empty
// status lists all of them.
func (s *Service) ListSwings(status models.SwingStatus) ([]models.AccumulationTrade, error) {
	q := s.db.Where("holder_id = ?", s.holderID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var trades []models.AccumulationTrade
	if err := q.Order("created_at desc, id desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("could not list accumulation trades: %w", err)
	}
	return trades, nil
}
