package ledger

import (
	"fmt"
	"time"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordBuyInput carries the parameters for recording a BUY transaction.
type RecordBuyInput struct {
	AssetID    uint            `json:"asset_id"`
	ExchangeID uint            `json:"exchange_id"`
	Gross      decimal.Decimal `json:"gross_amount"`
	FeeAmount  decimal.Decimal `json:"fee_amount"`
	// FeeCurrency is the asset's coin symbol or "USD".
	FeeCurrency string          `json:"fee_currency"`
	UnitPrice   decimal.Decimal `json:"unit_price_usd"`
	// FeeUSD is an additional USD fee charged on top of the order (for
	// example a flat platform fee).
	FeeUSD decimal.Decimal `json:"fee_usd"`
	Date   time.Time       `json:"transaction_date"`
}

// RecordSellInput carries the parameters for recording a SELL transaction.
type RecordSellInput struct {
	AssetID     uint            `json:"asset_id"`
	ExchangeID  uint            `json:"exchange_id"`
	Gross       decimal.Decimal `json:"gross_amount"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	FeeCurrency string          `json:"fee_currency"`
	UnitPrice   decimal.Decimal `json:"unit_price_usd"`
	Date        time.Time       `json:"transaction_date"`
}

func validateTradeAmounts(gross, unitPrice, feeAmount decimal.Decimal) error {
	if !gross.IsPositive() {
		return fmt.Errorf("%w: gross amount must be positive, got %s", ErrValidation, gross)
	}
	if !unitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive, got %s", ErrValidation, unitPrice)
	}
	if feeAmount.IsNegative() {
		return fmt.Errorf("%w: fee amount must not be negative, got %s", ErrValidation, feeAmount)
	}
	return nil
}

// RecordBuy appends a BUY transaction and resets the asset's price peak to the
// buy's unit price, both inside one atomic unit of work.
//
// A coin-denominated fee is deducted from the net amount and its cost is
// already part of gross x unitPrice; a USD-denominated fee is added on top of
// the USD total instead.
func (s *Service) RecordBuy(in RecordBuyInput) (*models.Transaction, error) {
	if err := validateTradeAmounts(in.Gross, in.UnitPrice, in.FeeAmount); err != nil {
		return nil, err
	}
	if in.FeeUSD.IsNegative() {
		return nil, fmt.Errorf("%w: usd fee must not be negative, got %s", ErrValidation, in.FeeUSD)
	}

	lock := s.assetLock(in.AssetID)
	lock.Lock()
	defer lock.Unlock()

	var txn *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		asset, err := s.findAsset(tx, in.AssetID)
		if err != nil {
			return err
		}
		if _, err := s.findExchange(tx, in.ExchangeID); err != nil {
			return err
		}

		net := in.Gross
		if in.FeeCurrency == asset.Symbol {
			if in.FeeAmount.GreaterThan(in.Gross) {
				return fmt.Errorf("%w: coin fee %s exceeds gross amount %s", ErrValidation, in.FeeAmount, in.Gross)
			}
			net = in.Gross.Sub(in.FeeAmount)
		}

		total := in.Gross.Mul(in.UnitPrice)
		if in.FeeCurrency == models.FeeCurrencyUSD {
			total = total.Add(in.FeeAmount)
		}
		total = total.Add(in.FeeUSD)

		txn = &models.Transaction{
			HolderID:        s.holderID,
			AssetID:         asset.ID,
			ExchangeID:      in.ExchangeID,
			Type:            models.TransactionTypeBuy,
			GrossAmount:     round(in.Gross),
			FeeAmount:       round(in.FeeAmount),
			FeeCurrency:     in.FeeCurrency,
			NetAmount:       round(net),
			UnitPriceUSD:    round(in.UnitPrice),
			TotalSpentUSD:   round(total),
			TransactionDate: in.Date.UTC(),
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("could not persist buy transaction: %w", err)
		}

		// The peak reset is part of the buy's unit of work, not a separate
		// follow-up: a failed reset rolls the whole buy back.
		return s.resetPeak(tx, asset.ID, txn.ID, in.UnitPrice, in.Date.UTC())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recorded buy transaction",
		zap.Uint("transaction_id", txn.ID),
		zap.Uint("asset_id", txn.AssetID),
		zap.String("gross", txn.GrossAmount.String()),
		zap.String("unit_price_usd", txn.UnitPriceUSD.String()),
	)
	return txn, nil
}

// RecordSell appends a SELL transaction with its realized profit or loss
// computed against the current average buy price. The sell is rejected when
// the gross amount exceeds the holder's tracked balance, leaving the ledger
// untouched.
//
// Marking the sell as a swing-trade exit is a separate, explicit step
// (OpenSwing); recording alone never opens an accumulation trade.
func (s *Service) RecordSell(in RecordSellInput) (*models.Transaction, error) {
	if err := validateTradeAmounts(in.Gross, in.UnitPrice, in.FeeAmount); err != nil {
		return nil, err
	}

	lock := s.assetLock(in.AssetID)
	lock.Lock()
	defer lock.Unlock()

	var txn *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		asset, err := s.findAsset(tx, in.AssetID)
		if err != nil {
			return err
		}
		if _, err := s.findExchange(tx, in.ExchangeID); err != nil {
			return err
		}

		pos, err := s.position(tx, asset.ID)
		if err != nil {
			return err
		}
		if in.Gross.GreaterThan(pos.Balance) {
			return fmt.Errorf("%w: selling %s of asset %d but only %s held",
				ErrInsufficientBalance, in.Gross, asset.ID, pos.Balance)
		}

		net := in.Gross
		feeUSD := in.FeeAmount
		if in.FeeCurrency == asset.Symbol {
			if in.FeeAmount.GreaterThan(in.Gross) {
				return fmt.Errorf("%w: coin fee %s exceeds gross amount %s", ErrValidation, in.FeeAmount, in.Gross)
			}
			net = in.Gross.Sub(in.FeeAmount)
			feeUSD = in.FeeAmount.Mul(in.UnitPrice)
		}

		pnl := in.UnitPrice.Sub(pos.AvgBuyPrice).Mul(in.Gross).Sub(feeUSD)
		proceeds := in.Gross.Mul(in.UnitPrice).Sub(feeUSD)

		txn = &models.Transaction{
			HolderID:        s.holderID,
			AssetID:         asset.ID,
			ExchangeID:      in.ExchangeID,
			Type:            models.TransactionTypeSell,
			GrossAmount:     round(in.Gross),
			FeeAmount:       round(in.FeeAmount),
			FeeCurrency:     in.FeeCurrency,
			NetAmount:       round(net),
			UnitPriceUSD:    round(in.UnitPrice),
			TotalSpentUSD:   round(proceeds),
			RealizedPnL:     decimal.NullDecimal{Decimal: round(pnl), Valid: true},
			TransactionDate: in.Date.UTC(),
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("could not persist sell transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recorded sell transaction",
		zap.Uint("transaction_id", txn.ID),
		zap.Uint("asset_id", txn.AssetID),
		zap.String("gross", txn.GrossAmount.String()),
		zap.String("realized_pnl", txn.RealizedPnL.Decimal.String()),
	)
	return txn, nil
}

// ListTransactions returns the holder's transactions, newest first. A zero
// assetID lists across all assets. Limit defaults to 100.
func (s *Service) ListTransactions(assetID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	q := s.db.Where("holder_id = ?", s.holderID)
	if assetID != 0 {
		q = q.Where("asset_id = ?", assetID)
	}

	var txns []models.Transaction
	err := q.Order("transaction_date desc, id desc").Limit(limit).Offset(offset).Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("could not list transactions: %w", err)
	}
	return txns, nil
}
