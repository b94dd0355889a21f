package ledger

import (
	"errors"
	"fmt"
	"sync"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// moneyScale is the fractional-digit scale of every persisted decimal column.
// Intermediate math runs at full precision; values are rounded to this scale
// only at the point of persistence.
const moneyScale = 18

var hundred = decimal.NewFromInt(100)

// round brings a decimal to the persisted column scale, half away from zero.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyScale)
}

// Service is the ledger and strategy engine for a single holder's portfolio.
// All mutating operations serialize per asset and run inside a database
// transaction, so each either fully applies or has no visible effect.
type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	holderID uint

	mu         sync.Mutex
	assetLocks map[uint]*sync.Mutex
}

// NewService creates a ledger service scoped to one holder.
func NewService(logger *zap.Logger, db *gorm.DB, holderID uint) *Service {
	return &Service{
		logger:     logger,
		db:         db,
		holderID:   holderID,
		assetLocks: make(map[uint]*sync.Mutex),
	}
}

// assetLock returns the mutex serializing read-validate-write sequences for
// one asset. Per-row locking is not enough: a SELL's balance check reads the
// same aggregate that concurrent BUYs and SELLs modify.
func (s *Service) assetLock(assetID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.assetLocks[assetID]
	if !ok {
		l = &sync.Mutex{}
		s.assetLocks[assetID] = l
	}
	return l
}

func (s *Service) findAsset(tx *gorm.DB, assetID uint) (*models.Asset, error) {
	var asset models.Asset
	err := tx.Where("holder_id = ?", s.holderID).First(&asset, assetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: asset %d", ErrNotFound, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load asset %d: %w", assetID, err)
	}
	return &asset, nil
}

// FindAssetBySymbol resolves an asset by its symbol within the holder's scope.
func (s *Service) FindAssetBySymbol(symbol string) (*models.Asset, error) {
	var asset models.Asset
	err := s.db.Where("holder_id = ? AND symbol = ?", s.holderID, symbol).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: asset %q", ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load asset %q: %w", symbol, err)
	}
	return &asset, nil
}

func (s *Service) findExchange(tx *gorm.DB, exchangeID uint) (*models.Exchange, error) {
	var exchange models.Exchange
	err := tx.First(&exchange, exchangeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: exchange %d", ErrNotFound, exchangeID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load exchange %d: %w", exchangeID, err)
	}
	return &exchange, nil
}

func (s *Service) findTransaction(tx *gorm.DB, txnID uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.Where("holder_id = ?", s.holderID).First(&txn, txnID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, txnID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load transaction %d: %w", txnID, err)
	}
	return &txn, nil
}
