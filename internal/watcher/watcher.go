package watcher

import (
	"context"
	"fmt"
	"time"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Watcher periodically pulls ticker prices from the price source and feeds
// them into the ledger, one ObservePrice call per tracked asset. It owns the
// polling loop; the ledger itself defines no timers.
type Watcher struct {
	logger *zap.Logger
	cfg    *config.Config
	source pricesSource
	svc    *ledger.Service
	db     *gorm.DB

	// symbol -> asset id, loaded once at startup from the asset registry.
	assets map[string]uint
}

// pricesSource matches pricefeed.PriceSource without importing it, so tests
// can swap in a mock.
type pricesSource interface {
	GetTickerPrices() (map[string]string, error)
}

// New creates a watcher for all of the holder's registered assets.
func New(logger *zap.Logger, cfg *config.Config, source pricesSource, svc *ledger.Service, db *gorm.DB) (*Watcher, error) {
	w := &Watcher{
		logger: logger,
		cfg:    cfg,
		source: source,
		svc:    svc,
		db:     db,
		assets: make(map[string]uint),
	}

	var assets []models.Asset
	if err := db.Where("holder_id = ?", cfg.Portfolio.HolderID).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("could not load asset registry: %w", err)
	}
	for _, a := range assets {
		w.assets[a.Symbol] = a.ID
	}
	if len(w.assets) == 0 {
		logger.Warn("No assets registered, the watcher will have nothing to observe")
	}

	return w, nil
}

// Run starts the watch loop and blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	interval := time.Duration(w.cfg.Pricefeed.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Starting price watch loop",
		zap.Duration("interval", interval),
		zap.Int("assets", len(w.assets)),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping price watcher...")
			return
		case <-ticker.C:
			if err := w.Scan(); err != nil {
				w.logger.Error("Price scan failed", zap.Error(err))
			}
		}
	}
}

// Scan performs a single round: fetch all ticker prices and feed each tracked
// asset's price into the ledger, logging any alerts that were raised.
func (w *Watcher) Scan() error {
	prices, err := w.source.GetTickerPrices()
	if err != nil {
		return fmt.Errorf("could not get ticker prices: %w", err)
	}

	now := time.Now().UTC()
	for symbol, assetID := range w.assets {
		ticker := symbol + w.cfg.Pricefeed.QuoteSymbol
		priceStr, ok := prices[ticker]
		if !ok {
			w.logger.Warn("No ticker price for asset", zap.String("ticker", ticker))
			continue
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			w.logger.Error("Failed to parse ticker price",
				zap.String("ticker", ticker), zap.String("price", priceStr), zap.Error(err))
			continue
		}

		alerts, err := w.svc.ObservePrice(assetID, price, now)
		if err != nil {
			w.logger.Error("Failed to observe price",
				zap.String("symbol", symbol), zap.String("price", price.String()), zap.Error(err))
			continue
		}

		for _, alert := range alerts {
			w.logger.Info("Strategy alert pending review",
				zap.String("symbol", symbol),
				zap.String("strategy_type", string(alert.StrategyType)),
				zap.String("trigger_price", alert.TriggerPrice.String()),
				zap.String("threshold_percent", alert.ThresholdPercent.String()),
			)
		}
	}

	return nil
}
