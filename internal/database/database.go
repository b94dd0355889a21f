package database

import (
	"fmt"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection, migrates the schema and seeds
// reference data from the configuration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := Seed(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for all models. The ledger is
// append-only, so existing tables are never dropped.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Asset{},
		&models.Exchange{},
		&models.Transaction{},
		&models.PricePeak{},
		&models.SellStrategy{},
		&models.BuyStrategy{},
		&models.StrategyAlert{},
		&models.AccumulationTrade{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Seed populates the asset and exchange registries from the config.
func Seed(db *gorm.DB, cfg *config.Config) error {
	holderID := cfg.Portfolio.HolderID

	for _, ref := range cfg.Portfolio.Assets {
		asset := models.Asset{HolderID: holderID, Symbol: ref.Symbol, Name: ref.Name}
		lookup := models.Asset{HolderID: holderID, Symbol: ref.Symbol}
		if err := db.Where(lookup).FirstOrCreate(&asset).Error; err != nil {
			return fmt.Errorf("failed to seed asset '%s': %w", ref.Symbol, err)
		}
	}

	for _, name := range cfg.Portfolio.Exchanges {
		exchange := models.Exchange{Name: name}
		if err := db.Where(models.Exchange{Name: name}).FirstOrCreate(&exchange).Error; err != nil {
			return fmt.Errorf("failed to seed exchange '%s': %w", name, err)
		}
	}

	return nil
}
