package ledger

import (
	"testing"
	"time"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testHolderID = 1

// setupTest creates a service over a fresh in-memory database with one asset
// (BTC) and one exchange seeded.
func setupTest(t *testing.T) (*Service, uint, uint) {
	t.Helper()

	// Use a new, non-shared in-memory database for each test to ensure isolation.
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Asset{},
		&models.Exchange{},
		&models.Transaction{},
		&models.PricePeak{},
		&models.SellStrategy{},
		&models.BuyStrategy{},
		&models.StrategyAlert{},
		&models.AccumulationTrade{},
	)
	require.NoError(t, err)

	asset := models.Asset{HolderID: testHolderID, Symbol: "BTC", Name: "Bitcoin"}
	require.NoError(t, db.Create(&asset).Error)
	exchange := models.Exchange{Name: "Kraken"}
	require.NoError(t, db.Create(&exchange).Error)

	svc := NewService(zap.NewNop(), db, testHolderID)
	return svc, asset.ID, exchange.ID
}

// addAsset registers another asset for tests that need a second one.
func addAsset(t *testing.T, svc *Service, symbol string) uint {
	t.Helper()
	asset := models.Asset{HolderID: testHolderID, Symbol: symbol, Name: symbol}
	require.NoError(t, svc.db.Create(&asset).Error)
	return asset.ID
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return time.Date(2024, time.March, n, 12, 0, 0, 0, time.UTC)
}

// assertDecimalEqual compares decimals by value, not representation.
func assertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, actual.Equal(d(expected)), "expected %s, got %s (%v)", expected, actual, msgAndArgs)
}

func buyInput(assetID, exchangeID uint, gross, price string, date time.Time) RecordBuyInput {
	return RecordBuyInput{
		AssetID:     assetID,
		ExchangeID:  exchangeID,
		Gross:       d(gross),
		FeeAmount:   decimal.Zero,
		FeeCurrency: models.FeeCurrencyUSD,
		UnitPrice:   d(price),
		Date:        date,
	}
}

func sellInput(assetID, exchangeID uint, gross, price string, date time.Time) RecordSellInput {
	return RecordSellInput{
		AssetID:     assetID,
		ExchangeID:  exchangeID,
		Gross:       d(gross),
		FeeAmount:   decimal.Zero,
		FeeCurrency: models.FeeCurrencyUSD,
		UnitPrice:   d(price),
		Date:        date,
	}
}
