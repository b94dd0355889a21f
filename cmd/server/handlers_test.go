package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTest(t *testing.T) (http.Handler, *ledger.Service, uint, uint) {
	t.Helper()

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

	asset := models.Asset{HolderID: 1, Symbol: "BTC", Name: "Bitcoin"}
	require.NoError(t, db.Create(&asset).Error)
	exchange := models.Exchange{Name: "Kraken"}
	require.NoError(t, db.Create(&exchange).Error)

	svc := ledger.NewService(zap.NewNop(), db, 1)
	mux := http.NewServeMux()
	NewAPIHandler(zap.NewNop(), svc).RegisterRoutes(mux)

	return mux, svc, asset.ID, exchange.ID
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:54321"

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestRecordBuyHandler(t *testing.T) {
	mux, _, assetID, exchangeID := setupTest(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
		"asset_id":       assetID,
		"exchange_id":    exchangeID,
		"gross_amount":   "10",
		"fee_amount":     "0.1",
		"fee_currency":   "BTC",
		"unit_price_usd": "100",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var txn models.Transaction
	decodeBody(t, rec, &txn)
	assert.Equal(t, models.TransactionTypeBuy, txn.Type)
	assert.True(t, txn.NetAmount.Equal(decimal.RequireFromString("9.9")))
	assert.True(t, txn.TotalSpentUSD.Equal(decimal.RequireFromString("1000")))
}

func TestRecordBuyHandler_Errors(t *testing.T) {
	mux, _, assetID, exchangeID := setupTest(t)

	t.Run("ValidationIs400", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
			"asset_id":       assetID,
			"exchange_id":    exchangeID,
			"gross_amount":   "0",
			"fee_currency":   "USD",
			"unit_price_usd": "100",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownAssetIs404", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
			"asset_id":       9999,
			"exchange_id":    exchangeID,
			"gross_amount":   "1",
			"fee_currency":   "USD",
			"unit_price_usd": "100",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MalformedBodyIs400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions/buy", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRecordSellHandler_InsufficientBalance(t *testing.T) {
	mux, _, assetID, exchangeID := setupTest(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/transactions/sell", map[string]interface{}{
		"asset_id":       assetID,
		"exchange_id":    exchangeID,
		"gross_amount":   "1",
		"fee_currency":   "USD",
		"unit_price_usd": "100",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPortfolioHandler(t *testing.T) {
	mux, _, assetID, exchangeID := setupTest(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
		"asset_id":       assetID,
		"exchange_id":    exchangeID,
		"gross_amount":   "10",
		"fee_currency":   "USD",
		"unit_price_usd": "100",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/assets/BTC/portfolio?price=130", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary ledger.Summary
	decodeBody(t, rec, &summary)
	assert.True(t, summary.Balance.Equal(decimal.RequireFromString("10")))
	assert.True(t, summary.CurrentValue.Equal(decimal.RequireFromString("1300")))
	assert.True(t, summary.UnrealizedPnL.Equal(decimal.RequireFromString("300")))

	t.Run("UnknownSymbolIs404", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/assets/DOGE/portfolio?price=130", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MissingPriceIs400", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/assets/BTC/portfolio", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestObservePriceHandler(t *testing.T) {
	mux, svc, assetID, exchangeID := setupTest(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
		"asset_id":       assetID,
		"exchange_id":    exchangeID,
		"gross_amount":   "10",
		"fee_currency":   "USD",
		"unit_price_usd": "100",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	_, err := svc.SetSellStrategy(assetID, decimal.RequireFromString("20"))
	require.NoError(t, err)

	// A price above the 120 target raises a SELL alert.
	rec = doJSON(t, mux, http.MethodPost, "/api/prices", map[string]interface{}{
		"asset_id": assetID,
		"price":    "150",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alerts []models.StrategyAlert `json:"alerts"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, models.StrategyTypeSell, resp.Alerts[0].StrategyType)

	// The same trigger again is deduplicated against the pending alert.
	rec = doJSON(t, mux, http.MethodPost, "/api/prices", map[string]interface{}{
		"asset_id": assetID,
		"price":    "151",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Empty(t, resp.Alerts)
}

func TestStrategyHandlers(t *testing.T) {
	mux, _, assetID, _ := setupTest(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/strategies/sell", map[string]interface{}{
		"asset_id":          assetID,
		"threshold_percent": "20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/strategies/buy", map[string]interface{}{
		"asset_id":       assetID,
		"dip_percent":    "10",
		"buy_amount_usd": "500",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/api/strategies/sell/%d", assetID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Nothing active anymore.
	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/api/strategies/sell/%d", assetID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertHandlers(t *testing.T) {
	mux, svc, assetID, _ := setupTest(t)

	alert, created, err := svc.RaiseAlert(&ledger.Opportunity{
		AssetID:          assetID,
		Type:             models.StrategyTypeSell,
		TriggerPrice:     decimal.RequireFromString("140"),
		ThresholdPercent: decimal.RequireFromString("20"),
		ReferencePrice:   decimal.RequireFromString("100"),
	})
	require.NoError(t, err)
	require.True(t, created)

	rec := doJSON(t, mux, http.MethodGet, "/api/alerts/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.StrategyAlert
	decodeBody(t, rec, &pending)
	require.Len(t, pending, 1)

	rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/alerts/%d/acknowledge", alert.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Acknowledging twice is an invalid transition.
	rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/alerts/%d/acknowledge", alert.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/alerts/%d/execute", alert.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var executed models.StrategyAlert
	decodeBody(t, rec, &executed)
	assert.Equal(t, models.AlertStatusExecuted, executed.Status)

	rec = doJSON(t, mux, http.MethodPost, "/api/alerts/9999/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSwingHandlers(t *testing.T) {
	mux, svc, assetID, exchangeID := setupTest(t)

	buy := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
		"asset_id":       assetID,
		"exchange_id":    exchangeID,
		"gross_amount":   "10",
		"fee_currency":   "USD",
		"unit_price_usd": "100",
	})
	require.Equal(t, http.StatusCreated, buy.Code)

	sell := doJSON(t, mux, http.MethodPost, "/api/transactions/sell", map[string]interface{}{
		"asset_id":       assetID,
		"exchange_id":    exchangeID,
		"gross_amount":   "4",
		"fee_currency":   "USD",
		"unit_price_usd": "150",
	})
	require.Equal(t, http.StatusCreated, sell.Code)
	var exit models.Transaction
	decodeBody(t, sell, &exit)

	rec := doJSON(t, mux, http.MethodPost, "/api/swings", map[string]interface{}{
		"exit_transaction_id": exit.ID,
		"notes":               "rotating out before earnings",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var trade models.AccumulationTrade
	decodeBody(t, rec, &trade)
	assert.Equal(t, models.SwingStatusOpen, trade.Status)

	reentry, err := svc.RecordBuy(ledger.RecordBuyInput{
		AssetID:     assetID,
		ExchangeID:  exchangeID,
		Gross:       decimal.RequireFromString("4.5"),
		FeeCurrency: models.FeeCurrencyUSD,
		UnitPrice:   decimal.RequireFromString("120"),
		Date:        exit.TransactionDate.Add(time.Hour),
	})
	require.NoError(t, err)

	rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/swings/%d/close", trade.ID), map[string]interface{}{
		"reentry_transaction_id": reentry.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var closed models.AccumulationTrade
	decodeBody(t, rec, &closed)
	assert.Equal(t, models.SwingStatusClosed, closed.Status)

	// CLOSED is terminal, cancelling now conflicts.
	rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/api/swings/%d/cancel", trade.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/swings?status=CLOSED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []models.AccumulationTrade
	decodeBody(t, rec, &trades)
	assert.Len(t, trades, 1)
}

func TestListTransactionsHandler(t *testing.T) {
	mux, _, assetID, exchangeID := setupTest(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, mux, http.MethodPost, "/api/transactions/buy", map[string]interface{}{
			"asset_id":       assetID,
			"exchange_id":    exchangeID,
			"gross_amount":   "1",
			"fee_currency":   "USD",
			"unit_price_usd": "100",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/transactions?asset_id=%d&limit=2", assetID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []models.Transaction
	decodeBody(t, rec, &txns)
	assert.Len(t, txns, 2)
}

func TestRateLimitMiddleware(t *testing.T) {
	mux, _, _, _ := setupTest(t)
	handler := rateLimitMiddleware(config.Server{RateLimit: 1, RateLimitBurst: 2}, mux)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/alerts/pending", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2], "burst of 2 exhausted")

	// A different client has its own limiter.
	req := httptest.NewRequest(http.MethodGet, "/api/alerts/pending", nil)
	req.RemoteAddr = "198.51.100.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
