package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	svc *ledger.Service
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, svc *ledger.Service) *APIHandler {
	return &APIHandler{log: log, svc: svc}
}

// RegisterRoutes wires all API endpoints onto the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/transactions/buy", h.RecordBuyHandler)
	mux.HandleFunc("POST /api/transactions/sell", h.RecordSellHandler)
	mux.HandleFunc("GET /api/transactions", h.ListTransactionsHandler)

	mux.HandleFunc("GET /api/assets/{symbol}/portfolio", h.PortfolioHandler)
	mux.HandleFunc("POST /api/prices", h.ObservePriceHandler)

	mux.HandleFunc("POST /api/strategies/sell", h.SetSellStrategyHandler)
	mux.HandleFunc("POST /api/strategies/buy", h.SetBuyStrategyHandler)
	mux.HandleFunc("DELETE /api/strategies/sell/{assetID}", h.DeactivateSellStrategyHandler)
	mux.HandleFunc("DELETE /api/strategies/buy/{assetID}", h.DeactivateBuyStrategyHandler)

	mux.HandleFunc("GET /api/alerts/pending", h.PendingAlertsHandler)
	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", h.AcknowledgeAlertHandler)
	mux.HandleFunc("POST /api/alerts/{id}/execute", h.ExecuteAlertHandler)
	mux.HandleFunc("POST /api/alerts/{id}/dismiss", h.DismissAlertHandler)

	mux.HandleFunc("POST /api/swings", h.OpenSwingHandler)
	mux.HandleFunc("POST /api/swings/{id}/close", h.CloseSwingHandler)
	mux.HandleFunc("POST /api/swings/{id}/cancel", h.CancelSwingHandler)
	mux.HandleFunc("GET /api/swings", h.ListSwingsHandler)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps the ledger's error kinds onto HTTP statuses so that clients
// can react differently to each outcome.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	default:
		h.log.Error("Unexpected error handling request", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// RecordBuyHandler records a BUY transaction.
func (h *APIHandler) RecordBuyHandler(w http.ResponseWriter, r *http.Request) {
	var in ledger.RecordBuyInput
	if !h.decode(w, r, &in) {
		return
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	txn, err := h.svc.RecordBuy(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, txn)
}

// RecordSellHandler records a SELL transaction.
func (h *APIHandler) RecordSellHandler(w http.ResponseWriter, r *http.Request) {
	var in ledger.RecordSellInput
	if !h.decode(w, r, &in) {
		return
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	txn, err := h.svc.RecordSell(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, txn)
}

// ListTransactionsHandler returns the holder's transactions, newest first.
// Optional query parameters: asset_id, limit, offset.
func (h *APIHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetID, _ := strconv.ParseUint(q.Get("asset_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	txns, err := h.svc.ListTransactions(uint(assetID), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txns)
}

// PortfolioHandler returns the asset's portfolio summary valued at the
// caller-supplied ?price=.
func (h *APIHandler) PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	asset, err := h.svc.FindAssetBySymbol(r.PathValue("symbol"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	price, err := decimal.NewFromString(r.URL.Query().Get("price"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'price' must be a decimal"})
		return
	}

	summary, err := h.svc.Summary(asset.ID, price)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

type observePriceRequest struct {
	AssetID   uint            `json:"asset_id"`
	Price     decimal.Decimal `json:"price"`
	Timestamp *time.Time      `json:"timestamp"`
}

type observePriceResponse struct {
	Alerts []models.StrategyAlert `json:"alerts"`
}

// ObservePriceHandler feeds an external price tick into the ledger and
// returns any alerts it raised.
func (h *APIHandler) ObservePriceHandler(w http.ResponseWriter, r *http.Request) {
	var req observePriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	alerts, err := h.svc.ObservePrice(req.AssetID, req.Price, ts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []models.StrategyAlert{}
	}
	h.writeJSON(w, http.StatusOK, observePriceResponse{Alerts: alerts})
}

type sellStrategyRequest struct {
	AssetID          uint            `json:"asset_id"`
	ThresholdPercent decimal.Decimal `json:"threshold_percent"`
}

// SetSellStrategyHandler upserts an asset's sell strategy.
func (h *APIHandler) SetSellStrategyHandler(w http.ResponseWriter, r *http.Request) {
	var req sellStrategyRequest
	if !h.decode(w, r, &req) {
		return
	}

	strat, err := h.svc.SetSellStrategy(req.AssetID, req.ThresholdPercent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, strat)
}

type buyStrategyRequest struct {
	AssetID      uint            `json:"asset_id"`
	DipPercent   decimal.Decimal `json:"dip_percent"`
	BuyAmountUSD decimal.Decimal `json:"buy_amount_usd"`
}

// SetBuyStrategyHandler upserts an asset's buy-the-dip strategy.
func (h *APIHandler) SetBuyStrategyHandler(w http.ResponseWriter, r *http.Request) {
	var req buyStrategyRequest
	if !h.decode(w, r, &req) {
		return
	}

	strat, err := h.svc.SetBuyStrategy(req.AssetID, req.DipPercent, req.BuyAmountUSD)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, strat)
}

// DeactivateSellStrategyHandler soft-disables an asset's sell strategy.
func (h *APIHandler) DeactivateSellStrategyHandler(w http.ResponseWriter, r *http.Request) {
	assetID, err := pathID(r, "assetID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
		return
	}
	if err := h.svc.DeactivateSellStrategy(assetID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateBuyStrategyHandler soft-disables an asset's buy strategy.
func (h *APIHandler) DeactivateBuyStrategyHandler(w http.ResponseWriter, r *http.Request) {
	assetID, err := pathID(r, "assetID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
		return
	}
	if err := h.svc.DeactivateBuyStrategy(assetID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PendingAlertsHandler lists the holder's actionable alerts.
func (h *APIHandler) PendingAlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.PendingAlerts()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *APIHandler) alertTransition(w http.ResponseWriter, r *http.Request,
	transition func(uint) (*models.StrategyAlert, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid alert id"})
		return
	}

	alert, err := transition(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

// AcknowledgeAlertHandler transitions a pending alert to acknowledged.
func (h *APIHandler) AcknowledgeAlertHandler(w http.ResponseWriter, r *http.Request) {
	h.alertTransition(w, r, h.svc.AcknowledgeAlert)
}

// ExecuteAlertHandler marks an alert as executed.
func (h *APIHandler) ExecuteAlertHandler(w http.ResponseWriter, r *http.Request) {
	h.alertTransition(w, r, h.svc.ExecuteAlert)
}

// DismissAlertHandler dismisses an alert.
func (h *APIHandler) DismissAlertHandler(w http.ResponseWriter, r *http.Request) {
	h.alertTransition(w, r, h.svc.DismissAlert)
}

type openSwingRequest struct {
	ExitTransactionID uint   `json:"exit_transaction_id"`
	Notes             string `json:"notes"`
}

// OpenSwingHandler marks a SELL transaction as a swing-trade exit.
func (h *APIHandler) OpenSwingHandler(w http.ResponseWriter, r *http.Request) {
	var req openSwingRequest
	if !h.decode(w, r, &req) {
		return
	}

	trade, err := h.svc.OpenSwing(req.ExitTransactionID, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, trade)
}

type closeSwingRequest struct {
	ReentryTransactionID uint `json:"reentry_transaction_id"`
}

// CloseSwingHandler links a BUY transaction as a swing's re-entry.
func (h *APIHandler) CloseSwingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trade id"})
		return
	}

	var req closeSwingRequest
	if !h.decode(w, r, &req) {
		return
	}

	trade, err := h.svc.CloseSwing(id, req.ReentryTransactionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trade)
}

// CancelSwingHandler abandons an open swing.
func (h *APIHandler) CancelSwingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trade id"})
		return
	}

	trade, err := h.svc.CancelSwing(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trade)
}

// ListSwingsHandler lists accumulation trades, optionally filtered by
// ?status=OPEN|CLOSED|CANCELLED.
func (h *APIHandler) ListSwingsHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.ListSwings(models.SwingStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trades)
}
