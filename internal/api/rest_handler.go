package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"khata/internal/domain"
	"khata/internal/lock"
	"khata/internal/processor"
	"khata/internal/repository"
	"khata/internal/service"
	"khata/pkg/validator"
)

const shopHeader = "X-Shop-ID"

type APIHandler struct {
	udhaar         *service.UdhaarService
	alerts         *service.AlertService
	forecasts      *service.ForecastService
	advisor        *service.AdvisorService
	inventory      repository.InventoryRepository
	sales          repository.SalesRepository
	logger         *slog.Logger
	requestTimeout time.Duration
}

type Services struct {
	Udhaar    *service.UdhaarService
	Alerts    *service.AlertService
	Forecasts *service.ForecastService
	Advisor   *service.AdvisorService
	Inventory repository.InventoryRepository
	Sales     repository.SalesRepository
}

func NewAPIHandler(services Services, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		udhaar:         services.Udhaar,
		alerts:         services.Alerts,
		forecasts:      services.Forecasts,
		advisor:        services.Advisor,
		inventory:      services.Inventory,
		sales:          services.Sales,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type ForecastRequest struct {
	ItemIDs []string `json:"itemIds"`
	Days    int      `json:"days"`
}

type ForecastResponse struct {
	Forecasts []domain.Forecast `json:"forecasts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) AddCreditHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req service.CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	req.ShopID = shopID

	record, err := h.udhaar.AddCredit(ctx, req)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, record, http.StatusCreated)
}

func (h *APIHandler) RecordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req service.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	req.ShopID = shopID

	record, err := h.udhaar.RecordPayment(ctx, req)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, record, http.StatusOK)
}

func (h *APIHandler) ListUdhaarHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	status := domain.LedgerStatus(strings.ToUpper(r.URL.Query().Get("status")))
	listing, err := h.udhaar.ListRecords(ctx, shopID, status)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, listing, http.StatusOK)
}

func (h *APIHandler) GetCustomerHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	detail, err := h.udhaar.GetCustomer(ctx, shopID, r.PathValue("customerId"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, detail, http.StatusOK)
}

func (h *APIHandler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	h.sendJSON(w, h.alerts.Generate(ctx, shopID), http.StatusOK)
}

func (h *APIHandler) ForecastHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if len(req.ItemIDs) == 0 {
		h.sendError(w, "itemIds is required", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	forecasts := h.forecasts.ForecastItems(ctx, shopID, req.ItemIDs, req.Days)
	h.sendJSON(w, ForecastResponse{Forecasts: forecasts}, http.StatusOK)
}

func (h *APIHandler) PricingHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	recs, err := h.advisor.PricingRecommendations(ctx, shopID)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{"recommendations": recs}, http.StatusOK)
}

func (h *APIHandler) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	insights, err := h.advisor.Insights(ctx, shopID)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, insights, http.StatusOK)
}

// PutInventoryHandler lets the inventory collaborator push an item snapshot.
func (h *APIHandler) PutInventoryHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var item domain.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	item.ShopID = shopID
	item.ItemID = r.PathValue("itemId")

	if err := h.inventory.Save(ctx, item); err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, item, http.StatusOK)
}

func (h *APIHandler) GetInventoryHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	item, err := h.inventory.Get(ctx, shopID, r.PathValue("itemId"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, item, http.StatusOK)
}

func (h *APIHandler) DeleteInventoryHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	if err := h.inventory.Delete(ctx, shopID, r.PathValue("itemId")); err != nil {
		h.sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) RecordSaleHandler(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.shopID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var point domain.SalePoint
	if err := json.NewDecoder(r.Body).Decode(&point); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if err := h.sales.Record(ctx, shopID, r.PathValue("itemId"), point); err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, point, http.StatusCreated)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) shopID(w http.ResponseWriter, r *http.Request) (string, bool) {
	shopID := strings.TrimSpace(r.Header.Get(shopHeader))
	if shopID == "" {
		h.sendError(w, shopHeader+" header is required", http.StatusBadRequest, "MISSING_SHOP")
		return "", false
	}
	return shopID, true
}

func (h *APIHandler) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, processor.ErrInvalidAmount):
		h.sendError(w, err.Error(), http.StatusBadRequest, "INVALID_AMOUNT")
	case errors.Is(err, validator.ErrValidation), errors.Is(err, repository.ErrInvalidRecord):
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
	case errors.Is(err, processor.ErrExceedsOutstanding):
		h.sendError(w, err.Error(), http.StatusUnprocessableEntity, "EXCEEDS_OUTSTANDING")
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, err.Error(), http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, lock.ErrNotObtained):
		h.sendError(w, err.Error(), http.StatusConflict, "CONFLICT")
	default:
		h.logger.Error("Request failed", slog.String("error", err.Error()))
		h.sendError(w, "Internal server error", http.StatusInternalServerError, "SERVER_ERROR")
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/udhaar", h.AddCreditHandler)
	mux.HandleFunc("POST /api/v1/udhaar/payment", h.RecordPaymentHandler)
	mux.HandleFunc("GET /api/v1/udhaar", h.ListUdhaarHandler)
	mux.HandleFunc("GET /api/v1/udhaar/{customerId}", h.GetCustomerHandler)
	mux.HandleFunc("GET /api/v1/alerts", h.AlertsHandler)
	mux.HandleFunc("POST /api/v1/forecasts", h.ForecastHandler)
	mux.HandleFunc("GET /api/v1/pricing/recommendations", h.PricingHandler)
	mux.HandleFunc("GET /api/v1/recommendations", h.InsightsHandler)
	mux.HandleFunc("PUT /api/v1/inventory/{itemId}", h.PutInventoryHandler)
	mux.HandleFunc("GET /api/v1/inventory/{itemId}", h.GetInventoryHandler)
	mux.HandleFunc("DELETE /api/v1/inventory/{itemId}", h.DeleteInventoryHandler)
	mux.HandleFunc("POST /api/v1/sales/{itemId}", h.RecordSaleHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
