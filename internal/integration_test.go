package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/api"
	"khata/internal/domain"
	"khata/internal/lock"
	"khata/internal/processor"
	"khata/internal/repository/memory"
	"khata/internal/service"
	"khata/pkg/metrics"
)

type testEnv struct {
	ledgerRepo    *memory.LedgerRepository
	inventoryRepo *memory.InventoryRepository
	salesRepo     *memory.SalesRepository

	mux    *http.ServeMux
	clock  processor.FixedClock
	logger *slog.Logger
}

type halfRandom struct{}

func (halfRandom) Float64() float64 { return 0.5 }

func setup(t *testing.T) *testEnv {
	t.Helper()
	ledgerRepo := memory.NewLedgerRepository()
	inventoryRepo := memory.NewInventoryRepository()
	salesRepo := memory.NewSalesRepository()

	clock := processor.FixedClock{At: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)}
	metricsCollector := metrics.NewMetricsCollector(nil)
	logger := slog.Default()

	handler := api.NewAPIHandler(api.Services{
		Udhaar:    service.NewUdhaarService(ledgerRepo, lock.NewLocalLocker(), clock, metricsCollector, service.UdhaarOptions{}, logger),
		Alerts:    service.NewAlertService(inventoryRepo, ledgerRepo, clock, metricsCollector, logger),
		Forecasts: service.NewForecastService(salesRepo, processor.NewDemandForecaster(clock, halfRandom{}), 0, metricsCollector, logger),
		Advisor:   service.NewAdvisorService(inventoryRepo, ledgerRepo),
		Inventory: inventoryRepo,
		Sales:     salesRepo,
	}, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &testEnv{
		ledgerRepo:    ledgerRepo,
		inventoryRepo: inventoryRepo,
		salesRepo:     salesRepo,
		mux:           mux,
		clock:         clock,
		logger:        logger,
	}
}

func call(t *testing.T, env *testEnv, method, path, shopID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if shopID != "" {
		r.Header.Set("X-Shop-ID", shopID)
	}
	w := httptest.NewRecorder()

	env.mux.ServeHTTP(w, r)
	return w
}

func decodeRecord(t *testing.T, w *httptest.ResponseRecorder) *domain.LedgerRecord {
	t.Helper()
	var record domain.LedgerRecord
	if err := json.NewDecoder(w.Body).Decode(&record); err != nil {
		t.Fatalf("decode ledger record failed: %v", err)
	}
	return &record
}

func TestIntegration_CreditAndRepay(t *testing.T) {
	env := setup(t)

	w := call(t, env, "POST", "/api/v1/udhaar", "shop1", map[string]any{
		"customerId":   "cust1",
		"customerName": "Ramesh",
		"amount":       1000,
		"dueInDays":    30,
		"items":        []map[string]any{{"name": "Rice", "quantity": 5, "price": 200}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	record := decodeRecord(t, w)
	if !record.OutstandingAmount.Equal(decimal.NewFromInt(1000)) || record.Status != domain.StatusPending {
		t.Fatalf("expected 1000 PENDING, got %s %s", record.OutstandingAmount, record.Status)
	}

	w = call(t, env, "POST", "/api/v1/udhaar/payment", "shop1", map[string]any{
		"customerId": "cust1",
		"amount":     "1000",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	record = decodeRecord(t, w)
	if !record.OutstandingAmount.IsZero() || record.Status != domain.StatusPaid {
		t.Errorf("expected 0 PAID, got %s %s", record.OutstandingAmount, record.Status)
	}
}

func TestIntegration_ErrorMapping(t *testing.T) {
	env := setup(t)
	_ = call(t, env, "POST", "/api/v1/udhaar", "shop1", map[string]any{"customerId": "cust1", "amount": 100})

	cases := []struct {
		name   string
		method string
		path   string
		shop   string
		body   any
		want   int
	}{
		{"missing shop", "GET", "/api/v1/udhaar", "", nil, http.StatusBadRequest},
		{"zero credit", "POST", "/api/v1/udhaar", "shop1", map[string]any{"customerId": "cust1", "amount": 0}, http.StatusBadRequest},
		{"missing customer", "POST", "/api/v1/udhaar", "shop1", map[string]any{"amount": 10}, http.StatusBadRequest},
		{"overpayment", "POST", "/api/v1/udhaar/payment", "shop1", map[string]any{"customerId": "cust1", "amount": 101}, http.StatusUnprocessableEntity},
		{"unknown customer payment", "POST", "/api/v1/udhaar/payment", "shop1", map[string]any{"customerId": "ghost", "amount": 1}, http.StatusNotFound},
		{"unknown customer detail", "GET", "/api/v1/udhaar/ghost", "shop1", nil, http.StatusNotFound},
		{"bad status filter", "GET", "/api/v1/udhaar?status=late", "shop1", nil, http.StatusBadRequest},
		{"empty forecast", "POST", "/api/v1/forecasts", "shop1", map[string]any{"itemIds": []string{}}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(t, env, tc.method, tc.path, tc.shop, tc.body)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	record, _ := env.ledgerRepo.Get(context.Background(), "shop1", "cust1")
	if !record.OutstandingAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected outstanding to stay 100 after rejections, got %s", record.OutstandingAmount)
	}
}

func TestIntegration_CustomerDetailAndListing(t *testing.T) {
	env := setup(t)
	_ = call(t, env, "POST", "/api/v1/udhaar", "shop1", map[string]any{"customerId": "a", "amount": 12000})
	_ = call(t, env, "POST", "/api/v1/udhaar", "shop1", map[string]any{"customerId": "b", "amount": 50})

	w := call(t, env, "GET", "/api/v1/udhaar/a", "shop1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var detail service.CustomerDetail
	_ = json.NewDecoder(w.Body).Decode(&detail)
	if detail.RiskScore != 0.7 {
		t.Errorf("expected risk 0.7 for a large fresh credit, got %v (%v)", detail.RiskScore, detail.RiskFactors)
	}

	w = call(t, env, "GET", "/api/v1/udhaar?status=pending", "shop1", nil)

	var listing service.LedgerListing
	_ = json.NewDecoder(w.Body).Decode(&listing)
	if listing.Summary.TotalCustomers != 2 || !listing.Summary.TotalOutstanding.Equal(decimal.NewFromInt(12050)) {
		t.Errorf("unexpected summary %+v", listing.Summary)
	}
}

func TestIntegration_AlertsFromInventoryAndLedger(t *testing.T) {
	env := setup(t)
	_ = call(t, env, "PUT", "/api/v1/inventory/rice", "shop1", map[string]any{"name": "Rice", "quantity": 0, "minStockLevel": 5})
	_ = call(t, env, "PUT", "/api/v1/inventory/oil", "shop1", map[string]any{"name": "Oil", "quantity": 2, "minStockLevel": 10})
	_ = call(t, env, "PUT", "/api/v1/inventory/milk", "shop1", map[string]any{"name": "Milk", "quantity": 4, "minStockLevel": 1, "expiryDate": "2024-06-05"})

	w := call(t, env, "GET", "/api/v1/alerts", "shop1", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var report domain.AlertReport
	_ = json.NewDecoder(w.Body).Decode(&report)
	want := []domain.AlertType{domain.AlertOutOfStock, domain.AlertLowStock, domain.AlertExpiringSoon}
	if report.Count != len(want) {
		t.Fatalf("expected %d alerts, got %+v", len(want), report.Alerts)
	}
	for i, alertType := range want {
		if report.Alerts[i].Type != alertType {
			t.Errorf("alert %d: expected %s, got %s", i, alertType, report.Alerts[i].Type)
		}
	}
}

func TestIntegration_InventoryGetAndDelete(t *testing.T) {
	env := setup(t)
	_ = call(t, env, "PUT", "/api/v1/inventory/rice", "shop1", map[string]any{"name": "Rice", "quantity": 12, "minStockLevel": 5})

	w := call(t, env, "GET", "/api/v1/inventory/rice", "shop1", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var item domain.InventoryItem
	_ = json.NewDecoder(w.Body).Decode(&item)
	if item.ItemID != "rice" || !item.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected rice with quantity 12, got %+v", item)
	}

	w = call(t, env, "DELETE", "/api/v1/inventory/rice", "shop1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = call(t, env, "GET", "/api/v1/inventory/rice", "shop1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
	w = call(t, env, "DELETE", "/api/v1/inventory/rice", "shop1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting a missing item, got %d", w.Code)
	}
}

func TestIntegration_Forecast(t *testing.T) {
	env := setup(t)
	start := env.clock.At.AddDate(0, 0, -7)
	for i := 0; i < 7; i++ {
		_ = call(t, env, "POST", "/api/v1/sales/rice", "shop1", map[string]any{
			"date":     start.AddDate(0, 0, i),
			"quantity": 10,
		})
	}

	w := call(t, env, "POST", "/api/v1/forecasts", "shop1", map[string]any{"itemIds": []string{"rice", "dal"}, "days": 7})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.ForecastResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Forecasts) != 2 {
		t.Fatalf("expected 2 forecasts, got %d", len(resp.Forecasts))
	}
	rice := resp.Forecasts[0]
	if rice.Confidence != 0.7 || len(rice.Points) != 7 {
		t.Errorf("expected 7 points at confidence 0.7, got %d at %v", len(rice.Points), rice.Confidence)
	}
	dal := resp.Forecasts[1]
	if dal.Confidence != 0.5 || len(dal.Points) != 7 {
		t.Errorf("expected empty-history fallback for dal, got %+v", dal)
	}
}

func TestIntegration_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	env := setup(t)
	_ = call(t, env, "POST", "/api/v1/udhaar", "shop1", map[string]any{"customerId": "cust1", "amount": 100})

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := call(t, env, "POST", "/api/v1/udhaar/payment", "shop1", map[string]any{"customerId": "cust1", "amount": 10})
			if w.Code == http.StatusOK {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	record, _ := env.ledgerRepo.Get(context.Background(), "shop1", "cust1")
	if accepted != 10 {
		t.Errorf("expected exactly 10 accepted payments, got %d", accepted)
	}
	if !record.OutstandingAmount.IsZero() || record.Status != domain.StatusPaid {
		t.Errorf("expected 0 PAID, got %s %s", record.OutstandingAmount, record.Status)
	}
	if got := processor.Replay(record.Transactions); !got.Equal(record.OutstandingAmount) {
		t.Errorf("replay %s disagrees with outstanding %s", got, record.OutstandingAmount)
	}
}

func TestIntegration_Insights(t *testing.T) {
	env := setup(t)
	_ = call(t, env, "PUT", "/api/v1/inventory/oil", "shop1", map[string]any{
		"name": "Oil", "quantity": 2, "minStockLevel": 10, "costPrice": 100, "sellingPrice": 200,
	})

	w := call(t, env, "GET", "/api/v1/pricing/recommendations", "shop1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var pricing struct {
		Recommendations []processor.PricingRecommendation `json:"recommendations"`
	}
	_ = json.NewDecoder(w.Body).Decode(&pricing)
	if len(pricing.Recommendations) != 1 || pricing.Recommendations[0].Action != processor.PriceDecrease {
		t.Errorf("expected a DECREASE for a 50%% margin, got %+v", pricing.Recommendations)
	}

	w = call(t, env, "GET", "/api/v1/recommendations", "shop1", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var insights service.ShopInsights
	_ = json.NewDecoder(w.Body).Decode(&insights)
	if insights.Snapshot.LowStockCount != 1 {
		t.Errorf("expected one low-stock item, got %d", insights.Snapshot.LowStockCount)
	}
	if len(insights.Recommendations) == 0 || insights.Recommendations[0].Priority != domain.PriorityHigh {
		t.Errorf("expected a HIGH restock recommendation first, got %+v", insights.Recommendations)
	}
}
