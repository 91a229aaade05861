package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sonara/backend/internal/cache"
	"sonara/backend/internal/domain"
	"sonara/backend/internal/service"
	"sonara/backend/internal/store/memory"
)

func newTestAPI() http.Handler {
	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopPriceCache{}, 5*time.Second)
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, "admin-secret-1", "clerk-secret-1")
	return New(svc, auth, "http://127.0.0.1:3000").Handler()
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestAPI()

	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestEndpointsRequireToken(t *testing.T) {
	handler := newTestAPI()

	rec := doJSON(handler, http.MethodGet, "/api/v1/inventory", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/inventory", "not-a-real-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for garbage token", rec.Code)
	}
}

func TestClerkCannotSetPricesOrDeleteCustomers(t *testing.T) {
	handler := newTestAPI()
	clerk := login(t, handler, "clerk", "clerk-secret-1")

	rec := doJSON(handler, http.MethodPost, "/api/v1/prices", clerk, domain.SetPriceRequest{
		Metal: domain.MetalGold, PricePerGram: 950000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("price set status = %d, want 403 for clerk", rec.Code)
	}

	rec = doJSON(handler, http.MethodDelete, "/api/v1/customers/cust-0001", clerk, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer delete status = %d, want 403 for clerk", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/reports/daily", clerk, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("daily report status = %d, want 403 for clerk", rec.Code)
	}
}

func TestSaleRoundTripOverHTTP(t *testing.T) {
	handler := newTestAPI()
	clerk := login(t, handler, "clerk", "clerk-secret-1")

	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", clerk, domain.SaleRequest{
		CustomerID: "cust-0001",
		Lines: []domain.SaleLineRequest{
			{InventoryItemID: "item-gold-ring-01", Quantity: 1},
		},
		MakingChargePct: 15,
		WastagePct:      2,
		TaxPct:          3,
		PaymentMethod:   domain.PaymentMethodCash,
		CashReceived:    11086920,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("bad sale response: %v", err)
	}
	if created.Sale.GrandTotal != 11086920 {
		t.Fatalf("grand total = %d, want 11086920", created.Sale.GrandTotal)
	}
	if created.Sale.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", created.Sale.PaymentStatus)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, clerk, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sale fetch status = %d", rec.Code)
	}
	rec = doJSON(handler, http.MethodGet, "/api/v1/receipts/"+created.Sale.ReceiptNumber, clerk, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt fetch status = %d", rec.Code)
	}
}

func TestSaleErrorStatusMapping(t *testing.T) {
	handler := newTestAPI()
	clerk := login(t, handler, "clerk", "clerk-secret-1")

	// Empty sale -> 400.
	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", clerk, domain.SaleRequest{
		PaymentMethod: domain.PaymentMethodCash,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty sale status = %d, want 400", rec.Code)
	}

	// Overselling -> 409.
	rec = doJSON(handler, http.MethodPost, "/api/v1/sales", clerk, domain.SaleRequest{
		Lines: []domain.SaleLineRequest{
			{InventoryItemID: "item-plat-band-01", Quantity: 99},
		},
		PaymentMethod: domain.PaymentMethodCash,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("oversell status = %d, want 409", rec.Code)
	}

	// Unknown customer -> 404.
	rec = doJSON(handler, http.MethodPost, "/api/v1/sales", clerk, domain.SaleRequest{
		CustomerID: "cust-nope",
		Lines: []domain.SaleLineRequest{
			{InventoryItemID: "item-gold-ring-01", Quantity: 1},
		},
		PaymentMethod: domain.PaymentMethodCash,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown customer status = %d, want 404", rec.Code)
	}
}

func TestAdminPriceAndReportFlow(t *testing.T) {
	handler := newTestAPI()
	admin := login(t, handler, "admin", "admin-secret-1")

	rec := doJSON(handler, http.MethodPost, "/api/v1/prices", admin, domain.SetPriceRequest{
		Metal: domain.MetalGold, PricePerGram: 940000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("price set status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/prices?metal=gold", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("price get status = %d", rec.Code)
	}
	var priceResp struct {
		Price domain.DailyPrice `json:"price"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &priceResp); err != nil {
		t.Fatalf("bad price response: %v", err)
	}
	if priceResp.Price.PricePerGram != 940000 {
		t.Fatalf("price = %d, want 940000", priceResp.Price.PricePerGram)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/reports/daily", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d", rec.Code)
	}
}

func TestCustomerPaymentEndpoint(t *testing.T) {
	handler := newTestAPI()
	clerk := login(t, handler, "clerk", "clerk-secret-1")

	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", clerk, domain.SaleRequest{
		CustomerID: "cust-0002",
		Lines: []domain.SaleLineRequest{
			{InventoryItemID: "item-silver-coin-01", Quantity: 1},
		},
		PaymentMethod: domain.PaymentMethodCredit,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit sale status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/customers/cust-0002/payments", clerk, domain.CreditPaymentRequest{
		Amount: 50000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment status = %d, body %s", rec.Code, rec.Body.String())
	}
	var payResp struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payResp); err != nil {
		t.Fatalf("bad payment response: %v", err)
	}
	if payResp.Customer.TotalCredit != 65000 {
		t.Fatalf("total credit = %d, want 65000", payResp.Customer.TotalCredit)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/customers/cust-0002/statement", clerk, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statement status = %d", rec.Code)
	}
	var statement domain.CustomerStatement
	if err := json.Unmarshal(rec.Body.Bytes(), &statement); err != nil {
		t.Fatalf("bad statement response: %v", err)
	}
	if statement.Balance != 65000 {
		t.Fatalf("balance = %d, want 65000", statement.Balance)
	}
}

func TestLoginRateLimit(t *testing.T) {
	handler := newTestAPI()

	var last int
	for i := 0; i < 7; i++ {
		body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: fmt.Sprintf("wrong-%d", i)})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.RemoteAddr = "203.0.113.9:4444"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after repeated failures = %d, want 429", last)
	}
}

func TestHealthEndpointIsOpen(t *testing.T) {
	handler := newTestAPI()

	rec := doJSON(handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}
