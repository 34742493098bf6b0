package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

func newTestAlpacaClient(baseURL string) *AlpacaClient {
	restyClient := resty.New()
	restyClient.SetBaseURL(baseURL)

	return &AlpacaClient{
		apiKey:    "test-key",
		apiSecret: "test-secret",
		baseURL:   baseURL,
		http:      restyClient,
	}
}

func testOrder() Order {
	return Order{
		Symbol:           "AAPL",
		Side:             "buy",
		Quantity:         decimal.NewFromInt(3),
		Price:            decimal.NewFromFloat(187.5),
		IdempotencyToken: "tok-1",
	}
}

// TestAlpacaSubmitOrderFilled checks header wiring, payload shape and status
// normalization for an immediately filled order.
func TestAlpacaSubmitOrderFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "test-key" {
			t.Fatalf("missing api key header")
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body["client_order_id"] != "tok-1" {
			t.Fatalf("expected idempotency token in payload, got %v", body["client_order_id"])
		}
		if body["qty"] != "3" {
			t.Fatalf("expected qty 3, got %v", body["qty"])
		}

		_ = json.NewEncoder(w).Encode(alpacaOrder{ID: "ord-1", Status: "filled"})
	}))
	defer server.Close()

	client := newTestAlpacaClient(server.URL)

	result, err := client.SubmitOrder(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != OrderResultFilled {
		t.Fatalf("expected filled, got %s", result.Status)
	}
	if result.BrokerOrderID != "ord-1" {
		t.Fatalf("expected broker order id ord-1, got %s", result.BrokerOrderID)
	}
}

// TestAlpacaSubmitOrderAuthError asserts 401 maps to AuthError.
func TestAlpacaSubmitOrderAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"access key verification failed"}`))
	}))
	defer server.Close()

	client := newTestAlpacaClient(server.URL)

	_, err := client.SubmitOrder(context.Background(), testOrder())
	if !IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

// TestAlpacaSubmitOrderInsufficientFunds asserts 403 maps to a business
// rejection, never an auth failure.
func TestAlpacaSubmitOrderInsufficientFunds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
	}))
	defer server.Close()

	client := newTestAlpacaClient(server.URL)

	_, err := client.SubmitOrder(context.Background(), testOrder())
	if !IsRejectedError(err) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if IsAuthError(err) {
		t.Fatalf("403 must not be classified as auth failure")
	}
}

// TestAlpacaSubmitOrderTransient asserts 5xx maps to TransientError.
func TestAlpacaSubmitOrderTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestAlpacaClient(server.URL)

	_, err := client.SubmitOrder(context.Background(), testOrder())
	if !IsTransientError(err) {
		t.Fatalf("expected TransientError, got %v", err)
	}
}

// TestAlpacaSubmitOrderDuplicateToken verifies a duplicate client_order_id
// resolves to the already-registered order instead of an error.
func TestAlpacaSubmitOrderDuplicateToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/orders":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"client_order_id must be unique"}`))
		case "/v2/orders:by_client_order_id":
			if r.URL.Query().Get("client_order_id") != "tok-1" {
				t.Fatalf("expected lookup by token, got %s", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode(alpacaOrder{ID: "ord-registered", Status: "accepted"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestAlpacaClient(server.URL)

	result, err := client.SubmitOrder(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != OrderResultSubmitted || result.BrokerOrderID != "ord-registered" {
		t.Fatalf("expected existing submitted order, got %+v", result)
	}
}

// TestAlpacaOrderStatus verifies the poll path normalizes terminal states.
func TestAlpacaOrderStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders/ord-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(alpacaOrder{ID: "ord-1", Status: "filled"})
	}))
	defer server.Close()

	client := newTestAlpacaClient(server.URL)

	result, err := client.OrderStatus(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != OrderResultFilled {
		t.Fatalf("expected filled, got %s", result.Status)
	}
}

func TestNormalizeAlpacaStatus(t *testing.T) {
	cases := map[string]string{
		"filled":           OrderResultFilled,
		"rejected":         OrderResultRejected,
		"canceled":         OrderResultRejected,
		"expired":          OrderResultRejected,
		"new":              OrderResultSubmitted,
		"accepted":         OrderResultSubmitted,
		"partially_filled": OrderResultSubmitted,
	}
	for raw, want := range cases {
		if got := normalizeAlpacaStatus(raw); got != want {
			t.Fatalf("status %s: expected %s, got %s", raw, want, got)
		}
	}
}
