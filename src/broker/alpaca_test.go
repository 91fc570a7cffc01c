package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"stockbot/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGetAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/account" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"cash":"8020.55","equity":"10000.00","buying_power":"16041.10"}`))
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	account, err := client.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.Cash.Equal(d("8020.55")) {
		t.Fatalf("cash mismatch. got=%s", account.Cash)
	}
	if !account.BuyingPower.Equal(d("16041.10")) {
		t.Fatalf("buying power mismatch. got=%s", account.BuyingPower)
	}
}

func TestPlaceMarketOrder(t *testing.T) {
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{
			"id":"904837e3-1234",
			"client_order_id":"` + gotBody["client_order_id"] + `",
			"symbol":"AAPL","qty":"66","side":"buy",
			"status":"accepted","submitted_at":"2025-06-02T14:30:00Z"
		}`))
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	placed, err := client.PlaceMarketOrder(context.Background(), "AAPL", 66, model.SideBuy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if placed.OrderID != "904837e3-1234" {
		t.Fatalf("order id mismatch. got=%s", placed.OrderID)
	}
	if !strings.HasPrefix(placed.ClientOrderID, "sb-") {
		t.Fatalf("client order id missing prefix: %s", placed.ClientOrderID)
	}
	if gotBody["qty"] != "66" || gotBody["side"] != "buy" || gotBody["type"] != "market" {
		t.Fatalf("request body mismatch: %+v", gotBody)
	}
	if gotBody["time_in_force"] != "day" {
		t.Fatalf("orders must be day orders, got %q", gotBody["time_in_force"])
	}
}

func TestPlaceMarketOrderCriticalRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	_, err := client.PlaceMarketOrder(context.Background(), "AAPL", 500, model.SideBuy)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !IsCritical(err) {
		t.Fatalf("insufficient buying power should be critical, got %v", err)
	}
}

func TestPlaceMarketOrderPlainRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":42210999,"message":"invalid qty"}`))
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	_, err := client.PlaceMarketOrder(context.Background(), "AAPL", 0, model.SideBuy)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if IsCritical(err) {
		t.Fatalf("unknown 422 code should not be critical: %v", err)
	}
}

func TestGetOrderStatusFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders/ord-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{
			"id":"ord-1","status":"filled","qty":"66",
			"filled_qty":"66","filled_avg_price":"30.05",
			"filled_at":"2025-06-02T14:30:05Z"
		}`))
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	status, err := client.GetOrderStatus(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != model.OrderStatusFilled {
		t.Fatalf("status mismatch. got=%s", status.Status)
	}
	if status.FilledQty != 66 {
		t.Fatalf("filled qty mismatch. got=%d", status.FilledQty)
	}
	if !status.FilledPrice.Equal(d("30.05")) {
		t.Fatalf("filled price mismatch. got=%s", status.FilledPrice)
	}
	if status.FilledAt == nil {
		t.Fatal("filled_at not parsed")
	}
}

func TestGetOpenPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"AAPL","qty":"66","avg_entry_price":"30.00","current_price":"31.25"},
			{"symbol":"MSFT","qty":"5","avg_entry_price":"200.00","current_price":"198.40"}
		]`))
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	positions, err := client.GetOpenPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].Symbol != "AAPL" || positions[0].Quantity != 66 {
		t.Fatalf("position mismatch: %+v", positions[0])
	}
	if !positions[1].CurrentPrice.Equal(d("198.40")) {
		t.Fatalf("current price mismatch: %s", positions[1].CurrentPrice)
	}
}

func TestCancelOrder(t *testing.T) {
	var cancelledPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			cancelledPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewAlpacaClient("key", "secret", server.URL)

	if err := client.CancelOrder(context.Background(), "ord-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelledPath != "/v2/orders/ord-1" {
		t.Fatalf("cancel path mismatch: %s", cancelledPath)
	}
}

func TestMapOrderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"filled", model.OrderStatusFilled},
		{"canceled", model.OrderStatusCancelled},
		{"done_for_day", model.OrderStatusCancelled},
		{"rejected", model.OrderStatusRejected},
		{"suspended", model.OrderStatusRejected},
		{"expired", model.OrderStatusExpired},
		{"new", model.OrderStatusPending},
		{"partially_filled", model.OrderStatusPending},
		{"accepted", model.OrderStatusPending},
	}

	for _, tt := range tests {
		if got := mapOrderStatus(tt.in); got != tt.want {
			t.Fatalf("mapOrderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewClientOrderIDFormat(t *testing.T) {
	a := newClientOrderID()
	b := newClientOrderID()

	if a == b {
		t.Fatal("client order ids must be unique")
	}
	if !strings.HasPrefix(a, "sb-") || len(strings.Split(a, "-")) < 3 {
		t.Fatalf("unexpected client order id format: %s", a)
	}
}
