package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLatestPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/AAPL/trades/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"AAPL","trade":{"p":30.25,"t":"2025-06-02T14:30:00Z"}}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", server.URL, server.URL)

	price, err := client.LatestPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(30.25)) {
		t.Fatalf("price mismatch. got=%s want=30.25", price)
	}
}

func TestLatestPriceNoTrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"AAPL","trade":{"p":0}}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", server.URL, server.URL)

	if _, err := client.LatestPrice(context.Background(), "AAPL"); err == nil {
		t.Fatal("a zero-price response must not be treated as a quote")
	}
}

func TestIsMarketOpen(t *testing.T) {
	for _, open := range []bool{true, false} {
		body := `{"is_open":false,"next_open":"2025-06-03T13:30:00Z"}`
		if open {
			body = `{"is_open":true,"next_close":"2025-06-02T20:00:00Z"}`
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/clock" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(body))
		}))

		got, err := NewClient("key", "secret", server.URL, server.URL).IsMarketOpen(context.Background())
		server.Close()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != open {
			t.Fatalf("is_open mismatch. got=%v want=%v", got, open)
		}
	}
}
