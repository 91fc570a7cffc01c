package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPositionMath(t *testing.T) {
	p := &Position{
		Symbol:       "AAPL",
		Quantity:     66,
		EntryPrice:   d("30"),
		CurrentPrice: d("33"),
	}

	if !p.MarketValue().Equal(d("2178")) {
		t.Fatalf("market value mismatch. got=%s want=2178", p.MarketValue())
	}
	if !p.UnrealizedPnL().Equal(d("198")) {
		t.Fatalf("unrealized pnl mismatch. got=%s want=198", p.UnrealizedPnL())
	}
}

func TestEffectiveStop(t *testing.T) {
	p := &Position{StopLossPrice: d("29.1")}

	if !p.EffectiveStop().Equal(d("29.1")) {
		t.Fatalf("effective stop should be the initial stop, got %s", p.EffectiveStop())
	}

	ts := d("32.34")
	p.TrailingStopPrice = &ts
	if !p.EffectiveStop().Equal(ts) {
		t.Fatalf("effective stop should be the trailing stop, got %s", p.EffectiveStop())
	}
}

func TestSignalTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{SignalStatusPending, false},
		{SignalStatusApproved, false},
		{SignalStatusExecuted, true},
		{SignalStatusRejected, true},
		{SignalStatusCancelled, true},
		{SignalStatusFailed, true},
	}

	for _, tt := range tests {
		s := &Signal{Status: tt.status}
		if s.Terminal() != tt.want {
			t.Fatalf("Terminal(%s) = %v, want %v", tt.status, s.Terminal(), tt.want)
		}
	}
}

func TestOrderTerminal(t *testing.T) {
	o := &Order{Status: OrderStatusPending}
	if o.Terminal() {
		t.Fatal("pending order is not terminal")
	}
	for _, status := range []string{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired} {
		o.Status = status
		if !o.Terminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
}
