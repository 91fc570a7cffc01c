package stoploss

import (
	"testing"

	"github.com/shopspring/decimal"

	"stockbot/src/config"
	"stockbot/src/model"
	"stockbot/src/risk"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestManager() *Manager {
	cfg := &config.Config{
		Mode:                   model.ModeManual,
		InitialCapital:         10000,
		RiskPerTrade:           0.02,
		MaxPositions:           5,
		MaxPositionSize:        0.20,
		MaxPortfolioExposure:   0.80,
		DailyLossLimit:         0.05,
		StopLossPercent:        0.03,
		TrailingStopPercent:    0.02,
		TrailingStopActivation: 0.05,
	}
	return NewManager(risk.NewCalculator(cfg))
}

func tick(m *Manager, symbol, price string) []Trigger {
	return m.Evaluate(map[string]decimal.Decimal{symbol: d(price)})
}

func TestInitialStopTrigger(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))

	if got := tick(m, "AAPL", "98"); len(got) != 0 {
		t.Fatalf("price above stop should not trigger, got %+v", got)
	}

	got := tick(m, "AAPL", "97")
	if len(got) != 1 {
		t.Fatalf("expected one trigger at the stop, got %+v", got)
	}
	if got[0].Reason != TriggerReasonStopLoss || got[0].Symbol != "AAPL" {
		t.Fatalf("unexpected trigger %+v", got[0])
	}
}

func TestTrailingActivationAndRatchet(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))

	// 4% gain. not enough to activate.
	tick(m, "AAPL", "104")
	if _, ok := m.TrailingStop("AAPL"); ok {
		t.Fatal("trailing stop activated below the gain threshold")
	}

	// 5% gain activates at 105 * 0.98 = 102.90.
	tick(m, "AAPL", "105")
	ts, ok := m.TrailingStop("AAPL")
	if !ok {
		t.Fatal("trailing stop should be active at a 5% gain")
	}
	if !ts.Equal(d("102.9")) {
		t.Fatalf("trailing stop mismatch. got=%s want=102.9", ts)
	}

	// New high ratchets upward.
	tick(m, "AAPL", "110")
	ts, _ = m.TrailingStop("AAPL")
	if !ts.Equal(d("107.8")) {
		t.Fatalf("trailing stop did not ratchet. got=%s want=107.8", ts)
	}

	// A pullback never lowers the stop.
	tick(m, "AAPL", "108")
	ts, _ = m.TrailingStop("AAPL")
	if !ts.Equal(d("107.8")) {
		t.Fatalf("trailing stop moved down. got=%s want=107.8", ts)
	}
}

func TestTrailingTriggerTakesPrecedence(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))

	tick(m, "AAPL", "110") // trailing at 107.80

	// A crash through both stops reports the trailing stop, which is the
	// higher of the two once active.
	got := tick(m, "AAPL", "96")
	if len(got) != 1 {
		t.Fatalf("expected one trigger, got %+v", got)
	}
	if got[0].Reason != TriggerReasonTrailingStop {
		t.Fatalf("expected trailing stop trigger, got %s", got[0].Reason)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))
	tick(m, "AAPL", "110") // trailing at 107.80

	// A replayed fill must not reset the active trailing stop.
	m.Register("AAPL", d("100"), d("97"))

	ts, ok := m.TrailingStop("AAPL")
	if !ok || !ts.Equal(d("107.8")) {
		t.Fatalf("re-register reset trailing state. got=%s ok=%v", ts, ok)
	}
}

func TestUnregisterStopsTracking(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))
	m.Unregister("AAPL")

	if m.Tracked("AAPL") {
		t.Fatal("symbol still tracked after unregister")
	}
	if got := tick(m, "AAPL", "50"); len(got) != 0 {
		t.Fatalf("unregistered symbol triggered: %+v", got)
	}

	// Unknown symbols are ignored.
	m.Unregister("MSFT")
}

func TestEvaluateIgnoresBadTicks(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))

	if got := tick(m, "AAPL", "0"); len(got) != 0 {
		t.Fatalf("zero price should be ignored, got %+v", got)
	}
	if got := m.Evaluate(map[string]decimal.Decimal{"MSFT": d("10")}); len(got) != 0 {
		t.Fatalf("tick for untracked symbol triggered: %+v", got)
	}
}

func TestEvaluateMultipleSymbols(t *testing.T) {
	m := newTestManager()
	m.Register("AAPL", d("100"), d("97"))
	m.Register("MSFT", d("200"), d("194"))

	got := m.Evaluate(map[string]decimal.Decimal{
		"AAPL": d("96"),  // breached
		"MSFT": d("210"), // fine
	})
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("expected only AAPL to trigger, got %+v", got)
	}
}
