package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"stockbot/src/config"
	"stockbot/src/engine"
	"stockbot/src/gate"
	"stockbot/src/model"
	"stockbot/src/portfolio"
	"stockbot/src/risk"
	"stockbot/src/stoploss"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Mode:                   model.ModeManual,
		Symbols:                []string{"AAPL"},
		InitialCapital:         10000,
		RiskPerTrade:           0.02,
		MaxPositions:           5,
		MaxPositionSize:        0.20,
		MaxPortfolioExposure:   0.80,
		DailyLossLimit:         0.05,
		StopLossPercent:        0.03,
		TrailingStopPercent:    0.02,
		TrailingStopActivation: 0.05,
		ConfidenceThreshold:    0.65,
		AutoExecuteThreshold:   0.85,
		TradingCyclePeriod:     time.Hour,
		PositionMonitorPeriod:  time.Hour,
	}
	calc := risk.NewCalculator(cfg)

	eng := engine.New(cfg, engine.Deps{
		Calculator: calc,
		Stops:      stoploss.NewManager(calc),
		Monitor:    portfolio.NewMonitor(cfg),
		Gate:       gate.NewGate(cfg),
	})
	return New(eng)
}

func hashToken(t *testing.T, token string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash token: %v", err)
	}
	return string(hash)
}

func TestHealthcheck(t *testing.T) {
	router := newTestServer(t).Routes("")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch. got=%d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body mismatch. got=%q", rec.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestServer(t).Routes("")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch. got=%d", rec.Code)
	}

	var status engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status payload: %v", err)
	}
	if status.Mode != model.ModeManual {
		t.Fatalf("mode mismatch: %s", status.Mode)
	}
	if status.Running {
		t.Fatal("engine should not report running before start")
	}
}

func TestPositionsEndpointEmpty(t *testing.T) {
	router := newTestServer(t).Routes("")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/positions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch. got=%d", rec.Code)
	}

	var positions []model.Position
	if err := json.Unmarshal(rec.Body.Bytes(), &positions); err != nil {
		t.Fatalf("invalid positions payload: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected no positions, got %d", len(positions))
	}
}

func TestWriteEndpointsRequireToken(t *testing.T) {
	hash := hashToken(t, "s3cret")
	router := newTestServer(t).Routes(hash)

	// No token at all.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/start", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should be 401, got %d", rec.Code)
	}

	// Wrong token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bot/start", nil)
	req.Header.Set("Authorization", "Bearer nope")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token should be 401, got %d", rec.Code)
	}

	// Correct token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/bot/start", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token should be 200, got %d", rec.Code)
	}
}

func TestWriteEndpointsDisabledWithoutHash(t *testing.T) {
	router := newTestServer(t).Routes("")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bot/stop", nil)
	req.Header.Set("Authorization", "Bearer anything")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("writes without a configured hash should be 403, got %d", rec.Code)
	}
}

func TestApproveUnknownToken(t *testing.T) {
	hash := hashToken(t, "s3cret")
	router := newTestServer(t).Routes(hash)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signals/not-a-token/approve", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token should be 404, got %d", rec.Code)
	}
}

func TestRejectUnknownToken(t *testing.T) {
	hash := hashToken(t, "s3cret")
	router := newTestServer(t).Routes(hash)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signals/not-a-token/reject", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token should be 404, got %d", rec.Code)
	}
}

func TestStartStopTogglesRunning(t *testing.T) {
	hash := hashToken(t, "s3cret")
	srv := newTestServer(t)
	router := srv.Routes(hash)

	req := httptest.NewRequest(http.MethodPost, "/bot/start", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if !srv.engine.Status().Running {
		t.Fatal("start endpoint did not set running")
	}

	req = httptest.NewRequest(http.MethodPost, "/bot/stop", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if srv.engine.Status().Running {
		t.Fatal("stop endpoint did not clear running")
	}
}
