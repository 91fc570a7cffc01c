package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockbot/src/model"
)

func validConfig() Config {
	return Config{
		Mode:                   model.ModeManual,
		Symbols:                []string{"aapl", " msft ", "PLTR"},
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
		TradingCyclePeriod:     5 * time.Minute,
		PositionMonitorPeriod:  time.Minute,
	}
}

func TestValidateNormalizesSymbolsAndMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "Hybrid"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != model.ModeHybrid {
		t.Fatalf("mode not lowercased: %s", cfg.Mode)
	}
	want := []string{"AAPL", "MSFT", "PLTR"}
	for i, s := range cfg.Symbols {
		if s != want[i] {
			t.Fatalf("symbol %d not normalized. got=%s want=%s", i, s, want[i])
		}
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "invalid trading mode"},
		{"no symbols", func(c *Config) { c.Symbols = nil }, "symbol list is empty"},
		{"blank symbol", func(c *Config) { c.Symbols = []string{"AAPL", "  "} }, "empty entry"},
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }, "initial_capital"},
		{"negative capital", func(c *Config) { c.InitialCapital = -5 }, "initial_capital"},
		{"zero max positions", func(c *Config) { c.MaxPositions = 0 }, "max_positions"},
		{"risk fraction zero", func(c *Config) { c.RiskPerTrade = 0 }, "risk_per_trade"},
		{"risk fraction above one", func(c *Config) { c.RiskPerTrade = 1.5 }, "risk_per_trade"},
		{"stop percent zero", func(c *Config) { c.StopLossPercent = 0 }, "stop_loss_percent"},
		{"daily loss limit negative", func(c *Config) { c.DailyLossLimit = -0.05 }, "daily_loss_limit"},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.2 }, "confidence_threshold"},
		{"zero cycle period", func(c *Config) { c.TradingCyclePeriod = 0 }, "job periods"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRADING_MODE", "auto")
	t.Setenv("SYMBOLS", "nvda,amd")
	t.Setenv("INITIAL_CAPITAL", "25000")
	t.Setenv("RISK_PER_TRADE", "0.01")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != model.ModeAuto {
		t.Fatalf("mode mismatch: %s", cfg.Mode)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "NVDA" || cfg.Symbols[1] != "AMD" {
		t.Fatalf("symbols mismatch: %v", cfg.Symbols)
	}
	if cfg.InitialCapital != 25000 || cfg.RiskPerTrade != 0.01 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Untouched knobs keep their defaults.
	if cfg.MaxPositions != 5 || cfg.StopLossPercent != 0.03 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("TRADING_MODE", "manual")
	t.Setenv("DAILY_LOSS_LIMIT", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail on out-of-range limit")
	}
}

func TestDecimalAccessors(t *testing.T) {
	cfg := validConfig()

	if !cfg.RiskPerTradeDec().Equal(decimal.NewFromFloat(0.02)) {
		t.Fatalf("risk per trade mismatch: %s", cfg.RiskPerTradeDec())
	}
	if !cfg.StopLossPercentDec().Equal(decimal.NewFromFloat(0.03)) {
		t.Fatalf("stop loss mismatch: %s", cfg.StopLossPercentDec())
	}
}
