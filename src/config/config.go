package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"stockbot/src/model"
)

// Config holds every trading parameter. It is loaded once at startup and
// immutable for the process lifetime. Unlike the per-package infrastructure
// configs, invalid values here must fail startup: a silently-defaulted risk
// parameter is worse than no process at all.
type Config struct {
	Mode    string   `envconfig:"TRADING_MODE" default:"manual"`
	Symbols []string `envconfig:"SYMBOLS" default:"AAPL,MSFT,PLTR"`

	InitialCapital float64 `envconfig:"INITIAL_CAPITAL" default:"10000"`

	RiskPerTrade         float64 `envconfig:"RISK_PER_TRADE" default:"0.02"`
	MaxPositions         int     `envconfig:"MAX_POSITIONS" default:"5"`
	MaxPositionSize      float64 `envconfig:"MAX_POSITION_SIZE" default:"0.20"`
	MaxPortfolioExposure float64 `envconfig:"MAX_PORTFOLIO_EXPOSURE" default:"0.80"`
	DailyLossLimit       float64 `envconfig:"DAILY_LOSS_LIMIT" default:"0.05"`

	StopLossPercent        float64 `envconfig:"STOP_LOSS_PERCENT" default:"0.03"`
	TrailingStopPercent    float64 `envconfig:"TRAILING_STOP_PERCENT" default:"0.02"`
	TrailingStopActivation float64 `envconfig:"TRAILING_STOP_ACTIVATION" default:"0.05"`

	ConfidenceThreshold  float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.65"`
	AutoExecuteThreshold float64 `envconfig:"AUTO_EXECUTE_THRESHOLD" default:"0.85"`

	TradingCyclePeriod    time.Duration `envconfig:"TRADING_CYCLE_PERIOD" default:"5m"`
	PositionMonitorPeriod time.Duration `envconfig:"POSITION_MONITOR_PERIOD" default:"1m"`
}

// Load reads the trading config from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every risk parameter range. The first invalid value wins.
func (c *Config) Validate() error {
	c.Mode = strings.ToLower(c.Mode)
	switch c.Mode {
	case model.ModeAuto, model.ModeManual, model.ModeHybrid:
	default:
		return fmt.Errorf("invalid trading mode %q (want auto, manual or hybrid)", c.Mode)
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbol list is empty")
	}
	for i, s := range c.Symbols {
		c.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
		if c.Symbols[i] == "" {
			return fmt.Errorf("symbol list contains an empty entry")
		}
	}

	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be > 0, got %v", c.InitialCapital)
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be >= 1, got %d", c.MaxPositions)
	}

	fractions := []struct {
		name string
		val  float64
	}{
		{"risk_per_trade", c.RiskPerTrade},
		{"max_position_size", c.MaxPositionSize},
		{"max_portfolio_exposure", c.MaxPortfolioExposure},
		{"daily_loss_limit", c.DailyLossLimit},
		{"stop_loss_percent", c.StopLossPercent},
		{"trailing_stop_percent", c.TrailingStopPercent},
		{"trailing_stop_activation", c.TrailingStopActivation},
	}
	for _, f := range fractions {
		if f.val <= 0 || f.val > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", f.name, f.val)
		}
	}

	thresholds := []struct {
		name string
		val  float64
	}{
		{"confidence_threshold", c.ConfidenceThreshold},
		{"auto_execute_threshold", c.AutoExecuteThreshold},
	}
	for _, th := range thresholds {
		if th.val < 0 || th.val > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", th.name, th.val)
		}
	}

	if c.TradingCyclePeriod <= 0 || c.PositionMonitorPeriod <= 0 {
		return fmt.Errorf("job periods must be positive")
	}

	return nil
}

// Decimal accessors. Risk math runs on decimals end to end; converting once
// here keeps float literals out of the sizing path.

func (c *Config) RiskPerTradeDec() decimal.Decimal     { return decimal.NewFromFloat(c.RiskPerTrade) }
func (c *Config) MaxPositionSizeDec() decimal.Decimal  { return decimal.NewFromFloat(c.MaxPositionSize) }
func (c *Config) StopLossPercentDec() decimal.Decimal  { return decimal.NewFromFloat(c.StopLossPercent) }
func (c *Config) DailyLossLimitDec() decimal.Decimal   { return decimal.NewFromFloat(c.DailyLossLimit) }
func (c *Config) ConfidenceThresholdDec() decimal.Decimal {
	return decimal.NewFromFloat(c.ConfidenceThreshold)
}
func (c *Config) AutoExecuteThresholdDec() decimal.Decimal {
	return decimal.NewFromFloat(c.AutoExecuteThreshold)
}
func (c *Config) MaxPortfolioExposureDec() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxPortfolioExposure)
}
func (c *Config) TrailingStopPercentDec() decimal.Decimal {
	return decimal.NewFromFloat(c.TrailingStopPercent)
}
func (c *Config) TrailingStopActivationDec() decimal.Decimal {
	return decimal.NewFromFloat(c.TrailingStopActivation)
}
