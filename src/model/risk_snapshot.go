package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskSnapshot is the portfolio view every validation decision runs
// against. It is recomputed on each monitoring tick and never shared as
// mutable state; the monitor hands out copies.
type RiskSnapshot struct {
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	CashAvailable  decimal.Decimal `json:"cash_available"`

	TotalExposure        decimal.Decimal `json:"total_exposure"`
	TotalExposurePercent decimal.Decimal `json:"total_exposure_percent"`

	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	DailyPnLPercent decimal.Decimal `json:"daily_pnl_percent"`

	PositionsUsed      int `json:"positions_used"`
	AvailablePositions int `json:"available_positions"`

	// MaxPositionSize is the dollar cap for a single position, derived
	// from the configured fraction of portfolio value.
	MaxPositionSize decimal.Decimal `json:"max_position_size"`

	DailyLossLimitReached bool `json:"daily_loss_limit_reached"`

	Timestamp time.Time `json:"timestamp"`
}
