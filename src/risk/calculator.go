package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/config"
	"stockbot/src/model"
)

// ErrZeroStopDistance is returned when sizing cannot divide by the per-share
// risk because the configured stop distance is zero or negative.
var ErrZeroStopDistance = errors.New("stop_loss_percent must be > 0 to size a position")

// ValidationReason identifies which gate check rejected a signal. The empty
// reason means the signal passed every check.
type ValidationReason string

const (
	ReasonOK                  ValidationReason = ""
	ReasonDailyLossLimit      ValidationReason = "daily_loss_limit_reached"
	ReasonMaxPositionsReached ValidationReason = "max_positions_reached"
	ReasonPositionExists      ValidationReason = "position_already_exists"
	ReasonPositionTooLarge    ValidationReason = "position_size_exceeds_limit"
	ReasonExposureExceeded    ValidationReason = "portfolio_exposure_exceeded"
	ReasonInsufficientCash    ValidationReason = "insufficient_cash"
	ReasonLowConfidence       ValidationReason = "confidence_below_threshold"
)

var one = decimal.NewFromInt(1)

// Calculator owns all sizing and stop-price math. It is stateless; every
// decision is a pure function of the config, the signal and the snapshot.
type Calculator struct {
	cfg *config.Config
}

func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// PositionSize returns how many shares to buy at price given the current
// snapshot. The risk-based size (risk budget divided by per-share stop
// distance) is capped by the single-position dollar limit. A result of zero
// means the position cannot be sized at all.
func (c *Calculator) PositionSize(price decimal.Decimal, snap model.RiskSnapshot) (int64, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("cannot size position at price %s", price)
	}

	slPct := c.cfg.StopLossPercentDec()
	if slPct.LessThanOrEqual(decimal.Zero) {
		return 0, ErrZeroStopDistance
	}

	riskAmount := snap.PortfolioValue.Mul(c.cfg.RiskPerTradeDec())
	riskPerShare := price.Mul(slPct)

	sharesByRisk := riskAmount.Div(riskPerShare).Floor().IntPart()

	capDollars := snap.PortfolioValue.Mul(c.cfg.MaxPositionSizeDec())
	sharesByCap := capDollars.Div(price).Floor().IntPart()

	qty := sharesByRisk
	if sharesByCap < qty {
		qty = sharesByCap
	}

	if qty < 1 {
		// One share is still acceptable when it fits inside the cap.
		if price.LessThanOrEqual(capDollars) {
			return 1, nil
		}
		return 0, nil
	}
	return qty, nil
}

// Validate runs the ordered fail-fast gate checks. The order is deliberate:
// capital-preservation checks come before the confidence check, so a
// tripped loss limit rejects even a perfectly confident signal. Sell
// signals are position exits and skip the entry-side checks entirely.
func (c *Calculator) Validate(
	signal *model.Signal,
	snap model.RiskSnapshot,
	open map[string]*model.Position,
) (bool, ValidationReason) {

	isBuy := signal.Side == model.SideBuy

	if isBuy && snap.DailyLossLimitReached {
		return false, ReasonDailyLossLimit
	}

	if isBuy && snap.PositionsUsed >= c.cfg.MaxPositions {
		return false, ReasonMaxPositionsReached
	}

	if isBuy {
		if p, ok := open[signal.Symbol]; ok && p.Status == model.PositionStatusOpen {
			return false, ReasonPositionExists
		}
	}

	if isBuy {
		positionValue := signal.EntryPrice.Mul(decimal.NewFromInt(signal.Quantity))

		if positionValue.GreaterThan(snap.PortfolioValue.Mul(c.cfg.MaxPositionSizeDec())) {
			return false, ReasonPositionTooLarge
		}

		if snap.TotalExposure.Add(positionValue).
			GreaterThan(snap.PortfolioValue.Mul(c.cfg.MaxPortfolioExposureDec())) {
			return false, ReasonExposureExceeded
		}

		if positionValue.GreaterThan(snap.CashAvailable) {
			return false, ReasonInsufficientCash
		}
	}

	if signal.Confidence.LessThan(c.cfg.ConfidenceThresholdDec()) {
		return false, ReasonLowConfidence
	}

	logger.WithFields(logger.Fields{
		"symbol": signal.Symbol,
		"side":   signal.Side,
		"qty":    signal.Quantity,
	}).Debug("signal passed risk validation")

	return true, ReasonOK
}

// StopLossPrice is the initial stop for an entry at the given price.
// It is always strictly below the entry for a valid stop percent.
func (c *Calculator) StopLossPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(one.Sub(c.cfg.StopLossPercentDec()))
}

// TrailingStopPrice is the trailing stop anchored at the given price.
func (c *Calculator) TrailingStopPrice(current decimal.Decimal) decimal.Decimal {
	return current.Mul(one.Sub(c.cfg.TrailingStopPercentDec()))
}

// ShouldActivateTrailing reports whether the unrealized gain has reached
// the activation threshold.
func (c *Calculator) ShouldActivateTrailing(entry, current decimal.Decimal) bool {
	if entry.LessThanOrEqual(decimal.Zero) {
		return false
	}
	profitPct := current.Sub(entry).Div(entry)
	return profitPct.GreaterThanOrEqual(c.cfg.TrailingStopActivationDec())
}
