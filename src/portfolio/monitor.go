package portfolio

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/config"
	"stockbot/src/model"
)

// historyCap bounds the snapshot ring. One snapshot per monitoring minute
// covers a full 6.5 hour session.
const historyCap = 390

// Monitor recomputes the portfolio risk snapshot on every tick and keeps a
// bounded history for reporting metrics. The daily baseline is rebased only
// through ResetDaily; nothing here infers a new session from wall-clock time.
type Monitor struct {
	cfg *config.Config

	mu              sync.Mutex
	startOfDayValue decimal.Decimal
	latest          model.RiskSnapshot
	history         []model.RiskSnapshot
}

func NewMonitor(cfg *config.Config) *Monitor {
	initial := decimal.NewFromFloat(cfg.InitialCapital)
	return &Monitor{
		cfg:             cfg,
		startOfDayValue: initial,
	}
}

// Update recomputes the snapshot from current cash and open positions,
// derives the risk metrics and appends the result to the bounded history.
func (m *Monitor) Update(open map[string]*model.Position, cash decimal.Decimal) model.RiskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	positionsValue := decimal.Zero
	used := 0
	for _, p := range open {
		if p.Status != model.PositionStatusOpen {
			continue
		}
		positionsValue = positionsValue.Add(p.MarketValue())
		used++
	}

	snap := model.RiskSnapshot{
		PortfolioValue: cash.Add(positionsValue),
		CashAvailable:  cash,
		TotalExposure:  positionsValue,
		PositionsUsed:  used,
		Timestamp:      time.Now().UTC(),
	}
	snap.DailyPnL = snap.PortfolioValue.Sub(m.startOfDayValue)

	snap = m.riskMetrics(snap)

	m.latest = snap
	m.history = append(m.history, snap)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}

	return snap
}

// RiskMetrics derives the percentage and limit fields for a snapshot
// without touching the monitor's stored state.
func (m *Monitor) RiskMetrics(snap model.RiskSnapshot) model.RiskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.riskMetrics(snap)
}

func (m *Monitor) riskMetrics(snap model.RiskSnapshot) model.RiskSnapshot {
	if snap.PortfolioValue.GreaterThan(decimal.Zero) {
		snap.TotalExposurePercent = snap.TotalExposure.Div(snap.PortfolioValue)
	}
	if m.startOfDayValue.GreaterThan(decimal.Zero) {
		snap.DailyPnLPercent = snap.DailyPnL.Div(m.startOfDayValue)
	}

	snap.MaxPositionSize = snap.PortfolioValue.Mul(m.cfg.MaxPositionSizeDec())
	snap.AvailablePositions = m.cfg.MaxPositions - snap.PositionsUsed
	if snap.AvailablePositions < 0 {
		snap.AvailablePositions = 0
	}

	snap.DailyLossLimitReached = snap.DailyPnLPercent.
		LessThanOrEqual(m.cfg.DailyLossLimitDec().Neg())

	return snap
}

// ResetDaily rebases the start-of-day value. It must be called exactly once
// per trading session; a stale baseline makes the loss limit evaluate
// against the wrong day.
func (m *Monitor) ResetDaily(value decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger.WithFields(logger.Fields{
		"previous": m.startOfDayValue.String(),
		"value":    value.String(),
	}).Info("daily baseline reset")

	m.startOfDayValue = value
}

// StartOfDayValue returns the current daily baseline.
func (m *Monitor) StartOfDayValue() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startOfDayValue
}

// Latest returns the most recent snapshot.
func (m *Monitor) Latest() model.RiskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// SharpeRatio over the per-snapshot portfolio returns in the bounded
// history, assuming a zero risk-free rate. Reporting only.
func (m *Monitor) SharpeRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var returns []float64
	for i := 1; i < len(m.history); i++ {
		prev, _ := m.history[i-1].PortfolioValue.Float64()
		cur, _ := m.history[i].PortfolioValue.Float64()
		if prev > 0 {
			returns = append(returns, (cur-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	avg := 0.0
	for _, r := range returns {
		avg += r
	}
	avg /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avg, 2)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev < 1e-10 {
		return 0
	}
	return avg / stdDev
}

// MaxDrawdown is the largest peak-to-trough decline across the bounded
// history, as a fraction of the peak. Reporting only.
func (m *Monitor) MaxDrawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	peak := 0.0
	maxDD := 0.0
	for _, snap := range m.history {
		v, _ := snap.PortfolioValue.Float64()
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
