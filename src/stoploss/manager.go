package stoploss

import (
	"sync"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/risk"
)

const (
	TriggerReasonStopLoss     = "stop_loss"
	TriggerReasonTrailingStop = "trailing_stop"
)

// Trigger reports a position whose stop was breached on the last tick. The
// manager never talks to the broker; closing is the caller's job.
type Trigger struct {
	Symbol string
	Price  decimal.Decimal
	Reason string
}

// state is the per-symbol stop machine. The trailing stop starts unset; once
// activated it only ratchets upward.
type state struct {
	entryPrice    decimal.Decimal
	stopLossPrice decimal.Decimal
	trailingStop  *decimal.Decimal
	lastPrice     decimal.Decimal
}

// Manager tracks the stop state of every open position and evaluates each
// price tick against it. Safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	calc   *risk.Calculator
	states map[string]*state
}

func NewManager(calc *risk.Calculator) *Manager {
	return &Manager{
		calc:   calc,
		states: make(map[string]*state),
	}
}

// Register starts tracking a symbol. Re-registering an already-tracked
// symbol is a no-op, so a replayed fill cannot reset an active trailing stop.
func (m *Manager) Register(symbol string, entry, stopLoss decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[symbol]; ok {
		return
	}

	m.states[symbol] = &state{
		entryPrice:    entry,
		stopLossPrice: stopLoss,
		lastPrice:     entry,
	}

	logger.WithFields(logger.Fields{
		"symbol": symbol,
		"entry":  entry.String(),
		"stop":   stopLoss.String(),
	}).Info("stop tracking registered")
}

// Unregister stops tracking a symbol. Unknown symbols are ignored.
func (m *Manager) Unregister(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, symbol)
}

// Tracked reports whether the symbol currently has stop state.
func (m *Manager) Tracked(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[symbol]
	return ok
}

// TrailingStop returns the current trailing stop for a symbol, if one has
// been activated.
func (m *Manager) TrailingStop(symbol string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[symbol]
	if !ok || st.trailingStop == nil {
		return decimal.Zero, false
	}
	return *st.trailingStop, true
}

// Evaluate applies one round of price ticks: activate the trailing stop when
// the gain threshold is reached, ratchet it upward on new highs, then check
// for breaches. The trailing stop is checked before the initial stop since,
// once active, it is always the higher of the two.
func (m *Manager) Evaluate(prices map[string]decimal.Decimal) []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()

	var triggered []Trigger

	for symbol, st := range m.states {
		price, ok := prices[symbol]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		st.lastPrice = price

		if st.trailingStop == nil {
			if m.calc.ShouldActivateTrailing(st.entryPrice, price) {
				ts := m.calc.TrailingStopPrice(price)
				st.trailingStop = &ts
				logger.WithFields(logger.Fields{
					"symbol":        symbol,
					"price":         price.String(),
					"trailing_stop": ts.String(),
				}).Info("trailing stop activated")
			}
		} else {
			candidate := m.calc.TrailingStopPrice(price)
			if candidate.GreaterThan(*st.trailingStop) {
				st.trailingStop = &candidate
			}
		}

		if st.trailingStop != nil && price.LessThanOrEqual(*st.trailingStop) {
			triggered = append(triggered, Trigger{
				Symbol: symbol,
				Price:  price,
				Reason: TriggerReasonTrailingStop,
			})
			continue
		}

		if price.LessThanOrEqual(st.stopLossPrice) {
			triggered = append(triggered, Trigger{
				Symbol: symbol,
				Price:  price,
				Reason: TriggerReasonStopLoss,
			})
		}
	}

	return triggered
}
