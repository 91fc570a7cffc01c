package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/broker"
	"stockbot/src/config"
	"stockbot/src/gate"
	"stockbot/src/marketdata"
	"stockbot/src/model"
	"stockbot/src/monitoring"
	"stockbot/src/portfolio"
	"stockbot/src/predictor"
	"stockbot/src/retrypolicy"
	"stockbot/src/risk"
	"stockbot/src/stoploss"
)

var (
	// ErrDuplicateOrder guards against double exposure: one in-flight
	// order per symbol at a time.
	ErrDuplicateOrder = errors.New("an order is already in flight for this symbol")

	// ErrCircuitOpen means the daily-loss breaker tripped. Exits still
	// run; new entries do not.
	ErrCircuitOpen = errors.New("circuit breaker tripped, new entries disabled")
)

// Store is the persistence surface the engine writes through. Failures are
// logged and captured, never allowed to block trading; the in-memory state
// owned by the engine stays authoritative for the process lifetime.
type Store interface {
	SaveSignal(ctx context.Context, signal *model.Signal) error
	UpdateSignalStatus(ctx context.Context, id uint, status string) error
	CreateOrder(ctx context.Context, order *model.Order) error
	UpdateOrder(ctx context.Context, order *model.Order, reason string) error
	CreatePosition(ctx context.Context, position *model.Position) error
	SavePosition(ctx context.Context, position *model.Position) error
	ClosePosition(ctx context.Context, id uint, exitTime time.Time) error
	CreateTrade(ctx context.Context, trade *model.TradeRecord) error
	SaveBotState(ctx context.Context, state *model.BotState) error
	CaptureException(ctx context.Context, module, method string, err error, extra map[string]interface{})
}

// Deps are the collaborators the engine is constructed with. Everything
// that crosses a process boundary is an interface.
type Deps struct {
	Calculator *risk.Calculator
	Stops      *stoploss.Manager
	Monitor    *portfolio.Monitor
	Gate       *gate.Gate
	Broker     broker.Broker
	MarketData marketdata.MarketData
	Predictor  predictor.Predictor
	Store      Store
}

// Engine owns all mutable trading state: open positions, in-flight orders,
// the circuit breaker and the job loops. All access goes through its
// methods; per-symbol locks serialize stop evaluation against entry
// submission for the same symbol while distinct symbols proceed freely.
type Engine struct {
	cfg    *config.Config
	calc   *risk.Calculator
	stops  *stoploss.Manager
	mon    *portfolio.Monitor
	gate   *gate.Gate
	broker broker.Broker
	data   marketdata.MarketData
	pred   predictor.Predictor
	store  Store
	policy retrypolicy.Policy

	mu        sync.Mutex
	positions map[string]*model.Position
	pending   map[string]*model.Order
	cash      decimal.Decimal
	state     model.BotState
	quotes    map[string]quote

	symMu   sync.Mutex
	symLock map[string]*sync.Mutex

	// inflight tracks broker calls so shutdown can wait for them instead
	// of abandoning submitted orders mid-flight.
	inflight sync.WaitGroup

	loopCancel context.CancelFunc
	loops      sync.WaitGroup
}

func New(cfg *config.Config, deps Deps) *Engine {
	return &Engine{
		cfg:    cfg,
		calc:   deps.Calculator,
		stops:  deps.Stops,
		mon:    deps.Monitor,
		gate:   deps.Gate,
		broker: deps.Broker,
		data:   deps.MarketData,
		pred:   deps.Predictor,
		store:  deps.Store,
		policy: retrypolicy.Default(func(err error) bool {
			return !broker.IsCritical(err)
		}),
		positions: make(map[string]*model.Position),
		pending:   make(map[string]*model.Order),
		quotes:    make(map[string]quote),
		cash:      decimal.NewFromFloat(cfg.InitialCapital),
		state:     model.BotState{Mode: cfg.Mode},
		symLock:   make(map[string]*sync.Mutex),
	}
}

// symbolLock returns the mutex serializing all order activity for a symbol.
func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.symMu.Lock()
	defer e.symMu.Unlock()

	l, ok := e.symLock[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.symLock[symbol] = l
	}
	return l
}

// ---------------------------------------------------
// Streamed quotes
// ---------------------------------------------------

// quoteStaleness bounds how old a streamed quote may be before the
// position monitor falls back to a REST lookup.
const quoteStaleness = 5 * time.Second

type quote struct {
	price decimal.Decimal
	at    time.Time
}

// UpdateQuote folds a streamed trade price into the engine's quote cache.
// The position monitor prefers a fresh streamed quote over a REST lookup,
// so streamed ticks drive stop evaluation between polls.
func (e *Engine) UpdateQuote(symbol string, price decimal.Decimal) {
	if price.Sign() <= 0 {
		return
	}
	e.mu.Lock()
	e.quotes[symbol] = quote{price: price, at: time.Now()}
	e.mu.Unlock()
}

// freshQuote returns a streamed price no older than quoteStaleness.
func (e *Engine) freshQuote(symbol string) (decimal.Decimal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.quotes[symbol]
	if !ok || time.Since(q.at) > quoteStaleness {
		return decimal.Decimal{}, false
	}
	return q.price, true
}

// ---------------------------------------------------
// Circuit breaker
// ---------------------------------------------------

// TripCircuit latches the breaker. It stays tripped until ResetDaily or an
// operator restart; there is no time-based auto-clear.
func (e *Engine) TripCircuit(reason string) {
	e.mu.Lock()
	already := e.state.CircuitBreakerTripped
	e.state.CircuitBreakerTripped = true
	state := e.state
	e.mu.Unlock()

	if already {
		return
	}

	monitoring.SetCircuitBreaker(true)
	logger.WithField("reason", reason).
		Error("circuit breaker tripped, new entries halted until daily reset")

	e.persistState(context.Background(), state)
}

// CircuitTripped reports the breaker state.
func (e *Engine) CircuitTripped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.CircuitBreakerTripped
}

// ResetDaily rebases the session baseline and clears the breaker. This is
// the one auditable reset path; nothing clears the breaker implicitly.
func (e *Engine) ResetDaily(ctx context.Context, value decimal.Decimal) {
	e.mon.ResetDaily(value)

	e.mu.Lock()
	e.state.CircuitBreakerTripped = false
	now := time.Now().UTC()
	e.state.LastDailyReset = &now
	state := e.state
	e.mu.Unlock()

	monitoring.SetCircuitBreaker(false)
	e.persistState(ctx, state)
}

// ---------------------------------------------------
// Operator controls
// ---------------------------------------------------

// SetRunning pauses or resumes the job bodies without tearing the loops
// down. The operator surface exposes this as start/stop.
func (e *Engine) SetRunning(ctx context.Context, running bool) {
	e.mu.Lock()
	e.state.Running = running
	state := e.state
	e.mu.Unlock()

	logger.WithField("running", running).Info("bot running flag changed")
	e.persistState(ctx, state)
}

func (e *Engine) running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Running
}

func (e *Engine) persistState(ctx context.Context, state model.BotState) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveBotState(ctx, &state); err != nil {
		logger.WithError(err).Error("failed to persist bot state")
	}
}

// ---------------------------------------------------
// Read surface
// ---------------------------------------------------

// Status is what the operator API reports.
type Status struct {
	Running               bool               `json:"running"`
	Mode                  string             `json:"mode"`
	CircuitBreakerTripped bool               `json:"circuit_breaker_tripped"`
	OpenPositions         int                `json:"open_positions"`
	PendingOrders         int                `json:"pending_orders"`
	PendingApprovals      int                `json:"pending_approvals"`
	Snapshot              model.RiskSnapshot `json:"snapshot"`
	SharpeRatio           float64            `json:"sharpe_ratio"`
	MaxDrawdown           float64            `json:"max_drawdown"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	state := e.state
	openCount := len(e.positions)
	pendingCount := len(e.pending)
	e.mu.Unlock()

	return Status{
		Running:               state.Running,
		Mode:                  state.Mode,
		CircuitBreakerTripped: state.CircuitBreakerTripped,
		OpenPositions:         openCount,
		PendingOrders:         pendingCount,
		PendingApprovals:      len(e.gate.Pending()),
		Snapshot:              e.mon.Latest(),
		SharpeRatio:           e.mon.SharpeRatio(),
		MaxDrawdown:           e.mon.MaxDrawdown(),
	}
}

// Positions returns a copy of the open positions.
func (e *Engine) Positions() []model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	return out
}

// PendingSignals returns the approval queue.
func (e *Engine) PendingSignals() []model.Signal {
	return e.gate.Pending()
}

// openPositionsSnapshot copies the map for components that read it.
func (e *Engine) openPositionsSnapshot() map[string]*model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]*model.Position, len(e.positions))
	for sym, p := range e.positions {
		cp := *p
		out[sym] = &cp
	}
	return out
}

// refreshSnapshot pulls the account from the broker and recomputes the
// risk snapshot. Falls back to local cash accounting when the broker is
// unreachable.
func (e *Engine) refreshSnapshot(ctx context.Context) model.RiskSnapshot {
	var account broker.Account
	err := e.policy.Do(ctx, "GetAccount", func(ctx context.Context) error {
		var opErr error
		account, opErr = e.broker.GetAccount(ctx)
		return opErr
	})

	e.mu.Lock()
	if err == nil {
		e.cash = account.Cash
	} else {
		logger.WithError(err).Warn("account refresh failed, using local cash accounting")
		monitoring.RecordError("account_refresh")
	}
	cash := e.cash
	e.mu.Unlock()

	snap := e.mon.Update(e.openPositionsSnapshot(), cash)
	monitoring.UpdatePortfolio(snap.PortfolioValue.InexactFloat64(), snap.DailyPnL.InexactFloat64())
	return snap
}
