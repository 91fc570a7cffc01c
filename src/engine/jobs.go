package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/model"
	"stockbot/src/monitoring"
	"stockbot/src/stoploss"
)

// ---------------------------------------------------
// Job loops
// ---------------------------------------------------

// Start launches the ticker-driven jobs: the trading cycle, the position
// monitor and the market-close watcher. It returns immediately; Stop
// tears the loops down and waits for in-flight broker calls.
func (e *Engine) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	e.loopCancel = cancel

	e.SetRunning(loopCtx, true)

	e.loops.Add(3)
	go e.runLoop(loopCtx, "trading_cycle", e.cfg.TradingCyclePeriod, e.TradingCycle)
	go e.runLoop(loopCtx, "position_monitor", e.cfg.PositionMonitorPeriod, e.PositionMonitor)
	go e.marketCloseLoop(loopCtx)

	logger.WithFields(logger.Fields{
		"mode":    e.cfg.Mode,
		"symbols": e.cfg.Symbols,
	}).Info("engine started")
}

// Stop cancels the loops and waits for them plus any in-flight broker
// calls, so a submitted order is never abandoned mid-flight.
func (e *Engine) Stop() {
	if e.loopCancel != nil {
		e.loopCancel()
	}
	e.loops.Wait()
	e.inflight.Wait()

	e.SetRunning(context.Background(), false)
	logger.Info("engine stopped")
}

func (e *Engine) runLoop(ctx context.Context, name string, period time.Duration, job func(context.Context)) {
	defer e.loops.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.WithField("loop", name).Info("loop stopped")
			return
		case <-ticker.C:
			if !e.running() {
				continue
			}
			job(ctx)
		}
	}
}

// marketCloseLoop watches the market clock and fires the end-of-day
// handler once per open-to-closed transition.
func (e *Engine) marketCloseLoop(ctx context.Context) {
	defer e.loops.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	wasOpen := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			open, err := e.data.IsMarketOpen(ctx)
			if err != nil {
				logger.WithError(err).Warn("market clock check failed")
				continue
			}
			if wasOpen && !open && e.running() {
				e.MarketClose(ctx)
			}
			wasOpen = open
		}
	}
}

// ---------------------------------------------------
// Trading cycle
// ---------------------------------------------------

// TradingCycle runs one pass: resolve in-flight orders, refresh the risk
// snapshot, then evaluate a prediction per symbol. A tripped breaker
// skips the whole entry path; exits keep running in the position monitor.
func (e *Engine) TradingCycle(ctx context.Context) {
	open, err := e.data.IsMarketOpen(ctx)
	if err != nil {
		logger.WithError(err).Warn("skipping trading cycle, market clock unavailable")
		return
	}
	if !open {
		logger.Debug("market closed, skipping trading cycle")
		return
	}

	e.pollPendingOrders(ctx)

	snap := e.refreshSnapshot(ctx)
	if snap.DailyLossLimitReached {
		e.TripCircuit("daily loss limit reached")
	}
	if e.CircuitTripped() {
		logger.Warn("circuit breaker tripped, trading cycle disabled")
		return
	}

	for _, symbol := range e.cfg.Symbols {
		e.evaluateSymbol(ctx, symbol, snap)
	}
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string, snap model.RiskSnapshot) {
	pred, err := e.pred.Predict(ctx, symbol)
	if err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("prediction unavailable")
		monitoring.RecordError("prediction")
		return
	}

	price, err := e.data.LatestPrice(ctx, symbol)
	if err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("price unavailable")
		monitoring.RecordError("market_data")
		return
	}
	monitoring.UpdatePrice(symbol, price.InexactFloat64())

	e.mu.Lock()
	existing := e.positions[symbol]
	e.mu.Unlock()

	signal := e.gate.Evaluate(pred, price, existing)
	if signal == nil {
		return
	}

	if err := e.processSignal(ctx, signal, snap); err != nil {
		logger.WithError(err).WithField("symbol", symbol).Error("signal processing failed")
	}
}

// ---------------------------------------------------
// Position monitor
// ---------------------------------------------------

// PositionMonitor runs one monitoring tick: refresh prices for every open
// position, evaluate stops and close anything that triggered. This job
// keeps running while the breaker is tripped; exiting is always allowed.
func (e *Engine) PositionMonitor(ctx context.Context) {
	positions := e.openPositionsSnapshot()
	if len(positions) == 0 {
		return
	}

	prices := make(map[string]decimal.Decimal, len(positions))
	for symbol := range positions {
		price, ok := e.freshQuote(symbol)
		if !ok {
			var err error
			price, err = e.data.LatestPrice(ctx, symbol)
			if err != nil {
				logger.WithError(err).WithField("symbol", symbol).
					Warn("price unavailable for position monitor")
				continue
			}
		}
		prices[symbol] = price
		monitoring.UpdatePrice(symbol, price.InexactFloat64())
	}

	triggers := e.stops.Evaluate(prices)
	e.applyPrices(ctx, prices)

	for _, trig := range triggers {
		reason := ExitReasonStopLoss
		if trig.Reason == stoploss.TriggerReasonTrailingStop {
			reason = ExitReasonTrailingStop
		}

		logger.WithFields(logger.Fields{
			"symbol": trig.Symbol,
			"price":  trig.Price.String(),
			"reason": trig.Reason,
		}).Warn("stop triggered, closing position")

		e.closeTriggered(ctx, trig.Symbol, reason)
	}

	e.mu.Lock()
	cash := e.cash
	e.mu.Unlock()

	snap := e.mon.Update(e.openPositionsSnapshot(), cash)
	monitoring.UpdatePortfolio(snap.PortfolioValue.InexactFloat64(), snap.DailyPnL.InexactFloat64())
	if snap.DailyLossLimitReached {
		e.TripCircuit("daily loss limit reached")
	}
}

// applyPrices folds fresh prices and trailing-stop levels back into the
// tracked positions.
func (e *Engine) applyPrices(ctx context.Context, prices map[string]decimal.Decimal) {
	e.mu.Lock()
	var dirty []*model.Position
	for symbol, price := range prices {
		p, ok := e.positions[symbol]
		if !ok {
			continue
		}
		p.CurrentPrice = price
		if ts, ok := e.stops.TrailingStop(symbol); ok {
			p.TrailingStopPrice = &ts
		}
		cp := *p
		dirty = append(dirty, &cp)
	}
	e.mu.Unlock()

	if e.store == nil {
		return
	}
	for _, p := range dirty {
		if p.ID == 0 {
			continue
		}
		if err := e.store.SavePosition(ctx, p); err != nil {
			logger.WithError(err).Warn("failed to persist position update, continuing")
		}
	}
}

// ---------------------------------------------------
// Market close
// ---------------------------------------------------

// MarketClose is the end-of-day handler: cancel whatever is still in
// flight, flatten every open position, then rebase the daily baseline.
// The baseline reset is the explicit operation that clears the breaker.
func (e *Engine) MarketClose(ctx context.Context) {
	logger.Info("market close handler running")

	// Cancel in-flight orders first so a late fill cannot cross the
	// position flattening below.
	e.mu.Lock()
	pending := make([]*model.Order, 0, len(e.pending))
	for _, o := range e.pending {
		pending = append(pending, o)
	}
	e.mu.Unlock()

	for _, order := range pending {
		err := e.policy.Do(ctx, "CancelOrder", func(ctx context.Context) error {
			return e.broker.CancelOrder(ctx, order.BrokerOrderID)
		})
		if err != nil {
			logger.WithError(err).WithField("order_id", order.BrokerOrderID).
				Error("failed to cancel order at market close")
			continue
		}

		e.mu.Lock()
		delete(e.pending, order.Symbol)
		e.mu.Unlock()

		order.Status = model.OrderStatusCancelled
		e.persistOrderUpdate(ctx, order, "market close")
	}

	// Cancel queued approvals; they would execute against tomorrow's
	// prices otherwise.
	for _, signal := range e.gate.Pending() {
		if _, ok := e.gate.Reject(signal.Token); ok && e.store != nil && signal.ID != 0 {
			if err := e.store.UpdateSignalStatus(ctx, signal.ID, model.SignalStatusCancelled); err != nil {
				logger.WithError(err).Warn("failed to persist signal cancellation")
			}
		}
	}

	for _, position := range e.Positions() {
		e.closeTriggered(ctx, position.Symbol, ExitReasonMarketClose)
	}

	e.mu.Lock()
	cash := e.cash
	e.mu.Unlock()

	snap := e.mon.Update(e.openPositionsSnapshot(), cash)
	e.ResetDaily(ctx, snap.PortfolioValue)

	logger.WithFields(logger.Fields{
		"portfolio_value": snap.PortfolioValue.String(),
		"daily_pnl":       snap.DailyPnL.String(),
		"sharpe":          e.mon.SharpeRatio(),
		"max_drawdown":    e.mon.MaxDrawdown(),
	}).Info("session closed, daily baseline rebased")
}
