package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/broker"
	"stockbot/src/model"
	"stockbot/src/monitoring"
	"stockbot/src/risk"
)

const (
	fillPollInterval = 500 * time.Millisecond
	fillPollTimeout  = 15 * time.Second
)

// ExitReason values recorded on closed trades.
const (
	ExitReasonSignal       = "sell_signal"
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonTrailingStop = "trailing_stop"
	ExitReasonMarketClose  = "market_close"
)

// ---------------------------------------------------
// Signal processing
// ---------------------------------------------------

// processSignal sizes, validates and routes one candidate signal against
// the given snapshot. Rejections are terminal; queued signals wait for the
// operator; auto-eligible signals go straight to the broker.
func (e *Engine) processSignal(ctx context.Context, signal *model.Signal, snap model.RiskSnapshot) error {
	if e.store != nil {
		if err := e.store.SaveSignal(ctx, signal); err != nil {
			logger.WithError(err).Warn("failed to persist signal, continuing")
		}
	}

	if signal.Side == model.SideBuy {
		qty, err := e.calc.PositionSize(signal.EntryPrice, snap)
		if err != nil {
			return fmt.Errorf("sizing failed for %s: %w", signal.Symbol, err)
		}
		if qty == 0 {
			e.rejectSignal(ctx, signal, "cannot size a position within risk limits")
			return nil
		}
		signal.Quantity = qty
		signal.StopLoss = e.calc.StopLossPrice(signal.EntryPrice)
	} else {
		e.mu.Lock()
		if p, ok := e.positions[signal.Symbol]; ok {
			signal.Quantity = p.Quantity
		}
		e.mu.Unlock()
	}

	ok, reason := e.calc.Validate(signal, snap, e.openPositionsSnapshot())
	if !ok {
		monitoring.RecordRejection(string(reason))
		e.rejectSignal(ctx, signal, string(reason))
		return nil
	}

	if e.gate.Route(signal) {
		return e.executeSignal(ctx, signal)
	}

	logger.WithFields(logger.Fields{
		"symbol": signal.Symbol,
		"token":  signal.Token,
	}).Info("signal awaiting operator approval")
	return nil
}

func (e *Engine) rejectSignal(ctx context.Context, signal *model.Signal, reason string) {
	signal.Status = model.SignalStatusRejected
	signal.Reasoning = reason

	logger.WithFields(logger.Fields{
		"symbol": signal.Symbol,
		"side":   signal.Side,
		"reason": reason,
	}).Warn("signal rejected by risk gate")

	if e.store != nil && signal.ID != 0 {
		if err := e.store.UpdateSignalStatus(ctx, signal.ID, signal.Status); err != nil {
			logger.WithError(err).Warn("failed to persist signal rejection")
		}
	}
}

// executeSignal submits the order behind a validated signal. The entry
// path re-checks the breaker under the symbol lock so a trip between
// validation and submission still blocks the order.
func (e *Engine) executeSignal(ctx context.Context, signal *model.Signal) error {
	lock := e.symbolLock(signal.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if signal.Side == model.SideBuy && e.CircuitTripped() {
		e.rejectSignal(ctx, signal, string(risk.ReasonDailyLossLimit))
		return ErrCircuitOpen
	}

	dir := model.OrderDirectionEntry
	exitReason := ""
	if signal.Side == model.SideSell {
		dir = model.OrderDirectionExit
		exitReason = ExitReasonSignal
	}

	_, err := e.submitOrder(ctx, signal.Symbol, signal.Side, signal.Quantity, &signal.ID, dir, exitReason)
	if err != nil {
		signal.Status = model.SignalStatusFailed
		if e.store != nil && signal.ID != 0 {
			_ = e.store.UpdateSignalStatus(ctx, signal.ID, signal.Status)
		}
		return err
	}

	signal.Status = model.SignalStatusExecuted
	if e.store != nil && signal.ID != 0 {
		if updErr := e.store.UpdateSignalStatus(ctx, signal.ID, signal.Status); updErr != nil {
			logger.WithError(updErr).Warn("failed to persist signal execution")
		}
	}
	return nil
}

// ---------------------------------------------------
// Approvals
// ---------------------------------------------------

// ApproveSignal resolves a queued signal and, when the risk gate still
// accepts it, executes it. Returns false when the token is unknown or
// already resolved; calling twice is a no-op the second time.
func (e *Engine) ApproveSignal(ctx context.Context, token string) (bool, error) {
	signal, ok := e.gate.Approve(token)
	if !ok {
		return false, nil
	}

	if e.store != nil && signal.ID != 0 {
		if err := e.store.UpdateSignalStatus(ctx, signal.ID, signal.Status); err != nil {
			logger.WithError(err).Warn("failed to persist signal approval")
		}
	}

	// Conditions may have moved while the signal sat in the queue.
	snap := e.refreshSnapshot(ctx)
	valid, reason := e.calc.Validate(signal, snap, e.openPositionsSnapshot())
	if !valid {
		monitoring.RecordRejection(string(reason))
		e.rejectSignal(ctx, signal, string(reason))
		return true, nil
	}

	return true, e.executeSignal(ctx, signal)
}

// RejectSignal resolves a queued signal as rejected. Same single-use
// semantics as ApproveSignal.
func (e *Engine) RejectSignal(ctx context.Context, token string) bool {
	signal, ok := e.gate.Reject(token)
	if !ok {
		return false
	}

	if e.store != nil && signal.ID != 0 {
		if err := e.store.UpdateSignalStatus(ctx, signal.ID, signal.Status); err != nil {
			logger.WithError(err).Warn("failed to persist signal rejection")
		}
	}
	return true
}

// ---------------------------------------------------
// Order submission and fills
// ---------------------------------------------------

// submitOrder places a market order and tracks it until terminal. Exactly
// one in-flight order per symbol is allowed; a second submission is
// rejected before it reaches the broker.
func (e *Engine) submitOrder(
	ctx context.Context,
	symbol, side string,
	qty int64,
	signalID *uint,
	dir, exitReason string,
) (*model.Order, error) {

	if qty <= 0 {
		return nil, fmt.Errorf("cannot submit order for %s with quantity %d", symbol, qty)
	}

	order := &model.Order{
		SignalID:    signalID,
		Symbol:      symbol,
		Side:        side,
		OrderType:   "market",
		OrderDir:    dir,
		Quantity:    qty,
		Status:      model.OrderStatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	// Reserve the symbol slot before the broker call so a concurrent
	// submission cannot slip in while this one is in flight.
	e.mu.Lock()
	if _, exists := e.pending[symbol]; exists {
		e.mu.Unlock()
		return nil, ErrDuplicateOrder
	}
	e.pending[symbol] = order
	e.mu.Unlock()

	releaseSlot := func() {
		e.mu.Lock()
		delete(e.pending, symbol)
		e.mu.Unlock()
	}

	e.inflight.Add(1)
	defer e.inflight.Done()

	var placed broker.PlacedOrder
	err := e.policy.Do(ctx, "PlaceMarketOrder", func(ctx context.Context) error {
		var opErr error
		placed, opErr = e.broker.PlaceMarketOrder(ctx, symbol, qty, side)
		return opErr
	})
	if err != nil {
		releaseSlot()
		order.Status = model.OrderStatusRejected
		e.persistOrderUpdate(ctx, order, err.Error())
		monitoring.RecordError("order_submission")

		if broker.IsCritical(err) {
			e.TripCircuit("critical broker error: " + err.Error())
			if e.store != nil {
				e.store.CaptureException(ctx, "broker", "PlaceMarketOrder", err,
					map[string]interface{}{"symbol": symbol, "side": side})
			}
		}
		return nil, err
	}

	order.BrokerOrderID = placed.OrderID
	order.ClientOrderID = placed.ClientOrderID

	if e.store != nil {
		if storeErr := e.store.CreateOrder(ctx, order); storeErr != nil {
			logger.WithError(storeErr).Warn("failed to persist order, continuing")
		}
	}

	e.waitForFill(ctx, order, exitReason)
	return order, nil
}

// waitForFill polls the order until it reaches a terminal state or the
// poll window ends. A still-pending order keeps its symbol slot and is
// picked up again by the next trading cycle.
func (e *Engine) waitForFill(ctx context.Context, order *model.Order, exitReason string) {
	deadline := time.Now().Add(fillPollTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(fillPollInterval):
		}

		status, err := e.broker.GetOrderStatus(ctx, order.BrokerOrderID)
		if err != nil {
			logger.WithError(err).WithField("order_id", order.BrokerOrderID).
				Warn("order status poll failed")
			continue
		}

		if status.Status == model.OrderStatusPending {
			continue
		}

		e.applyTerminalStatus(ctx, order, status, exitReason)
		return
	}

	logger.WithField("order_id", order.BrokerOrderID).
		Warn("order still pending after poll window")
}

// pollPendingOrders re-checks every in-flight order. Called at the top of
// each trading cycle so orders that outlived their poll window resolve.
func (e *Engine) pollPendingOrders(ctx context.Context) {
	e.mu.Lock()
	orders := make([]*model.Order, 0, len(e.pending))
	for _, o := range e.pending {
		orders = append(orders, o)
	}
	e.mu.Unlock()

	for _, order := range orders {
		status, err := e.broker.GetOrderStatus(ctx, order.BrokerOrderID)
		if err != nil {
			logger.WithError(err).WithField("order_id", order.BrokerOrderID).
				Warn("pending order poll failed")
			continue
		}
		if status.Status == model.OrderStatusPending {
			continue
		}

		exitReason := ""
		if order.OrderDir == model.OrderDirectionExit {
			exitReason = ExitReasonSignal
		}
		e.applyTerminalStatus(ctx, order, status, exitReason)
	}
}

// applyTerminalStatus finalizes an order and drives the position
// lifecycle: a filled buy opens a position, a filled sell closes one.
func (e *Engine) applyTerminalStatus(ctx context.Context, order *model.Order, status broker.OrderStatus, exitReason string) {
	e.mu.Lock()
	delete(e.pending, order.Symbol)
	e.mu.Unlock()

	order.Status = status.Status
	order.FilledQuantity = status.FilledQty
	if !status.FilledPrice.IsZero() {
		price := status.FilledPrice
		order.FilledPrice = &price
	}
	order.FilledAt = status.FilledAt

	e.persistOrderUpdate(ctx, order, order.Status)

	if order.Status != model.OrderStatusFilled {
		if order.FilledQuantity == 0 {
			logger.WithFields(logger.Fields{
				"order_id": order.BrokerOrderID,
				"symbol":   order.Symbol,
				"status":   order.Status,
			}).Warn("order reached terminal state without fill")
			return
		}
		// A cancelled or expired order can still carry a partial fill.
		// Those shares are real: book them so they get a stop and the
		// cash ledger stays honest.
		logger.WithFields(logger.Fields{
			"order_id":   order.BrokerOrderID,
			"symbol":     order.Symbol,
			"status":     order.Status,
			"filled_qty": order.FilledQuantity,
			"asked_qty":  order.Quantity,
		}).Warn("terminal order carries a partial fill, booking filled shares")
	}

	monitoring.RecordTrade(order.Symbol, order.Side)

	if order.Side == model.SideBuy {
		e.openPosition(ctx, order, status)
		return
	}
	e.closePosition(ctx, order, status, exitReason)
}

func (e *Engine) persistOrderUpdate(ctx context.Context, order *model.Order, reason string) {
	if e.store == nil || order.ID == 0 {
		return
	}
	if err := e.store.UpdateOrder(ctx, order, reason); err != nil {
		logger.WithError(err).Warn("failed to persist order update, continuing")
	}
}

// ---------------------------------------------------
// Position lifecycle
// ---------------------------------------------------

func (e *Engine) openPosition(ctx context.Context, order *model.Order, status broker.OrderStatus) {
	fillPrice := status.FilledPrice
	stop := e.calc.StopLossPrice(fillPrice)

	entryTime := time.Now().UTC()
	if status.FilledAt != nil {
		entryTime = *status.FilledAt
	}

	position := &model.Position{
		Symbol:        order.Symbol,
		Quantity:      status.FilledQty,
		EntryPrice:    fillPrice,
		CurrentPrice:  fillPrice,
		StopLossPrice: stop,
		Status:        model.PositionStatusOpen,
		EntryTime:     entryTime,
		OrderID:       &order.ID,
		SignalID:      order.SignalID,
	}

	cost := fillPrice.Mul(decimal.NewFromInt(status.FilledQty))

	e.mu.Lock()
	e.positions[order.Symbol] = position
	e.cash = e.cash.Sub(cost)
	e.mu.Unlock()

	e.stops.Register(order.Symbol, fillPrice, stop)

	if e.store != nil {
		if err := e.store.CreatePosition(ctx, position); err != nil {
			logger.WithError(err).Warn("failed to persist position, continuing")
		}
	}

	logger.WithFields(logger.Fields{
		"symbol": order.Symbol,
		"qty":    status.FilledQty,
		"entry":  fillPrice.String(),
		"stop":   stop.String(),
	}).Info("position opened")
}

func (e *Engine) closePosition(ctx context.Context, order *model.Order, status broker.OrderStatus, exitReason string) {
	exitPrice := status.FilledPrice
	exitQty := status.FilledQty
	exitTime := time.Now().UTC()
	if status.FilledAt != nil {
		exitTime = *status.FilledAt
	}

	// Settle only what actually sold. A partially filled exit reduces the
	// position and keeps the remainder protected by its stop.
	e.mu.Lock()
	position, ok := e.positions[order.Symbol]
	var remaining int64
	var closed model.Position
	if ok {
		if exitQty > position.Quantity {
			exitQty = position.Quantity
		}
		remaining = position.Quantity - exitQty
		e.cash = e.cash.Add(exitPrice.Mul(decimal.NewFromInt(exitQty)))
		if remaining > 0 {
			position.Quantity = remaining
		} else {
			delete(e.positions, order.Symbol)
		}
		closed = *position
	}
	e.mu.Unlock()

	if !ok {
		e.stops.Unregister(order.Symbol)
		logger.WithField("symbol", order.Symbol).
			Warn("sell fill without a tracked position")
		return
	}
	if remaining == 0 {
		e.stops.Unregister(order.Symbol)
	}

	realized := exitPrice.Sub(closed.EntryPrice).
		Mul(decimal.NewFromInt(exitQty))

	if exitReason == "" {
		exitReason = ExitReasonSignal
	}

	trade := &model.TradeRecord{
		Symbol:      closed.Symbol,
		Quantity:    exitQty,
		EntryPrice:  closed.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnL: realized,
		ExitReason:  exitReason,
		EntryTime:   closed.EntryTime,
		ExitTime:    exitTime,
		PositionID:  &closed.ID,
		SignalID:    order.SignalID,
	}

	if e.store != nil {
		if err := e.store.CreateTrade(ctx, trade); err != nil {
			logger.WithError(err).Warn("failed to persist trade record, continuing")
		}
		if closed.ID != 0 {
			if remaining == 0 {
				if err := e.store.ClosePosition(ctx, closed.ID, exitTime); err != nil {
					logger.WithError(err).Warn("failed to persist position close, continuing")
				}
			} else if err := e.store.SavePosition(ctx, &closed); err != nil {
				logger.WithError(err).Warn("failed to persist position reduction, continuing")
			}
		}
	}

	logger.WithFields(logger.Fields{
		"symbol":    closed.Symbol,
		"qty":       exitQty,
		"remaining": remaining,
		"exit":      exitPrice.String(),
		"pnl":       realized.String(),
		"reason":    exitReason,
	}).Info("position closed")
}

// closeTriggered sells out a position whose stop was breached. Runs under
// the symbol lock so it cannot race an entry for the same symbol.
func (e *Engine) closeTriggered(ctx context.Context, symbol string, exitReason string) {
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	position, ok := e.positions[symbol]
	var qty int64
	if ok {
		qty = position.Quantity
	}
	e.mu.Unlock()

	if !ok {
		return
	}

	_, err := e.submitOrder(ctx, symbol, model.SideSell, qty, position.SignalID,
		model.OrderDirectionExit, exitReason)
	if err != nil {
		logger.WithError(err).WithField("symbol", symbol).
			Error("stop-triggered exit failed")
		monitoring.RecordError("stop_exit")
		if e.store != nil {
			e.store.CaptureException(ctx, "engine", "closeTriggered", err,
				map[string]interface{}{"symbol": symbol, "reason": exitReason})
		}
	}
}
