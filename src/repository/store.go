package repository

import (
	"context"
	"time"

	"stockbot/src/model"
)

// Store bundles the repositories behind the single persistence surface the
// engine uses. Every method follows the same rule: failures are logged and
// captured, never propagated into the trading path.
type Store struct {
	Signals    *SignalRepository
	Orders     *OrderRepository
	Positions  *PositionRepository
	Trades     *TradeRepository
	BotState   *BotStateRepository
	Exceptions *ExceptionRepository
}

// NewStore wires every repository against the main database.
func NewStore() *Store {
	return &Store{
		Signals:    NewSignalRepository(),
		Orders:     NewOrderRepository(),
		Positions:  NewPositionRepository(),
		Trades:     NewTradeRepository(),
		BotState:   NewBotStateRepository(),
		Exceptions: NewExceptionRepository(),
	}
}

func (s *Store) SaveSignal(ctx context.Context, signal *model.Signal) error {
	return s.Signals.Create(ctx, signal)
}

func (s *Store) UpdateSignalStatus(ctx context.Context, id uint, status string) error {
	return s.Signals.UpdateStatus(ctx, id, status)
}

func (s *Store) CreateOrder(ctx context.Context, order *model.Order) error {
	return s.Orders.CreateWithAutoLog(ctx, order)
}

func (s *Store) UpdateOrder(ctx context.Context, order *model.Order, reason string) error {
	return s.Orders.UpdateStatusWithAutoLog(ctx, order, reason)
}

func (s *Store) CreatePosition(ctx context.Context, position *model.Position) error {
	return s.Positions.Create(ctx, position)
}

func (s *Store) SavePosition(ctx context.Context, position *model.Position) error {
	return s.Positions.Save(ctx, position)
}

func (s *Store) ClosePosition(ctx context.Context, id uint, exitTime time.Time) error {
	return s.Positions.Close(ctx, id, exitTime)
}

func (s *Store) CreateTrade(ctx context.Context, trade *model.TradeRecord) error {
	return s.Trades.Create(ctx, trade)
}

func (s *Store) SaveBotState(ctx context.Context, state *model.BotState) error {
	return s.BotState.Save(ctx, state)
}

func (s *Store) CaptureException(ctx context.Context, module, method string, err error, extra map[string]interface{}) {
	Capture(ctx, s.Exceptions, "trading_engine", module, method, "error", err, extra)
}
