package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// One explicit result struct per call. Broker responses are converted into
// these at the boundary; nothing downstream sees raw payloads.

type Account struct {
	Cash        decimal.Decimal
	Equity      decimal.Decimal
	BuyingPower decimal.Decimal
}

type PlacedOrder struct {
	OrderID       string
	ClientOrderID string
	SubmittedAt   time.Time
}

type OrderStatus struct {
	OrderID     string
	Status      string // model.OrderStatus* values
	FilledQty   int64
	FilledPrice decimal.Decimal
	FilledAt    *time.Time
}

type BrokerPosition struct {
	Symbol       string
	Quantity     int64
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
}

// Broker is the trading venue boundary. All calls are blocking I/O and are
// expected to be wrapped with a retry policy by the caller.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	PlaceMarketOrder(ctx context.Context, symbol string, qty int64, side string) (PlacedOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
	GetOpenPositions(ctx context.Context) ([]BrokerPosition, error)
	ClosePosition(ctx context.Context, symbol string) error
}
