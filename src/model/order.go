package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle. Every state other than pending is terminal and final:
// a filled buy creates a position, a filled sell closes one.
const (
	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
	OrderStatusExpired   = "expired"
)

const (
	OrderDirectionEntry = "entry"
	OrderDirectionExit  = "exit"
)

// Order tracks one order submitted to the broker.
type Order struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	SignalID *uint `gorm:"index" json:"signal_id,omitempty"`

	// BrokerOrderID is the identifier returned by the broker on submission.
	BrokerOrderID string `gorm:"size:255;index" json:"broker_order_id"`
	ClientOrderID string `gorm:"size:255" json:"client_order_id"`

	Symbol    string `gorm:"size:20;index" json:"symbol"`
	Side      string `gorm:"size:10;not null" json:"side"`
	OrderType string `gorm:"size:20;not null;default:market" json:"order_type"`
	OrderDir  string `gorm:"size:10;not null" json:"order_dir"`

	Quantity int64  `gorm:"not null" json:"quantity"`
	Status   string `gorm:"size:50;not null;default:pending" json:"status"`

	FilledQuantity int64            `json:"filled_quantity"`
	FilledPrice    *decimal.Decimal `gorm:"type:numeric" json:"filled_price,omitempty"`
	FilledAt       *time.Time       `json:"filled_at,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// One order accumulates a log row per status transition.
	Logs []OrderLog `gorm:"foreignKey:OrderID" json:"order_logs,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// Terminal reports whether the order has reached a final state.
func (o *Order) Terminal() bool {
	return o.Status != OrderStatusPending
}

// OrderLog is a snapshot of an order at the moment of a status change.
type OrderLog struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderID uint   `gorm:"index" json:"order_id"`
	Order   *Order `gorm:"constraint:OnDelete:CASCADE" json:"order,omitempty"`

	Symbol   string `gorm:"size:20" json:"symbol"`
	Side     string `gorm:"size:10" json:"side"`
	Quantity int64  `json:"quantity"`
	Status   string `gorm:"size:50;not null" json:"status"`
	Reason   string `gorm:"size:255" json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}

func (OrderLog) TableName() string {
	return "order_logs"
}
