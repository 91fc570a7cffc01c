package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the durable result of a closed position.
type TradeRecord struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Symbol string `gorm:"size:20;index" json:"symbol"`

	Quantity   int64           `gorm:"not null" json:"quantity"`
	EntryPrice decimal.Decimal `gorm:"type:numeric" json:"entry_price"`
	ExitPrice  decimal.Decimal `gorm:"type:numeric" json:"exit_price"`

	RealizedPnL decimal.Decimal `gorm:"type:numeric" json:"realized_pnl"`

	// ExitReason records what closed the trade: a sell signal, the initial
	// stop, the trailing stop or the end-of-day flatten.
	ExitReason string `gorm:"size:100" json:"exit_reason"`

	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`

	PositionID *uint `gorm:"index" json:"position_id,omitempty"`
	SignalID   *uint `gorm:"index" json:"signal_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}
