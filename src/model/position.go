package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is a long equity holding. At most one open position may exist
// per symbol; the engine enforces this before any entry order is submitted.
type Position struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Symbol string `gorm:"size:20;index" json:"symbol"`

	Quantity     int64           `gorm:"not null" json:"quantity"`
	EntryPrice   decimal.Decimal `gorm:"type:numeric" json:"entry_price"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric" json:"current_price"`

	// StopLossPrice is fixed at entry. TrailingStopPrice starts unset and,
	// once activated, only ever moves up.
	StopLossPrice     decimal.Decimal  `gorm:"type:numeric" json:"stop_loss_price"`
	TrailingStopPrice *decimal.Decimal `gorm:"type:numeric" json:"trailing_stop_price,omitempty"`

	Status    string     `gorm:"size:50;not null;default:open" json:"status"`
	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`

	OrderID  *uint `gorm:"index" json:"order_id,omitempty"`
	SignalID *uint `gorm:"index" json:"signal_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarketValue is quantity times the last observed price.
func (p *Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL against the last observed price.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.EntryPrice).Mul(decimal.NewFromInt(p.Quantity))
}

// EffectiveStop is the stop the position currently trades against: the
// trailing stop once set (it is always >= the initial stop after
// activation), otherwise the initial stop-loss.
func (p *Position) EffectiveStop() decimal.Decimal {
	if p.TrailingStopPrice != nil {
		return *p.TrailingStopPrice
	}
	return p.StopLossPrice
}
