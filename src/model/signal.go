package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Signal lifecycle. Executed, rejected, cancelled and failed are terminal.
const (
	SignalStatusPending   = "pending"
	SignalStatusApproved  = "approved"
	SignalStatusRejected  = "rejected"
	SignalStatusExecuted  = "executed"
	SignalStatusFailed    = "failed"
	SignalStatusCancelled = "cancelled"
)

// Signal is a proposed trade derived from an external prediction. It is
// sized and validated by the risk gate before any order leaves the process.
type Signal struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Token is the single-use identifier handed to the operator surface
	// for approve/reject in hybrid mode.
	Token string `gorm:"size:64;uniqueIndex" json:"token"`

	Symbol     string          `gorm:"size:20;index" json:"symbol"`
	Side       string          `gorm:"size:10;not null" json:"side"`
	Confidence decimal.Decimal `gorm:"type:numeric" json:"confidence"`
	EntryPrice decimal.Decimal `gorm:"type:numeric" json:"entry_price"`

	// Quantity stays zero until the risk calculator sizes the signal.
	Quantity int64           `json:"quantity"`
	StopLoss decimal.Decimal `gorm:"type:numeric" json:"stop_loss"`

	Status    string `gorm:"size:50;not null;default:pending" json:"status"`
	Reasoning string `gorm:"size:512" json:"reasoning"`

	// AutoExecute records the routing decision taken at creation time.
	AutoExecute bool `json:"auto_execute"`

	GeneratedAt time.Time  `json:"generated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Terminal reports whether the signal can no longer change state.
func (s *Signal) Terminal() bool {
	switch s.Status {
	case SignalStatusExecuted, SignalStatusRejected, SignalStatusCancelled, SignalStatusFailed:
		return true
	}
	return false
}
