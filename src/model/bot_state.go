package model

import "time"

const (
	ModeAuto   = "auto"
	ModeManual = "manual"
	ModeHybrid = "hybrid"
)

// BotState is the single persisted record describing the engine process.
// The operator surface reads it; only the engine writes it.
type BotState struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Running               bool   `gorm:"not null;default:false" json:"running"`
	Mode                  string `gorm:"size:20;not null;default:manual" json:"mode"`
	CircuitBreakerTripped bool   `gorm:"not null;default:false" json:"circuit_breaker_tripped"`

	// LastDailyReset is when the start-of-day baseline was last rebased.
	LastDailyReset *time.Time `json:"last_daily_reset,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BotState) TableName() string {
	return "bot_state"
}
