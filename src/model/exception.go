package model

import "time"

// Exception is a persisted system-level error kept for auditing and
// operator attention. Persistence failures themselves are only logged;
// the in-memory state stays authoritative.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "trading_engine"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "broker"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "PlaceMarketOrder"

	Message string `gorm:"type:text" json:"message"`
	Level   string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Context stores extra key/values as JSON.
	Context string `gorm:"type:jsonb" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
