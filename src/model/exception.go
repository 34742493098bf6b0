package model

import "time"

// Exception is a persisted system-level error, kept for auditing and
// monitoring. Business outcomes (rejected orders, skipped executions) are
// not exceptions; they live on the CopyTradeLog row.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "copytrader"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "orchestrator"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "SubmitOrder"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:jsonb" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
