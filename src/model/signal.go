package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalAction enumerates the recognized trade actions carried by a signal.
const (
	SignalActionBuy   = "buy"
	SignalActionSell  = "sell"
	SignalActionClose = "close"
)

// ValidSignalAction reports whether action is one of the recognized values.
func ValidSignalAction(action string) bool {
	switch action {
	case SignalActionBuy, SignalActionSell, SignalActionClose:
		return true
	}
	return false
}

// Signal is one received trading recommendation. Rows are immutable once
// persisted; the ID is generated by the ingestion gateway, never by the
// caller.
type Signal struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id"`
	ProviderID string          `gorm:"size:100;index;not null" json:"provider_id"`
	Symbol     string          `gorm:"size:100;index;not null" json:"symbol"`
	Action     string          `gorm:"size:20;not null" json:"action"`
	Price      decimal.Decimal `gorm:"type:numeric(24,8)" json:"price"`
	Confidence int             `json:"confidence"` // 0-100
	ReceivedAt time.Time       `gorm:"index" json:"received_at"`

	// RawPayload keeps the exact inbound body for audit and replay.
	RawPayload string `gorm:"type:text" json:"raw_payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Signal) TableName() string {
	return "trade_signals"
}
