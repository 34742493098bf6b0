package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SubscriptionStatusActive = "active"
	SubscriptionStatusPaused = "paused"
)

// AutoTradeSettings is the typed shape of the auto_trade_settings column.
// It is validated when the subscription is edited; the orchestrator still
// re-checks sizing at execution time because settings may predate validation.
type AutoTradeSettings struct {
	// MaxPositionSize is the maximum notional per execution, in quote
	// currency. Quantity is derived from it and the signal price.
	MaxPositionSize decimal.Decimal `json:"max_position_size"`

	// AllowedSymbols restricts auto-execution to the listed symbols.
	// Empty or nil means every symbol from the provider is allowed.
	AllowedSymbols []string `json:"allowed_symbols,omitempty"`

	LeverageCap decimal.Decimal `json:"leverage_cap,omitempty"`
}

// Validate is meant for the subscription-edit path.
func (s AutoTradeSettings) Validate() error {
	if s.MaxPositionSize.IsNegative() {
		return errors.New("max_position_size must not be negative")
	}
	if s.LeverageCap.IsNegative() {
		return errors.New("leverage_cap must not be negative")
	}
	return nil
}

// SymbolAllowed reports whether the settings permit auto-trading symbol.
func (s AutoTradeSettings) SymbolAllowed(symbol string) bool {
	if len(s.AllowedSymbols) == 0 {
		return true
	}
	for _, allowed := range s.AllowedSymbols {
		if allowed == symbol {
			return true
		}
	}
	return false
}

// SignalSubscription is a user's standing interest in a provider/symbol.
// It is created and edited elsewhere; this service only reads it.
type SignalSubscription struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	ProviderID string `gorm:"size:100;not null;index" json:"provider_id"`

	// Symbol nil means "all symbols from this provider".
	Symbol *string `gorm:"size:100" json:"symbol,omitempty"`

	Status    string `gorm:"size:20;not null;default:'active';index" json:"status"`
	AutoTrade bool   `gorm:"not null;default:false" json:"auto_trade"`

	// AutoTradeSettingsRaw stores the JSON-encoded AutoTradeSettings.
	AutoTradeSettingsRaw string `gorm:"column:auto_trade_settings;type:jsonb" json:"-"`

	NotificationsEnabled bool `gorm:"not null;default:true" json:"notifications_enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SignalSubscription) TableName() string {
	return "signal_subscriptions"
}

// Settings decodes the stored auto-trade settings. An empty column yields
// zero-value settings, which size every order to zero and therefore skip.
func (s *SignalSubscription) Settings() (AutoTradeSettings, error) {
	var settings AutoTradeSettings
	if s.AutoTradeSettingsRaw == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(s.AutoTradeSettingsRaw), &settings); err != nil {
		return settings, fmt.Errorf("decode auto_trade_settings for subscription %d: %w", s.ID, err)
	}
	return settings, nil
}

// SetSettings encodes settings into the raw column.
func (s *SignalSubscription) SetSettings(settings AutoTradeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	s.AutoTradeSettingsRaw = string(raw)
	return nil
}
