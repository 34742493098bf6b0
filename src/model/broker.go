package model

import "time"

// Broker connection statuses.
const (
	BrokerConnectionStatusConnected = "connected"
	BrokerConnectionStatusInvalid   = "invalid"
	BrokerConnectionStatusRevoked   = "revoked"
)

// Broker connection modes.
const (
	BrokerModePaper = "paper"
	BrokerModeLive  = "live"
)

// BrokerType is a static catalog entry describing one brokerage/exchange
// integration. Seeded by operators, read-only to this service.
type BrokerType struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	Name               string `gorm:"size:60;uniqueIndex;not null" json:"name"`
	RequiresPassphrase bool   `gorm:"not null;default:false" json:"requires_passphrase"`

	SupportsCrypto   bool `gorm:"not null;default:false" json:"supports_crypto"`
	SupportsEquities bool `gorm:"not null;default:false" json:"supports_equities"`
	SupportsForex    bool `gorm:"not null;default:false" json:"supports_forex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BrokerType) TableName() string {
	return "broker_types"
}

// BrokerConnection is a user's linked brokerage account. Credential columns
// hold ciphertext only; plaintext exists solely inside the vault decrypt
// call frame.
type BrokerConnection struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	UserID       uint `gorm:"not null;index" json:"user_id"`
	BrokerTypeID uint `gorm:"not null;index" json:"broker_type_id"`

	EncryptedAPIKey     string `gorm:"column:encrypted_api_key;type:text" json:"-"`
	EncryptedAPISecret  string `gorm:"column:encrypted_api_secret;type:text" json:"-"`
	EncryptedPassphrase string `gorm:"column:encrypted_passphrase;type:text" json:"-"`

	Mode   string `gorm:"size:20;not null;default:'paper'" json:"mode"`
	Status string `gorm:"size:20;not null;default:'connected';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	BrokerType *BrokerType `gorm:"constraint:OnDelete:RESTRICT" json:"broker_type,omitempty"`
}

func (BrokerConnection) TableName() string {
	return "broker_connections"
}
