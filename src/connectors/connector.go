package connectors

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"copytrader/src/model"
	"copytrader/src/security"
)

// Order is the uniform order shape every adapter accepts. Each adapter maps
// it onto its broker's wire format.
type Order struct {
	Symbol   string
	Side     string // buy or sell
	Quantity decimal.Decimal

	// Price is the signal's reference price. Adapters submitting market
	// orders use it only where the broker requires a notional hint.
	Price decimal.Decimal

	// IdempotencyToken is the client-supplied order ID, derived from
	// (signal_id, user_id) so retried submissions reuse the same value.
	IdempotencyToken string
}

// OrderResult statuses as normalized across brokers.
const (
	OrderResultFilled    = "filled"
	OrderResultSubmitted = "submitted"
	OrderResultRejected  = "rejected"
)

// OrderResult is the normalized outcome of one submission.
type OrderResult struct {
	Status        string
	BrokerOrderID string

	// Raw is the broker's response payload, kept opaque for audit.
	Raw string
}

// BrokerConnector is the single polymorphic capability over heterogeneous
// broker APIs. Implementations map transport and auth errors onto the shared
// taxonomy in errors.go so callers never branch on broker identity.
type BrokerConnector interface {
	Name() string
	SubmitOrder(ctx context.Context, order Order) (*OrderResult, error)
}

// OrderStatusPoller is implemented by connectors whose SubmitOrder can
// acknowledge without a terminal status. The orchestrator performs one
// bounded poll pass through it before leaving a row submitted.
type OrderStatusPoller interface {
	OrderStatus(ctx context.Context, brokerOrderID string) (*OrderResult, error)
}

// NewConnector builds the adapter variant for the given broker type, with
// credentials fetched fresh from the vault per execution. No process-wide
// client state is kept.
func NewConnector(brokerType *model.BrokerType, mode string, creds security.Credentials) (BrokerConnector, error) {
	config := GetConfig()

	switch brokerType.Name {
	case "alpaca":
		baseURL := config.AlpacaPaperBaseURL
		if mode == model.BrokerModeLive {
			baseURL = config.AlpacaLiveBaseURL
		}
		return NewAlpacaClient(creds.APIKey, creds.APISecret, baseURL), nil

	case "coinbase":
		return NewCoinbaseClient(creds.APIKey, creds.APISecret, creds.Passphrase, config.CoinbaseBaseURL), nil

	case "okx":
		return NewOKXClient(creds.APIKey, creds.APISecret, creds.Passphrase), nil

	default:
		return nil, fmt.Errorf("broker type %q not supported", brokerType.Name)
	}
}
