// OKX SPOT CLIENT ON TOP OF GOEX
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/okex"
	logger "github.com/sirupsen/logrus"
)

// OKXClient adapts goex's OKX spot API to the BrokerConnector capability.
type OKXClient struct {
	spot goex.API
}

func NewOKXClient(apiKey, apiSecret, passphrase string) *OKXClient {
	config := GetConfig()

	apiConfig := &goex.APIConfig{
		HttpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		ApiKey:        apiKey,
		ApiSecretKey:  apiSecret,
		ApiPassphrase: passphrase,
	}

	return &OKXClient{
		spot: okex.NewOKEx(apiConfig).OKExSpot,
	}
}

func (c *OKXClient) Name() string { return "okx" }

// parsePair splits a symbol like "BTC-USDT", "BTC/USDT" or "BTCUSDT" into a
// goex currency pair.
func parsePair(symbol string) goex.CurrencyPair {
	normalized := strings.ReplaceAll(symbol, "/", "-")
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		return goex.NewCurrencyPair(
			goex.Currency{Symbol: strings.ToUpper(parts[0])},
			goex.Currency{Symbol: strings.ToUpper(parts[1])},
		)
	}

	upper := strings.ToUpper(normalized)
	for _, quote := range []string{"USDT", "USDC", "USD", "EUR", "BTC"} {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return goex.NewCurrencyPair(
				goex.Currency{Symbol: strings.TrimSuffix(upper, quote)},
				goex.Currency{Symbol: quote},
			)
		}
	}

	// last resort: let the exchange reject it
	return goex.NewCurrencyPair(goex.Currency{Symbol: upper}, goex.Currency{Symbol: "USDT"})
}

func normalizeGoexStatus(status goex.TradeStatus) string {
	switch status {
	case goex.ORDER_FINISH:
		return OrderResultFilled
	case goex.ORDER_CANCEL, goex.ORDER_REJECT, goex.ORDER_FAIL:
		return OrderResultRejected
	default:
		return OrderResultSubmitted
	}
}

// classifyGoexError maps goex's flat errors onto the taxonomy. goex folds
// HTTP failures into error strings, so this is a string-level mapping.
func classifyGoexError(broker string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Broker: broker, Msg: "request timeout", Cause: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "OK-ACCESS-KEY"),
		strings.Contains(msg, "Invalid Sign"),
		strings.Contains(msg, "401"):
		return &AuthError{Broker: broker, Msg: msg}
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "timeout"):
		return &TransientError{Broker: broker, Msg: msg, Cause: err}
	default:
		return &RejectedError{Broker: broker, Reason: msg}
	}
}

// SubmitOrder places a spot market order. goex assigns its own client ID, so
// duplicate suppression for this broker rests on the pending-row insert
// rather than a server-side token.
func (c *OKXClient) SubmitOrder(ctx context.Context, order Order) (*OrderResult, error) {
	pair := parsePair(order.Symbol)
	amount := order.Quantity.String()
	price := order.Price.String()

	logger.WithFields(logger.Fields{
		"pair":   pair.String(),
		"side":   order.Side,
		"amount": amount,
	}).Debug("OKX submit order")

	var (
		placed *goex.Order
		err    error
	)

	if order.Side == "buy" {
		placed, err = c.spot.MarketBuy(amount, price, pair)
	} else {
		placed, err = c.spot.MarketSell(amount, price, pair)
	}
	if err != nil {
		return nil, classifyGoexError(c.Name(), err)
	}

	raw, _ := json.Marshal(placed)

	return &OrderResult{
		Status:        normalizeGoexStatus(placed.Status),
		BrokerOrderID: placed.OrderID2,
		Raw:           string(raw),
	}, nil
}
