// REST API CLIENT FOR COINBASE EXCHANGE (CRYPTO, PASSPHRASE KEYS)
// RESTY ONLY, NO INTERNAL RETRY: the orchestrator owns the retry policy
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// ---------------------------------------------------------------------
// SIGNATURES
// ---------------------------------------------------------------------

// CB-ACCESS-SIGN = base64( HMAC_SHA256(base64decode(apiSecret), timestamp + method + requestPath + body) )
func coinbaseSignRequest(secret, timestamp, method, requestPath, body string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}

	prehash := timestamp + method + requestPath + body
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// ---------------------------------------------------------------------
// AUTHENTICATED CLIENT
// ---------------------------------------------------------------------

type CoinbaseClient struct {
	apiKey     string
	apiSecret  string
	passphrase string
	baseURL    string
	http       *resty.Client
}

func NewCoinbaseClient(apiKey, apiSecret, passphrase, baseURL string) *CoinbaseClient {
	config := GetConfig()

	if baseURL == "" {
		baseURL = config.CoinbaseBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(config.HTTPTimeout)

	return &CoinbaseClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
		baseURL:    baseURL,
		http:       httpClient,
	}
}

func (c *CoinbaseClient) Name() string { return "coinbase" }

func (c *CoinbaseClient) doRequest(ctx context.Context, method, path string, body []byte) (*resty.Response, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	sig, err := coinbaseSignRequest(c.apiSecret, timestamp, method, path, string(body))
	if err != nil {
		// A secret that cannot be base64-decoded can never sign anything.
		return nil, &AuthError{Broker: c.Name(), Msg: err.Error()}
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("CB-ACCESS-KEY", c.apiKey).
		SetHeader("CB-ACCESS-SIGN", sig).
		SetHeader("CB-ACCESS-TIMESTAMP", timestamp).
		SetHeader("CB-ACCESS-PASSPHRASE", c.passphrase).
		SetHeader("Content-Type", "application/json")

	if body != nil {
		req = req.SetBody(body)
	}

	logger.WithFields(logger.Fields{
		"method": method,
		"path":   path,
	}).Debug("Coinbase HTTP request")

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &TransientError{Broker: c.Name(), Msg: method + " " + path, Cause: err}
	}
	return resp, nil
}

// ---------------------------------------------------------------------
// TRADING METHODS
// ---------------------------------------------------------------------

type coinbaseOrder struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Side         string `json:"side"`
	Status       string `json:"status"` // pending | open | done | rejected
	DoneAt       string `json:"done_at,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
}

type coinbaseErrorBody struct {
	Message string `json:"message"`
}

func normalizeCoinbaseStatus(ord coinbaseOrder) string {
	switch ord.Status {
	case "done":
		return OrderResultFilled
	case "rejected":
		return OrderResultRejected
	default:
		return OrderResultSubmitted
	}
}

// SubmitOrder places a market order sized in base currency. The idempotency
// token travels as client_oid; Coinbase dedupes on it server-side.
func (c *CoinbaseClient) SubmitOrder(ctx context.Context, order Order) (*OrderResult, error) {
	payload := map[string]interface{}{
		"product_id": order.Symbol,
		"side":       order.Side,
		"type":       "market",
		"size":       order.Quantity.String(),
		"client_oid": order.IdempotencyToken,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, "POST", "/orders", body)
	if err != nil {
		return nil, err
	}

	raw := string(resp.Body())

	if resp.StatusCode() != 200 {
		var parsed coinbaseErrorBody
		_ = json.Unmarshal(resp.Body(), &parsed)
		msg := parsed.Message
		if msg == "" {
			msg = raw
		}

		switch code := resp.StatusCode(); {
		case code == 401 || code == 403:
			return nil, &AuthError{Broker: c.Name(), Msg: msg}
		case code == 400:
			return nil, &RejectedError{Broker: c.Name(), Reason: msg, Raw: raw}
		default:
			return nil, classifyHTTPStatus(c.Name(), code, msg)
		}
	}

	var placed coinbaseOrder
	if err := json.Unmarshal(resp.Body(), &placed); err != nil {
		return nil, fmt.Errorf("coinbase: decode order response: %w", err)
	}

	if placed.Status == "rejected" {
		return nil, &RejectedError{Broker: c.Name(), Reason: placed.RejectReason, Raw: raw}
	}

	return &OrderResult{
		Status:        normalizeCoinbaseStatus(placed),
		BrokerOrderID: placed.ID,
		Raw:           raw,
	}, nil
}

// ---------------------------------------------------------------------
// ORDER QUERY METHODS
// ---------------------------------------------------------------------

// OrderStatus implements OrderStatusPoller.
func (c *CoinbaseClient) OrderStatus(ctx context.Context, brokerOrderID string) (*OrderResult, error) {
	resp, err := c.doRequest(ctx, "GET", "/orders/"+brokerOrderID, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, classifyHTTPStatus(c.Name(), resp.StatusCode(), string(resp.Body()))
	}

	var found coinbaseOrder
	if err := json.Unmarshal(resp.Body(), &found); err != nil {
		return nil, fmt.Errorf("coinbase: decode order lookup: %w", err)
	}

	return &OrderResult{
		Status:        normalizeCoinbaseStatus(found),
		BrokerOrderID: found.ID,
		Raw:           string(resp.Body()),
	}, nil
}
