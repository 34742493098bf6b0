// REST API CLIENT FOR ALPACA EQUITIES (PAPER AND LIVE)
// RESTY ONLY, NO INTERNAL RETRY: the orchestrator owns the retry policy
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// -----------------------------
// A) AUTHENTICATED CLIENT
// -----------------------------
type AlpacaClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
}

func NewAlpacaClient(apiKey, apiSecret, baseURL string) *AlpacaClient {
	config := GetConfig()

	if baseURL == "" {
		baseURL = config.AlpacaPaperBaseURL
		logger.Warnf("No base URL provided, using paper default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(config.HTTPTimeout)

	return &AlpacaClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      httpClient,
	}
}

func (c *AlpacaClient) Name() string { return "alpaca" }

// -----------------------------
// B) WIRE STRUCTURES
// -----------------------------
type alpacaOrder struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Status        string `json:"status"`
}

type alpacaErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// normalizeAlpacaStatus maps Alpaca order states onto the shared result set.
func normalizeAlpacaStatus(status string) string {
	switch status {
	case "filled":
		return OrderResultFilled
	case "rejected", "canceled", "expired", "stopped":
		return OrderResultRejected
	default:
		// new, accepted, pending_new, partially_filled
		return OrderResultSubmitted
	}
}

// -----------------------------
// C) TRADING METHODS
// -----------------------------

// SubmitOrder places a market order. A duplicate client_order_id means an
// earlier attempt already reached the broker; in that case the existing
// order is fetched and returned instead of failing.
func (c *AlpacaClient) SubmitOrder(ctx context.Context, order Order) (*OrderResult, error) {
	body := map[string]interface{}{
		"symbol":          order.Symbol,
		"qty":             order.Quantity.String(),
		"side":            order.Side,
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": order.IdempotencyToken,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("APCA-API-KEY-ID", c.apiKey).
		SetHeader("APCA-API-SECRET-KEY", c.apiSecret).
		SetBody(body).
		Post("/v2/orders")
	if err != nil {
		return nil, &TransientError{Broker: c.Name(), Msg: "submit order", Cause: err}
	}

	raw := string(resp.Body())

	switch code := resp.StatusCode(); {
	case code == 200 || code == 201:
		var placed alpacaOrder
		if err := json.Unmarshal(resp.Body(), &placed); err != nil {
			return nil, fmt.Errorf("alpaca: decode order response: %w", err)
		}
		return &OrderResult{
			Status:        normalizeAlpacaStatus(placed.Status),
			BrokerOrderID: placed.ID,
			Raw:           raw,
		}, nil

	case code == 401:
		return nil, &AuthError{Broker: c.Name(), Msg: raw}

	case code == 403:
		// Alpaca uses 403 for business refusals such as insufficient
		// buying power, not for bad credentials.
		return nil, &RejectedError{Broker: c.Name(), Reason: alpacaErrorMessage(resp.Body()), Raw: raw}

	case code == 422 && strings.Contains(raw, "client_order_id"):
		logger.WithField("client_order_id", order.IdempotencyToken).
			Info("duplicate client order id, fetching existing order")
		return c.orderByClientID(ctx, order.IdempotencyToken)

	case code == 422:
		return nil, &RejectedError{Broker: c.Name(), Reason: alpacaErrorMessage(resp.Body()), Raw: raw}

	default:
		return nil, classifyHTTPStatus(c.Name(), code, raw)
	}
}

func alpacaErrorMessage(body []byte) string {
	var parsed alpacaErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return string(body)
	}
	return parsed.Message
}

// -----------------------------
// D) ORDER QUERY METHODS
// -----------------------------

// OrderStatus implements OrderStatusPoller.
func (c *AlpacaClient) OrderStatus(ctx context.Context, brokerOrderID string) (*OrderResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("APCA-API-KEY-ID", c.apiKey).
		SetHeader("APCA-API-SECRET-KEY", c.apiSecret).
		Get("/v2/orders/" + brokerOrderID)
	if err != nil {
		return nil, &TransientError{Broker: c.Name(), Msg: "order status", Cause: err}
	}
	return c.parseOrderLookup(resp)
}

func (c *AlpacaClient) orderByClientID(ctx context.Context, clientOrderID string) (*OrderResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("APCA-API-KEY-ID", c.apiKey).
		SetHeader("APCA-API-SECRET-KEY", c.apiSecret).
		SetQueryParam("client_order_id", clientOrderID).
		Get("/v2/orders:by_client_order_id")
	if err != nil {
		return nil, &TransientError{Broker: c.Name(), Msg: "order by client id", Cause: err}
	}
	return c.parseOrderLookup(resp)
}

func (c *AlpacaClient) parseOrderLookup(resp *resty.Response) (*OrderResult, error) {
	if resp.StatusCode() != 200 {
		return nil, classifyHTTPStatus(c.Name(), resp.StatusCode(), string(resp.Body()))
	}

	var found alpacaOrder
	if err := json.Unmarshal(resp.Body(), &found); err != nil {
		return nil, fmt.Errorf("alpaca: decode order lookup: %w", err)
	}

	return &OrderResult{
		Status:        normalizeAlpacaStatus(found.Status),
		BrokerOrderID: found.ID,
		Raw:           string(resp.Body()),
	}, nil
}
