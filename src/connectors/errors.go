package connectors

import (
	"errors"
	"fmt"
)

// Taxonomy codes recorded on CopyTradeLog rows. Every terminal failure a
// user can see maps to exactly one of these.
const (
	ErrorCodeVault           = "vault_error"
	ErrorCodeBrokerAuth      = "broker_auth_error"
	ErrorCodeBrokerTransient = "broker_transient_error"
	ErrorCodeBrokerRejected  = "broker_rejected"
	ErrorCodeDuplicate       = "duplicate_execution"
	ErrorCodeNoConnection    = "no_broker_connection"
)

// AuthError means the broker refused our credentials. Non-retryable; the
// orchestrator marks the connection invalid so later signals skip it.
type AuthError struct {
	Broker string
	Msg    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication rejected: %s", e.Broker, e.Msg)
}

// TransientError covers timeouts, rate limits and 5xx-class responses.
// Retryable per the orchestrator's backoff policy.
type TransientError struct {
	Broker string
	Msg    string
	Cause  error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: transient failure: %s: %v", e.Broker, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: transient failure: %s", e.Broker, e.Msg)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// RejectedError is a business-level rejection (insufficient funds, market
// closed). A normal outcome, not a system fault.
type RejectedError struct {
	Broker string
	Reason string
	Raw    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: order rejected: %s", e.Broker, e.Reason)
}

// IsAuthError reports whether err is (or wraps) a broker auth rejection.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransientError reports whether err is retryable.
func IsTransientError(err error) bool {
	var transientErr *TransientError
	return errors.As(err, &transientErr)
}

// IsRejectedError reports whether err is a business rejection.
func IsRejectedError(err error) bool {
	var rejectedErr *RejectedError
	return errors.As(err, &rejectedErr)
}

// classifyHTTPStatus maps an HTTP-level broker failure onto the shared
// taxonomy. Adapters call this for statuses they have no broker-specific
// mapping for.
func classifyHTTPStatus(broker string, status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{Broker: broker, Msg: body}
	case status == 408 || status == 429 || (status >= 500 && status <= 599):
		return &TransientError{Broker: broker, Msg: fmt.Sprintf("HTTP %d: %s", status, body)}
	default:
		return &RejectedError{Broker: broker, Reason: fmt.Sprintf("HTTP %d", status), Raw: body}
	}
}
