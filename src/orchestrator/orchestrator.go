package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"copytrader/src/connectors"
	"copytrader/src/model"
	"copytrader/src/repository"
	"copytrader/src/risk"
	"copytrader/src/security"
)

// tokenNamespace seeds the deterministic idempotency token so every retry
// of the same (signal, user) pair presents the same client order ID.
var tokenNamespace = uuid.MustParse("9e3b1c52-7a64-4f6e-9d0a-5b8f2e4c6a31")

// IdempotencyToken derives the client order ID for one (signal, user) pair.
func IdempotencyToken(signalID string, userID uint) string {
	return uuid.NewSHA1(tokenNamespace, []byte(fmt.Sprintf("%s:%d", signalID, userID))).String()
}

// Local interfaces keep the repository surface small and the orchestrator
// testable without the real database wiring.
type copyTradeLogRepository interface {
	CreatePending(ctx context.Context, log *model.CopyTradeLog) error
	UpdateStatus(ctx context.Context, logID uint, status string, updates map[string]interface{}) error
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.CopyTradeLog, error)
}

type brokerConnectionRepository interface {
	FindConnectedByUser(ctx context.Context, userID uint) (*model.BrokerConnection, error)
	MarkInvalid(ctx context.Context, connectionID uint) error
}

type subscriptionRepository interface {
	FindByID(ctx context.Context, id uint) (*model.SignalSubscription, error)
}

type signalRepository interface {
	FindByID(ctx context.Context, id string) (*model.Signal, error)
}

type exceptionRepository interface {
	Create(ctx context.Context, exception *model.Exception) error
}

// Orchestrator drives the idempotent submit/retry/record cycle for each
// matched subscription. All broker errors terminate in the copy trade log
// row; nothing propagates back to the ingestion path.
type Orchestrator struct {
	config Config

	logs          copyTradeLogRepository
	connections   brokerConnectionRepository
	subscriptions subscriptionRepository
	signals       signalRepository
	exceptions    exceptionRepository

	// seams for tests
	decrypt      func(conn *model.BrokerConnection) (security.Credentials, error)
	newConnector func(brokerType *model.BrokerType, mode string, creds security.Credentials) (connectors.BrokerConnector, error)
	sleep        func(d time.Duration)
}

type Deps struct {
	Logs          copyTradeLogRepository
	Connections   brokerConnectionRepository
	Subscriptions subscriptionRepository
	Signals       signalRepository
	Exceptions    exceptionRepository
}

func NewOrchestrator(config Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		config:        config,
		logs:          deps.Logs,
		connections:   deps.Connections,
		subscriptions: deps.Subscriptions,
		signals:       deps.Signals,
		exceptions:    deps.Exceptions,
		decrypt:       security.DecryptConnection,
		newConnector:  connectors.NewConnector,
		sleep:         time.Sleep,
	}
}

// NewDefaultOrchestrator wires the orchestrator to the production
// repositories.
func NewDefaultOrchestrator() *Orchestrator {
	return NewOrchestrator(GetConfig(), Deps{
		Logs:          repository.NewCopyTradeLogRepository(),
		Connections:   repository.NewBrokerConnectionRepository(),
		Subscriptions: repository.NewSubscriptionRepository(),
		Signals:       repository.NewSignalRepository(),
		Exceptions:    repository.NewExceptionRepository(),
	})
}

// Execute runs the full cycle for one (signal, subscription) pair. The
// pending insert is the commit point: a duplicate key there means another
// delivery already owns the pair and this call exits without touching the
// broker.
func (o *Orchestrator) Execute(ctx context.Context, signal *model.Signal, sub model.SignalSubscription) {
	log := &model.CopyTradeLog{
		UserID:         sub.UserID,
		SignalID:       signal.ID,
		SubscriptionID: sub.ID,
		AutoExecute:    sub.AutoTrade,
	}

	err := o.logs.CreatePending(ctx, log)
	if errors.Is(err, repository.ErrDuplicateExecution) {
		logger.WithFields(map[string]interface{}{
			"signal_id": signal.ID,
			"user_id":   sub.UserID,
		}).Debug("execution already handled for signal and user")
		return
	}
	if err != nil {
		o.capture(ctx, "Execute", "CreatePending", err, map[string]interface{}{
			"signal_id": signal.ID,
			"user_id":   sub.UserID,
		})
		return
	}

	o.drive(ctx, log, signal, &sub)
}

// drive moves an existing pending row to a terminal state. Shared by the
// live path and the recovery sweep.
func (o *Orchestrator) drive(ctx context.Context, log *model.CopyTradeLog, signal *model.Signal, sub *model.SignalSubscription) {
	fields := logger.Fields{
		"log_id":    log.ID,
		"signal_id": signal.ID,
		"user_id":   sub.UserID,
	}

	settings, err := sub.Settings()
	if err != nil {
		// malformed settings blob: eligibility cannot be established
		o.finish(ctx, log, model.ExecutionStatusSkipped, map[string]interface{}{
			"reason": "invalid auto_trade_settings: " + err.Error(),
		})
		return
	}

	decision := risk.CalculateOrderQuantity(settings, signal.Symbol, signal.Price)
	if !decision.Eligible {
		logger.WithFields(fields).WithField("skip_reason", decision.SkipReason).
			Info("execution skipped before broker call")
		o.finish(ctx, log, model.ExecutionStatusSkipped, map[string]interface{}{
			"reason": decision.SkipReason,
		})
		return
	}

	conn, err := o.connections.FindConnectedByUser(ctx, sub.UserID)
	if err != nil {
		// DB-level failure: leave the row pending, the sweep will retry
		o.capture(ctx, "drive", "FindConnectedByUser", err, map[string]interface{}{"user_id": sub.UserID})
		return
	}
	if conn == nil || conn.BrokerType == nil {
		o.finish(ctx, log, model.ExecutionStatusFailed, map[string]interface{}{
			"error_code": connectors.ErrorCodeNoConnection,
			"reason":     "no connected broker for user",
		})
		return
	}

	creds, err := o.decrypt(conn)
	if err != nil {
		// decrypt failure is not an auth rejection: connection status
		// stays untouched
		logger.WithFields(fields).WithError(err).Error("credential decrypt failed")
		o.finish(ctx, log, model.ExecutionStatusFailed, map[string]interface{}{
			"error_code": connectors.ErrorCodeVault,
			"reason":     "credentials could not be decrypted",
		})
		return
	}

	connector, err := o.newConnector(conn.BrokerType, conn.Mode, creds)
	if err != nil {
		o.finish(ctx, log, model.ExecutionStatusFailed, map[string]interface{}{
			"error_code": connectors.ErrorCodeNoConnection,
			"reason":     err.Error(),
		})
		return
	}

	order := connectors.Order{
		Symbol:           signal.Symbol,
		Side:             sideFromAction(signal.Action),
		Quantity:         decision.Quantity,
		Price:            signal.Price,
		IdempotencyToken: IdempotencyToken(signal.ID, sub.UserID),
	}

	result, err := o.submitWithRetry(ctx, connector, order)
	if err != nil {
		o.recordSubmitFailure(ctx, log, conn, err)
		return
	}

	// order is live on the broker's books
	o.finish(ctx, log, model.ExecutionStatusSubmitted, map[string]interface{}{
		"broker_order_id": result.BrokerOrderID,
		"broker_response": result.Raw,
	})

	if result.Status == connectors.OrderResultSubmitted {
		result = o.pollForTerminalStatus(ctx, connector, result)
	}

	switch result.Status {
	case connectors.OrderResultFilled:
		o.finish(ctx, log, model.ExecutionStatusFilled, map[string]interface{}{
			"broker_response": result.Raw,
		})
	case connectors.OrderResultRejected:
		o.finish(ctx, log, model.ExecutionStatusRejected, map[string]interface{}{
			"error_code":      connectors.ErrorCodeBrokerRejected,
			"broker_response": result.Raw,
		})
	default:
		// still working at the broker; the row stays submitted
		logger.WithFields(fields).Info("order left in submitted state after poll budget")
	}
}

// submitWithRetry retries transient failures with exponential backoff
// (base, 4x base, 16x base). Auth and business rejections return
// immediately.
func (o *Orchestrator) submitWithRetry(ctx context.Context, connector connectors.BrokerConnector, order connectors.Order) (*connectors.OrderResult, error) {
	attempts := o.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := o.config.RetryBaseBackoff
			for i := 1; i < attempt; i++ {
				backoff *= 4
			}
			o.sleep(backoff)
		}

		submitCtx, cancel := context.WithTimeout(ctx, o.config.SubmitTimeout)
		result, err := connector.SubmitOrder(submitCtx, order)
		cancel()

		if err == nil {
			return result, nil
		}

		if !connectors.IsTransientError(err) {
			return nil, err
		}

		lastErr = err
		logger.WithError(err).WithFields(logger.Fields{
			"broker":  connector.Name(),
			"attempt": attempt + 1,
		}).Warn("transient broker failure, will retry")
	}

	return nil, lastErr
}

// pollForTerminalStatus performs a bounded status poll for connectors that
// acknowledged without a terminal state.
func (o *Orchestrator) pollForTerminalStatus(ctx context.Context, connector connectors.BrokerConnector, last *connectors.OrderResult) *connectors.OrderResult {
	poller, ok := connector.(connectors.OrderStatusPoller)
	if !ok || last.BrokerOrderID == "" {
		return last
	}

	for attempt := 0; attempt < o.config.StatusPollAttempts; attempt++ {
		o.sleep(o.config.StatusPollInterval)

		pollCtx, cancel := context.WithTimeout(ctx, o.config.SubmitTimeout)
		result, err := poller.OrderStatus(pollCtx, last.BrokerOrderID)
		cancel()

		if err != nil {
			logger.WithError(err).WithField("broker", connector.Name()).
				Warn("status poll failed")
			continue
		}

		if result.Status != connectors.OrderResultSubmitted {
			return result
		}
		last = result
	}

	return last
}

func (o *Orchestrator) recordSubmitFailure(ctx context.Context, log *model.CopyTradeLog, conn *model.BrokerConnection, err error) {
	switch {
	case connectors.IsAuthError(err):
		// doomed credentials: flip the connection so later signals skip it
		if markErr := o.connections.MarkInvalid(ctx, conn.ID); markErr != nil {
			o.capture(ctx, "recordSubmitFailure", "MarkInvalid", markErr, map[string]interface{}{
				"connection_id": conn.ID,
			})
		}
		o.finish(ctx, log, model.ExecutionStatusFailed, map[string]interface{}{
			"error_code": connectors.ErrorCodeBrokerAuth,
			"reason":     err.Error(),
		})

	case connectors.IsRejectedError(err):
		var rejected *connectors.RejectedError
		updates := map[string]interface{}{
			"error_code": connectors.ErrorCodeBrokerRejected,
			"reason":     err.Error(),
		}
		if errors.As(err, &rejected) && rejected.Raw != "" {
			updates["broker_response"] = rejected.Raw
		}
		o.finish(ctx, log, model.ExecutionStatusRejected, updates)

	default:
		o.capture(ctx, "recordSubmitFailure", "SubmitOrder", err, map[string]interface{}{
			"log_id": log.ID,
		})
		o.finish(ctx, log, model.ExecutionStatusFailed, map[string]interface{}{
			"error_code": connectors.ErrorCodeBrokerTransient,
			"reason":     err.Error(),
		})
	}
}

// finish writes a state transition. An update failure here is captured but
// not retried inline; the sweep will find rows stuck in pending.
func (o *Orchestrator) finish(ctx context.Context, log *model.CopyTradeLog, status string, updates map[string]interface{}) {
	if err := o.logs.UpdateStatus(ctx, log.ID, status, updates); err != nil {
		o.capture(ctx, "finish", "UpdateStatus", err, map[string]interface{}{
			"log_id": log.ID,
			"status": status,
		})
		return
	}
	log.ExecutionStatus = status
}

// sideFromAction maps the signal action to an order side. A close signal
// exits a long position, which is a sell at the broker.
func sideFromAction(action string) string {
	if action == model.SignalActionClose {
		return "sell"
	}
	return action
}

// capture persists a system exception and logs it; recording failures are
// swallowed so the pipeline never dies on bookkeeping.
func (o *Orchestrator) capture(ctx context.Context, method, op string, err error, contextData map[string]interface{}) {
	if err == nil {
		return
	}

	logger.WithError(err).WithFields(logger.Fields{
		"method": method,
		"op":     op,
	}).Error("orchestrator system error")

	if o.exceptions == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	_ = o.exceptions.Create(ctx, &model.Exception{
		Service:   "copytrader",
		Module:    "orchestrator",
		Method:    method + "/" + op,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     "error",
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	})
}
