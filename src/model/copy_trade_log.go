package model

import "time"

// ExecutionStatus constants represent the lifecycle of one copy-trade
// execution. Transitions are monotonic: pending → submitted → filled or
// rejected, with failed reachable from pending/submitted and skipped
// reachable only from pending.
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusSubmitted = "submitted"
	ExecutionStatusFilled    = "filled"
	ExecutionStatusRejected  = "rejected"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusSkipped   = "skipped"
)

// TerminalExecutionStatus reports whether status is a terminal state.
func TerminalExecutionStatus(status string) bool {
	switch status {
	case ExecutionStatusFilled, ExecutionStatusRejected, ExecutionStatusFailed, ExecutionStatusSkipped:
		return true
	}
	return false
}

// CopyTradeLog is the execution record for one (signal, user) pair.
// The unique index on (signal_id, user_id) is the idempotency mechanism:
// a second pending insert for the same pair fails with a duplicate key and
// the orchestrator treats that as "already handled".
type CopyTradeLog struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;index:idx_signal_user,unique" json:"user_id"`
	SignalID string `gorm:"size:64;not null;index:idx_signal_user,unique" json:"signal_id"`

	SubscriptionID uint `gorm:"index" json:"subscription_id"`

	// AutoExecute snapshots the subscription's auto_trade flag at execution
	// time; the live subscription may be edited afterwards.
	AutoExecute bool `gorm:"not null" json:"auto_execute"`

	ExecutionStatus string `gorm:"size:20;not null;index" json:"execution_status"`

	// ErrorCode carries the taxonomy code for failed executions
	// (vault_error, broker_auth_error, broker_transient_error, ...).
	ErrorCode string `gorm:"size:40" json:"error_code,omitempty"`
	Reason    string `gorm:"size:255" json:"reason,omitempty"`

	// BrokerOrderID is the ID the broker assigned to the submitted order.
	BrokerOrderID string `gorm:"size:255" json:"broker_order_id,omitempty"`

	// BrokerResponse is the raw broker payload, kept opaque for audit.
	BrokerResponse string `gorm:"type:text" json:"broker_response,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Signal *Signal `gorm:"foreignKey:SignalID;constraint:OnDelete:RESTRICT" json:"signal,omitempty"`
}

func (CopyTradeLog) TableName() string {
	return "copy_trade_logs"
}
