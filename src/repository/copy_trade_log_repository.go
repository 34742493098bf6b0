package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"copytrader/src/database"
	"copytrader/src/model"
)

// ErrDuplicateExecution is returned by CreatePending when a row for the
// (signal_id, user_id) pair already exists. Benign: another worker or an
// earlier delivery already owns this execution.
var ErrDuplicateExecution = errors.New("copy trade log already exists for signal and user")

type CopyTradeLogRepository interface {
	CreatePending(ctx context.Context, log *model.CopyTradeLog) error
	UpdateStatus(ctx context.Context, logID uint, status string, updates map[string]interface{}) error
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.CopyTradeLog, error)
	FindByUser(ctx context.Context, userID uint, limit int) ([]model.CopyTradeLog, error)
}

type GormCopyTradeLogRepository struct {
	db *gorm.DB
}

func NewCopyTradeLogRepository() *GormCopyTradeLogRepository {
	return &GormCopyTradeLogRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *GormCopyTradeLogRepository) WithDB(db *gorm.DB) *GormCopyTradeLogRepository {
	return &GormCopyTradeLogRepository{db: db}
}

// CreatePending inserts the pending row that is the commit point of one
// execution. The unique (signal_id, user_id) index turns a concurrent
// duplicate into ErrDuplicateExecution instead of a second broker call.
func (r *GormCopyTradeLogRepository) CreatePending(ctx context.Context, log *model.CopyTradeLog) error {
	log.ExecutionStatus = model.ExecutionStatusPending
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Create(log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateExecution
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "CopyTradeLogRepository",
			"op":        "CreatePending",
			"signal_id": log.SignalID,
			"user_id":   log.UserID,
		}).WithError(err).Error("Failed to insert pending copy trade log")

		return err
	}

	return nil
}

// UpdateStatus moves a log row forward in its state machine. extra columns
// (error_code, reason, broker_order_id, broker_response) ride along in
// updates.
func (r *GormCopyTradeLogRepository) UpdateStatus(
	ctx context.Context,
	logID uint,
	status string,
	updates map[string]interface{},
) error {

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["execution_status"] = status

	res := r.db.WithContext(ctx).
		Model(&model.CopyTradeLog{}).
		Where("id = ?", logID).
		Updates(updates)

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "CopyTradeLogRepository",
			"op":     "UpdateStatus",
			"log_id": logID,
			"status": status,
		}).WithError(res.Error).Error("Failed to update copy trade log status")

		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// FindStalePending returns pending rows older than the cutoff, oldest
// first. The recovery sweep re-drives them through the execution path.
func (r *GormCopyTradeLogRepository) FindStalePending(
	ctx context.Context,
	olderThan time.Time,
	limit int,
) ([]model.CopyTradeLog, error) {

	if limit <= 0 {
		limit = 100 // default safety limit
	}

	var logs []model.CopyTradeLog

	err := r.db.WithContext(ctx).
		Where("execution_status = ? AND created_at < ?", model.ExecutionStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&logs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "CopyTradeLogRepository",
			"op":         "FindStalePending",
			"older_than": olderThan,
		}).WithError(err).Error("Failed to fetch stale pending copy trade logs")

		return nil, err
	}

	return logs, nil
}

// FindByUser lists a user's execution records, newest first. This is the
// downstream read interface backing the user-facing history view.
func (r *GormCopyTradeLogRepository) FindByUser(
	ctx context.Context,
	userID uint,
	limit int,
) ([]model.CopyTradeLog, error) {

	if limit <= 0 {
		limit = 50
	}

	var logs []model.CopyTradeLog

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "CopyTradeLogRepository",
			"op":      "FindByUser",
			"user_id": userID,
			"limit":   limit,
		}).WithError(err).Error("Failed to fetch copy trade logs for user")

		return nil, err
	}

	return logs, nil
}
