// repository/signal_repository.go
package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"copytrader/src/database"
	"copytrader/src/model"
)

// SignalRepository persists and reads trade signals. Signal rows are
// immutable: there is intentionally no update method here.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository instance bound to MainDB.
func NewSignalRepository() *SignalRepository {
	return &SignalRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a new signal row. The insert is the atomic unit of the
// ingestion path: once it succeeds the webhook caller gets its 202.
func (r *SignalRepository) Create(ctx context.Context, signal *model.Signal) error {
	err := r.db.WithContext(ctx).Create(signal).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "Create",
			"signal_id": signal.ID,
		}).WithError(err).Error("Failed to persist signal")
		return err
	}
	return nil
}

// FindByID fetches a single signal by its ID. Returns (nil, nil) when not
// found.
func (r *SignalRepository) FindByID(ctx context.Context, id string) (*model.Signal, error) {
	var signal model.Signal

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&signal).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // not found is not an error
		}

		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch signal by ID")

		return nil, err
	}

	return &signal, nil
}

// FindLatest fetches the latest signals ordered from newest to oldest.
// This is the downstream read feed consumed by the board/visualization UI.
func (r *SignalRepository) FindLatest(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 10 // default safety limit
	}

	var signals []model.Signal

	err := r.db.WithContext(ctx).
		Order("received_at DESC").
		Limit(limit).
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SignalRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest signals")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "SignalRepository",
		"op":          "FindLatest",
		"limit":       limit,
		"rows_return": len(signals),
	}).Debug("Latest signals fetched")

	return signals, nil
}
