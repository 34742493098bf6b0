package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"copytrader/src/database"
	"copytrader/src/model"
)

type BrokerConnectionRepository interface {
	FindConnectedByUser(ctx context.Context, userID uint) (*model.BrokerConnection, error)
	MarkInvalid(ctx context.Context, connectionID uint) error
}

type GormBrokerConnectionRepository struct {
	db *gorm.DB
}

func NewBrokerConnectionRepository() *GormBrokerConnectionRepository {
	return &GormBrokerConnectionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *GormBrokerConnectionRepository) WithDB(db *gorm.DB) *GormBrokerConnectionRepository {
	return &GormBrokerConnectionRepository{db: db}
}

// FindConnectedByUser returns the user's usable broker connection with its
// broker type preloaded. Returns (nil, nil) when the user has no connection
// in connected state.
func (r *GormBrokerConnectionRepository) FindConnectedByUser(
	ctx context.Context,
	userID uint,
) (*model.BrokerConnection, error) {

	var connection model.BrokerConnection

	err := r.db.WithContext(ctx).
		Preload("BrokerType").
		Where("user_id = ? AND status = ?", userID, model.BrokerConnectionStatusConnected).
		Order("id ASC").
		First(&connection).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "BrokerConnectionRepository",
			"op":      "FindConnectedByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch broker connection")

		return nil, err
	}

	return &connection, nil
}

// MarkInvalid flips a connection's status to invalid after the broker
// rejected its credentials. The transition only ever goes one direction,
// so a concurrent last-writer-wins update is fine.
func (r *GormBrokerConnectionRepository) MarkInvalid(ctx context.Context, connectionID uint) error {
	res := r.db.WithContext(ctx).
		Model(&model.BrokerConnection{}).
		Where("id = ?", connectionID).
		Update("status", model.BrokerConnectionStatusInvalid)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.WithField("connection_id", connectionID).
		Warn("broker connection marked invalid after credential rejection")

	return nil
}
