package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"copytrader/src/database"
	"copytrader/src/model"
)

// SubscriptionRepository reads signal subscriptions. Subscriptions are
// created and edited elsewhere; this service never writes them.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SubscriptionRepository) WithDB(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindActiveMatches returns the subscriptions a signal fans out to: active
// status, matching provider, and either no symbol filter or an exact symbol
// match. An empty result is a normal outcome, not an error.
func (r *SubscriptionRepository) FindActiveMatches(
	ctx context.Context,
	providerID string,
	symbol string,
) ([]model.SignalSubscription, error) {

	var subscriptions []model.SignalSubscription

	err := r.db.WithContext(ctx).
		Where("status = ? AND provider_id = ? AND (symbol IS NULL OR symbol = ?)",
			model.SubscriptionStatusActive, providerID, symbol).
		Find(&subscriptions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "SubscriptionRepository",
			"op":          "FindActiveMatches",
			"provider_id": providerID,
			"symbol":      symbol,
		}).WithError(err).Error("Failed to fetch matching subscriptions")

		return nil, err
	}

	return subscriptions, nil
}

// FindByID fetches one subscription. Returns (nil, nil) when not found;
// the recovery sweep uses that to mark orphaned pending rows failed.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id uint) (*model.SignalSubscription, error) {
	var subscription model.SignalSubscription

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&subscription).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &subscription, nil
}
