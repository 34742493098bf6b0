package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"copytrader/src/database"
	"copytrader/src/model"
)

type ExceptionRepository interface {
	Create(ctx context.Context, exception *model.Exception) error
}

type GormExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *GormExceptionRepository {
	return &GormExceptionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *GormExceptionRepository) WithDB(db *gorm.DB) *GormExceptionRepository {
	return &GormExceptionRepository{db: db}
}

// Create persists a system exception. Failures here are logged and
// swallowed: exception recording must never take the pipeline down.
func (r *GormExceptionRepository) Create(ctx context.Context, exception *model.Exception) error {
	if err := r.db.WithContext(ctx).Create(exception).Error; err != nil {
		logger.WithError(err).
			WithField("module", exception.Module).
			Error("Failed to persist exception record")
		return err
	}
	return nil
}
