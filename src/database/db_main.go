package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"copytrader/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// InitMainDB initializes the main (read/write) database connection and runs
// migrations. This should be called once at application startup.
func InitMainDB() error {

	config := GetConfig()
	db, err := gorm.Open(postgres.Open(config.DatabaseURLMain),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get DB from GORM")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.Info("[database] MainDB connection established")

	if err := MainDB.AutoMigrate(
		&model.Signal{},
		&model.SignalSubscription{},
		&model.BrokerType{},
		&model.BrokerConnection{},
		&model.CopyTradeLog{},
		&model.Exception{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	if err := seedBrokerTypes(MainDB); err != nil {
		return fmt.Errorf("failed to seed broker types: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}

// seedBrokerTypes inserts the static broker catalog. Existing rows are left
// untouched so operators can edit capability flags without them being
// reverted on restart.
func seedBrokerTypes(db *gorm.DB) error {
	catalog := []model.BrokerType{
		{Name: "alpaca", RequiresPassphrase: false, SupportsEquities: true},
		{Name: "coinbase", RequiresPassphrase: true, SupportsCrypto: true},
		{Name: "okx", RequiresPassphrase: true, SupportsCrypto: true, SupportsForex: true},
	}

	return db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&catalog).Error
}
