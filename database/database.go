package database

import (
	"fmt"

	"vintagemart/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Seller{},
		&models.SellerSubscription{},
		&models.BillingPlan{},
		&models.Invoice{},
		&models.Payment{},
	}
}

// Config is shared by every connection so unique violations surface as
// gorm.ErrDuplicatedKey on all drivers.
func Config(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

func ConnectDatabase(dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), Config(logger.Warn))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db

	log.Info("Running database migrations...")
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Info("Database migration completed")
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	return nil
}

// ClearDBAndMigrate drops all tables and re-runs migrations.
// This is primarily for development/testing purposes.
func ClearDBAndMigrate() error {
	log.Warn("Clearing database...")
	if err := DB.Migrator().DropTable(Models()...); err != nil {
		log.WithError(err).Error("Failed to drop tables")
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	log.Info("Database cleared. Running migrations again...")
	if err := Migrate(DB); err != nil {
		log.WithError(err).Error("Failed to re-migrate database")
		return fmt.Errorf("failed to re-migrate database: %w", err)
	}
	log.Info("Database re-migrated successfully")
	return nil
}
