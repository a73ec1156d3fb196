package database

import (
	"cogscreen-go/internal/config"
	logging "cogscreen-go/internal/logging"
	"cogscreen-go/internal/models"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Init connects to postgres and migrates the schema.
func Init(log *zap.Logger, dbConf config.DatabaseConfig) error {
	db, err := gorm.Open(postgres.Open(dbConf.DSN()), &gorm.Config{
		Logger: logging.NewGormZapLogger(log, dbConf.SlowQuery),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = db

	log.Info("Database connection established successfully.")
	return runMigrations(log)
}

func runMigrations(log *zap.Logger) error {
	// GORM's AutoMigrate will create tables, columns, and foreign keys.
	// It will NOT create custom indexes, so we handle that separately.
	err := DB.AutoMigrate(
		&models.User{},
		&models.TMTResult{},
		&models.TMTAttempt{},
		&models.VerbalFluencyResult{},
		&models.PredictionRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	historyIndex := `CREATE INDEX IF NOT EXISTS idx_tmt_history ON tmt_results (owner_id, variant, completed_at DESC);`
	if err := DB.Exec(historyIndex).Error; err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	log.Info("Custom indexes ensured successfully.")
	return nil
}

// Close releases the connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
