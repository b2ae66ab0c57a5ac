package database

import (
	"notesaas/internal/models"
	"notesaas/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.User{},
		&models.Tenant{},
		&models.Profile{},
		&models.Invitation{},
		&models.Note{},
		&models.SubscriptionChange{},
		&models.ActivityLog{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
