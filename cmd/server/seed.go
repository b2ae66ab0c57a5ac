package main

import (
	"fmt"
	"notesaas/internal/database"
	"notesaas/internal/models"
	"notesaas/pkg/logger"
	"os"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 创建引导账号（仅在配置了SEED_ADMIN_EMAIL时）
	if err := createBootstrapAccount(db); err != nil {
		return fmt.Errorf("创建引导账号失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createBootstrapAccount 创建引导账号
// 用于新环境的首次登录验证，邮箱和密码通过环境变量指定
func createBootstrapAccount(db *gorm.DB) error {
	email := os.Getenv("SEED_ADMIN_EMAIL")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.GetLogger().Info("未配置引导账号，跳过创建")
		return nil
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		logger.GetLogger().Info("引导账号已存在，跳过创建")
		return nil
	}

	user := &models.User{
		Email:  email,
		Status: models.UserStatusActive,
	}
	if err := user.SetPassword(password); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile := &models.Profile{
			UserID:           user.ID,
			Name:             "Admin",
			Email:            email,
			Role:             models.RoleIndependentUser,
			SubscriptionType: models.SubscriptionPremium,
			Active:           true,
		}
		return tx.Create(profile).Error
	})
}
