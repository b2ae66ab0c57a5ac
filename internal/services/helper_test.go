package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"notesaas/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

// setupTestDB 创建独立的内存数据库
// 限制为单连接：内存库的并发写由数据库层串行化，事务语义与生产库一致
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tenant{},
		&models.Profile{},
		&models.Invitation{},
		&models.Note{},
		&models.SubscriptionChange{},
		&models.ActivityLog{},
	))

	return db
}

// createTestAccount 创建账号和档案
func createTestAccount(t *testing.T, db *gorm.DB, email, name, role, subscription string) (*models.User, *models.Profile) {
	t.Helper()

	user := &models.User{
		Email:  email,
		Status: models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)

	profile := &models.Profile{
		UserID:           user.ID,
		Name:             name,
		Email:            email,
		Role:             role,
		SubscriptionType: subscription,
		Active:           true,
	}
	require.NoError(t, db.Create(profile).Error)

	return user, profile
}

// createTestTenant 创建租户并把创建者档案绑定为管理员
func createTestTenant(t *testing.T, db *gorm.DB, companyName string, founder *models.Profile) *models.Tenant {
	t.Helper()

	tenant, err := NewTenantService(db).Create(companyName, fmt.Sprintf("contact@%d.example.com", time.Now().UnixNano()), nil, founder.ID)
	require.NoError(t, err)

	// 回读绑定后的档案状态
	require.NoError(t, db.First(founder, founder.ID).Error)
	return tenant
}

// reloadProfile 回读档案
func reloadProfile(t *testing.T, db *gorm.DB, id uint) *models.Profile {
	t.Helper()

	var profile models.Profile
	require.NoError(t, db.First(&profile, id).Error)
	return &profile
}
