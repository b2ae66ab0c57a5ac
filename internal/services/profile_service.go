package services

import (
	stderrors "errors"
	"time"
	"unicode/utf8"

	"notesaas/internal/models"
	"notesaas/pkg/errors"
	"notesaas/pkg/logger"

	"gorm.io/gorm"
)

// ProfileService 档案服务
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// GetByID 根据ID获取档案
func (s *ProfileService) GetByID(id uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Preload("Tenant").First(&profile, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("档案不存在")
		}
		return nil, errors.NewDependency("查询档案失败", err)
	}
	return &profile, nil
}

// GetByEmail 根据邮箱获取档案
func (s *ProfileService) GetByEmail(email string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Where("email = ?", email).First(&profile).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("档案不存在")
		}
		return nil, errors.NewDependency("查询档案失败", err)
	}
	return &profile, nil
}

// Resolve 按账号解析档案：每个账号恰好对应一个档案
// 档案不存在时自动补建（无租户的company_member），
// 其他查询失败必须原样上抛，调用方据此拒绝发放令牌（失败关闭）
func (s *ProfileService) Resolve(user *models.User, name string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Preload("Tenant").Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewDependency("查询档案失败", err)
	}

	// 自愈补建
	if name == "" {
		name = user.Email
	}
	profile = models.Profile{
		UserID:           user.ID,
		Name:             name,
		Email:            user.Email,
		Role:             models.RoleCompanyMember,
		SubscriptionType: models.SubscriptionStandard,
		Active:           true,
	}
	if err := s.db.Create(&profile).Error; err != nil {
		logger.GetLogger().Errorf("补建档案失败 user_id=%d: %v", user.ID, err)
		return nil, errors.NewDependency("创建档案失败", err)
	}
	return &profile, nil
}

// UpdateLastLogin 更新最后登录时间
func (s *ProfileService) UpdateLastLogin(profileID uint) error {
	now := time.Now()
	return s.db.Model(&models.Profile{}).Where("id = ?", profileID).
		Update("last_login_at", &now).Error
}

// ValidateName 验证显示名称
func (s *ProfileService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 1 && runeCount <= 100
}
