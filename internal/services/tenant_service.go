package services

import (
	stderrors "errors"
	"unicode/utf8"

	"notesaas/internal/models"
	"notesaas/pkg/errors"
	"notesaas/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TenantService struct {
	db *gorm.DB
}

// TenantStats 租户统计信息
type TenantStats struct {
	MemberCount        int64 `json:"member_count"`
	LiveNoteCount      int64 `json:"live_note_count"`
	PendingInvitations int64 `json:"pending_invitations"`
}

func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{db: db}
}

// Create 创建租户并绑定创建者档案
// 两个写入在同一事务内完成：租户插入成功但档案未绑定是不可接受的中间态
func (s *TenantService) Create(companyName, companyEmail string, companyPhone *string, founderProfileID uint) (*models.Tenant, error) {
	if err := s.ValidateCreateParams(companyName, companyEmail); err != nil {
		return nil, err
	}

	var founder models.Profile
	if err := s.db.First(&founder, founderProfileID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("创建者档案不存在")
		}
		return nil, errors.NewDependency("查询创建者档案失败", err)
	}
	if founder.TenantID != nil {
		return nil, errors.NewConflict("创建者已属于其他公司")
	}

	tenant := &models.Tenant{
		CompanyName:      companyName,
		CompanyEmail:     companyEmail,
		CompanyPhone:     companyPhone,
		CreatedBy:        founderProfileID,
		SubscriptionPlan: models.SubscriptionStandard,
		Status:           models.TenantStatusActive,
	}

	// 开始事务
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.NewDependency("开启事务失败", tx.Error)
	}

	if err := tx.Create(tenant).Error; err != nil {
		tx.Rollback()
		return nil, errors.NewDependency("创建公司失败", err)
	}

	// 条件更新兜住前置检查之后才被绑定的创建者：绑定失败整个创建回滚
	result := tx.Model(&models.Profile{}).Where("id = ? AND tenant_id IS NULL", founderProfileID).
		Updates(map[string]interface{}{
			"tenant_id": tenant.ID,
			"role":      models.RoleCompanyAdmin,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, errors.NewDependency("绑定创建者档案失败", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, errors.NewConflict("创建者已属于其他公司")
	}

	// 提交失败无法区分两个写入是否落盘，按结果不确定上报，由对账任务兜底
	if err := tx.Commit().Error; err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"company_name": companyName,
			"founder_id":   founderProfileID,
		}).Errorf("创建租户提交失败: %v", err)
		return nil, errors.NewIndeterminate("创建公司的结果不确定，请稍后确认", err)
	}

	return tenant, nil
}

// GetByID 根据ID获取租户
func (s *TenantService) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.First(&tenant, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("公司不存在")
		}
		return nil, errors.NewDependency("查询公司失败", err)
	}
	return &tenant, nil
}

// ListJoinable 获取可加入的公司列表（注册页选择用），按公司名排序
func (s *TenantService) ListJoinable() ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := s.db.Where("status = ?", models.TenantStatusActive).
		Order("company_name").
		Find(&tenants).Error
	if err != nil {
		return nil, errors.NewDependency("查询公司列表失败", err)
	}

	// 统计每个租户的成员数量
	for i := range tenants {
		var memberCount int64
		if err := s.db.Model(&models.Profile{}).Where("tenant_id = ?", tenants[i].ID).
			Count(&memberCount).Error; err != nil {
			return nil, errors.NewDependency("统计成员数量失败", err)
		}
		tenants[i].MemberCount = int(memberCount)
	}

	return tenants, nil
}

// GetMembers 获取租户成员列表
func (s *TenantService) GetMembers(actor *models.Profile, tenantID uint) ([]*models.Profile, error) {
	if !Can(actor, ActionViewMembers, tenantID) {
		return nil, errors.NewForbidden("需要本公司管理员权限")
	}

	var members []*models.Profile
	err := s.db.Where("tenant_id = ?", tenantID).Order("created_at").Find(&members).Error
	if err != nil {
		return nil, errors.NewDependency("查询成员列表失败", err)
	}
	return members, nil
}

// GetStats 获取租户统计
func (s *TenantService) GetStats(actor *models.Profile, tenantID uint) (*TenantStats, error) {
	if !Can(actor, ActionViewMembers, tenantID) {
		return nil, errors.NewForbidden("需要本公司管理员权限")
	}

	stats := &TenantStats{}
	if err := s.db.Model(&models.Profile{}).Where("tenant_id = ?", tenantID).
		Count(&stats.MemberCount).Error; err != nil {
		return nil, errors.NewDependency("统计成员数量失败", err)
	}
	if err := s.db.Model(&models.Note{}).
		Joins("JOIN profiles ON profiles.id = notes.owner_id").
		Where("profiles.tenant_id = ? AND notes.deleted_at IS NULL", tenantID).
		Count(&stats.LiveNoteCount).Error; err != nil {
		return nil, errors.NewDependency("统计笔记数量失败", err)
	}
	if err := s.db.Model(&models.Invitation{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.InvitationStatusPending).
		Count(&stats.PendingInvitations).Error; err != nil {
		return nil, errors.NewDependency("统计邀请数量失败", err)
	}

	return stats, nil
}

// ========== 验证相关方法 ==========

// ValidateName 验证公司名称长度
func (s *TenantService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 100
}

// ValidateCreateParams 验证创建参数
func (s *TenantService) ValidateCreateParams(name, email string) error {
	if !s.ValidateName(name) {
		return errors.NewValidation("公司名称长度必须在2-100个字符之间")
	}
	if email == "" {
		return errors.NewValidation("公司联系邮箱不能为空")
	}
	return nil
}
