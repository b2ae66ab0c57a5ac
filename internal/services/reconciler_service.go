package services

import (
	"sync"

	"notesaas/internal/models"
	"notesaas/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconcilerService 后台对账服务
// 两类清扫：把过期的待处理邀请改写为expired；修复创建租户时
// 档案绑定丢失的中间态。两类操作都是幂等的，重复执行无副作用
type ReconcilerService struct {
	db      *gorm.DB
	log     *logrus.Logger
	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.Mutex
	running bool
}

// NewReconcilerService 创建对账服务
func NewReconcilerService(db *gorm.DB) *ReconcilerService {
	return &ReconcilerService{
		db:   db,
		log:  logger.GetLogger(),
		cron: cron.New(),
	}
}

// Start 启动定时对账
func (s *ReconcilerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc("@every 10m", s.Sweep)
	if err != nil {
		return err
	}
	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.log.Info("对账服务已启动")
	return nil
}

// Stop 停止定时对账
func (s *ReconcilerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.log.Info("对账服务已停止")
}

// Sweep 执行一轮对账
func (s *ReconcilerService) Sweep() {
	invitationService := NewInvitationService(s.db)
	if _, err := invitationService.SweepExpired(); err != nil {
		s.log.Errorf("清理过期邀请失败: %v", err)
	}

	if err := s.RepairTenantLinks(); err != nil {
		s.log.Errorf("修复租户绑定失败: %v", err)
	}
}

// RepairTenantLinks 修复"租户已创建但创建者档案未绑定"的中间态
// 正常流程里两个写入在同一事务内，这里兜底处理历史数据或人工操作留下的不一致
func (s *ReconcilerService) RepairTenantLinks() error {
	var orphaned []models.Tenant
	err := s.db.
		Joins("JOIN profiles ON profiles.id = tenants.created_by").
		Where("profiles.tenant_id IS NULL").
		Find(&orphaned).Error
	if err != nil {
		return err
	}

	for i := range orphaned {
		tenant := &orphaned[i]
		result := s.db.Model(&models.Profile{}).
			Where("id = ? AND tenant_id IS NULL", tenant.CreatedBy).
			Updates(map[string]interface{}{
				"tenant_id": tenant.ID,
				"role":      models.RoleCompanyAdmin,
			})
		if result.Error != nil {
			s.log.WithFields(logrus.Fields{
				"tenant_id":  tenant.ID,
				"profile_id": tenant.CreatedBy,
			}).Errorf("修复档案绑定失败: %v", result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			s.log.WithFields(logrus.Fields{
				"tenant_id":  tenant.ID,
				"profile_id": tenant.CreatedBy,
			}).Warn("修复了未绑定创建者的租户")
		}
	}

	return nil
}
