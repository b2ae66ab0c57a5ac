package services

import (
	stderrors "errors"
	"fmt"
	"time"

	"notesaas/internal/models"
	"notesaas/pkg/config"
	"notesaas/pkg/errors"
	"notesaas/pkg/logger"
	"notesaas/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubscriptionService 订阅管理服务
type SubscriptionService struct {
	db            *gorm.DB
	log           *logrus.Logger
	standardLimit int
}

// NewSubscriptionService 创建订阅管理服务
func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{
		db:            db,
		log:           logger.GetLogger(),
		standardLimit: config.GetConfig().Quota.StandardNoteLimit,
	}
}

// Upgrade 将成员升级为高级版
func (s *SubscriptionService) Upgrade(admin *models.Profile, targetProfileID uint) error {
	target, err := s.loadTarget(admin, targetProfileID)
	if err != nil {
		return err
	}
	if target.SubscriptionType == models.SubscriptionPremium {
		return errors.NewConflict("该成员已是高级版")
	}

	return s.applyChange(admin, target, models.SubscriptionPremium, models.SubscriptionActionUpgrade)
}

// Downgrade 将成员降级为标准版
// 降级守卫：目标成员的未删除笔记数超过标准版上限时整体拒绝，
// 不存在"降了一半"的状态
func (s *SubscriptionService) Downgrade(admin *models.Profile, targetProfileID uint) error {
	target, err := s.loadTarget(admin, targetProfileID)
	if err != nil {
		return err
	}
	if target.SubscriptionType == models.SubscriptionStandard {
		return errors.NewConflict("该成员已是标准版")
	}

	return s.applyChange(admin, target, models.SubscriptionStandard, models.SubscriptionActionDowngrade)
}

// History 获取本公司的订阅变更历史
func (s *SubscriptionService) History(admin *models.Profile, tenantID uint, page, pageSize int) ([]*models.SubscriptionChange, int64, error) {
	if !Can(admin, ActionManageSubscription, tenantID) {
		return nil, 0, errors.NewForbidden("需要本公司管理员权限")
	}

	var changes []*models.SubscriptionChange
	var total int64

	query := s.db.Model(&models.SubscriptionChange{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.NewDependency("统计变更历史失败", err)
	}

	err := query.Preload("Profile").Preload("Admin").
		Order("created_at DESC").Scopes(pagination.Paginate(page, pageSize)).
		Find(&changes).Error
	if err != nil {
		return nil, 0, errors.NewDependency("查询变更历史失败", err)
	}

	return changes, total, nil
}

// loadTarget 加载目标成员并校验管理权限
func (s *SubscriptionService) loadTarget(admin *models.Profile, targetProfileID uint) (*models.Profile, error) {
	var target models.Profile
	err := s.db.First(&target, targetProfileID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("成员不存在")
		}
		return nil, errors.NewDependency("查询成员失败", err)
	}

	if target.TenantID == nil || !Can(admin, ActionManageSubscription, *target.TenantID) {
		return nil, errors.NewForbidden("只能管理本公司成员的订阅")
	}

	return &target, nil
}

// applyChange 应用订阅变更并记录历史
// 降级时的配额复核与变更在同一事务内，并先锁定档案行，
// 避开与并发建笔记的写写竞争
func (s *SubscriptionService) applyChange(admin *models.Profile, target *models.Profile, newType, action string) error {
	oldType := target.SubscriptionType

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 锁定目标档案行
		lock := tx.Model(&models.Profile{}).Where("id = ?", target.ID).
			Update("updated_at", time.Now())
		if lock.Error != nil {
			return lock.Error
		}

		if action == models.SubscriptionActionDowngrade {
			var liveCount int64
			if err := tx.Model(&models.Note{}).
				Where("owner_id = ? AND deleted_at IS NULL", target.ID).
				Count(&liveCount).Error; err != nil {
				return err
			}
			if liveCount > int64(s.standardLimit) {
				return errors.NewConflict(fmt.Sprintf(
					"该成员有%d条笔记，超过标准版上限%d条，无法降级", liveCount, s.standardLimit))
			}
		}

		if err := tx.Model(&models.Profile{}).Where("id = ?", target.ID).
			Update("subscription_type", newType).Error; err != nil {
			return err
		}

		change := &models.SubscriptionChange{
			TenantID:   *target.TenantID,
			ProfileID:  target.ID,
			ChangedBy:  admin.ID,
			ActionType: action,
			OldType:    oldType,
			NewType:    newType,
		}
		return tx.Create(change).Error
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return appErr
		}
		return errors.NewDependency("变更订阅失败", err)
	}

	s.log.WithFields(logrus.Fields{
		"profile_id": target.ID,
		"admin_id":   admin.ID,
		"action":     action,
	}).Info("订阅变更完成")

	return nil
}
