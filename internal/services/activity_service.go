package services

import (
	"notesaas/internal/models"
	"notesaas/pkg/errors"
	"notesaas/pkg/logger"
	"notesaas/pkg/pagination"
	"notesaas/pkg/stream"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActivityService 活动日志服务
type ActivityService struct {
	db     *gorm.DB
	log    *logrus.Logger
	stream *stream.ActivityStream
}

// NewActivityService 创建活动日志服务，stream可为nil（不推送实时事件）
func NewActivityService(db *gorm.DB, activityStream *stream.ActivityStream) *ActivityService {
	return &ActivityService{
		db:     db,
		log:    logger.GetLogger(),
		stream: activityStream,
	}
}

// Record 追加一条活动日志
// 日志失败不影响主操作：只记诊断日志，永不向调用方传播错误
func (s *ActivityService) Record(actorID uint, tenantID *uint, action, resourceType, resourceID, description string) {
	entry := &models.ActivityLog{
		ActorID:     actorID,
		TenantID:    tenantID,
		Action:      action,
		Description: description,
	}
	if resourceType != "" {
		entry.ResourceType = &resourceType
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.WithFields(logrus.Fields{
			"actor_id": actorID,
			"action":   action,
		}).Warnf("写入活动日志失败: %v", err)
		return
	}

	if s.stream != nil {
		var streamTenantID uint
		if tenantID != nil {
			streamTenantID = *tenantID
		}
		if err := s.stream.Publish(actorID, streamTenantID, action, resourceType, resourceID, description); err != nil {
			s.log.Warnf("推送活动事件失败: %v", err)
		}
	}
}

// ListForProfile 获取可见的活动日志
// 公司管理员看本公司全部，其他人只看自己的
func (s *ActivityService) ListForProfile(actor *models.Profile, page, pageSize int) ([]*models.ActivityLog, int64, error) {
	query := s.db.Model(&models.ActivityLog{})
	if actor.TenantID != nil && Can(actor, ActionViewTenantActivity, *actor.TenantID) {
		query = query.Where("tenant_id = ?", *actor.TenantID)
	} else {
		query = query.Where("actor_id = ?", actor.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.NewDependency("统计活动日志失败", err)
	}

	var entries []*models.ActivityLog
	err := query.Preload("Actor").
		Order("created_at DESC").Scopes(pagination.Paginate(page, pageSize)).
		Find(&entries).Error
	if err != nil {
		return nil, 0, errors.NewDependency("查询活动日志失败", err)
	}

	return entries, total, nil
}
