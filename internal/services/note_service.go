package services

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"notesaas/internal/models"
	"notesaas/pkg/config"
	"notesaas/pkg/errors"
	"notesaas/pkg/logger"
	"notesaas/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NoteService 笔记服务，配额在写入路径上强制执行
type NoteService struct {
	db            *gorm.DB
	log           *logrus.Logger
	standardLimit int
}

// NewNoteService 创建笔记服务
func NewNoteService(db *gorm.DB) *NoteService {
	return &NoteService{
		db:            db,
		log:           logger.GetLogger(),
		standardLimit: config.GetConfig().Quota.StandardNoteLimit,
	}
}

// CreateNoteRequest 创建笔记请求
type CreateNoteRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// UpdateNoteRequest 更新笔记请求
type UpdateNoteRequest struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags"`
	IsFavorite *bool     `json:"is_favorite"`
}

// CountLive 统计未删除的笔记数量
func (s *NoteService) CountLive(ownerID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Note{}).
		Where("owner_id = ? AND deleted_at IS NULL", ownerID).
		Count(&count).Error
	if err != nil {
		return 0, errors.NewDependency("统计笔记数量失败", err)
	}
	return count, nil
}

// CanCreate 当前档案是否还能创建笔记
func (s *NoteService) CanCreate(owner *models.Profile) (bool, error) {
	if owner.IsPremium() {
		return true, nil
	}
	count, err := s.CountLive(owner.ID)
	if err != nil {
		return false, err
	}
	return count < int64(s.standardLimit), nil
}

// Create 创建笔记
// 标准版的配额检查和插入在同一事务内完成：先对档案行加写锁，
// 把同一用户的并发创建串行化，再计数判定。客户端先查后插的方式
// 在并发下会双双看到count=2从而突破上限，这里不允许
func (s *NoteService) Create(owner *models.Profile, req *CreateNoteRequest) (*models.Note, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.NewValidation("笔记标题不能为空")
	}

	note := &models.Note{
		OwnerID: owner.ID,
		Title:   req.Title,
		Content: req.Content,
	}
	if len(req.Tags) > 0 {
		tagsJSON, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, errors.NewValidation("标签格式错误")
		}
		note.Tags = tagsJSON
	}

	// 高级版不设上限
	if owner.IsPremium() {
		if err := s.db.Create(note).Error; err != nil {
			return nil, errors.NewDependency("创建笔记失败", err)
		}
		return note, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 对档案行做一次空更新以获取行锁，串行化该用户的并发创建
		lock := tx.Model(&models.Profile{}).Where("id = ?", owner.ID).
			Update("updated_at", time.Now())
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var count int64
		if err := tx.Model(&models.Note{}).
			Where("owner_id = ? AND deleted_at IS NULL", owner.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(s.standardLimit) {
			return errors.NewConflict(fmt.Sprintf("标准版最多保留%d条笔记，升级到高级版可不限数量", s.standardLimit))
		}

		return tx.Create(note).Error
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("档案不存在")
		}
		return nil, errors.NewDependency("创建笔记失败", err)
	}

	return note, nil
}

// List 获取笔记列表，软删除的笔记不出现在这里
func (s *NoteService) List(ownerID uint, keyword string, page, pageSize int) ([]*models.Note, int64, error) {
	var notes []*models.Note
	var total int64

	query := s.db.Model(&models.Note{}).
		Where("owner_id = ? AND deleted_at IS NULL", ownerID)
	if keyword != "" {
		query = query.Where("title LIKE ?", fmt.Sprintf("%%%s%%", keyword))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.NewDependency("统计笔记失败", err)
	}

	err := query.Order("created_at DESC").Scopes(pagination.Paginate(page, pageSize)).Find(&notes).Error
	if err != nil {
		return nil, 0, errors.NewDependency("查询笔记列表失败", err)
	}

	return notes, total, nil
}

// GetByID 按ID获取笔记，软删除的行仍可取到（审计用）
// 所有者本人或同公司管理员可见
func (s *NoteService) GetByID(actor *models.Profile, noteID uint) (*models.Note, error) {
	var note models.Note
	err := s.db.First(&note, noteID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("笔记不存在")
		}
		return nil, errors.NewDependency("查询笔记失败", err)
	}

	if note.OwnerID != actor.ID && !s.canViewAsAdmin(actor, note.OwnerID) {
		return nil, errors.NewForbidden("无权查看该笔记")
	}

	return &note, nil
}

// Update 更新笔记，仅所有者可操作，已删除的笔记不可更新
func (s *NoteService) Update(owner *models.Profile, noteID uint, req *UpdateNoteRequest) (*models.Note, error) {
	var note models.Note
	err := s.db.Where("id = ? AND owner_id = ?", noteID, owner.ID).First(&note).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("笔记不存在")
		}
		return nil, errors.NewDependency("查询笔记失败", err)
	}
	if note.IsDeleted() {
		return nil, errors.NewConflict("笔记已删除")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, errors.NewValidation("笔记标题不能为空")
		}
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Tags != nil {
		tagsJSON, err := json.Marshal(*req.Tags)
		if err != nil {
			return nil, errors.NewValidation("标签格式错误")
		}
		updates["tags"] = tagsJSON
	}
	if req.IsFavorite != nil {
		updates["is_favorite"] = *req.IsFavorite
	}
	if len(updates) == 0 {
		return &note, nil
	}

	if err := s.db.Model(&note).Updates(updates).Error; err != nil {
		return nil, errors.NewDependency("更新笔记失败", err)
	}

	return &note, nil
}

// SoftDelete 软删除：只置删除时间戳，行保留
func (s *NoteService) SoftDelete(owner *models.Profile, noteID uint) error {
	now := time.Now()
	result := s.db.Model(&models.Note{}).
		Where("id = ? AND owner_id = ? AND deleted_at IS NULL", noteID, owner.ID).
		Update("deleted_at", &now)
	if result.Error != nil {
		return errors.NewDependency("删除笔记失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFound("笔记不存在或已删除")
	}
	return nil
}

// ListByOwnerForAdmin 管理员查看本公司成员的笔记列表
func (s *NoteService) ListByOwnerForAdmin(admin *models.Profile, ownerProfileID uint, page, pageSize int) ([]*models.Note, int64, error) {
	var target models.Profile
	if err := s.db.First(&target, ownerProfileID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, errors.NewNotFound("成员不存在")
		}
		return nil, 0, errors.NewDependency("查询成员失败", err)
	}
	if target.TenantID == nil || !Can(admin, ActionViewTenantNotes, *target.TenantID) {
		return nil, 0, errors.NewForbidden("只能查看本公司成员的笔记")
	}

	return s.List(ownerProfileID, "", page, pageSize)
}

// canViewAsAdmin 操作者是否能以管理员身份查看目标用户的笔记
func (s *NoteService) canViewAsAdmin(actor *models.Profile, ownerProfileID uint) bool {
	var owner models.Profile
	if err := s.db.First(&owner, ownerProfileID).Error; err != nil {
		return false
	}
	return owner.TenantID != nil && Can(actor, ActionViewTenantNotes, *owner.TenantID)
}

// StandardLimit 标准版笔记上限
func (s *NoteService) StandardLimit() int {
	return s.standardLimit
}
