package services

import (
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"strings"
	"time"

	"notesaas/internal/models"
	"notesaas/pkg/config"
	"notesaas/pkg/errors"
	"notesaas/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InvitationService 邀请服务
type InvitationService struct {
	db       *gorm.DB
	log      *logrus.Logger
	validity time.Duration
}

// NewInvitationService 创建邀请服务
func NewInvitationService(db *gorm.DB) *InvitationService {
	return &InvitationService{
		db:       db,
		log:      logger.GetLogger(),
		validity: config.GetConfig().Invitation.Validity,
	}
}

// CreateInvitationRequest 创建邀请请求
type CreateInvitationRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Role    string `json:"role" binding:"required"`
	Message string `json:"message"`
}

// InvitationResponse 邀请响应
type InvitationResponse struct {
	ID           uint      `json:"id"`
	CompanyName  string    `json:"company_name"`
	InviterName  string    `json:"inviter_name"`
	InviteeEmail string    `json:"invitee_email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Token        string    `json:"token,omitempty"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Create 创建邀请
func (s *InvitationService) Create(inviter *models.Profile, tenantID uint, req *CreateInvitationRequest) (*models.Invitation, error) {
	// 检查邀请人是否是该租户的管理员
	if !Can(inviter, ActionInviteMember, tenantID) {
		return nil, errors.NewForbidden("只有本公司管理员才能邀请用户")
	}

	// 授予的角色必须是公司内角色
	if req.Role != models.RoleCompanyAdmin && req.Role != models.RoleCompanyMember {
		return nil, errors.NewValidation("邀请角色必须是company_admin或company_member")
	}

	// 受邀邮箱与注册邮箱同规则归一化，否则大小写不同的同一邮箱永远对不上
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 检查该邮箱是否已是本公司成员
	var existing models.Profile
	err := s.db.Where("email = ?", email).First(&existing).Error
	inviteeExists := err == nil
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewDependency("查询档案失败", err)
	}
	if inviteeExists && existing.BelongsToTenant(tenantID) {
		return nil, errors.NewConflict("该用户已是公司成员")
	}

	// 生成邀请令牌
	token, err := s.generateToken()
	if err != nil {
		return nil, errors.NewDependency("生成邀请令牌失败", err)
	}

	invitation := &models.Invitation{
		TenantID:     tenantID,
		InviterID:    inviter.ID,
		InviteeEmail: email,
		Role:         req.Role,
		Status:       models.InvitationStatusPending,
		Token:        token,
		Message:      req.Message,
		ExpiresAt:    time.Now().Add(s.validity),
	}
	if inviteeExists {
		invitation.InviteeID = &existing.ID
	}

	// 重复邀请检查、名额检查和插入在同一事务内完成：先对租户行加写锁，
	// 把同一公司的并发邀请串行化，否则两个请求会同时看到count=0双双落库
	err = s.db.Transaction(func(tx *gorm.DB) error {
		lock := tx.Model(&models.Tenant{}).Where("id = ?", tenantID).
			Update("updated_at", time.Now())
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var tenant models.Tenant
		if err := tx.First(&tenant, tenantID).Error; err != nil {
			return err
		}

		var pendingCount int64
		if err := tx.Model(&models.Invitation{}).
			Where("tenant_id = ? AND invitee_email = ? AND status = ? AND expires_at > ?",
				tenantID, email, models.InvitationStatusPending, time.Now()).
			Count(&pendingCount).Error; err != nil {
			return err
		}
		if pendingCount > 0 {
			return errors.NewConflict("该邮箱已有待处理的邀请")
		}

		var memberCount int64
		if err := tx.Model(&models.Profile{}).Where("tenant_id = ?", tenantID).
			Count(&memberCount).Error; err != nil {
			return err
		}
		if memberCount >= int64(tenant.MaxUsers) {
			return errors.NewConflict("公司成员已达上限")
		}

		return tx.Create(invitation).Error
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("公司不存在")
		}
		s.log.Errorf("创建邀请失败: %v", err)
		return nil, errors.NewDependency("创建邀请失败", err)
	}

	return invitation, nil
}

// Accept 接受邀请
// 状态推进用条件更新实现：两个并发的接受请求只有一个能把
// pending改成accepted，另一个拿到"邀请已处理"
func (s *InvitationService) Accept(token string, actor *models.Profile) (*models.Tenant, error) {
	invitation, err := s.findByToken(token)
	if err != nil {
		return nil, err
	}

	// 令牌持有不等于身份：接受人的档案邮箱必须与受邀邮箱一致
	if !strings.EqualFold(actor.Email, invitation.InviteeEmail) {
		return nil, errors.NewForbidden("邀请邮箱与当前用户不匹配")
	}

	switch invitation.EffectiveStatus() {
	case models.InvitationStatusPending:
	case models.InvitationStatusExpired:
		return nil, errors.NewConflict("邀请已过期")
	default:
		return nil, errors.NewConflict("邀请已处理")
	}

	if actor.TenantID != nil {
		return nil, errors.NewConflict("当前用户已属于其他公司")
	}

	// 开始事务
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.NewDependency("开启事务失败", tx.Error)
	}

	now := time.Now()
	result := tx.Model(&models.Invitation{}).
		Where("id = ? AND status = ? AND expires_at > ?",
			invitation.ID, models.InvitationStatusPending, now).
		Updates(map[string]interface{}{
			"status":      models.InvitationStatusAccepted,
			"accepted_at": &now,
			"invitee_id":  actor.ID,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, errors.NewDependency("更新邀请状态失败", result.Error)
	}
	if result.RowsAffected == 0 {
		// 并发请求抢先完成了状态推进
		tx.Rollback()
		return nil, errors.NewConflict("邀请已处理")
	}

	// 绑定档案到租户并授予角色
	profileResult := tx.Model(&models.Profile{}).
		Where("id = ? AND tenant_id IS NULL", actor.ID).
		Updates(map[string]interface{}{
			"tenant_id": invitation.TenantID,
			"role":      invitation.Role,
		})
	if profileResult.Error != nil {
		tx.Rollback()
		return nil, errors.NewDependency("绑定档案失败", profileResult.Error)
	}
	if profileResult.RowsAffected == 0 {
		tx.Rollback()
		return nil, errors.NewConflict("当前用户已属于其他公司")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.NewIndeterminate("接受邀请的结果不确定，请刷新确认", err)
	}

	s.log.WithFields(logrus.Fields{
		"profile_id": actor.ID,
		"tenant_id":  invitation.TenantID,
		"inviter_id": invitation.InviterID,
	}).Info("用户接受邀请加入公司")

	return &invitation.Tenant, nil
}

// Decline 拒绝邀请
func (s *InvitationService) Decline(token string, actor *models.Profile) error {
	invitation, err := s.findByToken(token)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actor.Email, invitation.InviteeEmail) {
		return errors.NewForbidden("邀请邮箱与当前用户不匹配")
	}

	switch invitation.EffectiveStatus() {
	case models.InvitationStatusPending:
	case models.InvitationStatusExpired:
		return errors.NewConflict("邀请已过期")
	default:
		return errors.NewConflict("邀请已处理")
	}

	now := time.Now()
	result := s.db.Model(&models.Invitation{}).
		Where("id = ? AND status = ? AND expires_at > ?",
			invitation.ID, models.InvitationStatusPending, now).
		Updates(map[string]interface{}{
			"status":      models.InvitationStatusDeclined,
			"declined_at": &now,
			"invitee_id":  actor.ID,
		})
	if result.Error != nil {
		return errors.NewDependency("更新邀请状态失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflict("邀请已处理")
	}

	return nil
}

// Cancel 取消邀请（邀请人或本公司管理员操作），只能取消待处理的邀请
func (s *InvitationService) Cancel(invitationID uint, actor *models.Profile, tenantID uint) error {
	var invitation models.Invitation
	err := s.db.Where("id = ? AND tenant_id = ?", invitationID, tenantID).First(&invitation).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NewNotFound("邀请不存在")
		}
		return errors.NewDependency("查询邀请失败", err)
	}

	if invitation.InviterID != actor.ID && !Can(actor, ActionCancelInvitation, tenantID) {
		return errors.NewForbidden("无权取消该邀请")
	}

	result := s.db.Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitationID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusExpired)
	if result.Error != nil {
		return errors.NewDependency("取消邀请失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflict("只能取消待处理的邀请")
	}

	return nil
}

// GetByToken 根据令牌获取邀请详情
func (s *InvitationService) GetByToken(token string) (*models.Invitation, error) {
	return s.findByToken(token)
}

// ListByTenant 获取租户的邀请列表
func (s *InvitationService) ListByTenant(actor *models.Profile, tenantID uint, status string) ([]*InvitationResponse, error) {
	if !Can(actor, ActionListInvitations, tenantID) {
		return nil, errors.NewForbidden("需要本公司管理员权限")
	}

	var invitations []models.Invitation
	err := s.db.Where("tenant_id = ?", tenantID).
		Preload("Tenant").
		Preload("Inviter").
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, errors.NewDependency("查询邀请列表失败", err)
	}

	return s.toResponses(invitations, status, true), nil
}

// CandidateResponse 可邀请用户条目
type CandidateResponse struct {
	ProfileID        uint      `json:"profile_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	SubscriptionType string    `json:"subscription_type"`
	RegisteredAt     time.Time `json:"registered_at"`
	InvitationStatus string    `json:"invitation_status,omitempty"`
}

// ListCandidates 获取可邀请的用户目录：未归属任何公司的活跃档案，
// 附带本公司对每个邮箱最近一次邀请的有效状态
func (s *InvitationService) ListCandidates(actor *models.Profile, tenantID uint) ([]*CandidateResponse, error) {
	if !Can(actor, ActionInviteMember, tenantID) {
		return nil, errors.NewForbidden("只有本公司管理员才能查看可邀请用户")
	}

	var profiles []models.Profile
	err := s.db.Where("tenant_id IS NULL AND active = ?", true).
		Order("created_at DESC").Find(&profiles).Error
	if err != nil {
		return nil, errors.NewDependency("查询用户目录失败", err)
	}
	if len(profiles) == 0 {
		return []*CandidateResponse{}, nil
	}

	emails := make([]string, 0, len(profiles))
	for i := range profiles {
		emails = append(emails, profiles[i].Email)
	}

	var invitations []models.Invitation
	err = s.db.Where("tenant_id = ? AND invitee_email IN ?", tenantID, emails).
		Order("created_at, id").Find(&invitations).Error
	if err != nil {
		return nil, errors.NewDependency("查询邀请失败", err)
	}

	// 按创建时间升序遍历，后写覆盖先写，留下每个邮箱最近一次邀请的状态
	latest := make(map[string]string, len(invitations))
	for i := range invitations {
		latest[invitations[i].InviteeEmail] = invitations[i].EffectiveStatus()
	}

	candidates := make([]*CandidateResponse, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		candidates = append(candidates, &CandidateResponse{
			ProfileID:        p.ID,
			Name:             p.Name,
			Email:            p.Email,
			SubscriptionType: p.SubscriptionType,
			RegisteredAt:     p.CreatedAt,
			InvitationStatus: latest[p.Email],
		})
	}
	return candidates, nil
}

// ListByEmail 获取指定邮箱收到的邀请列表
func (s *InvitationService) ListByEmail(email string, status string) ([]*InvitationResponse, error) {
	var invitations []models.Invitation
	err := s.db.Where("invitee_email = ?", email).
		Preload("Tenant").
		Preload("Inviter").
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, errors.NewDependency("查询邀请列表失败", err)
	}

	return s.toResponses(invitations, status, false), nil
}

// SweepExpired 将已过期的待处理邀请改写为过期状态
// 读路径不依赖这次改写，清理只是让存储状态追上事实
func (s *InvitationService) SweepExpired() (int64, error) {
	result := s.db.Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationStatusPending, time.Now()).
		Update("status", models.InvitationStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Infof("清理过期邀请 %d 条", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// findByToken 按令牌查找邀请
func (s *InvitationService) findByToken(token string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.Where("token = ?", token).
		Preload("Tenant").
		Preload("Inviter").
		First(&invitation).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("邀请不存在")
		}
		return nil, errors.NewDependency("查询邀请失败", err)
	}
	return &invitation, nil
}

// toResponses 转换为响应格式，按有效状态过滤
func (s *InvitationService) toResponses(invitations []models.Invitation, status string, includeToken bool) []*InvitationResponse {
	responses := make([]*InvitationResponse, 0, len(invitations))
	for i := range invitations {
		inv := &invitations[i]
		effective := inv.EffectiveStatus()
		if status != "" && effective != status {
			continue
		}
		resp := &InvitationResponse{
			ID:           inv.ID,
			InviteeEmail: inv.InviteeEmail,
			Role:         inv.Role,
			Status:       effective,
			Message:      inv.Message,
			CreatedAt:    inv.CreatedAt,
			ExpiresAt:    inv.ExpiresAt,
		}
		if inv.Tenant.ID != 0 {
			resp.CompanyName = inv.Tenant.CompanyName
		}
		if inv.Inviter.ID != 0 {
			resp.InviterName = inv.Inviter.Name
		}
		// 令牌只回给管理端和受邀人本人
		if includeToken || effective == models.InvitationStatusPending {
			resp.Token = inv.Token
		}
		responses = append(responses, resp)
	}
	return responses
}

// generateToken 生成邀请令牌
func (s *InvitationService) generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
