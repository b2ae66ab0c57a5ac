package services

import (
	stderrors "errors"
	"strings"

	"notesaas/internal/models"
	"notesaas/pkg/errors"

	"gorm.io/gorm"
)

// UserService 账号服务
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// 注册账号类型常量
const (
	AccountTypeCompany     = "company"     // 创建公司并成为管理员
	AccountTypeMember      = "member"      // 普通用户，可被邀请加入公司
	AccountTypeIndependent = "independent" // 独立用户
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=6"`
	Name         string  `json:"name" binding:"required"`
	AccountType  string  `json:"account_type" binding:"required"`
	CompanyName  string  `json:"company_name"`
	CompanyPhone *string `json:"company_phone"`
}

// Register 注册账号：创建账号与档案；公司类型的注册
// 随后由调用方触发租户创建（含档案绑定的事务）
func (s *UserService) Register(req *RegisterRequest) (*models.User, *models.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	switch req.AccountType {
	case AccountTypeCompany:
		// 公司参数先于建号校验：校验放在建号之后会让一次失败的注册永久占用邮箱
		if err := NewTenantService(s.db).ValidateCreateParams(req.CompanyName, email); err != nil {
			return nil, nil, err
		}
	case AccountTypeMember, AccountTypeIndependent:
	default:
		return nil, nil, errors.NewValidation("账号类型无效")
	}

	// 检查邮箱是否重复
	var emailCount int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&emailCount).Error; err != nil {
		return nil, nil, errors.NewDependency("查询账号失败", err)
	}
	if emailCount > 0 {
		return nil, nil, errors.NewConflict("邮箱已被注册")
	}

	user := &models.User{
		Email:  email,
		Status: models.UserStatusActive,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, nil, errors.NewDependency("密码加密失败", err)
	}

	role := models.RoleCompanyMember
	if req.AccountType == AccountTypeIndependent {
		role = models.RoleIndependentUser
	}

	profile := &models.Profile{
		Name:             req.Name,
		Email:            email,
		Role:             role,
		SubscriptionType: models.SubscriptionStandard,
		Active:           true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, nil, errors.NewDependency("创建账号失败", err)
	}

	return user, profile, nil
}

// Authenticate 校验邮箱密码
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewUnauthorized("邮箱或密码错误")
		}
		return nil, errors.NewDependency("查询账号失败", err)
	}

	if !s.IsActive(&user) {
		return nil, errors.NewUnauthorized("账号已被禁用")
	}

	if !user.CheckPassword(password) {
		return nil, errors.NewUnauthorized("邮箱或密码错误")
	}

	return &user, nil
}

// GetByID 根据ID获取账号
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound("账号不存在")
		}
		return nil, errors.NewDependency("查询账号失败", err)
	}
	return &user, nil
}

// IsActive 检查账号是否可用
func (s *UserService) IsActive(user *models.User) bool {
	return user.Status == models.UserStatusActive
}
