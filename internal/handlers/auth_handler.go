package handlers

import (
	"fmt"
	"strings"
	"time"

	"notesaas/internal/middleware"
	"notesaas/internal/models"
	"notesaas/internal/services"
	"notesaas/pkg/jwt"
	"notesaas/pkg/logger"
	"notesaas/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	userService     *services.UserService
	profileService  *services.ProfileService
	tenantService   *services.TenantService
	activityService *services.ActivityService
	jwtManager      *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService, profileService *services.ProfileService,
	tenantService *services.TenantService, activityService *services.ActivityService) *AuthHandler {
	return &AuthHandler{
		userService:     userService,
		profileService:  profileService,
		tenantService:   tenantService,
		activityService: activityService,
		jwtManager:      jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
	Profile   ProfileInfo `json:"profile"`
}

type ProfileInfo struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	TenantID         *uint  `json:"tenant_id"`
	SubscriptionType string `json:"subscription_type"`
}

func toProfileInfo(p *models.Profile) ProfileInfo {
	return ProfileInfo{
		ID:               p.ID,
		Name:             p.Name,
		Email:            p.Email,
		Role:             p.Role,
		TenantID:         p.TenantID,
		SubscriptionType: p.SubscriptionType,
	}
}

// Register 注册账号
// @Summary 注册
// @Description 注册账号，公司类型的注册会同时创建公司并绑定为管理员
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "注册信息"
// @Success 200 {object} response.Response{data=LoginResponse}
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, registerBindingMessage(err))
		return
	}

	user, profile, err := h.userService.Register(&req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, nil, models.ActionRegister, "profile", "", "用户注册")

	// 公司类型注册：创建公司并绑定创建者
	if req.AccountType == services.AccountTypeCompany {
		tenant, err := h.tenantService.Create(req.CompanyName, user.Email, req.CompanyPhone, profile.ID)
		if err != nil {
			response.HandleError(c, err)
			return
		}
		h.activityService.Record(profile.ID, &tenant.ID, models.ActionTenantCreated, "tenant", "", "公司创建: "+tenant.CompanyName)

		// 重新加载绑定后的档案
		profile, err = h.profileService.GetByID(profile.ID)
		if err != nil {
			response.HandleError(c, err)
			return
		}
	}

	h.issueToken(c, user, profile)
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Authenticate(req.Email, req.Password)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	// 解析档案：不存在则补建，其他失败直接拒绝发放令牌
	profile, err := h.profileService.Resolve(user, "")
	if err != nil {
		response.Unauthorized(c, "会话初始化失败，请重试")
		return
	}

	if err := h.profileService.UpdateLastLogin(profile.ID); err != nil {
		logger.GetLogger().Warnf("更新最后登录时间失败 profile_id=%d: %v", profile.ID, err)
	}

	h.activityService.Record(profile.ID, profile.TenantID, models.ActionLogin, "", "", "用户登录")

	h.issueToken(c, user, profile)
}

// Logout 用户登出
// 无状态JWT没有服务端会话可销毁，token无效或缺失也算登出成功
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Success(c, gin.H{
		"message": "登出成功",
	})
}

// RefreshToken 刷新Token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		response.Unauthorized(c, "认证头格式错误")
		return
	}

	newToken, err := h.jwtManager.RefreshToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return
	}

	response.Success(c, gin.H{
		"token":      newToken,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
	})
}

// Me 获取当前用户完整信息
func (h *AuthHandler) Me(c *gin.Context) {
	profile := middleware.GetProfile(c)
	if profile == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	resp := gin.H{"profile": toProfileInfo(profile)}
	if profile.TenantID != nil {
		if tenant, err := h.tenantService.GetByID(*profile.TenantID); err == nil {
			resp["tenant"] = tenant
		}
	}

	response.Success(c, resp)
}

// registerBindingMessage 把参数校验错误翻译为业务提示
func registerBindingMessage(err error) string {
	if validationErr, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErr {
			switch fieldErr.Field() {
			case "Email":
				return "邮箱格式不正确"
			case "Password":
				return "密码不能为空，且长度不少于6位"
			case "Name":
				return "显示名称不能为空"
			case "AccountType":
				return "账号类型不能为空"
			default:
				return fmt.Sprintf("字段 %s 验证失败", fieldErr.Field())
			}
		}
	}
	return "请求参数错误: " + err.Error()
}

// issueToken 发放令牌并返回登录响应
func (h *AuthHandler) issueToken(c *gin.Context, user *models.User, profile *models.Profile) {
	var tenantID uint
	if profile.TenantID != nil {
		tenantID = *profile.TenantID
	}

	token, err := h.jwtManager.GenerateToken(user.ID, profile.ID, tenantID, profile.Email, profile.Role)
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		Profile:   toProfileInfo(profile),
	})
}
