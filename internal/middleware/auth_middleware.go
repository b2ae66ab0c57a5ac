package middleware

import (
	"strings"

	"notesaas/internal/models"
	"notesaas/internal/services"
	"notesaas/pkg/jwt"
	"notesaas/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthMiddleware 权限中间件
type AuthMiddleware struct {
	userService    *services.UserService
	profileService *services.ProfileService
	jwtManager     *jwt.JWTManager
}

func NewAuthMiddleware(db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		userService:    services.NewUserService(db),
		profileService: services.NewProfileService(db),
		jwtManager:     jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

// RequireLogin 登录校验
// 档案解析失败（非"不存在"）时直接拒绝整个请求，
// 不允许半初始化的会话继续往下走
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从Authorization头获取JWT token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		tokenString := authHeader[7:] // 去掉 "Bearer "

		// 验证token
		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 获取账号信息
		user, err := m.userService.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "账号不存在")
			c.Abort()
			return
		}

		// 检查账号状态
		if !m.userService.IsActive(user) {
			response.Unauthorized(c, "账号已被禁用")
			c.Abort()
			return
		}

		// 解析档案，失败关闭
		profile, err := m.profileService.Resolve(user, "")
		if err != nil {
			response.Unauthorized(c, "会话状态异常，请重新登录")
			c.Abort()
			return
		}

		// 将用户信息保存到上下文
		c.Set("user", user)
		c.Set("profile", profile)
		c.Set("profile_id", profile.ID)
		c.Set("role", profile.Role)
		c.Set("claims", claims)
		if profile.TenantID != nil {
			c.Set("tenant_id", *profile.TenantID)
		}

		c.Next()
	}
}

// RequireCompanyAdmin 要求公司管理员
func (m *AuthMiddleware) RequireCompanyAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, exists := c.Get("profile")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !profile.(*models.Profile).IsCompanyAdmin() {
			response.Forbidden(c, "需要公司管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireTenantMember 要求已加入公司
func (m *AuthMiddleware) RequireTenantMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, exists := c.Get("profile")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if profile.(*models.Profile).TenantID == nil {
			response.Forbidden(c, "尚未加入任何公司")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetProfile 从上下文取当前档案
func GetProfile(c *gin.Context) *models.Profile {
	if v, exists := c.Get("profile"); exists {
		return v.(*models.Profile)
	}
	return nil
}
