package router

import (
	"notesaas/internal/database"
	"notesaas/internal/handlers"
	"notesaas/internal/middleware"
	"notesaas/internal/services"
	"notesaas/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {

	db := database.GetDB()
	auth := middleware.NewAuthMiddleware(db)

	// 服务实例
	userService := services.NewUserService(db)
	profileService := services.NewProfileService(db)
	tenantService := services.NewTenantService(db)
	invitationService := services.NewInvitationService(db)
	noteService := services.NewNoteService(db)
	subscriptionService := services.NewSubscriptionService(db)
	activityService := services.NewActivityService(db, database.GetActivityStream())

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// JWT认证路由（无需认证）
		authHandler := handlers.NewAuthHandler(userService, profileService, tenantService, activityService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register) // 用户注册
			authGroup.POST("/login", authHandler.Login)       // 用户登录
			authGroup.POST("/logout", authHandler.Logout)     // 用户登出
			authGroup.POST("/refresh", authHandler.RefreshToken)

			// 获取当前用户完整信息
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 租户路由
		tenantHandler := handlers.NewTenantHandler(tenantService)
		invitationHandler := handlers.NewInvitationHandler(invitationService, activityService)
		subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, activityService)
		tenants := api.Group("/tenants")
		{
			tenants.GET("/joinable", auth.RequireLogin(), tenantHandler.ListJoinable)
			tenants.GET("/:id", auth.RequireLogin(), tenantHandler.GetByID)

			// 公司管理员接口
			tenants.GET("/:id/members", auth.RequireLogin(), auth.RequireCompanyAdmin(), tenantHandler.GetMembers)
			tenants.GET("/:id/stats", auth.RequireLogin(), auth.RequireCompanyAdmin(), tenantHandler.GetStats)

			// 邀请管理
			tenants.POST("/:id/invitations", auth.RequireLogin(), auth.RequireCompanyAdmin(), invitationHandler.Create)
			tenants.GET("/:id/invitations", auth.RequireLogin(), auth.RequireCompanyAdmin(), invitationHandler.ListByTenant)
			tenants.GET("/:id/invitation-candidates", auth.RequireLogin(), auth.RequireCompanyAdmin(), invitationHandler.ListCandidates)
			tenants.POST("/:id/invitations/:invitation_id/cancel", auth.RequireLogin(), invitationHandler.Cancel)

			// 订阅变更历史
			tenants.GET("/:id/subscription-changes", auth.RequireLogin(), auth.RequireCompanyAdmin(), subscriptionHandler.History)
		}

		// 受邀人侧的邀请路由
		invitations := api.Group("/invitations")
		invitations.Use(auth.RequireLogin())
		{
			invitations.GET("/my", invitationHandler.ListMine)
			invitations.POST("/:token/accept", invitationHandler.Accept)
			invitations.POST("/:token/decline", invitationHandler.Decline)
		}

		// 笔记路由
		noteHandler := handlers.NewNoteHandler(noteService, activityService)
		notes := api.Group("/notes")
		notes.Use(auth.RequireLogin())
		{
			notes.POST("", noteHandler.Create)
			notes.GET("", noteHandler.List)
			notes.GET("/quota", noteHandler.Quota)
			notes.GET("/:id", noteHandler.GetByID)
			notes.PUT("/:id", noteHandler.Update)
			notes.DELETE("/:id", noteHandler.Delete)
		}

		// 成员管理路由（公司管理员）
		members := api.Group("/members")
		members.Use(auth.RequireLogin(), auth.RequireCompanyAdmin())
		{
			members.GET("/:profile_id/notes", noteHandler.ListByMember)
			members.POST("/:profile_id/subscription/upgrade", subscriptionHandler.Upgrade)
			members.POST("/:profile_id/subscription/downgrade", subscriptionHandler.Downgrade)
		}

		// 活动日志路由
		activityHandler := handlers.NewActivityHandler(activityService)
		api.GET("/activities", auth.RequireLogin(), activityHandler.List)

		// WebSocket实时活动推送（token通过查询参数认证）
		wsHandler := handlers.NewWebSocketHandler(profileService)
		api.GET("/ws/activities", wsHandler.ActivityFeed)
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "NoteSaaS",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
