package handlers

import (
	"strconv"

	"notesaas/internal/middleware"
	"notesaas/internal/models"
	"notesaas/internal/services"
	"notesaas/pkg/pagination"
	"notesaas/pkg/response"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler 订阅管理处理器
type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
	activityService     *services.ActivityService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService, activityService *services.ActivityService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		activityService:     activityService,
	}
}

// Upgrade 升级成员订阅
func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	targetID, err := strconv.ParseUint(c.Param("profile_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "成员ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	if err := h.subscriptionService.Upgrade(profile, uint(targetID)); err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, profile.TenantID, models.ActionSubscriptionChanged, "profile",
		strconv.FormatUint(targetID, 10), "订阅升级为高级版")

	response.SuccessWithMessage(c, "已升级为高级版", nil)
}

// Downgrade 降级成员订阅
// 目标成员的笔记数超过标准版上限时拒绝，订阅保持不变
func (h *SubscriptionHandler) Downgrade(c *gin.Context) {
	targetID, err := strconv.ParseUint(c.Param("profile_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "成员ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	if err := h.subscriptionService.Downgrade(profile, uint(targetID)); err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, profile.TenantID, models.ActionSubscriptionChanged, "profile",
		strconv.FormatUint(targetID, 10), "订阅降级为标准版")

	response.SuccessWithMessage(c, "已降级为标准版", nil)
}

// History 订阅变更历史
func (h *SubscriptionHandler) History(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	pageParams := pagination.ParsePageParams(c)

	changes, total, err := h.subscriptionService.History(profile, uint(tenantID), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, changes, pageInfo)
}
