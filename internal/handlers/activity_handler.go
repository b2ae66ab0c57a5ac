package handlers

import (
	"notesaas/internal/middleware"
	"notesaas/internal/services"
	"notesaas/pkg/pagination"
	"notesaas/pkg/response"

	"github.com/gin-gonic/gin"
)

// ActivityHandler 活动日志处理器
type ActivityHandler struct {
	activityService *services.ActivityService
}

func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// List 获取活动日志
// 公司管理员看本公司全部记录，其他用户只看自己的
func (h *ActivityHandler) List(c *gin.Context) {
	profile := middleware.GetProfile(c)
	pageParams := pagination.ParsePageParams(c)

	entries, total, err := h.activityService.ListForProfile(profile, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, entries, pageInfo)
}
