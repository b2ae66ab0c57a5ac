package handlers

import (
	"strconv"

	"notesaas/internal/middleware"
	"notesaas/internal/services"
	"notesaas/pkg/response"

	"github.com/gin-gonic/gin"
)

// TenantHandler 租户处理器
type TenantHandler struct {
	tenantService *services.TenantService
}

func NewTenantHandler(tenantService *services.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// ListJoinable 获取可加入的公司列表
// @Summary 可加入的公司列表
// @Description 注册页选择公司用，按公司名排序
// @Tags 公司管理
// @Produce json
// @Success 200 {object} response.Response{data=[]models.Tenant}
// @Router /api/v1/tenants/joinable [get]
func (h *TenantHandler) ListJoinable(c *gin.Context) {
	tenants, err := h.tenantService.ListJoinable()
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, tenants)
}

// GetByID 获取公司详情
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	tenant, err := h.tenantService.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, tenant)
}

// GetMembers 获取公司成员列表
func (h *TenantHandler) GetMembers(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	members, err := h.tenantService.GetMembers(profile, uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, members)
}

// GetStats 获取公司统计
func (h *TenantHandler) GetStats(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	stats, err := h.tenantService.GetStats(profile, uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, stats)
}
