package handlers

import (
	"strconv"

	"notesaas/internal/middleware"
	"notesaas/internal/models"
	"notesaas/internal/services"
	"notesaas/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvitationHandler 邀请处理器
type InvitationHandler struct {
	invitationService *services.InvitationService
	activityService   *services.ActivityService
}

// NewInvitationHandler 创建邀请处理器
func NewInvitationHandler(invitationService *services.InvitationService, activityService *services.ActivityService) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
		activityService:   activityService,
	}
}

// Create 创建邀请
// @Summary 创建公司邀请
// @Description 公司管理员邀请用户加入公司
// @Tags 邀请管理
// @Accept json
// @Produce json
// @Param id path int true "公司ID"
// @Param request body services.CreateInvitationRequest true "邀请信息"
// @Success 200 {object} response.Response{data=models.Invitation}
// @Router /api/v1/tenants/{id}/invitations [post]
func (h *InvitationHandler) Create(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	var req services.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	profile := middleware.GetProfile(c)
	invitation, err := h.invitationService.Create(profile, uint(tenantID), &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	tid := uint(tenantID)
	h.activityService.Record(profile.ID, &tid, models.ActionInvitationSent, "invitation",
		strconv.FormatUint(uint64(invitation.ID), 10), "邀请发送至 "+req.Email)

	response.Success(c, invitation)
}

// ListByTenant 获取公司的邀请列表
// @Summary 公司邀请列表
// @Tags 邀请管理
// @Produce json
// @Param id path int true "公司ID"
// @Param status query string false "有效状态(pending/accepted/declined/expired)"
// @Success 200 {object} response.Response{data=[]services.InvitationResponse}
// @Router /api/v1/tenants/{id}/invitations [get]
func (h *InvitationHandler) ListByTenant(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	invitations, err := h.invitationService.ListByTenant(profile, uint(tenantID), c.Query("status"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, invitations)
}

// ListCandidates 获取可邀请的用户目录
// @Summary 可邀请用户列表
// @Description 未归属任何公司的活跃用户，附带本公司对其最近一次邀请的状态
// @Tags 邀请管理
// @Produce json
// @Param id path int true "公司ID"
// @Success 200 {object} response.Response{data=[]services.CandidateResponse}
// @Router /api/v1/tenants/{id}/invitation-candidates [get]
func (h *InvitationHandler) ListCandidates(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	candidates, err := h.invitationService.ListCandidates(profile, uint(tenantID))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, candidates)
}

// ListMine 获取我收到的邀请
func (h *InvitationHandler) ListMine(c *gin.Context) {
	profile := middleware.GetProfile(c)
	invitations, err := h.invitationService.ListByEmail(profile.Email, c.Query("status"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, invitations)
}

// Accept 接受邀请
func (h *InvitationHandler) Accept(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "邀请令牌不能为空")
		return
	}

	profile := middleware.GetProfile(c)
	tenant, err := h.invitationService.Accept(token, profile)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, &tenant.ID, models.ActionInvitationAccepted, "tenant",
		strconv.FormatUint(uint64(tenant.ID), 10), "加入公司: "+tenant.CompanyName)

	response.SuccessWithMessage(c, "已加入公司", tenant)
}

// Decline 拒绝邀请
func (h *InvitationHandler) Decline(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "邀请令牌不能为空")
		return
	}

	profile := middleware.GetProfile(c)
	if err := h.invitationService.Decline(token, profile); err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, nil, models.ActionInvitationDeclined, "invitation", "", "拒绝邀请")

	response.SuccessWithMessage(c, "已拒绝邀请", nil)
}

// Cancel 取消邀请
func (h *InvitationHandler) Cancel(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "公司ID格式错误")
		return
	}
	invitationID, err := strconv.ParseUint(c.Param("invitation_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "邀请ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	if err := h.invitationService.Cancel(uint(invitationID), profile, uint(tenantID)); err != nil {
		response.HandleError(c, err)
		return
	}

	tid := uint(tenantID)
	h.activityService.Record(profile.ID, &tid, models.ActionInvitationCancelled, "invitation",
		strconv.FormatUint(invitationID, 10), "取消邀请")

	response.SuccessWithMessage(c, "已取消邀请", nil)
}
