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

// NoteHandler 笔记处理器
type NoteHandler struct {
	noteService     *services.NoteService
	activityService *services.ActivityService
}

func NewNoteHandler(noteService *services.NoteService, activityService *services.ActivityService) *NoteHandler {
	return &NoteHandler{
		noteService:     noteService,
		activityService: activityService,
	}
}

// Create 创建笔记
// @Summary 创建笔记
// @Description 标准版订阅受笔记数量上限约束，配额在写入时强制执行
// @Tags 笔记管理
// @Accept json
// @Produce json
// @Param request body services.CreateNoteRequest true "笔记内容"
// @Success 200 {object} response.Response{data=models.Note}
// @Router /api/v1/notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	var req services.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	profile := middleware.GetProfile(c)
	note, err := h.noteService.Create(profile, &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, profile.TenantID, models.ActionNoteCreated, "note",
		strconv.FormatUint(uint64(note.ID), 10), "创建笔记: "+note.Title)

	response.Success(c, note)
}

// List 获取我的笔记列表
func (h *NoteHandler) List(c *gin.Context) {
	profile := middleware.GetProfile(c)
	pageParams := pagination.ParsePageParams(c)

	notes, total, err := h.noteService.List(profile.ID, c.Query("keyword"), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, notes, pageInfo)
}

// GetByID 获取笔记详情（软删除的笔记仍可按ID取到）
func (h *NoteHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "笔记ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	note, err := h.noteService.GetByID(profile, uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, note)
}

// Update 更新笔记
func (h *NoteHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "笔记ID格式错误")
		return
	}

	var req services.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	profile := middleware.GetProfile(c)
	note, err := h.noteService.Update(profile, uint(id), &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, profile.TenantID, models.ActionNoteUpdated, "note",
		strconv.FormatUint(id, 10), "更新笔记: "+note.Title)

	response.Success(c, note)
}

// Delete 软删除笔记
func (h *NoteHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "笔记ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	if err := h.noteService.SoftDelete(profile, uint(id)); err != nil {
		response.HandleError(c, err)
		return
	}

	h.activityService.Record(profile.ID, profile.TenantID, models.ActionNoteDeleted, "note",
		strconv.FormatUint(id, 10), "删除笔记")

	response.SuccessWithMessage(c, "笔记已删除", nil)
}

// Quota 查询当前配额状态
func (h *NoteHandler) Quota(c *gin.Context) {
	profile := middleware.GetProfile(c)

	count, err := h.noteService.CountLive(profile.ID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	canCreate, err := h.noteService.CanCreate(profile)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	resp := gin.H{
		"subscription_type": profile.SubscriptionType,
		"live_note_count":   count,
		"can_create":        canCreate,
	}
	if !profile.IsPremium() {
		resp["limit"] = h.noteService.StandardLimit()
	}

	response.Success(c, resp)
}

// ListByMember 管理员查看本公司成员的笔记
func (h *NoteHandler) ListByMember(c *gin.Context) {
	memberID, err := strconv.ParseUint(c.Param("profile_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "成员ID格式错误")
		return
	}

	profile := middleware.GetProfile(c)
	pageParams := pagination.ParsePageParams(c)

	notes, total, err := h.noteService.ListByOwnerForAdmin(profile, uint(memberID), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, notes, pageInfo)
}
