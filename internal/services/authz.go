package services

import (
	"notesaas/internal/models"
)

// Action 可授权的操作
type Action string

const (
	ActionInviteMember       Action = "tenant:invite"
	ActionCancelInvitation   Action = "tenant:invitation:cancel"
	ActionListInvitations    Action = "tenant:invitation:list"
	ActionViewMembers        Action = "tenant:member:list"
	ActionManageSubscription Action = "tenant:subscription:manage"
	ActionViewTenantNotes    Action = "tenant:note:view"
	ActionViewTenantActivity Action = "tenant:activity:view"
)

// Can 集中式能力判定：所有租户范围的操作都经过这里，
// 不在各调用点零散比较角色字符串
func Can(profile *models.Profile, action Action, tenantID uint) bool {
	if profile == nil || !profile.Active {
		return false
	}

	switch action {
	case ActionInviteMember,
		ActionCancelInvitation,
		ActionListInvitations,
		ActionViewMembers,
		ActionManageSubscription,
		ActionViewTenantNotes,
		ActionViewTenantActivity:
		// 管理操作只对本租户的company_admin开放
		return profile.Role == models.RoleCompanyAdmin && profile.BelongsToTenant(tenantID)
	default:
		return false
	}
}
