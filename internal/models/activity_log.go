package models

import (
	"time"
)

// ActivityLog 活动日志，只追加，没有更新和删除路径
type ActivityLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	ActorID      uint      `gorm:"not null;index" json:"actor_id"`
	TenantID     *uint     `gorm:"index" json:"tenant_id"`
	Action       string    `gorm:"size:50;not null;index" json:"action"`
	ResourceType *string   `gorm:"size:50" json:"resource_type,omitempty"`
	ResourceID   *string   `gorm:"size:100" json:"resource_id,omitempty"`
	Description  string    `gorm:"size:500" json:"description"`
	CreatedAt    time.Time `json:"created_at"`

	// 关联
	Actor Profile `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

// TableName 表名
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// 常用动作常量
const (
	ActionLogin               = "login"
	ActionRegister            = "register"
	ActionTenantCreated       = "tenant_created"
	ActionInvitationSent      = "invitation_sent"
	ActionInvitationAccepted  = "invitation_accepted"
	ActionInvitationDeclined  = "invitation_declined"
	ActionInvitationCancelled = "invitation_cancelled"
	ActionNoteCreated         = "note_created"
	ActionNoteUpdated         = "note_updated"
	ActionNoteDeleted         = "note_deleted"
	ActionSubscriptionChanged = "subscription_changed"
)
