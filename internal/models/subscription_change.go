package models

import (
	"time"
)

// SubscriptionChange 订阅变更历史，管理端审计用
type SubscriptionChange struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	TenantID   uint      `gorm:"not null;index" json:"tenant_id"`
	ProfileID  uint      `gorm:"not null;index" json:"profile_id"` // 被变更的成员
	ChangedBy  uint      `gorm:"not null" json:"changed_by"`       // 操作的管理员
	ActionType string    `gorm:"size:20;not null" json:"action_type"`
	OldType    string    `gorm:"size:20;not null" json:"old_type"`
	NewType    string    `gorm:"size:20;not null" json:"new_type"`
	CreatedAt  time.Time `json:"created_at"`

	// 关联
	Profile Profile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	Admin   Profile `gorm:"foreignKey:ChangedBy" json:"admin,omitempty"`
}

// TableName 表名
func (SubscriptionChange) TableName() string {
	return "subscription_changes"
}

// 变更动作常量
const (
	SubscriptionActionUpgrade   = "upgrade"
	SubscriptionActionDowngrade = "downgrade"
)
