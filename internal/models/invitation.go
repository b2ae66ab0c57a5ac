package models

import (
	"time"
)

// Invitation 租户邀请
type Invitation struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	TenantID     uint       `gorm:"not null;index" json:"tenant_id"`
	InviterID    uint       `gorm:"not null" json:"inviter_id"`                       // 邀请人档案ID
	InviteeEmail string     `gorm:"size:200;not null;index" json:"invitee_email"`     // 被邀请人邮箱
	InviteeID    *uint      `json:"invitee_id"`                                       // 被邀请人档案ID（如果已注册）
	Role         string     `gorm:"size:30;not null" json:"role"`                     // 接受后授予的角色
	Status       string     `gorm:"size:20;not null;default:'pending'" json:"status"` // pending/accepted/declined/expired
	Token        string     `gorm:"size:100;uniqueIndex" json:"token"`                // 邀请令牌
	Message      string     `gorm:"size:500" json:"message,omitempty"`                // 邀请留言
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`                       // 过期时间
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt   *time.Time `json:"declined_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	Tenant  Tenant   `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Inviter Profile  `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`
	Invitee *Profile `gorm:"foreignKey:InviteeID" json:"invitee,omitempty"`
}

// TableName 指定表名
func (Invitation) TableName() string {
	return "invitations"
}

// 邀请状态常量
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusDeclined = "declined"
	InvitationStatusExpired  = "expired"
)

// IsExpired 是否已过期（以时间判定，不依赖存储状态）
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// EffectiveStatus 有效状态：pending的邀请过了有效期按expired处理，
// 即使存储的状态字段还没被清理任务改写
func (i *Invitation) EffectiveStatus() string {
	if i.Status == InvitationStatusPending && i.IsExpired() {
		return InvitationStatusExpired
	}
	return i.Status
}

// IsValid 检查邀请是否可被处理
func (i *Invitation) IsValid() bool {
	return i.EffectiveStatus() == InvitationStatusPending
}

// Accept 接受邀请
func (i *Invitation) Accept() {
	now := time.Now()
	i.Status = InvitationStatusAccepted
	i.AcceptedAt = &now
}

// Decline 拒绝邀请
func (i *Invitation) Decline() {
	now := time.Now()
	i.Status = InvitationStatusDeclined
	i.DeclinedAt = &now
}

// MarkExpired 标记为过期
func (i *Invitation) MarkExpired() {
	i.Status = InvitationStatusExpired
}
