package models

import (
	"time"
)

// Profile 用户档案，授权判定的根对象
// 约束：TenantID非空时角色必须是company_admin或company_member
type Profile struct {
	BaseModel
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex"`
	Name             string     `json:"name" gorm:"not null;size:100"`
	Email            string     `json:"email" gorm:"unique;not null;size:200;index"`
	Role             string     `json:"role" gorm:"not null;size:30"`
	TenantID         *uint      `json:"tenant_id" gorm:"index"`
	SubscriptionType string     `json:"subscription_type" gorm:"not null;default:'standard';size:20"`
	Active           bool       `json:"active" gorm:"default:true"`
	LastLoginAt      *time.Time `json:"last_login_at"`

	// 关联
	User   User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

// TableName 表名
func (p *Profile) TableName() string {
	return "profiles"
}

// 角色常量
const (
	RoleCompanyAdmin    = "company_admin"
	RoleCompanyMember   = "company_member"
	RoleIndependentUser = "independent_user"
)

// 订阅类型常量
const (
	SubscriptionStandard = "standard"
	SubscriptionPremium  = "premium"
)

// IsValidRole 检查角色是否有效
func IsValidRole(role string) bool {
	switch role {
	case RoleCompanyAdmin, RoleCompanyMember, RoleIndependentUser:
		return true
	default:
		return false
	}
}

// IsValidSubscriptionType 检查订阅类型是否有效
func IsValidSubscriptionType(subscriptionType string) bool {
	switch subscriptionType {
	case SubscriptionStandard, SubscriptionPremium:
		return true
	default:
		return false
	}
}

// IsCompanyAdmin 是否为公司管理员
func (p *Profile) IsCompanyAdmin() bool {
	return p.Role == RoleCompanyAdmin && p.TenantID != nil
}

// BelongsToTenant 是否属于指定租户
func (p *Profile) BelongsToTenant(tenantID uint) bool {
	return p.TenantID != nil && *p.TenantID == tenantID
}

// IsPremium 是否为高级版订阅
func (p *Profile) IsPremium() bool {
	return p.SubscriptionType == SubscriptionPremium
}
