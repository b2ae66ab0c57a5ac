package models

// Tenant 租户（公司）模型
type Tenant struct {
	BaseModel
	CompanyName      string  `json:"company_name" gorm:"not null;size:100;index"`
	CompanyEmail     string  `json:"company_email" gorm:"not null;size:200"`
	CompanyPhone     *string `json:"company_phone" gorm:"size:20"`
	CreatedBy        uint    `json:"created_by" gorm:"not null"` // 创建者档案ID
	SubscriptionPlan string  `json:"subscription_plan" gorm:"not null;default:'standard';size:20"`
	MaxUsers         int     `json:"max_users" gorm:"not null;default:50"`
	Status           string  `json:"status" gorm:"default:'active';size:20"`
	MemberCount      int     `json:"member_count" gorm:"-"` // 成员数量，不存储在数据库中
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)
