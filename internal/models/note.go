package models

import (
	"time"

	"gorm.io/datatypes"
)

// Note 笔记模型
// DeletedAt为软删除标记：置位后从所有列表和计数中排除，行本身保留可按ID审计
type Note struct {
	BaseModel
	OwnerID    uint           `json:"owner_id" gorm:"not null;index"`
	Title      string         `json:"title" gorm:"not null;size:200"`
	Content    string         `json:"content" gorm:"type:text"`
	Tags       datatypes.JSON `json:"tags,omitempty"`
	IsFavorite bool           `json:"is_favorite" gorm:"default:false"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty" gorm:"index"`

	// 关联
	Owner Profile `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
}

// TableName 表名
func (n *Note) TableName() string {
	return "notes"
}

// IsDeleted 是否已被软删除
func (n *Note) IsDeleted() bool {
	return n.DeletedAt != nil
}
