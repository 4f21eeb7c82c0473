package models

import (
	"time"
)

// QueryConfig 前端查询配置表（查询产品）
type QueryConfig struct {
	ID             uint     `gorm:"primarykey" json:"id"`                                       // 主键
	ConfigName     string   `gorm:"type:varchar(100);not null" json:"config_name"`              // 配置名称
	Category       string   `gorm:"type:varchar(20)" json:"category,omitempty"`                 // 查询配置类别（two_factor/three_factor/face）
	CustomerPrice  Money    `gorm:"type:decimal(10,2);not null;default:0" json:"customer_price"` // 客户查询单价
	APICombination IntArray `gorm:"type:json;not null" json:"api_combination"`                  // 查询搭配的接口ID列表（有序）
	OwnerID        uint     `gorm:"index:idx_query_configs_owner;not null" json:"owner_id"`     // 所属用户ID
	OwnerType      string   `gorm:"index:idx_query_configs_owner;type:varchar(10);not null" json:"owner_type"` // 用户类型（admin/agent）
	IsActive       bool     `gorm:"index;not null;default:true" json:"is_active"`               // 是否启用
	CreatedAt      time.Time `json:"created_at"`                                                // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (QueryConfig) TableName() string {
	return "query_configs"
}
