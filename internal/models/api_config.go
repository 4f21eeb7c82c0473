package models

import (
	"time"
)

// ApiConfig 上游接口配置表
type ApiConfig struct {
	ID             uint   `gorm:"primarykey" json:"id"`                                          // 主键
	APIName        string `gorm:"type:varchar(100);not null" json:"api_name"`                    // API名称
	APICode        string `gorm:"uniqueIndex;type:varchar(50);not null" json:"api_code"`         // API编号
	OwnerID        uint   `gorm:"index:idx_api_configs_owner;not null" json:"owner_id"`          // 所属用户ID
	OwnerType      string `gorm:"index:idx_api_configs_owner;type:varchar(10);not null" json:"owner_type"` // 用户类型
	CostPrice      Money  `gorm:"type:decimal(10,2);not null;default:0" json:"cost_price"`       // 成本价格
	AdminCostPrice Money  `gorm:"type:decimal(10,2);not null;default:0" json:"admin_cost_price"` // 管理员成本价格
	IsActive       bool   `gorm:"index;not null;default:true" json:"is_active"`                  // 是否启用
	RequiresMobile bool   `gorm:"not null;default:false" json:"requires_mobile"`                 // 是否需要手机号

	// 动态参数配置：required_params / optional_params / param_mapping / default_values
	ParamConfig JSON `gorm:"type:json" json:"param_config"` // 参数配置

	CreatedAt time.Time `json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"` // 更新时间
}

// TableName 指定表名
func (ApiConfig) TableName() string {
	return "api_configs"
}

// RequiredParams 必需参数列表
func (a *ApiConfig) RequiredParams() []string {
	return a.stringList("required_params")
}

// OptionalParams 可选参数列表
func (a *ApiConfig) OptionalParams() []string {
	return a.stringList("optional_params")
}

// ParamMapping 参数名到上游字段的映射
func (a *ApiConfig) ParamMapping() map[string]string {
	mapping := make(map[string]string)
	raw, ok := a.ParamConfig["param_mapping"].(map[string]interface{})
	if !ok {
		return mapping
	}
	for key, value := range raw {
		if s, ok := value.(string); ok {
			mapping[key] = s
		}
	}
	return mapping
}

// DefaultValues 参数默认值
func (a *ApiConfig) DefaultValues() map[string]interface{} {
	raw, ok := a.ParamConfig["default_values"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return raw
}

func (a *ApiConfig) stringList(key string) []string {
	raw, ok := a.ParamConfig[key].([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
