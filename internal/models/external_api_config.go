package models

import (
	"time"
)

// 外部接口配置类型
const (
	ExternalConfigTianyuan      = "tianyuan_risk_api" // 上游风险查询
	ExternalConfigAliyunSms     = "aliyun_sms"        // 短信服务
	ExternalConfigWechatOAuth   = "wechat_oauth"      // 微信公众号登录
	ExternalConfigAlipayPayment = "alipay_payment"    // 支付宝支付
	ExternalConfigWechatPayment = "wechat_payment"    // 微信支付
)

// ExternalApiConfig 外部接口凭证配置表
//
// 采用通用字段设计，不同外部服务的凭证以 JSON 存储，
// 新增服务类型无需变更表结构。
type ExternalApiConfig struct {
	ID         uint   `gorm:"primarykey" json:"id"`                                                                 // 主键
	ConfigType string `gorm:"uniqueIndex:uniq_external_configs_owner;type:varchar(50);not null" json:"config_type"` // 配置类型
	ConfigName string `gorm:"type:varchar(100);not null" json:"config_name"`                                        // 配置名称（后台识别用）
	Credentials JSON  `gorm:"type:json;not null" json:"-"`                                                          // 凭证（JSON，敏感字段不返回前端）
	OwnerID    uint   `gorm:"uniqueIndex:uniq_external_configs_owner;not null;default:1" json:"owner_id"`           // 所属用户ID
	OwnerType  string `gorm:"uniqueIndex:uniq_external_configs_owner;type:varchar(10);not null" json:"owner_type"`  // 用户类型（admin/agent）
	IsActive   bool   `gorm:"index;not null;default:true" json:"is_active"`                                         // 是否启用
	CreatedAt  time.Time `json:"created_at"`                                                                        // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                                                        // 更新时间
}

// TableName 指定表名
func (ExternalApiConfig) TableName() string {
	return "external_api_configs"
}
