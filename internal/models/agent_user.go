package models

import (
	"time"
)

// AgentUser 代理用户表
type AgentUser struct {
	ID           uint   `gorm:"primarykey" json:"id"`                        // 主键
	Username     string `gorm:"uniqueIndex;not null" json:"username"`        // 用户名
	Phone        string `gorm:"type:varchar(20)" json:"phone,omitempty"`     // 手机号
	PasswordHash string `gorm:"not null" json:"-"`                           // 密码哈希
	DomainSuffix string `gorm:"uniqueIndex;not null" json:"domain_suffix"`   // 域名后缀

	// 定价设置
	PersonalQueryPrice      Money `gorm:"type:decimal(10,2);not null;default:0" json:"personal_query_price"`       // 个人查询最低价格
	EnterpriseQueryMinPrice Money `gorm:"type:decimal(10,2);not null;default:0" json:"enterprise_query_min_price"` // 企业查询最低价格

	// 佣金台账：UnsettledCommission + SettledCommission == TotalCommission
	TotalProfit         Money `gorm:"type:decimal(12,2);not null;default:0" json:"total_profit"`         // 累计收益
	TotalCommission     Money `gorm:"type:decimal(12,2);not null;default:0" json:"total_commission"`     // 累计佣金
	UnsettledCommission Money `gorm:"type:decimal(12,2);not null;default:0" json:"unsettled_commission"` // 未结算佣金
	SettledCommission   Money `gorm:"type:decimal(12,2);not null;default:0" json:"settled_commission"`   // 累计结算佣金

	// 登录与锁定
	LoginErrorCount    int        `gorm:"not null;default:0" json:"-"`     // 登录错误次数
	LastLoginErrorTime *time.Time `json:"-"`                               // 最后错误登录时间
	IsLocked           bool       `gorm:"not null;default:false" json:"-"` // 是否被锁定
	LockUntil          *time.Time `json:"-"`                               // 锁定到期时间

	// 令牌失效控制：改密后旧令牌立即作废
	TokenVersion       uint64     `gorm:"not null;default:0" json:"-"` // 令牌版本
	TokenInvalidBefore *time.Time `json:"-"`                           // 早于该时间签发的令牌无效

	CreatedAt time.Time `gorm:"index" json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"`              // 更新时间
}

// TableName 指定表名
func (AgentUser) TableName() string {
	return "agent_users"
}

// IsAccountLocked 检查账号是否处于锁定期
func (a *AgentUser) IsAccountLocked(now time.Time) bool {
	if !a.IsLocked {
		return false
	}
	if a.LockUntil != nil && now.After(*a.LockUntil) {
		return false
	}
	return true
}
