package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// RegularUser 普通用户表
type RegularUser struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                // 主键
	Username      string     `gorm:"uniqueIndex;type:varchar(6);not null" json:"username"` // 用户ID（6 位随机数字）
	OpenID        string     `gorm:"uniqueIndex;type:varchar(100)" json:"-"`              // 微信OpenID
	Phone         string     `gorm:"type:varchar(11);index" json:"phone,omitempty"`       // 手机号
	AgentID       *uint      `gorm:"index" json:"agent_id,omitempty"`                     // 所属代理ID
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                             // 创建时间
	IsDeactivated bool       `gorm:"not null;default:false" json:"is_deactivated"`        // 是否已注销
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`                            // 注销时间
}

// TableName 指定表名
func (RegularUser) TableName() string {
	return "regular_users"
}

// GenerateUserUsername 生成 6 位随机数字用户名（调用方负责唯一性重试）
func GenerateUserUsername() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		n = big.NewInt(0)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}
