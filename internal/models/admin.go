package models

import (
	"time"

	"gorm.io/gorm"
)

// Admin 超级管理员表
type Admin struct {
	ID           uint   `gorm:"primarykey" json:"id"`                          // 主键
	CompanyName  string `gorm:"type:varchar(200)" json:"company_name"`         // 公司名称
	Username     string `gorm:"uniqueIndex;not null" json:"username"`          // 管理员账号
	PasswordHash string `gorm:"not null" json:"-"`                             // 密码哈希（不返回给前端）
	IsSuper      bool   `gorm:"not null;default:false;index" json:"is_super"`  // 是否超级管理员（免权限校验）

	// 登录与锁定
	LoginErrorCount    int        `gorm:"not null;default:0" json:"-"`     // 登录错误次数
	LastLoginErrorTime *time.Time `json:"-"`                               // 最后错误登录时间
	IsLocked           bool       `gorm:"not null;default:false" json:"-"` // 是否被锁定
	LockUntil          *time.Time `json:"-"`                               // 锁定到期时间

	// 令牌失效控制：改密后旧令牌立即作废
	TokenVersion       uint64     `gorm:"not null;default:0" json:"-"` // 令牌版本
	TokenInvalidBefore *time.Time `json:"-"`                           // 早于该时间签发的令牌无效

	LastLoginAt *time.Time     `json:"last_login_at"`           // 最后登录时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"` // 创建时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`          // 软删除时间
}

// TableName 指定表名
func (Admin) TableName() string {
	return "admins"
}

// 登录锁定策略：连续错误 5 次锁定 30 分钟
const (
	LoginMaxErrorCount = 5
	LoginLockDuration  = 30 * time.Minute
)

// IsAccountLocked 检查账号是否处于锁定期
func (a *Admin) IsAccountLocked(now time.Time) bool {
	if !a.IsLocked {
		return false
	}
	if a.LockUntil != nil && now.After(*a.LockUntil) {
		return false
	}
	return true
}
