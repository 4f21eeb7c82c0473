package models

import (
	"time"
)

// 短信验证码状态
const (
	SmsCodeStatusUnused  = "unused"  // 未使用
	SmsCodeStatusUsed    = "used"    // 已使用
	SmsCodeStatusExpired = "expired" // 已过期
)

// SmsVerificationCode 短信验证码表
type SmsVerificationCode struct {
	ID        uint       `gorm:"primarykey" json:"id"`                          // 主键
	Phone     string     `gorm:"index;type:varchar(20);not null" json:"phone"`  // 手机号
	Code      string     `gorm:"type:varchar(6);not null" json:"-"`             // 验证码
	Status    string     `gorm:"type:varchar(10);not null;default:unused" json:"status"` // 状态
	CreatedAt time.Time  `json:"created_at"`                                    // 创建时间
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`                    // 过期时间
	UsedAt    *time.Time `json:"used_at,omitempty"`                             // 使用时间
}

// TableName 指定表名
func (SmsVerificationCode) TableName() string {
	return "sms_verification_codes"
}
