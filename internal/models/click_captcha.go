package models

import (
	"time"
)

// ClickCaptcha 文字点击验证码记录
//
// 用户需按顺序点击背景图上的目标文字完成验证；期望坐标加密存储，
// 明文坐标不入库也不下发客户端。
type ClickCaptcha struct {
	ID              uint   `gorm:"primarykey" json:"id"`                                     // 主键
	Token           string `gorm:"uniqueIndex;type:varchar(64);not null" json:"token"`       // 验证令牌
	BgImage         string `gorm:"type:text;not null" json:"-"`                              // 背景图片（Base64）
	CorrectPosition string `gorm:"type:varchar(255);not null" json:"-"`                      // 正确位置（加密存储）
	IsVerified      bool   `gorm:"not null;default:false" json:"is_verified"`                // 是否已验证
	Attempts        int    `gorm:"not null;default:0" json:"attempts"`                       // 尝试次数（防暴力破解）
	LastAttemptIP   string `gorm:"type:varchar(50)" json:"-"`                                // 最后尝试IP
	ClientFingerprint string `gorm:"type:varchar(128);index" json:"-"`                       // 客户端指纹（防多设备共享）
	CreateTime      int64  `gorm:"index;not null" json:"create_time"`                        // 创建时间（秒级时间戳）
	VerifyTime      *int64 `json:"verify_time,omitempty"`                                    // 验证时间（秒级时间戳）
	ExpireTime      int64  `gorm:"not null" json:"expire_time"`                              // 过期时间（秒级时间戳）
}

// TableName 指定表名（沿用历史表名）
func (ClickCaptcha) TableName() string {
	return "slider_captcha"
}

// CaptchaMaxAttempts 单条验证码最大尝试次数
const CaptchaMaxAttempts = 5

// IsChallengeExpired 检查验证码是否已过期
func (c *ClickCaptcha) IsChallengeExpired(now time.Time) bool {
	return now.Unix() > c.ExpireTime
}

// RemainingAttempts 剩余尝试次数
func (c *ClickCaptcha) RemainingAttempts() int {
	remaining := CaptchaMaxAttempts - c.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}
