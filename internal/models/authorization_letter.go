package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuthorizationLetter 查询授权书表
//
// 授权书正文使用明文姓名/证件号生成，入库仅保留脱敏副本。
type AuthorizationLetter struct {
	ID      uint  `gorm:"primarykey" json:"id"`                                         // 主键
	UserID  uint  `gorm:"index:idx_auth_letters_user_created;not null" json:"user_id"`  // 关联用户ID
	AgentID *uint `gorm:"index:idx_auth_letters_agent_created" json:"agent_id,omitempty"` // 代理ID

	MaskedName   string `gorm:"type:varchar(50);not null" json:"masked_name"`    // 脱敏姓名
	MaskedIDCard string `gorm:"type:varchar(20);not null" json:"masked_id_card"` // 脱敏身份证号

	AuthorizationContent string `gorm:"type:text;not null" json:"-"`                            // 授权书内容
	FilePath             string `gorm:"type:varchar(500)" json:"-"`                             // 授权书文件路径
	DownloadToken        string `gorm:"uniqueIndex;type:varchar(64);not null" json:"download_token"` // 下载令牌
	FileHash             string `gorm:"type:varchar(64)" json:"file_hash,omitempty"`            // 文件哈希（完整性校验）

	IsValid bool `gorm:"not null;default:true" json:"is_valid"` // 是否有效

	CreatedAt time.Time `gorm:"index:idx_auth_letters_user_created;index:idx_auth_letters_agent_created" json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                                                                 // 更新时间
}

// TableName 指定表名
func (AuthorizationLetter) TableName() string {
	return "authorization_letters"
}

// GenerateDownloadToken 生成下载令牌（时间戳 + 随机 UUID 的 SHA256）
func GenerateDownloadToken(userID uint) string {
	base := fmt.Sprintf("%d_%d_%s", userID, time.Now().Unix(), uuid.NewString())
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}
