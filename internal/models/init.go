package models

import (
	"strings"

	"github.com/tianyuan-next/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

const defaultAdminUsername = "admin"

// InitDefaultAdmin 初始化默认管理员账号
// 已存在管理员时只补齐默认 admin 的超管标记,不做其它变更
func InitDefaultAdmin(username, password string) error {
	var count int64
	DB.Model(&Admin{}).Count(&count)

	if count > 0 {
		if err := DB.Model(&Admin{}).Where("username = ?", defaultAdminUsername).Update("is_super", true).Error; err != nil {
			logger.Warnw("ensure_default_admin_super_failed", "error", err)
		}
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultAdminUsername
	}
	usingDefaultPassword := password == ""
	if usingDefaultPassword {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := Admin{
		Username:     username,
		CompanyName:  "天远数据",
		PasswordHash: string(hash),
		IsSuper:      strings.EqualFold(username, defaultAdminUsername),
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	if usingDefaultPassword {
		logger.Warnw("default_admin_created_with_default_password", "username", username)
		logger.Warnw("default_admin_password_change_required", "username", username)
	} else {
		logger.Infow("default_admin_created", "username", username)
	}
	return nil
}
