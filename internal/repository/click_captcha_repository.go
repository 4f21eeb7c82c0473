package repository

import (
	"errors"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// ClickCaptchaRepository 点击验证码数据访问接口
type ClickCaptchaRepository interface {
	Create(captcha *models.ClickCaptcha) error
	GetByToken(token string) (*models.ClickCaptcha, error)
	Updates(id uint, updates map[string]interface{}) error
	ExpireActiveByFingerprint(fingerprint string, now int64) (int64, error)
	DeleteExpired(before int64, limit int) (int64, error)
	WithTx(tx *gorm.DB) *GormClickCaptchaRepository
}

// GormClickCaptchaRepository GORM 实现
type GormClickCaptchaRepository struct {
	db *gorm.DB
}

// NewClickCaptchaRepository 创建点击验证码仓库
func NewClickCaptchaRepository(db *gorm.DB) *GormClickCaptchaRepository {
	return &GormClickCaptchaRepository{db: db}
}

// WithTx 绑定事务
func (r *GormClickCaptchaRepository) WithTx(tx *gorm.DB) *GormClickCaptchaRepository {
	if tx == nil {
		return r
	}
	return &GormClickCaptchaRepository{db: tx}
}

// Create 创建验证码记录
func (r *GormClickCaptchaRepository) Create(captcha *models.ClickCaptcha) error {
	return r.db.Create(captcha).Error
}

// GetByToken 根据令牌获取验证码记录
func (r *GormClickCaptchaRepository) GetByToken(token string) (*models.ClickCaptcha, error) {
	var captcha models.ClickCaptcha
	if err := r.db.Where("token = ?", token).First(&captcha).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &captcha, nil
}

// Updates 按 ID 更新任意字段
func (r *GormClickCaptchaRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ClickCaptcha{}).Where("id = ?", id).Updates(updates).Error
}

// ExpireActiveByFingerprint 将同一指纹下未验证的挑战立即置为过期,
// 新挑战生成时调用,保证同指纹同时只有一个有效挑战。
func (r *GormClickCaptchaRepository) ExpireActiveByFingerprint(fingerprint string, now int64) (int64, error) {
	if fingerprint == "" {
		return 0, nil
	}
	result := r.db.Model(&models.ClickCaptcha{}).
		Where("client_fingerprint = ? AND is_verified = ? AND expire_time > ?", fingerprint, false, now).
		Update("expire_time", now-1)
	return result.RowsAffected, result.Error
}

// DeleteExpired 清理过期验证码记录,返回删除行数
func (r *GormClickCaptchaRepository) DeleteExpired(before int64, limit int) (int64, error) {
	query := r.db.Where("expire_time < ?", before)
	if limit > 0 {
		// sqlite 不支持 DELETE ... LIMIT,先取 ID 再删
		var ids []uint
		if err := r.db.Model(&models.ClickCaptcha{}).
			Where("expire_time < ?", before).
			Order("id asc").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, nil
		}
		query = r.db.Where("id IN ?", ids)
	}
	result := query.Delete(&models.ClickCaptcha{})
	return result.RowsAffected, result.Error
}
