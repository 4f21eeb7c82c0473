package repository

import (
	"errors"
	"time"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// SmsVerificationCodeRepository 短信验证码数据访问接口
type SmsVerificationCodeRepository interface {
	Create(code *models.SmsVerificationCode) error
	GetLatestUnused(phone string) (*models.SmsVerificationCode, error)
	MarkUsed(id uint, usedAt time.Time) error
	ExpireUnusedByPhone(phone string) (int64, error)
	CountSince(phone string, since time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormSmsVerificationCodeRepository
}

// GormSmsVerificationCodeRepository GORM 实现
type GormSmsVerificationCodeRepository struct {
	db *gorm.DB
}

// NewSmsVerificationCodeRepository 创建短信验证码仓库
func NewSmsVerificationCodeRepository(db *gorm.DB) *GormSmsVerificationCodeRepository {
	return &GormSmsVerificationCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSmsVerificationCodeRepository) WithTx(tx *gorm.DB) *GormSmsVerificationCodeRepository {
	if tx == nil {
		return r
	}
	return &GormSmsVerificationCodeRepository{db: tx}
}

// Create 创建验证码记录
func (r *GormSmsVerificationCodeRepository) Create(code *models.SmsVerificationCode) error {
	return r.db.Create(code).Error
}

// GetLatestUnused 获取手机号最新的未使用验证码
func (r *GormSmsVerificationCodeRepository) GetLatestUnused(phone string) (*models.SmsVerificationCode, error) {
	var code models.SmsVerificationCode
	if err := r.db.
		Where("phone = ? AND status = ?", phone, models.SmsCodeStatusUnused).
		Order("id desc").
		First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// MarkUsed 标记验证码已使用
func (r *GormSmsVerificationCodeRepository) MarkUsed(id uint, usedAt time.Time) error {
	return r.db.Model(&models.SmsVerificationCode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  models.SmsCodeStatusUsed,
			"used_at": usedAt,
		}).Error
}

// ExpireUnusedByPhone 作废手机号下全部未使用验证码,新验证码下发前调用
func (r *GormSmsVerificationCodeRepository) ExpireUnusedByPhone(phone string) (int64, error) {
	result := r.db.Model(&models.SmsVerificationCode{}).
		Where("phone = ? AND status = ?", phone, models.SmsCodeStatusUnused).
		Update("status", models.SmsCodeStatusExpired)
	return result.RowsAffected, result.Error
}

// CountSince 统计手机号自 since 以来的发送次数,用于频控
func (r *GormSmsVerificationCodeRepository) CountSince(phone string, since time.Time) (int64, error) {
	var count int64
	if err := r.db.Model(&models.SmsVerificationCode{}).
		Where("phone = ? AND created_at >= ?", phone, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
