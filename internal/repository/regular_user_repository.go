package repository

import (
	"errors"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// RegularUserRepository 普通用户数据访问接口
type RegularUserRepository interface {
	Create(user *models.RegularUser) error
	GetByID(id uint) (*models.RegularUser, error)
	GetByPhone(phone string) (*models.RegularUser, error)
	GetByOpenID(openID string) (*models.RegularUser, error)
	GetByUsername(username string) (*models.RegularUser, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormRegularUserRepository
}

// GormRegularUserRepository GORM 实现
type GormRegularUserRepository struct {
	db *gorm.DB
}

// NewRegularUserRepository 创建普通用户仓库
func NewRegularUserRepository(db *gorm.DB) *GormRegularUserRepository {
	return &GormRegularUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRegularUserRepository) WithTx(tx *gorm.DB) *GormRegularUserRepository {
	if tx == nil {
		return r
	}
	return &GormRegularUserRepository{db: tx}
}

// Create 创建用户
func (r *GormRegularUserRepository) Create(user *models.RegularUser) error {
	return r.db.Create(user).Error
}

// GetByID 根据 ID 获取用户
func (r *GormRegularUserRepository) GetByID(id uint) (*models.RegularUser, error) {
	var user models.RegularUser
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByPhone 根据手机号获取未注销用户
func (r *GormRegularUserRepository) GetByPhone(phone string) (*models.RegularUser, error) {
	var user models.RegularUser
	if err := r.db.
		Where("phone = ? AND is_deactivated = ?", phone, false).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByOpenID 根据微信 OpenID 获取未注销用户
func (r *GormRegularUserRepository) GetByOpenID(openID string) (*models.RegularUser, error) {
	var user models.RegularUser
	if err := r.db.
		Where("open_id = ? AND is_deactivated = ?", openID, false).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername 根据用户名获取用户,用于生成用户名时查重
func (r *GormRegularUserRepository) GetByUsername(username string) (*models.RegularUser, error) {
	var user models.RegularUser
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Updates 按 ID 更新任意字段
func (r *GormRegularUserRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.RegularUser{}).Where("id = ?", id).Updates(updates).Error
}
