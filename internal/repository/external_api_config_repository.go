package repository

import (
	"errors"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// ExternalApiConfigRepository 外部接口凭证配置数据访问接口
type ExternalApiConfigRepository interface {
	Create(config *models.ExternalApiConfig) error
	GetByID(id uint) (*models.ExternalApiConfig, error)
	GetActive(configType string, ownerID uint, ownerType string) (*models.ExternalApiConfig, error)
	GetActiveWithFallback(configType string, ownerID uint, ownerType string) (*models.ExternalApiConfig, error)
	ListByOwner(ownerID uint, ownerType string) ([]models.ExternalApiConfig, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormExternalApiConfigRepository
}

// GormExternalApiConfigRepository GORM 实现
type GormExternalApiConfigRepository struct {
	db *gorm.DB
}

// NewExternalApiConfigRepository 创建外部接口配置仓库
func NewExternalApiConfigRepository(db *gorm.DB) *GormExternalApiConfigRepository {
	return &GormExternalApiConfigRepository{db: db}
}

// WithTx 绑定事务
func (r *GormExternalApiConfigRepository) WithTx(tx *gorm.DB) *GormExternalApiConfigRepository {
	if tx == nil {
		return r
	}
	return &GormExternalApiConfigRepository{db: tx}
}

// Create 创建外部接口配置
func (r *GormExternalApiConfigRepository) Create(config *models.ExternalApiConfig) error {
	return r.db.Create(config).Error
}

// GetByID 根据 ID 获取外部接口配置
func (r *GormExternalApiConfigRepository) GetByID(id uint) (*models.ExternalApiConfig, error) {
	var config models.ExternalApiConfig
	if err := r.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// GetActive 获取某归属方启用的指定类型配置
func (r *GormExternalApiConfigRepository) GetActive(configType string, ownerID uint, ownerType string) (*models.ExternalApiConfig, error) {
	var config models.ExternalApiConfig
	if err := r.db.
		Where("config_type = ? AND owner_id = ? AND owner_type = ? AND is_active = ?", configType, ownerID, ownerType, true).
		First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// GetActiveWithFallback 优先取归属方自有配置,缺失时回落到平台管理员配置
func (r *GormExternalApiConfigRepository) GetActiveWithFallback(configType string, ownerID uint, ownerType string) (*models.ExternalApiConfig, error) {
	config, err := r.GetActive(configType, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if config != nil {
		return config, nil
	}
	if ownerType == constants.OwnerTypeAdmin && ownerID == 1 {
		return nil, nil
	}
	return r.GetActive(configType, 1, constants.OwnerTypeAdmin)
}

// ListByOwner 某归属方的全部外部接口配置
func (r *GormExternalApiConfigRepository) ListByOwner(ownerID uint, ownerType string) ([]models.ExternalApiConfig, error) {
	var configs []models.ExternalApiConfig
	if err := r.db.
		Where("owner_id = ? AND owner_type = ?", ownerID, ownerType).
		Order("id asc").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Updates 按 ID 更新任意字段
func (r *GormExternalApiConfigRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ExternalApiConfig{}).Where("id = ?", id).Updates(updates).Error
}
