package repository

import (
	"errors"
	"fmt"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// QueryConfigRepository 查询套餐配置数据访问接口
type QueryConfigRepository interface {
	Create(config *models.QueryConfig) error
	GetByID(id uint) (*models.QueryConfig, error)
	GetActiveByName(configName string, ownerID uint, ownerType string) (*models.QueryConfig, error)
	ListActive(ownerID uint, ownerType, category string) ([]models.QueryConfig, error)
	List(filter QueryConfigListFilter) ([]models.QueryConfig, int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormQueryConfigRepository
}

// GormQueryConfigRepository GORM 实现
type GormQueryConfigRepository struct {
	db *gorm.DB
}

// NewQueryConfigRepository 创建查询套餐仓库
func NewQueryConfigRepository(db *gorm.DB) *GormQueryConfigRepository {
	return &GormQueryConfigRepository{db: db}
}

// WithTx 绑定事务
func (r *GormQueryConfigRepository) WithTx(tx *gorm.DB) *GormQueryConfigRepository {
	if tx == nil {
		return r
	}
	return &GormQueryConfigRepository{db: tx}
}

// Create 创建查询套餐
func (r *GormQueryConfigRepository) Create(config *models.QueryConfig) error {
	return r.db.Create(config).Error
}

// GetByID 根据 ID 获取查询套餐
func (r *GormQueryConfigRepository) GetByID(id uint) (*models.QueryConfig, error) {
	var config models.QueryConfig
	if err := r.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// GetActiveByName 按配置名称获取某归属方启用的查询套餐
func (r *GormQueryConfigRepository) GetActiveByName(configName string, ownerID uint, ownerType string) (*models.QueryConfig, error) {
	var config models.QueryConfig
	if err := r.db.
		Where("config_name = ? AND owner_id = ? AND owner_type = ? AND is_active = ?", configName, ownerID, ownerType, true).
		First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// ListActive 列出某归属方启用的查询套餐,category 为空时不过滤分类
func (r *GormQueryConfigRepository) ListActive(ownerID uint, ownerType, category string) ([]models.QueryConfig, error) {
	query := r.db.Where("owner_id = ? AND owner_type = ? AND is_active = ?", ownerID, ownerType, true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var configs []models.QueryConfig
	if err := query.Order("id asc").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// List 查询套餐列表
func (r *GormQueryConfigRepository) List(filter QueryConfigListFilter) ([]models.QueryConfig, int64, error) {
	query := r.db.Model(&models.QueryConfig{})
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ? AND owner_type = ?", filter.OwnerID, filter.OwnerType)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		query = query.Where(fmt.Sprintf("config_name %s ?", likeOperator(r.db)), "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var configs []models.QueryConfig
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id asc").Find(&configs).Error; err != nil {
		return nil, 0, err
	}
	return configs, total, nil
}

// Updates 按 ID 更新任意字段
func (r *GormQueryConfigRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.QueryConfig{}).Where("id = ?", id).Updates(updates).Error
}
