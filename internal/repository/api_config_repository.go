package repository

import (
	"errors"
	"fmt"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// ApiConfigRepository 上游接口配置数据访问接口
type ApiConfigRepository interface {
	Create(config *models.ApiConfig) error
	GetByID(id uint) (*models.ApiConfig, error)
	GetByCode(apiCode string) (*models.ApiConfig, error)
	ListByIDs(ids []uint) ([]models.ApiConfig, error)
	List(filter APIConfigListFilter) ([]models.ApiConfig, int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormApiConfigRepository
}

// GormApiConfigRepository GORM 实现
type GormApiConfigRepository struct {
	db *gorm.DB
}

// NewApiConfigRepository 创建上游接口配置仓库
func NewApiConfigRepository(db *gorm.DB) *GormApiConfigRepository {
	return &GormApiConfigRepository{db: db}
}

// WithTx 绑定事务
func (r *GormApiConfigRepository) WithTx(tx *gorm.DB) *GormApiConfigRepository {
	if tx == nil {
		return r
	}
	return &GormApiConfigRepository{db: tx}
}

// Create 创建接口配置
func (r *GormApiConfigRepository) Create(config *models.ApiConfig) error {
	return r.db.Create(config).Error
}

// GetByID 根据 ID 获取接口配置
func (r *GormApiConfigRepository) GetByID(id uint) (*models.ApiConfig, error) {
	var config models.ApiConfig
	if err := r.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// GetByCode 根据接口编号获取配置
func (r *GormApiConfigRepository) GetByCode(apiCode string) (*models.ApiConfig, error) {
	var config models.ApiConfig
	if err := r.db.Where("api_code = ?", apiCode).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// ListByIDs 按 ID 集合获取接口配置,返回顺序与 ids 一致
func (r *GormApiConfigRepository) ListByIDs(ids []uint) ([]models.ApiConfig, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var configs []models.ApiConfig
	if err := r.db.Where("id IN ?", ids).Find(&configs).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.ApiConfig, len(configs))
	for _, config := range configs {
		byID[config.ID] = config
	}
	ordered := make([]models.ApiConfig, 0, len(ids))
	for _, id := range ids {
		if config, ok := byID[id]; ok {
			ordered = append(ordered, config)
		}
	}
	return ordered, nil
}

// List 接口配置列表
func (r *GormApiConfigRepository) List(filter APIConfigListFilter) ([]models.ApiConfig, int64, error) {
	query := r.db.Model(&models.ApiConfig{})
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ? AND owner_type = ?", filter.OwnerID, filter.OwnerType)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		op := likeOperator(r.db)
		query = query.Where(fmt.Sprintf("api_name %s ? OR api_code %s ?", op, op), like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var configs []models.ApiConfig
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id asc").Find(&configs).Error; err != nil {
		return nil, 0, err
	}
	return configs, total, nil
}

// Updates 按 ID 更新任意字段
func (r *GormApiConfigRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ApiConfig{}).Where("id = ?", id).Updates(updates).Error
}
