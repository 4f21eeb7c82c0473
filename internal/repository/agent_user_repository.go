package repository

import (
	"errors"
	"fmt"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentUserRepository 代理用户数据访问接口
type AgentUserRepository interface {
	Create(agent *models.AgentUser) error
	GetByID(id uint) (*models.AgentUser, error)
	GetByIDForUpdate(id uint) (*models.AgentUser, error)
	GetByUsername(username string) (*models.AgentUser, error)
	GetByDomainSuffix(suffix string) (*models.AgentUser, error)
	List(filter AgentListFilter) ([]models.AgentUser, int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormAgentUserRepository
}

// GormAgentUserRepository GORM 实现
type GormAgentUserRepository struct {
	db *gorm.DB
}

// NewAgentUserRepository 创建代理用户仓库
func NewAgentUserRepository(db *gorm.DB) *GormAgentUserRepository {
	return &GormAgentUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAgentUserRepository) WithTx(tx *gorm.DB) *GormAgentUserRepository {
	if tx == nil {
		return r
	}
	return &GormAgentUserRepository{db: tx}
}

// Create 创建代理
func (r *GormAgentUserRepository) Create(agent *models.AgentUser) error {
	return r.db.Create(agent).Error
}

// GetByID 根据 ID 获取代理
func (r *GormAgentUserRepository) GetByID(id uint) (*models.AgentUser, error) {
	var agent models.AgentUser
	if err := r.db.First(&agent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetByIDForUpdate 加行锁获取代理,佣金台账更新须在事务内走此方法
func (r *GormAgentUserRepository) GetByIDForUpdate(id uint) (*models.AgentUser, error) {
	var agent models.AgentUser
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&agent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetByUsername 根据用户名获取代理
func (r *GormAgentUserRepository) GetByUsername(username string) (*models.AgentUser, error) {
	var agent models.AgentUser
	if err := r.db.Where("username = ?", username).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetByDomainSuffix 根据域名后缀获取代理,用于多租户站点识别
func (r *GormAgentUserRepository) GetByDomainSuffix(suffix string) (*models.AgentUser, error) {
	var agent models.AgentUser
	if err := r.db.Where("domain_suffix = ?", suffix).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// List 代理列表
func (r *GormAgentUserRepository) List(filter AgentListFilter) ([]models.AgentUser, int64, error) {
	query := r.db.Model(&models.AgentUser{})
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		op := likeOperator(r.db)
		query = query.Where(
			fmt.Sprintf("username %s ? OR phone %s ? OR domain_suffix %s ?", op, op, op),
			like, like, like,
		)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var agents []models.AgentUser
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&agents).Error; err != nil {
		return nil, 0, err
	}
	return agents, total, nil
}

// Updates 按 ID 更新任意字段
func (r *GormAgentUserRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.AgentUser{}).Where("id = ?", id).Updates(updates).Error
}
