package repository

import (
	"errors"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionWithdrawalRepository 佣金提现数据访问接口
type CommissionWithdrawalRepository interface {
	Create(withdrawal *models.CommissionWithdrawal) error
	GetByID(id uint) (*models.CommissionWithdrawal, error)
	GetByIDForUpdate(id uint) (*models.CommissionWithdrawal, error)
	GetPendingByAgent(agentID uint) (*models.CommissionWithdrawal, error)
	List(filter WithdrawalListFilter) ([]models.CommissionWithdrawal, int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormCommissionWithdrawalRepository
}

// GormCommissionWithdrawalRepository GORM 实现
type GormCommissionWithdrawalRepository struct {
	db *gorm.DB
}

// NewCommissionWithdrawalRepository 创建佣金提现仓库
func NewCommissionWithdrawalRepository(db *gorm.DB) *GormCommissionWithdrawalRepository {
	return &GormCommissionWithdrawalRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionWithdrawalRepository) WithTx(tx *gorm.DB) *GormCommissionWithdrawalRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionWithdrawalRepository{db: tx}
}

// Create 创建提现申请
func (r *GormCommissionWithdrawalRepository) Create(withdrawal *models.CommissionWithdrawal) error {
	return r.db.Create(withdrawal).Error
}

// GetByID 根据 ID 获取提现申请
func (r *GormCommissionWithdrawalRepository) GetByID(id uint) (*models.CommissionWithdrawal, error) {
	var withdrawal models.CommissionWithdrawal
	if err := r.db.First(&withdrawal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

// GetByIDForUpdate 加行锁获取提现申请,须在事务内调用
func (r *GormCommissionWithdrawalRepository) GetByIDForUpdate(id uint) (*models.CommissionWithdrawal, error) {
	var withdrawal models.CommissionWithdrawal
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&withdrawal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

// GetPendingByAgent 获取代理当前待审核的提现申请,不存在时返回 nil
func (r *GormCommissionWithdrawalRepository) GetPendingByAgent(agentID uint) (*models.CommissionWithdrawal, error) {
	var withdrawal models.CommissionWithdrawal
	if err := r.db.
		Where("agent_id = ? AND status = ?", agentID, constants.WithdrawalStatusPending).
		Order("id DESC").
		First(&withdrawal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

// List 提现申请列表
func (r *GormCommissionWithdrawalRepository) List(filter WithdrawalListFilter) ([]models.CommissionWithdrawal, int64, error) {
	query := r.db.Model(&models.CommissionWithdrawal{})
	if filter.AgentID != 0 {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	var withdrawals []models.CommissionWithdrawal
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}
	return withdrawals, total, nil
}

// Updates 按 ID 更新任意字段
func (r *GormCommissionWithdrawalRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.CommissionWithdrawal{}).Where("id = ?", id).Updates(updates).Error
}
