package repository

import (
	"errors"
	"time"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// QueryResultRepository 查询结果数据访问接口
type QueryResultRepository interface {
	Create(result *models.QueryResult) error
	GetByID(id uint) (*models.QueryResult, error)
	GetByOrderID(orderID uint) (*models.QueryResult, error)
	ListByUser(userID uint, page, pageSize int) ([]models.QueryResult, int64, error)
	ListExpirable(now time.Time, limit int) ([]models.QueryResult, error)
	MarkExpired(ids []uint) (int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormQueryResultRepository
}

// GormQueryResultRepository GORM 实现
type GormQueryResultRepository struct {
	db *gorm.DB
}

// NewQueryResultRepository 创建查询结果仓库
func NewQueryResultRepository(db *gorm.DB) *GormQueryResultRepository {
	return &GormQueryResultRepository{db: db}
}

// WithTx 绑定事务
func (r *GormQueryResultRepository) WithTx(tx *gorm.DB) *GormQueryResultRepository {
	if tx == nil {
		return r
	}
	return &GormQueryResultRepository{db: tx}
}

// Create 创建查询结果
func (r *GormQueryResultRepository) Create(result *models.QueryResult) error {
	return r.db.Create(result).Error
}

// GetByID 根据 ID 获取查询结果
func (r *GormQueryResultRepository) GetByID(id uint) (*models.QueryResult, error) {
	var result models.QueryResult
	if err := r.db.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// GetByOrderID 根据订单 ID 获取查询结果
func (r *GormQueryResultRepository) GetByOrderID(orderID uint) (*models.QueryResult, error) {
	var result models.QueryResult
	if err := r.db.Where("order_id = ?", orderID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// ListByUser 获取用户查询历史
func (r *GormQueryResultRepository) ListByUser(userID uint, page, pageSize int) ([]models.QueryResult, int64, error) {
	query := r.db.Model(&models.QueryResult{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []models.QueryResult
	query = applyPagination(query, page, pageSize)
	if err := query.Order("id desc").Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// ListExpirable 列出已到期但尚未标记过期的结果
func (r *GormQueryResultRepository) ListExpirable(now time.Time, limit int) ([]models.QueryResult, error) {
	var results []models.QueryResult
	query := r.db.Where("is_expired = ? AND expires_at <= ?", false, now).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkExpired 批量标记过期并清空密文,返回受影响行数
func (r *GormQueryResultRepository) MarkExpired(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.QueryResult{}).
		Where("id IN ? AND is_expired = ?", ids, false).
		Updates(map[string]interface{}{
			"is_expired":            true,
			"encrypted_result_data": "{}",
		})
	return result.RowsAffected, result.Error
}

// Updates 按 ID 更新任意字段
func (r *GormQueryResultRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.QueryResult{}).Where("id = ?", id).Updates(updates).Error
}
