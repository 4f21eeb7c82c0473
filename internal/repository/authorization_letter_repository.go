package repository

import (
	"errors"

	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// AuthorizationLetterRepository 授权书数据访问接口
type AuthorizationLetterRepository interface {
	Create(letter *models.AuthorizationLetter) error
	GetByID(id uint) (*models.AuthorizationLetter, error)
	GetByDownloadToken(token string) (*models.AuthorizationLetter, error)
	ListByUser(userID uint, page, pageSize int) ([]models.AuthorizationLetter, int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormAuthorizationLetterRepository
}

// GormAuthorizationLetterRepository GORM 实现
type GormAuthorizationLetterRepository struct {
	db *gorm.DB
}

// NewAuthorizationLetterRepository 创建授权书仓库
func NewAuthorizationLetterRepository(db *gorm.DB) *GormAuthorizationLetterRepository {
	return &GormAuthorizationLetterRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAuthorizationLetterRepository) WithTx(tx *gorm.DB) *GormAuthorizationLetterRepository {
	if tx == nil {
		return r
	}
	return &GormAuthorizationLetterRepository{db: tx}
}

// Create 创建授权书
func (r *GormAuthorizationLetterRepository) Create(letter *models.AuthorizationLetter) error {
	return r.db.Create(letter).Error
}

// GetByID 根据 ID 获取授权书
func (r *GormAuthorizationLetterRepository) GetByID(id uint) (*models.AuthorizationLetter, error) {
	var letter models.AuthorizationLetter
	if err := r.db.First(&letter, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &letter, nil
}

// GetByDownloadToken 根据下载令牌获取授权书
func (r *GormAuthorizationLetterRepository) GetByDownloadToken(token string) (*models.AuthorizationLetter, error) {
	var letter models.AuthorizationLetter
	if err := r.db.Where("download_token = ?", token).First(&letter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &letter, nil
}

// ListByUser 用户授权书列表
func (r *GormAuthorizationLetterRepository) ListByUser(userID uint, page, pageSize int) ([]models.AuthorizationLetter, int64, error) {
	query := r.db.Model(&models.AuthorizationLetter{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var letters []models.AuthorizationLetter
	query = applyPagination(query, page, pageSize)
	if err := query.Order("id desc").Find(&letters).Error; err != nil {
		return nil, 0, err
	}
	return letters, total, nil
}

// Updates 按 ID 更新任意字段
func (r *GormAuthorizationLetterRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.AuthorizationLetter{}).Where("id = ?", id).Updates(updates).Error
}
