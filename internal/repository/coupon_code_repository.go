package repository

import (
	"errors"
	"strings"

	"github.com/promo-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CouponCodeRepository 券码仓储接口
type CouponCodeRepository interface {
	CreateIgnoreConflict(code *models.CouponCode) (bool, error)
	GetByID(id uint) (*models.CouponCode, error)
	GetByFullCodeForUpdate(fullCode string) (*models.CouponCode, error)
	List(filter CodeListFilter) ([]models.CouponCode, int64, error)
	ListByTemplate(templateID uint) ([]models.CouponCode, error)
	Update(code *models.CouponCode) error
	WithTx(tx *gorm.DB) *GormCouponCodeRepository
}

// GormCouponCodeRepository GORM 券码仓储实现
type GormCouponCodeRepository struct {
	db *gorm.DB
}

// NewCouponCodeRepository 创建券码仓储
func NewCouponCodeRepository(db *gorm.DB) *GormCouponCodeRepository {
	return &GormCouponCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponCodeRepository) WithTx(tx *gorm.DB) *GormCouponCodeRepository {
	if tx == nil {
		return r
	}
	return &GormCouponCodeRepository{db: tx}
}

// CreateIgnoreConflict 写入券码；full_code 撞上唯一索引时返回 false 而非错误。
// 唯一索引是全局券码命名空间的权威登记处，这里把冲突当作生成重试信号。
func (r *GormCouponCodeRepository) CreateIgnoreConflict(code *models.CouponCode) (bool, error) {
	if code == nil {
		return false, errors.New("invalid coupon code")
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "full_code"}},
		DoNothing: true,
	}).Create(code)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 查询券码
func (r *GormCouponCodeRepository) GetByID(id uint) (*models.CouponCode, error) {
	if id == 0 {
		return nil, nil
	}
	var code models.CouponCode
	if err := r.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetByFullCodeForUpdate 根据完整券码加锁查询（核销/回滚临界区）
func (r *GormCouponCodeRepository) GetByFullCodeForUpdate(fullCode string) (*models.CouponCode, error) {
	fullCode = strings.TrimSpace(fullCode)
	if fullCode == "" {
		return nil, nil
	}
	var code models.CouponCode
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("full_code = ?", fullCode).
		First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// List 查询券码列表
func (r *GormCouponCodeRepository) List(filter CodeListFilter) ([]models.CouponCode, int64, error) {
	query := r.db.Model(&models.CouponCode{})
	if filter.TemplateID > 0 {
		query = query.Where("template_id = ?", filter.TemplateID)
	}
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("full_code LIKE ?", "%"+code+"%")
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

	query = applyPagination(query, filter.Page, filter.PageSize)

	var codes []models.CouponCode
	if err := query.Order("id desc").Find(&codes).Error; err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

// ListByTemplate 查询模板下全部券码（导出用）
func (r *GormCouponCodeRepository) ListByTemplate(templateID uint) ([]models.CouponCode, error) {
	if templateID == 0 {
		return []models.CouponCode{}, nil
	}
	var codes []models.CouponCode
	if err := r.db.Where("template_id = ?", templateID).
		Order("id asc").
		Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// Update 更新券码
func (r *GormCouponCodeRepository) Update(code *models.CouponCode) error {
	if code == nil {
		return errors.New("invalid coupon code")
	}
	return r.db.Save(code).Error
}
