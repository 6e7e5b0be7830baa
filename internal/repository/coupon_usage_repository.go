package repository

import (
	"errors"
	"strings"

	"github.com/promo-next/internal/models"

	"gorm.io/gorm"
)

// CouponUsageRepository 核销记录仓储接口
type CouponUsageRepository interface {
	Create(usage *models.CouponUsage) error
	GetByID(id uint) (*models.CouponUsage, error)
	List(filter UsageListFilter) ([]models.CouponUsage, int64, error)
	ListByTemplate(templateID uint) ([]models.CouponUsage, error)
	Update(usage *models.CouponUsage) error
	WithTx(tx *gorm.DB) *GormCouponUsageRepository
}

// GormCouponUsageRepository GORM 核销记录仓储实现
type GormCouponUsageRepository struct {
	db *gorm.DB
}

// NewCouponUsageRepository 创建核销记录仓储
func NewCouponUsageRepository(db *gorm.DB) *GormCouponUsageRepository {
	return &GormCouponUsageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponUsageRepository) WithTx(tx *gorm.DB) *GormCouponUsageRepository {
	if tx == nil {
		return r
	}
	return &GormCouponUsageRepository{db: tx}
}

// Create 写入核销记录
func (r *GormCouponUsageRepository) Create(usage *models.CouponUsage) error {
	if usage == nil {
		return errors.New("invalid coupon usage")
	}
	return r.db.Create(usage).Error
}

// GetByID 根据 ID 查询核销记录
func (r *GormCouponUsageRepository) GetByID(id uint) (*models.CouponUsage, error) {
	if id == 0 {
		return nil, nil
	}
	var usage models.CouponUsage
	if err := r.db.First(&usage, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

// List 查询核销记录列表
func (r *GormCouponUsageRepository) List(filter UsageListFilter) ([]models.CouponUsage, int64, error) {
	query := r.db.Model(&models.CouponUsage{})
	if filter.TemplateID > 0 {
		query = query.Where("template_id = ?", filter.TemplateID)
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		query = query.Where("email LIKE ?", "%"+email+"%")
	}
	if status := strings.TrimSpace(strings.ToLower(filter.Status)); status != "" {
		query = query.Where("status = ?", status)
	}
	if len(filter.PlanIDs) > 0 {
		query = query.Where("plan_id IN ?", filter.PlanIDs)
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

	var usages []models.CouponUsage
	if err := query.Order("id desc").Find(&usages).Error; err != nil {
		return nil, 0, err
	}
	return usages, total, nil
}

// ListByTemplate 查询模板下全部核销记录（导出用）
func (r *GormCouponUsageRepository) ListByTemplate(templateID uint) ([]models.CouponUsage, error) {
	if templateID == 0 {
		return []models.CouponUsage{}, nil
	}
	var usages []models.CouponUsage
	if err := r.db.Where("template_id = ?", templateID).
		Order("id asc").
		Find(&usages).Error; err != nil {
		return nil, err
	}
	return usages, nil
}

// Update 更新核销记录
func (r *GormCouponUsageRepository) Update(usage *models.CouponUsage) error {
	if usage == nil {
		return errors.New("invalid coupon usage")
	}
	return r.db.Save(usage).Error
}
