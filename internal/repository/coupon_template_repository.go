package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CouponTemplateRepository 券模板仓储接口
type CouponTemplateRepository interface {
	Create(template *models.CouponTemplate) error
	GetByID(id uint) (*models.CouponTemplate, error)
	GetByIDForUpdate(id uint) (*models.CouponTemplate, error)
	List(filter TemplateListFilter) ([]models.CouponTemplate, int64, error)
	Update(template *models.CouponTemplate) error
	UpdateStatusCAS(id uint, fromStatuses []string, toStatus string, updatedAt time.Time) (bool, error)
	IncrementCounts(id uint, childDelta, usedDelta int, updatedAt time.Time) error
	WithTx(tx *gorm.DB) *GormCouponTemplateRepository
}

// GormCouponTemplateRepository GORM 券模板仓储实现
type GormCouponTemplateRepository struct {
	db *gorm.DB
}

// NewCouponTemplateRepository 创建券模板仓储
func NewCouponTemplateRepository(db *gorm.DB) *GormCouponTemplateRepository {
	return &GormCouponTemplateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponTemplateRepository) WithTx(tx *gorm.DB) *GormCouponTemplateRepository {
	if tx == nil {
		return r
	}
	return &GormCouponTemplateRepository{db: tx}
}

// Create 创建券模板
func (r *GormCouponTemplateRepository) Create(template *models.CouponTemplate) error {
	if template == nil {
		return errors.New("invalid coupon template")
	}
	return r.db.Create(template).Error
}

// GetByID 根据 ID 查询券模板
func (r *GormCouponTemplateRepository) GetByID(id uint) (*models.CouponTemplate, error) {
	if id == 0 {
		return nil, nil
	}
	var template models.CouponTemplate
	if err := r.db.First(&template, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

// GetByIDForUpdate 根据 ID 加锁查询券模板（配额临界区）
func (r *GormCouponTemplateRepository) GetByIDForUpdate(id uint) (*models.CouponTemplate, error) {
	if id == 0 {
		return nil, nil
	}
	var template models.CouponTemplate
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&template, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

// List 查询券模板列表
func (r *GormCouponTemplateRepository) List(filter TemplateListFilter) ([]models.CouponTemplate, int64, error) {
	query := r.db.Model(&models.CouponTemplate{})
	now := time.Now()
	if status := strings.TrimSpace(strings.ToLower(filter.Status)); status != "" {
		switch status {
		case constants.TemplateStatusExpired:
			// 派生状态：未归档但有效期已过
			query = query.Where("status <> ? AND end_time <= ?", constants.TemplateStatusArchived, now)
		case constants.TemplateStatusActive:
			query = query.Where("status = ? AND end_time > ?", constants.TemplateStatusActive, now)
		default:
			query = query.Where("status = ?", status)
		}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name LIKE ? OR code_prefix LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var templates []models.CouponTemplate
	if err := query.Order("id desc").Find(&templates).Error; err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

// Update 更新券模板
func (r *GormCouponTemplateRepository) Update(template *models.CouponTemplate) error {
	if template == nil {
		return errors.New("invalid coupon template")
	}
	return r.db.Save(template).Error
}

// UpdateStatusCAS 以 compare-and-swap 方式切换生命周期状态。
// 前置状态不匹配时返回 false 且不产生任何副作用。
func (r *GormCouponTemplateRepository) UpdateStatusCAS(id uint, fromStatuses []string, toStatus string, updatedAt time.Time) (bool, error) {
	if id == 0 || len(fromStatuses) == 0 || toStatus == "" {
		return false, errors.New("invalid status transition args")
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	result := r.db.Model(&models.CouponTemplate{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(map[string]interface{}{
			"status":     toStatus,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementCounts 增加已生成/已核销计数（需在持锁事务内调用）
func (r *GormCouponTemplateRepository) IncrementCounts(id uint, childDelta, usedDelta int, updatedAt time.Time) error {
	if id == 0 || (childDelta == 0 && usedDelta == 0) {
		return nil
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	updates := map[string]interface{}{
		"updated_at": updatedAt,
	}
	if childDelta != 0 {
		updates["child_code_count"] = gorm.Expr("child_code_count + ?", childDelta)
	}
	if usedDelta != 0 {
		updates["used_child_code_count"] = gorm.Expr("used_child_code_count + ?", usedDelta)
	}
	return r.db.Model(&models.CouponTemplate{}).
		Where("id = ?", id).
		Updates(updates).Error
}
