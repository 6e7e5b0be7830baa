package repository

import (
	"errors"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"

	"gorm.io/gorm"
)

// PlanRepository 套餐仓储接口
type PlanRepository interface {
	GetByID(id uint) (*models.Plan, error)
	ListByIDs(ids []uint) ([]models.Plan, error)
	List(filter PlanListFilter) ([]models.Plan, int64, error)
	Upsert(plan *models.Plan) error
}

// GormPlanRepository GORM 套餐仓储实现
type GormPlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository 创建套餐仓储
func NewPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// GetByID 根据 ID 查询套餐
func (r *GormPlanRepository) GetByID(id uint) (*models.Plan, error) {
	if id == 0 {
		return nil, nil
	}
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// ListByIDs 按 ID 列表查询套餐
func (r *GormPlanRepository) ListByIDs(ids []uint) ([]models.Plan, error) {
	if len(ids) == 0 {
		return []models.Plan{}, nil
	}
	var plans []models.Plan
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// List 查询套餐列表
func (r *GormPlanRepository) List(filter PlanListFilter) ([]models.Plan, int64, error) {
	query := r.db.Model(&models.Plan{})
	if filter.OnlyActive {
		query = query.Where("status = ?", constants.PlanStatusActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var plans []models.Plan
	if err := query.Order("id asc").Find(&plans).Error; err != nil {
		return nil, 0, err
	}
	return plans, total, nil
}

// Upsert 写入或更新套餐（目录同步用）
func (r *GormPlanRepository) Upsert(plan *models.Plan) error {
	if plan == nil {
		return errors.New("invalid plan")
	}
	return r.db.Save(plan).Error
}
