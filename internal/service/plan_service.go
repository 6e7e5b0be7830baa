package service

import (
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"
)

// PlanService 套餐只读服务（选套餐下拉等后台查询）
type PlanService struct {
	planRepo repository.PlanRepository
}

// NewPlanService 创建套餐服务
func NewPlanService(planRepo repository.PlanRepository) *PlanService {
	return &PlanService{planRepo: planRepo}
}

// List 查询套餐列表
func (s *PlanService) List(filter repository.PlanListFilter) ([]models.Plan, int64, error) {
	if s == nil || s.planRepo == nil {
		return nil, 0, ErrTemplateFetchFailed
	}
	plans, total, err := s.planRepo.List(filter)
	if err != nil {
		return nil, 0, ErrTemplateFetchFailed
	}
	return plans, total, nil
}
