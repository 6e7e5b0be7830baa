package service

import (
	"errors"
	"strings"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"

	"gorm.io/gorm"
)

// CouponTemplateService 券模板服务（生命周期状态机与配额上限）
type CouponTemplateService struct {
	templateRepo repository.CouponTemplateRepository
	planRepo     repository.PlanRepository
}

// NewCouponTemplateService 创建券模板服务
func NewCouponTemplateService(templateRepo repository.CouponTemplateRepository, planRepo repository.PlanRepository) *CouponTemplateService {
	return &CouponTemplateService{
		templateRepo: templateRepo,
		planRepo:     planRepo,
	}
}

// DiscountInput 折扣输入（discriminator + 单一变体取值）
type DiscountInput struct {
	Type        string
	BasisPoints int
	Amount      models.Money
	Currency    string
}

// TemplateInput 创建/编辑券模板输入
type TemplateInput struct {
	Name          string
	CodePrefix    string
	Discount      DiscountInput
	BillingType   string
	CycleLimit    int
	StartTime     time.Time
	EndTime       time.Time
	PlanApplyType string
	PlanIDs       []uint
	Quantity      int
}

// Create 创建券模板（初始状态 editing）
func (s *CouponTemplateService) Create(input TemplateInput) (*models.CouponTemplate, error) {
	if s == nil || s.templateRepo == nil {
		return nil, ErrTemplateSaveFailed
	}

	name := strings.TrimSpace(input.Name)
	prefix := strings.TrimSpace(strings.ToUpper(input.CodePrefix))
	if name == "" || prefix == "" {
		return nil, ErrTemplateInvalid
	}
	discount, err := buildDiscount(input.Discount)
	if err != nil {
		return nil, err
	}
	billingType, err := normalizeBillingType(input.BillingType)
	if err != nil {
		return nil, err
	}
	cycleLimit := input.CycleLimit
	if billingType != constants.BillingTypeRecurring {
		cycleLimit = 0
	}
	if input.StartTime.IsZero() || input.EndTime.IsZero() {
		return nil, ErrTemplateInvalid
	}
	if !input.EndTime.After(input.StartTime) || !input.EndTime.After(time.Now()) {
		return nil, ErrTemplateInvalid
	}
	if input.Quantity < 1 || input.Quantity > constants.MaxTemplateQuantity {
		return nil, ErrTemplateInvalid
	}
	applyType, planIDs, err := s.validatePlanScope(input.PlanApplyType, input.PlanIDs, billingType, discount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &models.CouponTemplate{
		Name:          name,
		CodePrefix:    prefix,
		Status:        constants.TemplateStatusEditing,
		Discount:      discount,
		BillingType:   billingType,
		CycleLimit:    cycleLimit,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		PlanApplyType: applyType,
		PlanIDs:       models.EncodePlanIDs(planIDs),
		Quantity:      input.Quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.templateRepo.Create(template); err != nil {
		return nil, ErrTemplateSaveFailed
	}
	return template, nil
}

// Edit 编辑券模板。
// editing 状态全量可改；active 状态折扣/币种/计费类型/周期数服务端锁定，
// 不依赖任何前端字段禁用。quantity 只能通过 IncrementQuantity 调整。
func (s *CouponTemplateService) Edit(id uint, input TemplateInput) (*models.CouponTemplate, error) {
	if s == nil || s.templateRepo == nil || id == 0 {
		return nil, ErrTemplateInvalid
	}
	existing, err := s.templateRepo.GetByID(id)
	if err != nil {
		return nil, ErrTemplateFetchFailed
	}
	if existing == nil {
		return nil, ErrTemplateNotFound
	}
	switch existing.Status {
	case constants.TemplateStatusEditing, constants.TemplateStatusActive:
	default:
		return nil, ErrTemplateState
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTemplateInvalid
	}
	discount, err := buildDiscount(input.Discount)
	if err != nil {
		return nil, err
	}
	billingType, err := normalizeBillingType(input.BillingType)
	if err != nil {
		return nil, err
	}
	cycleLimit := input.CycleLimit
	if billingType != constants.BillingTypeRecurring {
		cycleLimit = 0
	}
	if input.StartTime.IsZero() || input.EndTime.IsZero() || !input.EndTime.After(input.StartTime) {
		return nil, ErrTemplateInvalid
	}

	if existing.Status == constants.TemplateStatusActive {
		// 激活后锁定的字段集合
		if !existing.Discount.Equal(discount) {
			return nil, ErrTemplateState
		}
		if existing.BillingType != billingType || existing.CycleLimit != cycleLimit {
			return nil, ErrTemplateState
		}
	}

	applyType, planIDs, err := s.validatePlanScope(input.PlanApplyType, input.PlanIDs, billingType, discount)
	if err != nil {
		return nil, err
	}

	existing.Name = name
	existing.Discount = discount
	existing.BillingType = billingType
	existing.CycleLimit = cycleLimit
	existing.StartTime = input.StartTime
	existing.EndTime = input.EndTime
	existing.PlanApplyType = applyType
	existing.PlanIDs = models.EncodePlanIDs(planIDs)
	existing.UpdatedAt = time.Now()

	if err := s.templateRepo.Update(existing); err != nil {
		return nil, ErrTemplateSaveFailed
	}
	return existing, nil
}

// Activate 激活券模板（仅 editing/inactive 可激活）
func (s *CouponTemplateService) Activate(id uint) (*models.CouponTemplate, error) {
	return s.transition(id,
		[]string{constants.TemplateStatusEditing, constants.TemplateStatusInactive},
		constants.TemplateStatusActive)
}

// Deactivate 停用券模板（仅 active 可停用，可再次激活）
func (s *CouponTemplateService) Deactivate(id uint) (*models.CouponTemplate, error) {
	return s.transition(id,
		[]string{constants.TemplateStatusActive},
		constants.TemplateStatusInactive)
}

// Archive 归档券模板（终态，任意非归档状态可进入，不可逆）
func (s *CouponTemplateService) Archive(id uint) (*models.CouponTemplate, error) {
	return s.transition(id,
		[]string{constants.TemplateStatusEditing, constants.TemplateStatusActive, constants.TemplateStatusInactive},
		constants.TemplateStatusArchived)
}

// transition 按 CAS 语义切换状态：前置状态不符直接失败，无任何副作用。
func (s *CouponTemplateService) transition(id uint, from []string, to string) (*models.CouponTemplate, error) {
	if s == nil || s.templateRepo == nil || id == 0 {
		return nil, ErrTemplateInvalid
	}
	existing, err := s.templateRepo.GetByID(id)
	if err != nil {
		return nil, ErrTemplateFetchFailed
	}
	if existing == nil {
		return nil, ErrTemplateNotFound
	}
	ok, err := s.templateRepo.UpdateStatusCAS(id, from, to, time.Now())
	if err != nil {
		return nil, ErrTemplateSaveFailed
	}
	if !ok {
		return nil, ErrTemplateState
	}
	updated, err := s.templateRepo.GetByID(id)
	if err != nil {
		return nil, ErrTemplateFetchFailed
	}
	return updated, nil
}

// IncrementQuantity 提升配额上限。
// 仅 active 可调用；delta 必须为正；新上限不得超过 MaxTemplateQuantity。
// 与在途 Generate 的配额检查通过模板行锁线性化。
func (s *CouponTemplateService) IncrementQuantity(id uint, delta int) (*models.CouponTemplate, error) {
	if s == nil || s.templateRepo == nil || id == 0 {
		return nil, ErrTemplateInvalid
	}
	if delta <= 0 {
		return nil, ErrTemplateInvalid
	}

	var result *models.CouponTemplate
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.templateRepo.WithTx(tx)
		template, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return ErrTemplateFetchFailed
		}
		if template == nil {
			return ErrTemplateNotFound
		}
		if template.Status != constants.TemplateStatusActive {
			return ErrTemplateState
		}
		if template.Quantity+delta > constants.MaxTemplateQuantity {
			return ErrTemplateInvalid
		}
		template.Quantity += delta
		template.UpdatedAt = time.Now()
		if err := repo.Update(template); err != nil {
			return ErrTemplateSaveFailed
		}
		result = template
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		return nil, ErrTemplateSaveFailed
	}
	return result, nil
}

// Get 根据 ID 查询券模板
func (s *CouponTemplateService) Get(id uint) (*models.CouponTemplate, error) {
	if s == nil || s.templateRepo == nil || id == 0 {
		return nil, ErrTemplateInvalid
	}
	template, err := s.templateRepo.GetByID(id)
	if err != nil {
		return nil, ErrTemplateFetchFailed
	}
	if template == nil {
		return nil, ErrTemplateNotFound
	}
	return template, nil
}

// List 查询券模板列表
func (s *CouponTemplateService) List(filter repository.TemplateListFilter) ([]models.CouponTemplate, int64, error) {
	if s == nil || s.templateRepo == nil {
		return nil, 0, ErrTemplateFetchFailed
	}
	templates, total, err := s.templateRepo.List(filter)
	if err != nil {
		return nil, 0, ErrTemplateFetchFailed
	}
	return templates, total, nil
}

// validatePlanScope 校验套餐适用范围。
// selected/not_selected 必须给出套餐ID，且每个套餐需处于可用状态、
// 计费类型与模板一致；固定金额折扣还要求币种一致。
func (s *CouponTemplateService) validatePlanScope(applyType string, planIDs []uint, billingType string, discount models.Discount) (string, []uint, error) {
	normalized := strings.ToLower(strings.TrimSpace(applyType))
	if normalized == "" {
		normalized = constants.PlanApplyTypeAll
	}
	switch normalized {
	case constants.PlanApplyTypeAll:
		return normalized, nil, nil
	case constants.PlanApplyTypeSelected, constants.PlanApplyTypeNotSelected:
	default:
		return "", nil, ErrTemplateInvalid
	}

	ids := dedupeIDs(planIDs)
	if len(ids) == 0 {
		return "", nil, ErrTemplatePlanInvalid
	}
	if s.planRepo == nil {
		return "", nil, ErrTemplatePlanInvalid
	}
	plans, err := s.planRepo.ListByIDs(ids)
	if err != nil {
		return "", nil, ErrTemplateFetchFailed
	}
	found := make(map[uint]models.Plan, len(plans))
	for _, plan := range plans {
		found[plan.ID] = plan
	}
	for _, id := range ids {
		plan, ok := found[id]
		if !ok || !plan.IsActive() {
			return "", nil, ErrTemplatePlanInvalid
		}
		if plan.BillingType != billingType {
			return "", nil, ErrTemplatePlanInvalid
		}
		if discount.IsFixedAmount() && !strings.EqualFold(plan.Currency, discount.Currency) {
			return "", nil, ErrTemplatePlanInvalid
		}
	}
	return normalized, ids, nil
}

func buildDiscount(input DiscountInput) (models.Discount, error) {
	switch strings.ToLower(strings.TrimSpace(input.Type)) {
	case constants.DiscountTypePercentage:
		discount, ok := models.NewPercentageDiscount(input.BasisPoints)
		if !ok {
			return models.Discount{}, ErrTemplateInvalid
		}
		return discount, nil
	case constants.DiscountTypeFixedAmount:
		discount, ok := models.NewFixedAmountDiscount(input.Amount, strings.ToUpper(strings.TrimSpace(input.Currency)))
		if !ok {
			return models.Discount{}, ErrTemplateInvalid
		}
		return discount, nil
	default:
		return models.Discount{}, ErrTemplateInvalid
	}
}

func normalizeBillingType(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case constants.BillingTypeOneTime:
		return constants.BillingTypeOneTime, nil
	case constants.BillingTypeRecurring:
		return constants.BillingTypeRecurring, nil
	default:
		return "", ErrTemplateInvalid
	}
}

func dedupeIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// isServiceError 判断是否为本包定义的业务错误
func isServiceError(err error) bool {
	for _, target := range []error{
		ErrTemplateInvalid, ErrTemplateNotFound, ErrTemplateState,
		ErrTemplatePlanInvalid, ErrTemplateSaveFailed, ErrTemplateFetchFailed,
		ErrGenerateInvalid, ErrQuotaExceeded, ErrGenerateFailed,
		ErrCodeNotFound, ErrCodeFetchFailed,
		ErrUsageInvalid, ErrUsageNotFound, ErrUsageState,
		ErrUsageSaveFailed, ErrUsageFetchFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
