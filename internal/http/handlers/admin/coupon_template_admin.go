package admin

import (
	"errors"
	"strconv"
	"time"

	"github.com/promo-next/internal/http/response"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"
	"github.com/promo-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DiscountRequest 折扣请求体
type DiscountRequest struct {
	Type        string  `json:"type" binding:"required"`
	BasisPoints int     `json:"basis_points"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// TemplateRequest 创建/编辑券模板请求
type TemplateRequest struct {
	Name          string          `json:"name" binding:"required"`
	CodePrefix    string          `json:"code_prefix"`
	Discount      DiscountRequest `json:"discount" binding:"required"`
	BillingType   string          `json:"billing_type" binding:"required"`
	CycleLimit    int             `json:"cycle_limit"`
	StartTime     string          `json:"start_time" binding:"required"`
	EndTime       string          `json:"end_time" binding:"required"`
	PlanApplyType string          `json:"plan_apply_type"`
	PlanIDs       []uint          `json:"plan_ids"`
	Quantity      int             `json:"quantity"`
}

// TemplateView 券模板响应视图（附派生展示状态与剩余配额）
type TemplateView struct {
	models.CouponTemplate
	DisplayStatus  string `json:"display_status"`
	RemainingQuota int    `json:"remaining_quota"`
	MinCodeLength  int    `json:"min_code_length"`
}

func newTemplateView(template *models.CouponTemplate) TemplateView {
	now := time.Now()
	return TemplateView{
		CouponTemplate: *template,
		DisplayStatus:  template.DisplayStatus(now),
		RemainingQuota: template.RemainingQuota(),
		MinCodeLength:  template.MinCodeLength(),
	}
}

func (r TemplateRequest) toInput() (service.TemplateInput, error) {
	startTime, err := time.Parse(time.RFC3339, r.StartTime)
	if err != nil {
		return service.TemplateInput{}, err
	}
	endTime, err := time.Parse(time.RFC3339, r.EndTime)
	if err != nil {
		return service.TemplateInput{}, err
	}
	return service.TemplateInput{
		Name:       r.Name,
		CodePrefix: r.CodePrefix,
		Discount: service.DiscountInput{
			Type:        r.Discount.Type,
			BasisPoints: r.Discount.BasisPoints,
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(r.Discount.Amount)),
			Currency:    r.Discount.Currency,
		},
		BillingType:   r.BillingType,
		CycleLimit:    r.CycleLimit,
		StartTime:     startTime,
		EndTime:       endTime,
		PlanApplyType: r.PlanApplyType,
		PlanIDs:       r.PlanIDs,
		Quantity:      r.Quantity,
	}, nil
}

// CreateTemplate 创建券模板
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	template, err := h.TemplateService.Create(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateInvalid):
			respondError(c, response.CodeBadRequest, "coupon template invalid", nil)
		case errors.Is(err, service.ErrTemplatePlanInvalid):
			respondError(c, response.CodeBadRequest, "coupon template plan scope invalid", nil)
		default:
			respondError(c, response.CodeInternal, "coupon template create failed", err)
		}
		return
	}
	response.Success(c, newTemplateView(template))
}

// UpdateTemplate 编辑券模板
func (h *Handler) UpdateTemplate(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	template, err := h.TemplateService.Edit(uint(templateID), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			respondError(c, response.CodeNotFound, "coupon template not found", nil)
		case errors.Is(err, service.ErrTemplateInvalid):
			respondError(c, response.CodeBadRequest, "coupon template invalid", nil)
		case errors.Is(err, service.ErrTemplatePlanInvalid):
			respondError(c, response.CodeBadRequest, "coupon template plan scope invalid", nil)
		case errors.Is(err, service.ErrTemplateState):
			respondError(c, response.CodeConflict, "coupon template state not allowed", nil)
		default:
			respondError(c, response.CodeInternal, "coupon template update failed", err)
		}
		return
	}
	response.Success(c, newTemplateView(template))
}

// GetTemplate 查询券模板详情
func (h *Handler) GetTemplate(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	template, err := h.TemplateService.Get(uint(templateID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			respondError(c, response.CodeNotFound, "coupon template not found", nil)
		default:
			respondError(c, response.CodeInternal, "coupon template fetch failed", err)
		}
		return
	}
	response.Success(c, newTemplateView(template))
}

// GetTemplates 查询券模板列表
func (h *Handler) GetTemplates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	templates, total, err := h.TemplateService.List(repository.TemplateListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
		Search:   c.Query("search"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "coupon template fetch failed", err)
		return
	}

	views := make([]TemplateView, 0, len(templates))
	for i := range templates {
		views = append(views, newTemplateView(&templates[i]))
	}
	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, views, pagination)
}

// ActivateTemplate 激活券模板
func (h *Handler) ActivateTemplate(c *gin.Context) {
	h.transitionTemplate(c, h.TemplateService.Activate)
}

// DeactivateTemplate 停用券模板
func (h *Handler) DeactivateTemplate(c *gin.Context) {
	h.transitionTemplate(c, h.TemplateService.Deactivate)
}

// ArchiveTemplate 归档券模板
func (h *Handler) ArchiveTemplate(c *gin.Context) {
	h.transitionTemplate(c, h.TemplateService.Archive)
}

func (h *Handler) transitionTemplate(c *gin.Context, transition func(uint) (*models.CouponTemplate, error)) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	template, err := transition(uint(templateID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			respondError(c, response.CodeNotFound, "coupon template not found", nil)
		case errors.Is(err, service.ErrTemplateState):
			respondError(c, response.CodeConflict, "coupon template state not allowed", nil)
		default:
			respondError(c, response.CodeInternal, "coupon template transition failed", err)
		}
		return
	}
	response.Success(c, newTemplateView(template))
}

// IncrementQuantityRequest 提升配额请求
type IncrementQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// IncrementTemplateQuantity 提升券模板配额上限
func (h *Handler) IncrementTemplateQuantity(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	var req IncrementQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	template, err := h.TemplateService.IncrementQuantity(uint(templateID), req.Delta)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			respondError(c, response.CodeNotFound, "coupon template not found", nil)
		case errors.Is(err, service.ErrTemplateInvalid):
			respondError(c, response.CodeBadRequest, "quantity delta invalid", nil)
		case errors.Is(err, service.ErrTemplateState):
			respondError(c, response.CodeConflict, "coupon template state not allowed", nil)
		default:
			respondError(c, response.CodeInternal, "coupon template update failed", err)
		}
		return
	}
	response.Success(c, newTemplateView(template))
}

// GenerateCodesRequest 批量生成券码请求
type GenerateCodesRequest struct {
	Quantity   int `json:"quantity" binding:"required"`
	CodeLength int `json:"code_length" binding:"required"`
}

// GenerateCodes 批量生成券码
func (h *Handler) GenerateCodes(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	var req GenerateCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	result, err := h.GeneratorService.Generate(uint(templateID), req.Quantity, req.CodeLength)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			respondError(c, response.CodeNotFound, "coupon template not found", nil)
		case errors.Is(err, service.ErrTemplateState):
			respondError(c, response.CodeConflict, "coupon template state not allowed", nil)
		case errors.Is(err, service.ErrGenerateInvalid):
			respondError(c, response.CodeBadRequest, "generate params invalid", nil)
		case errors.Is(err, service.ErrQuotaExceeded):
			respondError(c, response.CodeConflict, "coupon quota exceeded", nil)
		default:
			respondError(c, response.CodeInternal, "coupon generate failed", err)
		}
		return
	}
	if result.Partial {
		requestLog(c).Warnw("coupon_generate_partial",
			"template_id", templateID,
			"requested", result.Requested,
			"generated", result.Generated)
	}
	response.Success(c, result)
}
