package admin

import (
	"errors"
	"strconv"

	"github.com/promo-next/internal/http/response"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"
	"github.com/promo-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetCouponUsages 查询核销记录列表
func (h *Handler) GetCouponUsages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var templateID uint
	if raw := c.Query("template_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
		templateID = uint(parsed)
	}
	var planIDs []uint
	for _, raw := range c.QueryArray("plan_id") {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
		planIDs = append(planIDs, uint(parsed))
	}
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	usages, total, err := h.UsageService.List(repository.UsageListFilter{
		Page:        page,
		PageSize:    pageSize,
		TemplateID:  templateID,
		Email:       c.Query("email"),
		Status:      c.Query("status"),
		PlanIDs:     planIDs,
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "coupon usage fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, usages, pagination)
}

// RecordUsageRequest 核销写入请求（计费引擎回调）
type RecordUsageRequest struct {
	Code           string  `json:"code" binding:"required"`
	PlanID         uint    `json:"plan_id"`
	ApplyAmount    float64 `json:"apply_amount"`
	Currency       string  `json:"currency" binding:"required"`
	Email          string  `json:"email"`
	SubscriptionID string  `json:"subscription_id"`
	InvoiceID      string  `json:"invoice_id"`
	PaymentID      string  `json:"payment_id"`
	Recurring      bool    `json:"recurring"`
}

// RecordCouponUsage 记录一次核销
func (h *Handler) RecordCouponUsage(c *gin.Context) {
	var req RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	usage, err := h.UsageService.Record(service.UsageInput{
		Code:           req.Code,
		PlanID:         req.PlanID,
		ApplyAmount:    models.NewMoneyFromDecimal(decimal.NewFromFloat(req.ApplyAmount)),
		Currency:       req.Currency,
		Email:          req.Email,
		SubscriptionID: req.SubscriptionID,
		InvoiceID:      req.InvoiceID,
		PaymentID:      req.PaymentID,
		Recurring:      req.Recurring,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			respondError(c, response.CodeNotFound, "coupon code not found", nil)
		case errors.Is(err, service.ErrUsageInvalid):
			respondError(c, response.CodeBadRequest, "coupon usage invalid", nil)
		case errors.Is(err, service.ErrUsageState):
			respondError(c, response.CodeConflict, "coupon code already redeemed", nil)
		case errors.Is(err, service.ErrTemplateState):
			respondError(c, response.CodeConflict, "coupon template state not allowed", nil)
		default:
			respondError(c, response.CodeInternal, "coupon usage record failed", err)
		}
		return
	}
	response.Success(c, usage)
}

// RollbackCouponUsage 回滚一次核销
func (h *Handler) RollbackCouponUsage(c *gin.Context) {
	usageID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || usageID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	usage, err := h.UsageService.MarkRollback(uint(usageID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsageNotFound):
			respondError(c, response.CodeNotFound, "coupon usage not found", nil)
		case errors.Is(err, service.ErrUsageState):
			respondError(c, response.CodeConflict, "coupon usage state not allowed", nil)
		default:
			respondError(c, response.CodeInternal, "coupon usage rollback failed", err)
		}
		return
	}
	response.Success(c, usage)
}

// ExportTemplateUsages 异步导出模板下全部核销记录
func (h *Handler) ExportTemplateUsages(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	token, err := h.UsageService.ExportByTemplate(uint(templateID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			respondError(c, response.CodeNotFound, "coupon template not found", nil)
		case errors.Is(err, service.ErrExportInvalid):
			respondError(c, response.CodeBadRequest, "export params invalid", nil)
		default:
			respondError(c, response.CodeInternal, "export enqueue failed", err)
		}
		return
	}
	response.Success(c, gin.H{
		"file_token": token,
	})
}
