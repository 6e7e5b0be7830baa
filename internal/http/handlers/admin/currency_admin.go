package admin

import (
	"errors"

	"github.com/promo-next/internal/http/response"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetMultiCurrencySetting 读取多币种规则配置
func (h *Handler) GetMultiCurrencySetting(c *gin.Context) {
	rules, err := h.CurrencyService.GetRules()
	if err != nil {
		respondError(c, response.CodeInternal, "multi currency fetch failed", err)
		return
	}
	response.Success(c, rules)
}

// UpdateMultiCurrencyRequest 多币种规则配置请求
type UpdateMultiCurrencyRequest struct {
	DefaultCurrency string                     `json:"default_currency"`
	Items           []service.CurrencyRuleItem `json:"items"`
}

// UpdateMultiCurrencySetting 保存多币种规则配置
func (h *Handler) UpdateMultiCurrencySetting(c *gin.Context) {
	var req UpdateMultiCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	rules, err := h.CurrencyService.SaveRules(service.CurrencyRules{
		DefaultCurrency: req.DefaultCurrency,
		Items:           req.Items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCurrencyRuleInvalid):
			respondError(c, response.CodeBadRequest, "multi currency rule invalid", nil)
		default:
			respondError(c, response.CodeInternal, "multi currency save failed", err)
		}
		return
	}
	response.Success(c, rules)
}

// CurrencyPreviewRequest 多币种换算预览请求
type CurrencyPreviewRequest struct {
	Amount   float64 `json:"amount" binding:"required"`
	Currency string  `json:"currency" binding:"required"`
}

// PreviewCurrency 预览固定金额在各配置币种下的等值金额
func (h *Handler) PreviewCurrency(c *gin.Context) {
	var req CurrencyPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	result, err := h.CurrencyService.Preview(c.Request.Context(),
		models.NewMoneyFromDecimal(decimal.NewFromFloat(req.Amount)),
		req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCurrencyRuleInvalid):
			respondError(c, response.CodeBadRequest, "currency preview params invalid", nil)
		default:
			respondError(c, response.CodeInternal, "currency preview failed", err)
		}
		return
	}
	response.Success(c, result)
}
