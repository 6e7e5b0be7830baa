package admin

import (
	"strconv"

	"github.com/promo-next/internal/http/response"
	"github.com/promo-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetPlans 查询套餐列表（模板套餐范围选择用）
func (h *Handler) GetPlans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	onlyActive := false
	if raw := c.Query("only_active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
		onlyActive = parsed
	}

	plans, total, err := h.PlanService.List(repository.PlanListFilter{
		Page:       page,
		PageSize:   pageSize,
		OnlyActive: onlyActive,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "plan fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, plans, pagination)
}
