package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/promo-next/internal/http/response"
	"github.com/promo-next/internal/repository"
	"github.com/promo-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetTemplateCodes 查询模板下券码列表
func (h *Handler) GetTemplateCodes(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

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

	codes, total, err := h.CodeService.List(repository.CodeListFilter{
		Page:        page,
		PageSize:    pageSize,
		TemplateID:  uint(templateID),
		Code:        c.Query("code"),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "coupon code fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, codes, pagination)
}

// ExportTemplateCodes 异步导出模板下全部券码
func (h *Handler) ExportTemplateCodes(c *gin.Context) {
	templateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || templateID == 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	token, err := h.CodeService.ExportByTemplate(uint(templateID))
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

func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
