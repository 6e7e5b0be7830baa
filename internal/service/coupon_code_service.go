package service

import (
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/queue"
	"github.com/promo-next/internal/repository"

	"github.com/google/uuid"
)

// CouponCodeService 券码查询与导出服务
type CouponCodeService struct {
	codeRepo     repository.CouponCodeRepository
	templateRepo repository.CouponTemplateRepository
	queueClient  *queue.Client
}

// NewCouponCodeService 创建券码服务
func NewCouponCodeService(codeRepo repository.CouponCodeRepository, templateRepo repository.CouponTemplateRepository, queueClient *queue.Client) *CouponCodeService {
	return &CouponCodeService{
		codeRepo:     codeRepo,
		templateRepo: templateRepo,
		queueClient:  queueClient,
	}
}

// Get 根据 ID 查询券码
func (s *CouponCodeService) Get(id uint) (*models.CouponCode, error) {
	if s == nil || s.codeRepo == nil || id == 0 {
		return nil, ErrCodeNotFound
	}
	code, err := s.codeRepo.GetByID(id)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if code == nil {
		return nil, ErrCodeNotFound
	}
	return code, nil
}

// List 查询券码列表
func (s *CouponCodeService) List(filter repository.CodeListFilter) ([]models.CouponCode, int64, error) {
	if s == nil || s.codeRepo == nil {
		return nil, 0, ErrCodeFetchFailed
	}
	codes, total, err := s.codeRepo.List(filter)
	if err != nil {
		return nil, 0, ErrCodeFetchFailed
	}
	return codes, total, nil
}

// ExportByTemplate 异步导出模板下全部券码，返回文件令牌。
// 导出在 worker 进程执行，令牌用于拼导出文件名。
func (s *CouponCodeService) ExportByTemplate(templateID uint) (string, error) {
	if s == nil || s.codeRepo == nil || s.templateRepo == nil {
		return "", ErrExportFailed
	}
	if templateID == 0 {
		return "", ErrExportInvalid
	}
	template, err := s.templateRepo.GetByID(templateID)
	if err != nil {
		return "", ErrTemplateFetchFailed
	}
	if template == nil {
		return "", ErrTemplateNotFound
	}
	if !s.queueClient.Enabled() {
		return "", ErrExportFailed
	}
	token := uuid.NewString()
	if err := s.queueClient.EnqueueCodeExport(queue.CodeExportPayload{
		TemplateID: templateID,
		FileToken:  token,
	}); err != nil {
		return "", ErrExportFailed
	}
	return token, nil
}
