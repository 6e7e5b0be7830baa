package service

import (
	"strings"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/queue"
	"github.com/promo-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponUsageService 核销记录服务。
// Record/MarkRollback 是计费引擎的写入口，其余为后台查询与导出。
type CouponUsageService struct {
	usageRepo    repository.CouponUsageRepository
	codeRepo     repository.CouponCodeRepository
	templateRepo repository.CouponTemplateRepository
	queueClient  *queue.Client
}

// NewCouponUsageService 创建核销记录服务
func NewCouponUsageService(usageRepo repository.CouponUsageRepository, codeRepo repository.CouponCodeRepository, templateRepo repository.CouponTemplateRepository, queueClient *queue.Client) *CouponUsageService {
	return &CouponUsageService{
		usageRepo:    usageRepo,
		codeRepo:     codeRepo,
		templateRepo: templateRepo,
		queueClient:  queueClient,
	}
}

// UsageInput 核销写入输入
type UsageInput struct {
	Code           string
	PlanID         uint
	ApplyAmount    models.Money
	Currency       string
	Email          string
	SubscriptionID string
	InvoiceID      string
	PaymentID      string
	Recurring      bool
}

// Get 根据 ID 查询核销记录
func (s *CouponUsageService) Get(id uint) (*models.CouponUsage, error) {
	if s == nil || s.usageRepo == nil || id == 0 {
		return nil, ErrUsageNotFound
	}
	usage, err := s.usageRepo.GetByID(id)
	if err != nil {
		return nil, ErrUsageFetchFailed
	}
	if usage == nil {
		return nil, ErrUsageNotFound
	}
	return usage, nil
}

// List 查询核销记录列表
func (s *CouponUsageService) List(filter repository.UsageListFilter) ([]models.CouponUsage, int64, error) {
	if s == nil || s.usageRepo == nil {
		return nil, 0, ErrUsageFetchFailed
	}
	usages, total, err := s.usageRepo.List(filter)
	if err != nil {
		return nil, 0, ErrUsageFetchFailed
	}
	return usages, total, nil
}

// Record 记录一次核销。
// 持券码行锁与模板行锁：标记券码已核销、累加模板已核销计数、
// 写入 finished 核销记录，三者同事务提交。
func (s *CouponUsageService) Record(input UsageInput) (*models.CouponUsage, error) {
	if s == nil || s.usageRepo == nil || s.codeRepo == nil || s.templateRepo == nil {
		return nil, ErrUsageSaveFailed
	}
	fullCode := strings.TrimSpace(strings.ToUpper(input.Code))
	if fullCode == "" {
		return nil, ErrUsageInvalid
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" || input.ApplyAmount.IsNegative() {
		return nil, ErrUsageInvalid
	}

	var result *models.CouponUsage
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		codeRepo := s.codeRepo.WithTx(tx)
		templateRepo := s.templateRepo.WithTx(tx)
		usageRepo := s.usageRepo.WithTx(tx)

		code, err := codeRepo.GetByFullCodeForUpdate(fullCode)
		if err != nil {
			return ErrCodeFetchFailed
		}
		if code == nil {
			return ErrCodeNotFound
		}
		if code.IsRedeemed && !input.Recurring {
			return ErrUsageState
		}

		template, err := templateRepo.GetByIDForUpdate(code.TemplateID)
		if err != nil {
			return ErrTemplateFetchFailed
		}
		if template == nil {
			return ErrTemplateNotFound
		}
		now := time.Now()
		if template.Status != constants.TemplateStatusActive || !template.EndTime.After(now) || template.StartTime.After(now) {
			return ErrTemplateState
		}

		firstRedemption := !code.IsRedeemed
		if firstRedemption {
			code.IsRedeemed = true
			code.RedeemEmail = strings.TrimSpace(input.Email)
			code.SubscriptionID = strings.TrimSpace(input.SubscriptionID)
			code.InvoiceID = strings.TrimSpace(input.InvoiceID)
			code.PaymentID = strings.TrimSpace(input.PaymentID)
			code.RedeemedAt = &now
			code.UpdatedAt = now
			if err := codeRepo.Update(code); err != nil {
				return ErrUsageSaveFailed
			}
			if err := templateRepo.IncrementCounts(template.ID, 0, 1, now); err != nil {
				return ErrUsageSaveFailed
			}
		}

		usage := &models.CouponUsage{
			Code:           fullCode,
			TemplateID:     template.ID,
			PlanID:         input.PlanID,
			ApplyAmount:    input.ApplyAmount,
			Currency:       currency,
			Email:          strings.TrimSpace(input.Email),
			SubscriptionID: strings.TrimSpace(input.SubscriptionID),
			InvoiceID:      strings.TrimSpace(input.InvoiceID),
			PaymentID:      strings.TrimSpace(input.PaymentID),
			Recurring:      input.Recurring,
			Status:         constants.UsageStatusFinished,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := usageRepo.Create(usage); err != nil {
			return ErrUsageSaveFailed
		}
		result = usage
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		return nil, ErrUsageSaveFailed
	}
	return result, nil
}

// MarkRollback 回滚一次核销（退款等账务回退时调用）。
// 仅 finished 记录可回滚；首次核销对应的记录回滚时同时
// 清除券码核销标记并回退模板已核销计数。
func (s *CouponUsageService) MarkRollback(id uint) (*models.CouponUsage, error) {
	if s == nil || s.usageRepo == nil || s.codeRepo == nil || s.templateRepo == nil || id == 0 {
		return nil, ErrUsageInvalid
	}

	var result *models.CouponUsage
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		usageRepo := s.usageRepo.WithTx(tx)
		codeRepo := s.codeRepo.WithTx(tx)
		templateRepo := s.templateRepo.WithTx(tx)

		usage, err := usageRepo.GetByID(id)
		if err != nil {
			return ErrUsageFetchFailed
		}
		if usage == nil {
			return ErrUsageNotFound
		}
		if usage.Status != constants.UsageStatusFinished {
			return ErrUsageState
		}

		now := time.Now()
		usage.Status = constants.UsageStatusRollback
		usage.UpdatedAt = now
		if err := usageRepo.Update(usage); err != nil {
			return ErrUsageSaveFailed
		}

		if !usage.Recurring {
			code, err := codeRepo.GetByFullCodeForUpdate(usage.Code)
			if err != nil {
				return ErrCodeFetchFailed
			}
			if code != nil && code.IsRedeemed {
				code.ClearRedemption(now)
				if err := codeRepo.Update(code); err != nil {
					return ErrUsageSaveFailed
				}
				if err := templateRepo.IncrementCounts(usage.TemplateID, 0, -1, now); err != nil {
					return ErrUsageSaveFailed
				}
			}
		}
		result = usage
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		return nil, ErrUsageSaveFailed
	}
	return result, nil
}

// ExportByTemplate 异步导出模板下全部核销记录，返回文件令牌
func (s *CouponUsageService) ExportByTemplate(templateID uint) (string, error) {
	if s == nil || s.usageRepo == nil || s.templateRepo == nil {
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
	if err := s.queueClient.EnqueueUsageExport(queue.UsageExportPayload{
		TemplateID: templateID,
		FileToken:  token,
	}); err != nil {
		return "", ErrExportFailed
	}
	return token, nil
}
