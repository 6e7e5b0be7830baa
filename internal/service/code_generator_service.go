package service

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"

	"gorm.io/gorm"
)

// CodeGeneratorService 券码批量生成服务
type CodeGeneratorService struct {
	templateRepo repository.CouponTemplateRepository
	codeRepo     repository.CouponCodeRepository
}

// NewCodeGeneratorService 创建券码生成服务
func NewCodeGeneratorService(templateRepo repository.CouponTemplateRepository, codeRepo repository.CouponCodeRepository) *CodeGeneratorService {
	return &CodeGeneratorService{
		templateRepo: templateRepo,
		codeRepo:     codeRepo,
	}
}

// GenerateResult 批量生成结果。
// Generated < Requested 表示命中重试预算后的部分成功，
// 已写入的券码与计数保持一致，不回滚。
type GenerateResult struct {
	Requested  int                 `json:"requested"`
	Generated  int                 `json:"generated"`
	Partial    bool                `json:"partial"`
	CodeLength int                 `json:"code_length"`
	Codes      []models.CouponCode `json:"codes"`
}

// Generate 在模板配额内批量生成券码。
// 配额检查与写入在持模板行锁的事务内完成：要么整批通过配额检查，
// 要么一个都不生成。券码全局唯一由 full_code 唯一索引兜底，
// 冲突走重试；单码重试预算耗尽时接受部分成功。
func (s *CodeGeneratorService) Generate(templateID uint, quantity, codeLength int) (*GenerateResult, error) {
	if s == nil || s.templateRepo == nil || s.codeRepo == nil {
		return nil, ErrGenerateFailed
	}
	if templateID == 0 {
		return nil, ErrTemplateNotFound
	}
	if quantity < 1 || quantity > constants.MaxGenerateQuantity {
		return nil, ErrGenerateInvalid
	}

	var result *GenerateResult
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		templateRepo := s.templateRepo.WithTx(tx)
		codeRepo := s.codeRepo.WithTx(tx)

		template, err := templateRepo.GetByIDForUpdate(templateID)
		if err != nil {
			return ErrTemplateFetchFailed
		}
		if template == nil {
			return ErrTemplateNotFound
		}
		now := time.Now()
		if template.Status != constants.TemplateStatusActive || !template.EndTime.After(now) {
			return ErrTemplateState
		}
		if codeLength < template.MinCodeLength() || codeLength > constants.MaxCodeLength {
			return ErrGenerateInvalid
		}
		// 全有或全无的配额检查
		if template.ChildCodeCount+quantity > template.Quantity {
			return ErrQuotaExceeded
		}

		suffixLength := codeLength - len(template.CodePrefix)
		codes := make([]models.CouponCode, 0, quantity)
		for i := 0; i < quantity; i++ {
			code, err := s.generateOne(codeRepo, template, suffixLength, now)
			if err != nil {
				return err
			}
			if code == nil {
				// 单码重试预算耗尽，保留已写入部分
				break
			}
			codes = append(codes, *code)
		}

		if len(codes) > 0 {
			if err := templateRepo.IncrementCounts(templateID, len(codes), 0, now); err != nil {
				return ErrGenerateFailed
			}
		}

		result = &GenerateResult{
			Requested:  quantity,
			Generated:  len(codes),
			Partial:    len(codes) < quantity,
			CodeLength: codeLength,
			Codes:      codes,
		}
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		return nil, ErrGenerateFailed
	}
	return result, nil
}

// generateOne 生成并写入单个券码。冲突时换随机后缀重试，
// 预算耗尽返回 (nil, nil) 交由调用方按部分成功处理。
func (s *CodeGeneratorService) generateOne(codeRepo repository.CouponCodeRepository, template *models.CouponTemplate, suffixLength int, now time.Time) (*models.CouponCode, error) {
	for attempt := 0; attempt < constants.CodeRetryBudget; attempt++ {
		suffix, err := randomSuffix(suffixLength)
		if err != nil {
			return nil, ErrGenerateFailed
		}
		code := &models.CouponCode{
			TemplateID: template.ID,
			FullCode:   template.CodePrefix + suffix,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		inserted, err := codeRepo.CreateIgnoreConflict(code)
		if err != nil {
			return nil, ErrGenerateFailed
		}
		if inserted {
			return code, nil
		}
	}
	return nil, nil
}

// randomSuffix 从券码字符表取密码学随机字符
func randomSuffix(length int) (string, error) {
	alphabet := constants.CodeAlphabet
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
