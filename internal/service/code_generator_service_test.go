package service

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"

	"gorm.io/gorm"
)

func newGeneratorForTest(db *gorm.DB) (*CouponTemplateService, *CodeGeneratorService) {
	templateRepo := repository.NewCouponTemplateRepository(db)
	return NewCouponTemplateService(templateRepo, repository.NewPlanRepository(db)),
		NewCodeGeneratorService(templateRepo, repository.NewCouponCodeRepository(db))
}

func createActiveTemplate(t *testing.T, svc *CouponTemplateService, quantity int) *models.CouponTemplate {
	t.Helper()

	input := validTemplateInput()
	input.Quantity = quantity
	template, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}
	activated, err := svc.Activate(template.ID)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	return activated
}

func TestGenerateCodesWithinQuota(t *testing.T) {
	db := setupCouponTest(t, "generate_basic")
	templateSvc, genSvc := newGeneratorForTest(db)
	template := createActiveTemplate(t, templateSvc, 10)

	// SPRING25 前缀长 8，最小码长 10
	if _, err := genSvc.Generate(template.ID, 5, 9); !errors.Is(err, ErrGenerateInvalid) {
		t.Fatalf("expected ErrGenerateInvalid for code length below minimum, got %v", err)
	}

	result, err := genSvc.Generate(template.ID, 5, 10)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Generated != 5 || result.Partial {
		t.Fatalf("expected 5 generated without partial, got %+v", result)
	}
	for _, code := range result.Codes {
		if !strings.HasPrefix(code.FullCode, "SPRING25") {
			t.Fatalf("expected prefix SPRING25, got %s", code.FullCode)
		}
		if len(code.FullCode) != 10 {
			t.Fatalf("expected code length 10, got %d (%s)", len(code.FullCode), code.FullCode)
		}
		for _, r := range code.FullCode[len("SPRING25"):] {
			if !strings.ContainsRune(constants.CodeAlphabet, r) {
				t.Fatalf("unexpected suffix character %q in %s", r, code.FullCode)
			}
		}
	}

	current, err := templateSvc.Get(template.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.ChildCodeCount != 5 {
		t.Fatalf("expected child count 5, got %d", current.ChildCodeCount)
	}
	if current.RemainingQuota() != 5 {
		t.Fatalf("expected remaining quota 5, got %d", current.RemainingQuota())
	}
}

func TestGenerateQuotaAllOrNothing(t *testing.T) {
	db := setupCouponTest(t, "generate_quota")
	templateSvc, genSvc := newGeneratorForTest(db)
	template := createActiveTemplate(t, templateSvc, 10)

	if _, err := genSvc.Generate(template.ID, 8, 12); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	// 剩余 2，申请 3 必须整批拒绝
	if _, err := genSvc.Generate(template.ID, 3, 12); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	current, err := templateSvc.Get(template.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.ChildCodeCount != 8 {
		t.Fatalf("expected child count unchanged at 8, got %d", current.ChildCodeCount)
	}
	var codeCount int64
	if err := db.Model(&models.CouponCode{}).Where("template_id = ?", template.ID).Count(&codeCount).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	if codeCount != 8 {
		t.Fatalf("expected 8 persisted codes, got %d", codeCount)
	}

	// 刚好填满剩余配额
	result, err := genSvc.Generate(template.ID, 2, 12)
	if err != nil {
		t.Fatalf("fill remaining quota failed: %v", err)
	}
	if result.Generated != 2 {
		t.Fatalf("expected 2 generated, got %d", result.Generated)
	}

	// 配额耗尽
	if _, err := genSvc.Generate(template.ID, 1, 12); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded when full, got %v", err)
	}
}

func TestGenerateRequiresActiveTemplate(t *testing.T) {
	db := setupCouponTest(t, "generate_state")
	templateSvc, genSvc := newGeneratorForTest(db)

	template, err := templateSvc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}

	// editing 不可生成
	if _, err := genSvc.Generate(template.ID, 1, 12); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState for editing template, got %v", err)
	}

	if _, err := templateSvc.Activate(template.ID); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := genSvc.Generate(template.ID, 1, 12); err != nil {
		t.Fatalf("generate on active failed: %v", err)
	}

	// 过期后不可生成
	if err := db.Model(&models.CouponTemplate{}).Where("id = ?", template.ID).
		Update("end_time", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("force expire failed: %v", err)
	}
	if _, err := genSvc.Generate(template.ID, 1, 12); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState for expired template, got %v", err)
	}
}

func TestGenerateParamValidation(t *testing.T) {
	db := setupCouponTest(t, "generate_params")
	templateSvc, genSvc := newGeneratorForTest(db)
	template := createActiveTemplate(t, templateSvc, 10)

	if _, err := genSvc.Generate(template.ID, 0, 12); !errors.Is(err, ErrGenerateInvalid) {
		t.Fatalf("expected ErrGenerateInvalid for zero quantity, got %v", err)
	}
	if _, err := genSvc.Generate(template.ID, constants.MaxGenerateQuantity+1, 12); !errors.Is(err, ErrGenerateInvalid) {
		t.Fatalf("expected ErrGenerateInvalid for oversized batch, got %v", err)
	}
	if _, err := genSvc.Generate(template.ID, 1, constants.MaxCodeLength+1); !errors.Is(err, ErrGenerateInvalid) {
		t.Fatalf("expected ErrGenerateInvalid for oversized code length, got %v", err)
	}
	if _, err := genSvc.Generate(0, 1, 12); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound for zero template id, got %v", err)
	}
	if _, err := genSvc.Generate(9999, 1, 12); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound for missing template, got %v", err)
	}
}

func TestGenerateGlobalUniquenessAcrossTemplates(t *testing.T) {
	db := setupCouponTest(t, "generate_unique")
	templateSvc, genSvc := newGeneratorForTest(db)
	first := createActiveTemplate(t, templateSvc, 100)

	input := validTemplateInput()
	input.Name = "Spring Sale Second"
	second, err := templateSvc.Create(input)
	if err != nil {
		t.Fatalf("create second template failed: %v", err)
	}
	if _, err := templateSvc.Activate(second.ID); err != nil {
		t.Fatalf("activate second failed: %v", err)
	}

	// 同前缀两个模板共享全局券码命名空间
	if _, err := genSvc.Generate(first.ID, 30, 11); err != nil {
		t.Fatalf("generate first failed: %v", err)
	}
	if _, err := genSvc.Generate(second.ID, 30, 11); err != nil {
		t.Fatalf("generate second failed: %v", err)
	}

	var total int64
	if err := db.Model(&models.CouponCode{}).Count(&total).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	var distinct int64
	if err := db.Model(&models.CouponCode{}).Distinct("full_code").Count(&distinct).Error; err != nil {
		t.Fatalf("count distinct codes failed: %v", err)
	}
	if total != distinct {
		t.Fatalf("expected all codes unique, total=%d distinct=%d", total, distinct)
	}
}

func TestGenerateConcurrentBatchesWithinQuota(t *testing.T) {
	db := setupCouponTest(t, "generate_concurrent")
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 单连接让并发事务在连接池上排队，避免 sqlite 写冲突
	sqlDB.SetMaxOpenConns(1)

	templateSvc, genSvc := newGeneratorForTest(db)
	template := createActiveTemplate(t, templateSvc, 100)

	const workers = 5
	const perWorker = 20

	var wg sync.WaitGroup
	results := make(chan *GenerateResult, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := genSvc.Generate(template.ID, perWorker, 12)
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent generate failed: %v", err)
	}
	generated := 0
	for result := range results {
		if result.Partial {
			t.Fatalf("unexpected partial result: %+v", result)
		}
		generated += result.Generated
	}
	if generated != workers*perWorker {
		t.Fatalf("expected %d codes generated, got %d", workers*perWorker, generated)
	}

	// 无重复且计数与落库行数一致
	var total int64
	if err := db.Model(&models.CouponCode{}).Where("template_id = ?", template.ID).Count(&total).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	var distinct int64
	if err := db.Model(&models.CouponCode{}).Where("template_id = ?", template.ID).Distinct("full_code").Count(&distinct).Error; err != nil {
		t.Fatalf("count distinct codes failed: %v", err)
	}
	if total != int64(workers*perWorker) || distinct != total {
		t.Fatalf("expected %d unique codes, total=%d distinct=%d", workers*perWorker, total, distinct)
	}
	current, err := templateSvc.Get(template.ID)
	if err != nil {
		t.Fatalf("get template failed: %v", err)
	}
	if current.ChildCodeCount != workers*perWorker {
		t.Fatalf("expected child count %d, got %d", workers*perWorker, current.ChildCodeCount)
	}
	if _, err := genSvc.Generate(template.ID, 1, 12); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded once quota filled, got %v", err)
	}
}

func TestGeneratePartialSuccessOnCollisionExhaustion(t *testing.T) {
	db := setupCouponTest(t, "generate_partial")
	templateSvc, genSvc := newGeneratorForTest(db)
	template := createActiveTemplate(t, templateSvc, 100)

	// 最小码长时后缀只有 2 位：36^2 个组合。预先占满整个命名空间，
	// 任何生成尝试都必然撞唯一索引并耗尽重试预算。
	now := time.Now()
	for i := 0; i < len(constants.CodeAlphabet); i++ {
		for j := 0; j < len(constants.CodeAlphabet); j++ {
			code := models.CouponCode{
				TemplateID: template.ID,
				FullCode:   template.CodePrefix + string(constants.CodeAlphabet[i]) + string(constants.CodeAlphabet[j]),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := db.Create(&code).Error; err != nil {
				t.Fatalf("prefill namespace failed: %v", err)
			}
		}
	}

	result, err := genSvc.Generate(template.ID, 5, 10)
	if err != nil {
		t.Fatalf("generate should soft-fail, got error: %v", err)
	}
	if !result.Partial || result.Generated != 0 {
		t.Fatalf("expected empty partial result, got %+v", result)
	}
}
