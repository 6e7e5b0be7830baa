package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCouponTest(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.CouponTemplate{}, &models.CouponCode{}, &models.CouponUsage{}, &models.Plan{}, &models.Setting{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return db
}

func newTemplateServiceForTest(db *gorm.DB) *CouponTemplateService {
	return NewCouponTemplateService(
		repository.NewCouponTemplateRepository(db),
		repository.NewPlanRepository(db),
	)
}

func validTemplateInput() TemplateInput {
	now := time.Now()
	return TemplateInput{
		Name:       "Spring Sale 25% Off",
		CodePrefix: "SPRING25",
		Discount: DiscountInput{
			Type:        constants.DiscountTypePercentage,
			BasisPoints: 2500,
		},
		BillingType:   constants.BillingTypeRecurring,
		CycleLimit:    3,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.AddDate(0, 1, 0),
		PlanApplyType: constants.PlanApplyTypeAll,
		Quantity:      100,
	}
}

func createTestPlan(t *testing.T, db *gorm.DB, name, status, billingType, currency string) models.Plan {
	t.Helper()

	plan := models.Plan{
		Name:        name,
		Status:      status,
		BillingType: billingType,
		Currency:    currency,
		Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(9.90)),
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("create plan failed: %v", err)
	}
	return plan
}

func TestCreateTemplateInitialStateEditing(t *testing.T) {
	db := setupCouponTest(t, "template_create")
	svc := newTemplateServiceForTest(db)

	template, err := svc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}
	if template.Status != constants.TemplateStatusEditing {
		t.Fatalf("expected editing status, got %s", template.Status)
	}
	if template.ChildCodeCount != 0 || template.UsedChildCodeCount != 0 {
		t.Fatalf("expected zero counters, got child=%d used=%d", template.ChildCodeCount, template.UsedChildCodeCount)
	}
	if template.MinCodeLength() != len("SPRING25")+2 {
		t.Fatalf("expected min code length %d, got %d", len("SPRING25")+2, template.MinCodeLength())
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	db := setupCouponTest(t, "template_create_invalid")
	svc := newTemplateServiceForTest(db)

	cases := []struct {
		name   string
		mutate func(*TemplateInput)
	}{
		{"empty name", func(in *TemplateInput) { in.Name = "" }},
		{"empty prefix", func(in *TemplateInput) { in.CodePrefix = "" }},
		{"zero basis points", func(in *TemplateInput) { in.Discount.BasisPoints = 0 }},
		{"basis points too large", func(in *TemplateInput) { in.Discount.BasisPoints = 10000 }},
		{"unknown discount type", func(in *TemplateInput) { in.Discount.Type = "bogus" }},
		{"unknown billing type", func(in *TemplateInput) { in.BillingType = "weekly" }},
		{"end before start", func(in *TemplateInput) {
			in.EndTime = in.StartTime.Add(-time.Hour)
		}},
		{"end in the past", func(in *TemplateInput) {
			in.StartTime = time.Now().AddDate(0, 0, -10)
			in.EndTime = time.Now().AddDate(0, 0, -1)
		}},
		{"zero quantity", func(in *TemplateInput) { in.Quantity = 0 }},
		{"quantity over cap", func(in *TemplateInput) { in.Quantity = constants.MaxTemplateQuantity + 1 }},
	}
	for _, tc := range cases {
		input := validTemplateInput()
		tc.mutate(&input)
		if _, err := svc.Create(input); !errors.Is(err, ErrTemplateInvalid) {
			t.Fatalf("%s: expected ErrTemplateInvalid, got %v", tc.name, err)
		}
	}
}

func TestCreateTemplateFixedAmountPlanCurrencyMatch(t *testing.T) {
	db := setupCouponTest(t, "template_fixed_amount")
	svc := newTemplateServiceForTest(db)

	usdPlan := createTestPlan(t, db, "USD Plan", constants.PlanStatusActive, constants.BillingTypeOneTime, "USD")
	eurPlan := createTestPlan(t, db, "EUR Plan", constants.PlanStatusActive, constants.BillingTypeOneTime, "EUR")

	input := validTemplateInput()
	input.Discount = DiscountInput{
		Type:     constants.DiscountTypeFixedAmount,
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(10)),
		Currency: "USD",
	}
	input.BillingType = constants.BillingTypeOneTime
	input.PlanApplyType = constants.PlanApplyTypeSelected
	input.PlanIDs = []uint{usdPlan.ID}

	if _, err := svc.Create(input); err != nil {
		t.Fatalf("expected matching currency accepted, got %v", err)
	}

	input.CodePrefix = "SPRING26"
	input.PlanIDs = []uint{eurPlan.ID}
	if _, err := svc.Create(input); !errors.Is(err, ErrTemplatePlanInvalid) {
		t.Fatalf("expected ErrTemplatePlanInvalid for currency mismatch, got %v", err)
	}
}

func TestCreateTemplatePlanScopeValidation(t *testing.T) {
	db := setupCouponTest(t, "template_plan_scope")
	svc := newTemplateServiceForTest(db)

	active := createTestPlan(t, db, "Active Plan", constants.PlanStatusActive, constants.BillingTypeRecurring, "USD")
	inactive := createTestPlan(t, db, "Inactive Plan", constants.PlanStatusInactive, constants.BillingTypeRecurring, "USD")
	oneTime := createTestPlan(t, db, "One Time Plan", constants.PlanStatusActive, constants.BillingTypeOneTime, "USD")

	input := validTemplateInput()
	input.PlanApplyType = constants.PlanApplyTypeSelected
	input.PlanIDs = nil
	if _, err := svc.Create(input); !errors.Is(err, ErrTemplatePlanInvalid) {
		t.Fatalf("expected ErrTemplatePlanInvalid for empty plan ids, got %v", err)
	}

	input.PlanIDs = []uint{inactive.ID}
	if _, err := svc.Create(input); !errors.Is(err, ErrTemplatePlanInvalid) {
		t.Fatalf("expected ErrTemplatePlanInvalid for inactive plan, got %v", err)
	}

	input.PlanIDs = []uint{oneTime.ID}
	if _, err := svc.Create(input); !errors.Is(err, ErrTemplatePlanInvalid) {
		t.Fatalf("expected ErrTemplatePlanInvalid for billing type mismatch, got %v", err)
	}

	input.PlanIDs = []uint{active.ID}
	template, err := svc.Create(input)
	if err != nil {
		t.Fatalf("expected valid plan scope accepted, got %v", err)
	}
	if got := template.DecodePlanIDs(); len(got) != 1 || got[0] != active.ID {
		t.Fatalf("expected plan ids [%d], got %v", active.ID, got)
	}
}

func TestTemplateLifecycleTransitions(t *testing.T) {
	db := setupCouponTest(t, "template_lifecycle")
	svc := newTemplateServiceForTest(db)

	template, err := svc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}

	// editing 不能停用
	if _, err := svc.Deactivate(template.ID); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState deactivating editing template, got %v", err)
	}

	activated, err := svc.Activate(template.ID)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if activated.Status != constants.TemplateStatusActive {
		t.Fatalf("expected active, got %s", activated.Status)
	}

	// active 不能重复激活
	if _, err := svc.Activate(template.ID); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState re-activating, got %v", err)
	}

	deactivated, err := svc.Deactivate(template.ID)
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if deactivated.Status != constants.TemplateStatusInactive {
		t.Fatalf("expected inactive, got %s", deactivated.Status)
	}

	// inactive 可再次激活
	if _, err := svc.Activate(template.ID); err != nil {
		t.Fatalf("re-activate failed: %v", err)
	}

	archived, err := svc.Archive(template.ID)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if archived.Status != constants.TemplateStatusArchived {
		t.Fatalf("expected archived, got %s", archived.Status)
	}

	// archived 为终态
	if _, err := svc.Activate(template.ID); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState activating archived, got %v", err)
	}
	if _, err := svc.Deactivate(template.ID); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState deactivating archived, got %v", err)
	}
	if _, err := svc.Archive(template.ID); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState re-archiving, got %v", err)
	}
}

func TestEditTemplateLockedFieldsWhenActive(t *testing.T) {
	db := setupCouponTest(t, "template_edit_lock")
	svc := newTemplateServiceForTest(db)

	template, err := svc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}
	if _, err := svc.Activate(template.ID); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	// 激活后折扣锁定
	input := validTemplateInput()
	input.Discount.BasisPoints = 3000
	if _, err := svc.Edit(template.ID, input); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState changing discount, got %v", err)
	}

	// 计费类型锁定
	input = validTemplateInput()
	input.BillingType = constants.BillingTypeOneTime
	if _, err := svc.Edit(template.ID, input); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState changing billing type, got %v", err)
	}

	// 周期数锁定
	input = validTemplateInput()
	input.CycleLimit = 6
	if _, err := svc.Edit(template.ID, input); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState changing cycle limit, got %v", err)
	}

	// 名称与有效期仍可改
	input = validTemplateInput()
	input.Name = "Spring Sale Extended"
	input.EndTime = time.Now().AddDate(0, 2, 0)
	updated, err := svc.Edit(template.ID, input)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if updated.Name != "Spring Sale Extended" {
		t.Fatalf("expected name updated, got %s", updated.Name)
	}
}

func TestEditTemplateRoundTripKeepsFields(t *testing.T) {
	db := setupCouponTest(t, "template_edit_roundtrip")
	svc := newTemplateServiceForTest(db)

	input := validTemplateInput()
	template, err := svc.Create(input)
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}

	// 原样提交应当是恒等操作
	updated, err := svc.Edit(template.ID, input)
	if err != nil {
		t.Fatalf("identity edit failed: %v", err)
	}
	if !updated.Discount.Equal(template.Discount) ||
		updated.BillingType != template.BillingType ||
		updated.CycleLimit != template.CycleLimit ||
		updated.Quantity != template.Quantity ||
		updated.Status != template.Status {
		t.Fatalf("identity edit changed fields: before=%+v after=%+v", template, updated)
	}
}

func TestEditTemplateRejectedForArchived(t *testing.T) {
	db := setupCouponTest(t, "template_edit_archived")
	svc := newTemplateServiceForTest(db)

	template, err := svc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}
	if _, err := svc.Archive(template.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if _, err := svc.Edit(template.ID, validTemplateInput()); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState editing archived template, got %v", err)
	}
}

func TestIncrementQuantity(t *testing.T) {
	db := setupCouponTest(t, "template_quantity")
	svc := newTemplateServiceForTest(db)

	template, err := svc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}

	// editing 不可调额
	if _, err := svc.IncrementQuantity(template.ID, 50); !errors.Is(err, ErrTemplateState) {
		t.Fatalf("expected ErrTemplateState incrementing editing template, got %v", err)
	}

	if _, err := svc.Activate(template.ID); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	updated, err := svc.IncrementQuantity(template.ID, 50)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if updated.Quantity != 150 {
		t.Fatalf("expected quantity 150, got %d", updated.Quantity)
	}

	// 非正增量
	if _, err := svc.IncrementQuantity(template.ID, 0); !errors.Is(err, ErrTemplateInvalid) {
		t.Fatalf("expected ErrTemplateInvalid for zero delta, got %v", err)
	}
	if _, err := svc.IncrementQuantity(template.ID, -10); !errors.Is(err, ErrTemplateInvalid) {
		t.Fatalf("expected ErrTemplateInvalid for negative delta, got %v", err)
	}

	// 超过全局上限
	if _, err := svc.IncrementQuantity(template.ID, constants.MaxTemplateQuantity); !errors.Is(err, ErrTemplateInvalid) {
		t.Fatalf("expected ErrTemplateInvalid exceeding cap, got %v", err)
	}
	current, err := svc.Get(template.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Quantity != 150 {
		t.Fatalf("expected quantity unchanged at 150, got %d", current.Quantity)
	}
}

func TestTemplateDerivedExpiredStatus(t *testing.T) {
	db := setupCouponTest(t, "template_expired")
	svc := newTemplateServiceForTest(db)

	template, err := svc.Create(validTemplateInput())
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}
	if _, err := svc.Activate(template.ID); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	// 有效期压到过去，持久状态保持 active
	past := time.Now().Add(-time.Hour)
	if err := db.Model(&models.CouponTemplate{}).Where("id = ?", template.ID).
		Update("end_time", past).Error; err != nil {
		t.Fatalf("force expire failed: %v", err)
	}

	current, err := svc.Get(template.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != constants.TemplateStatusActive {
		t.Fatalf("expected persisted status active, got %s", current.Status)
	}
	if got := current.DisplayStatus(time.Now()); got != constants.TemplateStatusExpired {
		t.Fatalf("expected display status expired, got %s", got)
	}

	// 过期模板列表按派生状态过滤
	list, total, err := svc.List(repository.TemplateListFilter{Page: 1, PageSize: 10, Status: constants.TemplateStatusExpired})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != template.ID {
		t.Fatalf("expected expired filter to match template, got total=%d list=%v", total, list)
	}

	// active 过滤不应命中已过期模板
	_, total, err = svc.List(repository.TemplateListFilter{Page: 1, PageSize: 10, Status: constants.TemplateStatusActive})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected active filter to exclude expired template, got total=%d", total)
	}

	// 过期模板仍可归档
	if _, err := svc.Archive(template.ID); err != nil {
		t.Fatalf("archive expired template failed: %v", err)
	}
}
