package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTest(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CouponTemplate{},
		&models.CouponCode{},
		&models.CouponUsage{},
		&models.Plan{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("migrate test database failed: %v", err)
	}
	return db
}

func createTemplateRow(t *testing.T, db *gorm.DB, status string, endTime time.Time) *models.CouponTemplate {
	t.Helper()

	discount, ok := models.NewPercentageDiscount(2500)
	if !ok {
		t.Fatalf("build discount failed")
	}
	template := &models.CouponTemplate{
		Name:          "Repo Test " + status,
		CodePrefix:    "REPO",
		Status:        status,
		Discount:      discount,
		BillingType:   constants.BillingTypeOneTime,
		StartTime:     time.Now().Add(-time.Hour),
		EndTime:       endTime,
		PlanApplyType: constants.PlanApplyTypeAll,
		Quantity:      10,
	}
	if err := db.Create(template).Error; err != nil {
		t.Fatalf("create template row failed: %v", err)
	}
	return template
}

func TestUpdateStatusCASMismatchHasNoSideEffects(t *testing.T) {
	db := setupRepositoryTest(t, "repo_cas")
	repo := NewCouponTemplateRepository(db)
	template := createTemplateRow(t, db, constants.TemplateStatusEditing, time.Now().Add(time.Hour))

	// 前置状态不含 editing，CAS 必须失败
	ok, err := repo.UpdateStatusCAS(template.ID, []string{constants.TemplateStatusActive}, constants.TemplateStatusInactive, time.Now())
	if err != nil {
		t.Fatalf("cas failed: %v", err)
	}
	if ok {
		t.Fatalf("expected cas miss")
	}
	reloaded, err := repo.GetByID(template.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != constants.TemplateStatusEditing {
		t.Fatalf("expected status unchanged, got %s", reloaded.Status)
	}

	// 匹配时切换成功
	ok, err = repo.UpdateStatusCAS(template.ID, []string{constants.TemplateStatusEditing, constants.TemplateStatusInactive}, constants.TemplateStatusActive, time.Now())
	if err != nil {
		t.Fatalf("cas failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected cas hit")
	}
	reloaded, err = repo.GetByID(template.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != constants.TemplateStatusActive {
		t.Fatalf("expected active status, got %s", reloaded.Status)
	}
}

func TestCreateIgnoreConflictOnDuplicateCode(t *testing.T) {
	db := setupRepositoryTest(t, "repo_conflict")
	repo := NewCouponCodeRepository(db)
	template := createTemplateRow(t, db, constants.TemplateStatusActive, time.Now().Add(time.Hour))

	first := &models.CouponCode{TemplateID: template.ID, FullCode: "REPOAB12"}
	ok, err := repo.CreateIgnoreConflict(first)
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first insert to succeed")
	}

	// 撞唯一索引时返回 false 而不是错误
	duplicate := &models.CouponCode{TemplateID: template.ID, FullCode: "REPOAB12"}
	ok, err = repo.CreateIgnoreConflict(duplicate)
	if err != nil {
		t.Fatalf("duplicate insert errored: %v", err)
	}
	if ok {
		t.Fatalf("expected duplicate insert to be ignored")
	}

	var count int64
	if err := db.Model(&models.CouponCode{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single row, got %d", count)
	}
}

func TestTemplateListDerivedStatusFilters(t *testing.T) {
	db := setupRepositoryTest(t, "repo_list")
	repo := NewCouponTemplateRepository(db)

	createTemplateRow(t, db, constants.TemplateStatusActive, time.Now().Add(time.Hour))
	expired := createTemplateRow(t, db, constants.TemplateStatusActive, time.Now().Add(-time.Hour))
	createTemplateRow(t, db, constants.TemplateStatusArchived, time.Now().Add(-time.Hour))

	// expired 是派生状态：未归档且有效期已过
	rows, total, err := repo.List(TemplateListFilter{Status: constants.TemplateStatusExpired, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list expired failed: %v", err)
	}
	if total != 1 || rows[0].ID != expired.ID {
		t.Fatalf("expected only expired template, got total=%d", total)
	}

	// active 过滤排除已过期的
	_, total, err = repo.List(TemplateListFilter{Status: constants.TemplateStatusActive, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one live active template, got %d", total)
	}
}

func TestSettingUpsertRoundTrip(t *testing.T) {
	db := setupRepositoryTest(t, "repo_setting")
	repo := NewSettingRepository(db)

	if _, err := repo.Upsert(constants.SettingKeyMultiCurrency, map[string]interface{}{
		constants.SettingFieldDefaultCurrency: "USD",
	}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if _, err := repo.Upsert(constants.SettingKeyMultiCurrency, map[string]interface{}{
		constants.SettingFieldDefaultCurrency: "EUR",
	}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	setting, err := repo.GetByKey(constants.SettingKeyMultiCurrency)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if setting == nil {
		t.Fatalf("expected setting row")
	}
	if value, _ := setting.ValueJSON[constants.SettingFieldDefaultCurrency].(string); value != "EUR" {
		t.Fatalf("expected updated value EUR, got %v", setting.ValueJSON)
	}

	var count int64
	if err := db.Model(&models.Setting{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single setting row, got %d", count)
	}
}
