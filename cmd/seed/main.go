package main

import (
	"time"

	"github.com/promo-next/internal/config"
	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/logger"
	"github.com/promo-next/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 套餐目录（由计费系统同步，这里预置演示数据）
	plans := []models.Plan{
		{
			Name:        "Starter Monthly",
			Status:      constants.PlanStatusActive,
			BillingType: constants.BillingTypeRecurring,
			Currency:    "USD",
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(9.90)),
		},
		{
			Name:        "Pro Monthly",
			Status:      constants.PlanStatusActive,
			BillingType: constants.BillingTypeRecurring,
			Currency:    "USD",
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(29.90)),
		},
		{
			Name:        "Lifetime License",
			Status:      constants.PlanStatusActive,
			BillingType: constants.BillingTypeOneTime,
			Currency:    "USD",
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(199.00)),
		},
	}
	for _, plan := range plans {
		var existing models.Plan
		if err := models.DB.Where("name = ?", plan.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&plan).Error; err != nil {
				stdLog.Printf("Failed to create plan %s: %v", plan.Name, err)
			} else {
				stdLog.Printf("Created plan: %s", plan.Name)
			}
		} else {
			stdLog.Printf("Plan already exists: %s", plan.Name)
		}
	}

	// 多币种规则默认配置
	var existingSetting models.Setting
	if err := models.DB.Where("key = ?", constants.SettingKeyMultiCurrency).First(&existingSetting).Error; err != nil {
		setting := models.Setting{
			Key: constants.SettingKeyMultiCurrency,
			ValueJSON: models.JSON(map[string]interface{}{
				constants.SettingFieldDefaultCurrency: constants.DefaultCurrency,
				constants.SettingFieldCurrencyItems: []interface{}{
					map[string]interface{}{"currency": "EUR", "mode": "manual", "rate": "0.92"},
					map[string]interface{}{"currency": "JPY", "mode": "auto"},
				},
			}),
		}
		if err := models.DB.Create(&setting).Error; err != nil {
			stdLog.Printf("Failed to create multi currency setting: %v", err)
		} else {
			stdLog.Printf("Created multi currency setting")
		}
	} else {
		stdLog.Printf("Multi currency setting already exists")
	}

	// 演示券模板
	var existingTemplate models.CouponTemplate
	if err := models.DB.Where("code_prefix = ?", "SPRING25").First(&existingTemplate).Error; err != nil {
		now := time.Now()
		discount, _ := models.NewPercentageDiscount(2500)
		template := models.CouponTemplate{
			Name:          "Spring Sale 25% Off",
			CodePrefix:    "SPRING25",
			Status:        constants.TemplateStatusEditing,
			Discount:      discount,
			BillingType:   constants.BillingTypeRecurring,
			CycleLimit:    3,
			StartTime:     now,
			EndTime:       now.AddDate(0, 3, 0),
			PlanApplyType: constants.PlanApplyTypeAll,
			Quantity:      100,
		}
		if err := models.DB.Create(&template).Error; err != nil {
			stdLog.Printf("Failed to create demo template: %v", err)
		} else {
			stdLog.Printf("Created demo template: %s", template.Name)
		}
	} else {
		stdLog.Printf("Demo template already exists")
	}

	stdLog.Printf("Seed finished")
}
