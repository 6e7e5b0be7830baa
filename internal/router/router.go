package router

import (
	"fmt"
	"strings"

	"github.com/promo-next/internal/cache"
	"github.com/promo-next/internal/config"
	adminhandlers "github.com/promo-next/internal/http/handlers/admin"
	"github.com/promo-next/internal/logger"
	"github.com/promo-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pn"
	}
	redisClient := cache.Client()
	generateRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:generate", redisPrefix),
		WindowSeconds: cfg.Security.GenerateRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.GenerateRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		admin := apiV1.Group("/admin")
		{
			// 券模板
			admin.POST("/coupon-templates", adminHandler.CreateTemplate)
			admin.GET("/coupon-templates", adminHandler.GetTemplates)
			admin.GET("/coupon-templates/:id", adminHandler.GetTemplate)
			admin.PUT("/coupon-templates/:id", adminHandler.UpdateTemplate)
			admin.POST("/coupon-templates/:id/activate", adminHandler.ActivateTemplate)
			admin.POST("/coupon-templates/:id/deactivate", adminHandler.DeactivateTemplate)
			admin.POST("/coupon-templates/:id/archive", adminHandler.ArchiveTemplate)
			admin.POST("/coupon-templates/:id/quantity-increment", adminHandler.IncrementTemplateQuantity)
			admin.POST("/coupon-templates/:id/generate",
				RateLimitMiddleware(redisClient, generateRule, KeyByIP),
				adminHandler.GenerateCodes)

			// 券码
			admin.GET("/coupon-templates/:id/codes", adminHandler.GetTemplateCodes)
			admin.POST("/coupon-templates/:id/codes/export", adminHandler.ExportTemplateCodes)

			// 核销记录
			admin.GET("/coupon-usages", adminHandler.GetCouponUsages)
			admin.POST("/coupon-usages", adminHandler.RecordCouponUsage)
			admin.POST("/coupon-usages/:id/rollback", adminHandler.RollbackCouponUsage)
			admin.POST("/coupon-templates/:id/usages/export", adminHandler.ExportTemplateUsages)

			// 多币种
			admin.GET("/settings/multi-currency", adminHandler.GetMultiCurrencySetting)
			admin.PUT("/settings/multi-currency", adminHandler.UpdateMultiCurrencySetting)
			admin.POST("/currency/preview", adminHandler.PreviewCurrency)

			// 套餐
			admin.GET("/plans", adminHandler.GetPlans)
		}
	}

	return r
}
