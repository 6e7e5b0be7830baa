package provider

import (
	"time"

	"github.com/promo-next/internal/cache"
	"github.com/promo-next/internal/config"
	"github.com/promo-next/internal/exchange"
	"github.com/promo-next/internal/logger"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/queue"
	"github.com/promo-next/internal/repository"
	"github.com/promo-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	TemplateRepo repository.CouponTemplateRepository
	CodeRepo     repository.CouponCodeRepository
	UsageRepo    repository.CouponUsageRepository
	PlanRepo     repository.PlanRepository
	SettingRepo  repository.SettingRepository

	// Services
	TemplateService  *service.CouponTemplateService
	GeneratorService *service.CodeGeneratorService
	CodeService      *service.CouponCodeService
	UsageService     *service.CouponUsageService
	CurrencyService  *service.CurrencyService
	PlanService      *service.PlanService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.TemplateRepo = repository.NewCouponTemplateRepository(db)
	c.CodeRepo = repository.NewCouponCodeRepository(db)
	c.UsageRepo = repository.NewCouponUsageRepository(db)
	c.PlanRepo = repository.NewPlanRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	var fetcher service.RateFetcher
	client, err := exchange.NewClient(exchange.Config{
		BaseURL: c.Config.Exchange.BaseURL,
		Timeout: time.Duration(c.Config.Exchange.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Warnw("provider_init_exchange_client_failed", "error", err)
	} else {
		fetcher = client
	}

	c.TemplateService = service.NewCouponTemplateService(c.TemplateRepo, c.PlanRepo)
	c.GeneratorService = service.NewCodeGeneratorService(c.TemplateRepo, c.CodeRepo)
	c.CodeService = service.NewCouponCodeService(c.CodeRepo, c.TemplateRepo, c.QueueClient)
	c.UsageService = service.NewCouponUsageService(c.UsageRepo, c.CodeRepo, c.TemplateRepo, c.QueueClient)
	c.CurrencyService = service.NewCurrencyService(c.SettingRepo, fetcher)
	c.PlanService = service.NewPlanService(c.PlanRepo)
}
