package provider

import (
	"github.com/tianyuan-next/internal/authz"
	"github.com/tianyuan-next/internal/cache"
	"github.com/tianyuan-next/internal/captcha"
	"github.com/tianyuan-next/internal/config"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/queue"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo                repository.AdminRepository
	AgentUserRepo            repository.AgentUserRepository
	RegularUserRepo          repository.RegularUserRepository
	OrderRepo                repository.OrderRepository
	QueryConfigRepo          repository.QueryConfigRepository
	ApiConfigRepo            repository.ApiConfigRepository
	QueryResultRepo          repository.QueryResultRepository
	AuthorizationLetterRepo  repository.AuthorizationLetterRepository
	ExternalApiConfigRepo    repository.ExternalApiConfigRepository
	ClickCaptchaRepo         repository.ClickCaptchaRepository
	SmsVerificationCodeRepo  repository.SmsVerificationCodeRepository
	CommissionWithdrawalRepo repository.CommissionWithdrawalRepository
	AuthzAuditLogRepo        repository.AuthzAuditLogRepository
	DashboardRepo            repository.DashboardRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	AdminCaptchaService *service.AdminCaptchaService
	ClickCaptchaService *service.ClickCaptchaService
	SmsService          *service.SmsService
	VerificationService *service.VerificationService
	OrderService        *service.OrderService
	PaymentService      *service.PaymentService
	CommissionService   *service.CommissionService
	FulfillmentService  *service.FulfillmentService
	ResultService       *service.ResultService
	DashboardService    *service.DashboardService
	AuthzAuditService   *service.AuthzAuditService
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
	c.AdminRepo = repository.NewAdminRepository(db)
	c.AgentUserRepo = repository.NewAgentUserRepository(db)
	c.RegularUserRepo = repository.NewRegularUserRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.QueryConfigRepo = repository.NewQueryConfigRepository(db)
	c.ApiConfigRepo = repository.NewApiConfigRepository(db)
	c.QueryResultRepo = repository.NewQueryResultRepository(db)
	c.AuthorizationLetterRepo = repository.NewAuthorizationLetterRepository(db)
	c.ExternalApiConfigRepo = repository.NewExternalApiConfigRepository(db)
	c.ClickCaptchaRepo = repository.NewClickCaptchaRepository(db)
	c.SmsVerificationCodeRepo = repository.NewSmsVerificationCodeRepository(db)
	c.CommissionWithdrawalRepo = repository.NewCommissionWithdrawalRepository(db)
	c.AuthzAuditLogRepo = repository.NewAuthzAuditLogRepository(db)
	c.DashboardRepo = repository.NewDashboardRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AdminCaptchaService = service.NewAdminCaptchaService()
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo, c.AgentUserRepo, c.AdminCaptchaService)

	renderer, err := captcha.NewRenderer(c.Config.Captcha.FontPath)
	if err != nil {
		logger.Errorw("provider_init_captcha_renderer_failed",
			"error", err,
			"font_path", c.Config.Captcha.FontPath,
		)
		panic(err)
	}
	c.ClickCaptchaService = service.NewClickCaptchaService(c.ClickCaptchaRepo, renderer, c.Config.Captcha.EncryptionKey)
	if c.Config.Captcha.ChallengeText != "" {
		c.ClickCaptchaService.SetChallengeText(c.Config.Captcha.ChallengeText)
	}

	c.SmsService = service.NewSmsService(c.SmsVerificationCodeRepo, c.ExternalApiConfigRepo)
	c.VerificationService = service.NewVerificationService(c.ExternalApiConfigRepo)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.QueryConfigRepo, c.AgentUserRepo, c.VerificationService, c.SmsService)
	c.CommissionService = service.NewCommissionService(c.AgentUserRepo, c.CommissionWithdrawalRepo)
	c.FulfillmentService = service.NewFulfillmentService(
		c.OrderRepo,
		c.QueryResultRepo,
		c.QueryConfigRepo,
		c.ApiConfigRepo,
		c.AuthorizationLetterRepo,
		c.ExternalApiConfigRepo,
		c.Config.Upstream.ResultEncryptionKey,
	)
	if c.Config.Upstream.CompanyName != "" {
		c.FulfillmentService.SetCompanyName(c.Config.Upstream.CompanyName)
	}
	c.PaymentService = service.NewPaymentService(c.OrderRepo, c.QueryResultRepo, c.ExternalApiConfigRepo, c.CommissionService, c.FulfillmentService, c.QueueClient)
	c.ResultService = service.NewResultService(c.OrderRepo, c.QueryResultRepo, c.AuthorizationLetterRepo, c.Config.Upstream.ResultEncryptionKey)
	c.DashboardService = service.NewDashboardService(c.DashboardRepo)
	c.AuthzAuditService = service.NewAuthzAuditService(c.AuthzAuditLogRepo)
}
