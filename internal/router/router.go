package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tianyuan-next/internal/authz"
	"github.com/tianyuan-next/internal/cache"
	"github.com/tianyuan-next/internal/config"
	"github.com/tianyuan-next/internal/constants"
	adminhandlers "github.com/tianyuan-next/internal/http/handlers/admin"
	agenthandlers "github.com/tianyuan-next/internal/http/handlers/agent"
	publichandlers "github.com/tianyuan-next/internal/http/handlers/public"
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按公开/代理/管理端分组）
	publicHandler := publichandlers.New(c)
	agentHandler := agenthandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	smsRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:sms", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   1,
		Message:       "短信发送过于频繁",
	}
	agentLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:agent_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "登录尝试过于频繁",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "登录尝试过于频繁",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.POST("/captcha/generate", publicHandler.GenerateCaptcha)
			public.POST("/captcha/verify", publicHandler.VerifyCaptcha)
			public.POST("/sms/send", RateLimitMiddleware(redisClient, smsRule, KeyByIPAndJSONField("phone")), publicHandler.SendSmsCode)
			public.POST("/orders", publicHandler.CreateOrder)
			public.GET("/orders/:order_no", publicHandler.GetOrder)
			public.POST("/orders/:order_no/cancel", publicHandler.CancelOrder)
			public.GET("/orders/:order_no/result", publicHandler.GetOrderResult)
			public.POST("/payments", publicHandler.CreatePayment)
			public.GET("/payments/:order_no/status", publicHandler.GetPaymentStatus)
			public.GET("/letters/:token", publicHandler.DownloadAuthorizationLetter)
		}

		// 支付渠道异步通知
		apiV1.POST("/payments/notify/alipay/:owner_type/:owner_id", publicHandler.AlipayCallback)
		apiV1.GET("/payments/notify/alipay/:owner_type/:owner_id", publicHandler.AlipayCallback)
		apiV1.POST("/payments/notify/wechat/:owner_type/:owner_id", publicHandler.WechatCallback)

		// 代理端接口
		agent := apiV1.Group("/agent")
		{
			agent.GET("/captcha/image", agentHandler.GetLoginCaptcha)
			agent.POST("/login", RateLimitMiddleware(redisClient, agentLoginRule, KeyByIPAndJSONField("username")), agentHandler.Login)

			authorized := agent.Use(AgentJWTAuthMiddleware(cfg.JWT.SecretKey, c.AgentUserRepo))
			{
				authorized.PUT("/password", agentHandler.ChangePassword)
				authorized.GET("/dashboard", agentHandler.GetDashboard)
				authorized.GET("/orders", agentHandler.ListOrders)
				authorized.GET("/withdrawals", agentHandler.ListWithdrawals)
				authorized.POST("/withdrawals", agentHandler.ApplyWithdrawal)
			}
		}

		// 管理端接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.GET("/captcha/image", adminHandler.GetLoginCaptcha)
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.Login)

			// 需要鉴权的接口
			authorized := admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				authorized.PUT("/password", adminHandler.ChangePassword)

				// 仪表盘
				authorized.GET("/dashboard", adminHandler.GetDashboard)

				// 订单管理
				authorized.GET("/orders", adminHandler.ListOrders)
				authorized.GET("/orders/:order_no", adminHandler.GetOrder)
				authorized.POST("/orders/:order_no/refund", adminHandler.RefundOrder)
				authorized.POST("/orders/:order_no/requery", adminHandler.RequeryOrder)

				// 提现审核
				authorized.GET("/withdrawals", adminHandler.ListWithdrawals)
				authorized.POST("/withdrawals/:id/review", adminHandler.ReviewWithdrawal)

				// 查询产品配置
				authorized.GET("/query-configs", adminHandler.ListQueryConfigs)
				authorized.POST("/query-configs", adminHandler.CreateQueryConfig)
				authorized.PUT("/query-configs/:id", adminHandler.UpdateQueryConfig)

				// 上游接口配置
				authorized.GET("/api-configs", adminHandler.ListApiConfigs)
				authorized.POST("/api-configs", adminHandler.CreateApiConfig)
				authorized.PUT("/api-configs/:id", adminHandler.UpdateApiConfig)

				// 外部服务配置
				authorized.GET("/external-configs", adminHandler.ListExternalConfigs)
				authorized.POST("/external-configs", adminHandler.CreateExternalConfig)
				authorized.PUT("/external-configs/:id", adminHandler.UpdateExternalConfig)

				// 代理管理
				authorized.GET("/agents", adminHandler.ListAgents)
				authorized.GET("/agents/:id", adminHandler.GetAgent)
				authorized.POST("/agents", adminHandler.CreateAgent)
				authorized.PUT("/agents/:id", adminHandler.UpdateAgent)

				// 权限管理
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/admins", adminHandler.ListAuthzAdmins)
				authorized.GET("/authz/audit-logs", adminHandler.ListAuthzAuditLogs)
				authorized.POST("/authz/admins", adminHandler.CreateAuthzAdmin)
				authorized.PUT("/authz/admins/:id", adminHandler.UpdateAuthzAdmin)
				authorized.DELETE("/authz/admins/:id", adminHandler.DeleteAuthzAdmin)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.POST("/authz/roles", adminHandler.CreateAuthzRole)
				authorized.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" || item.Path == "/api/v1/admin/captcha/image" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
