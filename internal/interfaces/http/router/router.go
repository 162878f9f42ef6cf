// Package router 组装 HTTP 路由
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/redis"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/handler"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的全部接口处理器
type Handlers struct {
	Auth       *handler.AuthHandler
	QA         *handler.QAHandler
	Credential *handler.CredentialHandler
	Ledger     *handler.LedgerHandler
	Voucher    *handler.VoucherHandler
	Payment    *handler.PaymentHandler
	Health     *handler.HealthHandler
}

// New 构建 gin 引擎并挂载路由
func New(cfg *config.Config, handlers *Handlers, limiter *redis.RateLimiter) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 中间件顺序：恢复在最外层，追踪先于日志上下文注入
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Trace(cfg.App.Name))
	engine.Use(middleware.TraceContext())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Metrics())
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: cfg.Security.CORS.AllowedHeaders,
	}))

	// 健康检查与指标不走认证
	engine.GET("/health", handlers.Health.Health)
	engine.GET("/ready", handlers.Health.Ready)
	engine.GET("/live", handlers.Health.Live)
	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	engine.Use(middleware.Auth(middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   true,
	}))

	v1 := engine.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.POST("/refresh", handlers.Auth.Refresh)
	}

	qa := v1.Group("/qa")
	{
		ask := qa.Group("")
		if cfg.Security.RateLimit.Enabled {
			ask.Use(middleware.RateLimit(limiter, cfg.Security.RateLimit.Limit, cfg.Security.RateLimit.Window))
		}
		ask.POST("/ask", handlers.QA.Ask)

		qa.POST("/sessions", handlers.QA.CreateSession)
		qa.GET("/sessions", handlers.QA.ListSessions)
		qa.GET("/sessions/:id", handlers.QA.GetSession)
		qa.PUT("/sessions/:id", handlers.QA.UpdateSession)
		qa.GET("/sessions/:id/history", handlers.QA.GetHistory)
	}

	credentials := v1.Group("/credentials")
	{
		credentials.POST("", handlers.Credential.Add)
		credentials.GET("", handlers.Credential.List)
		credentials.DELETE("/:id", handlers.Credential.Delete)
	}

	ledgerGroup := v1.Group("/ledger")
	{
		ledgerGroup.GET("/balance", handlers.Ledger.GetBalance)
		ledgerGroup.GET("/transactions", handlers.Ledger.GetTransactions)
		ledgerGroup.POST("/exchange", handlers.Ledger.Exchange)
	}

	vouchers := v1.Group("/vouchers")
	{
		vouchers.POST("/validate", handlers.Voucher.Validate)
		vouchers.POST("/redeem", handlers.Voucher.Redeem)
	}

	admin := v1.Group("/admin", middleware.RequireAdmin())
	{
		admin.POST("/vouchers", handlers.Voucher.Create)
		admin.GET("/vouchers", handlers.Voucher.List)
		admin.DELETE("/vouchers/:id", handlers.Voucher.Deactivate)
	}

	// 支付回调由签名而非 JWT 保护
	v1.POST("/payments/webhook", handlers.Payment.Webhook)

	return engine
}
