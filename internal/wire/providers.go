// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/redis"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/handler"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/router"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
	"github.com/mygads/genovaai-server-sub000/pkg/utils"
)

// App 组装完成的应用
type App struct {
	Engine   *gin.Engine
	PgClient *postgres.Client
}

// NewApp 创建应用容器
func NewApp(engine *gin.Engine, pgClient *postgres.Client) *App {
	return &App{Engine: engine, PgClient: pgClient}
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端。
// Redis 不可达时降级运行，缓存与限流被禁用。
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func()) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, caching and rate limiting disabled", "error", err.Error())
		return nil, func() {}
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup
}

// ProvideCache 提供缓存，Redis 缺席时为 nil
func ProvideCache(client *redis.Client) *redis.Cache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client)
}

// ProvideRateLimiter 提供限流器，Redis 缺席时为 nil
func ProvideRateLimiter(client *redis.Client) *redis.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideJWTManager 提供 JWT 管理器
func ProvideJWTManager(cfg *config.Config) *utils.JWTManager {
	return utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
}

// ProvideJWTConfig 提供 JWT 配置
func ProvideJWTConfig(cfg *config.Config) *config.JWTConfig {
	return &cfg.Security.JWT
}

// ProvideGeminiConfig 提供 Gemini 上游配置
func ProvideGeminiConfig(cfg *config.Config) *config.GeminiConfig {
	return &cfg.Upstream.Gemini
}

// ProvideOpenRouterConfig 提供 OpenRouter 上游配置
func ProvideOpenRouterConfig(cfg *config.Config) *config.OpenRouterConfig {
	return &cfg.Upstream.OpenRouter
}

// ProvideGatewayConfig 提供路由配置
func ProvideGatewayConfig(cfg *config.Config) *config.GatewayConfig {
	return &cfg.Gateway
}

// ProvidePoolConfig 提供凭证池配置
func ProvidePoolConfig(cfg *config.Config) *config.PoolConfig {
	return &cfg.Pool
}

// ProvideLedgerConfig 提供账本配置
func ProvideLedgerConfig(cfg *config.Config) *config.LedgerConfig {
	return &cfg.Ledger
}

// ProvidePaymentHandler 提供支付回调接口
func ProvidePaymentHandler(ledgerSvc *ledger.Service, cfg *config.Config) *handler.PaymentHandler {
	return handler.NewPaymentHandler(ledgerSvc, cfg.Security.Webhook.Secret)
}

// ProvideEngine 提供 HTTP 引擎
func ProvideEngine(cfg *config.Config, handlers *router.Handlers, limiter *redis.RateLimiter) *gin.Engine {
	return router.New(cfg, handlers, limiter)
}
