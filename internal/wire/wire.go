//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/mygads/genovaai-server-sub000/internal/application/auth"
	"github.com/mygads/genovaai-server-sub000/internal/application/gateway"
	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/application/pool"
	"github.com/mygads/genovaai-server-sub000/internal/application/prompt"
	"github.com/mygads/genovaai-server-sub000/internal/application/voucher"
	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/knowledge"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/llm"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/handler"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		UpstreamSet,
		ServiceSet,
		HandlerSet,
		ProvideEngine,
		NewApp,
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	postgres.NewCredentialRepository,
	postgres.NewLedgerRepository,
	postgres.NewVoucherRepository,
	postgres.NewSessionRepository,
	postgres.NewRequestRecordRepository,
	postgres.NewKnowledgeFileRepository,
	postgres.NewSettingRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
	wire.Bind(new(repository.CredentialRepository), new(*postgres.CredentialRepository)),
	wire.Bind(new(repository.LedgerRepository), new(*postgres.LedgerRepository)),
	wire.Bind(new(repository.VoucherRepository), new(*postgres.VoucherRepository)),
	wire.Bind(new(repository.SessionRepository), new(*postgres.SessionRepository)),
	wire.Bind(new(repository.RequestRecordRepository), new(*postgres.RequestRecordRepository)),
	wire.Bind(new(repository.KnowledgeFileRepository), new(*postgres.KnowledgeFileRepository)),
	wire.Bind(new(repository.SettingRepository), new(*postgres.SettingRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideCache,
	ProvideRateLimiter,
)

// UpstreamSet 上游客户端提供者集合
var UpstreamSet = wire.NewSet(
	ProvideGeminiConfig,
	ProvideOpenRouterConfig,
	llm.NewGeminiClient,
	llm.NewOpenRouterClient,
	wire.Bind(new(service.UpstreamClient), new(*llm.GeminiClient)),
	wire.Bind(new(service.PremiumClient), new(*llm.OpenRouterClient)),
)

// ServiceSet 应用服务提供者集合
var ServiceSet = wire.NewSet(
	ProvideJWTManager,
	ProvideJWTConfig,
	ProvideGatewayConfig,
	ProvidePoolConfig,
	ProvideLedgerConfig,
	auth.NewService,
	ledger.NewService,
	pool.NewManager,
	voucher.NewEngine,
	knowledge.NewProvider,
	prompt.NewComposer,
	gateway.NewRouter,
	wire.Bind(new(service.KnowledgeProvider), new(*knowledge.Provider)),
)

// HandlerSet 接口处理器提供者集合
var HandlerSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewQAHandler,
	handler.NewCredentialHandler,
	handler.NewLedgerHandler,
	handler.NewVoucherHandler,
	ProvidePaymentHandler,
	handler.NewHealthHandler,
	wire.Struct(new(router.Handlers), "*"),
)
