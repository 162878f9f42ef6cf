// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Upstream      UpstreamConfig      `yaml:"upstream" mapstructure:"upstream"`
	Gateway       GatewayConfig       `yaml:"gateway" mapstructure:"gateway"`
	Pool          PoolConfig          `yaml:"pool" mapstructure:"pool"`
	Ledger        LedgerConfig        `yaml:"ledger" mapstructure:"ledger"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// UpstreamConfig 上游模型服务配置
type UpstreamConfig struct {
	// Gemini 免费模式传输层（调用方逐请求提供 API Key）
	Gemini GeminiConfig `yaml:"gemini" mapstructure:"gemini"`
	// OpenRouter 付费模式传输层（使用进程级 house key）
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
}

// GeminiConfig Gemini 上游配置
type GeminiConfig struct {
	DefaultModel string        `yaml:"default_model" mapstructure:"default_model"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OpenRouterConfig OpenRouter 上游配置
type OpenRouterConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string        `yaml:"api_key" mapstructure:"api_key"`
	DefaultModel string        `yaml:"default_model" mapstructure:"default_model"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GatewayConfig 请求路由配置
type GatewayConfig struct {
	// FreePoolMaxAttempts free_pool 模式跨凭证重试上限
	FreePoolMaxAttempts int `yaml:"free_pool_max_attempts" mapstructure:"free_pool_max_attempts"`
	// UpstreamTimeout 单次上游调用超时
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" mapstructure:"upstream_timeout"`
	// PremiumCostCredits 单次付费请求扣除的积分数
	PremiumCostCredits int `yaml:"premium_cost_credits" mapstructure:"premium_cost_credits"`
}

// PoolConfig 凭证池配置
type PoolConfig struct {
	// DailyLimit 单个凭证的每日用量上限
	DailyLimit int `yaml:"daily_limit" mapstructure:"daily_limit"`
}

// LedgerConfig 账本配置
type LedgerConfig struct {
	// DefaultExchangeRate 系统配置缺失时的余额兑积分比率（余额单位/积分）
	DefaultExchangeRate string `yaml:"default_exchange_rate" mapstructure:"default_exchange_rate"`
	// ExchangeRateCacheTTL 兑换率缓存时长
	ExchangeRateCacheTTL time.Duration `yaml:"exchange_rate_cache_ttl" mapstructure:"exchange_rate_cache_ttl"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WebhookConfig 回调签名配置
type WebhookConfig struct {
	// Secret 为空时跳过签名校验
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// RateLimitConfig 问答接口限流配置
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret            string        `yaml:"secret" mapstructure:"secret"`
	Issuer            string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration        time.Duration `yaml:"expiration" mapstructure:"expiration"`
	RefreshExpiration time.Duration `yaml:"refresh_expiration" mapstructure:"refresh_expiration"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
