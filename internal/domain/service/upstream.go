// Package service 定义领域服务接口
package service

import (
	"context"
	"time"
)

// GenerateRequest 一次上游生成调用的输入
type GenerateRequest struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	Temperature     float32
	MaxOutputTokens int
	// ReasoningEffort 推理强度提示，仅部分模型家族支持，空值表示不下发
	ReasoningEffort string
	// CachePreferred 知识块达到缓存门槛时置位，传输层按各自机制落实或记录
	CachePreferred bool
	// CacheTTL 缓存提示的建议存活时长，仅在 CachePreferred 时有意义
	CacheTTL time.Duration
}

// GenerateResult 一次上游生成调用的输出
type GenerateResult struct {
	Answer           string
	Model            string
	TokensPrompt     int
	TokensCompletion int
	Cached           bool
}

// UpstreamClient 按调用方凭证访问免费层上游
type UpstreamClient interface {
	// Generate 使用给定凭证发起一次生成
	Generate(ctx context.Context, apiKey string, req *GenerateRequest) (*GenerateResult, error)
	// ValidateKey 对凭证做一次真实探活校验
	ValidateKey(ctx context.Context, apiKey string) error
}

// PremiumClient 使用服务端托管凭证访问付费层上游
type PremiumClient interface {
	// Generate 发起一次付费生成
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}
