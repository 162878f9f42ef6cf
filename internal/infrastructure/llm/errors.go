// Package llm 提供上游模型服务接入实现
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/api/googleapi"
)

// FailureKind 上游失败类别，决定凭证状态迁移与重试行为
type FailureKind string

const (
	// FailureInvalidKey 认证被拒，凭证应标记为 dead
	FailureInvalidKey FailureKind = "invalid_key"
	// FailureRateLimited 限流，凭证应标记为 rate_limited
	FailureRateLimited FailureKind = "rate_limited"
	// FailureQuota 配额耗尽，按限流处理等待次日恢复
	FailureQuota FailureKind = "quota"
	// FailureTransient 瞬时故障，不改变凭证状态
	FailureTransient FailureKind = "transient"
)

// UpstreamError 归类后的上游错误
type UpstreamError struct {
	Kind       FailureKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// KindOf 提取上游错误类别，非上游错误视为瞬时故障
func KindOf(err error) FailureKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return FailureTransient
}

// classifyStatus 按 HTTP 状态码归类
func classifyStatus(status int, message string) FailureKind {
	switch {
	case status == 401 || status == 403:
		return FailureInvalidKey
	case status == 400 && strings.Contains(strings.ToLower(message), "api key"):
		return FailureInvalidKey
	case status == 429:
		if strings.Contains(strings.ToLower(message), "quota") {
			return FailureQuota
		}
		return FailureRateLimited
	default:
		return FailureTransient
	}
}

// classifyGeminiError 归类 Gemini SDK 返回的错误
func classifyGeminiError(provider string, err error) *UpstreamError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &UpstreamError{
			Kind:       classifyStatus(gerr.Code, gerr.Message),
			Provider:   provider,
			StatusCode: gerr.Code,
			Err:        err,
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Kind: FailureTransient, Provider: provider, Err: err}
	}

	// SDK 偶尔以纯文本暴露认证错误
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "api key not valid") || strings.Contains(msg, "api_key_invalid") {
		return &UpstreamError{Kind: FailureInvalidKey, Provider: provider, StatusCode: 400, Err: err}
	}

	return &UpstreamError{Kind: FailureTransient, Provider: provider, Err: err}
}
