// Package llm 提供上游模型服务接入实现
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/pkg/metrics"
)

const providerOpenRouter = "openrouter"

// OpenRouterClient 付费层上游客户端，使用进程级 house key
type OpenRouterClient struct {
	cfg        *config.OpenRouterConfig
	httpClient *http.Client
}

// NewOpenRouterClient 创建 OpenRouter 客户端
func NewOpenRouterClient(cfg *config.OpenRouterConfig) *OpenRouterClient {
	return &OpenRouterClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

var _ service.PremiumClient = (*OpenRouterClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Reasoning   *reasoning    `json:"reasoning,omitempty"`
	Usage       *usageOptions `json:"usage,omitempty"`
}

type reasoning struct {
	Effort string `json:"effort"`
}

// usageOptions 要求上游返回缓存命中在内的用量明细
type usageOptions struct {
	Include bool `json:"include"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Generate 发起一次付费生成
func (c *OpenRouterClient) Generate(ctx context.Context, req *service.GenerateRequest) (*service.GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}

	ctx, span := tracer.Start(ctx, "llm.OpenRouterClient.Generate",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Bool("llm.cache_preferred", req.CachePreferred),
		))
	defer span.End()

	start := time.Now()
	result, err := c.generate(ctx, model, req)
	metrics.LLMCallDuration.WithLabelValues(providerOpenRouter, model).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.LLMCallTotal.WithLabelValues(providerOpenRouter, model, "error").Inc()
		return nil, err
	}

	metrics.LLMCallTotal.WithLabelValues(providerOpenRouter, model, "ok").Inc()
	metrics.LLMTokensUsed.WithLabelValues(providerOpenRouter, model, "prompt").Add(float64(result.TokensPrompt))
	metrics.LLMTokensUsed.WithLabelValues(providerOpenRouter, model, "completion").Add(float64(result.TokensCompletion))
	return result, nil
}

func (c *OpenRouterClient) generate(ctx context.Context, model string, req *service.GenerateRequest) (*service.GenerateResult, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	}
	if req.ReasoningEffort != "" {
		body.Reasoning = &reasoning{Effort: req.ReasoningEffort}
	}
	// 大提示词才值得换取缓存命中明细
	if req.CachePreferred {
		body.Usage = &usageOptions{Include: true}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Kind: FailureTransient, Provider: providerOpenRouter, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Kind: FailureTransient, Provider: providerOpenRouter, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Kind:       classifyStatus(resp.StatusCode, string(raw)),
			Provider:   providerOpenRouter,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 200)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &UpstreamError{Kind: FailureTransient, Provider: providerOpenRouter, Err: err}
	}
	if parsed.Error != nil {
		return nil, &UpstreamError{
			Kind:       classifyStatus(parsed.Error.Code, parsed.Error.Message),
			Provider:   providerOpenRouter,
			StatusCode: parsed.Error.Code,
			Err:        fmt.Errorf("upstream error: %s", parsed.Error.Message),
		}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, &UpstreamError{
			Kind:     FailureTransient,
			Provider: providerOpenRouter,
			Err:      fmt.Errorf("empty completion from model %s", model),
		}
	}

	return &service.GenerateResult{
		Answer:           parsed.Choices[0].Message.Content,
		Model:            model,
		TokensPrompt:     parsed.Usage.PromptTokens,
		TokensCompletion: parsed.Usage.CompletionTokens,
		Cached:           parsed.Usage.PromptTokensDetails.CachedTokens > 0,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
