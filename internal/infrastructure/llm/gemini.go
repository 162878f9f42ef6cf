// Package llm 提供上游模型服务接入实现
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/pkg/metrics"
)

var tracer = otel.Tracer("llm")

const providerGemini = "gemini"

// GeminiClient 免费层上游客户端。
// 凭证逐请求传入，客户端本身不持有任何密钥。
type GeminiClient struct {
	cfg *config.GeminiConfig
}

// NewGeminiClient 创建 Gemini 客户端
func NewGeminiClient(cfg *config.GeminiConfig) *GeminiClient {
	return &GeminiClient{cfg: cfg}
}

var _ service.UpstreamClient = (*GeminiClient)(nil)

// Generate 使用给定凭证发起一次生成
func (c *GeminiClient) Generate(ctx context.Context, apiKey string, req *service.GenerateRequest) (*service.GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}

	// Gemini 的上下文缓存是隐式的，这里只把偏好记进观测，
	// 命中与否由响应用量反映
	ctx, span := tracer.Start(ctx, "llm.GeminiClient.Generate",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Bool("llm.cache_preferred", req.CachePreferred),
		))
	defer span.End()

	start := time.Now()
	result, err := c.generate(ctx, apiKey, model, req)
	metrics.LLMCallDuration.WithLabelValues(providerGemini, model).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.LLMCallTotal.WithLabelValues(providerGemini, model, "error").Inc()
		return nil, err
	}

	metrics.LLMCallTotal.WithLabelValues(providerGemini, model, "ok").Inc()
	metrics.LLMTokensUsed.WithLabelValues(providerGemini, model, "prompt").Add(float64(result.TokensPrompt))
	metrics.LLMTokensUsed.WithLabelValues(providerGemini, model, "completion").Add(float64(result.TokensCompletion))
	return result, nil
}

func (c *GeminiClient) generate(ctx context.Context, apiKey, modelName string, req *service.GenerateRequest) (*service.GenerateResult, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, classifyGeminiError(providerGemini, err)
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return nil, classifyGeminiError(providerGemini, err)
	}

	answer := extractText(resp)
	if answer == "" {
		return nil, &UpstreamError{
			Kind:     FailureTransient,
			Provider: providerGemini,
			Err:      fmt.Errorf("empty completion from model %s", modelName),
		}
	}

	result := &service.GenerateResult{
		Answer: answer,
		Model:  modelName,
	}
	if resp.UsageMetadata != nil {
		result.TokensPrompt = int(resp.UsageMetadata.PromptTokenCount)
		result.TokensCompletion = int(resp.UsageMetadata.CandidatesTokenCount)
		result.Cached = resp.UsageMetadata.CachedContentTokenCount > 0
	}
	return result, nil
}

// ValidateKey 用一次最小开销的真实调用校验凭证
func (c *GeminiClient) ValidateKey(ctx context.Context, apiKey string) error {
	ctx, span := tracer.Start(ctx, "llm.GeminiClient.ValidateKey")
	defer span.End()

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		span.RecordError(err)
		return classifyGeminiError(providerGemini, err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.cfg.DefaultModel)
	if _, err := model.CountTokens(ctx, genai.Text("ping")); err != nil {
		span.RecordError(err)
		return classifyGeminiError(providerGemini, err)
	}
	return nil
}

// extractText 拼接候选回答中的文本片段
func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
