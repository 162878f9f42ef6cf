// Package prompt 提供提示词组装能力
package prompt

import (
	"strings"
	"time"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// ModelFamily 模型家族，决定生成参数的能力差异
type ModelFamily string

const (
	FamilyGeminiFlash ModelFamily = "gemini_flash"
	FamilyGeminiPro   ModelFamily = "gemini_pro"
	FamilyGPT         ModelFamily = "gpt"
	FamilyClaude      ModelFamily = "claude"
	FamilyDeepSeek    ModelFamily = "deepseek"
	FamilyGeneric     ModelFamily = "generic"
)

// FamilyOf 从模型标识解析模型家族。
// 所有厂商字符串匹配集中在这一处，其余代码只看家族枚举。
func FamilyOf(model string) ModelFamily {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gemini") && strings.Contains(m, "pro"):
		return FamilyGeminiPro
	case strings.Contains(m, "gemini"):
		return FamilyGeminiFlash
	case strings.Contains(m, "gpt") || strings.Contains(m, "o1") || strings.Contains(m, "o3"):
		return FamilyGPT
	case strings.Contains(m, "claude"):
		return FamilyClaude
	case strings.Contains(m, "deepseek"):
		return FamilyDeepSeek
	default:
		return FamilyGeneric
	}
}

// capability 模型家族能力表项
type capability struct {
	// supportsReasoning 是否接受推理强度参数
	supportsReasoning bool
	// cacheMinTokens 启用上游缓存所需的知识块最小 token 数，0 表示不支持
	cacheMinTokens int
}

var capabilities = map[ModelFamily]capability{
	FamilyGeminiFlash: {supportsReasoning: true, cacheMinTokens: 1024},
	FamilyGeminiPro:   {supportsReasoning: true, cacheMinTokens: 2048},
	FamilyGPT:         {supportsReasoning: true, cacheMinTokens: 1024},
	FamilyClaude:      {supportsReasoning: true, cacheMinTokens: 1024},
	FamilyDeepSeek:    {supportsReasoning: false, cacheMinTokens: 0},
	FamilyGeneric:     {supportsReasoning: false, cacheMinTokens: 0},
}

// cacheTTL 缓存提示的固定存活时长
const cacheTTL = 5 * time.Minute

// ReasoningEffortFor 按家族与详尽级别给出推理强度提示，空串表示不下发
func ReasoningEffortFor(family ModelFamily, verbosity entity.VerbosityLevel) string {
	cap, ok := capabilities[family]
	if !ok || !cap.supportsReasoning {
		return ""
	}
	switch verbosity {
	case entity.VerbositySingle, entity.VerbosityShort:
		return "low"
	case entity.VerbosityMedium:
		return "medium"
	case entity.VerbosityLong:
		return "high"
	default:
		return "medium"
	}
}

// CacheEligible 知识块是否达到该家族的缓存门槛
func CacheEligible(family ModelFamily, estimatedTokens int) bool {
	cap, ok := capabilities[family]
	if !ok || cap.cacheMinTokens == 0 {
		return false
	}
	return estimatedTokens >= cap.cacheMinTokens
}

// EstimateTokens 粗略估算文本 token 数（约 4 字符一个 token）
func EstimateTokens(text string) int {
	return len(text) / 4
}
