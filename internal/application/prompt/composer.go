// Package prompt 提供提示词组装能力
package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
)

var tracer = otel.Tracer("prompt")

// Example 少样本示例
type Example struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ComposeInput 一次组装的输入
type ComposeInput struct {
	Session      *entity.QASession
	Question     string
	Examples     []Example
	OutputFormat string
}

// GenerationHints 给路由层的生成建议，全部为提示性质
type GenerationHints struct {
	ReasoningEffort string
	CacheEligible   bool
	CacheTTL        time.Duration
}

// ComposeResult 组装结果
type ComposeResult struct {
	SystemPrompt string
	UserPrompt   string
	Hints        GenerationHints
}

// Composer 提示词组装器
type Composer struct {
	knowledge service.KnowledgeProvider
}

// NewComposer 创建组装器
func NewComposer(knowledge service.KnowledgeProvider) *Composer {
	return &Composer{knowledge: knowledge}
}

// Compose 组装系统提示词、用户轮次与生成建议
func (c *Composer) Compose(ctx context.Context, input *ComposeInput) (*ComposeResult, error) {
	ctx, span := tracer.Start(ctx, "prompt.Composer.Compose")
	span.SetAttributes(attribute.String("prompt.verbosity", string(input.Session.Verbosity)))
	defer span.End()

	systemPrompt := c.systemPrompt(input.Session)

	knowledgeBlock, err := c.knowledgeBlock(ctx, input.Session)
	if err != nil {
		// 知识装配失败降级为无知识问答
		logger.Warn(ctx, "knowledge assembly failed, continuing without it", "error", err)
		knowledgeBlock = ""
	}

	userPrompt := c.userTurn(knowledgeBlock, input)

	family := FamilyOf(input.Session.Model)
	estimated := EstimateTokens(knowledgeBlock)
	hints := GenerationHints{
		ReasoningEffort: ReasoningEffortFor(family, input.Session.Verbosity),
		CacheEligible:   CacheEligible(family, estimated),
		CacheTTL:        cacheTTL,
	}

	span.SetAttributes(
		attribute.Int("prompt.knowledge_tokens", estimated),
		attribute.Bool("prompt.cache_eligible", hints.CacheEligible),
	)

	return &ComposeResult{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Hints:        hints,
	}, nil
}

// systemPrompt 自定义提示词优先，否则按详尽级别选模板
func (c *Composer) systemPrompt(session *entity.QASession) string {
	if session.UseCustomPrompt && strings.TrimSpace(session.CustomSystemPrompt) != "" {
		return session.CustomSystemPrompt
	}
	return verbosityTemplate(session.Verbosity)
}

// verbosityTemplate 四级详尽度模板
func verbosityTemplate(v entity.VerbosityLevel) string {
	switch v {
	case entity.VerbositySingle:
		return singleTemplate
	case entity.VerbosityShort:
		return shortTemplate
	case entity.VerbosityLong:
		return longTemplate
	default:
		return mediumTemplate
	}
}

const singleTemplate = `You are a precise answering assistant for exam-style questions.

Instructions:
1. Read the question and any provided reference material carefully.
2. Determine the single correct answer.
3. Do not explain, justify, or elaborate under any circumstances.

Output format:
1. Respond with the answer only: a letter, a word, or a short phrase.
2. No punctuation beyond what the answer itself requires.
3. Never prefix the answer with labels such as "Answer:".

Example:
Question: Which planet is closest to the sun?
Response: Mercury`

const shortTemplate = `You are a concise answering assistant for exam-style questions.

Instructions:
1. Read the question and any provided reference material carefully.
2. Determine the correct answer.
3. Add one short supporting sentence, nothing more.

Output format:
1. First line: the answer itself.
2. Second line: a single sentence of justification.
3. No headings, lists, or additional commentary.

Example:
Question: Which planet is closest to the sun?
Response:
Mercury
It orbits at an average distance of about 58 million km, closer than any other planet.`

const mediumTemplate = `You are a helpful answering assistant for exam-style questions.

Instructions:
1. Read the question and any provided reference material carefully.
2. Determine the correct answer and the key reasoning behind it.
3. Keep the explanation focused; do not pad with generalities.

Output format:
1. Start with the answer on its own line.
2. Follow with a short paragraph (2-4 sentences) explaining why it is correct.
3. Cite the reference material when it supports the answer.

Example:
Question: Which planet is closest to the sun?
Response:
Mercury
Mercury orbits at roughly 58 million km from the sun, the smallest orbital radius of the eight planets. Venus, the next closest, orbits at about 108 million km.`

const longTemplate = `You are a thorough answering assistant for exam-style questions.

Instructions:
1. Read the question and any provided reference material carefully.
2. Determine the correct answer and the full reasoning behind it.
3. Examine each plausible alternative and state why it is wrong.
4. Ground every claim in the reference material where possible.

Output format:
1. Start with the answer on its own line.
2. Follow with a paragraph justifying the correct choice.
3. Then list each rejected alternative with one sentence explaining why it fails.
4. Close with a one-sentence summary.

Example:
Question: Which planet is closest to the sun?
Response:
Mercury
Mercury has the smallest orbital radius of the eight planets, about 58 million km on average.
- Venus: orbits at about 108 million km, nearly twice Mercury's distance.
- Earth: orbits at about 150 million km.
In summary, Mercury's orbit lies well inside every other planet's.`

// knowledgeBlock 拼装手动上下文与关联知识文件，全空则返回空串
func (c *Composer) knowledgeBlock(ctx context.Context, session *entity.QASession) (string, error) {
	var parts []string

	if manual := strings.TrimSpace(session.ManualContext); manual != "" {
		parts = append(parts, manual)
	}

	if len(session.KnowledgeFileIDs) > 0 {
		blocks, err := c.knowledge.Load(ctx, session.UserID, session.KnowledgeFileIDs)
		if err != nil {
			return "", err
		}
		for _, b := range blocks {
			if strings.TrimSpace(b.Content) == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("[File: %s (%s)]\n%s", b.Name, b.FileType, b.Content))
		}
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n\n"), nil
}

// userTurn 按固定顺序组装用户轮次：知识、示例、输出格式、问题
func (c *Composer) userTurn(knowledgeBlock string, input *ComposeInput) string {
	var sb strings.Builder

	if knowledgeBlock != "" {
		sb.WriteString("=== Reference material ===\n")
		sb.WriteString(knowledgeBlock)
		sb.WriteString("\n\n")
	}

	if len(input.Examples) > 0 {
		sb.WriteString("=== Examples ===\n")
		for _, ex := range input.Examples {
			sb.WriteString("Q: ")
			sb.WriteString(ex.Question)
			sb.WriteString("\nA: ")
			sb.WriteString(ex.Answer)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if format := strings.TrimSpace(input.OutputFormat); format != "" {
		sb.WriteString("=== Output format ===\n")
		sb.WriteString(format)
		sb.WriteString("\n\n")
	}

	sb.WriteString("=== Question ===\n")
	sb.WriteString(input.Question)

	return sb.String()
}
