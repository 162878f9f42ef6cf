package dto

import (
	"time"

	"github.com/mygads/genovaai-server-sub000/internal/application/prompt"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// AskRequest 问答请求
type AskRequest struct {
	SessionID    string       `json:"session_id" binding:"required,uuid"`
	Question     string       `json:"question" binding:"required"`
	Examples     []ExampleDTO `json:"examples,omitempty"`
	OutputFormat string       `json:"output_format,omitempty"`
}

// ExampleDTO 少样本示例
type ExampleDTO struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// ToExamples 转换为提示词示例
func (r *AskRequest) ToExamples() []prompt.Example {
	if len(r.Examples) == 0 {
		return nil
	}
	examples := make([]prompt.Example, 0, len(r.Examples))
	for _, e := range r.Examples {
		examples = append(examples, prompt.Example{Question: e.Question, Answer: e.Answer})
	}
	return examples
}

// AskResponse 问答响应
type AskResponse struct {
	Answer           string `json:"answer"`
	Mode             string `json:"mode"`
	Model            string `json:"model"`
	TokensPrompt     int    `json:"tokens_prompt"`
	TokensCompletion int    `json:"tokens_completion"`
	CreditsDeducted  int    `json:"credits_deducted"`
	Cached           bool   `json:"cached"`
	Attempts         int    `json:"attempts"`
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Mode      string `json:"mode"`
	Verbosity string `json:"verbosity"`
}

// UpdateSessionRequest 更新会话请求，未出现的字段保持不变
type UpdateSessionRequest struct {
	Mode               *string   `json:"mode,omitempty"`
	Provider           *string   `json:"provider,omitempty"`
	Model              *string   `json:"model,omitempty"`
	Verbosity          *string   `json:"verbosity,omitempty"`
	UseCustomPrompt    *bool     `json:"use_custom_prompt,omitempty"`
	CustomSystemPrompt *string   `json:"custom_system_prompt,omitempty"`
	ManualContext      *string   `json:"manual_context,omitempty"`
	KnowledgeFileIDs   *[]string `json:"knowledge_file_ids,omitempty"`
	Active             *bool     `json:"active,omitempty"`
}

// SessionResponse 会话配置
type SessionResponse struct {
	ID                 string     `json:"id"`
	Active             bool       `json:"active"`
	Mode               string     `json:"mode"`
	Provider           string     `json:"provider,omitempty"`
	Model              string     `json:"model,omitempty"`
	Verbosity          string     `json:"verbosity"`
	UseCustomPrompt    bool       `json:"use_custom_prompt"`
	CustomSystemPrompt string     `json:"custom_system_prompt,omitempty"`
	ManualContext      string     `json:"manual_context,omitempty"`
	KnowledgeFileIDs   []string   `json:"knowledge_file_ids,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewSessionResponse 从实体构建会话信息
func NewSessionResponse(s *entity.QASession) *SessionResponse {
	return &SessionResponse{
		ID:                 s.ID,
		Active:             s.Active,
		Mode:               string(s.Mode),
		Provider:           s.Provider,
		Model:              s.Model,
		Verbosity:          string(s.Verbosity),
		UseCustomPrompt:    s.UseCustomPrompt,
		CustomSystemPrompt: s.CustomSystemPrompt,
		ManualContext:      s.ManualContext,
		KnowledgeFileIDs:   s.KnowledgeFileIDs,
		LastUsedAt:         s.LastUsedAt,
		CreatedAt:          s.CreatedAt,
	}
}

// NewSessionResponses 批量构建会话信息
func NewSessionResponses(sessions []*entity.QASession) []*SessionResponse {
	out := make([]*SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, NewSessionResponse(s))
	}
	return out
}

// ChatTurnResponse 对话轮次
type ChatTurnResponse struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Verbosity string    `json:"verbosity"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatTurnResponses 批量构建对话轮次
func NewChatTurnResponses(turns []*entity.ChatTurn) []*ChatTurnResponse {
	out := make([]*ChatTurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, &ChatTurnResponse{
			ID:        t.ID,
			Question:  t.Question,
			Answer:    t.Answer,
			Verbosity: string(t.Verbosity),
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}
