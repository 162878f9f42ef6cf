// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// RequestMode 请求分层模式
type RequestMode string

const (
	// RequestModeFreeUserKey 使用用户自备凭证，单次尝试
	RequestModeFreeUserKey RequestMode = "free_user_key"
	// RequestModeFreePool 使用共享凭证池，有限次跨凭证重试
	RequestModeFreePool RequestMode = "free_pool"
	// RequestModePremium 积分付费，走独立上游
	RequestModePremium RequestMode = "premium"
)

// Valid 模式是否合法
func (m RequestMode) Valid() bool {
	switch m {
	case RequestModeFreeUserKey, RequestModeFreePool, RequestModePremium:
		return true
	}
	return false
}

// VerbosityLevel 回答详尽级别，决定系统提示词模板
type VerbosityLevel string

const (
	VerbositySingle VerbosityLevel = "single"
	VerbosityShort  VerbosityLevel = "short"
	VerbosityMedium VerbosityLevel = "medium"
	VerbosityLong   VerbosityLevel = "long"
)

// Valid 级别是否合法
func (v VerbosityLevel) Valid() bool {
	switch v {
	case VerbositySingle, VerbosityShort, VerbosityMedium, VerbosityLong:
		return true
	}
	return false
}

// StringArray 以 JSON 序列化存储的字符串数组
type StringArray []string

// QASession 会话配置：一次对话的模式、模型与提示词定制
type QASession struct {
	ID                 string         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID             string         `json:"user_id" gorm:"type:uuid;index;not null"`
	Active             bool           `json:"active" gorm:"not null;default:true"`
	Mode               RequestMode    `json:"mode" gorm:"type:varchar(16);not null;default:'free_pool'"`
	Provider           string         `json:"provider" gorm:"type:varchar(32)"`
	Model              string         `json:"model" gorm:"type:varchar(64)"`
	Verbosity          VerbosityLevel `json:"verbosity" gorm:"type:varchar(8);not null;default:'medium'"`
	UseCustomPrompt    bool           `json:"use_custom_prompt" gorm:"not null;default:false"`
	CustomSystemPrompt string         `json:"custom_system_prompt,omitempty" gorm:"type:text"`
	ManualContext      string         `json:"manual_context,omitempty" gorm:"type:text"`
	KnowledgeFileIDs   StringArray    `json:"knowledge_file_ids,omitempty" gorm:"type:text;serializer:json"`
	LastUsedAt         *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (QASession) TableName() string {
	return "qa_sessions"
}

// NewQASession 创建会话配置
func NewQASession(userID string, mode RequestMode, verbosity VerbosityLevel) *QASession {
	now := time.Now()
	if !mode.Valid() {
		mode = RequestModeFreePool
	}
	if !verbosity.Valid() {
		verbosity = VerbosityMedium
	}
	return &QASession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Active:    true,
		Mode:      mode,
		Verbosity: verbosity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
