// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus 单次请求的最终状态
type RequestStatus string

const (
	RequestStatusSucceeded RequestStatus = "succeeded"
	RequestStatusFailed    RequestStatus = "failed"
)

// RequestRecord 一次上游调用的审计记录。
// 无论成败都要落一条；答案与对话轮次仅在成功时另行持久化。
type RequestRecord struct {
	ID               string        `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           string        `json:"user_id" gorm:"type:uuid;index;not null"`
	SessionID        string        `json:"session_id" gorm:"type:uuid;index;not null"`
	Mode             RequestMode   `json:"mode" gorm:"type:varchar(16);not null"`
	Provider         string        `json:"provider" gorm:"type:varchar(32)"`
	Model            string        `json:"model" gorm:"type:varchar(64)"`
	SystemPrompt     string        `json:"system_prompt" gorm:"type:text"`
	UserPrompt       string        `json:"user_prompt" gorm:"type:text"`
	TokensPrompt     int           `json:"tokens_prompt" gorm:"not null;default:0"`
	TokensCompletion int           `json:"tokens_completion" gorm:"not null;default:0"`
	DurationMs       int           `json:"duration_ms" gorm:"not null;default:0"`
	Attempts         int           `json:"attempts" gorm:"not null;default:0"`
	CreditsDeducted  int           `json:"credits_deducted" gorm:"not null;default:0"`
	Cached           bool          `json:"cached" gorm:"not null;default:false"`
	Status           RequestStatus `json:"status" gorm:"type:varchar(16);not null"`
	ErrorReason      string        `json:"error_reason,omitempty" gorm:"type:varchar(255)"`
	CreatedAt        time.Time     `json:"created_at" gorm:"autoCreateTime;index"`
}

func (RequestRecord) TableName() string {
	return "request_records"
}

// NewRequestRecord 创建审计记录
func NewRequestRecord(userID, sessionID string, mode RequestMode) *RequestRecord {
	return &RequestRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		Mode:      mode,
		Status:    RequestStatusFailed,
		CreatedAt: time.Now(),
	}
}

// ChatTurn 成功问答的对话轮次
type ChatTurn struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID    string         `json:"session_id" gorm:"type:uuid;index;not null"`
	RecordID     string         `json:"record_id" gorm:"type:uuid;index;not null"`
	Question     string         `json:"question" gorm:"type:text;not null"`
	Answer       string         `json:"answer" gorm:"type:text;not null"`
	Verbosity    VerbosityLevel `json:"verbosity" gorm:"type:varchar(8);not null"`
	SystemPrompt string         `json:"system_prompt" gorm:"type:text"`
	UserPrompt   string         `json:"user_prompt" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}

// NewChatTurn 创建对话轮次
func NewChatTurn(sessionID, recordID, question, answer string, verbosity VerbosityLevel) *ChatTurn {
	return &ChatTurn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		RecordID:  recordID,
		Question:  question,
		Answer:    answer,
		Verbosity: verbosity,
		CreatedAt: time.Now(),
	}
}
