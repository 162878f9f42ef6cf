package dto

import (
	"time"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// AddCredentialRequest 新增凭证请求
type AddCredentialRequest struct {
	Provider string `json:"provider"`
	KeyValue string `json:"key_value" binding:"required"`
}

// CredentialResponse 凭证信息，密钥只以脱敏形式出现
type CredentialResponse struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	MaskedKey  string     `json:"masked_key"`
	Status     string     `json:"status"`
	DailyUsage int        `json:"daily_usage"`
	UsageDate  *time.Time `json:"usage_date,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewCredentialResponse 从实体构建凭证信息
func NewCredentialResponse(cred *entity.ApiCredential) *CredentialResponse {
	return &CredentialResponse{
		ID:         cred.ID,
		Provider:   cred.Provider,
		MaskedKey:  cred.MaskedKey(),
		Status:     string(cred.Status),
		DailyUsage: cred.DailyUsage,
		UsageDate:  cred.UsageDate,
		LastError:  cred.LastError,
		CreatedAt:  cred.CreatedAt,
	}
}

// NewCredentialResponses 批量构建凭证信息
func NewCredentialResponses(creds []*entity.ApiCredential) []*CredentialResponse {
	out := make([]*CredentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, NewCredentialResponse(c))
	}
	return out
}
