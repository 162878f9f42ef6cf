// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CredentialStatus 凭证健康状态
type CredentialStatus string

const (
	// CredentialStatusActive 可被选取
	CredentialStatusActive CredentialStatus = "active"
	// CredentialStatusRateLimited 暂时下线，次日用量重置后可复活
	CredentialStatusRateLimited CredentialStatus = "rate_limited"
	// CredentialStatusDead 终态，认证被上游拒绝后不再参与选取
	CredentialStatusDead CredentialStatus = "dead"
)

// ApiCredential 上游 API 凭证
// OwnerUserID 为空表示共享（house）凭证。
type ApiCredential struct {
	ID          string           `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerUserID *string          `json:"owner_user_id,omitempty" gorm:"type:uuid;index"`
	Provider    string           `json:"provider" gorm:"type:varchar(32);not null"`
	KeyValue    string           `json:"-" gorm:"type:varchar(255);not null"`
	Status      CredentialStatus `json:"status" gorm:"type:varchar(16);not null;default:'active';index"`
	Priority    int              `json:"priority" gorm:"not null;default:100"`
	DailyUsage  int              `json:"daily_usage" gorm:"not null;default:0"`
	UsageDate   *time.Time       `json:"usage_date,omitempty" gorm:"type:date"`
	LastError   string           `json:"last_error,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ApiCredential) TableName() string {
	return "api_credentials"
}

// NewApiCredential 创建用户自有凭证
func NewApiCredential(ownerUserID, provider, keyValue string) *ApiCredential {
	now := time.Now()
	cred := &ApiCredential{
		ID:        uuid.New().String(),
		Provider:  provider,
		KeyValue:  keyValue,
		Status:    CredentialStatusActive,
		Priority:  100,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ownerUserID != "" {
		cred.OwnerUserID = &ownerUserID
	}
	return cred
}

// IsShared 是否为共享凭证
func (c *ApiCredential) IsShared() bool {
	return c.OwnerUserID == nil
}

// IsSelectable 凭证是否可参与请求（active 或可复活的 rate_limited）
func (c *ApiCredential) IsSelectable() bool {
	return c.Status == CredentialStatusActive || c.Status == CredentialStatusRateLimited
}

// UsageStale 用量日期戳是否早于给定日（新的一天已开始）
func (c *ApiCredential) UsageStale(today time.Time) bool {
	if c.UsageDate == nil {
		return true
	}
	y1, m1, d1 := c.UsageDate.Date()
	y2, m2, d2 := today.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// MaskedKey 返回仅保留前后缀的脱敏密钥
func (c *ApiCredential) MaskedKey() string {
	return MaskKey(c.KeyValue)
}

// MaskKey 脱敏展示密钥，保留前 6 位与后 4 位
func MaskKey(key string) string {
	if len(key) <= 10 {
		return strings.Repeat("*", len(key))
	}
	return key[:6] + strings.Repeat("*", 4) + key[len(key)-4:]
}
