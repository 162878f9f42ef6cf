package repository

import (
	"context"
	"time"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// CredentialRepository 上游凭证数据访问接口
type CredentialRepository interface {
	// Create 创建凭证
	Create(ctx context.Context, cred *entity.ApiCredential) error
	// GetByID 根据 ID 获取凭证，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.ApiCredential, error)
	// Delete 删除凭证
	Delete(ctx context.Context, id string) error
	// ListByOwner 列出用户自备凭证
	ListByOwner(ctx context.Context, ownerUserID string) ([]*entity.ApiCredential, error)
	// ExistsByKeyValue 同一归属下是否已存在相同密钥
	ExistsByKeyValue(ctx context.Context, ownerUserID *string, keyValue string) (bool, error)

	// SelectBestOwned 选取用户自备的最优可用凭证，排除指定 ID，无可用时返回 (nil, nil)
	SelectBestOwned(ctx context.Context, ownerUserID string, today time.Time, dailyLimit int, excludeIDs []string) (*entity.ApiCredential, error)
	// SelectBestShared 选取共享池中的最优可用凭证，排除指定 ID，无可用时返回 (nil, nil)
	SelectBestShared(ctx context.Context, today time.Time, dailyLimit int, excludeIDs []string) (*entity.ApiCredential, error)
	// ReactivateStale 将用量日期早于今天的限流凭证恢复为可用，返回恢复数量
	ReactivateStale(ctx context.Context, today time.Time) (int64, error)

	// RecordUsage 原子递增当日用量，跨天时先重置
	RecordUsage(ctx context.Context, id string, today time.Time) error
	// UpdateStatus 更新凭证状态与最近错误
	UpdateStatus(ctx context.Context, id string, status entity.CredentialStatus, lastError string) error
}
