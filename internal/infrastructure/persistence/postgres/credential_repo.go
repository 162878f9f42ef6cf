// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// CredentialRepository 上游凭证仓储实现
type CredentialRepository struct {
	client *Client
}

// NewCredentialRepository 创建凭证仓储
func NewCredentialRepository(client *Client) *CredentialRepository {
	return &CredentialRepository{client: client}
}

// Create 创建凭证
func (r *CredentialRepository) Create(ctx context.Context, cred *entity.ApiCredential) error {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(cred).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取凭证
func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var cred entity.ApiCredential
	if err := db.First(&cred, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// Delete 删除凭证
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.ApiCredential{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// ListByOwner 列出用户自备凭证
func (r *CredentialRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.ListByOwner")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var creds []*entity.ApiCredential
	if err := db.Where("owner_user_id = ?", ownerUserID).
		Order("created_at ASC").
		Find(&creds).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// ExistsByKeyValue 同一归属下是否已存在相同密钥
func (r *CredentialRepository) ExistsByKeyValue(ctx context.Context, ownerUserID *string, keyValue string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.ExistsByKeyValue")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ApiCredential{}).Where("key_value = ?", keyValue)
	if ownerUserID == nil {
		query = query.Where("owner_user_id IS NULL")
	} else {
		query = query.Where("owner_user_id = ?", *ownerUserID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check credential exists: %w", err)
	}
	return count > 0, nil
}

// SelectBestOwned 选取用户自备的最优可用凭证。
// 当日用量达到上限的凭证跳过，用量日期早于今天的视为未用。
func (r *CredentialRepository) SelectBestOwned(ctx context.Context, ownerUserID string, today time.Time, dailyLimit int, excludeIDs []string) (*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.SelectBestOwned")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Where("owner_user_id = ? AND status = ?", ownerUserID, entity.CredentialStatusActive).
		Where("usage_date IS NULL OR usage_date < ? OR daily_usage < ?", today, dailyLimit)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	var cred entity.ApiCredential
	err := query.Order("priority ASC, daily_usage ASC, created_at ASC").First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to select owned credential: %w", err)
	}
	return &cred, nil
}

// SelectBestShared 选取共享池中的最优可用凭证，排除本次请求已失败的凭证
func (r *CredentialRepository) SelectBestShared(ctx context.Context, today time.Time, dailyLimit int, excludeIDs []string) (*entity.ApiCredential, error) {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.SelectBestShared")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Where("owner_user_id IS NULL AND status = ?", entity.CredentialStatusActive).
		Where("usage_date IS NULL OR usage_date < ? OR daily_usage < ?", today, dailyLimit)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	var cred entity.ApiCredential
	err := query.Order("priority ASC, daily_usage ASC, created_at ASC").First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to select shared credential: %w", err)
	}
	return &cred, nil
}

// ReactivateStale 将用量日期早于今天的限流凭证恢复为可用
func (r *CredentialRepository) ReactivateStale(ctx context.Context, today time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.ReactivateStale")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.ApiCredential{}).
		Where("status = ? AND usage_date IS NOT NULL AND usage_date < ?", entity.CredentialStatusRateLimited, today).
		Updates(map[string]interface{}{
			"status":      entity.CredentialStatusActive,
			"daily_usage": 0,
			"last_error":  "",
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to reactivate credentials: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RecordUsage 原子递增当日用量。跨天时重置为 1。
func (r *CredentialRepository) RecordUsage(ctx context.Context, id string, today time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.RecordUsage")
	defer span.End()

	db := getDB(ctx, r.client.db)
	for attempt := 0; attempt < 2; attempt++ {
		result := db.Model(&entity.ApiCredential{}).
			Where("id = ? AND usage_date = ?", id, today).
			Update("daily_usage", gorm.Expr("daily_usage + 1"))
		if result.Error != nil {
			span.RecordError(result.Error)
			return fmt.Errorf("failed to record usage: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}

		// 当日首次使用才允许重置，避免覆盖并发已写入的当日计数
		result = db.Model(&entity.ApiCredential{}).
			Where("id = ? AND (usage_date IS NULL OR usage_date < ?)", id, today).
			Updates(map[string]interface{}{
				"usage_date":  today,
				"daily_usage": 1,
			})
		if result.Error != nil {
			span.RecordError(result.Error)
			return fmt.Errorf("failed to reset usage: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}
		// 重置落空说明其他请求刚完成了跨天重置，回到递增路径
	}
	return fmt.Errorf("credential not found: %s", id)
}

// UpdateStatus 更新凭证状态与最近错误
func (r *CredentialRepository) UpdateStatus(ctx context.Context, id string, status entity.CredentialStatus, lastError string) error {
	ctx, span := tracer.Start(ctx, "postgres.CredentialRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.ApiCredential{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update credential status: %w", result.Error)
	}
	return nil
}
