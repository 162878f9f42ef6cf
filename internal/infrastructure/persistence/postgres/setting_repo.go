// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// SettingRepository 系统配置仓储实现
type SettingRepository struct {
	client *Client
}

// NewSettingRepository 创建系统配置仓储
func NewSettingRepository(client *Client) *SettingRepository {
	return &SettingRepository{client: client}
}

// Get 根据键获取配置项
func (r *SettingRepository) Get(ctx context.Context, key string) (*entity.Setting, error) {
	ctx, span := tracer.Start(ctx, "postgres.SettingRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var setting entity.Setting
	if err := db.First(&setting, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return &setting, nil
}

// Set 写入配置项，已存在时更新
func (r *SettingRepository) Set(ctx context.Context, setting *entity.Setting) error {
	ctx, span := tracer.Start(ctx, "postgres.SettingRepository.Set")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
