// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// KnowledgeFileRepository 知识文件仓储实现
type KnowledgeFileRepository struct {
	client *Client
}

// NewKnowledgeFileRepository 创建知识文件仓储
func NewKnowledgeFileRepository(client *Client) *KnowledgeFileRepository {
	return &KnowledgeFileRepository{client: client}
}

// GetByIDs 获取用户名下的指定知识文件。结果按入参顺序无保证，缺失的 ID 静默跳过。
func (r *KnowledgeFileRepository) GetByIDs(ctx context.Context, userID string, ids []string) ([]*entity.KnowledgeFile, error) {
	ctx, span := tracer.Start(ctx, "postgres.KnowledgeFileRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var files []*entity.KnowledgeFile
	if err := db.Where("user_id = ? AND id IN ?", userID, ids).
		Find(&files).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get knowledge files: %w", err)
	}
	return files, nil
}
