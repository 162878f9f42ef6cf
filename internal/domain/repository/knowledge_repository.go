package repository

import (
	"context"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// KnowledgeFileRepository 知识文件数据访问接口（只读）
type KnowledgeFileRepository interface {
	// GetByIDs 获取用户名下的指定知识文件，忽略不存在或不属于该用户的 ID
	GetByIDs(ctx context.Context, userID string, ids []string) ([]*entity.KnowledgeFile, error)
}
