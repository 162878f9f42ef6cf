package repository

import (
	"context"
	"time"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// SessionRepository 会话配置数据访问接口
type SessionRepository interface {
	// Create 创建会话
	Create(ctx context.Context, session *entity.QASession) error
	// GetByID 根据 ID 获取会话，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.QASession, error)
	// Update 更新会话
	Update(ctx context.Context, session *entity.QASession) error
	// TouchLastUsed 更新会话最近使用时间
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	// ListByUser 列出用户会话
	ListByUser(ctx context.Context, userID string) ([]*entity.QASession, error)
}
