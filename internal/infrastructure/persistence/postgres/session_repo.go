// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// SessionRepository 会话配置仓储实现
type SessionRepository struct {
	client *Client
}

// NewSessionRepository 创建会话仓储
func NewSessionRepository(client *Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Create 创建会话
func (r *SessionRepository) Create(ctx context.Context, session *entity.QASession) error {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取会话
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entity.QASession, error) {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.QASession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// Update 更新会话
func (r *SessionRepository) Update(ctx context.Context, session *entity.QASession) error {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// TouchLastUsed 更新会话最近使用时间
func (r *SessionRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.TouchLastUsed")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.QASession{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// ListByUser 列出用户会话
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.QASession, error) {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var sessions []*entity.QASession
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
