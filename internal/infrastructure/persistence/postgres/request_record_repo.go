// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
)

// RequestRecordRepository 请求审计记录仓储实现
type RequestRecordRepository struct {
	client *Client
}

// NewRequestRecordRepository 创建审计记录仓储
func NewRequestRecordRepository(client *Client) *RequestRecordRepository {
	return &RequestRecordRepository{client: client}
}

// Create 写入审计记录
func (r *RequestRecordRepository) Create(ctx context.Context, record *entity.RequestRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.RequestRecordRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(record).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create request record: %w", err)
	}
	return nil
}

// CreateChatTurn 写入对话轮次
func (r *RequestRecordRepository) CreateChatTurn(ctx context.Context, turn *entity.ChatTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.RequestRecordRepository.CreateChatTurn")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat turn: %w", err)
	}
	return nil
}

// ListBySession 按时间正序列出会话的对话轮次
func (r *RequestRecordRepository) ListBySession(ctx context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatTurn], error) {
	ctx, span := tracer.Start(ctx, "postgres.RequestRecordRepository.ListBySession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ChatTurn{}).Where("session_id = ?", sessionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat turns: %w", err)
	}

	var turns []*entity.ChatTurn
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}

	return repository.NewPagedResult(turns, total, pagination), nil
}
