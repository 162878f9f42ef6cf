package repository

import (
	"context"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// RequestRecordRepository 请求审计记录数据访问接口
type RequestRecordRepository interface {
	// Create 写入审计记录
	Create(ctx context.Context, record *entity.RequestRecord) error
	// CreateChatTurn 写入成功问答的对话轮次
	CreateChatTurn(ctx context.Context, turn *entity.ChatTurn) error
	// ListBySession 按时间正序列出会话的对话轮次
	ListBySession(ctx context.Context, sessionID string, pagination Pagination) (*PagedResult[*entity.ChatTurn], error)
}
