// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
)

// LedgerRepository 账本仓储实现。只提供追加与查询，不提供修改。
type LedgerRepository struct {
	client *Client
}

// NewLedgerRepository 创建账本仓储
func NewLedgerRepository(client *Client) *LedgerRepository {
	return &LedgerRepository{client: client}
}

// CreateEntry 追加账本条目
func (r *LedgerRepository) CreateEntry(ctx context.Context, entry *entity.LedgerEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.CreateEntry")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(entry).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// ListByUser 按时间倒序分页获取用户账本
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.LedgerEntry], error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.LedgerEntry{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var entries []*entity.LedgerEntry
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&entries).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return repository.NewPagedResult(entries, total, pagination), nil
}

// ExistsByPaymentRef 检查支付引用是否已落账
func (r *LedgerRepository) ExistsByPaymentRef(ctx context.Context, paymentRef string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.ExistsByPaymentRef")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.LedgerEntry{}).
		Where("payment_ref = ?", paymentRef).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check payment ref: %w", err)
	}
	return count > 0, nil
}
