package repository

import (
	"context"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// LedgerRepository 账本数据访问接口。条目只增不改。
type LedgerRepository interface {
	// CreateEntry 追加账本条目
	CreateEntry(ctx context.Context, entry *entity.LedgerEntry) error
	// ListByUser 按时间倒序分页获取用户账本
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.LedgerEntry], error)
	// ExistsByPaymentRef 检查支付引用是否已落账，用于回调排重
	ExistsByPaymentRef(ctx context.Context, paymentRef string) (bool, error)
}
