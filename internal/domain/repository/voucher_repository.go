package repository

import (
	"context"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// VoucherRepository 代金券数据访问接口
type VoucherRepository interface {
	// Create 创建代金券
	Create(ctx context.Context, voucher *entity.Voucher) error
	// GetByID 根据 ID 获取代金券，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Voucher, error)
	// GetByCode 根据券码获取代金券（大小写不敏感），不存在返回 (nil, nil)
	GetByCode(ctx context.Context, code string) (*entity.Voucher, error)
	// Update 更新代金券
	Update(ctx context.Context, voucher *entity.Voucher) error
	// List 分页列出代金券
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Voucher], error)

	// IncrementUsedCount 原子递增已用次数，超出总量上限时返回 false 且不修改
	IncrementUsedCount(ctx context.Context, id string) (bool, error)
	// CreateRedemption 记录一次兑换
	CreateRedemption(ctx context.Context, redemption *entity.VoucherRedemption) error
	// CountRedemptionsByUser 统计用户对某券的兑换次数
	CountRedemptionsByUser(ctx context.Context, voucherID, userID string) (int64, error)
}
