// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
)

// VoucherRepository 代金券仓储实现
type VoucherRepository struct {
	client *Client
}

// NewVoucherRepository 创建代金券仓储
func NewVoucherRepository(client *Client) *VoucherRepository {
	return &VoucherRepository{client: client}
}

// Create 创建代金券
func (r *VoucherRepository) Create(ctx context.Context, voucher *entity.Voucher) error {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(voucher).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取代金券
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var voucher entity.Voucher
	if err := db.First(&voucher, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return &voucher, nil
}

// GetByCode 根据券码获取代金券。券码入库时统一大写，查询前先归一化。
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*entity.Voucher, error) {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.GetByCode")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var voucher entity.Voucher
	if err := db.First(&voucher, "code = ?", entity.NormalizeVoucherCode(code)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get voucher by code: %w", err)
	}
	return &voucher, nil
}

// Update 更新代金券
func (r *VoucherRepository) Update(ctx context.Context, voucher *entity.Voucher) error {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(voucher).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update voucher: %w", err)
	}
	return nil
}

// List 分页列出代金券
func (r *VoucherRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Voucher], error) {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Voucher{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count vouchers: %w", err)
	}

	var vouchers []*entity.Voucher
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&vouchers).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}

	return repository.NewPagedResult(vouchers, total, pagination), nil
}

// IncrementUsedCount 原子递增已用次数。总量上限已满时零行受影响。
func (r *VoucherRepository) IncrementUsedCount(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.IncrementUsedCount")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Voucher{}).
		Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", id).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to increment voucher usage: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CreateRedemption 记录一次兑换
func (r *VoucherRepository) CreateRedemption(ctx context.Context, redemption *entity.VoucherRedemption) error {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.CreateRedemption")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(redemption).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create redemption: %w", err)
	}
	return nil
}

// CountRedemptionsByUser 统计用户对某券的兑换次数
func (r *VoucherRepository) CountRedemptionsByUser(ctx context.Context, voucherID, userID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.VoucherRepository.CountRedemptionsByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.VoucherRedemption{}).
		Where("voucher_id = ? AND user_id = ?", voucherID, userID).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}
