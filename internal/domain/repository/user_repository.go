package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	// Create 创建用户
	Create(ctx context.Context, user *entity.User) error
	// GetByID 根据 ID 获取用户，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetByEmail 根据邮箱获取用户，不存在返回 (nil, nil)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// Update 更新用户
	Update(ctx context.Context, user *entity.User) error

	// DeductCredits 条件扣减积分，余额不足时返回 false 且不修改任何数据
	DeductCredits(ctx context.Context, userID string, amount int) (bool, error)
	// AddCredits 增加积分
	AddCredits(ctx context.Context, userID string, amount int) error
	// AddBalance 增加余额
	AddBalance(ctx context.Context, userID string, amount decimal.Decimal) error
	// DeductBalance 条件扣减余额，不足时返回 false 且不修改任何数据
	DeductBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error)
}
