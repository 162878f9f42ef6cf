// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// UserRepository 用户仓储实现
type UserRepository struct {
	client *Client
}

// NewUserRepository 创建用户仓储
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(user).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var user entity.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByEmail")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var user entity.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(user).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeductCredits 条件扣减积分。条件不满足时零行受影响，数据保持不变。
func (r *UserRepository) DeductCredits(ctx context.Context, userID string, amount int) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.DeductCredits")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.User{}).
		Where("id = ? AND credits >= ?", userID, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to deduct credits: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AddCredits 增加积分
func (r *UserRepository) AddCredits(ctx context.Context, userID string, amount int) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.AddCredits")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to add credits: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// AddBalance 增加余额
func (r *UserRepository) AddBalance(ctx context.Context, userID string, amount decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.AddBalance")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to add balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// DeductBalance 条件扣减余额。条件不满足时零行受影响，数据保持不变。
func (r *UserRepository) DeductBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.DeductBalance")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to deduct balance: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
