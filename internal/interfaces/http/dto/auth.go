package dto

import (
	"github.com/shopspring/decimal"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse 令牌响应
type TokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user,omitempty"`
}

// UserResponse 用户信息
type UserResponse struct {
	ID                 string          `json:"id"`
	Email              string          `json:"email"`
	Name               string          `json:"name"`
	Role               string          `json:"role"`
	Credits            int             `json:"credits"`
	Balance            decimal.Decimal `json:"balance"`
	SubscriptionStatus string          `json:"subscription_status"`
}

// NewUserResponse 从实体构建用户信息
func NewUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.Name,
		Role:               string(user.Role),
		Credits:            user.Credits,
		Balance:            user.Balance,
		SubscriptionStatus: string(user.SubscriptionStatus),
	}
}
