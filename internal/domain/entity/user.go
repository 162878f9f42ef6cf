// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleMember UserRole = "member"
)

// SubscriptionStatus 订阅状态
type SubscriptionStatus string

const (
	SubscriptionStatusNone    SubscriptionStatus = "none"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// User 用户实体
// Credits 与 Balance 在任意时刻都不可为负，由条件更新保证。
type User struct {
	ID                 string             `json:"id" gorm:"type:uuid;primaryKey"`
	Email              string             `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash       string             `json:"-" gorm:"type:varchar(255);not null"`
	Name               string             `json:"name" gorm:"type:varchar(128)"`
	Role               UserRole           `json:"role" gorm:"type:varchar(16);not null;default:'member'"`
	Credits            int                `json:"credits" gorm:"not null;default:0"`
	Balance            decimal.Decimal    `json:"balance" gorm:"type:decimal(20,8);not null;default:0"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" gorm:"type:varchar(16);not null;default:'none'"`
	CreatedAt          time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// NewUser 创建新用户
func NewUser(email, name string) *User {
	now := time.Now()
	return &User{
		ID:                 uuid.New().String(),
		Email:              email,
		Name:               name,
		Role:               UserRoleMember,
		Credits:            0,
		Balance:            decimal.Zero,
		SubscriptionStatus: SubscriptionStatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IsAdmin 检查用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// SetPassword 设置并散列密码
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword 校验密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
