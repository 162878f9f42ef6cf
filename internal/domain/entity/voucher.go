// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherType 券类型，决定兑换落账的资源
type VoucherType string

const (
	VoucherTypeCredit  VoucherType = "credit"
	VoucherTypeBalance VoucherType = "balance"
)

// DiscountType 折扣计算方式
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// Voucher 促销码
// UsedCount 只允许在上限约束下做原子自增。
type Voucher struct {
	ID                      string          `json:"id" gorm:"type:uuid;primaryKey"`
	Code                    string          `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"`
	Type                    VoucherType     `json:"type" gorm:"type:varchar(16);not null"`
	DiscountType            DiscountType    `json:"discount_type" gorm:"type:varchar(16);not null;default:'fixed'"`
	DiscountValue           decimal.Decimal `json:"discount_value" gorm:"type:decimal(20,8);not null;default:0"`
	MaxDiscount             decimal.Decimal `json:"max_discount" gorm:"type:decimal(20,8);not null;default:0"`
	CreditBonus             int             `json:"credit_bonus" gorm:"not null;default:0"`
	BalanceBonus            decimal.Decimal `json:"balance_bonus" gorm:"type:decimal(20,8);not null;default:0"`
	MinAmount               decimal.Decimal `json:"min_amount" gorm:"type:decimal(20,8);not null;default:0"`
	MaxUses                 int             `json:"max_uses" gorm:"not null;default:0"`
	UsedCount               int             `json:"used_count" gorm:"not null;default:0"`
	StartDate               time.Time       `json:"start_date" gorm:"not null"`
	EndDate                 time.Time       `json:"end_date" gorm:"not null"`
	Active                  bool            `json:"active" gorm:"not null;default:true"`
	AllowMultipleUsePerUser bool            `json:"allow_multiple_use_per_user" gorm:"not null;default:false"`
	CreatedAt               time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt               time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Voucher) TableName() string {
	return "vouchers"
}

// NewVoucher 创建券，code 统一大写存储以支持大小写不敏感匹配
func NewVoucher(code string, voucherType VoucherType, start, end time.Time) *Voucher {
	now := time.Now()
	return &Voucher{
		ID:           uuid.New().String(),
		Code:         NormalizeVoucherCode(code),
		Type:         voucherType,
		DiscountType: DiscountTypeFixed,
		StartDate:    start,
		EndDate:      end,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeVoucherCode 规范化券码
func NormalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InWindow 是否处于有效期内
func (v *Voucher) InWindow(now time.Time) bool {
	return !now.Before(v.StartDate) && !now.After(v.EndDate)
}

// Exhausted 使用次数是否已达上限（MaxUses=0 表示不限）
func (v *Voucher) Exhausted() bool {
	return v.MaxUses > 0 && v.UsedCount >= v.MaxUses
}

// HasBonus 是否携带任一奖励（纯折扣券不可直接兑换）
func (v *Voucher) HasBonus() bool {
	return v.CreditBonus > 0 || v.BalanceBonus.IsPositive()
}

// Discount 计算给定金额的折扣，奖励字段与折扣互不影响
func (v *Voucher) Discount(amount decimal.Decimal) decimal.Decimal {
	switch v.DiscountType {
	case DiscountTypePercentage:
		d := amount.Mul(v.DiscountValue).Div(decimal.NewFromInt(100))
		if v.MaxDiscount.IsPositive() && d.GreaterThan(v.MaxDiscount) {
			return v.MaxDiscount
		}
		return d
	case DiscountTypeFixed:
		return v.DiscountValue
	default:
		return decimal.Zero
	}
}

// VoucherRedemption 单次兑换记录，每券每次使用一行。
// 某券的行数必须等于其 UsedCount。
type VoucherRedemption struct {
	ID             string          `json:"id" gorm:"type:uuid;primaryKey"`
	VoucherID      string          `json:"voucher_id" gorm:"type:uuid;index;not null"`
	UserID         string          `json:"user_id" gorm:"type:uuid;index;not null"`
	CreditsGranted int             `json:"credits_granted" gorm:"not null;default:0"`
	BalanceGranted decimal.Decimal `json:"balance_granted" gorm:"type:decimal(20,8);not null;default:0"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (VoucherRedemption) TableName() string {
	return "voucher_redemptions"
}

// NewVoucherRedemption 创建兑换记录
func NewVoucherRedemption(voucherID, userID string, credits int, balance decimal.Decimal) *VoucherRedemption {
	return &VoucherRedemption{
		ID:             uuid.New().String(),
		VoucherID:      voucherID,
		UserID:         userID,
		CreditsGranted: credits,
		BalanceGranted: balance,
		CreatedAt:      time.Now(),
	}
}
