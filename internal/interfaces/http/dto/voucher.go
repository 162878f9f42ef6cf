package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// ValidateVoucherRequest 券校验请求
type ValidateVoucherRequest struct {
	Code            string          `json:"code" binding:"required"`
	TransactionType string          `json:"transaction_type" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
}

// ValidateVoucherResponse 券校验结果
type ValidateVoucherResponse struct {
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
	CreditBonus  int             `json:"credit_bonus"`
	BalanceBonus decimal.Decimal `json:"balance_bonus"`
}

// RedeemVoucherRequest 券兑换请求
type RedeemVoucherRequest struct {
	Code string `json:"code" binding:"required"`
}

// RedeemVoucherResponse 券兑换结果
type RedeemVoucherResponse struct {
	VoucherID      string          `json:"voucher_id"`
	CreditsGranted int             `json:"credits_granted"`
	BalanceGranted decimal.Decimal `json:"balance_granted"`
}

// CreateVoucherRequest 管理端创建券请求
type CreateVoucherRequest struct {
	Code                    string          `json:"code" binding:"required"`
	Type                    string          `json:"type" binding:"required"`
	DiscountType            string          `json:"discount_type"`
	DiscountValue           decimal.Decimal `json:"discount_value"`
	MaxDiscount             decimal.Decimal `json:"max_discount"`
	CreditBonus             int             `json:"credit_bonus"`
	BalanceBonus            decimal.Decimal `json:"balance_bonus"`
	MinAmount               decimal.Decimal `json:"min_amount"`
	MaxUses                 int             `json:"max_uses"`
	StartDate               time.Time       `json:"start_date" binding:"required"`
	EndDate                 time.Time       `json:"end_date" binding:"required"`
	AllowMultipleUsePerUser bool            `json:"allow_multiple_use_per_user"`
}

// ToEntity 构建券实体
func (r *CreateVoucherRequest) ToEntity() *entity.Voucher {
	voucher := entity.NewVoucher(r.Code, entity.VoucherType(r.Type), r.StartDate, r.EndDate)
	if r.DiscountType != "" {
		voucher.DiscountType = entity.DiscountType(r.DiscountType)
	}
	voucher.DiscountValue = r.DiscountValue
	voucher.MaxDiscount = r.MaxDiscount
	voucher.CreditBonus = r.CreditBonus
	voucher.BalanceBonus = r.BalanceBonus
	voucher.MinAmount = r.MinAmount
	voucher.MaxUses = r.MaxUses
	voucher.AllowMultipleUsePerUser = r.AllowMultipleUsePerUser
	return voucher
}

// VoucherResponse 券信息
type VoucherResponse struct {
	ID                      string          `json:"id"`
	Code                    string          `json:"code"`
	Type                    string          `json:"type"`
	DiscountType            string          `json:"discount_type"`
	DiscountValue           decimal.Decimal `json:"discount_value"`
	MaxDiscount             decimal.Decimal `json:"max_discount"`
	CreditBonus             int             `json:"credit_bonus"`
	BalanceBonus            decimal.Decimal `json:"balance_bonus"`
	MinAmount               decimal.Decimal `json:"min_amount"`
	MaxUses                 int             `json:"max_uses"`
	UsedCount               int             `json:"used_count"`
	StartDate               time.Time       `json:"start_date"`
	EndDate                 time.Time       `json:"end_date"`
	Active                  bool            `json:"active"`
	AllowMultipleUsePerUser bool            `json:"allow_multiple_use_per_user"`
	CreatedAt               time.Time       `json:"created_at"`
}

// NewVoucherResponse 从实体构建券信息
func NewVoucherResponse(v *entity.Voucher) *VoucherResponse {
	return &VoucherResponse{
		ID:                      v.ID,
		Code:                    v.Code,
		Type:                    string(v.Type),
		DiscountType:            string(v.DiscountType),
		DiscountValue:           v.DiscountValue,
		MaxDiscount:             v.MaxDiscount,
		CreditBonus:             v.CreditBonus,
		BalanceBonus:            v.BalanceBonus,
		MinAmount:               v.MinAmount,
		MaxUses:                 v.MaxUses,
		UsedCount:               v.UsedCount,
		StartDate:               v.StartDate,
		EndDate:                 v.EndDate,
		Active:                  v.Active,
		AllowMultipleUsePerUser: v.AllowMultipleUsePerUser,
		CreatedAt:               v.CreatedAt,
	}
}

// NewVoucherResponses 批量构建券信息
func NewVoucherResponses(vouchers []*entity.Voucher) []*VoucherResponse {
	out := make([]*VoucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, NewVoucherResponse(v))
	}
	return out
}
