package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// BalanceResponse 资产快照
type BalanceResponse struct {
	Credits            int             `json:"credits"`
	Balance            decimal.Decimal `json:"balance"`
	SubscriptionStatus string          `json:"subscription_status"`
}

// ExchangeRequest 余额兑换积分请求
type ExchangeRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// ExchangeResponse 兑换结果
type ExchangeResponse struct {
	CreditsGranted int `json:"credits_granted"`
}

// LedgerEntryResponse 账本条目
type LedgerEntryResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	CreditDelta  int             `json:"credit_delta"`
	BalanceDelta decimal.Decimal `json:"balance_delta"`
	Status       string          `json:"status"`
	Description  string          `json:"description"`
	PaymentRef   string          `json:"payment_ref,omitempty"`
	VoucherID    *string         `json:"voucher_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewLedgerEntryResponses 批量构建账本条目
func NewLedgerEntryResponses(entries []*entity.LedgerEntry) []*LedgerEntryResponse {
	out := make([]*LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &LedgerEntryResponse{
			ID:           e.ID,
			Type:         string(e.Type),
			CreditDelta:  e.CreditDelta,
			BalanceDelta: e.BalanceDelta,
			Status:       string(e.Status),
			Description:  e.Description,
			PaymentRef:   e.PaymentRef,
			VoucherID:    e.VoucherID,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}
