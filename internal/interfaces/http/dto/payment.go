package dto

import "github.com/shopspring/decimal"

// PaymentWebhookRequest 支付网关回调。
// 按 grant_type 决定落账到余额还是积分，payment_ref 用于账本关联与排重。
type PaymentWebhookRequest struct {
	UserID     string          `json:"user_id" binding:"required,uuid"`
	PaymentRef string          `json:"payment_ref" binding:"required"`
	GrantType  string          `json:"grant_type" binding:"required,oneof=balance credits"`
	Amount     decimal.Decimal `json:"amount"`
	Credits    int             `json:"credits"`
}

// PaymentWebhookResponse 回调处理结果
type PaymentWebhookResponse struct {
	PaymentRef string `json:"payment_ref"`
	Applied    bool   `json:"applied"`
}
