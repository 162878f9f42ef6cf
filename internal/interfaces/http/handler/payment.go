package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/dto"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
)

// PaymentHandler 支付回调接口
type PaymentHandler struct {
	ledger        *ledger.Service
	webhookSecret string
}

// NewPaymentHandler 创建支付回调接口
func NewPaymentHandler(ledgerSvc *ledger.Service, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{ledger: ledgerSvc, webhookSecret: webhookSecret}
}

// Webhook 处理支付网关回调。
// 同一 payment_ref 重复投递只落账一次。
// POST /v1/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if h.webhookSecret != "" && !h.verifySignature(c, req.PaymentRef) {
		dto.Unauthorized(c, "invalid webhook signature")
		return
	}

	if req.GrantType == "credits" && req.Credits <= 0 {
		dto.BadRequest(c, "credits must be positive")
		return
	}
	if req.GrantType == "balance" && !req.Amount.IsPositive() {
		dto.BadRequest(c, "amount must be positive")
		return
	}

	credits := 0
	if req.GrantType == "credits" {
		credits = req.Credits
	}

	applied, err := h.ledger.ApplyPayment(c.Request.Context(), req.UserID, req.PaymentRef, credits, req.Amount)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	logger.Info(c.Request.Context(), "payment webhook processed",
		"payment_ref", req.PaymentRef, "applied", applied)
	dto.Success(c, &dto.PaymentWebhookResponse{PaymentRef: req.PaymentRef, Applied: applied})
}

// verifySignature 校验回调签名，payment_ref 的 HMAC-SHA256
func (h *PaymentHandler) verifySignature(c *gin.Context, paymentRef string) bool {
	given := c.GetHeader("X-Webhook-Signature")
	if given == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write([]byte(paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(given), []byte(expected))
}
