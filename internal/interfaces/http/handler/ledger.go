package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/dto"
)

// LedgerHandler 资产与账本接口
type LedgerHandler struct {
	svc *ledger.Service
}

// NewLedgerHandler 创建账本接口
func NewLedgerHandler(svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// GetBalance 获取资产快照
// GET /v1/ledger/balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	balance, err := h.svc.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.BalanceResponse{
		Credits:            balance.Credits,
		Balance:            balance.Balance,
		SubscriptionStatus: string(balance.SubscriptionStatus),
	})
}

// GetTransactions 分页获取账本历史
// GET /v1/ledger/transactions
func (h *LedgerHandler) GetTransactions(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.svc.GetTransactionHistory(c.Request.Context(), currentUserID(c), page, pageSize)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.NewLedgerEntryResponses(result.Items), page, pageSize, result.Total)
}

// Exchange 余额兑换积分
// POST /v1/ledger/exchange
func (h *LedgerHandler) Exchange(c *gin.Context) {
	var req dto.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	credits, err := h.svc.ExchangeBalanceToCredits(c.Request.Context(), currentUserID(c), req.Amount)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.ExchangeResponse{CreditsGranted: credits})
}
