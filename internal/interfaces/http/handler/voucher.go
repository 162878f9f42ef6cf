package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/application/voucher"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/interfaces/http/dto"
)

// VoucherHandler 券接口
type VoucherHandler struct {
	engine *voucher.Engine
}

// NewVoucherHandler 创建券接口
func NewVoucherHandler(engine *voucher.Engine) *VoucherHandler {
	return &VoucherHandler{engine: engine}
}

// Validate 校验券，无副作用
// POST /v1/vouchers/validate
func (h *VoucherHandler) Validate(c *gin.Context) {
	var req dto.ValidateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.Validate(c.Request.Context(), &voucher.ValidateInput{
		Code:            req.Code,
		UserID:          currentUserID(c),
		Amount:          req.Amount,
		TransactionType: entity.VoucherType(req.TransactionType),
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.ValidateVoucherResponse{
		Code:         result.Voucher.Code,
		Discount:     result.Discount,
		CreditBonus:  result.CreditBonus,
		BalanceBonus: result.BalanceBonus,
	})
}

// Redeem 兑换券奖励
// POST /v1/vouchers/redeem
func (h *VoucherHandler) Redeem(c *gin.Context) {
	var req dto.RedeemVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.Redeem(c.Request.Context(), req.Code, currentUserID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.RedeemVoucherResponse{
		VoucherID:      result.VoucherID,
		CreditsGranted: result.CreditsGranted,
		BalanceGranted: result.BalanceGranted,
	})
}

// Create 管理端创建券
// POST /v1/admin/vouchers
func (h *VoucherHandler) Create(c *gin.Context) {
	var req dto.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	v := req.ToEntity()
	if v.Type != entity.VoucherTypeCredit && v.Type != entity.VoucherTypeBalance {
		dto.BadRequest(c, "voucher type must be credit or balance")
		return
	}
	if !v.EndDate.After(v.StartDate) {
		dto.BadRequest(c, "end_date must be after start_date")
		return
	}

	if err := h.engine.CreateVoucher(c.Request.Context(), v); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.NewVoucherResponse(v))
}

// Deactivate 管理端停用券
// DELETE /v1/admin/vouchers/:id
func (h *VoucherHandler) Deactivate(c *gin.Context) {
	if err := h.engine.DeactivateVoucher(c.Request.Context(), c.Param("id")); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, gin.H{"deactivated": true})
}

// List 管理端分页列出券
// GET /v1/admin/vouchers
func (h *VoucherHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.engine.ListVouchers(c.Request.Context(), page, pageSize)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.NewVoucherResponses(result.Items), page, pageSize, result.Total)
}
