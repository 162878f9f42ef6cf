// Package voucher 实现促销码校验与兑换
package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
	"github.com/mygads/genovaai-server-sub000/pkg/metrics"
)

var tracer = otel.Tracer("voucher")

// ValidateInput 校验入参
type ValidateInput struct {
	Code            string
	UserID          string
	Amount          decimal.Decimal
	TransactionType entity.VoucherType
}

// ValidateResult 校验结果，无副作用
type ValidateResult struct {
	Voucher      *entity.Voucher `json:"voucher"`
	Discount     decimal.Decimal `json:"discount"`
	CreditBonus  int             `json:"credit_bonus"`
	BalanceBonus decimal.Decimal `json:"balance_bonus"`
}

// RedeemResult 兑换结果
type RedeemResult struct {
	VoucherID      string          `json:"voucher_id"`
	CreditsGranted int             `json:"credits_granted"`
	BalanceGranted decimal.Decimal `json:"balance_granted"`
}

// Engine 券引擎
type Engine struct {
	vouchers repository.VoucherRepository
	ledger   *ledger.Service
	tx       repository.Transactor
}

// NewEngine 创建券引擎
func NewEngine(vouchers repository.VoucherRepository, ledgerSvc *ledger.Service, tx repository.Transactor) *Engine {
	return &Engine{vouchers: vouchers, ledger: ledgerSvc, tx: tx}
}

// Validate 校验券，首个不满足的条件立即返回，不产生任何副作用。
// 检查顺序固定：存在与窗口、类型、最低金额、用量上限、单用户复用。
func (e *Engine) Validate(ctx context.Context, input *ValidateInput) (*ValidateResult, error) {
	ctx, span := tracer.Start(ctx, "voucher.Engine.Validate")
	defer span.End()

	voucher, err := e.loadActive(ctx, input.Code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if voucher.Type != input.TransactionType {
		return nil, errors.New(errors.CodeVoucherTypeMismatch,
			fmt.Sprintf("voucher applies to %s transactions only", voucher.Type))
	}
	if voucher.MinAmount.IsPositive() && input.Amount.LessThan(voucher.MinAmount) {
		return nil, errors.New(errors.CodeVoucherBelowMinimum,
			fmt.Sprintf("minimum amount for this voucher is %s", voucher.MinAmount.String()))
	}
	if err := e.usageGuards(ctx, voucher, input.UserID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &ValidateResult{
		Voucher:      voucher,
		Discount:     voucher.Discount(input.Amount),
		CreditBonus:  voucher.CreditBonus,
		BalanceBonus: voucher.BalanceBonus,
	}, nil
}

// Redeem 直接兑换券的奖励。
// 计数自增、兑换记录与账本增账在同一事务内完成。
func (e *Engine) Redeem(ctx context.Context, code, userID string) (*RedeemResult, error) {
	ctx, span := tracer.Start(ctx, "voucher.Engine.Redeem")
	defer span.End()

	voucher, err := e.loadActive(ctx, code)
	if err == nil {
		err = e.usageGuards(ctx, voucher, userID)
	}
	if err != nil {
		span.RecordError(err)
		metrics.VoucherRedemptionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// 纯折扣券只能在支付流程中使用，不支持独立兑换
	if !voucher.HasBonus() {
		metrics.VoucherRedemptionsTotal.WithLabelValues("rejected").Inc()
		return nil, errors.New(errors.CodeVoucherNotRedeemable,
			"this voucher only applies as a payment discount")
	}

	result := &RedeemResult{
		VoucherID:      voucher.ID,
		CreditsGranted: voucher.CreditBonus,
		BalanceGranted: voucher.BalanceBonus,
	}

	err = e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// 上限约束下的原子自增挡住并发超发
		ok, err := e.vouchers.IncrementUsedCount(ctx, voucher.ID)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to update voucher usage")
		}
		if !ok {
			return errors.New(errors.CodeVoucherExhausted, "voucher usage limit reached")
		}

		// 自增已锁定券行，并发的同券兑换在此串行化；
		// 事务外的单用户检查可能与并发提交交错，锁内必须重查一次
		if !voucher.AllowMultipleUsePerUser {
			count, err := e.vouchers.CountRedemptionsByUser(ctx, voucher.ID, userID)
			if err != nil {
				return errors.Wrap(err, errors.CodeDatabaseError, "failed to check redemptions")
			}
			if count > 0 {
				return errors.New(errors.CodeVoucherAlreadyUsed, "voucher already used by this account")
			}
		}

		redemption := entity.NewVoucherRedemption(voucher.ID, userID, voucher.CreditBonus, voucher.BalanceBonus)
		if err := e.vouchers.CreateRedemption(ctx, redemption); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to record redemption")
		}

		link := &ledger.Link{VoucherID: voucher.ID}
		desc := fmt.Sprintf("voucher %s redeemed", voucher.Code)
		if voucher.CreditBonus > 0 {
			if err := e.ledger.AddCredits(ctx, userID, voucher.CreditBonus, entity.LedgerEntryTypeBonus, desc, link); err != nil {
				return err
			}
		}
		if voucher.BalanceBonus.IsPositive() {
			if err := e.ledger.AddBalance(ctx, userID, voucher.BalanceBonus, entity.LedgerEntryTypeBonus, desc, link); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		span.RecordError(err)
		metrics.VoucherRedemptionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.VoucherRedemptionsTotal.WithLabelValues("ok").Inc()
	logger.Info(ctx, "voucher redeemed",
		"voucher_id", voucher.ID, "user_id", userID,
		"credits", result.CreditsGranted, "balance", result.BalanceGranted.String())
	return result, nil
}

// loadActive 加载券并检查存在、启用与有效期
func (e *Engine) loadActive(ctx context.Context, code string) (*entity.Voucher, error) {
	voucher, err := e.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load voucher")
	}
	if voucher == nil {
		return nil, errors.New(errors.CodeVoucherNotFound, "voucher code not found")
	}
	if !voucher.Active {
		return nil, errors.New(errors.CodeVoucherInactive, "voucher is no longer active")
	}
	if !voucher.InWindow(time.Now()) {
		return nil, errors.New(errors.CodeVoucherExpired, "voucher is outside its validity window")
	}
	return voucher, nil
}

// usageGuards 检查用量上限与单用户复用。
// 事务外调用仅为快速失败，权威判定在 Redeem 的事务内
func (e *Engine) usageGuards(ctx context.Context, voucher *entity.Voucher, userID string) error {
	if voucher.Exhausted() {
		return errors.New(errors.CodeVoucherExhausted, "voucher usage limit reached")
	}

	if !voucher.AllowMultipleUsePerUser {
		count, err := e.vouchers.CountRedemptionsByUser(ctx, voucher.ID, userID)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to check redemptions")
		}
		if count > 0 {
			return errors.New(errors.CodeVoucherAlreadyUsed, "voucher already used by this account")
		}
	}
	return nil
}

// CreateVoucher 管理端创建券
func (e *Engine) CreateVoucher(ctx context.Context, voucher *entity.Voucher) error {
	ctx, span := tracer.Start(ctx, "voucher.Engine.CreateVoucher")
	span.SetAttributes(attribute.String("voucher.code", voucher.Code))
	defer span.End()

	existing, err := e.vouchers.GetByCode(ctx, voucher.Code)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to check voucher code")
	}
	if existing != nil {
		return errors.New(errors.CodeConflict, "voucher code already exists")
	}

	if err := e.vouchers.Create(ctx, voucher); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to create voucher")
	}
	return nil
}

// DeactivateVoucher 管理端停用券
func (e *Engine) DeactivateVoucher(ctx context.Context, voucherID string) error {
	ctx, span := tracer.Start(ctx, "voucher.Engine.DeactivateVoucher")
	defer span.End()

	voucher, err := e.vouchers.GetByID(ctx, voucherID)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to load voucher")
	}
	if voucher == nil {
		return errors.New(errors.CodeVoucherNotFound, "voucher not found")
	}

	voucher.Active = false
	if err := e.vouchers.Update(ctx, voucher); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to deactivate voucher")
	}
	return nil
}

// ListVouchers 管理端分页列出券
func (e *Engine) ListVouchers(ctx context.Context, page, pageSize int) (*repository.PagedResult[*entity.Voucher], error) {
	ctx, span := tracer.Start(ctx, "voucher.Engine.ListVouchers")
	defer span.End()

	result, err := e.vouchers.List(ctx, repository.NewPagination(page, pageSize))
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list vouchers")
	}
	return result, nil
}
