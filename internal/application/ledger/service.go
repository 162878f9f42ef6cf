// Package ledger 实现积分与余额账本
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/redis"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
	"github.com/mygads/genovaai-server-sub000/pkg/metrics"
)

var tracer = otel.Tracer("ledger")

// Link 账本条目的外部关联
type Link struct {
	PaymentRef string
	VoucherID  string
}

// Balance 用户资产快照
type Balance struct {
	UserID             string                    `json:"user_id"`
	Credits            int                       `json:"credits"`
	Balance            decimal.Decimal           `json:"balance"`
	SubscriptionStatus entity.SubscriptionStatus `json:"subscription_status"`
}

// Service 账本服务。
// 所有扣减都走条件更新，余额与积分在任何并发序列下不会为负。
type Service struct {
	users    repository.UserRepository
	entries  repository.LedgerRepository
	creds    repository.CredentialRepository
	settings repository.SettingRepository
	tx       repository.Transactor
	cache    *redis.Cache
	cfg      *config.LedgerConfig
}

// NewService 创建账本服务
func NewService(
	users repository.UserRepository,
	entries repository.LedgerRepository,
	creds repository.CredentialRepository,
	settings repository.SettingRepository,
	tx repository.Transactor,
	cache *redis.Cache,
	cfg *config.LedgerConfig,
) *Service {
	return &Service{
		users:    users,
		entries:  entries,
		creds:    creds,
		settings: settings,
		tx:       tx,
		cache:    cache,
		cfg:      cfg,
	}
}

// GetBalance 获取用户资产快照
func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	ctx, span := tracer.Start(ctx, "ledger.Service.GetBalance")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load user")
	}
	if user == nil {
		return nil, errors.New(errors.CodeNotFound, "user not found")
	}

	return &Balance{
		UserID:             user.ID,
		Credits:            user.Credits,
		Balance:            user.Balance,
		SubscriptionStatus: user.SubscriptionStatus,
	}, nil
}

// CanMakeRequest 按模式检查权益，满足返回 nil
func (s *Service) CanMakeRequest(ctx context.Context, userID string, mode entity.RequestMode) error {
	ctx, span := tracer.Start(ctx, "ledger.Service.CanMakeRequest")
	span.SetAttributes(attribute.String("qa.mode", string(mode)))
	defer span.End()

	switch mode {
	case entity.RequestModeFreeUserKey:
		creds, err := s.creds.ListByOwner(ctx, userID)
		if err != nil {
			span.RecordError(err)
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to load credentials")
		}
		for _, c := range creds {
			if c.IsSelectable() {
				return nil
			}
		}
		return errors.New(errors.CodeNoCredential, "add your own API key to use this mode")

	case entity.RequestModeFreePool:
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			span.RecordError(err)
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to load user")
		}
		if user == nil {
			return errors.New(errors.CodeNotFound, "user not found")
		}
		if user.Balance.IsPositive() || user.Credits >= 1 {
			return nil
		}
		return errors.New(errors.CodeInsufficientBalance, "top up balance or credits to use the shared pool")

	case entity.RequestModePremium:
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			span.RecordError(err)
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to load user")
		}
		if user == nil {
			return errors.New(errors.CodeNotFound, "user not found")
		}
		if user.Credits >= 1 {
			return nil
		}
		return errors.ErrInsufficientCredits

	default:
		return errors.New(errors.CodeInvalidParam, fmt.Sprintf("unknown request mode: %s", mode))
	}
}

// DeductCredits 原子扣减积分并落账。
// 余额不足时整个操作无任何副作用。
func (s *Service) DeductCredits(ctx context.Context, userID string, amount int, description string) error {
	ctx, span := tracer.Start(ctx, "ledger.Service.DeductCredits")
	span.SetAttributes(attribute.Int("ledger.amount", amount))
	defer span.End()

	if amount <= 0 {
		return errors.New(errors.CodeInvalidParam, "deduction amount must be positive")
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.users.DeductCredits(ctx, userID, amount)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to deduct credits")
		}
		if !ok {
			return errors.ErrInsufficientCredits
		}

		entry := entity.NewLedgerEntry(userID, entity.LedgerEntryTypeConsumption, -amount, decimal.Zero, description)
		if err := s.entries.CreateEntry(ctx, entry); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to write ledger entry")
		}
		return nil
	})

	s.recordOp("deduct_credits", err)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// AddCredits 原子增加积分并落账
func (s *Service) AddCredits(ctx context.Context, userID string, amount int, entryType entity.LedgerEntryType, description string, link *Link) error {
	ctx, span := tracer.Start(ctx, "ledger.Service.AddCredits")
	span.SetAttributes(attribute.Int("ledger.amount", amount))
	defer span.End()

	if amount <= 0 {
		return errors.New(errors.CodeInvalidParam, "credit amount must be positive")
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.AddCredits(ctx, userID, amount); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to add credits")
		}
		entry := entity.NewLedgerEntry(userID, entryType, amount, decimal.Zero, description)
		applyLink(entry, link)
		if err := s.entries.CreateEntry(ctx, entry); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to write ledger entry")
		}
		return nil
	})

	s.recordOp("add_credits", err)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// AddBalance 原子增加余额并落账
func (s *Service) AddBalance(ctx context.Context, userID string, amount decimal.Decimal, entryType entity.LedgerEntryType, description string, link *Link) error {
	ctx, span := tracer.Start(ctx, "ledger.Service.AddBalance")
	span.SetAttributes(attribute.String("ledger.amount", amount.String()))
	defer span.End()

	if !amount.IsPositive() {
		return errors.New(errors.CodeInvalidParam, "balance amount must be positive")
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.AddBalance(ctx, userID, amount); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to add balance")
		}
		entry := entity.NewLedgerEntry(userID, entryType, 0, amount, description)
		applyLink(entry, link)
		if err := s.entries.CreateEntry(ctx, entry); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to write ledger entry")
		}
		return nil
	})

	s.recordOp("add_balance", err)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ExchangeBalanceToCredits 按配置比率将余额兑换为积分。
// 只扣除整数积分对应的余额，零头留在余额中。两种资产各落一条账。
func (s *Service) ExchangeBalanceToCredits(ctx context.Context, userID string, amount decimal.Decimal) (int, error) {
	ctx, span := tracer.Start(ctx, "ledger.Service.ExchangeBalanceToCredits")
	span.SetAttributes(attribute.String("ledger.amount", amount.String()))
	defer span.End()

	rate, err := s.exchangeRate(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if amount.LessThan(rate) {
		return 0, errors.New(errors.CodeExchangeBelowRate,
			fmt.Sprintf("minimum exchange amount is %s", rate.String()))
	}

	credits := int(amount.Div(rate).IntPart())
	deducted := rate.Mul(decimal.NewFromInt(int64(credits)))

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.users.DeductBalance(ctx, userID, deducted)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to deduct balance")
		}
		if !ok {
			return errors.ErrInsufficientBalance
		}
		if err := s.users.AddCredits(ctx, userID, credits); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to add credits")
		}

		out := entity.NewLedgerEntry(userID, entity.LedgerEntryTypeExchangeOut, 0, deducted.Neg(),
			fmt.Sprintf("exchange %s balance for %d credits", deducted.String(), credits))
		if err := s.entries.CreateEntry(ctx, out); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to write ledger entry")
		}

		in := entity.NewLedgerEntry(userID, entity.LedgerEntryTypeExchangeIn, credits, decimal.Zero,
			fmt.Sprintf("credits received for %s balance", deducted.String()))
		if err := s.entries.CreateEntry(ctx, in); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to write ledger entry")
		}
		return nil
	})

	s.recordOp("exchange", err)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	logger.Info(ctx, "balance exchanged for credits",
		"user_id", userID, "credits", credits, "deducted", deducted.String())
	return credits, nil
}

// ApplyPayment 将外部支付落账，按支付引用排重。
// 已处理过的引用直接返回 false，不产生任何新账。
func (s *Service) ApplyPayment(ctx context.Context, userID, paymentRef string, credits int, balance decimal.Decimal) (bool, error) {
	ctx, span := tracer.Start(ctx, "ledger.Service.ApplyPayment")
	span.SetAttributes(attribute.String("ledger.payment_ref", paymentRef))
	defer span.End()

	seen, err := s.entries.ExistsByPaymentRef(ctx, paymentRef)
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, errors.CodeDatabaseError, "failed to check payment ref")
	}
	if seen {
		logger.Warn(ctx, "duplicate payment webhook ignored", "payment_ref", paymentRef)
		return false, nil
	}

	link := &Link{PaymentRef: paymentRef}
	desc := fmt.Sprintf("payment %s", paymentRef)
	if credits > 0 {
		if err := s.AddCredits(ctx, userID, credits, entity.LedgerEntryTypePurchase, desc, link); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := s.AddBalance(ctx, userID, balance, entity.LedgerEntryTypePurchase, desc, link); err != nil {
		return false, err
	}
	return true, nil
}

// GetTransactionHistory 按时间倒序分页获取账本
func (s *Service) GetTransactionHistory(ctx context.Context, userID string, page, pageSize int) (*repository.PagedResult[*entity.LedgerEntry], error) {
	ctx, span := tracer.Start(ctx, "ledger.Service.GetTransactionHistory")
	defer span.End()

	result, err := s.entries.ListByUser(ctx, userID, repository.NewPagination(page, pageSize))
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load transaction history")
	}
	return result, nil
}

// exchangeRate 读取余额兑积分比率：系统配置优先并经 Redis 缓存，缺失回落到配置默认值
func (s *Service) exchangeRate(ctx context.Context) (decimal.Decimal, error) {
	load := func() (interface{}, error) {
		setting, err := s.settings.Get(ctx, entity.SettingKeyExchangeRate)
		if err != nil {
			return nil, err
		}
		if setting == nil {
			return s.cfg.DefaultExchangeRate, nil
		}
		return setting.Value, nil
	}

	var raw string
	if s.cache != nil {
		bytes, err := s.cache.GetOrLoad(ctx, redis.BuildExchangeRateKey(), s.cfg.ExchangeRateCacheTTL, load)
		if err == nil {
			_ = json.Unmarshal(bytes, &raw)
		}
	}
	if raw == "" {
		val, err := load()
		if err != nil {
			return decimal.Zero, errors.Wrap(err, errors.CodeDatabaseError, "failed to load exchange rate")
		}
		raw = val.(string)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, errors.New(errors.CodeSettingNotFound,
			fmt.Sprintf("exchange rate misconfigured: %q", raw))
	}
	return rate, nil
}

func applyLink(entry *entity.LedgerEntry, link *Link) {
	if link == nil {
		return
	}
	if link.PaymentRef != "" {
		entry.WithPaymentRef(link.PaymentRef)
	}
	if link.VoucherID != "" {
		entry.WithVoucher(link.VoucherID)
	}
}

func (s *Service) recordOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LedgerOperationsTotal.WithLabelValues(op, status).Inc()
}
