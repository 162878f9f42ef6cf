package voucher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mygads/genovaai-server-sub000/internal/application/ledger"
	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/postgres"
	"github.com/mygads/genovaai-server-sub000/pkg/errors"
)

func newTestEngine(t *testing.T) (*Engine, *postgres.Client) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client := postgres.NewClientFromDB(db)
	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tx := postgres.NewTxManager(client)
	ledgerSvc := ledger.NewService(
		postgres.NewUserRepository(client),
		postgres.NewLedgerRepository(client),
		postgres.NewCredentialRepository(client),
		postgres.NewSettingRepository(client),
		tx,
		nil,
		&config.LedgerConfig{DefaultExchangeRate: "500"},
	)
	return NewEngine(postgres.NewVoucherRepository(client), ledgerSvc, tx), client
}

func seedVoucherUser(t *testing.T, client *postgres.Client, email string) *entity.User {
	t.Helper()
	user := entity.NewUser(email, "tester")
	if err := client.DB().Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedVoucher(t *testing.T, client *postgres.Client, mutate func(*entity.Voucher)) *entity.Voucher {
	t.Helper()
	now := time.Now()
	v := entity.NewVoucher("WELCOME10", entity.VoucherTypeCredit, now.Add(-time.Hour), now.Add(time.Hour))
	v.CreditBonus = 10
	if mutate != nil {
		mutate(v)
	}
	if err := client.DB().Create(v).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
	return v
}

func reloadVoucher(t *testing.T, client *postgres.Client, id string) *entity.Voucher {
	t.Helper()
	var v entity.Voucher
	if err := client.DB().First(&v, "id = ?", id).Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	return &v
}

func TestRedeemGrantsCreditBonus(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	v := seedVoucher(t, client, nil)

	result, err := engine.Redeem(context.Background(), "welcome10", user.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.CreditsGranted != 10 {
		t.Errorf("credits granted = %d, want 10", result.CreditsGranted)
	}

	var after entity.User
	if err := client.DB().First(&after, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if after.Credits != 10 {
		t.Errorf("user credits = %d, want 10", after.Credits)
	}

	if got := reloadVoucher(t, client, v.ID).UsedCount; got != 1 {
		t.Errorf("used count = %d, want 1", got)
	}

	var redemptions int64
	client.DB().Model(&entity.VoucherRedemption{}).Where("voucher_id = ?", v.ID).Count(&redemptions)
	if redemptions != 1 {
		t.Errorf("redemption rows = %d, want 1", redemptions)
	}

	var entry entity.LedgerEntry
	if err := client.DB().First(&entry, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Type != entity.LedgerEntryTypeBonus || entry.VoucherID == nil || *entry.VoucherID != v.ID {
		t.Errorf("ledger entry = %+v, want bonus linked to voucher", entry)
	}
}

func TestRedeemBalanceVoucher(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	seedVoucher(t, client, func(v *entity.Voucher) {
		v.Type = entity.VoucherTypeBalance
		v.CreditBonus = 0
		v.BalanceBonus = decimal.RequireFromString("25")
	})

	result, err := engine.Redeem(context.Background(), "WELCOME10", user.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !result.BalanceGranted.Equal(decimal.RequireFromString("25")) {
		t.Errorf("balance granted = %s, want 25", result.BalanceGranted)
	}

	var after entity.User
	client.DB().First(&after, "id = ?", user.ID)
	if !after.Balance.Equal(decimal.RequireFromString("25")) {
		t.Errorf("user balance = %s, want 25", after.Balance)
	}
}

func TestRedeemDiscountOnlyRejected(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	v := seedVoucher(t, client, func(v *entity.Voucher) {
		v.CreditBonus = 0
		v.DiscountValue = decimal.RequireFromString("5")
	})

	_, err := engine.Redeem(context.Background(), "WELCOME10", user.ID)
	if errors.CodeOf(err) != errors.CodeVoucherNotRedeemable {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeVoucherNotRedeemable)
	}
	if got := reloadVoucher(t, client, v.ID).UsedCount; got != 0 {
		t.Errorf("rejected redeem must not consume uses, got %d", got)
	}
}

func TestRedeemOncePerUser(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	seedVoucher(t, client, nil)

	if _, err := engine.Redeem(context.Background(), "WELCOME10", user.ID); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := engine.Redeem(context.Background(), "WELCOME10", user.ID)
	if errors.CodeOf(err) != errors.CodeVoucherAlreadyUsed {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeVoucherAlreadyUsed)
	}
}

func TestRedeemOncePerUserConcurrent(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	v := seedVoucher(t, client, nil)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Redeem(context.Background(), "WELCOME10", user.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if errors.CodeOf(err) != errors.CodeVoucherAlreadyUsed {
			t.Errorf("unexpected error code %v", errors.CodeOf(err))
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1 for a single-use voucher", successes)
	}

	var redemptions int64
	client.DB().Model(&entity.VoucherRedemption{}).Where("voucher_id = ?", v.ID).Count(&redemptions)
	if redemptions != 1 {
		t.Errorf("redemption rows = %d, want 1", redemptions)
	}

	var after entity.User
	client.DB().First(&after, "id = ?", user.ID)
	if after.Credits != 10 {
		t.Errorf("user credits = %d, want the bonus granted once", after.Credits)
	}
}

func TestRedeemMultipleUseAllowedWhenFlagged(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	seedVoucher(t, client, func(v *entity.Voucher) {
		v.AllowMultipleUsePerUser = true
	})

	for i := 0; i < 2; i++ {
		if _, err := engine.Redeem(context.Background(), "WELCOME10", user.ID); err != nil {
			t.Fatalf("redeem %d: %v", i+1, err)
		}
	}
}

func TestRedeemCapEnforcedAcrossUsers(t *testing.T) {
	engine, client := newTestEngine(t)
	first := seedVoucherUser(t, client, "a@example.com")
	second := seedVoucherUser(t, client, "b@example.com")
	seedVoucher(t, client, func(v *entity.Voucher) {
		v.MaxUses = 1
	})

	if _, err := engine.Redeem(context.Background(), "WELCOME10", first.ID); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := engine.Redeem(context.Background(), "WELCOME10", second.ID)
	if errors.CodeOf(err) != errors.CodeVoucherExhausted {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeVoucherExhausted)
	}

	// 失败的兑换不得留下账本痕迹
	var entries int64
	client.DB().Model(&entity.LedgerEntry{}).Where("user_id = ?", second.ID).Count(&entries)
	if entries != 0 {
		t.Errorf("exhausted redeem left %d ledger entries", entries)
	}
}

func TestRedeemCapHoldsUnderConcurrency(t *testing.T) {
	engine, client := newTestEngine(t)
	v := seedVoucher(t, client, func(v *entity.Voucher) {
		v.MaxUses = 1
	})

	const attempts = 8
	users := make([]*entity.User, attempts)
	for i := range users {
		users[i] = seedVoucherUser(t, client, fmt.Sprintf("u%d@example.com", i))
	}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := engine.Redeem(context.Background(), "WELCOME10", userID)
			results <- err
		}(users[i].ID)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if errors.CodeOf(err) != errors.CodeVoucherExhausted {
			t.Errorf("unexpected error code %v", errors.CodeOf(err))
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1 under the usage cap", successes)
	}

	if got := reloadVoucher(t, client, v.ID).UsedCount; got != 1 {
		t.Errorf("used count = %d, want 1", got)
	}
	var redemptions int64
	client.DB().Model(&entity.VoucherRedemption{}).Where("voucher_id = ?", v.ID).Count(&redemptions)
	if redemptions != 1 {
		t.Errorf("redemption rows = %d, want 1", redemptions)
	}
}

func TestValidateShortCircuits(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")

	cases := []struct {
		name   string
		mutate func(*entity.Voucher)
		input  ValidateInput
		want   errors.ErrorCode
	}{
		{
			name:  "unknown code",
			input: ValidateInput{Code: "NOPE", TransactionType: entity.VoucherTypeCredit},
			want:  errors.CodeVoucherNotFound,
		},
		{
			name:   "inactive",
			mutate: func(v *entity.Voucher) { v.Active = false },
			input:  ValidateInput{Code: "WELCOME10", TransactionType: entity.VoucherTypeCredit},
			want:   errors.CodeVoucherInactive,
		},
		{
			name: "expired",
			mutate: func(v *entity.Voucher) {
				v.StartDate = time.Now().Add(-48 * time.Hour)
				v.EndDate = time.Now().Add(-24 * time.Hour)
			},
			input: ValidateInput{Code: "WELCOME10", TransactionType: entity.VoucherTypeCredit},
			want:  errors.CodeVoucherExpired,
		},
		{
			name:   "exhausted",
			mutate: func(v *entity.Voucher) { v.MaxUses = 1; v.UsedCount = 1 },
			input:  ValidateInput{Code: "WELCOME10", TransactionType: entity.VoucherTypeCredit},
			want:   errors.CodeVoucherExhausted,
		},
		{
			name:  "type mismatch",
			input: ValidateInput{Code: "WELCOME10", TransactionType: entity.VoucherTypeBalance},
			want:  errors.CodeVoucherTypeMismatch,
		},
		{
			name:   "below minimum",
			mutate: func(v *entity.Voucher) { v.MinAmount = decimal.RequireFromString("100") },
			input: ValidateInput{
				Code:            "WELCOME10",
				TransactionType: entity.VoucherTypeCredit,
				Amount:          decimal.RequireFromString("50"),
			},
			want: errors.CodeVoucherBelowMinimum,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client.DB().Where("1 = 1").Delete(&entity.Voucher{})
			v := seedVoucher(t, client, tc.mutate)

			tc.input.UserID = user.ID
			_, err := engine.Validate(context.Background(), &tc.input)
			if errors.CodeOf(err) != tc.want {
				t.Fatalf("error code = %v, want %v", errors.CodeOf(err), tc.want)
			}
			if got := reloadVoucher(t, client, v.ID).UsedCount; got != v.UsedCount {
				t.Errorf("validate must have no side effects")
			}
		})
	}
}

func TestValidateChecksTypeAndAmountBeforeUsage(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	seedVoucher(t, client, func(v *entity.Voucher) {
		v.MaxUses = 1
		v.UsedCount = 1
		v.MinAmount = decimal.RequireFromString("100")
	})

	// 类型不匹配优先于用量耗尽
	_, err := engine.Validate(context.Background(), &ValidateInput{
		Code:            "WELCOME10",
		UserID:          user.ID,
		TransactionType: entity.VoucherTypeBalance,
		Amount:          decimal.RequireFromString("200"),
	})
	if errors.CodeOf(err) != errors.CodeVoucherTypeMismatch {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeVoucherTypeMismatch)
	}

	// 金额不足优先于用量耗尽
	_, err = engine.Validate(context.Background(), &ValidateInput{
		Code:            "WELCOME10",
		UserID:          user.ID,
		TransactionType: entity.VoucherTypeCredit,
		Amount:          decimal.RequireFromString("50"),
	})
	if errors.CodeOf(err) != errors.CodeVoucherBelowMinimum {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeVoucherBelowMinimum)
	}
}

func TestValidateReportsPriorRedemption(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	seedVoucher(t, client, nil)

	if _, err := engine.Redeem(context.Background(), "WELCOME10", user.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	_, err := engine.Validate(context.Background(), &ValidateInput{
		Code:            "WELCOME10",
		UserID:          user.ID,
		TransactionType: entity.VoucherTypeCredit,
	})
	if errors.CodeOf(err) != errors.CodeVoucherAlreadyUsed {
		t.Fatalf("error code = %v, want %v", errors.CodeOf(err), errors.CodeVoucherAlreadyUsed)
	}
}

func TestValidateComputesDiscount(t *testing.T) {
	engine, client := newTestEngine(t)
	user := seedVoucherUser(t, client, "a@example.com")
	seedVoucher(t, client, func(v *entity.Voucher) {
		v.DiscountType = entity.DiscountTypePercentage
		v.DiscountValue = decimal.RequireFromString("10")
		v.MaxDiscount = decimal.RequireFromString("15")
	})

	result, err := engine.Validate(context.Background(), &ValidateInput{
		Code:            "WELCOME10",
		UserID:          user.ID,
		TransactionType: entity.VoucherTypeCredit,
		Amount:          decimal.RequireFromString("200"),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	// 10% of 200 is 20, capped at 15
	if !result.Discount.Equal(decimal.RequireFromString("15")) {
		t.Errorf("discount = %s, want 15", result.Discount)
	}
}
