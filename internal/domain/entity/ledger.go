// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryType 账本条目类型
type LedgerEntryType string

const (
	LedgerEntryTypePurchase    LedgerEntryType = "purchase"
	LedgerEntryTypeConsumption LedgerEntryType = "consumption"
	LedgerEntryTypeRefund      LedgerEntryType = "refund"
	LedgerEntryTypeBonus       LedgerEntryType = "bonus"
	LedgerEntryTypeExchangeOut LedgerEntryType = "exchange_out"
	LedgerEntryTypeExchangeIn  LedgerEntryType = "exchange_in"
)

// LedgerEntryStatus 账本条目状态
type LedgerEntryStatus string

const (
	LedgerEntryStatusCompleted LedgerEntryStatus = "completed"
)

// LedgerEntry 账本条目，追加写入且创建后不可变。
// 任何修正以新条目记账，绝不回改历史。
type LedgerEntry struct {
	ID           string            `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       string            `json:"user_id" gorm:"type:uuid;index;not null"`
	Type         LedgerEntryType   `json:"type" gorm:"type:varchar(16);not null"`
	CreditDelta  int               `json:"credit_delta" gorm:"not null;default:0"`
	BalanceDelta decimal.Decimal   `json:"balance_delta" gorm:"type:decimal(20,8);not null;default:0"`
	Status       LedgerEntryStatus `json:"status" gorm:"type:varchar(16);not null;default:'completed'"`
	Description  string            `json:"description" gorm:"type:varchar(255)"`
	PaymentRef   string            `json:"payment_ref,omitempty" gorm:"type:varchar(128);index"`
	VoucherID    *string           `json:"voucher_id,omitempty" gorm:"type:uuid;index"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry 创建账本条目
func NewLedgerEntry(userID string, entryType LedgerEntryType, creditDelta int, balanceDelta decimal.Decimal, description string) *LedgerEntry {
	return &LedgerEntry{
		ID:           uuid.New().String(),
		UserID:       userID,
		Type:         entryType,
		CreditDelta:  creditDelta,
		BalanceDelta: balanceDelta,
		Status:       LedgerEntryStatusCompleted,
		Description:  description,
		CreatedAt:    time.Now(),
	}
}

// WithPaymentRef 关联外部支付引用
func (e *LedgerEntry) WithPaymentRef(ref string) *LedgerEntry {
	e.PaymentRef = ref
	return e
}

// WithVoucher 关联券
func (e *LedgerEntry) WithVoucher(voucherID string) *LedgerEntry {
	e.VoucherID = &voucherID
	return e
}
