package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types
const (
	EntryWithdrawLock   = "withdraw_lock"   // available -> locked
	EntryWithdrawRefund = "withdraw_refund" // locked -> available (补偿)
	EntryWithdrawSettle = "withdraw_settle" // locked 释放，资金离开托管账本
	EntryDepositCredit  = "deposit_credit"  // 链上充值入账
)

// LedgerEntry 账本流水 (append-only)
// Amount 记录 available 列的带符号变动；withdraw_settle 的 Amount 为 0，
// 它只记录 locked 预留被释放这一事实。
// (entry_type, reference_id) 唯一: 提现记录先于扣减落库，每条流水
// 都携带真实引用，唯一索引给代码层的幂等检查兜底。
type LedgerEntry struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64          `gorm:"not null;index" json:"user_id"`
	AssetID       uint64          `gorm:"not null;index" json:"asset_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"balance_after"`
	EntryType     string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_entry_ref" json:"entry_type"`
	ReferenceType string          `gorm:"type:varchar(32);not null" json:"reference_type"` // withdrawal / deposit
	ReferenceID   uint64          `gorm:"not null;uniqueIndex:idx_entry_ref" json:"reference_id"`
	Reason        string          `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
