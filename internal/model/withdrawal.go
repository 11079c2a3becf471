package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
)

// Withdrawal 提现记录表
// 由提现引擎创建为 pending；completed / failed 为终态，到达后不再修改
type Withdrawal struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64          `gorm:"not null;index" json:"user_id"`
	AssetID      uint64          `gorm:"not null;index" json:"asset_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	Fee          decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"fee"`
	ToAddress    string          `gorm:"type:varchar(42);not null" json:"to_address"`
	Network      string          `gorm:"type:varchar(20);not null" json:"network"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TxHash       string          `gorm:"type:varchar(66)" json:"tx_hash"` // 广播被接受后立即持久化，供对账扫描
	ErrorMessage string          `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Total returns amount + fee, the quantity locked by the ledger debit.
func (w *Withdrawal) Total() decimal.Decimal {
	return w.Amount.Add(w.Fee)
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
