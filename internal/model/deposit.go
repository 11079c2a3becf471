package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit status state machine:
// pending --(confirmations>=threshold & sender verified)--> confirmed --(credit)--> credited
// pending|confirmed --(sender mismatch on re-check)--> suspicious (冻结待人工处理)
const (
	DepositStatusPending    = "pending"
	DepositStatusConfirmed  = "confirmed"
	DepositStatusCredited   = "credited"
	DepositStatusSuspicious = "suspicious"
)

// Deposit 充值记录表
// 仅由 Scanner 创建和修改；credited 与 suspicious 之后不再变更
type Deposit struct {
	ID                    uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                uint64          `gorm:"not null;index" json:"user_id"`
	AssetID               uint64          `gorm:"not null;index" json:"asset_id"`
	TxHash                string          `gorm:"type:varchar(66);not null;uniqueIndex" json:"tx_hash"`
	FromAddress           string          `gorm:"type:varchar(42);not null" json:"from_address"`
	Amount                decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	BlockHeight           uint64          `gorm:"not null" json:"block_height"`
	Confirmations         uint64          `gorm:"not null;default:0" json:"confirmations"`
	RequiredConfirmations uint64          `gorm:"not null" json:"required_confirmations"`
	Status                string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	CreditedAt            *time.Time      `json:"credited_at,omitempty"`
}

func (Deposit) TableName() string {
	return "deposits"
}
