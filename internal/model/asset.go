package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset 币种配置表
// 由管理后台维护，本核心只读
type Asset struct {
	ID                    uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol                string          `gorm:"type:varchar(20);not null;unique" json:"symbol"`
	Chain                 string          `gorm:"type:varchar(20);not null" json:"chain"`
	ContractAddress       string          `gorm:"type:varchar(42)" json:"contract_address"` // 为空表示原生币
	Decimals              int32           `gorm:"not null;default:18" json:"decimals"`
	DepositEnabled        bool            `gorm:"not null;default:true" json:"deposit_enabled"`
	WithdrawEnabled       bool            `gorm:"not null;default:true" json:"withdraw_enabled"`
	MinWithdraw           decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"min_withdraw"`
	MaxWithdraw           decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"max_withdraw"` // 0 = 不限
	WithdrawFee           decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"withdraw_fee"` // 固定手续费
	RequiredConfirmations uint64          `gorm:"not null;default:15" json:"required_confirmations"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsNative reports whether transfers use the chain's native currency.
func (a *Asset) IsNative() bool {
	return a.ContractAddress == ""
}

func (Asset) TableName() string {
	return "assets"
}
