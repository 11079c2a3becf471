package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance 资产账户表
// (user_id, asset_id) 唯一；available 与 locked 任何时刻都 >= 0。
// 所有变更必须经由 ledger 层的原子原语，禁止客户端先读后写。
type Balance struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64          `gorm:"not null;uniqueIndex:idx_user_asset" json:"user_id"`
	AssetID   uint64          `gorm:"not null;uniqueIndex:idx_user_asset" json:"asset_id"`
	Available decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"available"`
	Locked    decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"locked"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Balance) TableName() string {
	return "balances"
}
