package model

import "time"

// RegisteredAddress 用户认领的链上地址
// 历史上来自多个独立的迁移源 (source 字段)，查询统一走 lower(address) 索引，
// 不再按来源分三次查。跨用户重复认领由迁移中的唯一索引在上游阻止。
type RegisteredAddress struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	Address   string    `gorm:"type:varchar(42);not null" json:"address"`
	Chain     string    `gorm:"type:varchar(20);not null" json:"chain"`
	Source    string    `gorm:"type:varchar(32);not null" json:"source"` // legacy 数据来源标记
	CreatedAt time.Time `json:"created_at"`
}

func (RegisteredAddress) TableName() string {
	return "registered_addresses"
}
