package model

import (
	"encoding/json"
	"time"
)

// Audit event kinds
const (
	AuditUnknownSender    = "unknown_sender"
	AuditSenderMismatch   = "sender_mismatch"
	AuditCreditBlocked    = "credit_blocked"
	AuditWithdrawalFailed = "withdrawal_failed"
	AuditReconcileOrphan  = "reconcile_orphan"
)

const (
	AuditLevelInfo = "info"
	AuditLevelHigh = "high"
)

// AuditEvent 通知存储表
// 双引擎的 fire-and-forget 审计事件；写入失败不影响主流程
type AuditEvent struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID
	Level     string          `gorm:"type:varchar(10);not null;index" json:"level"`
	Kind      string          `gorm:"type:varchar(32);not null;index" json:"kind"`
	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
