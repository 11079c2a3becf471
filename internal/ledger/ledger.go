package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger 是余额变更的唯一入口。
// 双引擎只拿到这几个原子原语，永远不能用"读余额再写余额"的方式组合变更。
// 每个原语都是 crash-atomic 的：要么整体生效，要么毫无痕迹。
type Ledger interface {
	// ValidateAndDebit 校验可用余额并在一个事务中将 amount+fee
	// 从 available 移入 locked，追加一条以 withdrawalID 为引用的
	// withdraw_lock 流水。调用方必须先持久化提现记录再扣减:
	// withdrawalID 不允许为 0。
	// 余额不足时返回 Allowed=false 和原因，不产生任何副作用。
	ValidateAndDebit(ctx context.Context, userID, assetID uint64, amount, fee decimal.Decimal, reason string, withdrawalID uint64) (DebitResult, error)

	// Refund 将 amount+fee 从 locked 退回 available，追加 withdraw_refund 流水。
	// 按 withdrawalID 幂等：同一笔失败提现重复调用不会重复退款。
	// 找不到对应 withdraw_lock 流水时视为"无可退"直接返回 nil。
	Refund(ctx context.Context, userID, assetID uint64, amount, fee decimal.Decimal, reason string, withdrawalID uint64) error

	// Settle 在提现上链成功后释放 locked 预留，追加 withdraw_settle 流水。
	// 按 withdrawalID 幂等。
	Settle(ctx context.Context, withdrawalID uint64) error

	// Credit 将已确认的充值入账: available += amount，充值记录标记 credited。
	// 按 depositID (即 tx_hash) 幂等：重复调用不会二次入账。
	Credit(ctx context.Context, depositID uint64) error
}

// DebitResult 是 ValidateAndDebit 的结构化结果
type DebitResult struct {
	Allowed      bool
	Reason       string
	NewAvailable decimal.Decimal
}

// Debit rejection reasons
const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonNoAccount           = "no_account"
)
