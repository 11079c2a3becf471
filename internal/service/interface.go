package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"custody-core/internal/model"
)

// Store 双引擎对关系存储的窄接口。
// 余额变更不在这里: 只能走 ledger.Ledger 的原子原语。
// 引擎逻辑全部针对该接口测试，不依赖真实数据库。
type Store interface {
	// Assets
	DepositableAssets(ctx context.Context) ([]model.Asset, error)
	AssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error)

	// Registered address claims (统一索引, 大小写不敏感精确匹配)
	ResolveAddress(ctx context.Context, address string) (*model.RegisteredAddress, error)

	// Deposits (Scanner 专属)
	DepositByTxHash(ctx context.Context, txHash string) (*model.Deposit, error)
	CreateDeposit(ctx context.Context, dep *model.Deposit) error
	UpdateDepositConfirmations(ctx context.Context, id uint64, confirmations uint64) error
	MarkDepositConfirmed(ctx context.Context, id uint64, confirmations uint64) error
	MarkDepositSuspicious(ctx context.Context, id uint64) error

	// Withdrawals (提现引擎专属)
	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	SetWithdrawalTxHash(ctx context.Context, id uint64, txHash string) error
	CompleteWithdrawal(ctx context.Context, id uint64, txHash string) error
	FailWithdrawal(ctx context.Context, id uint64, errMsg string) error
	WithdrawalsByUser(ctx context.Context, userID uint64, limit int) ([]model.Withdrawal, error)
	StalePendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]model.Withdrawal, error)

	// Balances (只读; 乐观预检查用)
	Balance(ctx context.Context, userID, assetID uint64) (*model.Balance, error)
	DepositsByUser(ctx context.Context, userID uint64, limit int) ([]model.Deposit, error)
}

// RiskChecker 外部风控/频控。返回非空 reason 表示拒绝，
// 原因原样透传给调用方。
type RiskChecker interface {
	Check(ctx context.Context, userID uint64, asset *model.Asset, amount decimal.Decimal) (reason string, err error)
}
