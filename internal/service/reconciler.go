package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"custody-core/internal/audit"
	"custody-core/internal/chain"
	"custody-core/internal/ledger"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
)

// ReconcilerConfig 对账任务参数
type ReconcilerConfig struct {
	// Grace pending 记录至少多久未更新才进入对账
	Grace time.Duration
	// Abandon 超过该时限仍无回执的提交视为未发生，退款
	Abandon time.Duration
	// BatchSize 单轮处理上限
	BatchSize int
}

// WithdrawalReconciler 收尾孤儿提现:
// 提现引擎等待打包时崩溃或超时放弃后，pending 记录里留有已提交的哈希。
// 对账任务查询回执决定结算或补偿，保证锁定资金最终总有解释。
type WithdrawalReconciler struct {
	store  Store
	ledger ledger.Ledger
	chain  chain.Reader
	audit  audit.Sink
	cfg    ReconcilerConfig
}

func NewWithdrawalReconciler(store Store, lg ledger.Ledger, reader chain.Reader, sink audit.Sink, cfg ReconcilerConfig) *WithdrawalReconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &WithdrawalReconciler{
		store:  store,
		ledger: lg,
		chain:  reader,
		audit:  sink,
		cfg:    cfg,
	}
}

// ReconcileOnce 处理一批滞留的 pending 提现
func (r *WithdrawalReconciler) ReconcileOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-r.cfg.Grace)
	rows, err := r.store.StalePendingWithdrawals(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("reconciler: list stale withdrawals: %w", err)
	}

	for i := range rows {
		w := &rows[i]
		if err := r.reconcileOne(ctx, w); err != nil {
			logger.Error("reconcile failed", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
		}
	}
	return nil
}

func (r *WithdrawalReconciler) reconcileOne(ctx context.Context, w *model.Withdrawal) error {
	abandoned := time.Since(w.CreatedAt) > r.cfg.Abandon

	// 扣减后、广播前崩溃: 没有哈希可查，超过放弃时限后退款
	if w.TxHash == "" {
		if !abandoned {
			return nil
		}
		return r.refundOrphan(ctx, w, "orphaned before submission")
	}

	status, err := r.chain.ReceiptStatus(ctx, w.TxHash)
	if err != nil {
		// 链查询失败: 下轮重试，绝不在结果未知时动资金
		return fmt.Errorf("receipt: %w", err)
	}

	switch status {
	case chain.TxStatusSuccess:
		if err := r.ledger.Settle(ctx, w.ID); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		if err := r.store.CompleteWithdrawal(ctx, w.ID, w.TxHash); err != nil {
			return err
		}
		logger.Info("orphaned withdrawal settled", zap.Uint64("withdrawal_id", w.ID), zap.String("tx", w.TxHash))
		return nil

	case chain.TxStatusReverted:
		return r.refundOrphan(ctx, w, "transaction reverted on-chain (reconciled)")

	default:
		// 仍未打包: 只有超过放弃时限才按未发生处理
		if !abandoned {
			return nil
		}
		return r.refundOrphan(ctx, w, "submission never confirmed (abandoned)")
	}
}

func (r *WithdrawalReconciler) refundOrphan(ctx context.Context, w *model.Withdrawal, reason string) error {
	if err := r.ledger.Refund(ctx, w.UserID, w.AssetID, w.Amount, w.Fee, reason, w.ID); err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	if err := r.store.FailWithdrawal(ctx, w.ID, reason); err != nil {
		return err
	}
	r.audit.Emit(ctx, audit.Event{
		Level: model.AuditLevelHigh,
		Kind:  model.AuditReconcileOrphan,
		Payload: map[string]interface{}{
			"withdrawal_id": w.ID,
			"user_id":       w.UserID,
			"tx_hash":       w.TxHash,
			"reason":        reason,
		},
	})
	logger.Warn("orphaned withdrawal refunded", zap.Uint64("withdrawal_id", w.ID), zap.String("reason", reason))
	return nil
}
