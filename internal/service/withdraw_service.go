package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"custody-core/internal/audit"
	"custody-core/internal/chain"
	"custody-core/internal/ledger"
	"custody-core/internal/model"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// 提现 saga 状态: 补偿只能从 debited 和 submitted-with-error 到达，
// 永远不能从 settled 到达。
type sagaState int

const (
	sagaDebited sagaState = iota
	sagaSubmitted
	sagaSettled
)

// WithdrawConfig 提现引擎运行参数
type WithdrawConfig struct {
	// ReceiptWait 同步等待打包的上限; 到时按"结果未知"处理，交给对账任务
	ReceiptWait time.Duration
}

// WithdrawInput 一次提现请求
type WithdrawInput struct {
	AssetSymbol string
	Amount      decimal.Decimal
	ToAddress   string
	Network     string
}

// WithdrawResult 资金操作入口的结构化结果
type WithdrawResult struct {
	Success      bool   `json:"success"`
	Reason       string `json:"reason,omitempty"`
	WithdrawalID uint64 `json:"withdrawal_id,omitempty"`
	Status       string `json:"status,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	// Refunded 为 true 表示已锁定的资金已原路退回
	Refunded bool `json:"refunded,omitempty"`
}

// WithdrawService 提现引擎: lock -> submit -> settle，
// 任何失败走唯一的补偿路径 (refund)。
// 引擎自身不串行化并发请求; 同一 (user, asset) 的双花防护
// 完全依赖 ledger 层的原子扣减。
type WithdrawService struct {
	store  Store
	ledger ledger.Ledger
	chain  chain.Submitter
	keys   chain.KeyProvider
	risk   RiskChecker
	audit  audit.Sink
	cfg    WithdrawConfig
}

func NewWithdrawService(store Store, lg ledger.Ledger, submitter chain.Submitter, keys chain.KeyProvider, risk RiskChecker, sink audit.Sink, cfg WithdrawConfig) *WithdrawService {
	return &WithdrawService{
		store:  store,
		ledger: lg,
		chain:  submitter,
		keys:   keys,
		risk:   risk,
		audit:  sink,
		cfg:    cfg,
	}
}

// Submit 处理一次提现。
// 校验失败返回 (nil, errno)，此时未发生任何余额变动;
// 扣减之后的失败一律先补偿再返回结构化结果 (error 为 nil)。
func (s *WithdrawService) Submit(ctx context.Context, userID uint64, in WithdrawInput) (*WithdrawResult, error) {
	// ---------- 前置校验: 每一项独立的失败原因，全部在任何变更之前 ----------
	if !common.IsHexAddress(in.ToAddress) {
		return nil, errno.ErrInvalidAddress
	}

	asset, err := s.store.AssetBySymbol(ctx, in.AssetSymbol)
	if err != nil {
		return nil, errno.ErrDatabase
	}
	if asset == nil {
		return nil, errno.ErrAssetNotFound
	}
	if !asset.WithdrawEnabled {
		return nil, errno.ErrWithdrawDisabled
	}

	if !in.Amount.IsPositive() || in.Amount.LessThan(asset.MinWithdraw) ||
		(asset.MaxWithdraw.IsPositive() && in.Amount.GreaterThan(asset.MaxWithdraw)) {
		return nil, errno.ErrAmountOutOfRange
	}

	// 细于链上最小单位的金额无法按原值发送: 账本会足额扣减而链上
	// 只能发送截断值，差额凭空消失。直接拒绝。
	amountBase := in.Amount.Shift(asset.Decimals)
	if !amountBase.IsInteger() {
		return nil, errno.ErrAmountOutOfRange.WithMessage(
			fmt.Sprintf("amount precision exceeds asset's %d decimals", asset.Decimals))
	}

	total := in.Amount.Add(asset.WithdrawFee)

	// 乐观预检查; 真正的判定在下面的原子扣减里再做一次
	bal, err := s.store.Balance(ctx, userID, asset.ID)
	if err != nil {
		return nil, errno.ErrDatabase
	}
	if bal == nil || bal.Available.LessThan(total) {
		return nil, errno.ErrInsufficientBalance
	}

	// 外部风控: 拒绝原因原样透传
	if s.risk != nil {
		reason, err := s.risk.Check(ctx, userID, asset, in.Amount)
		if err != nil {
			// 风控不可用按放行处理，只记录
			logger.Warn("risk check unavailable", zap.Error(err))
		} else if reason != "" {
			return nil, errno.ErrRiskRejected.WithMessage(reason)
		}
	}

	// 签名私钥在扣减之前解析: 失败是配置错误，不是用户错误，余额不能被触碰
	key, err := s.keys.SigningKey()
	if err != nil {
		logger.Error("signing key unavailable (configuration)", zap.Error(err))
		return nil, errno.ErrSigningKey
	}

	// ---------- Step 1: 先落库 pending 记录 ----------
	// 提现行先于扣减存在: 后续每一步失败都有据可查，退款引用永远非零。
	// 这一步失败时余额尚未被触碰，直接返回。
	w := &model.Withdrawal{
		UserID:    userID,
		AssetID:   asset.ID,
		Amount:    in.Amount,
		Fee:       asset.WithdrawFee,
		ToAddress: in.ToAddress,
		Network:   in.Network,
		Status:    model.WithdrawalStatusPending,
	}
	if err := s.store.CreateWithdrawal(ctx, w); err != nil {
		return nil, errno.ErrDatabase
	}

	// ---------- Step 2: 原子扣减 (lock) ----------
	debitReason := fmt.Sprintf("withdraw %s %s to %s", in.Amount.String(), asset.Symbol, in.ToAddress)
	debit, err := s.ledger.ValidateAndDebit(ctx, userID, asset.ID, in.Amount, asset.WithdrawFee, debitReason, w.ID)
	if err != nil {
		if ferr := s.store.FailWithdrawal(ctx, w.ID, "debit failed: "+err.Error()); ferr != nil {
			logger.Error("mark withdrawal failed errored", zap.Uint64("withdrawal_id", w.ID), zap.Error(ferr))
		}
		return nil, errno.ErrDatabase
	}
	if !debit.Allowed {
		if ferr := s.store.FailWithdrawal(ctx, w.ID, debit.Reason); ferr != nil {
			logger.Error("mark withdrawal failed errored", zap.Uint64("withdrawal_id", w.ID), zap.Error(ferr))
		}
		return nil, errno.ErrInsufficientBalance.WithMessage(debit.Reason)
	}

	state := sagaDebited

	// 扣减之后任何未捕获的 panic 都走同一条补偿路径:
	// 锁定资金绝不允许无解释地留在 locked 里。已结算后不可再补偿。
	defer func() {
		if r := recover(); r != nil {
			logger.Error("withdrawal panic, compensating", zap.Any("panic", r), zap.Uint64("withdrawal_id", w.ID))
			if state != sagaSettled {
				s.compensate(ctx, asset, w, fmt.Sprintf("internal error: %v", r))
			}
		}
	}()

	// ---------- Step 3: 链上提交 ----------
	var txHash string
	if asset.IsNative() {
		txHash, err = s.chain.SendNative(ctx, key, in.ToAddress, amountBase.BigInt())
	} else {
		txHash, err = s.chain.SendToken(ctx, key, asset.ContractAddress, in.ToAddress, amountBase.BigInt())
	}
	if err != nil {
		refunded := s.compensate(ctx, asset, w, "submission failed: "+err.Error())
		return &WithdrawResult{
			Success:      false,
			Reason:       "submission failed, funds returned",
			WithdrawalID: w.ID,
			Status:       model.WithdrawalStatusFailed,
			Refunded:     refunded,
		}, nil
	}

	// 广播被接受: 先持久化哈希再等待打包，进程崩溃只会留下可对账的孤儿
	if err := s.store.SetWithdrawalTxHash(ctx, w.ID, txHash); err != nil {
		logger.Error("persist tx hash failed", zap.Uint64("withdrawal_id", w.ID), zap.String("tx", txHash), zap.Error(err))
	}
	w.TxHash = txHash
	state = sagaSubmitted

	// ---------- Step 4: 结算或补偿 ----------
	status, err := s.chain.WaitReceipt(ctx, txHash, s.cfg.ReceiptWait)
	if err != nil {
		// 等待被打断: 结果未知，留给对账任务，绝不按失败退款
		logger.Warn("receipt wait interrupted, outcome unknown",
			zap.Uint64("withdrawal_id", w.ID), zap.String("tx", txHash), zap.Error(err))
		return s.pendingResult(w), nil
	}

	switch status {
	case chain.TxStatusSuccess:
		if err := s.ledger.Settle(ctx, w.ID); err != nil {
			// 链上已成功，绝不能退款; 留在 pending 让对账任务重试结算
			logger.Error("settle failed after on-chain success", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
			return s.pendingResult(w), nil
		}
		if err := s.store.CompleteWithdrawal(ctx, w.ID, txHash); err != nil {
			logger.Error("complete withdrawal update failed", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
		}
		state = sagaSettled
		if monitor.Business != nil {
			monitor.Business.WithdrawalTotal.WithLabelValues(asset.Symbol, "completed").Inc()
		}
		now := time.Now()
		w.Status = model.WithdrawalStatusCompleted
		w.CompletedAt = &now
		return &WithdrawResult{
			Success:      true,
			WithdrawalID: w.ID,
			Status:       model.WithdrawalStatusCompleted,
			TxHash:       txHash,
		}, nil

	case chain.TxStatusReverted:
		refunded := s.compensate(ctx, asset, w, "transaction reverted on-chain")
		return &WithdrawResult{
			Success:      false,
			Reason:       "transaction reverted, funds returned",
			WithdrawalID: w.ID,
			Status:       model.WithdrawalStatusFailed,
			TxHash:       txHash,
			Refunded:     refunded,
		}, nil

	default:
		// 超时未打包: 结果未知，对账任务收尾
		return s.pendingResult(w), nil
	}
}

func (s *WithdrawService) pendingResult(w *model.Withdrawal) *WithdrawResult {
	return &WithdrawResult{
		Success:      true,
		Reason:       "submitted, awaiting confirmation",
		WithdrawalID: w.ID,
		Status:       model.WithdrawalStatusPending,
		TxHash:       w.TxHash,
	}
}

// compensate 唯一的补偿路径: 退款 + 标记失败 + 审计。
// 返回退款是否确认完成。
func (s *WithdrawService) compensate(ctx context.Context, asset *model.Asset, w *model.Withdrawal, reason string) bool {
	refunded := true
	if err := s.ledger.Refund(ctx, w.UserID, w.AssetID, w.Amount, w.Fee, reason, w.ID); err != nil {
		// 退款失败是最高优先级故障: locked 资金暂时无主，必须报警
		logger.Error("refund failed, locked funds need manual reconciliation",
			zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
		refunded = false
	}
	if err := s.store.FailWithdrawal(ctx, w.ID, reason); err != nil {
		logger.Error("mark withdrawal failed errored", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
	}
	s.audit.Emit(ctx, audit.Event{
		Level: model.AuditLevelInfo,
		Kind:  model.AuditWithdrawalFailed,
		Payload: map[string]interface{}{
			"withdrawal_id": w.ID,
			"user_id":       w.UserID,
			"reason":        reason,
			"refunded":      refunded,
		},
	})
	if monitor.Business != nil && asset != nil {
		monitor.Business.WithdrawalTotal.WithLabelValues(asset.Symbol, "failed").Inc()
	}
	return refunded
}
