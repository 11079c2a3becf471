package service

import (
	"context"
	"fmt"
	"strings"
	"time"

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

// ScannerConfig 扫描器运行参数，显式传入便于测试
type ScannerConfig struct {
	// HotWallet 托管热钱包地址 (入账目标)
	HotWallet string
	// LookbackBlocks 回看窗口: 容忍调度空档，同时限制查询成本
	LookbackBlocks uint64
	// Budget 单次调用的时间预算; 超出后在两次变更之间中止
	Budget time.Duration
}

// DepositScanner 周期性批处理任务: 发现进入热钱包的转账，
// 归属发送方，驱动充值记录走确认门控的入账状态机。
// 无状态，可重叠运行: 所有变更以 tx_hash 为键且幂等。
type DepositScanner struct {
	store    Store
	ledger   ledger.Ledger
	chain    chain.Reader
	resolver *AddressResolver
	audit    audit.Sink
	cfg      ScannerConfig
}

func NewDepositScanner(store Store, lg ledger.Ledger, reader chain.Reader, sink audit.Sink, cfg ScannerConfig) *DepositScanner {
	return &DepositScanner{
		store:    store,
		ledger:   lg,
		chain:    reader,
		resolver: NewAddressResolver(store),
		audit:    sink,
		cfg:      cfg,
	}
}

// ScanOnce 对每个启用充值且有合约地址的资产扫描一轮。
// 单个资产失败只跳过该资产本轮，下轮重试。
func (s *DepositScanner) ScanOnce(ctx context.Context) error {
	if s.cfg.HotWallet == "" {
		return errno.ErrNoHotWallet
	}

	assets, err := s.store.DepositableAssets(ctx)
	if err != nil {
		return fmt.Errorf("scanner: list assets: %w", err)
	}

	deadline := time.Now().Add(s.cfg.Budget)
	for _, asset := range assets {
		if time.Now().After(deadline) {
			logger.Warn("scan cycle partial: budget exceeded", zap.String("next_symbol", asset.Symbol))
			return nil
		}
		start := time.Now()
		if err := s.scanAsset(ctx, &asset, deadline); err != nil {
			logger.Error("asset scan failed, skipping this cycle",
				zap.String("symbol", asset.Symbol), zap.Error(err))
		}
		if monitor.Business != nil {
			monitor.Business.ScanCycleDuration.WithLabelValues(asset.Symbol).Observe(time.Since(start).Seconds())
		}
	}
	return nil
}

func (s *DepositScanner) scanAsset(ctx context.Context, asset *model.Asset, deadline time.Time) error {
	// 1. 链高度: 节点直连失败回退 explorer; 两者都失败则本轮放弃，绝不在无高度时入账
	height, err := s.chain.Height(ctx)
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}

	// 2. 回看窗口内发往热钱包的转账
	startBlock := uint64(0)
	if height > s.cfg.LookbackBlocks {
		startBlock = height - s.cfg.LookbackBlocks
	}
	transfers, err := s.chain.TokenTransfers(ctx, asset.ContractAddress, s.cfg.HotWallet, startBlock, height)
	if err != nil {
		return fmt.Errorf("transfers: %w", err)
	}

	for i := range transfers {
		t := &transfers[i]
		if !strings.EqualFold(t.To, s.cfg.HotWallet) {
			continue
		}
		if time.Now().After(deadline) {
			logger.Warn("scan cycle partial: budget exceeded",
				zap.String("symbol", asset.Symbol), zap.String("tx", t.Hash))
			return nil
		}
		if err := s.processTransfer(ctx, asset, t, height); err != nil {
			logger.Error("transfer processing failed",
				zap.String("symbol", asset.Symbol), zap.String("tx", t.Hash), zap.Error(err))
		}
	}
	return nil
}

func (s *DepositScanner) processTransfer(ctx context.Context, asset *model.Asset, t *chain.TokenTransfer, height uint64) error {
	dep, err := s.store.DepositByTxHash(ctx, t.Hash)
	if err != nil {
		return err
	}

	// 3. 新转账: 先归属发送方，未注册地址不建任何记录
	if dep == nil {
		claim, err := s.resolver.Resolve(ctx, t.From)
		if err != nil {
			return err
		}
		if claim == nil {
			// 不入账策略，不是错误; 地址注册后下轮扫描会重新评估
			s.audit.Emit(ctx, audit.Event{
				Level: model.AuditLevelInfo,
				Kind:  model.AuditUnknownSender,
				Payload: map[string]interface{}{
					"tx_hash": t.Hash,
					"from":    t.From,
					"symbol":  asset.Symbol,
					"value":   t.Value,
				},
			})
			return nil
		}

		amount, err := parseTransferAmount(t.Value, t.Decimals)
		if err != nil {
			return fmt.Errorf("amount parse: %w", err)
		}

		dep = &model.Deposit{
			UserID:                claim.UserID,
			AssetID:               asset.ID,
			TxHash:                t.Hash,
			FromAddress:           t.From,
			Amount:                amount,
			BlockHeight:           t.BlockNumber,
			Confirmations:         confirmationsAt(height, t.BlockNumber),
			RequiredConfirmations: asset.RequiredConfirmations,
			Status:                model.DepositStatusPending,
		}
		if err := s.store.CreateDeposit(ctx, dep); err != nil {
			return err
		}
		logger.Info("deposit discovered",
			zap.String("symbol", asset.Symbol),
			zap.Uint64("user_id", claim.UserID),
			zap.String("tx", t.Hash),
			zap.String("amount", amount.String()))
		// 落入下面的已知记录逻辑: 足够确认时同一轮即可入账
	}

	// 终态与冻结态不再触碰
	if dep.Status == model.DepositStatusCredited || dep.Status == model.DepositStatusSuspicious {
		return nil
	}

	// 4. 重算确认数
	conf := confirmationsAt(height, dep.BlockHeight)
	if conf < dep.RequiredConfirmations {
		return s.store.UpdateDepositConfirmations(ctx, dep.ID, conf)
	}

	// 入账前复核发送方: 不一致则冻结，绝不自动纠正
	if !strings.EqualFold(t.From, dep.FromAddress) {
		if err := s.store.MarkDepositSuspicious(ctx, dep.ID); err != nil {
			return err
		}
		s.audit.Emit(ctx, audit.Event{
			Level: model.AuditLevelHigh,
			Kind:  model.AuditSenderMismatch,
			Payload: map[string]interface{}{
				"deposit_id":    dep.ID,
				"tx_hash":       dep.TxHash,
				"stored_from":   dep.FromAddress,
				"observed_from": t.From,
				"symbol":        asset.Symbol,
			},
		})
		if monitor.Business != nil {
			monitor.Business.DepositSuspiciousTotal.WithLabelValues(asset.Symbol).Inc()
		}
		return nil
	}

	if err := s.store.MarkDepositConfirmed(ctx, dep.ID, conf); err != nil {
		return err
	}

	// 5. 入账: 状态预检查 + ledger 层幂等双重防护
	if err := s.ledger.Credit(ctx, dep.ID); err != nil {
		s.audit.Emit(ctx, audit.Event{
			Level: model.AuditLevelHigh,
			Kind:  model.AuditCreditBlocked,
			Payload: map[string]interface{}{
				"deposit_id": dep.ID,
				"tx_hash":    dep.TxHash,
				"error":      err.Error(),
			},
		})
		return fmt.Errorf("credit: %w", err)
	}

	if monitor.Business != nil {
		monitor.Business.DepositCreditedTotal.WithLabelValues(asset.Symbol).Inc()
	}
	logger.Info("deposit credited",
		zap.Uint64("deposit_id", dep.ID),
		zap.String("tx", dep.TxHash),
		zap.String("symbol", asset.Symbol))
	return nil
}

func confirmationsAt(height, blockHeight uint64) uint64 {
	if height < blockHeight {
		return 0
	}
	return height - blockHeight
}

// parseTransferAmount 将最小单位整数字符串还原为十进制金额
func parseTransferAmount(value string, decimals int32) (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(-decimals), nil
}
