package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
	"custody-core/pkg/utils/lock"
)

// CronService 挂载周期任务: 充值扫描、提现对账。
// 每个任务先抢 Redis 分布式锁，多实例部署时同一轮只跑一份。
type CronService struct {
	cron       *cron.Cron
	redis      *redis.Client
	scanner    *DepositScanner
	reconciler *WithdrawalReconciler
}

func NewCronService(rdb *redis.Client, scanner *DepositScanner, reconciler *WithdrawalReconciler) *CronService {
	return &CronService{
		cron:       cron.New(),
		redis:      rdb,
		scanner:    scanner,
		reconciler: reconciler,
	}
}

func (s *CronService) Start() {
	_, _ = s.cron.AddFunc("@every 1m", s.runScan)
	_, _ = s.cron.AddFunc("@every 2m", s.runReconcile)

	s.cron.Start()
	logger.Info("Cron Service started")
}

func (s *CronService) Stop() {
	s.cron.Stop()
	logger.Info("Cron Service stopped")
}

func (s *CronService) runScan() {
	ctx := context.Background()
	s.withLock(ctx, "cron:deposit_scan", 55*time.Second, func() {
		if err := s.scanner.ScanOnce(ctx); err != nil {
			logger.Error("deposit scan cycle failed", zap.Error(err))
		}
	})
}

func (s *CronService) runReconcile() {
	ctx := context.Background()
	s.withLock(ctx, "cron:withdraw_reconcile", 110*time.Second, func() {
		if err := s.reconciler.ReconcileOnce(ctx); err != nil {
			logger.Error("withdrawal reconcile cycle failed", zap.Error(err))
		}
	})
}

func (s *CronService) withLock(ctx context.Context, key string, ttl time.Duration, fn func()) {
	locker := lock.NewRedisLock(s.redis)
	locked, err := locker.Acquire(ctx, key, ttl)
	if err != nil || !locked {
		// 有其他实例在跑，跳过本轮
		logger.Debug("cron lock not acquired, skipping", zap.String("key", key))
		return
	}
	defer locker.Release(ctx, key)

	fn()
}
