package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/audit"
	"custody-core/internal/chain"
	"custody-core/internal/ledger"
	"custody-core/internal/service"
	"custody-core/pkg/config"
	"custody-core/pkg/database"
	"custody-core/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "custody-cli",
	Short: "Operational tooling for the custody ledger core",
	Long:  "Run deposit scans and withdrawal reconciliation on demand, outside the cron schedule.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime 一次性装配命令运行所需的依赖。
// CLI 与常驻服务共用同一套组件，只是触发方式不同。
type runtime struct {
	db         *gorm.DB
	audit      *audit.Recorder
	scanner    *service.DepositScanner
	reconciler *service.WithdrawalReconciler
}

func newRuntime() (*runtime, error) {
	config.Init()
	logger.Init(config.Global.App.Env)

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	explorer := chain.NewExplorer(config.Global.Chain.ExplorerUrl, config.Global.Chain.ExplorerApiKey)
	chainClient, err := chain.NewEvmClient(config.Global.Chain.RpcUrl, config.Global.Chain.ChainID, explorer)
	if err != nil {
		return nil, fmt.Errorf("connect chain rpc: %w", err)
	}

	// CLI 手动触发不走 kafka, 审计只落库
	sink := audit.NewRecorder(db, nil, "")

	store := service.NewGormStore(db)
	lg := ledger.NewGormLedger(db)

	rt := &runtime{
		db:    db,
		audit: sink,
		scanner: service.NewDepositScanner(store, lg, chainClient, sink, service.ScannerConfig{
			HotWallet:      config.Global.Custody.HotWallet,
			LookbackBlocks: config.Global.Custody.LookbackBlocks,
			Budget:         time.Duration(config.Global.Custody.ScanBudgetSec) * time.Second,
		}),
		reconciler: service.NewWithdrawalReconciler(store, lg, chainClient, sink, service.ReconcilerConfig{
			Grace:   time.Duration(config.Global.Custody.ReconcileGraceSec) * time.Second,
			Abandon: time.Duration(config.Global.Custody.ReconcileAbandonSec) * time.Second,
		}),
	}
	return rt, nil
}

func (rt *runtime) close() {
	if err := rt.audit.Close(); err != nil {
		logger.Error("audit recorder close failed", zap.Error(err))
	}
	logger.Sync()
}
