package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"custody-core/internal/audit"
	"custody-core/internal/chain"
	"custody-core/internal/handler"
	"custody-core/internal/ledger"
	"custody-core/internal/model"
	"custody-core/internal/server"
	"custody-core/internal/service"
	"custody-core/pkg/config"
	"custody-core/pkg/database"
	"custody-core/pkg/logger"
)

// @title           Custody Core API
// @version         1.0
// @description     Custodial wallet ledger core: deposit attribution and withdrawal saga.
// @BasePath        /
func main() {
	config.Init()
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		logger.Fatal("auto migration failed", zap.Error(err))
	}

	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}

	auditRecorder := audit.NewRecorder(db, config.Global.Kafka.Brokers, config.Global.Kafka.AuditTopic)
	defer auditRecorder.Close()

	explorer := chain.NewExplorer(config.Global.Chain.ExplorerUrl, config.Global.Chain.ExplorerApiKey)
	chainClient, err := chain.NewEvmClient(config.Global.Chain.RpcUrl, config.Global.Chain.ChainID, explorer)
	if err != nil {
		logger.Fatal("failed to connect chain rpc", zap.Error(err))
	}
	keys := chain.NewFileKeyProvider(config.Global.Custody.KeystorePath, config.Global.Custody.KeystorePassword)

	store := service.NewGormStore(db)
	lg := ledger.NewGormLedger(db)

	scanner := service.NewDepositScanner(store, lg, chainClient, auditRecorder, service.ScannerConfig{
		HotWallet:      config.Global.Custody.HotWallet,
		LookbackBlocks: config.Global.Custody.LookbackBlocks,
		Budget:         time.Duration(config.Global.Custody.ScanBudgetSec) * time.Second,
	})
	reconciler := service.NewWithdrawalReconciler(store, lg, chainClient, auditRecorder, service.ReconcilerConfig{
		Grace:   time.Duration(config.Global.Custody.ReconcileGraceSec) * time.Second,
		Abandon: time.Duration(config.Global.Custody.ReconcileAbandonSec) * time.Second,
	})
	risk := service.NewVelocityChecker(rdb, config.Global.Custody.MaxWithdrawPerHour)
	withdrawService := service.NewWithdrawService(store, lg, chainClient, keys, risk, auditRecorder, service.WithdrawConfig{
		ReceiptWait: time.Duration(config.Global.Custody.ReceiptWaitSec) * time.Second,
	})

	cronService := service.NewCronService(rdb, scanner, reconciler)
	cronService.Start()
	defer cronService.Stop()

	router := server.NewRouter(
		handler.NewWithdrawHandler(withdrawService, store),
		handler.NewWalletHandler(store),
	)
	app := server.NewApp(router, config.Global.App.HttpPort)

	go func() {
		if err := app.Run(); err != nil {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server exited")
}
