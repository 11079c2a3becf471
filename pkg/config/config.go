package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Custody CustodyConfig `mapstructure:"custody"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
}

type ChainConfig struct {
	RpcUrl         string `mapstructure:"rpc_url"`
	ChainID        int64  `mapstructure:"chain_id"`
	ExplorerUrl    string `mapstructure:"explorer_url"`
	ExplorerApiKey string `mapstructure:"explorer_api_key"`
}

type CustodyConfig struct {
	// HotWallet 平台托管热钱包地址 (充值入账 / 提现出账)
	HotWallet           string `mapstructure:"hot_wallet"`
	KeystorePath        string `mapstructure:"keystore_path"`
	KeystorePassword    string `mapstructure:"keystore_password"` // 通常通过环境变量 CUSTODY_KEYSTORE_PASSWORD 传入
	LookbackBlocks      uint64 `mapstructure:"lookback_blocks"`
	ScanBudgetSec       int    `mapstructure:"scan_budget_sec"`
	ReceiptWaitSec      int    `mapstructure:"receipt_wait_sec"`
	ReconcileGraceSec   int    `mapstructure:"reconcile_grace_sec"`
	ReconcileAbandonSec int    `mapstructure:"reconcile_abandon_sec"`
	MaxWithdrawPerHour  int    `mapstructure:"max_withdraw_per_hour"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量覆盖: custody.hot_wallet -> CUSTODY_HOT_WALLET
	viper.SetEnvPrefix("custody")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "custody_user")
	viper.SetDefault("db.password", "custody_password")
	viper.SetDefault("db.name", "custody_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.audit_topic", "custody_audit_events")

	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.rpc_url", "http://localhost:8545")
	viper.SetDefault("chain.explorer_url", "https://api.etherscan.io/api")

	viper.SetDefault("custody.keystore_path", "hotwallet.json")
	viper.SetDefault("custody.lookback_blocks", 2000)
	viper.SetDefault("custody.scan_budget_sec", 50)
	viper.SetDefault("custody.receipt_wait_sec", 60)
	viper.SetDefault("custody.reconcile_grace_sec", 120)
	viper.SetDefault("custody.reconcile_abandon_sec", 3600)
	viper.SetDefault("custody.max_withdraw_per_hour", 10)
}
