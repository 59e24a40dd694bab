// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Pools     PoolsConfig     `mapstructure:"pools"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	PnL       PnLConfig       `mapstructure:"pnl"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name           string `mapstructure:"name"`
	Environment    string `mapstructure:"environment"`
	LogLevel       string `mapstructure:"log_level"`
	KillSwitchFile string `mapstructure:"kill_switch_file"`
	TUIMode        bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL    string        `mapstructure:"websocket_url"`
	HTTPURL         string        `mapstructure:"http_url"`
	ChainID         uint64        `mapstructure:"chain_id"`
	WalletAddress   string        `mapstructure:"wallet_address"`
	MaxReconnects   int           `mapstructure:"max_reconnects"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	GasCacheTTL     time.Duration `mapstructure:"gas_cache_ttl"`
	MaxGasPriceGwei uint64        `mapstructure:"max_gas_price_gwei"`
	FallbackGasGwei uint64        `mapstructure:"fallback_gas_gwei"`
}

// WalletAddressHex returns the wallet address as common.Address.
func (c *EthereumConfig) WalletAddressHex() common.Address {
	return common.HexToAddress(c.WalletAddress)
}

// ExchangeConfig holds CEX REST API configuration.
type ExchangeConfig struct {
	Name         string        `mapstructure:"name"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	Symbols      []string      `mapstructure:"symbols"`
	TakerFeeBps  float64       `mapstructure:"taker_fee_bps"`
	WeightPerSec int           `mapstructure:"weight_per_sec"`
	RecvWindow   time.Duration `mapstructure:"recv_window"`
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
}

// PoolsConfig holds the tracked AMM pool set.
type PoolsConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	WETH       string   `mapstructure:"weth_address"`
	MaxHops    int      `mapstructure:"max_hops"`
	DefaultFee int      `mapstructure:"default_fee_bps"`
}

// WETHAddressHex returns the WETH address as common.Address.
func (c *PoolsConfig) WETHAddressHex() common.Address {
	return common.HexToAddress(c.WETH)
}

// PoolAddresses returns the tracked pool addresses as common.Address.
func (c *PoolsConfig) PoolAddresses() []common.Address {
	out := make([]common.Address, len(c.Addresses))
	for i, a := range c.Addresses {
		out[i] = common.HexToAddress(a)
	}
	return out
}

// SimulatorConfig holds fork-simulator configuration.
type SimulatorConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	RouterAddress string `mapstructure:"router_address"`
	SenderAddress string `mapstructure:"sender_address"`
	FunderJSONEnv string `mapstructure:"funder_json_env"`
}

// RouterAddressHex returns the swap router address as common.Address.
func (c *SimulatorConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

// SenderAddressHex returns the simulated sender address as common.Address.
func (c *SimulatorConfig) SenderAddressHex() common.Address {
	return common.HexToAddress(c.SenderAddress)
}

// EngineConfig holds signal generation and scoring configuration.
type EngineConfig struct {
	TradeSize          float64       `mapstructure:"trade_size"`
	MinSpreadBps       float64       `mapstructure:"min_spread_bps"`
	ExcellentSpreadBps float64       `mapstructure:"excellent_spread_bps"`
	MinProfitUSD       float64       `mapstructure:"min_profit_usd"`
	DexSwapFeeBps      float64       `mapstructure:"dex_swap_fee_bps"`
	GasUSD             float64       `mapstructure:"gas_usd"`
	SignalTTL          time.Duration `mapstructure:"signal_ttl"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	ErrorBackoff       time.Duration `mapstructure:"error_backoff"`

	// Scorer weights; must sum to 1.
	WeightSpread    float64 `mapstructure:"weight_spread"`
	WeightLiquidity float64 `mapstructure:"weight_liquidity"`
	WeightInventory float64 `mapstructure:"weight_inventory"`
	WeightHistory   float64 `mapstructure:"weight_history"`
}

// TradeSizeDecimal returns the trade size as decimal.Decimal.
func (c *EngineConfig) TradeSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TradeSize)
}

// MinSpreadBpsDecimal returns min spread bps as decimal.Decimal.
func (c *EngineConfig) MinSpreadBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinSpreadBps)
}

// MinProfitUSDDecimal returns min profit USD as decimal.Decimal.
func (c *EngineConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

// RiskConfig holds operator-tunable risk caps.
type RiskConfig struct {
	MaxTradeUSD        float64 `mapstructure:"max_trade_usd"`
	MaxTradePctCapital float64 `mapstructure:"max_trade_pct_capital"`
	MaxDailyLossUSD    float64 `mapstructure:"max_daily_loss_usd"`
	MaxDrawdownPct     float64 `mapstructure:"max_drawdown_pct"`
	MaxConsecLosses    int     `mapstructure:"max_consecutive_losses"`
	MaxTradesPerHour   int     `mapstructure:"max_trades_per_hour"`
	StartingCapitalUSD float64 `mapstructure:"starting_capital_usd"`
}

// ExecutorConfig holds two-leg executor configuration.
type ExecutorConfig struct {
	DexFirst         bool          `mapstructure:"dex_first"`
	Leg1Timeout      time.Duration `mapstructure:"leg1_timeout"`
	Leg2Timeout      time.Duration `mapstructure:"leg2_timeout"`
	MinFillRatio     float64       `mapstructure:"min_fill_ratio"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerWindow    time.Duration `mapstructure:"breaker_window"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	ReplayTTL        time.Duration `mapstructure:"replay_ttl"`
}

// InventoryConfig holds inventory tracking configuration.
type InventoryConfig struct {
	RebalanceThresholdPct float64 `mapstructure:"rebalance_threshold_pct"`
}

// AlertsConfig holds alerting configuration.
type AlertsConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
}

// PnLConfig holds PnL export configuration.
type PnLConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.kill_switch_file", "ARB_KILL_SWITCH_FILE", "KILL_SWITCH_FILE")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "ARB_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	v.BindEnv("ethereum.wallet_address", "ARB_WALLET_ADDRESS", "WALLET_ADDRESS")

	// Exchange
	v.BindEnv("exchange.base_url", "ARB_EXCHANGE_BASE_URL", "EXCHANGE_BASE_URL")
	v.BindEnv("exchange.api_key", "ARB_EXCHANGE_API_KEY", "EXCHANGE_API_KEY")
	v.BindEnv("exchange.api_secret", "ARB_EXCHANGE_API_SECRET", "EXCHANGE_API_SECRET")
	v.BindEnv("exchange.symbols", "ARB_EXCHANGE_SYMBOLS", "EXCHANGE_SYMBOLS")

	// Pools
	v.BindEnv("pools.addresses", "ARB_POOL_ADDRESSES")
	v.BindEnv("pools.weth_address", "ARB_WETH_ADDRESS")

	// Simulator
	v.BindEnv("simulator.rpc_url", "ARB_SIM_RPC_URL", "SIM_RPC_URL")
	v.BindEnv("simulator.router_address", "ARB_SIM_ROUTER", "SIM_ROUTER")
	v.BindEnv("simulator.sender_address", "ARB_SIM_SENDER", "SIM_SENDER")
	v.BindEnv("simulator.funder_json_env", "ARB_SIM_FUNDERS_ENV")

	// Engine
	v.BindEnv("engine.trade_size", "ARB_TRADE_SIZE")
	v.BindEnv("engine.min_spread_bps", "ARB_MIN_SPREAD_BPS")
	v.BindEnv("engine.min_profit_usd", "ARB_MIN_PROFIT_USD")

	// Alerts
	v.BindEnv("alerts.telegram_token", "ARB_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	v.BindEnv("alerts.telegram_chat_id", "ARB_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	// PnL
	v.BindEnv("pnl.csv_path", "ARB_PNL_CSV_PATH")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "arb-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.kill_switch_file", "")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.retry_attempts", 3)
	v.SetDefault("ethereum.gas_cache_ttl", "12s") // ~1 block
	v.SetDefault("ethereum.max_gas_price_gwei", 500)
	v.SetDefault("ethereum.fallback_gas_gwei", 30)

	// Exchange defaults
	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.base_url", "https://api.binance.com")
	v.SetDefault("exchange.symbols", []string{"ETHUSDC"})
	v.SetDefault("exchange.taker_fee_bps", 10)
	v.SetDefault("exchange.weight_per_sec", 20)
	v.SetDefault("exchange.recv_window", "5s")
	v.SetDefault("exchange.stale_timeout", "5s")

	// Pools defaults
	v.SetDefault("pools.weth_address", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("pools.max_hops", 3)
	v.SetDefault("pools.default_fee_bps", 30)

	// Engine defaults
	v.SetDefault("engine.trade_size", 0.01)
	v.SetDefault("engine.min_spread_bps", 10)
	v.SetDefault("engine.excellent_spread_bps", 50)
	v.SetDefault("engine.min_profit_usd", 1)
	v.SetDefault("engine.dex_swap_fee_bps", 30)
	v.SetDefault("engine.gas_usd", 2)
	v.SetDefault("engine.signal_ttl", "10s")
	v.SetDefault("engine.cooldown", "30s")
	v.SetDefault("engine.tick_interval", "5s")
	v.SetDefault("engine.error_backoff", "10s")
	v.SetDefault("engine.weight_spread", 0.4)
	v.SetDefault("engine.weight_liquidity", 0.2)
	v.SetDefault("engine.weight_inventory", 0.2)
	v.SetDefault("engine.weight_history", 0.2)

	// Risk defaults
	v.SetDefault("risk.max_trade_usd", 20)
	v.SetDefault("risk.max_trade_pct_capital", 10)
	v.SetDefault("risk.max_daily_loss_usd", 10)
	v.SetDefault("risk.max_drawdown_pct", 15)
	v.SetDefault("risk.max_consecutive_losses", 3)
	v.SetDefault("risk.max_trades_per_hour", 10)
	v.SetDefault("risk.starting_capital_usd", 100)

	// Executor defaults
	v.SetDefault("executor.dex_first", false)
	v.SetDefault("executor.leg1_timeout", "10s")
	v.SetDefault("executor.leg2_timeout", "30s")
	v.SetDefault("executor.min_fill_ratio", 0.8)
	v.SetDefault("executor.breaker_threshold", 3)
	v.SetDefault("executor.breaker_window", "300s")
	v.SetDefault("executor.breaker_cooldown", "600s")
	v.SetDefault("executor.replay_ttl", "60s")

	// Inventory defaults
	v.SetDefault("inventory.rebalance_threshold_pct", 30)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arb-engine")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if !common.IsHexAddress(c.Pools.WETH) {
		return fmt.Errorf("invalid pools.weth_address: %s", c.Pools.WETH)
	}
	for _, a := range c.Pools.Addresses {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("invalid pool address: %s", a)
		}
	}
	if len(c.Exchange.Symbols) == 0 {
		return fmt.Errorf("exchange.symbols cannot be empty")
	}
	if c.Pools.DefaultFee < 0 || c.Pools.DefaultFee >= 10000 {
		return fmt.Errorf("pools.default_fee_bps must be in [0, 10000)")
	}
	if c.Executor.MinFillRatio <= 0 || c.Executor.MinFillRatio > 1 {
		return fmt.Errorf("executor.min_fill_ratio must be in (0, 1]")
	}
	// Replay entries must outlive the longest leg2 wait to block re-entry.
	if c.Executor.ReplayTTL <= c.Executor.Leg2Timeout {
		return fmt.Errorf("executor.replay_ttl must exceed executor.leg2_timeout")
	}
	return nil
}
