package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Nik1855/CryptoMasterPro/internal/logging"
)

// Config materialises static application configuration. Mutable runtime state
// (subscribers, thresholds, watch map) lives in Settings, not here.
type Config struct {
	App       AppConfig      `mapstructure:"app"`
	Logging   logging.Config `mapstructure:"logging"`
	Database  DatabaseConfig `mapstructure:"database"`
	Settings  SettingsConfig `mapstructure:"settings"`
	Monitor   MonitorConfig  `mapstructure:"monitor"`
	SelfHeal  SelfHealConfig `mapstructure:"self_heal"`
	Market    MarketConfig   `mapstructure:"market"`
	Explorers ExplorerConfig `mapstructure:"explorers"`
	Ethereum  EthereumConfig `mapstructure:"ethereum"`
	AI        AIConfig       `mapstructure:"ai"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Analysis  AnalysisConfig `mapstructure:"analysis"`
	Cache     CacheConfig    `mapstructure:"cache"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SettingsConfig locates the write-through runtime settings file.
type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig governs the monitoring loop cadence.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// SelfHealConfig governs the self-improvement loop.
type SelfHealConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Backoff     time.Duration `mapstructure:"backoff"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	SourceDir   string        `mapstructure:"source_dir"`
	TestTimeout time.Duration `mapstructure:"test_timeout"`
}

// MarketConfig covers exchange ticker access.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ExplorerConfig captures chain-explorer connectivity.
type ExplorerConfig struct {
	RequestTimeout time.Duration       `mapstructure:"request_timeout"`
	MaxPerChain    int                 `mapstructure:"max_per_chain"`
	Chains         map[string]Explorer `mapstructure:"chains"`
}

// Explorer describes one etherscan-style API endpoint.
type Explorer struct {
	Name   string `mapstructure:"name"`
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

// EthereumConfig covers the raw RPC whale source.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AIConfig covers the code-generation and recommendation collaborator.
type AIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig describes the notification transport.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AnalysisConfig tunes the deep analysis job.
type AnalysisConfig struct {
	Timeframe   string        `mapstructure:"timeframe"`
	HistoryDays int           `mapstructure:"history_days"`
	ChartDir    string        `mapstructure:"chart_dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig sets collaborator cache TTLs.
type CacheConfig struct {
	PriceTTL time.Duration `mapstructure:"price_ttl"`
	ChainTTL time.Duration `mapstructure:"chain_ttl"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRYPTOMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cryptomaster")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("settings.path", "settings.json")

	v.SetDefault("monitor.interval", "60s")
	v.SetDefault("monitor.backoff", "120s")

	v.SetDefault("self_heal.interval", "1h")
	v.SetDefault("self_heal.backoff", "600s")
	v.SetDefault("self_heal.max_attempts", 5)
	v.SetDefault("self_heal.source_dir", ".")
	v.SetDefault("self_heal.test_timeout", "5m")

	v.SetDefault("market.base_url", "https://api.binance.com")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "cryptomaster/1.0")

	v.SetDefault("explorers.request_timeout", "10s")
	v.SetDefault("explorers.max_per_chain", 5)
	for chain, explorer := range map[string]Explorer{
		"eth":   {Name: "Etherscan", APIURL: "https://api.etherscan.io/api"},
		"bsc":   {Name: "BscScan", APIURL: "https://api.bscscan.com/api"},
		"matic": {Name: "PolygonScan", APIURL: "https://api.polygonscan.com/api"},
		"arb":   {Name: "Arbiscan", APIURL: "https://api.arbiscan.io/api"},
		"op":    {Name: "Optimistic Etherscan", APIURL: "https://api-optimistic.etherscan.io/api"},
		"avax":  {Name: "SnowTrace", APIURL: "https://api.snowtrace.io/api"},
	} {
		v.SetDefault("explorers.chains."+chain+".name", explorer.Name)
		v.SetDefault("explorers.chains."+chain+".api_url", explorer.APIURL)
	}

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("ai.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("ai.model", "deepseek-chat")
	v.SetDefault("ai.request_timeout", "120s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")

	v.SetDefault("analysis.timeframe", "4h")
	v.SetDefault("analysis.history_days", 90)
	v.SetDefault("analysis.chart_dir", "charts")
	v.SetDefault("analysis.timeout", "60s")

	v.SetDefault("cache.price_ttl", "60s")
	v.SetDefault("cache.chain_ttl", "1h")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.SelfHeal.Interval <= 0 {
		return fmt.Errorf("self_heal.interval must be greater than zero")
	}
	if c.SelfHeal.MaxAttempts <= 0 {
		return fmt.Errorf("self_heal.max_attempts must be greater than zero")
	}
	if c.Cache.PriceTTL <= 0 || c.Cache.ChainTTL <= 0 {
		return fmt.Errorf("cache ttls must be greater than zero")
	}
	if c.Settings.Path == "" {
		return fmt.Errorf("settings.path is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	return nil
}
