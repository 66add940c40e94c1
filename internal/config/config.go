// Package config loads the watcher's configuration from defaults, an
// optional .env file, and the process environment, in that precedence
// order, following the layering convention used across this codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/zano-fusd/deposit-watcher/internal/domainerr"
)

// TickerConfig holds the per-ticker settings named in spec §6: decimals,
// asset mode, initial minimum confirmations, and sweep rules.
type TickerConfig struct {
	Decimals          int    `mapstructure:"decimals"`
	AssetID           string `mapstructure:"asset_id"`
	MinConfirmations  int    `mapstructure:"min_confirmations"`
	WebhookURL        string `mapstructure:"webhook_url"`
	// DepositAddress is the shared treasury address asset-mode tickers
	// accept deposits at; paymentId alone disambiguates the payer, since
	// asset transfers share one wallet address. Base-coin tickers leave
	// this empty and get a unique integrated address per Job instead.
	DepositAddress    string            `mapstructure:"deposit_address"`
	Consolidation     ConsolidationRule `mapstructure:"consolidation"`
}

// ConsolidationRule controls sweeping confirmed deposits to a treasury
// address. Mixin and Priority are fixed by the source at 3 and 0 but made
// implementation-exposed here per spec §9's open question; Load reads an
// unset (zero) Mixin as 3.
type ConsolidationRule struct {
	Enabled          bool   `mapstructure:"enabled"`
	Address          string `mapstructure:"address"`
	FeeAtomic        string `mapstructure:"fee_atomic"`
	MinConfirmations int    `mapstructure:"min_confirmations"`
	Mixin            int    `mapstructure:"mixin"`
	Priority         int    `mapstructure:"priority"`
}

// WalletRPCConfig describes how to reach the wallet JSON-RPC endpoint.
type WalletRPCConfig struct {
	URL          string `mapstructure:"url"`
	BasicAuthUser string `mapstructure:"basic_auth_user"`
	BasicAuthPass string `mapstructure:"basic_auth_pass"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
}

// KVConfig describes the backing KV store connection.
type KVConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SecretsConfig selects where the watcher loads sensitive values from.
type SecretsConfig struct {
	Provider string `mapstructure:"provider"` // "env" (default) or "aws"
	AWSRegion string `mapstructure:"aws_region"`
}

// Config is the immutable, fully-resolved configuration passed into the
// Scheduler, State Machine, and RPC/webhook clients — replacing the source's
// ambient process-environment reads per spec §9's re-architecture note.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogErrorFile string `mapstructure:"log_error_file"`

	HTTPPort int `mapstructure:"http_port"`

	KV     KVConfig        `mapstructure:"kv"`
	Wallet WalletRPCConfig `mapstructure:"wallet"`
	Secrets SecretsConfig  `mapstructure:"secrets"`

	Tickers []string                `mapstructure:"tickers"`
	Ticker  map[string]TickerConfig `mapstructure:"ticker"`

	IntervalMs     int `mapstructure:"interval_ms"`
	ScanCount      int `mapstructure:"scan_count"`
	ErrorBackoffMs int `mapstructure:"error_backoff_ms"`

	WebhookSecret          string `mapstructure:"webhook_secret"`
	WebhookTimeoutMs       int    `mapstructure:"webhook_timeout_ms"`
	WebhookBackoffBaseMs   int64  `mapstructure:"webhook_backoff_base_ms"`
	WebhookBackoffFactor   float64 `mapstructure:"webhook_backoff_factor"`
	WebhookBackoffMaxMs    int64  `mapstructure:"webhook_backoff_max_ms"`
	WebhookBackoffJitter   bool   `mapstructure:"webhook_backoff_jitter"`
	WebhookMaxAttempts     int    `mapstructure:"webhook_max_attempts"`
	WebhookMaxRetryWindowMs int64 `mapstructure:"webhook_max_retry_window_ms"`

	SeenTTLSeconds   int `mapstructure:"seen_ttl_seconds"`
	JobTTLSeconds    int `mapstructure:"job_ttl_seconds"`
	StatusTTLSeconds int `mapstructure:"status_ttl_seconds"`

	DepositLedgerMode        string `mapstructure:"deposit_ledger_mode"` // off|kv|disk
	DepositLedgerDir         string `mapstructure:"deposit_ledger_dir"`
	DepositLedgerTTLSeconds  int    `mapstructure:"deposit_ledger_ttl_seconds"`

	KeyPrefix string `mapstructure:"key_prefix"`

	APIKey string `mapstructure:"api_key"`

	IntakeRateLimitPerSecond int `mapstructure:"intake_rate_limit_per_second"`
	IntakeRateLimitBurst     int `mapstructure:"intake_rate_limit_burst"`

	StatusCacheTTLMs int `mapstructure:"status_cache_ttl_ms"`
}

// Load applies defaults, an optional .env file, AUTOMATIC env-var
// overrides, the ticker-map overrides that flat env vars cannot express,
// then unmarshals and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("watcher")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Consolidation mixin defaults to 3 when a ticker leaves it unset.
	for t, tc := range cfg.Ticker {
		if tc.Consolidation.Mixin == 0 {
			tc.Consolidation.Mixin = 3
			cfg.Ticker[t] = tc
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("http_port", 8080)

	viper.SetDefault("kv.addr", "localhost:6379")
	viper.SetDefault("kv.db", 0)
	viper.SetDefault("kv.prefix", "zano")

	viper.SetDefault("wallet.timeout_ms", 8000)

	viper.SetDefault("secrets.provider", "env")

	viper.SetDefault("tickers", []string{})

	viper.SetDefault("interval_ms", 15000)
	viper.SetDefault("scan_count", 100)
	viper.SetDefault("error_backoff_ms", 30000)

	viper.SetDefault("webhook_timeout_ms", 10000)
	viper.SetDefault("webhook_backoff_base_ms", 1000)
	viper.SetDefault("webhook_backoff_factor", 2.0)
	viper.SetDefault("webhook_backoff_max_ms", int64((20 * time.Minute).Milliseconds()))
	viper.SetDefault("webhook_backoff_jitter", true)
	viper.SetDefault("webhook_max_attempts", 0)
	viper.SetDefault("webhook_max_retry_window_ms", int64((2 * time.Hour).Milliseconds()))

	viper.SetDefault("seen_ttl_seconds", 4*60*60)
	viper.SetDefault("job_ttl_seconds", 24*60*60)
	viper.SetDefault("status_ttl_seconds", 7*24*60*60)

	viper.SetDefault("deposit_ledger_mode", "off")
	viper.SetDefault("deposit_ledger_ttl_seconds", 30*24*60*60)

	viper.SetDefault("key_prefix", "zano")

	viper.SetDefault("intake_rate_limit_per_second", 5)
	viper.SetDefault("intake_rate_limit_burst", 10)

	viper.SetDefault("status_cache_ttl_ms", 5000)
}

// overrideFromEnv maps the environment-style options named in spec §6 that
// viper's flat AutomaticEnv cannot express directly — comma-separated
// ticker lists and the per-ticker nested maps.
func overrideFromEnv() {
	if v := getenv("ZANO_TICKERS"); v != "" {
		viper.Set("tickers", splitCSV(v))
	}
	if v := getenv("ZANO_KV_ADDR"); v != "" {
		viper.Set("kv.addr", v)
	}
	if v := getenv("ZANO_KV_PASSWORD"); v != "" {
		viper.Set("kv.password", v)
	}
	if v := getenv("ZANO_WALLET_URL"); v != "" {
		viper.Set("wallet.url", v)
	}
	if v := getenv("ZANO_WEBHOOK_SECRET"); v != "" {
		viper.Set("webhook_secret", v)
	}
	if v := getenv("ZANO_API_KEY"); v != "" {
		viper.Set("api_key", v)
	}

	for _, ticker := range splitCSV(getenv("ZANO_TICKERS")) {
		up := strings.ToUpper(ticker)
		if v := getenv("ZANO_DECIMALS_" + up); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				viper.Set("ticker."+ticker+".decimals", n)
			}
		}
		if v := getenv("ZANO_MIN_CONF_" + up); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				viper.Set("ticker."+ticker+".min_confirmations", n)
			}
		}
		if v := getenv("ZANO_ASSET_ID_" + up); v != "" {
			viper.Set("ticker."+ticker+".asset_id", v)
		}
		if v := getenv("ZANO_WEBHOOK_URL_" + up); v != "" {
			viper.Set("ticker."+ticker+".webhook_url", v)
		}
		if v := getenv("ZANO_CONSOLIDATION_ADDRESS_" + up); v != "" {
			viper.Set("ticker."+ticker+".consolidation.enabled", true)
			viper.Set("ticker."+ticker+".consolidation.address", v)
		}
	}
}

func validate(cfg *Config) error {
	if cfg.KV.Addr == "" {
		return domainerr.NotConfiguredError("kv.addr")
	}
	if cfg.Wallet.URL == "" {
		return domainerr.NotConfiguredError("wallet.url")
	}
	if cfg.WebhookSecret == "" {
		return domainerr.NotConfiguredError("webhook_secret")
	}
	if len(cfg.Tickers) == 0 {
		return domainerr.NotConfiguredError("tickers")
	}
	for _, t := range cfg.Tickers {
		tc, ok := cfg.Ticker[t]
		if !ok {
			return domainerr.ValidationError("ticker", fmt.Sprintf("ticker %q is enabled but has no configuration", t))
		}
		if tc.Decimals < 0 {
			return domainerr.ValidationError("decimals", fmt.Sprintf("ticker %q has negative decimals", t))
		}
	}
	return nil
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key string) string {
	return os.Getenv(key)
}
