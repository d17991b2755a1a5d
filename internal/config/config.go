// Package config defines all configuration for the market-data and
// trading core. Config is loaded from a YAML file (default:
// configs/config.yaml) with sensitive fields overridable via MKC_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	DryRun    bool             `mapstructure:"dry_run"`
	Markets   []MarketConfig   `mapstructure:"markets"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Broadcast BroadcastConfig  `mapstructure:"broadcast"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Reconnect ReconnectConfig  `mapstructure:"reconnect"`
	Timeouts  TimeoutConfig    `mapstructure:"timeouts"`
	Store     StoreConfig      `mapstructure:"store"`
	TradeData TradeDataConfig  `mapstructure:"trade_data"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// MarketConfig activates one (exchange, market type) pair: which symbols
// and candle intervals to subscribe, and the credentials/base URLs for
// that venue's REST and WS collaborators.
type MarketConfig struct {
	MarketType   string        `mapstructure:"market_type"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	WSMarketURL  string        `mapstructure:"ws_market_url"`
	WSUserURL    string        `mapstructure:"ws_user_url"`
	ProxyURL     string        `mapstructure:"proxy_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	Symbols      []string      `mapstructure:"symbols"`
	Intervals    []string      `mapstructure:"intervals"`
}

// CacheConfig sets the bounded ring-buffer capacities for C3.
type CacheConfig struct {
	KlineCapacity int `mapstructure:"kline_capacity"`
	TradeCapacity int `mapstructure:"trade_capacity"`
}

// BroadcastConfig sets the bounded channel capacity for subscriber buses.
type BroadcastConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// WindowLimit is one (window_ms, capacity) rate-limit table entry.
type WindowLimit struct {
	WindowMS int `mapstructure:"window_ms"`
	Capacity int `mapstructure:"capacity"`
}

// RateLimitConfig carries the API and stream rate-limit tables.
type RateLimitConfig struct {
	API    []WindowLimit `mapstructure:"api"`
	Stream []WindowLimit `mapstructure:"stream"`
}

// ReconnectConfig controls the WS supervisor's rebuild cadence.
type ReconnectConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TimeoutConfig carries the independent timeouts named in §5.
type TimeoutConfig struct {
	Connect  time.Duration `mapstructure:"connect"`
	Call     time.Duration `mapstructure:"call"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
	APICall  time.Duration `mapstructure:"api_call"`
}

// StoreConfig sets where the persistent store (C9) keeps its database file.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TradeDataConfig tunes the trade-data manager's (C8) reconciliation loop
// (RefreshInterval) and the market-data manager's (C7) staleness
// threshold (GapThreshold).
type TradeDataConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	GapThreshold    time.Duration `mapstructure:"gap_threshold"`
	KlineJumpThreshold time.Duration `mapstructure:"kline_jump_threshold"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: MKC_API_KEY, MKC_API_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MKC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("MKC_API_KEY"); key != "" && len(cfg.Markets) > 0 {
		cfg.Markets[0].APIKey = key
	}
	if secret := os.Getenv("MKC_API_SECRET"); secret != "" && len(cfg.Markets) > 0 {
		cfg.Markets[0].APISecret = secret
	}
	if os.Getenv("MKC_DRY_RUN") == "true" || os.Getenv("MKC_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.kline_capacity", 1000)
	v.SetDefault("cache.trade_capacity", 5000)
	v.SetDefault("broadcast.capacity", 256)
	v.SetDefault("reconnect.interval", 5*time.Second)
	v.SetDefault("timeouts.connect", 10*time.Second)
	v.SetDefault("timeouts.call", 5*time.Second)
	v.SetDefault("timeouts.heartbeat", 20*time.Second)
	v.SetDefault("timeouts.api_call", 10*time.Second)
	v.SetDefault("store.db_path", "data/marketcore.duckdb")
	v.SetDefault("trade_data.refresh_interval", 30*time.Second)
	v.SetDefault("trade_data.gap_threshold", 10*time.Second)
	v.SetDefault("trade_data.kline_jump_threshold", 5*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one markets entry is required")
	}
	for i, m := range c.Markets {
		if m.MarketType == "" {
			return fmt.Errorf("markets[%d].market_type is required", i)
		}
		if m.APIBaseURL == "" {
			return fmt.Errorf("markets[%d].api_base_url is required", i)
		}
		if len(m.Symbols) == 0 {
			return fmt.Errorf("markets[%d].symbols must not be empty", i)
		}
	}
	if c.Cache.KlineCapacity <= 0 {
		return fmt.Errorf("cache.kline_capacity must be > 0")
	}
	if c.Cache.TradeCapacity <= 0 {
		return fmt.Errorf("cache.trade_capacity must be > 0")
	}
	if c.TradeData.RefreshInterval <= 0 {
		return fmt.Errorf("trade_data.refresh_interval must be > 0")
	}
	return nil
}
