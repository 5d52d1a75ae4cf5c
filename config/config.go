// Package config loads papertrade settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Market data providers.
const (
	ProviderBinance     = "binance"
	ProviderBybit       = "bybit"
	ProviderHyperliquid = "hyperliquid"
)

const (
	dataDirEnv   = "PAPERTRADE_DATA_DIR"
	redisAddrEnv = "PAPERTRADE_REDIS_ADDR"
)

type Config struct {
	DataDir            string          `yaml:"data_dir"`
	JournalDir         string          `yaml:"journal_dir"`
	Storage            string          `yaml:"storage"`
	Redis              RedisConfig     `yaml:"redis"`
	Market             MarketConfig    `yaml:"market"`
	Dashboard          DashboardConfig `yaml:"dashboard"`
	Log                LogConfig       `yaml:"log"`
	RecentTransactions int             `yaml:"recent_transactions"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MarketConfig struct {
	Provider       string        `yaml:"provider"`
	Quote          string        `yaml:"quote"`
	CatalogSize    int           `yaml:"catalog_size"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl"`
	PriceTTL       time.Duration `yaml:"price_ttl"`
	HistoryTTL     time.Duration `yaml:"history_ttl"`
	HistoryDays    int           `yaml:"history_days"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// HyperliquidURL overrides the mainnet API endpoint.
	HyperliquidURL string `yaml:"hyperliquid_url"`
	// HyperliquidPrivateKey is optional; an ephemeral key is generated when empty.
	HyperliquidPrivateKey string `yaml:"hyperliquid_private_key"`
}

type DashboardConfig struct {
	Addr string `yaml:"addr"`
	// TLSDomains enables HTTPS with Let's Encrypt certificates for these hosts.
	TLSDomains []string `yaml:"tls_domains"`
	CertCache  string   `yaml:"cert_cache"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:    "./data/ledgers",
		JournalDir: "./wal/trades",
		Storage:    StorageFile,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "papertrade:ledger:",
		},
		Market: MarketConfig{
			Provider:       ProviderBinance,
			Quote:          "USDT",
			CatalogSize:    100,
			CatalogTTL:     time.Hour,
			PriceTTL:       time.Minute,
			HistoryTTL:     5 * time.Minute,
			HistoryDays:    30,
			RequestTimeout: 10 * time.Second,
		},
		Dashboard: DashboardConfig{
			Addr:      ":8080",
			CertCache: "./data/certs",
		},
		Log: LogConfig{
			Level: "info",
		},
		RecentTransactions: 10,
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields the defaults.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(f, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse yaml config %s", path)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		c.DataDir = dir
	}
	if addr := os.Getenv(redisAddrEnv); addr != "" {
		c.Redis.Addr = addr
		c.Storage = StorageRedis
	}
}

func (c *Config) normalize() {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	c.Market.Provider = strings.ToLower(strings.TrimSpace(c.Market.Provider))
	c.Market.Quote = strings.ToUpper(strings.TrimSpace(c.Market.Quote))
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageFile:
		if c.DataDir == "" {
			return fmt.Errorf("incorrect 'data_dir' param in yaml config: must be set for file storage")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("incorrect 'redis.addr' param in yaml config: must be set for redis storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("incorrect 'storage' param in yaml config: %q (use file, redis or memory)", c.Storage)
	}

	switch c.Market.Provider {
	case ProviderBinance, ProviderBybit, ProviderHyperliquid:
	default:
		return fmt.Errorf("incorrect 'market.provider' param in yaml config: %q (use binance, bybit or hyperliquid)", c.Market.Provider)
	}

	if c.Market.Quote == "" {
		return fmt.Errorf("incorrect 'market.quote' param in yaml config: must be set")
	}
	if c.Market.CatalogSize <= 0 {
		return fmt.Errorf("incorrect 'market.catalog_size' param in yaml config: %d (must be positive)", c.Market.CatalogSize)
	}
	if c.Market.HistoryDays <= 0 {
		return fmt.Errorf("incorrect 'market.history_days' param in yaml config: %d (must be positive)", c.Market.HistoryDays)
	}
	for name, ttl := range map[string]time.Duration{
		"catalog_ttl":     c.Market.CatalogTTL,
		"price_ttl":       c.Market.PriceTTL,
		"history_ttl":     c.Market.HistoryTTL,
		"request_timeout": c.Market.RequestTimeout,
	} {
		if ttl < 0 {
			return fmt.Errorf("incorrect 'market.%s' param in yaml config: %s (must not be negative)", name, ttl)
		}
	}
	if c.RecentTransactions <= 0 {
		return fmt.Errorf("incorrect 'recent_transactions' param in yaml config: %d (must be positive)", c.RecentTransactions)
	}
	if len(c.Dashboard.TLSDomains) > 0 && c.Dashboard.CertCache == "" {
		return fmt.Errorf("incorrect 'dashboard.cert_cache' param in yaml config: required with tls_domains")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("incorrect 'log.level' param in yaml config: %w", err)
	}

	return nil
}

// NewLogger builds a zap logger from the log settings.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}

	zcfg := zap.NewProductionConfig()
	if l.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
