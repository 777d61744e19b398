package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION - enumerated engine config
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on internal/config/config.go's getEnv*-helper idiom and
// Load()-returns-*Config pattern, generalized with an optional YAML file
// (CONFIG_FILE env var) for operators who prefer a static file over a wall
// of env vars - file values win over env defaults, env vars always win over
// the file, matching the common "flags override file override defaults"
// precedence seen across the pack's config loaders.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds the Monitor Engine's tunables.
type Config struct {
	PriceTickMs                  int           `yaml:"priceTickMs"`
	SyncTickMs                   int           `yaml:"syncTickMs"`
	PriceFetchTimeoutMs          int           `yaml:"priceFetchTimeoutMs"`
	TrailingStopEpsilon          float64       `yaml:"trailingStopEpsilon"`
	TrailingStopEnabledByDefault bool          `yaml:"trailingStopEnabledByDefault"`
	StoreConnection              string        `yaml:"storeConnection"`
	ActiveCollectionName         string        `yaml:"activeCollectionName"`

	StopGracePeriod time.Duration `yaml:"-"`

	TelegramToken  string `yaml:"-"`
	TelegramChatID int64  `yaml:"-"`
}

// Default returns the engine's baseline configuration.
func Default() Config {
	return Config{
		PriceTickMs:                  30_000,
		SyncTickMs:                   60_000,
		PriceFetchTimeoutMs:          10_000,
		TrailingStopEpsilon:          0.01,
		TrailingStopEnabledByDefault: true,
		StoreConnection:              "data/positions.db",
		ActiveCollectionName:         "positions",
		StopGracePeriod:              5 * time.Second,
	}
}

// Load builds a Config from defaults, an optional YAML file (CONFIG_FILE),
// then environment variable overrides, in that precedence order.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.PriceTickMs = getEnvInt("PRICE_TICK_MS", cfg.PriceTickMs)
	cfg.SyncTickMs = getEnvInt("SYNC_TICK_MS", cfg.SyncTickMs)
	cfg.PriceFetchTimeoutMs = getEnvInt("PRICE_FETCH_TIMEOUT_MS", cfg.PriceFetchTimeoutMs)
	cfg.TrailingStopEpsilon = getEnvFloat("TRAILING_STOP_EPSILON", cfg.TrailingStopEpsilon)
	cfg.TrailingStopEnabledByDefault = getEnvBool("TRAILING_STOP_ENABLED_BY_DEFAULT", cfg.TrailingStopEnabledByDefault)
	cfg.StoreConnection = getEnv("STORE_CONNECTION", cfg.StoreConnection)
	cfg.ActiveCollectionName = getEnv("ACTIVE_COLLECTION_NAME", cfg.ActiveCollectionName)

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// Epsilon returns TrailingStopEpsilon as a decimal.Decimal for arithmetic.
func (c Config) Epsilon() decimal.Decimal {
	return decimal.NewFromFloat(c.TrailingStopEpsilon)
}

// PriceTick returns PriceTickMs as a time.Duration.
func (c Config) PriceTick() time.Duration {
	return time.Duration(c.PriceTickMs) * time.Millisecond
}

// SyncTick returns SyncTickMs as a time.Duration.
func (c Config) SyncTick() time.Duration {
	return time.Duration(c.SyncTickMs) * time.Millisecond
}

// PriceFetchTimeout returns PriceFetchTimeoutMs as a time.Duration.
func (c Config) PriceFetchTimeout() time.Duration {
	return time.Duration(c.PriceFetchTimeoutMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1" || v == "yes"
	}
	return defaultValue
}
