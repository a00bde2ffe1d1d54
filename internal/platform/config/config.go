package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	JWTSecret      string
	LogLevel       slog.Level
	StorageDriver  string
	MigrationsPath string
	RateLimit      string // ulule limiter format, e.g. "100-M"
	CORSOrigins    []string

	MarketRates MarketRatesConfig
}

// MarketRatesConfig configures the external market-rate source. An empty APIURL
// leaves market refresh unavailable.
type MarketRatesConfig struct {
	APIURL            string
	APIKey            string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
}

// Enabled reports whether a market-rate source is configured.
func (m MarketRatesConfig) Enabled() bool {
	return m.APIURL != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("MARKET_RATES_API_URL", "")
	v.SetDefault("MARKET_RATES_API_KEY", "")
	v.SetDefault("MARKET_RATES_TIMEOUT", "10s")
	v.SetDefault("MARKET_RATES_CACHE_TTL", "15m")
	v.SetDefault("MARKET_RATES_PER_MINUTE", 30)
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:    v.GetString("PGSQL_URL"),
		Port:           v.GetString("PORT"),
		IsProduction:   v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:  v.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		StorageDriver:  strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		RateLimit:      v.GetString("RATE_LIMIT"),
		CORSOrigins:    splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		MarketRates: MarketRatesConfig{
			APIURL:            v.GetString("MARKET_RATES_API_URL"),
			APIKey:            v.GetString("MARKET_RATES_API_KEY"),
			RequestsPerMinute: v.GetInt("MARKET_RATES_PER_MINUTE"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		slog.Warn("Invalid LOG_LEVEL, defaulting to info", slog.String("value", v.GetString("LOG_LEVEL")))
		cfg.LogLevel = slog.LevelInfo
	}

	var err error
	if cfg.MarketRates.Timeout, err = parseDuration(v, "MARKET_RATES_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.MarketRates.CacheTTL, err = parseDuration(v, "MARKET_RATES_CACHE_TTL"); err != nil {
		return nil, err
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("PGSQL_URL must be set when STORAGE_DRIVER is %q", StorageDriverPostgres)
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		slog.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "insecure-development-secret"
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s (%q): %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
