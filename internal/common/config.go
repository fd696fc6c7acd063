// Package common provides shared utilities for Kabufolio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Kabufolio
type Config struct {
	Environment       string        `toml:"environment"`
	ReportingCurrency string        `toml:"reporting_currency"` // fixed to "JPY"; validated, not computed
	Server            ServerConfig  `toml:"server"`
	Storage           StorageConfig `toml:"storage"`
	Clients           ClientsConfig `toml:"clients"`
	Logging           LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage paths for the two storage areas.
type StorageConfig struct {
	Positions AreaConfig `toml:"positions"` // user-authored transaction ledger
	Market    AreaConfig `toml:"market"`    // derived market data cache
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	MarketData MarketDataConfig `toml:"market_data"`
}

// MarketDataConfig holds the market data API configuration
type MarketDataConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *MarketDataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:       "development",
		ReportingCurrency: "JPY",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8086,
		},
		Storage: StorageConfig{
			Positions: AreaConfig{Path: "data/positions"},
			Market:    AreaConfig{Path: "data/market"},
		},
		Clients: ClientsConfig{
			MarketData: MarketDataConfig{
				BaseURL:   "https://api.kabuplus.jp/v1",
				RateLimit: 5,
				Timeout:   "30s",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateReportingCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("KABUFOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("KABUFOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("KABUFOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("KABUFOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("KABUFOLIO_DATA_PATH"); path != "" {
		config.Storage.Positions.Path = path + "/positions"
		config.Storage.Market.Path = path + "/market"
	}

	if key := os.Getenv("KABUPLUS_API_KEY"); key != "" {
		config.Clients.MarketData.APIKey = key
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateReportingCurrency pins the reporting currency to JPY. All
// aggregate arithmetic assumes it; a different value is a config mistake.
func validateReportingCurrency(config *Config) {
	config.ReportingCurrency = "JPY"
}
