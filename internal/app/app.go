// Package app wires configuration, storage, clients, and services into
// the running application.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knakatani/kabufolio/internal/clients/kabuplus"
	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/interfaces"
	"github.com/knakatani/kabufolio/internal/services/market"
	"github.com/knakatani/kabufolio/internal/services/portfolio"
	"github.com/knakatani/kabufolio/internal/storage"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Clock            interfaces.Clock
	Positions        interfaces.PositionStore
	MarketClient     interfaces.MarketDataClient
	MarketService    interfaces.MarketService
	PortfolioService interfaces.PortfolioService
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes config, logging, storage, clients, and services.
// configPath may be empty, in which case the default resolution is used.
func NewApp(configPath string) (*App, error) {
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("KABUFOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "kabufolio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/kabufolio.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory
	if !filepath.IsAbs(config.Storage.Positions.Path) {
		config.Storage.Positions.Path = filepath.Join(binDir, config.Storage.Positions.Path)
	}
	if !filepath.IsAbs(config.Storage.Market.Path) {
		config.Storage.Market.Path = filepath.Join(binDir, config.Storage.Market.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	positionStore, err := storage.NewFilePositionStore(logger, config.Storage.Positions.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize position store: %w", err)
	}

	cache, err := storage.NewFileCache(logger, config.Storage.Market.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market cache: %w", err)
	}

	if config.Clients.MarketData.APIKey == "" {
		logger.Warn().Msg("Market data API key not configured - live valuation will degrade to cached data")
	}

	client := kabuplus.NewClient(config.Clients.MarketData.APIKey,
		kabuplus.WithBaseURL(config.Clients.MarketData.BaseURL),
		kabuplus.WithRateLimit(config.Clients.MarketData.RateLimit),
		kabuplus.WithTimeout(config.Clients.MarketData.GetTimeout()),
		kabuplus.WithLogger(logger),
	)

	clock := common.SystemClock{}
	marketService := market.NewService(client, cache, clock, logger)
	portfolioService := portfolio.NewService(marketService, clock, logger)

	return &App{
		Config:           config,
		Logger:           logger,
		Clock:            clock,
		Positions:        positionStore,
		MarketClient:     client,
		MarketService:    marketService,
		PortfolioService: portfolioService,
		StartupTime:      time.Now(),
	}, nil
}
