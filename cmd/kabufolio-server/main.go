package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knakatani/kabufolio/internal/app"
	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/server"
)

func main() {
	configPath := os.Getenv("KABUFOLIO_CONFIG")

	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	if path := os.Getenv("KABUFOLIO_IMPORT_POSITIONS"); path != "" {
		imported, skipped, err := a.ImportPositionsFromFile(context.Background(), path)
		if err != nil {
			a.Logger.Error().Err(err).Str("path", path).Msg("Ledger import failed")
		} else {
			a.Logger.Info().Int("imported", imported).Int("skipped", skipped).Msg("Ledger import complete")
		}
	}

	go a.WarmCache(context.Background())

	srv := server.NewServer(a)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.Logger.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	common.PrintShutdownBanner(a.Logger)
}
