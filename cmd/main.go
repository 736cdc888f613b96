package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"

	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	shared.LoadDotenv("")

	if os.Getenv("OMRE_DEBUG") != "" {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	config := shared.DefaultConfig()
	configPath := "config.toml"
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		}
	}
	config.FromEnv()

	var market services.MarketService
	if config.Credentials.Kite.APIKey != "" && config.Credentials.Kite.APISecret != "" {
		if svc, err := services.NewKiteService(
			config.Credentials.Kite.APIKey,
			config.Credentials.Kite.APISecret,
			config.Credentials.Kite.RedirectURL,
		); err == nil {
			if config.Credentials.Kite.AccessToken != "" {
				svc.SetAccessToken(config.Credentials.Kite.AccessToken)
			}
			market = svc
		}
	}

	var google *services.GoogleService
	if config.Credentials.Google.ClientID != "" && config.Credentials.Google.ClientSecret != "" {
		if svc, err := services.NewGoogleService(
			config.Credentials.Google.ClientID,
			config.Credentials.Google.ClientSecret,
			config.Credentials.Google.RedirectURL,
		); err == nil {
			google = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Market:     market,
		Google:     google,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "omre",
		Usage:    "Kite market data pipeline & mobile dashboard server",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrMissingCredentials) {
			logger.Error("missing Kite credentials; run `omre setup config` or set KITE_API_KEY and KITE_API_SECRET")
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
