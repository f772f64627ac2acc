package main

import (
	"context"
	"errors"
	"os"

	"github.com/harmonia-sh/harmonia/internal/providers"
	"github.com/harmonia-sh/harmonia/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	provs := []providers.Provider{}
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		provs = append(provs, providers.NewSpotifyProvider(config.Credentials.Spotify, logger))
	}
	provs = append(provs,
		providers.NewDeezerProvider(config.Credentials.Deezer, logger),
		providers.NewMusicBrainzProvider(config.Credentials.MusicBrainz, logger),
	)

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Providers: provs,
		Logger:    logger,
	})

	app := &cli.Command{
		Name:     "harmonia",
		Usage:    "Sync and deduplicate your music catalog across providers",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
