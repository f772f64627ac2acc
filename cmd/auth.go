package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/providers"
	"github.com/harmonia-sh/harmonia/internal/server"
	"github.com/harmonia-sh/harmonia/internal/shared"
	"github.com/urfave/cli/v3"
)

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize a provider for user-library access",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Run the Spotify OAuth authorization flow",
				Action: r.AuthSpotify,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Config file to save tokens to",
						Value: "config.toml",
					},
				},
			},
		},
	}
}

// AuthSpotify runs the authorization-code flow: it prints the authorization
// URL, waits for the redirect on the loopback listener, then persists the
// exchanged token to the config file.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	p, ok := r.provider(models.ProviderSpotify).(*providers.SpotifyProvider)
	if !ok || p == nil {
		return fmt.Errorf("spotify is not configured; set client_id and client_secret in config.toml")
	}

	state := shared.GenerateID()

	addr, err := callbackAddr(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	r.writePlain("Open this URL in your browser to authorize:\n\n%s\n\n", p.AuthURL(state))
	r.writePlain("Waiting for callback on %s ...\n", addr)

	handler := server.NewOAuthHandler(p.OAuthConfig(), state)
	token, err := server.NewCallbackServer(addr, handler).ListenAndWait(ctx)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	p.SetToken(ctx, token)

	r.config.Credentials.Spotify.AccessToken = token.AccessToken
	r.config.Credentials.Spotify.RefreshToken = token.RefreshToken

	path := cmd.String("config")
	if err := saveConfig(path, r.config); err != nil {
		return err
	}

	r.writePlain("Authorization successful. Tokens saved to %s\n", path)
	return nil
}

// callbackAddr derives the listen address from the configured redirect URI,
// defaulting to localhost:8080.
func callbackAddr(redirectURI string) (string, error) {
	if redirectURI == "" {
		return "localhost:8080", nil
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Host == "" {
		return "localhost:8080", nil
	}
	return u.Host, nil
}

// saveConfig writes the full config back to path as TOML.
func saveConfig(path string, config *shared.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
