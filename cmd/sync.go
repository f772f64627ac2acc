package main

import (
	"context"
	"fmt"

	"github.com/harmonia-sh/harmonia/internal/engine"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/providers"
	"github.com/harmonia-sh/harmonia/internal/repositories"
	"github.com/urfave/cli/v3"
)

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run provider syncs against the local catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Sync a single provider (spotify, deezer)",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Ignore cooldowns",
			},
		},
		Action: r.SyncAll,
		Commands: []*cli.Command{
			{
				Name:      "artist",
				Usage:     "Sync one artist's discography",
				ArgsUsage: "<artist-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Aliases: []string{"p"}},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}},
				},
				Action: r.SyncArtist,
			},
			{
				Name:      "album",
				Usage:     "Sync one album's track list",
				ArgsUsage: "<album-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Aliases: []string{"p"}},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}},
				},
				Action: r.SyncAlbum,
			},
		},
	}
}

// syncProviders resolves the --provider flag to the services to run.
func (r *Runner) syncProviders(cmd *cli.Command) ([]providers.Provider, error) {
	name := cmd.String("provider")
	if name == "" {
		var provs []providers.Provider
		for _, p := range r.providers {
			if p.Name() == models.ProviderMusicBrainz {
				continue // lookup-only, nothing to sync
			}
			provs = append(provs, p)
		}
		return provs, nil
	}

	p := r.provider(name)
	if p == nil {
		return nil, fmt.Errorf("unknown or unconfigured provider: %s", name)
	}
	return []providers.Provider{p}, nil
}

// SyncAll runs the collection syncs for the selected providers.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	provs, err := r.syncProviders(cmd)
	if err != nil {
		return err
	}
	force := cmd.Bool("force")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	settings := repositories.NewSettingsRepository(db)

	for _, p := range provs {
		service := engine.NewSyncService(p, db, settings, nil, r.logger)

		for _, run := range []func(context.Context, bool) (*engine.Outcome, error){
			service.SyncFollowedArtists,
			service.SyncSavedAlbums,
			service.SyncUserPlaylists,
		} {
			outcome, err := run(ctx, force)
			if err != nil {
				r.logger.Error("sync failed", "provider", p.Name(), "err", err)
				continue
			}
			r.writePlain("%s\n", outcome)
		}
	}
	return nil
}

// SyncArtist syncs one artist's discography by canonical artist id.
func (r *Runner) SyncArtist(ctx context.Context, cmd *cli.Command) error {
	artistID := cmd.Args().First()
	if artistID == "" {
		return fmt.Errorf("artist id is required")
	}

	provs, err := r.syncProviders(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	settings := repositories.NewSettingsRepository(db)

	for _, p := range provs {
		service := engine.NewSyncService(p, db, settings, nil, r.logger)
		outcome, err := service.SyncArtistAlbums(ctx, artistID, cmd.Bool("force"))
		if err != nil {
			r.logger.Error("artist sync failed", "provider", p.Name(), "err", err)
			continue
		}
		r.writePlain("%s\n", outcome)
	}
	return nil
}

// SyncAlbum syncs one album's track list by canonical album id.
func (r *Runner) SyncAlbum(ctx context.Context, cmd *cli.Command) error {
	albumID := cmd.Args().First()
	if albumID == "" {
		return fmt.Errorf("album id is required")
	}

	provs, err := r.syncProviders(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	settings := repositories.NewSettingsRepository(db)

	for _, p := range provs {
		service := engine.NewSyncService(p, db, settings, nil, r.logger)
		outcome, err := service.SyncAlbumTracks(ctx, albumID, cmd.Bool("force"))
		if err != nil {
			r.logger.Error("album sync failed", "provider", p.Name(), "err", err)
			continue
		}
		r.writePlain("%s\n", outcome)
	}
	return nil
}
