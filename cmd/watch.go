package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/harmonia-sh/harmonia/internal/engine"
	"github.com/harmonia-sh/harmonia/internal/images"
	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/repositories"
	"github.com/urfave/cli/v3"
)

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run the continuous sync loop until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Seconds between sync cycles (overrides config)",
			},
		},
		Action: r.Watch,
	}
}

// Watch starts one scheduler per syncable provider plus the artwork download
// worker, and blocks until the process is interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	interval := r.config.Sync.CheckIntervalSeconds
	if cmd.Int("interval") > 0 {
		interval = cmd.Int("interval")
	}
	if interval <= 0 {
		interval = 300
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := repositories.NewCatalog(db)
	record := func(kind, id, path string) error {
		switch kind {
		case images.KindArtist:
			return catalog.Artists.SetImagePath(id, path)
		case images.KindAlbum:
			return catalog.Albums.SetImagePath(id, path)
		case images.KindPlaylist:
			return catalog.Playlists.SetImagePath(id, path)
		}
		return fmt.Errorf("unknown image kind %q", kind)
	}

	queue := images.NewQueue(r.config.Images.CacheDir, r.config.Images.QueueSize, record, r.logger)
	go queue.Run(ctx)

	settings := repositories.NewSettingsRepository(db)

	started := 0
	for _, p := range r.providers {
		if p.Name() == models.ProviderMusicBrainz {
			continue // lookup-only, nothing to schedule
		}
		service := engine.NewSyncService(p, db, settings, queue, r.logger)
		scheduler := engine.NewScheduler(service, time.Duration(interval)*time.Second, r.logger)
		go scheduler.Run(ctx)
		started++
	}

	if started == 0 {
		return fmt.Errorf("no syncable providers configured")
	}

	r.logger.Info("watching", "providers", started, "interval_seconds", interval)
	<-ctx.Done()
	r.logger.Info("shutting down")
	return nil
}
