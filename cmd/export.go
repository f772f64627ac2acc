package main

import (
	"context"
	"fmt"

	"github.com/harmonia-sh/harmonia/internal/formatter"
	"github.com/harmonia-sh/harmonia/internal/repositories"
	"github.com/urfave/cli/v3"
)

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export catalog data to a file",
		Commands: []*cli.Command{
			{
				Name:      "album",
				Usage:     "Export an album's track list",
				ArgsUsage: "<album-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.ExportAlbum,
			},
		},
	}
}

// ExportAlbum renders an album's track list to a file in the requested format.
func (r *Runner) ExportAlbum(ctx context.Context, cmd *cli.Command) error {
	albumID := cmd.Args().First()
	if albumID == "" {
		return fmt.Errorf("album id is required")
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := repositories.NewCatalog(db)

	album, err := catalog.Albums.Get(albumID)
	if err != nil {
		return fmt.Errorf("failed to load album: %w", err)
	}

	tracks, err := catalog.Tracks.ListByAlbum(albumID)
	if err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}

	export := &formatter.AlbumExport{Album: album, Tracks: tracks}
	path, err := export.Write(cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	return r.writePlain("Exported %q (%d tracks) to %s\n", album.Name, len(tracks), path)
}
