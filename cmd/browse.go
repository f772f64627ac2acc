package main

import (
	"context"
	"fmt"

	"github.com/harmonia-sh/harmonia/internal/engine"
	"github.com/urfave/cli/v3"
)

func browseCommand(r *Runner) *cli.Command {
	jsonFlag := &cli.BoolFlag{Name: "json", Usage: "Output as JSON"}

	return &cli.Command{
		Name:  "browse",
		Usage: "Query providers with automatic fallback",
		Commands: []*cli.Command{
			{
				Name:   "new-releases",
				Usage:  "List newly released albums",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.BrowseNewReleases,
			},
			{
				Name:   "charts",
				Usage:  "List currently charting tracks",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.BrowseCharts,
			},
			{
				Name:      "search",
				Usage:     "Search artists across providers",
				ArgsUsage: "<query>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    r.BrowseSearch,
			},
			{
				Name:      "isrc",
				Usage:     "Look up a track by ISRC",
				ArgsUsage: "<isrc>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    r.BrowseISRC,
			},
		},
	}
}

func (r *Runner) orchestrator() *engine.Orchestrator {
	return engine.NewOrchestrator(r.providers, r.logger)
}

// BrowseNewReleases prints new releases from the highest-priority provider
// that has any.
func (r *Runner) BrowseNewReleases(ctx context.Context, cmd *cli.Command) error {
	records := r.orchestrator().NewReleases(ctx)

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}
	if len(records) == 0 {
		return r.writePlain("no new releases available\n")
	}
	for _, rec := range records {
		if err := r.writePlain("%s - %s (%s)\n", rec.ArtistName, rec.Name, rec.ReleaseDate); err != nil {
			return err
		}
	}
	return nil
}

// BrowseCharts prints charting tracks.
func (r *Runner) BrowseCharts(ctx context.Context, cmd *cli.Command) error {
	records := r.orchestrator().Charts(ctx)

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}
	if len(records) == 0 {
		return r.writePlain("no charts available\n")
	}
	for i, rec := range records {
		if err := r.writePlain("%2d. %s - %s\n", i+1, rec.ArtistName, rec.Title); err != nil {
			return err
		}
	}
	return nil
}

// BrowseSearch searches artists across providers.
func (r *Runner) BrowseSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("search query is required")
	}

	records := r.orchestrator().SearchArtists(ctx, query)

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}
	if len(records) == 0 {
		return r.writePlain("no artists found for %q\n", query)
	}
	for _, rec := range records {
		if err := r.writePlain("%s [%s:%s]\n", rec.Name, rec.Provider, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

// BrowseISRC looks up a track by its ISRC.
func (r *Runner) BrowseISRC(ctx context.Context, cmd *cli.Command) error {
	isrc := cmd.Args().First()
	if isrc == "" {
		return fmt.Errorf("isrc is required")
	}

	rec := r.orchestrator().LookupTrackByISRC(ctx, isrc)
	if rec == nil {
		return r.writePlain("no track found for %s\n", isrc)
	}

	if cmd.Bool("json") {
		return r.writeJSON(rec, true)
	}
	return r.writePlain("%s - %s [%s:%s]\n", rec.ArtistName, rec.Title, rec.Provider, rec.ID)
}
