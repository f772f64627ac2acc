package main

import (
	"context"

	"github.com/harmonia-sh/harmonia/internal/repositories"
	"github.com/urfave/cli/v3"
)

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the last outcome of every sync",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.Status,
	}
}

// Status prints the sync status table.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := repositories.NewSyncStatusRepository(db).List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	if len(statuses) == 0 {
		return r.writePlain("no syncs recorded yet\n")
	}

	for _, s := range statuses {
		last := "never"
		if s.LastSyncedAt != nil {
			last = s.LastSyncedAt.Format("2006-01-02 15:04:05")
		}
		label := s.SyncType
		if s.Scope != "" {
			label += "/" + s.Scope
		}
		if err := r.writePlain("%-10s %-40s %-8s last=%s synced=%d added=%d removed=%d %s\n",
			s.Provider, label, s.Status, last, s.ItemsSynced, s.ItemsAdded, s.ItemsRemoved, s.ErrorMessage); err != nil {
			return err
		}
	}
	return nil
}
