package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"feed-relay/internal/config"
	"feed-relay/internal/infra/adapter/persistence/itemstore"
)

func cleanupCmd() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Remove old delivered items from the store",
		Description: `Removes SENT items from the store except the last --keep
		items, which always stay so the next poll still overlaps the store.
		Run it while the relay is stopped; a running relay does the same on
		CLEANUP_SCHEDULE.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "keep",
				Aliases: []string{"k"},
				Usage:   "number of trailing items to keep regardless of status (default: CLEANUP_KEEP)",
				EnvVars: []string{"CLEANUP_KEEP"},
			},
		},
		Action: func(c *cli.Context) error {
			logger := initLogger()
			cfg, err := config.Load(c.String("config"), logger, nil)
			if err != nil {
				return err
			}
			keep := cfg.Cleanup.Keep
			if c.IsSet("keep") {
				keep = c.Int("keep")
			}
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative, got %d", keep)
			}

			store, closeStore, err := openStore(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Load(c.Context); err != nil {
				return err
			}
			removed, err := store.RemoveSent(c.Context, keep)
			if err != nil {
				return err
			}
			logger.Info("cleanup finished",
				slog.Int("removed", removed),
				slog.Int("remaining", store.Len()),
				slog.Int("keep", keep))
			return nil
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the stored items with their delivery status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pending",
				Usage: "only items not yet SENT",
			},
		},
		Action: func(c *cli.Context) error {
			logger := initLogger()
			cfg, err := config.Load(c.String("config"), logger, nil)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Load(c.Context); err != nil {
				return err
			}
			return printItems(c.App.Writer, store, c.Bool("pending"))
		},
	}
}

func printItems(w io.Writer, store *itemstore.Store, pendingOnly bool) error {
	items := store.Items()
	if pendingOnly {
		items = store.Pending()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tGUID\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", store.StatusOf(it), it.GUID, it.Title)
	}
	fmt.Fprintf(tw, "\n%d items\n", len(items))
	return tw.Flush()
}
