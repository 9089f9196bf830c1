// Command relay watches one RSS/Atom feed and republishes every new entry
// to a social publishing service, exactly once and in feed order.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "relay",
		Usage: "Relay a news feed to a social publishing service",
		Description: `Polls the configured feed, records every entry in a durable
		store and publishes the ones not yet delivered, one at a time,
		slowing down when a backlog builds up.

		Settings come from built-in defaults, then the optional config
		file, then environment variables, e.g.:

		--config => RELAY_CONFIG_FILE=relay.yaml
		FEED_URL, PUBLISHER, STORE_PATH, CYCLE_DELAY, ...`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or TOML config file",
				EnvVars: []string{"RELAY_CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			cleanupCmd(),
			listCmd(),
		},
		Action: runAction,
	}
}
