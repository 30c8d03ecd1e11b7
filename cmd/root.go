package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "prophecywatch",
		Usage: "Aggregate world news feeds and tag them with prophecy topics",
		Description: `PacMac Prophecy Watch fetches a fixed set of news feeds, tags each
		headline with prophecy topics using keyword rules and serves the merged,
		newest-first result over a small read-only HTTP API.

		Aggregated news is cached in memory for a configurable time so the feeds
		are not fetched more than once per cache period.

		Flags can generally be set via environment variables, e.g.:

		--port => PORT=8080
		--cache-ttl => PROPHECYWATCH_CACHE_TTL=5m
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"PROPHECYWATCH_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text or json)",
				EnvVars: []string{"PROPHECYWATCH_LOG_FORMAT"},
			},
		},
		Before: func(ctx *cli.Context) error {
			return setupLogging(ctx.String("log-level"), ctx.String("log-format"))
		},
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			classifyCmd(),
			topicsCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// Execute runs the CLI with the process arguments and exits non-zero on failure
func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Command failed")
		os.Exit(1)
	}
}

func setupLogging(level string, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)

	switch format {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q, expected text or json", format)
	}
	return nil
}
