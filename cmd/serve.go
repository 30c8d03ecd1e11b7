package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prophecywatch/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   3000,
			Usage:   "Port to listen on",
			EnvVars: []string{"PROPHECYWATCH_PORT", "PORT"},
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "0.0.0.0",
			Usage:   "Host address to bind to",
			EnvVars: []string{"PROPHECYWATCH_HOST"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "How long aggregated news is served before the feeds are fetched again, overrides cache.ttl",
			EnvVars: []string{"PROPHECYWATCH_CACHE_TTL"},
		},
		&cli.IntFlag{
			Name:    "max-items",
			Usage:   "Maximum number of items returned by /api/news, overrides server.max_items",
			EnvVars: []string{"PROPHECYWATCH_MAX_ITEMS"},
		},
		&cli.StringFlag{
			Name:    "static-dir",
			Usage:   "Directory with dashboard assets to serve at /",
			EnvVars: []string{"PROPHECYWATCH_STATIC_DIR"},
		},
	}
	flags = append(flags, configFlags()...)
	flags = append(flags, fetchFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the prophecy watch API",
		Description: `Starts the HTTP server for the aggregated news and prophecy topics.

Feeds are fetched on the first request and again whenever the cached result
is older than the cache TTL. Concurrent requests share one aggregation run.`,
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			cfg, rs, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			news := server.NewCachedNews(newAggregator(cfg, rs), cfg.Cache.TTL)
			app := server.Server(&server.ServerConfig{
				Ruleset:   rs,
				News:      news,
				MaxItems:  cfg.Server.MaxItems,
				StaticDir: ctx.String("static-dir"),
			})

			// Graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				<-sigChan
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error shutting down server")
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"addr":     addr,
				"feeds":    len(cfg.Feeds),
				"topics":   rs.Len(),
				"cacheTTL": cfg.Cache.TTL,
				"maxItems": cfg.Server.MaxItems,
			}).Info("Starting server")

			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			log.Info("Done!")
			return nil
		},
	}
}
