package cmd

import (
	"prophecywatch/aggregator"
	"prophecywatch/config"
	"prophecywatch/feeds"
	"prophecywatch/topics"

	"github.com/urfave/cli/v2"
)

// Flags shared by every command that loads the configuration
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TOML configuration file, the built-in feeds and topics are used when empty",
			EnvVars: []string{"PROPHECYWATCH_CONFIG"},
		},
	}
}

// Flags shared by commands that fetch feeds
func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			Usage:   "Timeout for fetching a single feed, overrides fetch.timeout",
			EnvVars: []string{"PROPHECYWATCH_FETCH_TIMEOUT"},
		},
	}
}

// loadConfig reads the configured file and applies command line overrides
func loadConfig(ctx *cli.Context) (*config.TomlConfig, *topics.Ruleset, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, nil, err
	}

	if ctx.IsSet("fetch-timeout") {
		cfg.Fetch.Timeout = ctx.Duration("fetch-timeout")
	}
	if ctx.IsSet("cache-ttl") {
		cfg.Cache.TTL = ctx.Duration("cache-ttl")
	}
	if ctx.IsSet("max-items") {
		cfg.Server.MaxItems = ctx.Int("max-items")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	rs, err := cfg.Ruleset()
	if err != nil {
		return nil, nil, err
	}
	return cfg, rs, nil
}

func newAggregator(cfg *config.TomlConfig, rs *topics.Ruleset) *aggregator.Aggregator {
	fetcher := feeds.NewHTTPFetcher(feeds.HTTPFetcherConfig{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
	return aggregator.New(cfg.Feeds, fetcher, rs)
}
