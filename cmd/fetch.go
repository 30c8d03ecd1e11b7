package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"prophecywatch/models"
	"prophecywatch/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// fetchCmd runs a single aggregation and prints the result
func fetchCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "topic",
			Aliases: []string{"t"},
			Usage:   "Only print items tagged with this topic key",
		},
	}
	flags = append(flags, configFlags()...)
	flags = append(flags, fetchFlags()...)

	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch all feeds once and print the tagged items",
		Description: `Fetches every configured feed, tags the entries with prophecy topics
and prints them newest first.

Returns each item as a JSON object on a single line. Use a tool like jq to process
the output.

Prints all other log messages to stderr.`,
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			cfg, rs, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			topic := ctx.String("topic")
			if topic != "" {
				if _, ok := rs.Get(topic); !ok {
					return fmt.Errorf("unknown topic %q", topic)
				}
			}

			items := newAggregator(cfg, rs).Run(ctx.Context)
			for _, item := range (server.NewsFilter{Topic: topic}).Apply(items) {
				if err := printStdout(item); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printStdout(item models.NewsItem) error {
	// Print as single JSON string on a single line
	itemJson, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("could not encode item: %w", err)
	}
	fmt.Println(string(itemJson))
	return nil
}
