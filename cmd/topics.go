package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// topicsCmd lists the configured topic ruleset
func topicsCmd() *cli.Command {
	return &cli.Command{
		Name:  "topics",
		Usage: "List the configured topics",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "verses",
				Usage: "Also print the references of every topic",
			},
		}, configFlags()...),
		Action: func(ctx *cli.Context) error {
			_, rs, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLABEL\tKEYWORDS\tREFERENCES")
			for _, key := range rs.Keys() {
				topic, _ := rs.Get(key)
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", key, topic.Label, len(topic.Keywords), len(topic.References))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if ctx.Bool("verses") {
				for _, key := range rs.Keys() {
					topic, _ := rs.Get(key)
					fmt.Fprintf(ctx.App.Writer, "\n%s\n", topic.Label)
					for _, ref := range topic.References {
						fmt.Fprintf(ctx.App.Writer, "  %s: %s\n", ref.Ref, ref.Text)
					}
				}
			}
			return nil
		},
	}
}
