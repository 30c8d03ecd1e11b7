package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// classifyCmd prints the topics a piece of text would be tagged with
func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Print the topic keys matching the given text",
		ArgsUsage: "<text>",
		Flags:     configFlags(),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return errors.New("please provide the text to classify")
			}

			_, rs, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			keys := rs.Classify(strings.Join(ctx.Args().Slice(), " "))
			if len(keys) == 0 {
				fmt.Fprintln(ctx.App.Writer, "(no topics)")
				return nil
			}
			for _, key := range keys {
				fmt.Fprintln(ctx.App.Writer, key)
			}
			return nil
		},
	}
}
