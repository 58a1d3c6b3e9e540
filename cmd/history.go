package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptofolio/history"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type historyCmd struct {
	days  int
	chart string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the recorded portfolio values" }
func (*historyCmd) Usage() string {
	return `history [-days N] [-png FILE]

  Displays the portfolio values recorded at each update, newest first.
  With -png, also draws them as a line chart into FILE.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "only the last N days, 0 for all")
	f.StringVar(&c.chart, "png", "", "write a PNG chart of the values to this file")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.days < 0 {
		fmt.Fprintln(os.Stderr, "-days must not be negative")
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		entries, err := a.tracker.History(ctx, c.days)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading history:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.RenderHistory(entries))

		if c.chart == "" {
			return subcommands.ExitSuccess
		}
		png, err := history.RenderChart(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error drawing chart:", err)
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(c.chart, png, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing chart:", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "chart written to %s\n", c.chart)
		return subcommands.ExitSuccess
	})
}
