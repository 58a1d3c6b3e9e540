package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type analyzeCmd struct {
	noSummary bool
	raw       bool
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "analyze the allocation against the 70-30 strategy" }
func (*analyzeCmd) Usage() string {
	return `analyze [-no-summary] [-raw]

  Computes the allocation between volatile assets and stablecoins, the
  rebalancing plan and the weighted price changes. Unless -no-summary is
  given, the report is then summarized by the configured Gemini model.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noSummary, "no-summary", false, "skip the AI summary")
	f.BoolVar(&c.raw, "raw", false, "print markdown without terminal formatting")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		summarize := !c.noSummary && a.analyst != nil
		if !c.noSummary && a.analyst == nil {
			a.logger.Warn().Msg("no Gemini API key configured, skipping the summary")
		}

		r, err := a.tracker.Analysis(ctx, summarize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error analyzing portfolio:", err)
			return subcommands.ExitFailure
		}

		md := r.Markdown
		if r.Summary != "" {
			md += "\n---\n\n" + r.Summary + "\n"
		}
		if c.raw {
			fmt.Print(md)
		} else {
			printMarkdown(md)
		}
		return subcommands.ExitSuccess
	})
}
