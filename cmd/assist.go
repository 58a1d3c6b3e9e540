package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/cryptofolio/agent"
	"github.com/google/subcommands"
)

type assistCmd struct {
	noSummary bool
}

func (*assistCmd) Name() string { return "assist" }
func (*assistCmd) Synopsis() string {
	return "start an interactive session with the AI analyst"
}
func (*assistCmd) Usage() string {
	return `assist [-no-summary] [QUESTION...]

  Starts a chat with the Gemini analyst, seeded with the current portfolio
  analysis. QUESTION, if any, is asked first. Type 'bye' or Ctrl+D to exit.
`
}

func (c *assistCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noSummary, "no-summary", false, "do not summarize the report before the first question")
}

func (c *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var questions []string
	if f.NArg() > 0 {
		questions = append(questions, strings.Join(f.Args(), " "))
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		if a.analyst == nil {
			fmt.Fprintln(os.Stderr, "Error: no Gemini API key configured, set GEMINI_API_KEY")
			return subcommands.ExitFailure
		}

		r, err := a.tracker.Analysis(ctx, !c.noSummary)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error analyzing portfolio:", err)
			return subcommands.ExitFailure
		}
		if r.Summary != "" {
			printMarkdown(r.Summary)
		}

		report := &agent.Tool{
			Name:        "portfolio_report",
			Description: "Returns a fresh markdown analysis of the portfolio: holdings, allocation, rebalancing plan and price changes.",
			Call: func(ctx context.Context) (string, error) {
				r, err := a.tracker.Analysis(ctx, false)
				if err != nil {
					return "", err
				}
				return r.Markdown, nil
			},
		}

		session, err := a.analyst.NewSession(ctx, os.Stdout, os.Stdin, r.Markdown, r.Summary, report)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error starting session:", err)
			return subcommands.ExitFailure
		}
		session.Render = renderMarkdown

		if err := session.Run(ctx, questions...); err != nil {
			fmt.Fprintln(os.Stderr, "Session failed:", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}
