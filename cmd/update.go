package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type updateCmd struct{}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "set the quantity held of one or more assets" }
func (*updateCmd) Usage() string {
	return `update SYMBOL=QUANTITY...

  Sets the quantity held of each SYMBOL, leaving the other assets untouched,
  then records the new portfolio value in the history.

  Example:
    folio update BTC=0.5 USDT=1000
`
}

func (*updateCmd) SetFlags(f *flag.FlagSet) {}

// parseAssignments turns SYMBOL=QUANTITY arguments into a raw update.
// Symbols are upper cased.
func parseAssignments(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no asset to update")
	}
	raw := make(map[string]any, len(args))
	for _, arg := range args {
		symbol, quantity, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q, expected SYMBOL=QUANTITY", arg)
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if _, dup := raw[symbol]; dup {
			return nil, fmt.Errorf("asset %s assigned twice", symbol)
		}
		raw[symbol] = quantity
	}
	return raw, nil
}

func (*updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	raw, err := parseAssignments(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	update, err := cryptofolio.ParseUpdate(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		res, err := a.tracker.Update(ctx, update)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error updating portfolio:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.RenderValuation(res.Valuation))
		return subcommands.ExitSuccess
	})
}
