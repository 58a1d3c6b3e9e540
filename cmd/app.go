// Package cmd implements the folio command line application.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/cryptofolio/agent"
	"github.com/etnz/cryptofolio/coinmarketcap"
	"github.com/etnz/cryptofolio/common"
	"github.com/etnz/cryptofolio/history"
	"github.com/etnz/cryptofolio/storage"
	"github.com/etnz/cryptofolio/tracker"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&portfolioCmd{}, "portfolio")
	c.Register(&updateCmd{}, "portfolio")
	c.Register(&historyCmd{}, "portfolio")

	c.Register(&analyzeCmd{}, "analysis")
	c.Register(&assistCmd{}, "analysis")

	c.Register(&serveCmd{}, "server")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "folio.toml", "Path to the TOML configuration file")
var logLevel = flag.String("log-level", "", "Overrides the configured log level (debug, info, warn, error)")

// app is everything a command needs, built from the configuration.
type app struct {
	config  *common.Config
	logger  *common.Logger
	backend storage.Backend
	tracker *tracker.Tracker
	analyst *agent.Analyst // nil without a Gemini API key
}

// openApp loads the configuration and wires the tracker to its collaborators.
func openApp(ctx context.Context) (*app, error) {
	config, err := common.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *logLevel != "" {
		config.Logging.Level = *logLevel
	}
	logger := common.NewLogger(config.Logging.Level)

	backend, err := storage.Open(logger, &config.Storage)
	if err != nil {
		return nil, err
	}

	cmc := config.Clients.CoinMarketCap
	quotes := coinmarketcap.NewClient(cmc.APIKey,
		coinmarketcap.WithBaseURL(cmc.BaseURL),
		coinmarketcap.WithRateLimit(cmc.RateLimit),
		coinmarketcap.WithTimeout(cmc.GetTimeout()),
		coinmarketcap.WithLogger(logger),
	)
	if cmc.APIKey == "" {
		logger.Warn().Msg("no CoinMarketCap API key configured, set CMC_API_KEY")
	}

	a := &app{config: config, logger: logger, backend: backend}

	opts := []tracker.Option{
		tracker.WithLogger(logger),
		tracker.WithQuoteTimeout(cmc.GetTimeout()),
	}
	if gemini := config.Clients.Gemini; gemini.APIKey != "" {
		prompts, err := agent.LoadPrompts(config.Prompts.Dir)
		if err != nil {
			backend.Close()
			return nil, err
		}
		a.analyst, err = agent.NewAnalyst(ctx, gemini.APIKey,
			agent.WithModel(gemini.Model),
			agent.WithPrompts(prompts),
			agent.WithTimeout(gemini.GetTimeout()),
			agent.WithLogger(logger),
		)
		if err != nil {
			backend.Close()
			return nil, err
		}
		opts = append(opts, tracker.WithSummarizer(a.analyst))
	}

	hist := history.NewStore(backend, history.WithLogger(logger))
	a.tracker = tracker.New(backend, quotes, hist, opts...)
	return a, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("cannot close storage")
	}
}

// withApp opens the app, runs f and closes the app, reporting errors on stderr.
func withApp(ctx context.Context, f func(*app) subcommands.ExitStatus) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	return f(a)
}

// renderMarkdown formats md for the terminal, or returns it as is if it cannot.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func printMarkdown(md string) {
	fmt.Print(renderMarkdown(md))
}
