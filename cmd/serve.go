package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/cryptofolio/server"
	"github.com/google/subcommands"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio HTTP API" }
func (*serveCmd) Usage() string {
	return `serve [-addr HOST:PORT]

  Serves the JSON API until interrupted:

    GET  /api/health
    GET  /api/portfolio
    POST /api/portfolio/update
    GET  /api/portfolio/analysis[?summary=false]
    GET  /api/portfolio/history[?days=N]
    GET  /api/portfolio/history/chart[?days=N]
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address, overrides the configuration")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app) subcommands.ExitStatus {
		addr := c.addr
		if addr == "" {
			addr = a.config.Addr()
		}
		srv := server.NewServer(a.tracker, addr, a.logger)

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()

		select {
		case err := <-errc:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintln(os.Stderr, "Error serving:", err)
				return subcommands.ExitFailure
			}
			return subcommands.ExitSuccess
		case <-ctx.Done():
		}

		a.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "Error shutting down:", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}
