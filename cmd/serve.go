package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/mdash/internal/server"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the dashboard HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		r.logger.Warn("serving without record store", "error", err)
	}

	logger := shared.WithLogger(r.logger, "component", "server")
	api := server.NewAPI(r.statsEngine(store), r.newsAggregator(), r.playlistGenerator(), logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(addr, server.NewHandler(api, logger), logger).Run(ctx)
}
