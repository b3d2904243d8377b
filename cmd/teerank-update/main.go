// Command teerank-update runs the ranking update engine: it polls every
// known game server and master on its own schedule, ingests their
// replies, and periodically recomputes live ranks from the elo staged
// along the way.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teerank/teerank-update/internal/config"
	"github.com/teerank/teerank-update/internal/engine"
	"github.com/teerank/teerank-update/internal/teerankdb"
	"github.com/teerank/teerank-update/internal/transport"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))

	db, err := teerankdb.Open(ctx, cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath())

	sockets, err := transport.Open()
	if err != nil {
		return fmt.Errorf("opening sockets: %w", err)
	}
	defer sockets.Close()

	eng := engine.New(db, sockets, slog.Default())
	if err := eng.LoadEndpoints(ctx); err != nil {
		return fmt.Errorf("loading endpoints: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("update engine starting")
		if err := eng.Run(gctx); err != nil {
			return fmt.Errorf("update engine: %w", err)
		}
		return nil
	})

	return g.Wait()
}
