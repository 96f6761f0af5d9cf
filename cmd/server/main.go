package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"certvault/internal/platform/config"
	"certvault/internal/platform/httpserver"
	"certvault/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "certvault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	log.Info("starting certvault",
		"addr", cfg.Addr,
		"env", cfg.Environment,
		"ledger", cfg.Ledger.Backend,
		"content_store", cfg.Content.Backend,
		"mirror", cfg.Mirror.Backend,
		"audit_outbox", cfg.Audit.Outbox,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Serve(gctx, httpserver.New(cfg.Addr, newRouter(a)), log)
	})
	if a.mirror != nil {
		g.Go(func() error { return a.mirror.Run(gctx) })
	}
	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(gctx) })
	}
	return g.Wait()
}
