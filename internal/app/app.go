// Package app assembles the configured components and supervises their
// long-lived tasks for one process mode.
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysight/internal/config"
	"github.com/alanyoungcy/polysight/internal/domain"
)

// App is the composition root. One instance runs one mode until its context
// is cancelled.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	closers []func()
}

// New creates an App for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// onClose registers cleanup, executed in reverse order on shutdown.
func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Run wires the dependency graph and supervises the mode's tasks until ctx
// is cancelled. Context cancellation is a clean shutdown, not an error.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.Info("starting", slog.String("mode", mode))

	deps, err := a.wire(ctx)
	if err != nil {
		a.close()
		return err
	}
	defer a.close()

	g, ctx := errgroup.WithContext(ctx)

	switch mode {
	case "monitor":
		a.startIngest(ctx, g, deps)
		a.startDiscovery(ctx, g, deps)
	case "score":
		a.startScorer(ctx, g, deps)
	case "copy":
		a.startIngest(ctx, g, deps)
		a.startCopyTrader(ctx, g, deps)
	case "funnel":
		a.startFunnel(ctx, g, deps)
	case "full":
		a.startIngest(ctx, g, deps)
		a.startDiscovery(ctx, g, deps)
		a.startScorer(ctx, g, deps)
		a.startCopyTrader(ctx, g, deps)
		if a.cfg.Funnel.Enabled {
			a.startFunnel(ctx, g, deps)
		}
	}

	err = g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		a.logger.Info("shutdown complete")
		return nil
	}
	return err
}

// startIngest runs the live feed, the processor with its caches, the batch
// writer, and the retention sweeper.
func (a *App) startIngest(ctx context.Context, g *errgroup.Group, d *dependencies) {
	g.Go(func() error { return d.processor.Run(ctx) })
	g.Go(func() error { return d.batcher.Run(ctx) })
	g.Go(func() error { return d.retention.Run(ctx) })
	g.Go(func() error { return d.stream.Run(ctx) })
}

func (a *App) startDiscovery(ctx context.Context, g *errgroup.Group, d *dependencies) {
	d.processor.Subscribe(d.discovery.Consider)
	g.Go(func() error { return d.discovery.Run(ctx) })
}

func (a *App) startScorer(ctx context.Context, g *errgroup.Group, d *dependencies) {
	g.Go(func() error { return d.scorer.Run(ctx) })
}

func (a *App) startCopyTrader(ctx context.Context, g *errgroup.Group, d *dependencies) {
	d.processor.Subscribe(func(t domain.Trade) {
		d.trader.Handle(ctx, t)
	})
	g.Go(func() error { return d.trader.Run(ctx) })
}

func (a *App) startFunnel(ctx context.Context, g *errgroup.Group, d *dependencies) {
	g.Go(func() error { return d.funnel.Run(ctx) })
}
