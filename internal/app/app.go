package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/hemma-hub/internal/api"
	"github.com/nerrad567/hemma-hub/internal/hub"
	"github.com/nerrad567/hemma-hub/internal/identity"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/logging"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/hemma-hub/internal/transport"
	"github.com/nerrad567/hemma-hub/internal/upstream"
)

// App is a fully wired hub: sources, plugins, listeners and the upstream
// link.
type App struct {
	cfg      *config.Config
	logger   *logging.Logger
	hub      *hub.Hub
	upstream *upstream.Manager
	server   *api.Server
	res      *resources
}

// New builds the hub described by cfg. Infrastructure opened while
// building is closed again if a later step fails.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, version string) (*App, error) {
	id, err := identity.FromConfig(identity.Keys(cfg.Keys))
	if err != nil {
		return nil, fmt.Errorf("loading keys: %w", err)
	}

	h := hub.New(id, hub.Options{
		QueueSize: cfg.Hub.RequestQueueSize,
		Logger:    logger.With("component", "hub"),
		Metrics:   metrics.New(),
	})

	a := &App{
		cfg:    cfg,
		logger: logger,
		hub:    h,
		res:    &resources{cfg: cfg, logger: logger.With("component", "infrastructure")},
	}
	if err := a.build(ctx); err != nil {
		//nolint:errcheck // Reporting the build error instead
		a.res.Close()
		return nil, err
	}

	a.upstream = upstream.New(upstream.Config{
		URL:                  cfg.Upstream.URL,
		ReconnectInterval:    cfg.GetReconnectInterval(),
		MaxReconnectInterval: cfg.GetMaxReconnectInterval(),
		Conn:                 linkConfig(cfg),
	}, h, upstream.Options{
		Logger:  logger.With("component", "upstream"),
		Metrics: h.Metrics(),
	})

	a.server, err = api.New(api.Deps{
		Config:   cfg,
		Logger:   logger.With("component", "api"),
		Hub:      h,
		Checks:   a.res.checks(),
		Upstream: a.upstream,
		DB:       a.res.db,
		Version:  version,
	})
	if err != nil {
		//nolint:errcheck // Reporting the construction error instead
		a.res.Close()
		return nil, fmt.Errorf("creating api server: %w", err)
	}
	return a, nil
}

// build constructs sources, then plugins, in configuration order.
func (a *App) build(ctx context.Context) error {
	b := &builder{ctx: ctx, cfg: a.cfg, logger: a.logger, hub: a.hub, res: a.res}

	for _, m := range a.cfg.Hub.Sources {
		factory, ok := sourceFactories[m.Kind()]
		if !ok {
			return fmt.Errorf("%w: source %s has type %q", ErrUnknownModule, m.ID, m.Kind())
		}
		src, err := factory(b, m)
		if err != nil {
			return fmt.Errorf("building source %s: %w", m.ID, err)
		}
		if err := a.hub.AddSource(src); err != nil {
			return err
		}
		a.logger.Info("source configured", "source", m.ID, "type", m.Kind())
	}

	for _, m := range a.cfg.Hub.Plugins {
		factory, ok := pluginFactories[m.Kind()]
		if !ok {
			return fmt.Errorf("%w: plugin %s has type %q", ErrUnknownModule, m.ID, m.Kind())
		}
		p, err := factory(b, m)
		if err != nil {
			return fmt.Errorf("building plugin %s: %w", m.ID, err)
		}
		if err := a.hub.AddPlugin(p); err != nil {
			return err
		}
		a.logger.Info("plugin configured", "plugin", m.ID, "type", m.Kind())
	}
	return nil
}

// Hub returns the assembled hub.
func (a *App) Hub() *hub.Hub { return a.hub }

// Run starts every task and waits for them. Cancelling ctx shuts
// everything down; the first task error cancels the rest and is returned.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(gctx) })
	for _, src := range a.hub.Sources() {
		g.Go(func() error {
			if err := src.Run(gctx, a.hub); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("source %s: %w", src.ID(), err)
			}
			a.logger.Info("source stopped", "source", src.ID())
			return nil
		})
	}
	g.Go(func() error { return a.upstream.Run(gctx) })
	g.Go(func() error { return a.server.Run(gctx) })

	return g.Wait()
}

// Close releases infrastructure clients. Call it after Run returns.
func (a *App) Close() error {
	return a.res.Close()
}

// linkConfig is the keepalive and buffering used for outbound WebSocket
// links.
func linkConfig(cfg *config.Config) transport.Config {
	return transport.Config{
		PingInterval:   cfg.GetPingInterval(),
		PongTimeout:    cfg.GetPongTimeout(),
		MaxMessageSize: int64(cfg.WebSocket.MaxMessageSize),
		SendBuffer:     cfg.WebSocket.SendBuffer,
	}
}
