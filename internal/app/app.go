// Package app wires the configuration into a running server: engine
// selection, middleware chain assembly, routes, and lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"gatekit/pkg/banner"
	"gatekit/pkg/config"
	"gatekit/pkg/engine"
	"gatekit/pkg/logger"
	"gatekit/pkg/ratelimit"
	"gatekit/pkg/web"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	eng     engine.Engine
	web     *web.App
	limiter *ratelimit.Limiter
}

// New builds the engine, middleware chain, and routes from cfg. It does
// not listen; call Run to start and block until ctx is canceled.
func New(cfg *config.Config, version string) (*App, error) {
	var eng engine.Engine
	switch cfg.Server.Engine {
	case "", "nethttp":
		eng = engine.NewNetHTTP()
	case "fasthttp":
		eng = engine.NewFastHTTP()
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Server.Engine)
	}

	webApp := web.NewApp(eng, web.Options{
		MaxBodySize: cfg.Server.MaxBodySize.Int64(),
		LogRequests: cfg.Server.LogRequests,
	})

	a := &App{cfg: cfg, version: version, eng: eng, web: webApp}
	if err := a.installMiddlewares(); err != nil {
		return nil, err
	}
	a.installRoutes()
	return a, nil
}

// Run prints the banner, starts the limiter janitor, and serves until
// ctx is canceled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.cfg, a.version)

	if a.limiter != nil {
		cancel, err := ratelimit.StartJanitor(ctx, a.limiter, a.cfg.Security.RateLimit.JanitorCron)
		if err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
		defer cancel()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.web.Listen(a.cfg.Addr()) }()
	logger.Info("server_started", "addr", a.cfg.Addr(), "engine", a.cfg.Server.Engine)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.web.Shutdown(shCtx); err != nil {
			logger.Warn("shutdown_incomplete", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
