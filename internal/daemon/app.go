// SPDX-License-Identifier: MIT

// Package daemon runs the bot: transport, session loop, diagnostic reporter,
// configuration watcher and the metrics listener, as one errgroup.
package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jesopo/lykos/internal/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App owns the long-lived runtime lifecycle.
type App struct {
	logger       zerolog.Logger
	deps         Deps
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(deps Deps) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &App{
		logger:       deps.Logger,
		deps:         deps,
		reloadSignal: syscall.SIGHUP,
	}, nil
}

// Run starts every subsystem and blocks until ctx is cancelled, the input
// closes, or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.deps.Transport.Run(ctx)
		switch {
		case errors.Is(err, transport.ErrInputClosed):
			a.logger.Info().Str("event", "transport.input_closed").Msg("input closed, shutting down")
			cancel()
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		}
		return err
	})

	g.Go(func() error {
		if a.deps.SessionCheck != nil {
			a.deps.SessionCheck.Set(true)
			defer a.deps.SessionCheck.Set(false)
		}
		err := a.deps.Session.Run(ctx, a.deps.Transport.Messages())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.deps.Boundary != nil {
		g.Go(func() error { return a.deps.Boundary.Run(ctx) })
	}

	// Config watcher is best-effort: a missing watcher must not stop the bot.
	if a.deps.Config != nil {
		g.Go(func() error {
			if err := a.deps.Config.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, a.reloadSignal)
			defer signal.Stop(hup)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.deps.Config.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.deps.Server != nil {
		g.Go(func() error { return a.deps.Server.Start(ctx) })
	}

	return g.Wait()
}
