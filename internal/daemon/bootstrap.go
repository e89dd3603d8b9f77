// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jesopo/lykos/internal/access"
	"github.com/jesopo/lykos/internal/audit"
	"github.com/jesopo/lykos/internal/boundary"
	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/errlog"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/health"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/modes"
	"github.com/jesopo/lykos/internal/resilience"
	"github.com/jesopo/lykos/internal/roles/investigator"
	"github.com/jesopo/lykos/internal/roles/vanilla"
	"github.com/jesopo/lykos/internal/session"
	"github.com/jesopo/lykos/internal/telemetry"
	"github.com/jesopo/lykos/internal/transport"
	"github.com/jesopo/lykos/internal/users"
)

// Options locates the configuration and the chat streams.
type Options struct {
	ConfigPath string
	Version    string
	In         io.Reader
	Out        io.Writer
	// LogOutput receives the structured log; nil means stdout.
	LogOutput io.Writer
}

// Runtime is a fully wired bot.
type Runtime struct {
	App      *App
	Config   *config.Holder
	Session  *session.Session
	Router   *command.Router
	Bus      *events.Bus
	Boundary *boundary.Boundary
	Access   *access.Checker
	Store    *access.Store
	Server   *Server

	closers []namedHook
}

// Build loads the configuration and wires every subsystem. On error
// everything opened so far is closed again.
func Build(ctx context.Context, opts Options) (rt *Runtime, err error) {
	loader := config.NewLoader(opts.ConfigPath)
	snap, err := loader.Load()
	if err != nil {
		return nil, err
	}
	cfg := snap.Config

	log.Configure(log.Config{
		Level:   cfg.Logging.Level,
		Output:  opts.LogOutput,
		Service: cfg.Logging.Service,
		Version: opts.Version,
	})
	logger := log.WithComponent("daemon")

	rt = &Runtime{Config: config.NewHolder(snap, loader)}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Logging.Service,
		ServiceVersion: opts.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}

	catalog := messages.Default()
	if cfg.Messages != "" {
		if err := catalog.LoadOverrides(cfg.Messages); err != nil {
			return rt, err
		}
	}

	rt.Store, err = access.OpenStore(ctx, cfg.Storage.Path)
	if err != nil {
		return rt, err
	}
	rt.closeWith("access_store", func(context.Context) error { return rt.Store.Close() })

	rt.Access, err = access.NewChecker(cfg.Bot, rt.Store)
	if err != nil {
		return rt, err
	}

	var auditSink audit.Sink = audit.NewLogger(io.Discard)
	if cfg.Logs.Audit != "" {
		l, err := audit.OpenFile(cfg.Logs.Audit)
		if err != nil {
			return rt, err
		}
		rt.closeWith("audit_log", func(context.Context) error { return l.Close() })
		auditSink = l
	}

	var errSink errlog.Sink = errlog.New(io.Discard)
	if cfg.Logs.Errors != "" {
		f, err := errlog.Open(cfg.Logs.Errors)
		if err != nil {
			return rt, err
		}
		rt.closeWith("error_log", func(context.Context) error { return f.Close() })
		errSink = f
	}

	limits := transport.DefaultLimiterConfig()
	limits.Burst = cfg.Transport.Burst
	limits.Delay = cfg.Transport.Delay
	console := transport.NewConsole(opts.In, opts.Out, cfg.Bot.Nick, transport.NewLimiter(limits))

	var reporter boundary.Reporter
	if cfg.Errors.PasteEnabled {
		reporter = boundary.GuardedReporter{
			Reporter: boundary.NewPasteReporter(cfg.Errors.PasteURL, cfg.Bot.Nick, cfg.Errors.PasteTimeout),
			Breaker:  resilience.NewCircuitBreaker("paste", 3, time.Minute),
		}
	}
	rt.Boundary = boundary.New(boundary.Options{
		Verbosity:   cfg.Errors.TracebackVerbosity,
		MainChannel: cfg.Bot.MainChannel,
		DevChannel:  cfg.Bot.DevChannel,
		DevPrefix:   cfg.Bot.DevPrefix,
		Reporting:   cfg.Errors.PasteEnabled,
	}, errSink, console, catalog, reporter)

	rt.Bus = events.NewBus(rt.Boundary)
	rt.Router = command.New(command.Options{
		MainChannel: cfg.Bot.MainChannel,
		DebugMode:   cfg.Bot.DebugMode,
		Disabled:    cfg.Bot.DisabledCommands,
		AltChannel:  cfg.Bot.AltChannelCommands,
		OwnersOnly:  cfg.Bot.OwnersOnlyCommands,
	}, command.Deps{
		Access:  rt.Access,
		Audit:   auditSink,
		Sender:  console,
		Guard:   rt.Boundary,
		Bus:     rt.Bus,
		Catalog: catalog,
	})

	registry := modes.NewRegistry()
	if err := modes.RegisterBuiltins(registry); err != nil {
		return rt, err
	}

	rt.Session = session.New(session.OptionsFromConfig(cfg), session.Deps{
		Router:  rt.Router,
		Bus:     rt.Bus,
		Guard:   rt.Boundary,
		Sender:  console,
		Modes:   registry,
		Config:  rt.Config,
		Users:   users.NewRegistry(),
		Catalog: catalog,
	})
	if err := registerBehaviors(rt, catalog); err != nil {
		return rt, err
	}

	rt.Config.OnReload(func(next *config.Snapshot) {
		if err := rt.Access.Reload(next.Config.Bot); err != nil {
			logger.Warn().Err(err).Str("event", "access.reload_failed").Msg("keeping previous owner and admin lists")
		}
		rt.Boundary.SetVerbosity(next.Config.Errors.TracebackVerbosity)
	})

	probes := health.NewManager(opts.Version)
	loop := health.NewLoopChecker("session")
	probes.RegisterChecker(loop)
	probes.RegisterChecker(health.NewFuncChecker("storage", rt.Store.Ping))

	rt.Server = NewServer(DefaultServerConfig(cfg.Metrics.Listen), NewHandler(probes))
	rt.Server.RegisterShutdownHook("telemetry", tp.Shutdown)

	rt.App, err = NewApp(Deps{
		Logger:       logger,
		Session:      rt.Session,
		Transport:    console,
		Boundary:     rt.Boundary,
		Config:       rt.Config,
		Server:       rt.Server,
		SessionCheck: loop,
	})
	if err != nil {
		return rt, err
	}

	logger.Info().
		Str("event", "daemon.built").
		Str("nick", cfg.Bot.Nick).
		Str(log.FieldChannel, cfg.Bot.MainChannel).
		Strs("commands", rt.Router.Aliases()).
		Msg("bot wired")
	return rt, nil
}

func registerBehaviors(rt *Runtime, catalog *messages.Catalog) error {
	if err := rt.Session.Register(); err != nil {
		return err
	}
	if _, err := vanilla.Register(rt.Session); err != nil {
		return err
	}
	if _, err := investigator.Register(rt.Session); err != nil {
		return err
	}
	return access.RegisterCommands(rt.Router, rt.Store, catalog)
}

func (rt *Runtime) closeWith(name string, fn ShutdownHook) {
	rt.closers = append(rt.closers, namedHook{name: name, hook: fn})
}

// Close releases the files and the database, newest first.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].hook(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.closers[i].name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
