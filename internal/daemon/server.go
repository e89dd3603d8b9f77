// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jesopo/lykos/internal/health"
	"github.com/jesopo/lykos/internal/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// ServerConfig configures the metrics and probe listener.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns timeouts suitable for a scrape endpoint.
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// probeRequestLimit caps requests per client IP per minute.
const probeRequestLimit = 600

// NewHandler routes /metrics to Prometheus and the probes to h.
func NewHandler(h *health.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.Limit(
		probeRequestLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}),
	))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.ServeHealth)
	r.Get("/readyz", h.ServeReady)
	return r
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// Server owns the HTTP listener and the shutdown hooks.
type Server struct {
	cfg     ServerConfig
	handler http.Handler

	mu       sync.Mutex
	srv      *http.Server
	ln       net.Listener
	hooks    []namedHook
	started  bool
	stopping bool

	logger zerolog.Logger
}

// NewServer creates a server. An empty ListenAddr serves nothing but still
// runs the shutdown hooks.
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  log.WithComponent("server"),
	}
}

// RegisterShutdownHook registers a function to be called during shutdown.
func (s *Server) RegisterShutdownHook(name string, hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, hook: hook})
}

// Addr returns the bound address once listening, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start serves until ctx is cancelled or the server fails, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	if s.cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
		}
		srv := &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: s.cfg.ReadTimeout,
		}
		s.mu.Lock()
		s.ln, s.srv = ln, srv
		s.mu.Unlock()

		go func() {
			s.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().
					Err(err).
					Str("event", "metrics.server.failed").
					Msg("metrics server failed")
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case err := <-errChan:
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := s.Shutdown(shutdownCtx); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown stops the listener and runs the hooks. Calling it twice is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	if !s.started {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	s.stopping = true
	srv := s.srv
	hooks := append([]namedHook(nil), s.hooks...)
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			s.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		s.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}
	return errors.Join(errs...)
}
