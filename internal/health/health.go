// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the bot process.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jesopo/lykos/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the body of both probes.
type Response struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Check runs every checker. Any unhealthy component makes the process not
// ready; degraded components only lower the status.
func (m *Manager) Check(ctx context.Context) Response {
	resp := Response{
		Ready:     true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(m.checkers))
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			resp.Ready = false
			resp.Status = StatusUnhealthy
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// ServeHealth answers the liveness probe. It is always 200 while the process
// can answer at all.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	m.serve(w, r, "health", false)
}

// ServeReady answers the readiness probe with 503 while a component is unhealthy.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	m.serve(w, r, "readiness", true)
}

func (m *Manager) serve(w http.ResponseWriter, r *http.Request, component string, strict bool) {
	logger := log.WithComponentFromContext(r.Context(), component)
	resp := m.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if strict && !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", component+".encode_error").Msg("failed to encode probe response")
	}

	logger.Debug().
		Str("event", component+".checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("probe answered")
}

// FuncChecker adapts a function returning an error into a Checker.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncChecker creates a checker that is unhealthy whenever fn fails.
func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// LoopChecker reports whether a long-running loop is up.
type LoopChecker struct {
	name    string
	running atomic.Bool
}

// NewLoopChecker creates a loop checker that starts out not running.
func NewLoopChecker(name string) *LoopChecker {
	return &LoopChecker{name: name}
}

// Set records whether the loop is running.
func (c *LoopChecker) Set(running bool) { c.running.Store(running) }

func (c *LoopChecker) Name() string { return c.name }

func (c *LoopChecker) Check(context.Context) CheckResult {
	if !c.running.Load() {
		return CheckResult{Status: StatusUnhealthy, Message: "not running"}
	}
	return CheckResult{Status: StatusHealthy, Message: "running"}
}
