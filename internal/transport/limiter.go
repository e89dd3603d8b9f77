// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/jesopo/lykos/internal/metrics"
	"golang.org/x/time/rate"
)

// LimiterConfig holds the outbound throttling configuration.
type LimiterConfig struct {
	// Global token bucket: Burst lines, refilled one per Delay.
	Burst int
	Delay time.Duration

	// Per-target limits keep one busy channel from starving private notices.
	PerTargetBurst int
	PerTargetDelay time.Duration

	// Cleanup interval for per-target limiters
	CleanupInterval time.Duration
}

// DefaultLimiterConfig returns the usual network flood limits.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Burst:           23,
		Delay:           1730 * time.Millisecond,
		PerTargetBurst:  10,
		PerTargetDelay:  time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter throttles outbound lines.
type Limiter struct {
	config LimiterConfig

	global    *rate.Limiter
	perTarget map[string]*rate.Limiter
	mu        sync.Mutex

	lastCleanup time.Time
}

func every(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// NewLimiter creates a limiter with the given config.
func NewLimiter(config LimiterConfig) *Limiter {
	if config.Burst < 1 {
		config.Burst = 1
	}
	if config.PerTargetBurst < 1 {
		config.PerTargetBurst = config.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	return &Limiter{
		config:      config,
		global:      rate.NewLimiter(every(config.Delay), config.Burst),
		perTarget:   make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Wait blocks until a line to target may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context, target string) error {
	tl := l.targetLimiter(target)
	if !tl.Allow() {
		metrics.IncTransportThrottled("per_target")
		if err := tl.Wait(ctx); err != nil {
			return err
		}
	}
	if !l.global.Allow() {
		metrics.IncTransportThrottled("global")
		if err := l.global.Wait(ctx); err != nil {
			return err
		}
	}
	l.maybeCleanup()
	return nil
}

func (l *Limiter) targetLimiter(target string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.perTarget[target]
	if !exists {
		limiter = rate.NewLimiter(every(l.config.PerTargetDelay), l.config.PerTargetBurst)
		l.perTarget[target] = limiter
	}
	return limiter
}

// maybeCleanup drops per-target limiters once the interval has passed.
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	l.perTarget = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}
