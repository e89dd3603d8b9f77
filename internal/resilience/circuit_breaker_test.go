// SPDX-License-Identifier: MIT

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func pass() error { return nil }

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test_threshold", 2, time.Minute, WithClock(clk))

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test_reset", 2, time.Minute)

	_ = cb.Execute(fail)
	require.NoError(t, cb.Execute(pass))
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test_probe", 1, time.Minute, WithClock(clk))

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.State())

	clk.now = clk.now.Add(time.Minute)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(pass), ErrCircuitOpen)

	clk.now = clk.now.Add(time.Minute)
	require.NoError(t, cb.Execute(pass))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerPanicCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker("test_panic", 1, time.Minute)

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("kaboom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}
