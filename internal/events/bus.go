// SPDX-License-Identifier: MIT

// Package events is the priority-ordered event bus role behaviors coordinate
// through. Listeners of one name run synchronously over a shared payload,
// lower priority first and ties in registration order.
package events

import (
	"context"
	"sort"
	"sync"

	"github.com/jesopo/lykos/internal/boundary"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/metrics"
	"github.com/jesopo/lykos/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPriority is the priority behaviors use unless they need to run
// before or after the others.
const DefaultPriority = 5

// Listener reacts to one dispatch.
type Listener func(ctx context.Context, e *Event)

// Guard runs a listener inside the failure boundary. A failure must be
// reported where it happens and never unwind into the dispatching caller.
type Guard interface {
	Isolate(ctx context.Context, site boundary.Site, fn func(context.Context) error) error
}

// Handle identifies one registration.
type Handle struct {
	name string
	seq  uint64
}

type registration struct {
	name     string
	priority int
	owner    string
	seq      uint64
	fn       Listener
}

// Bus is the event registry.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]*registration
	seq       uint64

	guard  Guard
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewBus creates an empty bus whose listeners run under guard.
func NewBus(guard Guard) *Bus {
	return &Bus{
		listeners: make(map[string][]*registration),
		guard:     guard,
		tracer:    telemetry.Tracer("github.com/jesopo/lykos/internal/events"),
		logger:    log.WithComponent("events"),
	}
}

// Register adds fn for name. The (name, priority, owner) triple must be
// unique; a duplicate is a configuration error.
func (b *Bus) Register(name string, priority int, owner string, fn Listener) (Handle, error) {
	if fn == nil {
		return Handle{}, errs.Configuration("listener for %q is nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.listeners[name] {
		if r.priority == priority && r.owner == owner {
			return Handle{}, errs.Configuration("listener %q already registered for %q at priority %d", owner, name, priority)
		}
	}

	b.seq++
	r := &registration{name: name, priority: priority, owner: owner, seq: b.seq, fn: fn}
	lst := append(b.listeners[name], r)
	sort.SliceStable(lst, func(i, j int) bool {
		if lst[i].priority != lst[j].priority {
			return lst[i].priority < lst[j].priority
		}
		return lst[i].seq < lst[j].seq
	})
	b.listeners[name] = lst
	metrics.SetListeners(name, len(lst))

	b.logger.Debug().
		Str(log.FieldEvent, name).
		Int(log.FieldPriority, priority).
		Str(log.FieldListener, owner).
		Msg("listener registered")

	return Handle{name: name, seq: r.seq}, nil
}

// MustRegister is Register for startup wiring, panicking on conflict.
func (b *Bus) MustRegister(name string, priority int, owner string, fn Listener) Handle {
	h, err := b.Register(name, priority, owner, fn)
	if err != nil {
		panic(err)
	}
	return h
}

// Unregister removes the registration behind h. Removing an already removed
// registration is a no-op.
func (b *Bus) Unregister(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(h.name, func(r *registration) bool { return r.seq == h.seq })
}

// UnregisterOwner removes every registration tagged owner and returns how
// many were removed.
func (b *Bus) UnregisterOwner(owner string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	names := make([]string, 0, len(b.listeners))
	for name := range b.listeners {
		names = append(names, name)
	}
	for _, name := range names {
		removed += b.removeLocked(name, func(r *registration) bool { return r.owner == owner })
	}
	return removed
}

func (b *Bus) removeLocked(name string, match func(*registration) bool) int {
	lst, ok := b.listeners[name]
	if !ok {
		return 0
	}
	out := make([]*registration, 0, len(lst))
	for _, r := range lst {
		if !match(r) {
			out = append(out, r)
		}
	}
	removed := len(lst) - len(out)
	if removed == 0 {
		return 0
	}
	if len(out) == 0 {
		delete(b.listeners, name)
	} else {
		b.listeners[name] = out
	}
	metrics.SetListeners(name, len(out))
	return removed
}

// Listeners returns how many listeners are registered for name.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}

// Names returns the event names that currently have listeners.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.listeners))
	for name := range b.listeners {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the listeners registered for name when the call starts.
// Each listener runs inside the failure boundary; a listener that calls Stop
// ends the dispatch. The returned event carries the final payload.
func (b *Bus) Dispatch(ctx context.Context, name string, data Data, args any) *Event {
	if data == nil {
		data = Data{}
	}
	e := &Event{Name: name, Data: data, Args: args}

	b.mu.RLock()
	snapshot := append([]*registration(nil), b.listeners[name]...)
	b.mu.RUnlock()

	metrics.IncEventDispatch(name)
	ctx, span := b.tracer.Start(ctx, "events.dispatch", trace.WithAttributes(telemetry.EventAttributes(name, len(snapshot))...))
	defer span.End()

	for _, r := range snapshot {
		b.invoke(ctx, r, e)
		if e.stopped {
			metrics.IncEventStopped(name)
			span.SetAttributes(attribute.Bool(telemetry.EventStoppedKey, true))
			break
		}
	}
	return e
}

func (b *Bus) invoke(ctx context.Context, r *registration, e *Event) {
	site := boundary.Site{
		Kind: boundary.KindListener,
		Name: e.Name,
		Locals: map[string]any{
			"owner":    r.owner,
			"priority": r.priority,
			"data":     map[string]any(e.Data),
		},
	}
	if e.Args != nil {
		site.Locals["args"] = e.Args
	}
	call := func(ctx context.Context) error {
		r.fn(ctx, e)
		return nil
	}
	if b.guard == nil {
		_ = call(ctx)
		return
	}
	if err := b.guard.Isolate(ctx, site, call); err != nil {
		b.logger.Warn().
			Str(log.FieldEvent, e.Name).
			Str(log.FieldListener, r.owner).
			Int(log.FieldPriority, r.priority).
			Msg("listener failed, continuing dispatch")
	}
}
