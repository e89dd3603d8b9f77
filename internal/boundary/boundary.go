// SPDX-License-Identifier: MIT

// Package boundary isolates listener and command handler failures.
//
// Every listener invocation and every command handler runs inside Guard.
// A panic or returned error is turned into a diagnostic that is always
// appended to the local error log, announced with a generic notice and,
// when reporting is enabled, handed to an asynchronous reporter. Guards nest
// through the context: a failure inside an inner guard unwinds to the
// outermost one, which reports it exactly once. Isolate stops the unwind at
// its own level. Configuration and usage errors are never caught.
package boundary

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jesopo/lykos/internal/errlog"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/metrics"
	"github.com/rs/zerolog"
)

// Site kinds.
const (
	KindListener = "listener"
	KindCommand  = "command"
	KindTimer    = "timer"
)

const defaultQueueSize = 32

// Site describes one guarded call. Locals is the structured state the caller
// exposes to the diagnostic (event payload, command arguments).
type Site struct {
	Kind   string
	Name   string
	Locals map[string]any
}

func (s Site) String() string {
	if s.Kind == "" {
		return s.Name
	}
	return s.Kind + " " + s.Name
}

// Sender delivers a line of chat text.
type Sender interface {
	Send(ctx context.Context, target, text string) error
}

// Options configures a Boundary.
type Options struct {
	// Verbosity selects the locals section: 0 none, 1 innermost site, 2 all sites.
	Verbosity   int
	MainChannel string
	DevChannel  string
	DevPrefix   string
	// Reporting enables the external reporter for the dev channel.
	Reporting bool
	QueueSize int
}

// Boundary is the failure boundary shared by the bus and the router.
type Boundary struct {
	opts      Options
	verbosity atomic.Int32
	errlog    errlog.Sink
	sender    Sender
	catalog   *messages.Catalog
	reporter  Reporter
	logger    zerolog.Logger

	queue chan string

	mu    sync.Mutex
	cache map[string]Link
}

// New creates a Boundary. reporter may be nil, which disables external
// reporting regardless of opts.Reporting.
func New(opts Options, sink errlog.Sink, sender Sender, catalog *messages.Catalog, reporter Reporter) *Boundary {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if catalog == nil {
		catalog = messages.Default()
	}
	b := &Boundary{
		opts:     opts,
		errlog:   sink,
		sender:   sender,
		catalog:  catalog,
		reporter: reporter,
		logger:   log.WithComponent("boundary"),
		queue:    make(chan string, opts.QueueSize),
		cache:    make(map[string]Link),
	}
	b.verbosity.Store(int32(opts.Verbosity))
	return b
}

// SetVerbosity changes the locals verbosity for subsequent failures.
func (b *Boundary) SetVerbosity(v int) {
	b.verbosity.Store(int32(v))
}

type scopeKey struct{}

type scope struct {
	depth int
	sites []Site
}

// Depth returns how many guards enclose ctx.
func Depth(ctx context.Context) int {
	if sc, ok := ctx.Value(scopeKey{}).(*scope); ok {
		return sc.depth
	}
	return 0
}

// Guard runs fn inside the boundary. At the outermost level a failure is
// reported and returned; inside an enclosing guard it unwinds to the
// outermost one instead. Fatal errors are re-panicked untouched.
func (b *Boundary) Guard(ctx context.Context, site Site, fn func(context.Context) error) error {
	return b.run(ctx, site, fn, false)
}

// Isolate runs fn like Guard but always reports a failure at its own level,
// so the enclosing call carries on. Listeners run here: one broken listener
// never stops the rest of a dispatch or the command that dispatched it.
func (b *Boundary) Isolate(ctx context.Context, site Site, fn func(context.Context) error) error {
	return b.run(ctx, site, fn, true)
}

func (b *Boundary) run(ctx context.Context, site Site, fn func(context.Context) error, isolate bool) (err error) {
	parent, _ := ctx.Value(scopeKey{}).(*scope)
	sc := &scope{depth: 1, sites: []Site{site}}
	if parent != nil {
		sc.depth = parent.depth + 1
		sc.sites = append(append(make([]Site, 0, len(parent.sites)+1), parent.sites...), site)
	}
	inner := context.WithValue(ctx, scopeKey{}, sc)
	unwind := sc.depth > 1 && !isolate

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if errs.IsFatal(r) {
			panic(r)
		}
		f, ok := r.(*Failure)
		if !ok {
			f = newFailure(r, true, sc.sites, captureFrames())
		}
		if unwind {
			panic(f)
		}
		err = b.handle(ctx, f)
	}()

	if ferr := fn(inner); ferr != nil {
		if errs.IsFatal(ferr) {
			panic(ferr)
		}
		f := newFailure(ferr, false, sc.sites, captureFrames())
		if unwind {
			panic(f)
		}
		return b.handle(ctx, f)
	}
	return nil
}

func (b *Boundary) handle(ctx context.Context, f *Failure) error {
	text := f.Diagnostic(int(b.verbosity.Load()))
	site := f.Innermost()

	metrics.IncBehaviorFailure(site.Kind)
	logger := log.WithContext(ctx, b.logger)
	logger.Error().
		Str("event", "boundary.failure").
		Str("kind", site.Kind).
		Str("site", site.Name).
		Str("failure", f.ValueString()).
		Msg("behavior failure caught")

	if b.errlog != nil {
		if err := b.errlog.Append(text); err != nil {
			b.logger.Error().Err(err).Str("event", "boundary.errlog_failed").Msg("failed to append diagnostic to error log")
		}
	}

	reporting := b.reportingEnabled()
	if !reporting || b.opts.MainChannel != b.opts.DevChannel {
		b.send(ctx, b.opts.MainChannel, b.catalog.Get("error_log"))
	}
	if reporting {
		b.enqueue(text)
	}
	return f
}

func (b *Boundary) reportingEnabled() bool {
	return b.opts.Reporting && b.opts.DevChannel != "" && b.reporter != nil
}

func (b *Boundary) send(ctx context.Context, target, text string) {
	if b.sender == nil || target == "" {
		return
	}
	if err := b.sender.Send(ctx, target, text); err != nil {
		b.logger.Warn().Err(err).Str("event", "boundary.notice_failed").Str(log.FieldChannel, target).Msg("failed to send failure notice")
	}
}

func (b *Boundary) enqueue(text string) {
	select {
	case b.queue <- text:
	default:
		metrics.IncDiagnosticReport("dropped")
		b.logger.Warn().Str("event", "boundary.report_dropped").Msg("report queue full, diagnostic kept in error log only")
	}
}

// Failure is a caught behavior failure.
type Failure struct {
	Value     any
	Recovered bool
	Sites     []Site
	Frames    []Frame
}

func newFailure(v any, recovered bool, sites []Site, frames []Frame) *Failure {
	return &Failure{Value: v, Recovered: recovered, Sites: sites, Frames: frames}
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed: %s", f.Innermost(), f.ValueString())
}

// Unwrap exposes an underlying error value.
func (f *Failure) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// Innermost returns the site closest to the failure.
func (f *Failure) Innermost() Site {
	if len(f.Sites) == 0 {
		return Site{}
	}
	return f.Sites[len(f.Sites)-1]
}

// ValueString renders the failure value.
func (f *Failure) ValueString() string {
	if err, ok := f.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(f.Value)
}
