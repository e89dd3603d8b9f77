// SPDX-License-Identifier: MIT

package boundary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jesopo/lykos/internal/errlog"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sentLine struct {
	target string
	text   string
}

type recordingSender struct {
	mu    sync.Mutex
	lines []sentLine
}

func (s *recordingSender) Send(_ context.Context, target, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, sentLine{target: target, text: text})
	return nil
}

func (s *recordingSender) to(target string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.lines {
		if l.target == target {
			out = append(out, l.text)
		}
	}
	return out
}

type fakeReporter struct {
	mu    sync.Mutex
	calls int
	link  Link
	err   error
}

func (r *fakeReporter) Report(context.Context, string) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.link, r.err
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestBoundary(opts Options, reporter Reporter) (*Boundary, *errlog.Memory, *recordingSender) {
	if opts.MainChannel == "" {
		opts.MainChannel = "#werewolf"
	}
	sink := &errlog.Memory{}
	sender := &recordingSender{}
	return New(opts, sink, sender, messages.Default(), reporter), sink, sender
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestGuardRecoversPanic(t *testing.T) {
	b, sink, sender := newTestBoundary(Options{}, nil)

	err := b.Guard(context.Background(), Site{Kind: KindListener, Name: "del_player"}, func(context.Context) error {
		panic("boom")
	})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.True(t, f.Recovered)
	assert.Equal(t, "boom", f.ValueString())

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "Behavior failure in listener del_player")
	assert.Contains(t, entries[0], "panic: boom")
	assert.Contains(t, entries[0], "TestGuardRecoversPanic")

	assert.Equal(t, []string{messages.Default().Get("error_log")}, sender.to("#werewolf"))
}

func TestGuardReturnedErrorIsFailure(t *testing.T) {
	b, sink, _ := newTestBoundary(Options{}, nil)
	cause := errors.New("handler broke")

	err := b.Guard(context.Background(), Site{Kind: KindCommand, Name: "vote"}, func(context.Context) error {
		return cause
	})

	require.ErrorIs(t, err, cause)
	require.Len(t, sink.Entries(), 1)
	assert.Contains(t, sink.Entries()[0], "error: handler broke")
}

func TestGuardSuccess(t *testing.T) {
	b, sink, sender := newTestBoundary(Options{}, nil)
	ran := false
	err := b.Guard(context.Background(), Site{Name: "ok"}, func(ctx context.Context) error {
		ran = true
		assert.Equal(t, 1, Depth(ctx))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, sink.Entries())
	assert.Empty(t, sender.to("#werewolf"))
}

func TestGuardNeverCatchesFatal(t *testing.T) {
	b, sink, _ := newTestBoundary(Options{}, nil)

	v := recovered(func() {
		_ = b.Guard(context.Background(), Site{Name: "x"}, func(context.Context) error {
			panic(errs.Usage("finish before begin"))
		})
	})
	err, ok := v.(error)
	require.True(t, ok, "panic value %v", v)
	assert.True(t, errs.HasCode(err, errs.CodeUsage))

	assert.Panics(t, func() {
		_ = b.Guard(context.Background(), Site{Name: "x"}, func(context.Context) error {
			return errs.Configuration("duplicate alias")
		})
	})
	assert.Empty(t, sink.Entries())
}

func recovered(fn func()) (v any) {
	defer func() { v = recover() }()
	fn()
	return nil
}

func TestIsolateReportsNestedFailureInPlace(t *testing.T) {
	b, sink, sender := newTestBoundary(Options{}, nil)
	continued := false

	err := b.Guard(context.Background(), Site{Kind: KindCommand, Name: "leave"}, func(ctx context.Context) error {
		ierr := b.Isolate(ctx, Site{Kind: KindListener, Name: "del_player"}, func(ctx context.Context) error {
			assert.Equal(t, 2, Depth(ctx))
			panic("listener exploded")
		})
		assert.Error(t, ierr)
		continued = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, continued)
	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "Behavior failure in listener del_player")
	assert.Contains(t, entries[0], "command leave")
	assert.Len(t, sender.to("#werewolf"), 1)
}

func TestIsolateNeverCatchesFatal(t *testing.T) {
	b, sink, _ := newTestBoundary(Options{}, nil)

	assert.Panics(t, func() {
		_ = b.Guard(context.Background(), Site{Name: "outer"}, func(ctx context.Context) error {
			return b.Isolate(ctx, Site{Name: "inner"}, func(context.Context) error {
				panic(errs.Usage("phase transition already in progress"))
			})
		})
	})
	assert.Empty(t, sink.Entries())
}

func TestNestedFailureReportsOnceAtOutermost(t *testing.T) {
	b, sink, sender := newTestBoundary(Options{Verbosity: 2}, nil)
	continued := false

	err := b.Guard(context.Background(), Site{Kind: KindCommand, Name: "fday", Locals: map[string]any{"args": "now"}}, func(ctx context.Context) error {
		_ = b.Guard(ctx, Site{Kind: KindListener, Name: "transition_day_begin", Locals: map[string]any{"phase": "day"}}, func(ctx context.Context) error {
			assert.Equal(t, 2, Depth(ctx))
			panic("listener exploded")
		})
		continued = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, continued, "inner failure unwinds to the outermost guard")

	entries := sink.Entries()
	require.Len(t, entries, 1)
	text := entries[0]
	assert.Contains(t, text, "Behavior failure in listener transition_day_begin")
	assert.Contains(t, text, "Guarded calls (most recent call last):")
	assert.Contains(t, text, "Local variables in all frames (most recent call last):")
	assert.Contains(t, text, "Local variables from frame #1 (in command fday):")
	assert.Contains(t, text, "Local variables from frame #2 (in listener transition_day_begin):")
	assert.Contains(t, text, `args = "now"`)
	assert.Contains(t, text, `phase = "day"`)
	assert.Len(t, sender.to("#werewolf"), 1)
}

func TestDiagnosticVerbosity(t *testing.T) {
	f := &Failure{
		Value:     "bad",
		Recovered: true,
		Sites: []Site{
			{Kind: KindCommand, Name: "start", Locals: map[string]any{"players": 7}},
			{Kind: KindListener, Name: "send_role", Locals: map[string]any{"role": "wolf", "count": 2}},
		},
		Frames: []Frame{{Function: "pkg.fn", File: "/src/pkg/fn.go", Line: 12}},
	}

	none := f.Diagnostic(0)
	assert.NotContains(t, none, "Local variables")
	assert.Contains(t, none, "pkg.fn\n\t/src/pkg/fn.go:12")

	inner := f.Diagnostic(1)
	assert.Contains(t, inner, "Local variables from innermost frame (in listener send_role):")
	assert.Contains(t, inner, "count = 2\nrole = \"wolf\"")
	assert.NotContains(t, inner, "players = 7")

	all := f.Diagnostic(2)
	assert.Contains(t, all, "players = 7")
	assert.Contains(t, all, "role = \"wolf\"")

	empty := &Failure{Value: "bad", Sites: []Site{{Name: "x"}}}
	assert.Contains(t, empty.Diagnostic(1), "No local variables found in all frames.")
	assert.Equal(t, f.Diagnostic(2), f.Diagnostic(2))
}

func TestMainNoticeSuppressedWhenMainIsDev(t *testing.T) {
	b, _, sender := newTestBoundary(Options{
		MainChannel: "#werewolf",
		DevChannel:  "#werewolf",
		Reporting:   true,
	}, &fakeReporter{link: Link{URL: "https://paste/x", ID: "abc"}})

	_ = b.Guard(context.Background(), Site{Name: "x"}, func(context.Context) error { panic("boom") })
	assert.Empty(t, sender.to("#werewolf"), "worker not running, nothing but the suppressed main notice")
}

func TestMainNoticeSentWhenReportingDisabled(t *testing.T) {
	b, _, sender := newTestBoundary(Options{
		MainChannel: "#werewolf",
		DevChannel:  "#werewolf",
	}, &fakeReporter{})

	_ = b.Guard(context.Background(), Site{Name: "x"}, func(context.Context) error { panic("boom") })
	assert.Len(t, sender.to("#werewolf"), 1)
}

func fail(b *Boundary) {
	_ = b.Guard(context.Background(), Site{Kind: KindListener, Name: "del_player"}, func(context.Context) error {
		panic("same failure")
	})
}

func TestReporterDeduplicatesByText(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reporter := &fakeReporter{link: Link{URL: "https://paste/abc", ID: "0123456789abcdef"}}
	b, sink, sender := newTestBoundary(Options{
		DevChannel: "#lykos-dev",
		DevPrefix:  "[dev]",
		Reporting:  true,
	}, reporter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	for i := 0; i < 2; i++ {
		fail(b)
	}

	require.Eventually(t, func() bool { return len(sender.to("#lykos-dev")) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, reporter.count())
	assert.Len(t, sink.Entries(), 2, "every failure reaches the error log")

	dev := sender.to("#lykos-dev")
	assert.True(t, strings.HasPrefix(dev[0], "[dev] "))
	assert.Contains(t, dev[0], "https://paste/abc (uuid: 0123456789abcdef)")
	assert.Contains(t, dev[1], "https://paste/abc (uuid: 01234567-...)")
}

func TestReporterFailureFallsBackToLocalLog(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reporter := &fakeReporter{err: errors.New("unreachable")}
	b, sink, sender := newTestBoundary(Options{DevChannel: "#lykos-dev", Reporting: true}, reporter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	fail(b)
	require.Eventually(t, func() bool { return len(sender.to("#lykos-dev")) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	cat := messages.Default()
	assert.Equal(t, cat.Get("error_log")+" "+cat.Get("error_pastebin"), sender.to("#lykos-dev")[0])
	assert.Len(t, sink.Entries(), 1)
}

func TestAlreadyReportedByAnotherInstance(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b, _, sender := newTestBoundary(Options{DevChannel: "#lykos-dev", Reporting: true},
		&fakeReporter{link: Link{URL: "https://paste/old"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	for i := 0; i < 2; i++ {
		fail(b)
	}
	require.Eventually(t, func() bool { return len(sender.to("#lykos-dev")) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	cat := messages.Default()
	dev := sender.to("#lykos-dev")
	assert.Contains(t, dev[0], cat.Get("error_already_reported"))
	assert.Contains(t, dev[1], cat.Get("error_previously_reported"))
}

func TestFullQueueDropsReport(t *testing.T) {
	b, sink, _ := newTestBoundary(Options{DevChannel: "#lykos-dev", Reporting: true, QueueSize: 1}, &fakeReporter{})
	before := counterValue(t, metrics.DiagnosticsReportedTotal.WithLabelValues("dropped"))

	fail(b)
	fail(b)

	assert.Len(t, sink.Entries(), 2)
	assert.Equal(t, before+1, counterValue(t, metrics.DiagnosticsReportedTotal.WithLabelValues("dropped")))
}
