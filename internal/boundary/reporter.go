// SPDX-License-Identifier: MIT

package boundary

import (
	"context"
	"strings"

	"github.com/jesopo/lykos/internal/metrics"
)

// Link identifies an externally stored diagnostic. ID is empty when the
// service already held the text and did not hand out a new identifier.
type Link struct {
	URL string
	ID  string
}

// Reporter uploads diagnostic text somewhere shareable.
type Reporter interface {
	Report(ctx context.Context, text string) (Link, error)
}

// Run drains the report queue until ctx is done. Reporting I/O happens only
// here, never on the dispatch path.
func (b *Boundary) Run(ctx context.Context) error {
	b.logger.Info().Str("event", "boundary.reporter_started").Msg("diagnostic reporter started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Str("event", "boundary.reporter_stopped").Msg("diagnostic reporter stopped")
			return nil
		case text := <-b.queue:
			b.process(ctx, text)
		}
	}
}

func (b *Boundary) process(ctx context.Context, text string) {
	parts := []string{b.catalog.Get("error_log")}

	b.mu.Lock()
	link, cached := b.cache[text]
	b.mu.Unlock()

	switch {
	case cached:
		metrics.IncDiagnosticReport("cached")
		parts = append(parts, link.URL)
		if link.ID == "" {
			parts = append(parts, b.catalog.Get("error_previously_reported"))
		} else {
			parts = append(parts, b.catalog.Format("error_uuid_short", shortID(link.ID)))
		}

	default:
		var err error
		link, err = b.reporter.Report(ctx, text)
		if err != nil {
			metrics.IncDiagnosticReport("failed")
			b.logger.Warn().Err(err).Str("event", "boundary.report_failed").Msg("external diagnostic report failed")
			parts = append(parts, b.catalog.Get("error_pastebin"))
			break
		}
		metrics.IncDiagnosticReport("reported")
		b.mu.Lock()
		b.cache[text] = link
		b.mu.Unlock()
		parts = append(parts, link.URL)
		if link.ID == "" {
			parts = append(parts, b.catalog.Get("error_already_reported"))
		} else {
			parts = append(parts, b.catalog.Format("error_uuid", link.ID))
		}
	}

	msg := strings.Join(parts, " ")
	if b.opts.DevPrefix != "" {
		msg = b.opts.DevPrefix + " " + msg
	}
	b.send(ctx, b.opts.DevChannel, msg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Breaker gates calls to an unreliable dependency.
type Breaker interface {
	Execute(fn func() error) error
}

// GuardedReporter short-circuits Reporter while Breaker refuses calls.
type GuardedReporter struct {
	Reporter Reporter
	Breaker  Breaker
}

// Report implements Reporter.
func (g GuardedReporter) Report(ctx context.Context, text string) (Link, error) {
	var link Link
	err := g.Breaker.Execute(func() error {
		var err error
		link, err = g.Reporter.Report(ctx, text)
		return err
	})
	return link, err
}
