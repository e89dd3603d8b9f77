// SPDX-License-Identifier: MIT

// Package audit records owner and admin command executions.
// Each record follows the WHO/WHAT/WHERE pattern: the caller's raw identity,
// the canonical command name with its raw argument text, and the channel.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jesopo/lykos/internal/log"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventCommandExecuted marks a privileged command about to run.
	EventCommandExecuted EventType = "command.execute"
)

// Record is one audit entry.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Channel   string    `json:"channel"` // WHERE: channel name, or the bot nick for private messages
	Actor     string    `json:"actor"`   // WHO: nick!ident@host
	Command   string    `json:"command"` // WHAT: canonical command name
	Args      string    `json:"args"`    // raw argument text
	SessionID string    `json:"session_id,omitempty"`
}

// Sink is the append-only audit log.
type Sink interface {
	Append(ctx context.Context, channel, rawNick, command, args string) error
}

// Logger writes audit records as JSON lines.
type Logger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// NewLogger creates an audit logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		logger: zerolog.New(w).With().Str("log_type", "audit").Logger(),
	}
}

// OpenFile opens (or creates) path for appending and returns a Logger on it.
func OpenFile(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	l := NewLogger(f)
	l.closer = f
	return l, nil
}

// Append implements Sink.
func (l *Logger) Append(ctx context.Context, channel, rawNick, command, args string) error {
	l.Log(Record{
		Type:      EventCommandExecuted,
		Channel:   channel,
		Actor:     rawNick,
		Command:   command,
		Args:      args,
		SessionID: log.SessionIDFromContext(ctx),
	})
	return nil
}

// Log writes r, filling in the timestamp when unset.
func (l *Logger) Log(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ev := l.logger.Log().
		Time("timestamp", r.Timestamp).
		Str("event_type", string(r.Type)).
		Str("channel", r.Channel).
		Str("actor", r.Actor).
		Str("command", r.Command).
		Str("args", r.Args)
	if r.SessionID != "" {
		ev.Str(log.FieldSessionID, r.SessionID)
	}
	ev.Msg("audit event")
}

// Close releases the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Recorder is an in-memory Sink.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Append implements Sink.
func (r *Recorder) Append(ctx context.Context, channel, rawNick, command, args string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{
		Timestamp: time.Now(),
		Type:      EventCommandExecuted,
		Channel:   channel,
		Actor:     rawNick,
		Command:   command,
		Args:      args,
		SessionID: log.SessionIDFromContext(ctx),
	})
	return nil
}

// Records returns a copy of everything appended so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

var (
	_ Sink = (*Logger)(nil)
	_ Sink = (*Recorder)(nil)
)
