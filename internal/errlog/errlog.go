// SPDX-License-Identifier: MIT

// Package errlog is the append-only local log of behavior failure diagnostics.
package errlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives full diagnostic text. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(text string) error
}

// File writes each diagnostic as one JSON line, at no level so the global
// log level never drops it.
type File struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// New returns a File sink writing to w.
func New(w io.Writer) *File {
	return &File{
		logger: zerolog.New(w).With().Timestamp().Str("log_type", "error").Logger(),
	}
}

// Open opens (or creates) path for appending.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open error log %s: %w", path, err)
	}
	s := New(f)
	s.closer = f
	return s, nil
}

// Append implements Sink.
func (s *File) Append(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Log().Str("diagnostic", text).Msg("behavior failure")
	return nil
}

// Close releases the underlying file, if any.
func (s *File) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Memory keeps diagnostics in memory.
type Memory struct {
	mu      sync.Mutex
	entries []string
}

// Append implements Sink.
func (m *Memory) Append(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, text)
	return nil
}

// Entries returns a copy of the recorded diagnostics.
func (m *Memory) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries...)
}

var (
	_ Sink = (*File)(nil)
	_ Sink = (*Memory)(nil)
)
