// SPDX-License-Identifier: MIT

// Package transport is the line-oriented chat adapter: it parses inbound
// lines into messages and writes rate-limited outbound lines.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrInputClosed is returned by Run when the input reaches EOF.
var ErrInputClosed = errors.New("transport: input closed")

const defaultQueueSize = 256

type outLine struct {
	target string
	text   string
}

// Console reads inbound lines from r and writes outbound lines to w.
type Console struct {
	in      io.Reader
	out     io.Writer
	botNick string
	limiter *Limiter

	inbound chan Message
	outbox  chan outLine

	writeMu sync.Mutex
	logger  zerolog.Logger
}

// NewConsole creates a console adapter.
func NewConsole(r io.Reader, w io.Writer, botNick string, limiter *Limiter) *Console {
	if limiter == nil {
		limiter = NewLimiter(DefaultLimiterConfig())
	}
	return &Console{
		in:      r,
		out:     w,
		botNick: botNick,
		limiter: limiter,
		inbound: make(chan Message, defaultQueueSize),
		outbox:  make(chan outLine, defaultQueueSize),
		logger:  log.WithComponent("transport"),
	}
}

// Messages is the stream of parsed inbound messages.
func (c *Console) Messages() <-chan Message {
	return c.inbound
}

// Send queues text for target. It blocks only while the queue is full.
func (c *Console) Send(ctx context.Context, target, text string) error {
	select {
	case c.outbox <- outLine{target: target, text: text}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run reads and writes until ctx is cancelled or the input closes. If the
// input is an io.Closer it is closed on cancellation to unblock the reader.
func (c *Console) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		if closer, ok := c.in.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil
	})

	err := g.Wait()
	c.logger.Info().Str("event", "transport.stopped").Err(err).Msg("console transport stopped")
	return err
}

func (c *Console) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		msg, err := ParseLine(line, c.botNick)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping unparsable line")
			continue
		}
		metrics.IncTransportMessage("in")
		select {
		case c.inbound <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("transport: read: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrInputClosed
}

func (c *Console) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-c.outbox:
			if err := c.limiter.Wait(ctx, line.target); err != nil {
				return err
			}
			if err := c.write(line); err != nil {
				return err
			}
		}
	}
}

func (c *Console) write(line outLine) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.out, FormatLine(line.target, line.text)+"\n"); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	metrics.IncTransportMessage("out")
	return nil
}
