package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/gateways/wire"
	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

const maxLineSize = 1 << 20

// StreamTransport reads one request per line from in and writes one response
// per line to out. Up to workers requests are evaluated concurrently, so
// responses may arrive out of order and are correlated by id.
type StreamTransport struct {
	in      io.Reader
	out     io.Writer
	codec   wire.RequestCodec
	workers int
	logger  log.Logger

	mu     sync.Mutex // guards out
	served atomic.Uint64
	failed atomic.Uint64
}

// NewStreamTransport creates a stream transport. workers below 1 means 1.
func NewStreamTransport(in io.Reader, out io.Writer, codec wire.RequestCodec, workers int, logger log.Logger) *StreamTransport {
	if workers < 1 {
		workers = 1
	}
	return &StreamTransport{
		in:      in,
		out:     out,
		codec:   codec,
		workers: workers,
		logger:  log.OrNoop(logger),
	}
}

// Serve blocks until the input reaches EOF, ctx is cancelled, or writing a
// response fails. On cancellation the input is closed when it is an
// io.Closer so a blocked read is released. In-flight requests are always
// answered before Serve returns.
func (t *StreamTransport) Serve(ctx context.Context, handler interceptor.RequestEvaluator) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)

	t.logger.Info(map[string]any{"workers": t.workers}, "stream_transport_started")

	lines, readErr := t.readLines(gctx)
	eof := false
loop:
	for gctx.Err() == nil {
		select {
		case <-gctx.Done():
			break loop
		case l, ok := <-lines:
			if !ok {
				eof = true
				break loop
			}
			if gctx.Err() != nil {
				break loop
			}
			g.Go(func() error {
				return t.handleLine(l.num, l.data, handler)
			})
		}
	}
	if !eof {
		t.closeInput()
	}
	werr := g.Wait()

	t.logger.Info(map[string]any{
		"served": t.served.Load(),
		"failed": t.failed.Load(),
	}, "stream_transport_stopped")

	if werr != nil {
		return werr
	}
	if eof {
		if err := <-readErr; err != nil {
			return fmt.Errorf("read requests: %w", err)
		}
	}
	return nil
}

type inputLine struct {
	num  int
	data []byte
}

// readLines scans the input in its own goroutine so Serve can react to
// cancellation while a read is blocked. The scanner error is delivered on
// the second channel before the line channel is closed.
func (t *StreamTransport) readLines(ctx context.Context) (<-chan inputLine, <-chan error) {
	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			data := make([]byte, len(raw))
			copy(data, raw)
			select {
			case lines <- inputLine{num: lineNum, data: data}:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}

// closeInput releases a reader blocked on the input.
func (t *StreamTransport) closeInput() {
	c, ok := t.in.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		t.logger.Warn(map[string]any{"error": err.Error()}, "close_input_failed")
	}
}

// Stats returns counters for lines handled so far.
func (t *StreamTransport) Stats() Stats {
	return Stats{Served: t.served.Load(), Failed: t.failed.Load()}
}

// handleLine decodes, evaluates, encodes and writes a single request.
// Only write failures are returned; per-request problems become error lines.
func (t *StreamTransport) handleLine(lineNum int, line []byte, handler interceptor.RequestEvaluator) error {
	env, err := t.codec.DecodeRequest(line)
	if err != nil {
		t.logger.Warn(map[string]any{"line": lineNum, "error": err.Error()}, "decode_request_failed")
		return t.writeError("", err)
	}

	decision := handler.Evaluate(env.Request, env.Request.DocumentURL)
	t.logger.Debug(map[string]any{
		"id":       env.ID,
		"url":      env.Request.String(),
		"kind":     env.Request.Kind.String(),
		"decision": decision.String(),
	}, "request_evaluated")

	out, err := t.codec.EncodeDecision(env.ID, decision)
	if err != nil {
		t.logger.Error(map[string]any{"id": env.ID, "error": err.Error()}, "encode_decision_failed")
		return t.writeError(env.ID, err)
	}
	t.served.Add(1)
	return t.write(out)
}

func (t *StreamTransport) writeError(id string, cause error) error {
	t.failed.Add(1)
	out, err := t.codec.EncodeError(id, cause)
	if err != nil {
		return fmt.Errorf("encode error response: %w", err)
	}
	return t.write(out)
}

func (t *StreamTransport) write(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

var _ ServerTransport = (*StreamTransport)(nil)
