package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

const chunkSize = 4096

// Stream terminal states, used as metric labels.
const (
	streamCompleted = "completed"
	streamHalted    = "halted"
	streamFailed    = "failed"
	streamClosed    = "closed"
)

// Stream delivers the events of one open event-stream response. A single
// goroutine consumes it; the next chunk is read only after every event of
// the previous one was delivered.
type Stream struct {
	body    io.ReadCloser
	parser  *Parser
	pending *queue.Queue
	buf     []byte
	cur     StreamEvent
	err     error
	done    bool
	closed  atomic.Bool
	logger  *zap.Logger
	metrics *Metrics
}

// Stream opens an event stream. The method defaults to POST. Failures of
// the opening exchange come back as *StreamOpenError and are not sent to
// the Notifier.
func (d *Dispatcher) Stream(ctx context.Context, cfg *RequestConfig) (*Stream, error) {
	method := cfg.Method
	if method == "" {
		method = MethodPost
	}

	req, err := d.newRequest(ctx, cfg, method)
	if err != nil {
		return nil, &StreamOpenError{Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := d.doer.Do(req)
	if err != nil {
		d.metrics.streamState(streamFailed)
		d.logger.Warn("[stream] open failed", zap.String("url", req.URL.String()), zap.Error(err))
		return nil, &StreamOpenError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		d.metrics.streamState(streamFailed)
		d.logger.Warn("[stream] open failed", zap.String("url", req.URL.String()), zap.Int("status", resp.StatusCode))
		return nil, &StreamOpenError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("http %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	d.logger.Debug("[stream] opened",
		zap.String("request_id", req.Header.Get("X-Request-Id")),
		zap.String("url", req.URL.String()),
	)
	return newStream(resp.Body, d.logger, d.metrics), nil
}

// StreamPost opens a POST event stream and hands every event to onEvent.
func (d *Dispatcher) StreamPost(ctx context.Context, path string, body any, onEvent func(StreamEvent)) error {
	s, err := d.Stream(ctx, &RequestConfig{Method: MethodPost, Path: path, Body: body})
	if err != nil {
		return err
	}
	return s.Consume(onEvent)
}

// NewStream wraps any byte source, e.g. a file or pipe, as a Stream.
func NewStream(body io.ReadCloser, logger *zap.Logger) *Stream {
	return newStream(body, logger, nil)
}

func newStream(body io.ReadCloser, logger *zap.Logger, metrics *Metrics) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		body:    body,
		parser:  NewParser(logger),
		pending: queue.New(),
		buf:     make([]byte, chunkSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Next advances to the next event. It returns false once the source is
// exhausted, the stream halted or it was closed; Err tells which.
func (s *Stream) Next() bool {
	for s.pending.Length() == 0 {
		if s.done {
			return false
		}
		s.readChunk()
	}

	s.cur = s.pending.Remove().(StreamEvent)
	s.metrics.streamEvent()
	return true
}

func (s *Stream) Event() StreamEvent { return s.cur }

// Err is nil after a clean end of stream. A payload decode failure yields
// a *FrameDecodeError; a failing source yields its read error.
func (s *Stream) Err() error { return s.err }

// Close releases the underlying source. It may be called from another
// goroutine to abandon a stream blocked in Next; the stream then ends
// without an error.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.body.Close()
}

// Consume delivers every event to onEvent, then closes the stream and
// returns Err. onEvent never sees a decode failure.
func (s *Stream) Consume(onEvent func(StreamEvent)) error {
	defer func() { _ = s.Close() }()
	for s.Next() {
		onEvent(s.Event())
	}
	return s.Err()
}

func (s *Stream) readChunk() {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		events, perr := s.parser.Feed(s.buf[:n])
		for _, ev := range events {
			s.pending.Add(ev)
		}
		if perr != nil {
			s.finish(streamHalted, perr)
			return
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if s.parser.Pending() {
			s.logger.Debug("[stream] discarding partial frame at end of stream")
		}
		s.finish(streamCompleted, nil)
	case s.closed.Load():
		s.finish(streamClosed, nil)
	default:
		s.logger.Warn("[stream] read failed", zap.Error(err))
		s.finish(streamFailed, err)
	}
}

func (s *Stream) finish(state string, err error) {
	s.done = true
	s.err = err
	s.metrics.streamState(state)
	_ = s.Close()
}
