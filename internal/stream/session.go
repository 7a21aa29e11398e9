// Package stream owns the wire-protocol lifecycle of one summarization
// request: event-stream headers, heartbeats, progress and delta frames,
// deadline enforcement, abort propagation, and exactly-once delivery of the
// terminal sentinel.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// State is the lifecycle position of a Session.
type State int

// Session lifecycle states. Aborted is reachable from Streaming and
// Finalizing when the client disconnects.
const (
	StateOpening State = iota
	StateStreaming
	StateFinalizing
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Defaults applied when Options leaves a field zero.
const (
	DefaultHeartbeatInterval = 2500 * time.Millisecond
	DefaultGlobalDeadline    = 60 * time.Second
)

const sentinel = "data: [DONE]\n\n"

// frameBuffer bounds pending pipeline output; senders block (context-aware)
// once it fills, which only happens if the writer goroutine has exited.
const frameBuffer = 16

// ErrStreamingUnsupported is returned by NewSession when the ResponseWriter
// cannot flush, which makes server-sent events impossible.
var ErrStreamingUnsupported = errors.New("streaming unsupported by connection")

var errInternal = errors.New("internal error")

// Options configures a Session. Zero fields fall back to defaults.
type Options struct {
	// HeartbeatInterval is the idle-connection keepalive period.
	HeartbeatInterval time.Duration
	// GlobalDeadline bounds the whole session; on expiry the client gets an
	// error frame and the sentinel instead of a hang.
	GlobalDeadline time.Duration
	Clock          summary.Clock
	Logger         *zap.Logger
}

// Pipeline computes the session result on its own goroutine, reporting
// intermediate progress and deltas through the emitter. It must return a
// payload or an error; it never touches the ResponseWriter.
type Pipeline func(ctx context.Context, emit *Emitter) (*FinalPayload, error)

// Session drives the server-sent event stream for one request. The goroutine
// that calls Run owns every write to the ResponseWriter; pipeline goroutines
// hand frames over a channel. All state transitions pass through one mutex
// so a write can never race the terminal sentinel.
type Session struct {
	w       http.ResponseWriter
	flusher http.Flusher
	clock   summary.Clock
	logger  *zap.Logger

	heartbeatInterval time.Duration
	globalDeadline    time.Duration

	mu           sync.Mutex
	state        State
	started      time.Time
	lastActivity time.Time
}

// NewSession wraps a ResponseWriter for streaming. It fails if the writer
// cannot flush; callers should answer with a plain 500 in that case since no
// stream bytes have been written yet.
func NewSession(w http.ResponseWriter, opts Options) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.GlobalDeadline <= 0 {
		opts.GlobalDeadline = DefaultGlobalDeadline
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		w:                 w,
		flusher:           flusher,
		clock:             clock,
		logger:            logger,
		heartbeatInterval: opts.HeartbeatInterval,
		globalDeadline:    opts.GlobalDeadline,
		state:             StateOpening,
	}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run opens the stream and drives it until a terminal condition: pipeline
// completion, pipeline failure, the global deadline, or client disconnect.
// Exactly one sentinel reaches any client that is still connected.
func (s *Session) Run(ctx context.Context, pipeline Pipeline) {
	defer s.recoverMidStream()

	s.open()

	pipeCtx, cancel := context.WithTimeout(ctx, s.globalDeadline)
	defer cancel()

	events := make(chan any, frameBuffer)
	done := make(chan pipelineResult, 1)
	emitter := &Emitter{ctx: pipeCtx, session: s, events: events}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("pipeline panic",
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				done <- pipelineResult{err: errInternal}
			}
		}()
		final, err := pipeline(pipeCtx, emitter)
		done <- pipelineResult{final: final, err: err}
	}()

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()
	deadline := time.NewTimer(s.globalDeadline)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			cancel()
			s.abort()
			return
		case <-deadline.C:
			cancel()
			s.fail(errors.New("deadline exceeded before the summary completed"))
			return
		case <-heartbeat.C:
			s.writeHeartbeat()
		case frame := <-events:
			s.writeJSON(frame)
		case res := <-done:
			if ctx.Err() != nil {
				s.abort()
				return
			}
			s.drain(events)
			if res.err != nil {
				s.fail(res.err)
				return
			}
			s.finalize(res.final)
			return
		}
	}
}

type pipelineResult struct {
	final *FinalPayload
	err   error
}

// open writes the event-stream headers, clears the server write deadline so
// the connection can outlive WriteTimeout, and releases intermediary buffers
// with an immediate flush plus a no-op comment frame.
func (s *Session) open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpening {
		return
	}
	header := s.w.Header()
	header.Set("Content-Type", "text/event-stream; charset=utf-8")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no") // disable nginx buffering
	s.w.WriteHeader(http.StatusOK)
	if err := http.NewResponseController(s.w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("write deadline reset unsupported", zap.Error(err))
	}
	s.flusher.Flush()
	fmt.Fprint(s.w, ": keepalive\n\n")
	s.flusher.Flush()
	now := s.clock.Now()
	s.started = now
	s.lastActivity = now
	s.state = StateStreaming
}

// writeJSON marshals the payload and writes one data frame under the ended
// guard. Frames after the terminal sentinel or an abort are dropped.
func (s *Session) writeJSON(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal stream frame", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedLocked() {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.flusher.Flush()
	s.lastActivity = s.clock.Now()
}

func (s *Session) writeHeartbeat() {
	s.mu.Lock()
	elapsed := s.clock.Now().Sub(s.started)
	s.mu.Unlock()
	s.writeJSON(heartbeatFrame{Heartbeat: heartbeatPayload{ElapsedMs: elapsed.Milliseconds()}})
}

// drain forwards frames the pipeline queued before it returned, so progress
// emitted just ahead of completion is not lost to select ordering.
func (s *Session) drain(events <-chan any) {
	for {
		select {
		case frame := <-events:
			s.writeJSON(frame)
		default:
			return
		}
	}
}

// finalize emits the success payload and the sentinel. Only this path may
// signal success.
func (s *Session) finalize(final *FinalPayload) {
	if final == nil {
		s.fail(errInternal)
		return
	}
	s.mu.Lock()
	if s.endedLocked() {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	s.mu.Unlock()

	s.writeJSON(final)
	s.finish()
}

// fail emits an error frame and the sentinel. Rate-limit failures carry a
// retryAfter hint in whole seconds.
func (s *Session) fail(err error) {
	frame := errorFrame{Error: summary.Reason(err)}
	var limited *summary.RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		secs := int(limited.RetryAfter / time.Second)
		if secs < 1 {
			secs = 1
		}
		frame.RetryAfter = secs
	}
	s.writeJSON(frame)
	s.finish()
}

// finish emits the terminal sentinel exactly once and closes the session.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedLocked() {
		return
	}
	fmt.Fprint(s.w, sentinel)
	s.flusher.Flush()
	s.state = StateClosed
}

// abort marks the session ended without further writes; the client is gone.
func (s *Session) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedLocked() {
		return
	}
	s.state = StateAborted
}

func (s *Session) endedLocked() bool {
	return s.state == StateClosed || s.state == StateAborted
}

// recoverMidStream converts a writer-goroutine panic into a generic error
// frame plus sentinel when the stream is still open.
func (s *Session) recoverMidStream() {
	r := recover()
	if r == nil {
		return
	}
	s.logger.Error("session panic",
		zap.Any("panic", r),
		zap.Stack("stack"),
	)
	s.fail(errInternal)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Emitter is the pipeline's handle for intermediate output. Sends hand
// frames to the session goroutine and never touch the ResponseWriter.
type Emitter struct {
	ctx     context.Context
	session *Session
	events  chan<- any
}

// Progress reports one pipeline step. Delivery stops silently once the
// session context is cancelled.
func (e *Emitter) Progress(step, message string) {
	if e.ctx.Err() != nil {
		return
	}
	frame := progressFrame{Progress: progressPayload{
		Step:      step,
		Message:   message,
		Timestamp: e.session.clock.Now().UTC().Format(time.RFC3339),
	}}
	select {
	case e.events <- frame:
	case <-e.ctx.Done():
	}
}

// Delta forwards one model text delta. It returns an error once the session
// can no longer accept writes so producers stop streaming early.
func (e *Emitter) Delta(text string) error {
	if text == "" {
		return nil
	}
	if err := e.ctx.Err(); err != nil {
		return err
	}
	select {
	case e.events <- deltaFrame{Delta: deltaPayload{Text: text}}:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}
