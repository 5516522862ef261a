// Package session owns the camera and the inference loop across start/stop transitions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/andresmejia3/rollcall/internal/camera"
	"github.com/andresmejia3/rollcall/internal/events"
	"github.com/andresmejia3/rollcall/internal/match"
	"github.com/andresmejia3/rollcall/internal/overlay"
	"github.com/andresmejia3/rollcall/internal/pipeline"
	"github.com/andresmejia3/rollcall/internal/telemetry"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// DefaultStopGrace is how long Stop waits for an in-flight oracle call.
const DefaultStopGrace = 3 * time.Second

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TransitionError reports a start or stop attempted outside its source state.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s: %v", e.Op, e.From, types.ErrInvalidStateTransition)
}

func (e *TransitionError) Unwrap() error {
	return types.ErrInvalidStateTransition
}

// Extractor is the oracle as a session uses it.
type Extractor interface {
	Load(ctx context.Context) error
	pipeline.Detector
}

// Flusher exports a finished session's events.
type Flusher interface {
	Flush(ctx context.Context, batch []types.DetectionEvent) bool
}

// Config wires a Session. Matcher, Overlay, Logger and StopGrace are optional.
type Config struct {
	Camera    camera.Device
	Extractor Extractor
	Store     pipeline.Snapshotter
	Matcher   *match.Matcher
	Flusher   Flusher
	Overlay   overlay.Sink
	FrameRate float64
	StopGrace time.Duration
	Logger    *slog.Logger
}

// Session is the Idle -> Starting -> Running -> Stopping -> Idle state machine.
type Session struct {
	cfg Config

	mu       sync.Mutex
	state    State
	id       string
	buffer   *events.Buffer
	feed     camera.Feed
	loop     *pipeline.Loop
	cancel   context.CancelFunc
	loopDone chan struct{}

	flushes sync.WaitGroup
}

func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Matcher == nil {
		cfg.Matcher = match.New(match.DefaultThreshold)
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	return &Session{cfg: cfg, buffer: events.NewBuffer()}
}

// Start acquires the camera and loads the models in parallel, then launches the
// loop with a fresh event buffer. On failure the session is back in Idle with
// no camera held and the previous buffer untouched.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state != Idle {
		from := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "start", From: from}
	}
	s.state = Starting
	straggler := s.loopDone
	s.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "session.start")
	defer span.End()

	defer func() {
		if err != nil {
			s.setState(Idle)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.cfg.Logger.Error("session start failed", "error", err)
		}
	}()

	// A loop left behind by a previous stop may still be inside its oracle call
	if straggler != nil {
		select {
		case <-straggler:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var feed camera.Feed
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := s.cfg.Camera.Acquire(gctx)
		if err != nil {
			return err
		}
		feed = f
		return nil
	})
	g.Go(func() error {
		return s.cfg.Extractor.Load(gctx)
	})
	if err := g.Wait(); err != nil {
		if feed != nil {
			feed.Close()
		}
		return err
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("session.id", id))
	logger := s.cfg.Logger.With("session_id", id)
	buf := events.NewBuffer()
	loop := pipeline.New(pipeline.Deps{
		Source:    feed,
		Detector:  s.cfg.Extractor,
		Store:     s.cfg.Store,
		Matcher:   s.cfg.Matcher,
		Buffer:    buf,
		Overlay:   s.cfg.Overlay,
		FrameRate: s.cfg.FrameRate,
		Logger:    logger,
	})

	// The loop outlives the start request; only Stop cancels it
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.id, s.buffer, s.feed, s.loop = id, buf, feed, loop
	s.cancel, s.loopDone = cancel, done
	s.state = Running
	s.mu.Unlock()

	go func() {
		defer close(done)
		loop.Run(loopCtx)
	}()

	logger.Info("session started", "frame_rate", s.cfg.FrameRate)
	return nil
}

// Stop halts scheduling, releases the camera and hands the events to the
// flusher exactly once. It returns in Idle even if the oracle call in flight
// outlasts the grace period; the export itself runs in the background (see Wait).
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Running {
		from := s.state
		s.mu.Unlock()
		return &TransitionError{Op: "stop", From: from}
	}
	s.state = Stopping
	id, cancel, done, feed, buf := s.id, s.cancel, s.loopDone, s.feed, s.buffer
	s.mu.Unlock()

	_, span := telemetry.Tracer().Start(ctx, "session.stop")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))
	logger := s.cfg.Logger.With("session_id", id)

	cancel()

	grace := time.NewTimer(s.cfg.StopGrace)
	select {
	case <-done:
	case <-grace.C:
		logger.Warn("oracle call still in flight, releasing camera without it", "grace", s.cfg.StopGrace)
	case <-ctx.Done():
		logger.Warn("stop interrupted, releasing camera without waiting", "error", ctx.Err())
	}
	grace.Stop()

	batch := buf.Seal()
	if err := feed.Close(); err != nil {
		logger.Warn("camera release failed", "error", err)
	}

	s.flushes.Add(1)
	go func() {
		defer s.flushes.Done()
		s.cfg.Flusher.Flush(context.Background(), batch)
	}()

	s.mu.Lock()
	s.feed, s.cancel, s.loop = nil, nil, nil
	s.state = Idle
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("events", len(batch)))
	logger.Info("session stopped", "events", len(batch))
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID is the id of the running or last started session, empty before the first start.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Events returns a copy of the current session's buffer.
func (s *Session) Events() []types.DetectionEvent {
	s.mu.Lock()
	buf := s.buffer
	s.mu.Unlock()
	return buf.Events()
}

// Present reports whether a face was visible on the last processed frame.
func (s *Session) Present() bool {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	return loop != nil && loop.Present()
}

// Wait blocks until every export started by Stop has finished.
func (s *Session) Wait() {
	s.flushes.Wait()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
