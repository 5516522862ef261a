// Package pipeline runs the per-frame detect, match and record loop of a session.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/rollcall/internal/events"
	"github.com/andresmejia3/rollcall/internal/match"
	"github.com/andresmejia3/rollcall/internal/overlay"
	"github.com/andresmejia3/rollcall/internal/telemetry"
	"github.com/andresmejia3/rollcall/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// FrameSource yields the current camera frame. ok is false when none is available.
type FrameSource interface {
	Frame() (frame types.Frame, ok bool)
}

// Detector is the part of the oracle the loop calls.
type Detector interface {
	DetectAll(ctx context.Context, frame types.Frame) ([]types.Detection, error)
}

// Snapshotter serves the enrollment entries to match against.
type Snapshotter interface {
	Snapshot() []types.LabeledDescriptor
}

// EventSink receives one event per detected face.
type EventSink interface {
	Append(ev types.DetectionEvent) error
}

// Deps are the collaborators of a Loop. Overlay, Logger and Now are optional.
type Deps struct {
	Source   FrameSource
	Detector Detector
	Store    Snapshotter
	Matcher  *match.Matcher
	Buffer   EventSink
	Overlay  overlay.Sink
	Logger   *slog.Logger
	Now      func() time.Time

	// FrameRate caps iterations per second. Zero or less means no cap: the
	// oracle's latency alone sets the pace.
	FrameRate float64
}

// idleBackoff is how long Run sleeps when the source has no new frame.
const idleBackoff = 10 * time.Millisecond

// Loop drives the oracle one frame at a time. An iteration never starts before
// the previous one's detection call has returned, so at most one call is in flight.
type Loop struct {
	d       Deps
	limiter *rate.Limiter
	present atomic.Bool
	lastSeq atomic.Uint64
}

func New(d Deps) *Loop {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Matcher == nil {
		d.Matcher = match.New(match.DefaultThreshold)
	}
	if d.Overlay == nil {
		d.Overlay = overlay.Multi(nil)
	}
	limit := rate.Inf
	if d.FrameRate > 0 {
		limit = rate.Limit(d.FrameRate)
	}
	return &Loop{d: d, limiter: rate.NewLimiter(limit, 1)}
}

// Run iterates until ctx is cancelled. Cancellation is checked before every
// iteration; an iteration already in its detection call finishes but has no successor.
func (l *Loop) Run(ctx context.Context) {
	l.d.Logger.Debug("inference loop started", "frame_rate", l.d.FrameRate)
	defer l.d.Logger.Debug("inference loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		_, fresh, err := l.step(ctx)
		if err != nil {
			// A failed frame is dropped, the session keeps going
			l.d.Logger.Warn("frame inference failed", "error", err)
		}
		if !fresh {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleBackoff):
			}
		}
	}
}

// Step processes the current frame and returns the number of faces recorded.
// A frame whose sequence number was already processed is skipped, so a stalled
// source never yields the same faces twice.
func (l *Loop) Step(ctx context.Context) (int, error) {
	n, _, err := l.step(ctx)
	return n, err
}

// step reports fresh=false when there was no new frame to hand to the oracle.
func (l *Loop) step(ctx context.Context) (recorded int, fresh bool, err error) {
	frame, ok := l.d.Source.Frame()
	if !ok || frame.Empty() {
		return 0, false, nil
	}
	if frame.Seq != 0 && l.lastSeq.Swap(frame.Seq) == frame.Seq {
		return 0, false, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.step")
	defer span.End()
	span.SetAttributes(attribute.Int64("frame.seq", int64(frame.Seq)))

	// The call is allowed to finish even if the session stops meanwhile
	detections, err := l.d.Detector.DetectAll(context.WithoutCancel(ctx), frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, true, err
	}
	span.SetAttributes(attribute.Int("faces", len(detections)))

	if len(detections) == 0 {
		if l.present.Swap(false) {
			l.d.Logger.Info("subject left frame", "frame", frame.Seq)
		}
		l.d.Overlay.Clear(frame)
		return 0, true, nil
	}
	if !l.present.Swap(true) {
		l.d.Logger.Info("subject entered frame", "frame", frame.Seq, "faces", len(detections))
	}

	entries := l.d.Store.Snapshot()
	now := l.d.Now()
	cmds := make([]types.OverlayCommand, 0, len(detections))
	for _, det := range detections {
		ev := types.DetectionEvent{
			Age:       types.RoundAge(det.Age),
			Gender:    types.ParseGender(det.Gender),
			Emotion:   det.Expressions.Dominant(),
			Timestamp: now,
		}
		result := l.d.Matcher.Match(det.Descriptor, entries)

		if err := l.d.Buffer.Append(ev); err != nil {
			if !errors.Is(err, events.ErrSealed) {
				return recorded, true, err
			}
			l.d.Logger.Debug("event dropped after session stop", "frame", frame.Seq)
		} else {
			recorded++
		}

		cmds = append(cmds, types.OverlayCommand{
			Box:      det.Box,
			Age:      ev.Age,
			Gender:   ev.Gender,
			Emotion:  ev.Emotion,
			Label:    result.Label,
			Distance: result.Distance,
		})
	}
	l.d.Overlay.Draw(frame, cmds)
	return recorded, true, nil
}

// Present reports whether the last processed frame contained a face.
func (l *Loop) Present() bool {
	return l.present.Load()
}
