// Package overlay renders per-face annotations for a processed frame.
package overlay

import (
	"fmt"
	"log/slog"

	"github.com/andresmejia3/rollcall/internal/types"
)

// Sink receives the loop's draw commands. Draw replaces whatever the previous
// frame drew; Clear removes it when no face is visible.
type Sink interface {
	Draw(frame types.Frame, cmds []types.OverlayCommand)
	Clear(frame types.Frame)
}

// Caption is the text shown next to a face box.
func Caption(c types.OverlayCommand) string {
	return fmt.Sprintf("%s | AGE: %d | GENDER: %s | EMOTION: %s", c.Label, c.Age, c.Gender, c.Emotion)
}

// LogSink writes each overlay command as a debug log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Draw(frame types.Frame, cmds []types.OverlayCommand) {
	for _, c := range cmds {
		s.logger.Debug(Caption(c),
			"frame", frame.Seq,
			"label", c.Label,
			"distance", c.Distance,
			"box", fmt.Sprintf("%.0f,%.0f %.0fx%.0f", c.Box.X, c.Box.Y, c.Box.Width, c.Box.Height),
		)
	}
}

func (s *LogSink) Clear(frame types.Frame) {
	s.logger.Debug("overlay cleared", "frame", frame.Seq)
}

// Multi fans every call out to each sink in order.
type Multi []Sink

func (m Multi) Draw(frame types.Frame, cmds []types.OverlayCommand) {
	for _, s := range m {
		s.Draw(frame, cmds)
	}
}

func (m Multi) Clear(frame types.Frame) {
	for _, s := range m {
		s.Clear(frame)
	}
}
