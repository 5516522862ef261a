package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
)

// Exporter ships one batch of events to the collector.
type Exporter interface {
	Export(ctx context.Context, batch []types.DetectionEvent) ([]types.DetectionRecord, error)
}

// Flusher performs the single end-of-session export. Delivery is at most once:
// a failed export is logged and the batch dropped.
type Flusher struct {
	exporter Exporter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFlusher wraps exporter. A non-positive timeout leaves the export unbounded.
func NewFlusher(exporter Exporter, timeout time.Duration, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{exporter: exporter, timeout: timeout, logger: logger}
}

// Flush exports batch if it is non-empty. It never returns an error; the
// result only reports whether the collector accepted the batch.
func (f *Flusher) Flush(ctx context.Context, batch []types.DetectionEvent) bool {
	if len(batch) == 0 {
		f.logger.Info("no detection events to export")
		return true
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := f.exporter.Export(ctx, batch)
	if err != nil {
		f.logger.Error("detection export failed", "events", len(batch), "error", err)
		return false
	}
	f.logger.Info("detection events exported",
		"events", len(batch),
		"accepted", len(records),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return true
}
