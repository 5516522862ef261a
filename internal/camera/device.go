// Package camera acquires a live capture device through an ffmpeg subprocess.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
)

// DefaultWarmup bounds how long Acquire waits for the first frame.
const DefaultWarmup = 5 * time.Second

// Feed is an acquired camera: a current-frame source that must be closed.
type Feed interface {
	Frame() (types.Frame, bool)
	Close() error
}

// Device is something a session can acquire a Feed from.
type Device interface {
	Acquire(ctx context.Context) (Feed, error)
}

// FFmpegDevice captures from a local device by piping ffmpeg's MJPEG output.
type FFmpegDevice struct {
	Options utils.CaptureOptions
	Warmup  time.Duration
	logger  *slog.Logger
}

// NewFFmpegDevice returns a device for opts. A zero warmup uses DefaultWarmup.
func NewFFmpegDevice(opts utils.CaptureOptions, warmup time.Duration, logger *slog.Logger) *FFmpegDevice {
	if logger == nil {
		logger = slog.Default()
	}
	if warmup <= 0 {
		warmup = DefaultWarmup
	}
	return &FFmpegDevice{Options: opts, Warmup: warmup, logger: logger.With("device", opts.Device)}
}

// Acquire starts the capture and returns once the first frame is decoded.
// On any failure nothing is left running.
func (d *FFmpegDevice) Acquire(ctx context.Context) (Feed, error) {
	if err := checkDevice(d.Options.Device); err != nil {
		return nil, err
	}

	// The capture lives as long as the session, not the start request
	ffmpeg := utils.NewFFmpegCaptureCmd(context.Background(), d.Options)
	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCameraUnavailable, err)
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", types.ErrCameraUnavailable, err)
	}

	s := newStream(out, ffmpeg, d.logger)
	if err := s.waitFirst(ctx, d.Warmup); err != nil {
		s.Close()
		return nil, err
	}

	d.logger.Info("camera acquired", "format", d.Options.InputFormat)
	return s, nil
}

// checkDevice maps an unopenable device node onto the camera error kinds.
// Non-path devices (avfoundation indexes, dshow names) are left to ffmpeg.
func checkDevice(device string) error {
	if device == "" {
		return fmt.Errorf("%w: no device configured", types.ErrCameraUnavailable)
	}
	if !strings.HasPrefix(device, "/") {
		return nil
	}
	f, err := os.Open(device)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", types.ErrCameraAccessDenied, err)
	default:
		return fmt.Errorf("%w: %v", types.ErrCameraUnavailable, err)
	}
}
