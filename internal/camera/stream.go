package camera

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
)

const megabyte = 1024 * 1024

// Stream keeps the most recent frame decoded off an MJPEG pipe.
//
// Frames are not queued: a slow consumer simply sees the latest one, which is
// what a live overlay wants.
type Stream struct {
	cmd    *utils.SafeCommand // nil when the pipe does not come from a subprocess
	out    io.ReadCloser
	logger *slog.Logger

	mu     sync.RWMutex
	latest types.Frame
	seq    uint64
	closed bool
	ended  bool // the pipe hit EOF or failed; the latest frame is stale
	err    error

	first     chan struct{}
	firstOnce sync.Once
	done      chan struct{}

	closeOnce sync.Once
}

func newStream(out io.ReadCloser, cmd *utils.SafeCommand, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		cmd:    cmd,
		out:    out,
		logger: logger,
		first:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *Stream) read() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.out)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	for scanner.Scan() {
		// The scanner reuses its buffer, the frame must own its bytes
		data := append([]byte(nil), scanner.Bytes()...)
		frame, err := types.NewFrame(data)
		if err != nil {
			s.logger.Debug("dropping undecodable frame", "error", err)
			continue
		}

		s.mu.Lock()
		s.seq++
		frame.Seq = s.seq
		s.latest = frame
		s.mu.Unlock()

		s.firstOnce.Do(func() { close(s.first) })
	}

	s.mu.Lock()
	s.err = scanner.Err()
	s.ended = true
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.logger.Warn("capture stream ended", "error", s.err, "logs", s.cmd.Logs())
	}
}

// waitFirst blocks until a frame has been decoded, the pipe ends, or warmup elapses.
func (s *Stream) waitFirst(ctx context.Context, warmup time.Duration) error {
	timer := time.NewTimer(warmup)
	defer timer.Stop()

	select {
	case <-s.first:
		return nil
	case <-s.done:
		// The pipe can end right after the first frame
		select {
		case <-s.first:
			return nil
		default:
		}
		if strings.Contains(s.cmd.Logs(), "Permission denied") {
			return fmt.Errorf("%w: %s", types.ErrCameraAccessDenied, strings.TrimSpace(s.cmd.Logs()))
		}
		return fmt.Errorf("%w: capture ended before the first frame", types.ErrCameraUnavailable)
	case <-timer.C:
		return fmt.Errorf("%w: no frame within %s", types.ErrCameraUnavailable, warmup)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frame returns the most recent frame. ok is false before the first frame
// arrives, once the capture has ended and after the stream is closed.
func (s *Stream) Frame() (types.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.ended || s.seq == 0 {
		return types.Frame{}, false
	}
	return s.latest, true
}

// Close stops the capture and waits for the reader to exit. It is safe to call
// more than once; only the first call releases anything.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.out.Close()
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			// Killed on purpose, the exit status is noise
			_ = s.cmd.Wait()
		}
		<-s.done
		s.logger.Debug("capture stream released")
	})
	return nil
}
