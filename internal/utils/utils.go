package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (Python / FFmpeg logs)
// This ensures we don't lose critical crash information if a subprocess dies.
type SafeCommand struct {
	*exec.Cmd
	Stderr *LogBuffer
}

// LogBuffer is a bytes.Buffer that may be read while exec's copy goroutine writes to it.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewSafeCommand initializes a command bound to ctx and attaches a buffer to its Stderr pipe.
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &LogBuffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// Logs returns whatever the subprocess wrote to stderr so far.
func (s *SafeCommand) Logs() string {
	if s == nil || s.Stderr == nil {
		return ""
	}
	return s.Stderr.String()
}

// ShowError prints a formatted error box and dumps subprocess logs if a SafeCommand is provided.
// Unlike a hard exit it leaves the decision to terminate with the caller.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 ROLLCALL ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if logs := s.Logs(); logs != "" {
		fmt.Fprintf(os.Stderr, "\nSUBPROCESS LOGS:\n%s\n", logs)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// --- 2. Capture Engine ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// SplitJpeg is the custom splitter for bufio.Scanner
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// CaptureOptions describes the live device FFmpeg should read from.
type CaptureOptions struct {
	Device      string  // e.g. /dev/video0
	InputFormat string  // e.g. v4l2, avfoundation, dshow
	Width       int     // 0 keeps the device default
	Height      int     // 0 keeps the device default
	FrameRate   float64 // 0 keeps the device default
}

// CaptureArgs builds the FFmpeg argument list for a live capture that emits MJPEG frames on stdout.
func CaptureArgs(opts CaptureOptions) []string {
	// -hide_banner and -loglevel error prevent memory bloat in the stderr buffer
	args := []string{"-hide_banner", "-loglevel", "error"}
	if opts.InputFormat != "" {
		args = append(args, "-f", opts.InputFormat)
	}
	if opts.Width > 0 && opts.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height))
	}
	if opts.FrameRate > 0 {
		args = append(args, "-framerate", strconv.FormatFloat(opts.FrameRate, 'f', -1, 64))
	}
	// Using -vcodec mjpeg ensures we get JPEGs Go can split
	return append(args, "-i", opts.Device, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

// NewFFmpegCaptureCmd creates the decoder pipe for a live capture device.
func NewFFmpegCaptureCmd(ctx context.Context, opts CaptureOptions) *SafeCommand {
	return NewSafeCommand(ctx, "ffmpeg", CaptureArgs(opts)...)
}
