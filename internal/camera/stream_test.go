package camera

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestStreamKeepsLatestFrame(t *testing.T) {
	pr, pw := io.Pipe()
	s := newStream(pr, nil, nil)
	defer s.Close()

	_, ok := s.Frame()
	assert.False(t, ok, "no frame before the first write")

	small, large := encodeJPEG(t, 32, 16), encodeJPEG(t, 64, 48)
	go func() {
		pw.Write(small)
		pw.Write(large)
	}()

	require.NoError(t, s.waitFirst(context.Background(), time.Second))
	require.Eventually(t, func() bool {
		f, ok := s.Frame()
		return ok && f.Seq == 2
	}, time.Second, 5*time.Millisecond)

	f, _ := s.Frame()
	assert.Equal(t, 64, f.Width)
	assert.Equal(t, 48, f.Height)
	assert.False(t, f.Empty())
}

func TestStreamSkipsUndecodableFrames(t *testing.T) {
	pr, pw := io.Pipe()
	s := newStream(pr, nil, nil)
	defer s.Close()

	valid := encodeJPEG(t, 8, 8)
	go func() {
		pw.Write([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9})
		pw.Write(valid)
	}()

	require.NoError(t, s.waitFirst(context.Background(), time.Second))
	f, ok := s.Frame()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)
}

func TestStreamStopsServingAfterCaptureEnds(t *testing.T) {
	pr, pw := io.Pipe()
	s := newStream(pr, nil, nil)
	defer s.Close()

	frame := encodeJPEG(t, 16, 16)
	go func() {
		pw.Write(frame)
		pw.Close()
	}()

	require.NoError(t, s.waitFirst(context.Background(), time.Second))
	<-s.done

	_, ok := s.Frame()
	assert.False(t, ok, "a dead capture must not keep serving its last frame")
}

func TestWaitFirstPipeEnded(t *testing.T) {
	pr, pw := io.Pipe()
	s := newStream(pr, nil, nil)
	defer s.Close()

	pw.Close()
	err := s.waitFirst(context.Background(), time.Second)
	assert.ErrorIs(t, err, types.ErrCameraUnavailable)
}

func TestWaitFirstTimeout(t *testing.T) {
	pr, _ := io.Pipe()
	s := newStream(pr, nil, nil)
	defer s.Close()

	err := s.waitFirst(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrCameraUnavailable)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	pr, pw := io.Pipe()
	s := newStream(pr, nil, nil)

	frame := encodeJPEG(t, 8, 8)
	go pw.Write(frame)
	require.NoError(t, s.waitFirst(context.Background(), time.Second))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, ok := s.Frame()
	assert.False(t, ok, "closed stream serves no frames")

	// The writer side sees the closed pipe
	_, err := pw.Write([]byte{0})
	assert.Error(t, err)
}

func TestCheckDevice(t *testing.T) {
	assert.ErrorIs(t, checkDevice(""), types.ErrCameraUnavailable)
	assert.ErrorIs(t, checkDevice("/dev/definitely-not-a-camera"), types.ErrCameraUnavailable)
	assert.NoError(t, checkDevice("0"), "non-path devices are left to ffmpeg")

	present := filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(present, nil, 0o600))
	assert.NoError(t, checkDevice(present))

	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	locked := filepath.Join(t.TempDir(), "video1")
	require.NoError(t, os.WriteFile(locked, nil, 0o000))
	assert.ErrorIs(t, checkDevice(locked), types.ErrCameraAccessDenied)
}

func TestAcquireMissingDevice(t *testing.T) {
	d := NewFFmpegDevice(utils.CaptureOptions{Device: "/dev/definitely-not-a-camera"}, time.Second, nil)
	_, err := d.Acquire(context.Background())
	assert.ErrorIs(t, err, types.ErrCameraUnavailable)
}
