package types

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"
)

// Frame is a single encoded video frame (JPEG from the capture pipe, or a still image).
type Frame struct {
	// Seq is the monotonic sequence number within one capture stream
	Seq uint64
	// Timestamp is when the frame was read off the pipe
	Timestamp time.Time
	Width     int
	Height    int
	// Data holds the encoded image bytes
	Data []byte
}

// Empty reports whether the frame has no usable dimensions yet.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0
}

// NewFrame wraps encoded image bytes, reading the dimensions from the image header.
func NewFrame(data []byte) (Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame header: %w", err)
	}
	return Frame{
		Timestamp: time.Now(),
		Width:     cfg.Width,
		Height:    cfg.Height,
		Data:      data,
	}, nil
}
