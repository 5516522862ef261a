package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/andresmejia3/rollcall/internal/types"
)

// SnapshotName is the file the snapshot sink keeps overwriting.
const SnapshotName = "latest.jpg"

var (
	colorKnown   = color.RGBA{0, 200, 0, 255}
	colorUnknown = color.RGBA{220, 30, 30, 255}
)

// SnapshotSink writes the latest annotated frame to Dir as a JPEG.
// Known faces get a green box, unknown ones red.
type SnapshotSink struct {
	Dir    string
	logger *slog.Logger
}

func NewSnapshotSink(dir string, logger *slog.Logger) (*SnapshotSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotSink{Dir: dir, logger: logger}, nil
}

func (s *SnapshotSink) Draw(frame types.Frame, cmds []types.OverlayCommand) {
	img, err := decode(frame)
	if err != nil {
		s.logger.Warn("snapshot decode failed", "error", err)
		return
	}
	for _, c := range cmds {
		col := colorUnknown
		if c.Label != types.Unknown {
			col = colorKnown
		}
		strokeRect(img, c.Box, col, 2)
	}
	s.write(img)
}

// Clear writes the bare frame so a stale box does not linger on disk.
func (s *SnapshotSink) Clear(frame types.Frame) {
	img, err := decode(frame)
	if err != nil {
		return
	}
	s.write(img)
}

// Path is where the latest snapshot lives.
func (s *SnapshotSink) Path() string {
	return filepath.Join(s.Dir, SnapshotName)
}

func (s *SnapshotSink) write(img image.Image) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		s.logger.Warn("snapshot encode failed", "error", err)
		return
	}
	// Write then rename so a viewer never reads half a file
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		s.logger.Warn("snapshot write failed", "error", err)
		return
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		s.logger.Warn("snapshot rename failed", "error", err)
	}
}

func decode(frame types.Frame) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}

// strokeRect draws the outline of box clipped to the image bounds.
func strokeRect(img *image.RGBA, box types.Box, col color.Color, width int) {
	r := image.Rect(int(box.X), int(box.Y), int(box.X+box.Width), int(box.Y+box.Height))
	u := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), u, image.Point{}, draw.Over)
	}
}
