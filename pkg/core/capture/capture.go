// Package capture produces timestamped screen observations for analysis.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/draw"
)

// Observation is one pre-processed screen snapshot.
type Observation struct {
	PNG        []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Source produces observations on demand.
type Source interface {
	// Capture grabs the current screen. It must not block past the
	// configured timeout; on any failure it returns nil and an error,
	// leaving no state behind. Retry policy belongs to the caller.
	Capture(ctx context.Context) (*Observation, error)
}

// ScreenSource captures the primary display, bounds it to a maximum width
// (aspect preserved) and re-encodes to PNG to cap the payload sent to the
// judgment oracle.
type ScreenSource struct {
	maxWidth int
	timeout  time.Duration

	// grab is swappable for tests.
	grab func() (image.Image, error)
}

// NewScreenSource creates a source for the primary display.
func NewScreenSource(maxWidth int, timeout time.Duration) *ScreenSource {
	return &ScreenSource{
		maxWidth: maxWidth,
		timeout:  timeout,
		grab:     grabPrimaryDisplay,
	}
}

func grabPrimaryDisplay() (image.Image, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	return screenshot.CaptureDisplay(0)
}

// Capture implements Source.
func (s *ScreenSource) Capture(ctx context.Context) (*Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type grabResult struct {
		img image.Image
		err error
	}
	ch := make(chan grabResult, 1)
	go func() {
		img, err := s.grab()
		ch <- grabResult{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("screen capture: %w", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("screen capture: %w", res.err)
		}
		return s.encode(res.img)
	}
}

func (s *ScreenSource) encode(img image.Image) (*Observation, error) {
	img = BoundWidth(img, s.maxWidth)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}

	b := img.Bounds()
	return &Observation{
		PNG:        buf.Bytes(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: time.Now(),
	}, nil
}

// BoundWidth downscales img to at most maxWidth pixels wide, preserving the
// aspect ratio. Images already within bounds are returned unchanged.
func BoundWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	ratio := float64(maxWidth) / float64(b.Dx())
	h := int(float64(b.Dy()) * ratio)
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
