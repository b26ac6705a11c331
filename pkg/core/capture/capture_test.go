package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	return img
}

func TestBoundWidth(t *testing.T) {
	tests := []struct {
		name           string
		w, h, maxWidth int
		wantW, wantH   int
	}{
		{"downscale wide", 2560, 1440, 1280, 1280, 720},
		{"already small", 800, 600, 1280, 800, 600},
		{"exact width", 1280, 720, 1280, 1280, 720},
		{"no bound", 2560, 1440, 0, 2560, 1440},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BoundWidth(solidImage(tt.w, tt.h), tt.maxWidth)
			b := got.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCaptureEncodesPNG(t *testing.T) {
	s := NewScreenSource(100, time.Second)
	s.grab = func() (image.Image, error) {
		return solidImage(300, 150), nil
	}

	obs, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if obs.Width != 100 || obs.Height != 50 {
		t.Errorf("bounds = %dx%d, want 100x50", obs.Width, obs.Height)
	}
	if obs.CapturedAt.IsZero() {
		t.Error("CapturedAt not set")
	}

	decoded, err := png.Decode(bytes.NewReader(obs.PNG))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 100 {
		t.Errorf("decoded width = %d, want 100", decoded.Bounds().Dx())
	}
}

func TestCaptureFailure(t *testing.T) {
	s := NewScreenSource(1280, time.Second)
	s.grab = func() (image.Image, error) {
		return nil, fmt.Errorf("display gone")
	}

	if _, err := s.Capture(context.Background()); err == nil {
		t.Fatal("expected error when grab fails")
	}
}

func TestCaptureTimeout(t *testing.T) {
	s := NewScreenSource(1280, 20*time.Millisecond)
	s.grab = func() (image.Image, error) {
		time.Sleep(200 * time.Millisecond)
		return solidImage(10, 10), nil
	}

	start := time.Now()
	_, err := s.Capture(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("capture blocked %v past its timeout", elapsed)
	}
}
