// Package audio captures microphone input and plays assistant speech through
// the system speakers using ffmpeg and ffplay subprocesses.
package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// MicConfig tunes microphone capture.
type MicConfig struct {
	Device     int // avfoundation device index on macOS
	SampleRate int // Hz, default 16000
	FrameMS    int // frame duration, default 20
	FFmpegPath string
	// Command overrides the capture command entirely; it runs via
	// /bin/sh -lc and must write raw pcm_s16le mono to stdout.
	Command string
}

// Mic streams 16-bit little-endian mono PCM frames from the microphone.
type Mic struct {
	cfg MicConfig
}

// NewMic creates a microphone source.
func NewMic(cfg MicConfig) *Mic {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameMS <= 0 {
		cfg.FrameMS = 20
	}
	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &Mic{cfg: cfg}
}

// FrameBytes returns the size of one capture frame in bytes.
func (m *Mic) FrameBytes() int {
	return frameBytes(m.cfg.SampleRate, m.cfg.FrameMS)
}

func frameBytes(sampleRate, frameMS int) int {
	// mono, 2 bytes per sample
	return sampleRate * frameMS / 1000 * 2
}

// captureArgs builds the ffmpeg invocation for the current platform.
func captureArgs(device, sampleRate int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	switch runtime.GOOS {
	case "darwin":
		// `none:<index>` keeps ffmpeg from opening a camera.
		args = append(args, "-f", "avfoundation", "-i", fmt.Sprintf("none:%d", device))
	default:
		args = append(args, "-f", "alsa", "-i", "default")
	}
	return append(args,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le",
		"-",
	)
}

// Start launches the capture subprocess and returns a channel of PCM frames.
// The channel is closed when the subprocess exits or ctx is cancelled; the
// subprocess is killed on cancellation.
func (m *Mic) Start(ctx context.Context) (<-chan []byte, error) {
	var cmd *exec.Cmd
	if strings.TrimSpace(m.cfg.Command) != "" {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-lc", m.cfg.Command)
	} else {
		cmd = exec.CommandContext(ctx, m.cfg.FFmpegPath, captureArgs(m.cfg.Device, m.cfg.SampleRate)...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mic stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard
	// Killing the process alone is not enough when Command runs through a
	// shell: a child can inherit the pipe and keep it open. Closing our read
	// end unblocks the frame reader regardless, and WaitDelay bounds Wait.
	cmd.Cancel = func() error {
		err := cmd.Process.Kill()
		stdout.Close()
		return err
	}
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mic capture: %w", err)
	}

	size := m.FrameBytes()
	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		defer func() {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}()

		reader := bufio.NewReaderSize(stdout, 64*1024)
		for {
			frame := make([]byte, size)
			if _, err := io.ReadFull(reader, frame); err != nil {
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames, nil
}
