package audio

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// SpeakerConfig tunes playback.
type SpeakerConfig struct {
	SampleRate int // Hz, default 24000
	Volume     int // 0-100, default 80
	FFplayPath string
}

// Speaker plays 16-bit little-endian mono PCM through an ffplay subprocess.
// Flush restarts the subprocess, which is the only reliable way to drop audio
// ffplay has already buffered.
type Speaker struct {
	cfg SpeakerConfig

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewSpeaker creates a speaker sink.
func NewSpeaker(cfg SpeakerConfig) *Speaker {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 80
	}
	if strings.TrimSpace(cfg.FFplayPath) == "" {
		cfg.FFplayPath = "ffplay"
	}
	return &Speaker{cfg: cfg}
}

// Start launches the playback subprocess. Idempotent while running.
func (s *Speaker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Speaker) startLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-volume", fmt.Sprintf("%d", s.cfg.Volume),
		"-nodisp",
		"-f", "s16le",
		// ffplay does not accept ffmpeg-style `-ac`; use `-ch_layout`.
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", s.cfg.SampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.cfg.FFplayPath, args...)
	if runtime.GOOS == "darwin" {
		// SDL may pick a silent dummy backend on macOS; prefer CoreAudio
		// unless the user overrides it.
		if os.Getenv("SDL_AUDIODRIVER") == "" {
			cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
		}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

// Write queues PCM for playback.
func (s *Speaker) Write(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("speaker is not running")
	}
	_, err := stdin.Write(pcm)
	return err
}

// Flush discards all queued audio by restarting the subprocess. Used when the
// user barges in over assistant speech.
func (s *Speaker) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return s.startLocked()
}

// Close kills the playback subprocess.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Speaker) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}
