// Package config loads Sherpa's runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the monitor and voice pipeline need at startup.
type Config struct {
	// Credentials.
	GeminiAPIKey   string // judgment oracle + reasoning turns
	CartesiaAPIKey string // speech-to-text + text-to-speech

	// Monitor loop.
	ScreenshotInterval   time.Duration
	CaptureTimeout       time.Duration
	MaxImageWidth        int
	DistractionThreshold int

	// Models.
	JudgeModel string
	ChatModel  string

	// Voice.
	VoiceID         string
	Language        string
	SilenceDuration time.Duration
	MinVolume       float64
	InSampleRate    int // microphone / STT
	OutSampleRate   int // TTS / speaker

	Debug bool
}

// MissingError reports required configuration that was absent at startup.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// LoadFromEnv builds a Config from environment variables. Required credentials
// are validated up front; every missing key is reported in a single error so
// the operator can fix them all at once.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		GeminiAPIKey:         envOr("GEMINI_API_KEY", ""),
		CartesiaAPIKey:       envOr("CARTESIA_API_KEY", ""),
		ScreenshotInterval:   envDurationOr("SHERPA_SCREENSHOT_INTERVAL", 10*time.Second),
		CaptureTimeout:       envDurationOr("SHERPA_CAPTURE_TIMEOUT", 5*time.Second),
		MaxImageWidth:        envIntOr("SHERPA_MAX_IMAGE_WIDTH", 1280),
		DistractionThreshold: envIntOr("SHERPA_DISTRACTION_THRESHOLD", 1),
		JudgeModel:           envOr("SHERPA_JUDGE_MODEL", "gemini-2.0-flash"),
		ChatModel:            envOr("SHERPA_CHAT_MODEL", "gemini-2.0-flash"),
		VoiceID:              envOr("SHERPA_VOICE_ID", ""),
		Language:             envOr("SHERPA_LANGUAGE", "en"),
		SilenceDuration:      envDurationOr("SHERPA_SILENCE_DURATION", time.Second),
		MinVolume:            envFloat64Or("SHERPA_MIN_VOLUME", 0.6),
		InSampleRate:         envIntOr("SHERPA_IN_SAMPLE_RATE", 16000),
		OutSampleRate:        envIntOr("SHERPA_OUT_SAMPLE_RATE", 24000),
		Debug:                envBoolOr("SHERPA_DEBUG", false),
	}

	var missing []string
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if cfg.CartesiaAPIKey == "" {
		missing = append(missing, "CARTESIA_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, &MissingError{Keys: missing}
	}

	if cfg.ScreenshotInterval <= 0 {
		return Config{}, fmt.Errorf("SHERPA_SCREENSHOT_INTERVAL must be > 0")
	}
	if cfg.CaptureTimeout <= 0 {
		return Config{}, fmt.Errorf("SHERPA_CAPTURE_TIMEOUT must be > 0")
	}
	if cfg.MaxImageWidth <= 0 {
		return Config{}, fmt.Errorf("SHERPA_MAX_IMAGE_WIDTH must be > 0")
	}
	if cfg.DistractionThreshold < 1 {
		return Config{}, fmt.Errorf("SHERPA_DISTRACTION_THRESHOLD must be >= 1")
	}
	if cfg.SilenceDuration <= 0 {
		return Config{}, fmt.Errorf("SHERPA_SILENCE_DURATION must be > 0")
	}
	if cfg.MinVolume < 0 || cfg.MinVolume > 1 {
		return Config{}, fmt.Errorf("SHERPA_MIN_VOLUME must be in [0, 1]")
	}
	if cfg.InSampleRate <= 0 {
		return Config{}, fmt.Errorf("SHERPA_IN_SAMPLE_RATE must be > 0")
	}
	if cfg.OutSampleRate <= 0 {
		return Config{}, fmt.Errorf("SHERPA_OUT_SAMPLE_RATE must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
