package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("CARTESIA_API_KEY", "c-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.ScreenshotInterval != 10*time.Second {
		t.Errorf("ScreenshotInterval = %v, want 10s", cfg.ScreenshotInterval)
	}
	if cfg.MaxImageWidth != 1280 {
		t.Errorf("MaxImageWidth = %d, want 1280", cfg.MaxImageWidth)
	}
	if cfg.DistractionThreshold != 1 {
		t.Errorf("DistractionThreshold = %d, want 1", cfg.DistractionThreshold)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want en", cfg.Language)
	}
	if cfg.SilenceDuration != time.Second {
		t.Errorf("SilenceDuration = %v, want 1s", cfg.SilenceDuration)
	}
	if cfg.MinVolume != 0.6 {
		t.Errorf("MinVolume = %v, want 0.6", cfg.MinVolume)
	}
}

func TestLoadFromEnvMissingRequired(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CARTESIA_API_KEY", "")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}

	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %T: %v", err, err)
	}
	if len(missing.Keys) != 2 {
		t.Fatalf("expected both keys reported, got %v", missing.Keys)
	}
	for _, want := range []string{"GEMINI_API_KEY", "CARTESIA_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("CARTESIA_API_KEY", "c-key")
	t.Setenv("SHERPA_SCREENSHOT_INTERVAL", "30s")
	t.Setenv("SHERPA_DISTRACTION_THRESHOLD", "3")
	t.Setenv("SHERPA_JUDGE_MODEL", "gemini-2.5-pro")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.ScreenshotInterval != 30*time.Second {
		t.Errorf("ScreenshotInterval = %v, want 30s", cfg.ScreenshotInterval)
	}
	if cfg.DistractionThreshold != 3 {
		t.Errorf("DistractionThreshold = %d, want 3", cfg.DistractionThreshold)
	}
	if cfg.JudgeModel != "gemini-2.5-pro" {
		t.Errorf("JudgeModel = %q", cfg.JudgeModel)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("CARTESIA_API_KEY", "c-key")
	t.Setenv("SHERPA_MIN_VOLUME", "1.5")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for out-of-range SHERPA_MIN_VOLUME")
	}
}
