package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sherpa-ai/sherpa/pkg/core/config"
	"github.com/sherpa-ai/sherpa/pkg/core/judge"
	"github.com/sherpa-ai/sherpa/pkg/core/pipeline"
)

func TestReadTask(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Coding\n", "Coding"},
		{"  Writing my thesis  \n", "Writing my thesis"},
		{"\n", defaultTask},
		{"", defaultTask},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		got := readTask(strings.NewReader(tc.in), &out)
		if got != tc.want {
			t.Errorf("readTask(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if !strings.Contains(out.String(), "working on") {
			t.Error("prompt not written")
		}
	}
}

func TestRunSherpa_ConfigLoadFailure(t *testing.T) {
	deps := sherpaDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newOracle: func(ctx context.Context, apiKey, model string, logger *slog.Logger) (*judge.GeminiOracle, error) {
			t.Fatal("oracle must not be created when config load fails")
			return nil, nil
		},
		newReasoner: func(ctx context.Context, apiKey, model string) (*pipeline.GeminiReasoner, error) {
			t.Fatal("reasoner must not be created when config load fails")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runSherpa(context.Background(), logger, "Coding", deps)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want config load failure", err)
	}
}

func TestRunMain_ReportsMissingConfiguration(t *testing.T) {
	deps := defaultSherpaDeps()
	deps.loadConfig = func() (config.Config, error) {
		return config.Config{}, &config.MissingError{Keys: []string{"GEMINI_API_KEY", "CARTESIA_API_KEY"}}
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), strings.NewReader("Coding\n"), &stdout, &stderr, deps)

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	for _, key := range []string{"GEMINI_API_KEY", "CARTESIA_API_KEY"} {
		if !strings.Contains(stderr.String(), key) {
			t.Errorf("stderr missing %s: %s", key, stderr.String())
		}
	}
}
