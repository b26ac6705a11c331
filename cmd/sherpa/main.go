package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sherpa-ai/sherpa/internal/dotenv"
	"github.com/sherpa-ai/sherpa/pkg/core/audio"
	"github.com/sherpa-ai/sherpa/pkg/core/capture"
	"github.com/sherpa-ai/sherpa/pkg/core/config"
	"github.com/sherpa-ai/sherpa/pkg/core/judge"
	"github.com/sherpa-ai/sherpa/pkg/core/monitor"
	"github.com/sherpa-ai/sherpa/pkg/core/pipeline"
	"github.com/sherpa-ai/sherpa/pkg/core/tracker"
	"github.com/sherpa-ai/sherpa/pkg/core/voice/stt"
	"github.com/sherpa-ai/sherpa/pkg/core/voice/tts"
)

const defaultTask = "general productivity"

type sherpaDeps struct {
	loadConfig   func() (config.Config, error)
	newOracle    func(ctx context.Context, apiKey, model string, logger *slog.Logger) (*judge.GeminiOracle, error)
	newReasoner  func(ctx context.Context, apiKey, model string) (*pipeline.GeminiReasoner, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultSherpaDeps() sherpaDeps {
	return sherpaDeps{
		loadConfig:  config.LoadFromEnv,
		newOracle:   judge.NewGeminiOracle,
		newReasoner: pipeline.NewGeminiReasoner,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// readTask prompts the operator for a task description. Empty input falls
// back to a generic task.
func readTask(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "What are you working on today? ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return defaultTask
	}
	task := strings.TrimSpace(scanner.Text())
	if task == "" {
		return defaultTask
	}
	return task
}

func buildPipeline(cfg config.Config, logger *slog.Logger, reasoner pipeline.Reasoner) *pipeline.Pipeline {
	sttClient := stt.NewClient(cfg.CartesiaAPIKey)
	ttsClient := tts.NewClient(cfg.CartesiaAPIKey)
	mic := audio.NewMic(audio.MicConfig{SampleRate: cfg.InSampleRate})
	speaker := audio.NewSpeaker(audio.SpeakerConfig{SampleRate: cfg.OutSampleRate})

	return pipeline.New(pipeline.Config{
		OpenTranscription: func(ctx context.Context) (pipeline.TranscriptStream, error) {
			return sttClient.OpenStream(ctx, stt.Options{
				Language:   cfg.Language,
				SampleRate: cfg.InSampleRate,
			})
		},
		OpenSynthesis: func(ctx context.Context) (pipeline.SynthesisStream, error) {
			return ttsClient.OpenStream(ctx, tts.Options{
				Voice:      cfg.VoiceID,
				Language:   cfg.Language,
				SampleRate: cfg.OutSampleRate,
			})
		},
		StartMic:        mic.Start,
		Speaker:         speaker,
		Reasoner:        reasoner,
		SilenceDuration: cfg.SilenceDuration,
		MinVolume:       cfg.MinVolume,
		InSampleRate:    cfg.InSampleRate,
		OutSampleRate:   cfg.OutSampleRate,
		Logger:          logger,
	})
}

func runSherpa(ctx context.Context, logger *slog.Logger, task string, deps sherpaDeps) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	oracle, err := deps.newOracle(ctx, cfg.GeminiAPIKey, cfg.JudgeModel, logger)
	if err != nil {
		return fmt.Errorf("create oracle: %w", err)
	}
	reasoner, err := deps.newReasoner(ctx, cfg.GeminiAPIKey, cfg.ChatModel)
	if err != nil {
		return fmt.Errorf("create reasoner: %w", err)
	}

	tr := tracker.New(cfg.DistractionThreshold)
	controller := monitor.NewController(buildPipeline(cfg, logger, reasoner), logger, tr.Reset)
	mon := monitor.New(monitor.Config{
		Source:     capture.NewScreenSource(cfg.MaxImageWidth, cfg.CaptureTimeout),
		Oracle:     oracle,
		Tracker:    tr,
		Controller: controller,
		Interval:   cfg.ScreenshotInterval,
		Task:       task,
		Logger:     logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	errCh := make(chan error, 1)
	go func() { errCh <- mon.Run(runCtx) }()

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func runMain(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, deps sherpaDeps) int {
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(); err != nil {
		fmt.Fprintf(stderr, "sherpa: %v\n", err)
		return 1
	}

	task := readTask(stdin, stdout)
	logger.Info("sherpa starting", "task", task, "time", time.Now().Format(time.RFC3339))

	if err := runSherpa(ctx, logger, task, deps); err != nil {
		var missing *config.MissingError
		if errors.As(err, &missing) {
			fmt.Fprintf(stderr, "sherpa: %v\nSet them in your environment or .env file.\n", missing)
			return 1
		}
		fmt.Fprintf(stderr, "sherpa: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stdin, os.Stdout, os.Stderr, defaultSherpaDeps()))
}
