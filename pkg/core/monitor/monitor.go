// Package monitor runs the periodic screen-watching loop and decides when to
// hand off to a voice conversation.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sherpa-ai/sherpa/pkg/core/capture"
	"github.com/sherpa-ai/sherpa/pkg/core/judge"
	"github.com/sherpa-ai/sherpa/pkg/core/tracker"
	"github.com/sherpa-ai/sherpa/pkg/core/types"
)

// Config holds the monitor's collaborators and tuning.
type Config struct {
	Source     capture.Source
	Oracle     judge.Oracle
	Tracker    *tracker.Tracker
	Controller *Controller
	Interval   time.Duration
	Task       string
	Logger     *slog.Logger
}

// Monitor drives capture -> judge -> tracker on a fixed cadence. One tick does
// at most one capture and one oracle call; a tick that overruns the interval
// simply delays the next one, it is never run concurrently with itself.
type Monitor struct {
	source     capture.Source
	oracle     judge.Oracle
	tracker    *tracker.Tracker
	controller *Controller
	interval   time.Duration
	task       string
	logger     *slog.Logger
}

// New creates a Monitor from cfg.
func New(cfg Config) *Monitor {
	return &Monitor{
		source:     cfg.Source,
		oracle:     cfg.Oracle,
		tracker:    cfg.Tracker,
		controller: cfg.Controller,
		interval:   cfg.Interval,
		task:       cfg.Task,
		logger:     cfg.Logger,
	}
}

// Run blocks until ctx is cancelled, ticking once immediately and then at the
// configured interval. On exit it stops any active conversation and waits for
// it to wind down.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "task", m.task, "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			m.controller.Stop()
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	// The oracle call shares the tick's deadline with capture: a judgment
	// that arrives after the next screenshot is due is stale anyway.
	tickCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	obs, err := m.source.Capture(tickCtx)
	if err != nil {
		// Skip the whole tick; a failed capture is not evidence either way.
		m.logger.Warn("screen capture failed", "error", err)
		return
	}

	j := m.oracle.Judge(tickCtx, obs, m.task)
	j.DistractionCount = m.tracker.Update(j)

	m.logger.Info("screen judged",
		"on_task", j.OnTask,
		"confidence", j.Confidence,
		"app", j.SourceApp,
		"activity", j.ActivityDescription,
		"distraction_count", j.DistractionCount,
	)

	if !m.tracker.ShouldIntervene() {
		return
	}
	if m.controller.TryStart(ctx, InterventionContext(m.task, j)) {
		m.logger.Warn("intervention triggered", "app", j.SourceApp, "count", j.DistractionCount)
	} else {
		m.logger.Debug("intervention suppressed, conversation already active")
	}
}

// InterventionContext renders the briefing handed to the voice agent when a
// conversation starts.
func InterventionContext(task string, j types.Judgment) string {
	return fmt.Sprintf(`The user said they're working on: %q

However, I detected they're currently: %s

App/Website: %s
This has happened %d times recently.

Your role: Gently ask them about what they're doing, be curious not judgmental.`,
		task, j.ActivityDescription, j.SourceApp, j.DistractionCount)
}
