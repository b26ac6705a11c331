package monitor

import (
	"context"
	"log/slog"
	"sync"
)

// Runner executes one voice intervention conversation to completion.
// Implementations must honor context cancellation for barge-free shutdown.
type Runner interface {
	Run(ctx context.Context, interventionContext string) error
}

// Controller enforces the single-conversation invariant: at most one
// intervention runs at a time, and attempts while one is active are dropped
// rather than queued. A stale trigger serviced late would interrupt the user
// about a distraction that may already be over.
type Controller struct {
	runner   Runner
	logger   *slog.Logger
	onFinish func()

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController wraps a Runner. onFinish is invoked after every conversation
// exit, success, failure, or cancellation alike; it may be nil.
func NewController(runner Runner, logger *slog.Logger, onFinish func()) *Controller {
	return &Controller{runner: runner, logger: logger, onFinish: onFinish}
}

// TryStart launches a conversation unless one is already active. It returns
// immediately; false means the attempt was dropped.
func (c *Controller) TryStart(ctx context.Context, interventionContext string) bool {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.active = true
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer cancel()
		err := c.runner.Run(runCtx, interventionContext)
		if err != nil && runCtx.Err() == nil {
			c.logger.Error("conversation ended with error", "error", err)
		} else {
			c.logger.Info("conversation ended")
		}

		c.mu.Lock()
		c.active = false
		c.cancel = nil
		c.done = nil
		c.mu.Unlock()
		close(done)

		if c.onFinish != nil {
			c.onFinish()
		}
	}()
	return true
}

// Active reports whether a conversation is currently running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stop cancels any active conversation and waits for it to finish. Safe to
// call when idle or more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
