// Package tracker accumulates distraction evidence across screen judgments
// and decides when a voice intervention is warranted.
package tracker

import (
	"sync"

	"github.com/sherpa-ai/sherpa/pkg/core/types"
)

// Tracker keeps a hysteresis counter over consecutive judgments. Off-task
// observations increment the counter, on-task observations decrement it
// toward zero, so a brief return to work erodes accumulated evidence instead
// of erasing it.
type Tracker struct {
	mu        sync.Mutex
	count     int
	threshold int
	latest    types.Judgment
	judged    bool
}

// New creates a Tracker that trips at the given count threshold. Thresholds
// below 1 are clamped to 1.
func New(threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{threshold: threshold}
}

// Update folds one judgment into the counter and returns the new count. The
// judgment is retained so ShouldIntervene can consult its flags.
func (t *Tracker) Update(j types.Judgment) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j.OnTask {
		if t.count > 0 {
			t.count--
		}
	} else {
		t.count++
	}
	t.latest = j
	t.judged = true
	return t.count
}

// ShouldIntervene reports whether an intervention should fire now, based on
// the latest judgment and the accumulated count. The oracle's
// needs_intervention flag short-circuits the counter: an emphatic single
// observation is enough. Before any judgment it is always false.
func (t *Tracker) ShouldIntervene() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.judged {
		return false
	}
	return t.latest.NeedsIntervention || t.count >= t.threshold
}

// Count returns the current distraction count.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Reset clears accumulated evidence, including the latched judgment. Called
// after an intervention completes so one distraction episode is not
// double-counted.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
	t.latest = types.Judgment{}
	t.judged = false
}
