package pipeline

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Sentinel is the literal token the assistant is instructed to emit when the
// user signals they are ready to get back to work. The detector matches it as
// a case-insensitive substring — a deliberately simple protocol between the
// reasoning stage and the detector. It can false-positive if the word appears
// in ordinary reply text, so the prompt tells the model to reserve it.
const Sentinel = "GOODBYE"

// openingTurn is the synthetic user turn that seeds the conversation so the
// assistant speaks first without waiting for real audio.
const openingTurn = "(The user hasn't said anything yet. Open the conversation.)"

// SystemPrompt renders the per-session persona instruction from the
// intervention briefing produced by the monitor.
func SystemPrompt(interventionContext string) string {
	return fmt.Sprintf(`You are Sherpa, a warm and supportive productivity coach speaking via voice.

%s

Your personality:
- Speak conversationally and naturally (use contractions, casual language)
- Be genuinely curious, not accusatory or judgmental
- Keep responses SHORT (1-2 sentences max) - this is a voice conversation
- Use the person's responses to help them reflect
- Acknowledge when they have good reasons for what they're doing
- Suggest getting back on track gently if appropriate
- Be encouraging and supportive

Example approaches:
- "Hey! I noticed you're on [activity]. What's up with that?"
- "Interesting - how does [activity] connect to your task?"
- "Taking a quick break? That's totally fine!"
- "I hear you. Want to get back to it, or is there something blocking you?"

Remember: Keep it SHORT. Voice conversations should feel natural, not like reading an essay.

Start by saying: "Hey! I noticed you might be off track. What are you working on right now?"

When the user says they're getting back to work, wish them well in one short sentence ending with the exact word %s. Never use that word otherwise.`,
		interventionContext, Sentinel)
}

// ContainsSentinel reports whether text carries the termination token.
func ContainsSentinel(text string) bool {
	return strings.Contains(strings.ToUpper(text), Sentinel)
}

// Detector watches reasoning output for the sentinel. It latches: once it has
// requested termination it never requests it again for the session.
//
// Matching is a plain substring check, so a reply that quotes the user saying
// "goodbye" ends the session too. The system prompt forbids the word outside
// the farewell, which is the only guard against that.
type Detector struct {
	fired atomic.Bool
}

// Observe inspects one reply. It returns true exactly once, on the first
// reply containing the sentinel; the reply itself is always still spoken.
func (d *Detector) Observe(text string) bool {
	if !ContainsSentinel(text) {
		return false
	}
	return !d.fired.Swap(true)
}

// Fired reports whether termination has been requested.
func (d *Detector) Fired() bool {
	return d.fired.Load()
}
