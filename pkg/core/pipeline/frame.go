// Package pipeline implements the streaming voice conversation: microphone
// audio in, transcription, a reasoning turn, speech synthesis, and speaker
// output, with barge-in and sentinel-based self-termination.
package pipeline

import "github.com/sherpa-ai/sherpa/pkg/core/types"

// Frame is the unit flowing between pipeline stages. Frames move strictly
// forward; a stage may drop, transform, or inject frames but never reorder
// them.
type Frame interface {
	// FrameKind returns the frame type string for logging.
	FrameKind() string
}

// AudioChunk is raw 16-bit little-endian mono PCM from the microphone.
type AudioChunk struct {
	PCM []byte
}

func (f *AudioChunk) FrameKind() string { return "audio_chunk" }

// Transcript is one finalized user utterance from speech-to-text.
type Transcript struct {
	Text string
}

func (f *Transcript) FrameKind() string { return "transcript" }

// ContextMessage records a turn appended to the conversation context.
type ContextMessage struct {
	Role    types.Role
	Content string
}

func (f *ContextMessage) FrameKind() string { return "context_message" }

// SynthesizedText is a chunk of assistant text ready for speech synthesis.
// EndOfTurn marks the last chunk of a reply; the synthesis stage renders the
// turn's buffered text when it sees it.
type SynthesizedText struct {
	Text      string
	EndOfTurn bool
}

func (f *SynthesizedText) FrameKind() string { return "synthesized_text" }

// EndSignal requests an orderly pipeline stop. It is injected by the
// termination detector strictly after the final text of the closing utterance,
// so everything ahead of it drains before the pipeline shuts down.
type EndSignal struct{}

func (f *EndSignal) FrameKind() string { return "end_signal" }
