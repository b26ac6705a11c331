package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sherpa-ai/sherpa/pkg/core/voice/stt"
)

// TranscriptStream is the speech-to-text session the pipeline consumes.
// Satisfied by *stt.Stream.
type TranscriptStream interface {
	SendAudio(data []byte) error
	Finalize() error
	Results() <-chan stt.Result
	Close() error
}

// SynthesisStream is one text-to-speech rendering session. Satisfied by
// *tts.Stream. The pipeline opens a fresh one per assistant turn.
type SynthesisStream interface {
	SendText(text string, final bool) error
	Audio() <-chan []byte
	Err() error
	Close() error
}

// Sink is the speaker output. Satisfied by *audio.Speaker.
type Sink interface {
	Start() error
	Write(pcm []byte) error
	Flush() error
	Close() error
}

// Config wires the pipeline's collaborators and tuning.
type Config struct {
	OpenTranscription func(ctx context.Context) (TranscriptStream, error)
	OpenSynthesis     func(ctx context.Context) (SynthesisStream, error)
	StartMic          func(ctx context.Context) (<-chan []byte, error)
	Speaker           Sink
	Reasoner          Reasoner

	SilenceDuration time.Duration // silence that ends a user utterance
	MinVolume       float64       // RMS speech threshold, 0.0-1.0
	InSampleRate    int           // mic sample rate, Hz
	OutSampleRate   int           // speaker sample rate, Hz
	Logger          *slog.Logger
}

// Pipeline runs voice intervention conversations. It satisfies the monitor's
// Runner contract: one Run per conversation, cancellable, done when the
// assistant's goodbye has finished playing.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline from cfg, applying defaults for zero tuning values.
func New(cfg Config) *Pipeline {
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = time.Second
	}
	if cfg.MinVolume <= 0 {
		cfg.MinVolume = 0.6
	}
	if cfg.InSampleRate <= 0 {
		cfg.InSampleRate = 16000
	}
	if cfg.OutSampleRate <= 0 {
		cfg.OutSampleRate = 24000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg}
}

// errConversationDone marks the orderly end of a session after the sentinel
// utterance has fully rendered.
var errConversationDone = errors.New("conversation done")

// session is the per-run state shared between the pipeline's stage loops.
type session struct {
	cfg  Config
	conv *Conversation

	sttStream TranscriptStream
	frames    <-chan []byte

	audio       chan *AudioChunk
	transcripts chan *Transcript
	synth       chan Frame

	detector   Detector
	endpointer *Endpointer

	// speaking gates barge-in: mic speech onset only interrupts while
	// assistant audio is playing.
	speaking  atomic.Bool
	interrupt chan struct{}
}

// Run executes one conversation seeded with the monitor's intervention
// briefing. It returns nil when the session ends via the sentinel, and the
// context error when cancelled externally.
func (p *Pipeline) Run(ctx context.Context, interventionContext string) error {
	cfg := p.cfg
	cfg.Logger.Info("conversation starting")

	if err := cfg.Speaker.Start(); err != nil {
		return fmt.Errorf("start speaker: %w", err)
	}
	defer cfg.Speaker.Close()

	sttStream, err := cfg.OpenTranscription(ctx)
	if err != nil {
		return fmt.Errorf("open transcription: %w", err)
	}
	defer sttStream.Close()

	frames, err := cfg.StartMic(ctx)
	if err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}

	s := &session{
		cfg:         cfg,
		conv:        NewConversation(SystemPrompt(interventionContext)),
		sttStream:   sttStream,
		frames:      frames,
		audio:       make(chan *AudioChunk, 16),
		transcripts: make(chan *Transcript, 4),
		synth:       make(chan Frame, 16),
		endpointer:  NewEndpointer(cfg.MinVolume, int(cfg.SilenceDuration/time.Millisecond), cfg.InSampleRate),
		interrupt:   make(chan struct{}, 1),
	}

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.micLoop(ctx) })
	g.Go(func() error { return s.captureLoop(ctx) })
	g.Go(func() error { return s.transcribeLoop(ctx) })
	g.Go(func() error { return s.converseLoop(ctx) })
	g.Go(func() error { return s.renderLoop(ctx) })

	err = g.Wait()
	switch {
	case errors.Is(err, errConversationDone):
		cfg.Logger.Info("conversation finished")
		return nil
	case parent.Err() != nil:
		return parent.Err()
	default:
		return err
	}
}

// micLoop wraps raw microphone PCM into audio frames for the capture stage.
func (s *session) micLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pcm, ok := <-s.frames:
			if !ok {
				return fmt.Errorf("microphone stream ended")
			}
			select {
			case s.audio <- &AudioChunk{PCM: pcm}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// captureLoop forwards microphone audio to transcription, runs endpointing,
// and raises barge-in when the user speaks over assistant audio.
func (s *session) captureLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-s.audio:
			if err := s.sttStream.SendAudio(chunk.PCM); err != nil {
				return fmt.Errorf("send audio: %w", err)
			}

			speech, utteranceEnd := s.endpointer.Feed(chunk.PCM)
			if speech && s.speaking.Load() {
				select {
				case s.interrupt <- struct{}{}:
				default:
				}
			}
			if utteranceEnd {
				if err := s.sttStream.Finalize(); err != nil {
					return fmt.Errorf("finalize utterance: %w", err)
				}
			}
		}
	}
}

// transcribeLoop turns finalized transcription results into user turns.
func (s *session) transcribeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-s.sttStream.Results():
			if !ok {
				return fmt.Errorf("transcription stream ended")
			}
			text := strings.TrimSpace(r.Text)
			if !r.IsFinal || text == "" {
				continue
			}
			select {
			case s.transcripts <- &Transcript{Text: text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// converseLoop owns the reasoning stage: it appends turns to the conversation,
// asks the reasoner for replies, and emits synthesis frames. The detector sits
// here, downstream of reasoning and upstream of synthesis, injecting the
// EndSignal after the closing reply's final text frame.
func (s *session) converseLoop(ctx context.Context) error {
	// Synthetic opening turn so the assistant speaks first.
	if err := s.turn(ctx, openingTurn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-s.transcripts:
			s.cfg.Logger.Info("user turn", "text", t.Text)
			if err := s.turn(ctx, t.Text); err != nil {
				return err
			}
		}
	}
}

func (s *session) turn(ctx context.Context, userText string) error {
	s.conv.AppendUser(userText)

	reply, err := s.cfg.Reasoner.Reply(ctx, s.conv.Messages())
	if err != nil {
		return err
	}
	s.cfg.Logger.Info("assistant turn", "text", reply)

	// The sentinel reply is still spoken in full; the EndSignal follows it.
	inject := s.detector.Observe(reply)

	for _, chunk := range ChunkReply(reply) {
		if err := s.emit(ctx, &SynthesizedText{Text: chunk}); err != nil {
			return err
		}
	}
	if err := s.emit(ctx, &SynthesizedText{EndOfTurn: true}); err != nil {
		return err
	}
	if inject {
		return s.emit(ctx, &EndSignal{})
	}
	return nil
}

func (s *session) emit(ctx context.Context, f Frame) error {
	select {
	case s.synth <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// renderLoop consumes synthesis frames: text chunks stream into a per-turn
// synthesis session, EndOfTurn triggers playout, and EndSignal — which only
// ever arrives after the closing turn's frames — waits out the tail of the
// audio and stops the pipeline.
func (s *session) renderLoop(ctx context.Context) error {
	var (
		ts                SynthesisStream
		turnText          strings.Builder
		lastTurnRemainder time.Duration
	)
	closeTurn := func() {
		if ts != nil {
			ts.Close()
			ts = nil
		}
		turnText.Reset()
	}
	defer closeTurn()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-s.synth:
			switch f := f.(type) {
			case *SynthesizedText:
				if !f.EndOfTurn {
					if ts == nil {
						var err error
						ts, err = s.cfg.OpenSynthesis(ctx)
						if err != nil {
							return fmt.Errorf("open synthesis: %w", err)
						}
					}
					if turnText.Len() > 0 {
						turnText.WriteByte(' ')
					}
					turnText.WriteString(f.Text)
					if err := ts.SendText(f.Text+" ", false); err != nil {
						return fmt.Errorf("send text: %w", err)
					}
					continue
				}

				if ts == nil {
					continue // empty turn
				}
				if err := ts.SendText("", true); err != nil {
					return fmt.Errorf("flush synthesis: %w", err)
				}
				remainder, interrupted, err := s.playout(ctx, ts)
				if err != nil {
					return err
				}
				lastTurnRemainder = remainder
				s.conv.AppendAssistant(turnText.String())
				if interrupted {
					s.cfg.Logger.Info("assistant interrupted by user")
				}
				closeTurn()

			case *EndSignal:
				// Everything ahead of the signal has drained; let the
				// speaker finish what it has buffered.
				s.waitPlayback(ctx, lastTurnRemainder)
				return errConversationDone
			}
		}
	}
}

// playout streams rendered audio to the speaker until the synthesis session
// completes or the user barges in. On barge-in the speaker's buffer is
// flushed so output cuts off immediately. It returns how much of the turn's
// audio is still queued at the speaker when it finishes.
func (s *session) playout(ctx context.Context, ts SynthesisStream) (remainder time.Duration, interrupted bool, err error) {
	s.speaking.Store(true)
	defer s.speaking.Store(false)

	// Drop any interrupt raised before this turn started playing.
	select {
	case <-s.interrupt:
	default:
	}

	var bytes int
	var first time.Time
	for {
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-s.interrupt:
			ts.Close()
			if err := s.cfg.Speaker.Flush(); err != nil {
				return 0, true, fmt.Errorf("flush speaker: %w", err)
			}
			return 0, true, nil
		case pcm, ok := <-ts.Audio():
			if !ok {
				return playbackRemainder(bytes, time.Since(first), s.cfg.OutSampleRate), false, ts.Err()
			}
			if first.IsZero() {
				first = time.Now()
			}
			if err := s.cfg.Speaker.Write(pcm); err != nil {
				return 0, false, fmt.Errorf("write speaker: %w", err)
			}
			bytes += len(pcm)
		}
	}
}

// playbackRemainder is how much of a turn's audio is still queued: the full
// duration of the PCM bytes written minus the wall time the speaker has
// already had them. Zero bytes yields zero regardless of elapsed.
func playbackRemainder(bytes int, elapsed time.Duration, sampleRate int) time.Duration {
	d := time.Duration(bytes) * time.Second / time.Duration(sampleRate*2)
	if d <= elapsed {
		return 0
	}
	return d - elapsed
}

// waitPlayback sleeps out the remaining playback time, bounded by
// cancellation. Writes to the speaker return as soon as its buffer accepts
// them, so this is what keeps the final utterance from being cut off.
func (s *session) waitPlayback(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
