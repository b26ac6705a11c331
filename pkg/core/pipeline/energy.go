package pipeline

import "math"

// RMSEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM, normalized to 0.0-1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}

// Endpointer decides when a user utterance is complete: speech onset is an
// energy threshold crossing, and the utterance ends after a fixed duration of
// continuous silence. Time is accounted in audio duration, not wall clock, so
// the decision is independent of delivery jitter.
type Endpointer struct {
	minVolume  float64
	silenceMS  int
	sampleRate int

	speaking  bool
	silenceAc int // accumulated silence in ms since last speech
}

// NewEndpointer creates an endpointer. minVolume is the RMS threshold in
// 0.0-1.0; silenceMS is how much silence ends an utterance.
func NewEndpointer(minVolume float64, silenceMS, sampleRate int) *Endpointer {
	return &Endpointer{
		minVolume:  minVolume,
		silenceMS:  silenceMS,
		sampleRate: sampleRate,
	}
}

// Feed processes one PCM frame. speech reports whether this frame crossed the
// energy threshold; utteranceEnd fires once per utterance when enough silence
// has accumulated after speech.
func (e *Endpointer) Feed(pcm []byte) (speech, utteranceEnd bool) {
	frameMS := len(pcm) / 2 * 1000 / e.sampleRate

	if RMSEnergy(pcm) >= e.minVolume {
		e.speaking = true
		e.silenceAc = 0
		return true, false
	}

	if !e.speaking {
		return false, false
	}
	e.silenceAc += frameMS
	if e.silenceAc >= e.silenceMS {
		e.speaking = false
		e.silenceAc = 0
		return false, true
	}
	return false, false
}

// Speaking reports whether an utterance is currently in progress.
func (e *Endpointer) Speaking() bool {
	return e.speaking
}

// Reset clears utterance state.
func (e *Endpointer) Reset() {
	e.speaking = false
	e.silenceAc = 0
}
