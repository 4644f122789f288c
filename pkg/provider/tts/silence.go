package tts

import (
	"context"
	"time"

	"github.com/elfinch/waveform/pkg/audio"
)

// Silence renders every segment as a short silent WAV clip. It serves as the
// terminal fallback when every real backend is down and as the stand-in when
// no backend is configured: the payload is byte-for-byte decodable, so
// listeners hear a pause instead of receiving undecodable bytes.
type Silence struct {
	// Duration is the length of the clip per segment. Zero means one second.
	Duration time.Duration

	// SampleRate overrides the WAV sample rate. Zero means
	// [audio.DefaultSampleRate].
	SampleRate int
}

// Compile-time interface assertion.
var _ Provider = (*Silence)(nil)

// Synthesize returns a silent WAV payload regardless of the text.
func (s *Silence) Synthesize(_ context.Context, _ string) ([]byte, error) {
	d := s.Duration
	if d <= 0 {
		d = time.Second
	}
	return audio.SilentWAV(d, s.SampleRate), nil
}
