// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio payloads to consumers and to verify
// which segment texts reach the synthesis backend.
//
// Example:
//
//	p := &mock.Provider{Audio: []byte("payload")}
//	data, _ := p.Synthesize(ctx, "First paragraph.")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/elfinch/waveform/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio is returned from Synthesize when SynthesizeFunc is nil. If both
	// are unset, Synthesize returns the text itself as bytes, which keeps
	// simple tests self-describing.
	Audio []byte

	// Err, if non-nil, is returned from every Synthesize call.
	Err error

	// Delay, if set, is waited before each call returns (or until ctx is
	// cancelled). Used to exercise prefetch timing.
	Delay time.Duration

	// SynthesizeFunc, if set, computes the per-call result and overrides
	// Audio/Err.
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	// --- Call records ---

	// Calls records the text of every Synthesize call in order.
	Calls []string
}

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, text)
	fn := p.SynthesizeFunc
	audio := p.Audio
	err := p.Err
	delay := p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return []byte(text), nil
	}
	return audio, nil
}

// CallCount returns how many Synthesize calls have been made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// CallTexts returns a copy of the recorded call texts.
func (p *Provider) CallTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	copy(out, p.Calls)
	return out
}
