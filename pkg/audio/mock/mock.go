// Package mock provides an in-memory mock implementation of [audio.Player]
// for use in unit tests.
//
// The mock records every buffer played and hands back handles the test can
// complete on demand, so sequencing logic can be exercised without a device
// and without waiting real playback durations.
//
// Typical usage:
//
//	player := mock.NewPlayer()
//	// ... start the code under test ...
//	h := player.WaitForPlay(t)
//	h.Complete() // simulate the segment finishing
package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/elfinch/waveform/pkg/audio"
)

// Player is a mock implementation of [audio.Player].
// Inspect Played after use; drive playback completion via the handles
// returned from [Player.WaitForPlay].
type Player struct {
	mu sync.Mutex

	// PlayError, when non-nil, is returned by every Play call.
	PlayError error

	// AutoComplete makes every handle complete immediately, for tests that
	// only care about the sequence of played buffers.
	AutoComplete bool

	// Played holds every buffer passed to Play, in order.
	Played []*audio.Buffer

	handles chan *Handle
}

// NewPlayer returns an initialised mock player.
func NewPlayer() *Player {
	return &Player{handles: make(chan *Handle, 64)}
}

// Play implements [audio.Player].
func (p *Player) Play(_ context.Context, buf *audio.Buffer) (audio.Handle, error) {
	p.mu.Lock()
	if p.PlayError != nil {
		err := p.PlayError
		p.mu.Unlock()
		return nil, err
	}
	p.Played = append(p.Played, buf)
	auto := p.AutoComplete
	p.mu.Unlock()

	h := &Handle{done: make(chan struct{})}
	if auto {
		h.Complete()
	} else {
		p.handles <- h
	}
	return h, nil
}

// WaitForPlay blocks until the next Play call and returns its handle.
// Fails the test after one second.
func (p *Player) WaitForPlay(t *testing.T) *Handle {
	t.Helper()
	select {
	case h := <-p.handles:
		return h
	case <-time.After(time.Second):
		t.Fatal("mock player: timed out waiting for Play")
		return nil
	}
}

// PlayCount returns how many buffers have been played so far.
func (p *Player) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Played)
}

// Handle is a mock playback handle controlled by the test.
type Handle struct {
	mu      sync.Mutex
	stopped bool
	once    sync.Once
	done    chan struct{}
}

// Done implements [audio.Handle].
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stop implements [audio.Handle].
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

// Stopped reports whether Stop was called.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Complete signals natural end of playback. A stopped handle never
// completes, mirroring the real players' stale-callback suppression.
func (h *Handle) Complete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.once.Do(func() { close(h.done) })
}
