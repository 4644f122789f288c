package audio

import (
	"context"
	"sync"
	"time"
)

// Player begins playback of a decoded buffer. A Player does not queue: each
// Play call starts an independent playback whose lifecycle is controlled
// through the returned [Handle].
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Play starts playback of buf and returns a handle for it. Playback
	// continues after ctx is cancelled only until Handle.Stop is called;
	// ctx covers the act of starting, not the whole playback.
	Play(ctx context.Context, buf *Buffer) (Handle, error)
}

// Handle is one in-flight playback.
//
// Done is closed exactly once, when playback completes naturally. A handle
// that is stopped never signals Done — stopping suppresses the completion
// event so a cancelled playback cannot be mistaken for a finished one.
type Handle interface {
	// Done is closed when playback finishes on its own.
	Done() <-chan struct{}

	// Stop halts playback immediately. Safe to call more than once and
	// after completion.
	Stop()
}

// ClockPlayer paces playback by wall clock: each buffer "plays" for exactly
// its duration, producing no sound. It backs server-side narration sessions,
// where the audience hears audio relayed over the wire and the sequencer only
// needs completion timing.
type ClockPlayer struct {
	// Scale divides playback time, letting tests run a session faster than
	// real time. Zero means 1 (real time).
	Scale int
}

// Play implements [Player].
func (p *ClockPlayer) Play(_ context.Context, buf *Buffer) (Handle, error) {
	d := buf.Duration()
	if p.Scale > 1 {
		d /= time.Duration(p.Scale)
	}

	h := &clockHandle{done: make(chan struct{})}
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.stopped {
			h.finishOnce.Do(func() { close(h.done) })
		}
	})
	return h, nil
}

type clockHandle struct {
	mu         sync.Mutex
	timer      *time.Timer
	stopped    bool
	finishOnce sync.Once
	done       chan struct{}
}

func (h *clockHandle) Done() <-chan struct{} { return h.done }

func (h *clockHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.timer.Stop()
}
