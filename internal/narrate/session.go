package narrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/observe"
	"github.com/elfinch/waveform/pkg/audio"
)

// Synthesizer produces an encoded audio payload for one segment of text.
// Satisfied by tts.Provider and by the resilience fallback chain.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// State is the lifecycle phase of a narration session.
type State string

const (
	// StateIdle means no playback is in progress.
	StateIdle State = "idle"

	// StateLoading means the upcoming segment's audio is being fetched or
	// synthesized. Every segment passes through Loading before Playing.
	StateLoading State = "loading"

	// StatePlaying means segments are being played in order.
	StatePlaying State = "playing"

	// StateComplete means the final segment finished. The session returns to
	// [StateIdle] after a short grace period.
	StateComplete State = "complete"
)

// EventType discriminates session events.
type EventType string

const (
	// EventState announces a state transition. State is set.
	EventState EventType = "state"

	// EventSegment announces that a segment is starting. Segment and Payload
	// (the encoded audio) are set.
	EventSegment EventType = "segment"

	// EventError announces that a segment was skipped. Segment and Err are set.
	EventError EventType = "error"
)

// Event is one session notification delivered to subscribers.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state,omitempty"`
	Segment int       `json:"segment"`
	Payload []byte    `json:"payload,omitempty"`
	Err     string    `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	BookID   string   `json:"book_id"`
	State    State    `json:"state"`
	Segment  int      `json:"segment"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors,omitempty"`
	Ambience string   `json:"ambience_key,omitempty"`
	Music    string   `json:"music_key,omitempty"`
}

// defaultPrefetchAhead is how many segments past the playhead are synthesized
// in the background when the session config leaves it unset.
const defaultPrefetchAhead = 2

// defaultIdleGrace is how long a completed session lingers in
// [StateComplete] before returning to [StateIdle].
const defaultIdleGrace = 30 * time.Second

// SessionConfig assembles a [Session].
type SessionConfig struct {
	Book     catalog.Book
	Segments []string
	Synth    Synthesizer
	Player   audio.Player

	// PrefetchAhead overrides the lookahead depth. Zero means the default;
	// negative disables prefetching.
	PrefetchAhead int

	// IdleGrace overrides how long the session stays in StateComplete.
	IdleGrace time.Duration

	// Metrics overrides the metrics sink. Nil means [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session plays one story's segments in strict order. Playback advances only
// when the current segment's handle reports natural completion; a segment
// that fails to synthesize is skipped after recording exactly one error.
//
// All methods are safe for concurrent use.
type Session struct {
	book     catalog.Book
	segments []string
	synth    Synthesizer
	player   audio.Player
	cache    *Cache
	metrics  *observe.Metrics

	prefetchAhead int
	idleGrace     time.Duration

	mu         sync.Mutex
	state      State
	index      int
	gen        uint64
	handle     audio.Handle
	abort      chan struct{}
	errs       []string
	graceTimer *time.Timer
	subs       map[chan Event]struct{}
}

// NewSession builds a session over the given segments.
func NewSession(cfg SessionConfig) (*Session, error) {
	if len(cfg.Segments) == 0 {
		return nil, errors.New("narrate: session needs at least one segment")
	}
	if cfg.Synth == nil {
		return nil, errors.New("narrate: session needs a synthesizer")
	}
	if cfg.Player == nil {
		return nil, errors.New("narrate: session needs a player")
	}

	prefetch := cfg.PrefetchAhead
	switch {
	case prefetch == 0:
		prefetch = defaultPrefetchAhead
	case prefetch < 0:
		prefetch = 0
	}
	grace := cfg.IdleGrace
	if grace <= 0 {
		grace = defaultIdleGrace
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	return &Session{
		book:          cfg.Book,
		segments:      cfg.Segments,
		synth:         cfg.Synth,
		player:        cfg.Player,
		cache:         NewCache(),
		metrics:       metrics,
		prefetchAhead: prefetch,
		idleGrace:     grace,
		state:         StateIdle,
		abort:         make(chan struct{}),
		subs:          make(map[chan Event]struct{}),
	}, nil
}

// Start begins playback from the first segment. A session that is already
// playing restarts: the current playback is cut off, the cache generation is
// bumped so stale prefetches cannot land, and narration begins again at
// segment zero.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.stopLocked()
	gen := s.cache.Reset()
	s.gen = gen
	s.index = 0
	s.errs = nil
	s.abort = make(chan struct{})
	s.setStateLocked(StateLoading)
	s.mu.Unlock()

	go s.advance(ctx, gen, 0)
}

// Stop halts playback, clears recorded errors, and returns the session to
// [StateIdle]. Completion callbacks and prefetch results belonging to the
// stopped run are suppressed. Cached clips are kept; the next Start clears
// them.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen = s.cache.Invalidate()
	s.errs = nil
	if s.state != StateIdle {
		s.setStateLocked(StateIdle)
	}
}

// stopLocked cuts the current playback without emitting events. The handle is
// cleared before Stop is called on it so a racing completion callback finds
// no handle to match and bails out.
func (s *Session) stopLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	close(s.abort)
	s.abort = make(chan struct{})
	if h := s.handle; h != nil {
		s.handle = nil
		h.Stop()
	}
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]string, len(s.errs))
	copy(errs, s.errs)
	return Snapshot{
		BookID:   s.book.ID,
		State:    s.state,
		Segment:  s.index,
		Total:    len(s.segments),
		Errors:   errs,
		Ambience: s.book.AmbienceKey,
		Music:    s.book.MusicKey,
	}
}

// Subscribe registers an event channel. Events are delivered best-effort: a
// subscriber that falls behind misses events rather than blocking playback.
// The returned cancel function must be called to release the subscription.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

// broadcastLocked fans an event out to all subscribers without blocking.
func (s *Session) broadcastLocked(ev Event) {
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	s.broadcastLocked(Event{Type: EventState, State: st, Segment: s.index})
}

// advance moves the playhead to segment i: it announces Loading, fetches the
// clip from cache or synthesizes it, plays it, announces Playing, and
// schedules the next advance when the playback handle completes. It runs
// outside the session lock; every committed effect re-checks the generation.
func (s *Session) advance(ctx context.Context, gen uint64, i int) {
	if s.stale(gen) {
		return
	}

	if i >= len(s.segments) {
		s.complete(gen)
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.index = i
	if s.state != StateLoading {
		s.setStateLocked(StateLoading)
	}
	s.mu.Unlock()

	clip, hit := s.cache.Get(i)
	s.metrics.RecordCacheLookup(ctx, hit)
	if !hit {
		var err error
		clip, err = s.synthesize(ctx, s.segments[i])
		if err != nil {
			s.skip(ctx, gen, i, err)
			return
		}
		s.cache.Put(gen, i, clip)
	}

	h, err := s.player.Play(ctx, clip.Buffer)
	if err != nil {
		s.skip(ctx, gen, i, fmt.Errorf("play segment %d: %w", i, err))
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		h.Stop()
		return
	}
	s.handle = h
	s.index = i
	abort := s.abort
	s.setStateLocked(StatePlaying)
	s.broadcastLocked(Event{Type: EventSegment, Segment: i, Payload: clip.Payload})
	s.mu.Unlock()

	for off := 1; off <= s.prefetchAhead; off++ {
		go s.prefetch(ctx, gen, i+off)
	}

	go func() {
		select {
		case <-h.Done():
		case <-abort:
			return
		}
		s.onSegmentDone(ctx, gen, h, i)
	}()
}

// onSegmentDone fires when a playback handle reports natural completion. A
// callback whose generation or handle no longer matches the session is a
// leftover from a stopped run and is dropped.
func (s *Session) onSegmentDone(ctx context.Context, gen uint64, h audio.Handle, i int) {
	s.mu.Lock()
	if gen != s.gen || s.handle != h {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	s.mu.Unlock()

	s.metrics.RecordSegmentPlayed(ctx, s.book.ID)
	s.advance(ctx, gen, i+1)
}

// skip records exactly one error for segment i and moves on to the next one.
func (s *Session) skip(ctx context.Context, gen uint64, i int, err error) {
	s.metrics.RecordProviderError(ctx, "tts", "synthesis")
	observe.Logger(ctx).Warn("narration segment skipped",
		"book", s.book.ID,
		"segment", i,
		"error", err,
	)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.index = i
	s.errs = append(s.errs, fmt.Sprintf("segment %d: %v", i, err))
	s.broadcastLocked(Event{Type: EventError, Segment: i, Err: err.Error()})
	s.mu.Unlock()

	s.advance(ctx, gen, i+1)
}

// complete marks the session finished and schedules the return to idle. The
// playhead index lands one past the final segment so a snapshot with
// Segment == Total reads as "everything played".
func (s *Session) complete(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.handle = nil
	s.index = len(s.segments)
	s.setStateLocked(StateComplete)
	s.graceTimer = time.AfterFunc(s.idleGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen == s.gen && s.state == StateComplete {
			s.setStateLocked(StateIdle)
		}
	})
}

// synthesize runs one segment through the synthesizer and decoder, recording
// stage latencies.
func (s *Session) synthesize(ctx context.Context, text string) (Clip, error) {
	ctx, span := observe.StartSpan(ctx, "narrate.synthesize")
	defer span.End()

	start := time.Now()
	payload, err := s.synth.Synthesize(ctx, text)
	s.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return Clip{}, fmt.Errorf("synthesize: %w", err)
	}

	start = time.Now()
	buf := audio.Decode(payload)
	s.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds())

	return Clip{Buffer: buf, Payload: payload}, nil
}

// prefetch synthesizes segment j in the background and offers it to the
// cache. Results carrying a stale generation are discarded by the cache;
// prefetch errors are not surfaced, the sequencer retries synchronously when
// it reaches the segment.
func (s *Session) prefetch(ctx context.Context, gen uint64, j int) {
	if j >= len(s.segments) {
		return
	}
	if _, ok := s.cache.Get(j); ok {
		return
	}

	clip, err := s.synthesize(ctx, s.segments[j])
	if err != nil {
		s.metrics.RecordPrefetch(ctx, "error")
		return
	}
	if s.cache.Put(gen, j, clip) {
		s.metrics.RecordPrefetch(ctx, "ok")
	} else {
		s.metrics.RecordPrefetch(ctx, "stale")
	}
}

// stale reports whether gen no longer matches the session's current run.
func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}
