package narrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/pkg/audio"
)

// fakeSynth records synthesis calls and returns the segment text as the
// payload. The payload is not decodable audio, so the decoder substitutes its
// short silent buffer, which keeps playback fast and deterministic.
type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fn    func(text string) ([]byte, error)
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(text)
	}
	return []byte(text), nil
}

var sessionBook = catalog.Book{
	ID:          "entangled-sink",
	Title:       "The Entangled Sink",
	PriceCents:  199,
	AmbienceKey: "ambience/kitchen",
	MusicKey:    "music/calm-loop",
}

func newTestSession(t *testing.T, segments []string, synth Synthesizer) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		Book:      sessionBook,
		Segments:  segments,
		Synth:     synth,
		Player:    &audio.ClockPlayer{Scale: 100},
		IdleGrace: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// collectUntil drains events from ch until pred matches or the timeout fires.
func collectUntil(t *testing.T, ch <-chan Event, pred func(Event) bool, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
			if pred(ev) {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event; got %d events: %+v", len(events), events)
		}
	}
}

func isComplete(ev Event) bool {
	return ev.Type == EventState && ev.State == StateComplete
}

func TestNewSession_Validation(t *testing.T) {
	synth := &fakeSynth{}
	player := &audio.ClockPlayer{}

	tests := []struct {
		name string
		cfg  SessionConfig
	}{
		{"no segments", SessionConfig{Synth: synth, Player: player}},
		{"no synthesizer", SessionConfig{Segments: []string{"A"}, Player: player}},
		{"no player", SessionConfig{Segments: []string{"A"}, Synth: synth}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSession(tc.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSession_HappyPathEventOrder(t *testing.T) {
	synth := &fakeSynth{}
	s := newTestSession(t, []string{"Alpha.", "Bravo.", "Charlie."}, synth)

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	events := collectUntil(t, ch, isComplete, 2*time.Second)

	// Every segment passes through Loading before Playing, and completion
	// parks the playhead one past the final segment.
	var want = []struct {
		typ     EventType
		state   State
		segment int
	}{
		{EventState, StateLoading, 0},
		{EventState, StatePlaying, 0},
		{EventSegment, "", 0},
		{EventState, StateLoading, 1},
		{EventState, StatePlaying, 1},
		{EventSegment, "", 1},
		{EventState, StateLoading, 2},
		{EventState, StatePlaying, 2},
		{EventSegment, "", 2},
		{EventState, StateComplete, 3},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		ev := events[i]
		if ev.Type != w.typ {
			t.Errorf("event %d type = %q, want %q", i, ev.Type, w.typ)
		}
		if w.typ == EventState && ev.State != w.state {
			t.Errorf("event %d state = %q, want %q", i, ev.State, w.state)
		}
		if ev.Segment != w.segment {
			t.Errorf("event %d segment = %d, want %d", i, ev.Segment, w.segment)
		}
	}
}

func TestSession_StrictAdvancement(t *testing.T) {
	segments := []string{"One.", "Two.", "Three.", "Four.", "Five."}
	s := newTestSession(t, segments, &fakeSynth{})

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	events := collectUntil(t, ch, isComplete, 2*time.Second)

	var played []int
	for _, ev := range events {
		if ev.Type == EventSegment {
			played = append(played, ev.Segment)
		}
	}
	if len(played) != len(segments) {
		t.Fatalf("played %d segments, want %d: %v", len(played), len(segments), played)
	}
	for i, idx := range played {
		if idx != i {
			t.Fatalf("playback order %v: position %d holds segment %d", played, i, idx)
		}
	}
}

func TestSession_SegmentPayloadRelayed(t *testing.T) {
	s := newTestSession(t, []string{"Only segment."}, &fakeSynth{})

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	events := collectUntil(t, ch, isComplete, 2*time.Second)

	for _, ev := range events {
		if ev.Type == EventSegment {
			if string(ev.Payload) != "Only segment." {
				t.Errorf("segment payload = %q, want synthesized bytes", ev.Payload)
			}
			return
		}
	}
	t.Fatal("no segment event observed")
}

func TestSession_SkipOnErrorStillCompletes(t *testing.T) {
	boom := errors.New("voice service unavailable")
	synth := &fakeSynth{
		fn: func(text string) ([]byte, error) {
			if text == "Bravo." {
				return nil, boom
			}
			return []byte(text), nil
		},
	}
	s := newTestSession(t, []string{"Alpha.", "Bravo.", "Charlie."}, synth)

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	events := collectUntil(t, ch, isComplete, 2*time.Second)

	var played []int
	var errEvents []Event
	for _, ev := range events {
		switch ev.Type {
		case EventSegment:
			played = append(played, ev.Segment)
		case EventError:
			errEvents = append(errEvents, ev)
		}
	}

	if len(errEvents) != 1 {
		t.Fatalf("got %d error events, want exactly 1: %+v", len(errEvents), errEvents)
	}
	if errEvents[0].Segment != 1 {
		t.Errorf("error event segment = %d, want 1", errEvents[0].Segment)
	}
	if len(played) != 2 || played[0] != 0 || played[1] != 2 {
		t.Errorf("played segments = %v, want [0 2]", played)
	}

	snap := s.Snapshot()
	if snap.State != StateComplete {
		t.Errorf("state = %q, want complete", snap.State)
	}
	if len(snap.Errors) != 1 {
		t.Errorf("snapshot errors = %v, want exactly one entry", snap.Errors)
	}
}

func TestSession_StopClearsErrors(t *testing.T) {
	boom := errors.New("voice service unavailable")
	synth := &fakeSynth{
		fn: func(text string) ([]byte, error) {
			if text == "Bravo." {
				return nil, boom
			}
			return []byte(text), nil
		},
	}
	s := newTestSession(t, []string{"Alpha.", "Bravo.", "Charlie."}, synth)

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	collectUntil(t, ch, isComplete, 2*time.Second)

	if snap := s.Snapshot(); len(snap.Errors) != 1 {
		t.Fatalf("errors before Stop = %v, want one entry", snap.Errors)
	}

	s.Stop()
	snap := s.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state after Stop = %q, want idle", snap.State)
	}
	if len(snap.Errors) != 0 {
		t.Errorf("errors after Stop = %v, want none", snap.Errors)
	}
}

func TestSession_CompleteParksPlayheadPastEnd(t *testing.T) {
	s := newTestSession(t, []string{"Alpha.", "Bravo."}, &fakeSynth{})

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	collectUntil(t, ch, isComplete, 2*time.Second)

	snap := s.Snapshot()
	if snap.Segment != snap.Total {
		t.Errorf("segment at completion = %d, want %d", snap.Segment, snap.Total)
	}
}

func TestSession_StopSuppressesAdvancement(t *testing.T) {
	synth := &fakeSynth{}
	s, err := NewSession(SessionConfig{
		Book:      sessionBook,
		Segments:  []string{"Alpha.", "Bravo.", "Charlie."},
		Synth:     synth,
		Player:    &audio.ClockPlayer{}, // real time: 250ms silent clips
		IdleGrace: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Stop)

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())

	// Wait until segment 0 starts playing, then stop mid-segment.
	collectUntil(t, ch, func(ev Event) bool {
		return ev.Type == EventSegment && ev.Segment == 0
	}, 2*time.Second)
	s.Stop()

	if st := s.Snapshot().State; st != StateIdle {
		t.Errorf("state after Stop = %q, want idle", st)
	}

	// No further segment may start: the stopped handle's completion is
	// suppressed and must not advance the sequencer.
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev.Type == EventSegment {
				t.Fatalf("segment %d started after Stop", ev.Segment)
			}
		case <-deadline:
			return
		}
	}
}

func TestSession_RestartBeginsAtZero(t *testing.T) {
	s := newTestSession(t, []string{"Alpha.", "Bravo."}, &fakeSynth{})

	ch, cancel := s.Subscribe()
	defer cancel()

	ctx := context.Background()
	s.Start(ctx)
	collectUntil(t, ch, isComplete, 2*time.Second)

	// Restart after completion and verify playback begins again at segment 0.
	s.Start(ctx)
	events := collectUntil(t, ch, isComplete, 2*time.Second)

	var played []int
	for _, ev := range events {
		if ev.Type == EventSegment {
			played = append(played, ev.Segment)
		}
	}
	if len(played) != 2 || played[0] != 0 || played[1] != 1 {
		t.Errorf("restart played %v, want [0 1]", played)
	}
}

func TestSession_Snapshot(t *testing.T) {
	s := newTestSession(t, []string{"Alpha.", "Bravo."}, &fakeSynth{})

	snap := s.Snapshot()
	if snap.BookID != "entangled-sink" {
		t.Errorf("book id = %q", snap.BookID)
	}
	if snap.State != StateIdle {
		t.Errorf("initial state = %q, want idle", snap.State)
	}
	if snap.Total != 2 {
		t.Errorf("total = %d, want 2", snap.Total)
	}
	if snap.Ambience != "ambience/kitchen" || snap.Music != "music/calm-loop" {
		t.Errorf("media keys not carried: %+v", snap)
	}
}

func TestSession_PrefetchWarmsCache(t *testing.T) {
	synth := &fakeSynth{}
	s := newTestSession(t, []string{"One.", "Two.", "Three."}, synth)

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Start(context.Background())
	collectUntil(t, ch, isComplete, 2*time.Second)

	// All three segments end up cached: segment 0 synchronously, the rest via
	// lookahead or the synchronous fallback.
	if got := s.cache.Len(); got != 3 {
		t.Errorf("cache length after playback = %d, want 3", got)
	}
}
