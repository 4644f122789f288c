package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/observe"
	"github.com/elfinch/waveform/pkg/audio"
)

// ErrSessionNotFound is returned when a session ID does not resolve.
var ErrSessionNotFound = fmt.Errorf("narrate: session not found")

// ManagerConfig assembles a [Manager].
type ManagerConfig struct {
	Synth  Synthesizer
	Player audio.Player

	// PrefetchAhead is passed through to new sessions.
	PrefetchAhead int

	// IdleGrace is passed through to new sessions.
	IdleGrace time.Duration

	// Metrics overrides the metrics sink. Nil means [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Manager owns all live narration sessions. Each session gets a UUID; at most
// one session is active per book, so starting narration for a book that is
// already playing tears the old session down first.
type Manager struct {
	synth         Synthesizer
	player        audio.Player
	prefetchAhead int
	idleGrace     time.Duration
	metrics       *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	byBook   map[string]string
}

// NewManager returns a manager with no active sessions.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Synth == nil {
		return nil, fmt.Errorf("narrate: manager needs a synthesizer")
	}
	if cfg.Player == nil {
		return nil, fmt.Errorf("narrate: manager needs a player")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Manager{
		synth:         cfg.Synth,
		player:        cfg.Player,
		prefetchAhead: cfg.PrefetchAhead,
		idleGrace:     cfg.IdleGrace,
		metrics:       metrics,
		sessions:      make(map[string]*Session),
		byBook:        make(map[string]string),
	}, nil
}

// Start segments the script, creates a session for book, and begins playback.
// It returns the new session's ID. An existing session for the same book is
// stopped and removed first.
func (m *Manager) Start(ctx context.Context, book catalog.Book, script string) (string, *Session, error) {
	segments := Segment(script)
	if len(segments) == 0 {
		return "", nil, fmt.Errorf("narrate: script for book %q has no segments", book.ID)
	}

	s, err := NewSession(SessionConfig{
		Book:          book,
		Segments:      segments,
		Synth:         m.synth,
		Player:        m.player,
		PrefetchAhead: m.prefetchAhead,
		IdleGrace:     m.idleGrace,
		Metrics:       m.metrics,
	})
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()

	m.mu.Lock()
	if oldID, ok := m.byBook[book.ID]; ok {
		if old := m.sessions[oldID]; old != nil {
			old.Stop()
			m.metrics.ActiveSessions.Add(ctx, -1)
		}
		delete(m.sessions, oldID)
	}
	m.sessions[id] = s
	m.byBook[book.ID] = id
	m.metrics.ActiveSessions.Add(ctx, 1)
	m.mu.Unlock()

	slog.Info("narration session started",
		"session", id,
		"book", book.ID,
		"segments", len(segments),
	)

	s.Start(ctx)
	return id, s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s, nil
}

// Stop halts and removes the session with the given ID.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if cur, found := m.byBook[s.book.ID]; found && cur == id {
			delete(m.byBook, s.book.ID)
		}
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}

	s.Stop()
	m.metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("narration session stopped", "session", id, "book", s.book.ID)
	return nil
}

// StopAll halts and removes every session. Used during server shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.byBook = make(map[string]string)
	m.mu.Unlock()

	for id, s := range sessions {
		s.Stop()
		m.metrics.ActiveSessions.Add(ctx, -1)
		slog.Debug("narration session stopped", "session", id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
