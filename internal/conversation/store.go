// Package conversation drives the multi-turn session workflow: query intake,
// search, synthesis, and delivery. The Machine is the sole entry point for
// user turns; the Store keeps live sessions in memory with TTL expiry.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/domain"
)

const (
	// DefaultSessionTTL is how long an idle session is retained.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultSweepInterval is how often expired sessions are purged.
	DefaultSweepInterval = 5 * time.Minute
)

// StoreConfig holds session retention settings.
type StoreConfig struct {
	// SessionTTL is the idle lifetime of a session. Defaults to DefaultSessionTTL.
	SessionTTL time.Duration
	// SweepInterval is how often the sweeper runs. Defaults to DefaultSweepInterval.
	SweepInterval time.Duration
}

// applyDefaults applies default values to the config.
func (c *StoreConfig) applyDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// entry wraps a stored session with its turn lock and last-activity time.
// The lock serializes turns within one session; sessions never share state,
// so no lock spans more than one entry.
type entry struct {
	mu       sync.Mutex
	session  *domain.Session
	lastSeen time.Time
}

// Store is an in-memory session store with TTL expiry.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
	config   StoreConfig
	logger   zerolog.Logger
}

// NewStore creates an empty Store.
func NewStore(cfg StoreConfig, logger zerolog.Logger) *Store {
	cfg.applyDefaults()
	return &Store{
		sessions: make(map[uuid.UUID]*entry),
		config:   cfg,
		logger:   logger.With().Str("component", "session_store").Logger(),
	}
}

// Create creates and stores a new session in the AwaitingQuery state.
func (s *Store) Create() *domain.Session {
	session := domain.NewSession()

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, lastSeen: time.Now()}
	s.mu.Unlock()

	return session
}

// Get returns a point-in-time copy of the session with the given ID. The
// copy is taken under the session's turn lock, so a read never observes a
// half-applied turn and callers need no further locking. Slice and pointer
// fields are shared with the live session; turns replace them wholesale
// rather than mutating them in place.
// Returns domain.ErrSessionNotFound for unknown or expired IDs.
func (s *Store) Get(id uuid.UUID) (*domain.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	e.mu.Lock()
	snapshot := *e.session
	e.mu.Unlock()
	return &snapshot, nil
}

// Acquire locks the session for one turn and returns it together with the
// release function. Turns within a session are serialized through this lock;
// callers must invoke release when the turn completes.
func (s *Store) Acquire(id uuid.UUID) (*domain.Session, func(), error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	e.mu.Lock()
	e.lastSeen = time.Now()
	return e.session, func() { e.mu.Unlock() }, nil
}

// Delete removes the session. Removing an unknown ID is a no-op.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run sweeps expired sessions until the context is cancelled. Intended to be
// run as a goroutine alongside the server.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes sessions idle longer than the TTL. Terminal sessions use the
// same TTL; they stay queryable until it elapses.
func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.config.SessionTTL)

	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug().
			Int("removed", removed).
			Int("remaining", remaining).
			Msg("expired sessions swept")
	}
}
