package session

import (
	"context"
	"sync"
	"time"

	"ceaiinsights/internal"

	"github.com/google/uuid"
)

// Store keeps sessions in memory keyed by id and evicts idle ones
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *internal.Logger
}

// NewStore creates a store evicting sessions idle for longer than ttl
func NewStore(ttl time.Duration, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.Named("SessionStore"),
	}
}

// Create registers a new empty session
func (st *Store) Create() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := newSession(uuid.New(), st.now())
	st.sessions[s.ID] = s
	return s
}

// Get returns the session for id and marks it as used
func (st *Store) Get(id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()

	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// GetOrCreate resolves a cookie value to a session, creating a fresh one when
// the value is missing, malformed or expired.
func (st *Store) GetOrCreate(raw string) (*Session, bool) {
	if id, err := uuid.Parse(raw); err == nil {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts idle sessions and returns how many were removed. Sessions with
// an analysis running are kept.
func (st *Store) Sweep() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		idle, analyzing := s.idleSince(now)
		if analyzing || idle <= st.ttl {
			continue
		}
		delete(st.sessions, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st.logger.Debug("Janitor stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.logger.Info("Evicted %d idle sessions (%d remaining)", n, st.Len())
			}
		}
	}
}
