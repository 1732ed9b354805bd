package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memorySweepInterval bounds how often Put scans for expired sessions.
const memorySweepInterval = time.Minute

// MemorySession implements SessionScope in process memory. Like a Redis
// hash, a session expires as a whole once its ttl passes without a Put that
// refreshes it. Expired sessions are dropped on access and by a sweep that
// runs from Put.
type MemorySession struct {
	mu        sync.Mutex
	sessions  map[string]*memorySession
	now       func() time.Time
	lastSweep time.Time
}

type memorySession struct {
	entries map[string][]byte
	expires time.Time
}

// NewMemorySession creates an empty in-memory session scope.
func NewMemorySession() *MemorySession {
	return &MemorySession{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

// sessionLocked returns the live session, dropping it when expired.
func (m *MemorySession) sessionLocked(sessionID string) (*memorySession, bool) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if !s.expires.IsZero() && !m.now().Before(s.expires) {
		delete(m.sessions, sessionID)
		return nil, false
	}
	return s, true
}

func (m *MemorySession) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < memorySweepInterval {
		return
	}
	m.lastSweep = now
	for id, s := range m.sessions {
		if len(s.entries) == 0 || (!s.expires.IsZero() && !now.Before(s.expires)) {
			delete(m.sessions, id)
		}
	}
}

// Get returns the stored value for key in the session.
func (m *MemorySession) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessionLocked(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores value under key. A positive ttl restarts the session expiry.
func (m *MemorySession) Put(ctx context.Context, sessionID, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)

	s, ok := m.sessionLocked(sessionID)
	if !ok {
		s = &memorySession{entries: make(map[string][]byte)}
		m.sessions[sessionID] = s
	}
	s.entries[key] = append([]byte(nil), value...)
	if ttl > 0 {
		s.expires = now.Add(ttl)
	}
	return nil
}

// Delete removes keys from the session. A session left empty is dropped.
func (m *MemorySession) Delete(ctx context.Context, sessionID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessionLocked(sessionID)
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	if len(s.entries) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}

// Keys lists the keys of the session in sorted order.
func (m *MemorySession) Keys(ctx context.Context, sessionID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessionLocked(sessionID)
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len reports the number of sessions held, expired or not.
func (m *MemorySession) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

var _ SessionScope = (*MemorySession)(nil)
