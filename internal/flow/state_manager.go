// filepath: internal/flow/state_manager.go
package flow

import (
	"log/slog"
	"sync"
	"time"
)

// SessionManager holds one Session per session ID. Sessions live in process memory only.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager() *SessionManager {
	slog.Debug("Creating SessionManager")
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(id)
		m.sessions[id] = s
		slog.Debug("SessionManager Get created session", "sessionID", id, "active", len(m.sessions))
	}
	return s
}

// Lookup returns the session for id without creating one.
func (m *SessionManager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Reset clears the session's log and recovery state. Unknown ids are ignored.
func (m *SessionManager) Reset(id string) {
	s, ok := m.Lookup(id)
	if !ok {
		slog.Debug("SessionManager Reset unknown session", "sessionID", id)
		return
	}
	s.Reset()
	slog.Info("SessionManager Reset succeeded", "sessionID", id)
}

// Prune drops sessions idle for longer than maxIdle and returns how many were removed.
func (m *SessionManager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.UpdatedAt().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("SessionManager Prune removed idle sessions", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
