// Package flow defines per-session conversation state for the chat dispatcher.
package flow

import (
	"sync"
	"time"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// Session is one user's conversation: its append-only log and the explicit
// recovery state. A Session is owned by the caller (one per connection or sender)
// and passed into every dispatcher call.
type Session struct {
	ID string

	// turn serializes whole turns so no two requests run against the same log.
	turn sync.Mutex

	mu        sync.RWMutex
	turns     []models.ConversationTurn
	recovery  models.RecoveryState
	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates an empty session in the idle recovery state.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		recovery:  models.RecoveryIdle,
		createdAt: now,
		updatedAt: now,
	}
}

// Turns returns a copy of the conversation log.
func (s *Session) Turns() []models.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// LastReply returns the bot text of the most recent turn, or "" for an empty log.
func (s *Session) LastReply() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return ""
	}
	return s.turns[len(s.turns)-1].Bot
}

// RecoveryState returns the current recovery step.
func (s *Session) RecoveryState() models.RecoveryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recovery
}

// UpdatedAt returns the time of the last change to the session.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *Session) setRecoveryState(state models.RecoveryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovery = state
	s.updatedAt = time.Now()
}

func (s *Session) appendTurn(t models.ConversationTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	s.updatedAt = t.Time
}

// Reset clears the log and returns the session to idle.
func (s *Session) Reset() {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.recovery = models.RecoveryIdle
	s.updatedAt = time.Now()
}
