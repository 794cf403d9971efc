package flow

import (
	"testing"
	"time"

	"github.com/BTreeMap/CardDesk/internal/models"
)

func TestSessionManager_GetCreatesOnce(t *testing.T) {
	m := NewSessionManager()
	a := m.Get("x")
	b := m.Get("x")
	if a != b {
		t.Error("expected the same session for the same id")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 session, got %d", m.Len())
	}
	if _, ok := m.Lookup("y"); ok {
		t.Error("Lookup should not create sessions")
	}
}

func TestSessionManager_Reset(t *testing.T) {
	m := NewSessionManager()
	s := m.Get("x")
	s.appendTurn(models.ConversationTurn{User: "hi", Bot: "hello", Time: time.Now()})
	s.setRecoveryState(models.RecoveryAwaitingProof)

	m.Reset("x")
	m.Reset("unknown")

	if len(s.Turns()) != 0 {
		t.Error("expected empty log after reset")
	}
	if s.RecoveryState() != models.RecoveryIdle {
		t.Errorf("expected idle after reset, got %q", s.RecoveryState())
	}
	if s.LastReply() != "" {
		t.Errorf("expected no last reply, got %q", s.LastReply())
	}
}

func TestSessionManager_Prune(t *testing.T) {
	m := NewSessionManager()
	old := m.Get("old")
	old.mu.Lock()
	old.updatedAt = time.Now().Add(-2 * time.Hour)
	old.mu.Unlock()
	m.Get("fresh")

	if removed := m.Prune(time.Hour); removed != 1 {
		t.Errorf("expected 1 pruned session, got %d", removed)
	}
	if _, ok := m.Lookup("old"); ok {
		t.Error("old session should be gone")
	}
	if _, ok := m.Lookup("fresh"); !ok {
		t.Error("fresh session should remain")
	}
}

func TestSession_TurnsIsCopy(t *testing.T) {
	s := NewSession("x")
	s.appendTurn(models.ConversationTurn{User: "a", Bot: "b"})
	turns := s.Turns()
	turns[0].Bot = "mutated"
	if s.LastReply() != "b" {
		t.Error("Turns must return a copy")
	}
}
