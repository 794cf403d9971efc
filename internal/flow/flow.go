// filepath: internal/flow/flow.go
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/models"
)

// TurnRecorder receives a receipt for every completed turn (archive, event bus).
// Recorder errors are logged and never affect the reply.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, r models.TurnReceipt) error
}

// TurnRecorderFunc adapts a function to TurnRecorder.
type TurnRecorderFunc func(ctx context.Context, r models.TurnReceipt) error

// RecordTurn calls f.
func (f TurnRecorderFunc) RecordTurn(ctx context.Context, r models.TurnReceipt) error {
	return f(ctx, r)
}

// branch is the handler selected for one turn.
type branch int

const (
	branchRecoveryStart branch = iota
	branchRecoveryValidate
	branchAccount
	branchCardIssue
	branchGeneric
)

// Dependencies holds the collaborators injected into a Dispatcher.
type Dependencies struct {
	Accounts      *accounts.Store
	Responder     Responder
	LLMTimeout    time.Duration
	TurnRecorders []TurnRecorder
}

// Dispatcher turns one utterance into exactly one reply and appends the turn to the session log.
type Dispatcher struct {
	accounts  *accounts.Store
	recovery  *Recovery
	generic   *Generic
	recorders []TurnRecorder
}

// NewDispatcher builds a Dispatcher from its dependencies.
func NewDispatcher(deps Dependencies) *Dispatcher {
	return &Dispatcher{
		accounts:  deps.Accounts,
		recovery:  NewRecovery(deps.Accounts),
		generic:   NewGeneric(deps.Responder, deps.LLMTimeout),
		recorders: deps.TurnRecorders,
	}
}

// route picks the branch from the session's recovery state and the classification.
// While proof is awaited, recovery and generic utterances are treated as proof;
// account and card-issue utterances are served normally and end the dialogue.
func route(state models.RecoveryState, c models.Classification) branch {
	switch c.Intent {
	case models.IntentRecovery:
		if state == models.RecoveryAwaitingProof {
			return branchRecoveryValidate
		}
		return branchRecoveryStart
	case models.IntentAccountSpecific:
		return branchAccount
	case models.IntentCardIssue:
		return branchCardIssue
	default:
		if state == models.RecoveryAwaitingProof {
			return branchRecoveryValidate
		}
		return branchGeneric
	}
}

// HandleMessage processes one utterance for the session and returns the reply.
// Turns on the same session are serialized.
func (d *Dispatcher) HandleMessage(ctx context.Context, s *Session, channel models.Channel, message string) string {
	s.turn.Lock()
	defer s.turn.Unlock()

	utterance := Normalize(message)
	c := Classify(utterance, d.accounts.Keys())
	state := s.RecoveryState()
	b := route(state, c)
	slog.Debug("Dispatcher HandleMessage: routed", "sessionID", s.ID, "channel", channel, "intent", c.Intent, "recovery_state", state, "length", len(utterance))

	intent := c.Intent
	var reply string
	switch b {
	case branchRecoveryStart:
		reply = d.recovery.Start(s)
	case branchRecoveryValidate:
		intent = models.IntentRecovery
		reply = d.recovery.Validate(s, utterance)
	case branchAccount:
		s.setRecoveryState(models.RecoveryIdle)
		reply = HandleAccountQuery(d.accounts, c.AccountNo, utterance)
	case branchCardIssue:
		s.setRecoveryState(models.RecoveryIdle)
		reply = ResolveCardIssue(d.accounts, "")
	default:
		reply = d.generic.Answer(ctx, utterance)
	}

	now := time.Now()
	s.appendTurn(models.ConversationTurn{User: message, Bot: reply, Intent: intent, Time: now})
	d.record(ctx, models.TurnReceipt{
		SessionID: s.ID,
		Channel:   channel,
		Utterance: message,
		Reply:     reply,
		Intent:    intent,
		Time:      now.Unix(),
	})
	return reply
}

func (d *Dispatcher) record(ctx context.Context, r models.TurnReceipt) {
	for _, rec := range d.recorders {
		if err := rec.RecordTurn(ctx, r); err != nil {
			slog.Error("Dispatcher record: turn recorder failed", "error", err, "sessionID", r.SessionID)
		}
	}
}
