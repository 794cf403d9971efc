// filepath: internal/flow/genai.go
package flow

import (
	"context"
	"log/slog"
	"time"
)

// DefaultGenericTimeout bounds a single language-model call.
const DefaultGenericTimeout = 20 * time.Second

// Responder is the language-model collaborator: text in, text out, or an error.
// *genai.Client implements it.
type Responder interface {
	GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generic answers unclassified utterances through a Responder, falling back to the
// static assistance text whenever the collaborator is missing or fails.
type Generic struct {
	responder Responder
	timeout   time.Duration
}

// NewGeneric creates a Generic fallback. A nil responder means the collaborator is unavailable.
func NewGeneric(responder Responder, timeout time.Duration) *Generic {
	if timeout <= 0 {
		timeout = DefaultGenericTimeout
	}
	return &Generic{responder: responder, timeout: timeout}
}

// Answer returns the model's reply followed by the assistance footer, or only the
// footer when the collaborator is unavailable. Errors are never propagated.
func (g *Generic) Answer(ctx context.Context, utterance string) string {
	if g == nil || g.responder == nil {
		slog.Debug("Generic Answer: no language model configured, using static fallback")
		return AssistanceFooter
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.responder.GenerateReply(ctx, SystemPreamble, QueryPrefix+utterance)
	if err != nil {
		slog.Error("Generic Answer: language model unavailable, using static fallback", "error", err)
		return AssistanceFooter
	}
	if reply == "" {
		slog.Warn("Generic Answer: language model returned empty reply, using static fallback")
		return AssistanceFooter
	}
	return reply + "\n\n" + AssistanceFooter
}
