package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/BTreeMap/CardDesk/internal/testutil"
)

func newTestDispatcher(responder Responder, recorders ...TurnRecorder) *Dispatcher {
	return NewDispatcher(Dependencies{
		Accounts:      accounts.NewSeedStore(),
		Responder:     responder,
		TurnRecorders: recorders,
	})
}

func TestDispatcher_RecoveryByPhoneSuffix(t *testing.T) {
	d := newTestDispatcher(nil)
	s := NewSession("s1")
	ctx := context.Background()

	if got := d.HandleMessage(ctx, s, models.ChannelWeb, "I forgot my card details"); got != RecoveryPrompt {
		t.Fatalf("expected recovery prompt, got %q", got)
	}
	got := d.HandleMessage(ctx, s, models.ChannelWeb, "2109")
	if !strings.Contains(got, "Priya Patel") || !strings.Contains(got, "****-****-****-6789") || !strings.Contains(got, "*******109") {
		t.Errorf("expected Priya's masked summary, got %q", got)
	}

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].User != "I forgot my card details" || turns[0].Bot != RecoveryPrompt {
		t.Errorf("unexpected first turn %+v", turns[0])
	}
	if turns[1].Intent != models.IntentRecovery {
		t.Errorf("expected validation turn to carry recovery intent, got %q", turns[1].Intent)
	}
	if s.RecoveryState() != models.RecoveryIdle {
		t.Errorf("expected idle, got %q", s.RecoveryState())
	}
}

func TestDispatcher_RecoveryProofChannels(t *testing.T) {
	tests := []struct {
		proof string
		name  string
	}{
		{"3210", "Rahul Sharma"},
		{"priya.patel@example.com", "Priya Patel"},
		{"₹22,500", "Priya Patel"},
		{"Koramangala", "Priya Patel"},
		{"9th Cross, Hyderabad", "Amit Verma"},
	}
	for _, tt := range tests {
		t.Run(tt.proof, func(t *testing.T) {
			d := newTestDispatcher(nil)
			s := NewSession("s")
			d.HandleMessage(context.Background(), s, models.ChannelWeb, "please help me recover my account")
			got := d.HandleMessage(context.Background(), s, models.ChannelWeb, tt.proof)
			if !strings.Contains(got, "👤 Name: "+tt.name) {
				t.Errorf("expected %s, got %q", tt.name, got)
			}
		})
	}
}

func TestDispatcher_RecoveryMismatchThenRestart(t *testing.T) {
	d := newTestDispatcher(testutil.NewFakeResponder("unused"))
	s := NewSession("s1")
	ctx := context.Background()

	d.HandleMessage(ctx, s, models.ChannelWeb, "forgot")
	if got := d.HandleMessage(ctx, s, models.ChannelWeb, "0000"); got != RecoveryRetryMessage {
		t.Fatalf("expected retry message, got %q", got)
	}
	if s.RecoveryState() != models.RecoveryIdle {
		t.Fatalf("expected idle after mismatch, got %q", s.RecoveryState())
	}
	// Back in idle, a repeated recovery utterance restarts the dialogue.
	if got := d.HandleMessage(ctx, s, models.ChannelWeb, "forgot"); got != RecoveryPrompt {
		t.Errorf("expected recovery prompt again, got %q", got)
	}
}

func TestDispatcher_RepeatedRecoveryUtterance(t *testing.T) {
	d := newTestDispatcher(nil)
	s := NewSession("s1")
	ctx := context.Background()
	want := []string{RecoveryPrompt, RecoveryRetryMessage, RecoveryPrompt}
	for i, w := range want {
		if got := d.HandleMessage(ctx, s, models.ChannelWeb, "lost card"); got != w {
			t.Fatalf("turn %d: expected %q, got %q", i, w, got)
		}
	}
	if s.RecoveryState() != models.RecoveryAwaitingProof {
		t.Errorf("expected awaiting proof, got %q", s.RecoveryState())
	}
}

func TestDispatcher_AccountQueryEndsRecovery(t *testing.T) {
	d := newTestDispatcher(nil)
	s := NewSession("s1")
	ctx := context.Background()

	d.HandleMessage(ctx, s, models.ChannelWeb, "forgot")
	got := d.HandleMessage(ctx, s, models.ChannelWeb, "my card is blocked 1234567890")
	if got != CardActiveMessage {
		t.Errorf("expected active-card message, got %q", got)
	}
	if s.RecoveryState() != models.RecoveryIdle {
		t.Errorf("expected idle, got %q", s.RecoveryState())
	}
}

func TestDispatcher_CardIssueWithoutAccount(t *testing.T) {
	d := newTestDispatcher(nil)
	got := d.HandleMessage(context.Background(), NewSession("s"), models.ChannelWeb, "My transaction failed")
	if got != CardAssistancePrompt {
		t.Errorf("expected card assistance prompt, got %q", got)
	}
}

func TestDispatcher_GenericFallback(t *testing.T) {
	failing := testutil.NewFailingResponder()
	d := newTestDispatcher(failing)
	got := d.HandleMessage(context.Background(), NewSession("s"), models.ChannelWeb, "What are FD rates?")
	if got != AssistanceFooter {
		t.Errorf("expected exact assistance footer, got %q", got)
	}
	if failing.Calls != 1 {
		t.Errorf("expected one responder call, got %d", failing.Calls)
	}

	d = newTestDispatcher(nil)
	if got := d.HandleMessage(context.Background(), NewSession("s"), models.ChannelWeb, "hello"); got != AssistanceFooter {
		t.Errorf("expected footer without responder, got %q", got)
	}
}

func TestDispatcher_GenericSuccess(t *testing.T) {
	fake := testutil.NewFakeResponder("FD rates start at 3%.")
	d := newTestDispatcher(fake)
	got := d.HandleMessage(context.Background(), NewSession("s"), models.ChannelWeb, "  What are FD rates?  ")
	if want := "FD rates start at 3%.\n\n" + AssistanceFooter; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if fake.LastSystem != SystemPreamble {
		t.Errorf("unexpected system prompt %q", fake.LastSystem)
	}
	if fake.LastUser != "HDFC Query: what are fd rates?" {
		t.Errorf("unexpected user prompt %q", fake.LastUser)
	}
	if !fake.HadDeadline {
		t.Error("expected the language model call to carry a deadline")
	}
}

func TestDispatcher_Deterministic(t *testing.T) {
	script := []string{"forgot my details", "2109", "1122334455", "card declined", "balance 9876543210"}
	run := func() []string {
		d := newTestDispatcher(nil)
		s := NewSession("s")
		var out []string
		for _, m := range script {
			out = append(out, d.HandleMessage(context.Background(), s, models.ChannelWeb, m))
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("turn %d differs between runs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestDispatcher_Recorders(t *testing.T) {
	var mu sync.Mutex
	var got []models.TurnReceipt
	ok := TurnRecorderFunc(func(_ context.Context, r models.TurnReceipt) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r)
		return nil
	})
	broken := TurnRecorderFunc(func(context.Context, models.TurnReceipt) error {
		return errors.New("archive down")
	})
	d := newTestDispatcher(nil, broken, ok)

	reply := d.HandleMessage(context.Background(), NewSession("abc"), models.ChannelWhatsApp, "1234567890")
	if !strings.HasPrefix(reply, "Thank you, Rahul Sharma.") {
		t.Fatalf("recorder failure changed the reply: %q", reply)
	}
	if len(got) != 1 {
		t.Fatalf("expected one receipt, got %d", len(got))
	}
	r := got[0]
	if r.SessionID != "abc" || r.Channel != models.ChannelWhatsApp || r.Intent != models.IntentAccountSpecific || r.Reply != reply || r.Utterance != "1234567890" {
		t.Errorf("unexpected receipt %+v", r)
	}
}

func TestDispatcher_ConcurrentSessions(t *testing.T) {
	d := newTestDispatcher(nil)
	m := NewSessionManager()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := m.Get(fmt.Sprintf("s%d", i))
			d.HandleMessage(context.Background(), s, models.ChannelWeb, "forgot")
			d.HandleMessage(context.Background(), s, models.ChannelWeb, "2109")
		}(i)
	}
	wg.Wait()
	for i := 0; i < 20; i++ {
		s, ok := m.Lookup(fmt.Sprintf("s%d", i))
		if !ok {
			t.Fatalf("session s%d missing", i)
		}
		turns := s.Turns()
		if len(turns) != 2 || !strings.Contains(turns[1].Bot, "Priya Patel") {
			t.Errorf("session s%d interleaved: %+v", i, turns)
		}
	}
}
