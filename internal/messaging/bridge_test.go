package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/flow"
	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/BTreeMap/CardDesk/internal/store"
	"github.com/BTreeMap/CardDesk/internal/twiliowhatsapp"
	"github.com/BTreeMap/CardDesk/internal/whatsapp"
)

func newTestBridge(t *testing.T) (*Bridge, *store.InMemoryStore, *flow.SessionManager) {
	t.Helper()
	st := store.NewInMemoryStore()
	sessions := flow.NewSessionManager()
	d := flow.NewDispatcher(flow.Dependencies{Accounts: accounts.NewSeedStore()})
	return NewBridge(d, sessions, st), st, sessions
}

func TestBridge_RecoveryOverWhatsApp(t *testing.T) {
	b, st, sessions := newTestBridge(t)
	wa := whatsapp.NewMockClient()
	b.Register(NewWhatsAppService(wa))
	ctx := context.Background()

	for i, body := range []string{"I forgot my card details", "2109"} {
		msg := models.InboundMessage{ID: string(rune('A' + i)), Channel: models.ChannelWhatsApp, From: "919876543210", Body: body}
		if err := b.HandleInbound(ctx, msg); err != nil {
			t.Fatalf("HandleInbound: %v", err)
		}
	}

	s, ok := sessions.Lookup("whatsapp:919876543210")
	if !ok {
		t.Fatal("expected a session keyed by channel and sender")
	}
	if len(s.Turns()) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(s.Turns()))
	}

	sender := store.NewOutboxSender(st, b.Deliver, time.Second)
	sender.Poll(ctx)
	if len(wa.SentMessages) != 2 {
		t.Fatalf("expected 2 replies delivered, got %d", len(wa.SentMessages))
	}
	var bodies []string
	for _, m := range wa.SentMessages {
		bodies = append(bodies, m.Body)
	}
	joined := strings.Join(bodies, "\n---\n")
	if !strings.Contains(joined, flow.RecoveryPrompt) || !strings.Contains(joined, "Priya Patel") {
		t.Errorf("unexpected replies:\n%s", joined)
	}
}

func TestBridge_DuplicateSkipped(t *testing.T) {
	b, st, sessions := newTestBridge(t)
	ctx := context.Background()
	msg := models.InboundMessage{ID: "SM1", Channel: models.ChannelTwilio, From: "919876543210", Body: "hello"}

	if err := b.HandleInbound(ctx, msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if err := b.HandleInbound(ctx, msg); err != nil {
		t.Fatalf("HandleInbound duplicate: %v", err)
	}
	s, _ := sessions.Lookup("twilio:919876543210")
	if len(s.Turns()) != 1 {
		t.Errorf("duplicate was dispatched: %d turns", len(s.Turns()))
	}
	msgs, _ := st.ClaimDueOutboxMessages(time.Now(), 10)
	if len(msgs) != 1 {
		t.Errorf("expected one queued reply, got %d", len(msgs))
	}
}

func TestBridge_SeparateSessionsPerChannel(t *testing.T) {
	b, _, sessions := newTestBridge(t)
	ctx := context.Background()
	b.HandleInbound(ctx, models.InboundMessage{Channel: models.ChannelWhatsApp, From: "919876543210", Body: "forgot"})
	b.HandleInbound(ctx, models.InboundMessage{Channel: models.ChannelTwilio, From: "919876543210", Body: "2109"})

	tw, _ := sessions.Lookup("twilio:919876543210")
	if got := tw.Turns()[0].Bot; !strings.HasPrefix(got, "For immediate help:") {
		t.Errorf("twilio session should not see the whatsapp recovery state, got %q", got)
	}
}

func TestBridge_DeliverUnknownChannel(t *testing.T) {
	b, _, _ := newTestBridge(t)
	err := b.Deliver(context.Background(), store.OutboxMessage{Channel: models.ChannelWhatsApp, Recipient: "919876543210", Body: "x"})
	if err == nil {
		t.Error("expected error without a registered service")
	}
}

func TestBridge_StartConsumesInbound(t *testing.T) {
	b, _, sessions := newTestBridge(t)
	tw := NewTwilioService(twiliowhatsapp.NewMockClient(), nil)
	b.Register(tw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tw.inbox.emit(models.InboundMessage{ID: "SM9", Channel: models.ChannelTwilio, From: "918765432109", Body: "1234567890"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := sessions.Lookup("twilio:918765432109"); ok && len(s.Turns()) == 1 {
			b.Stop()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("inbound message was not consumed")
}
