package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BTreeMap/CardDesk/internal/models"
)

type mockConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (m *mockConn) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockConn) Drain() error {
	m.drained = true
	return nil
}

func TestPublisher_RecordTurn(t *testing.T) {
	mc := &mockConn{}
	p := newPublisher(mc, "")
	r := models.TurnReceipt{
		SessionID: "abc",
		Channel:   models.ChannelWhatsApp,
		Utterance: "2109",
		Reply:     "Account verified!",
		Intent:    models.IntentRecovery,
		Time:      42,
	}
	if err := p.RecordTurn(context.Background(), r); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if len(mc.subjects) != 1 || mc.subjects[0] != "carddesk.turns.whatsapp" {
		t.Fatalf("unexpected subjects %v", mc.subjects)
	}
	var ev TurnEvent
	if err := json.Unmarshal(mc.payloads[0], &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	want := TurnEvent{SessionID: "abc", Channel: models.ChannelWhatsApp, Intent: models.IntentRecovery, Time: 42}
	if ev != want {
		t.Errorf("expected %+v, got %+v", want, ev)
	}
	if containsField(mc.payloads[0], "reply") {
		t.Error("event must not carry the reply text")
	}
}

func containsField(data []byte, field string) bool {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}

func TestPublisher_PublishError(t *testing.T) {
	p := newPublisher(&mockConn{err: errors.New("no responders")}, "bank.turns")
	err := p.RecordTurn(context.Background(), models.TurnReceipt{Channel: models.ChannelWeb})
	if err == nil {
		t.Fatal("expected publish error")
	}
}

func TestPublisher_CancelledContext(t *testing.T) {
	mc := &mockConn{}
	p := newPublisher(mc, "bank.turns")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.RecordTurn(ctx, models.TurnReceipt{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(mc.subjects) != 0 {
		t.Error("nothing should be published on a cancelled context")
	}
}

func TestPublisher_Close(t *testing.T) {
	mc := &mockConn{}
	if err := newPublisher(mc, "x").Close(); err != nil || !mc.drained {
		t.Errorf("expected drain on close, err=%v drained=%v", err, mc.drained)
	}
}
