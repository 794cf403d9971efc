package flow

import (
	"strings"
	"testing"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/models"
)

func TestRecovery_Start(t *testing.T) {
	r := NewRecovery(accounts.NewSeedStore())
	s := NewSession("s1")
	for i := 0; i < 2; i++ {
		if got := r.Start(s); got != RecoveryPrompt {
			t.Fatalf("expected recovery prompt, got %q", got)
		}
		if s.RecoveryState() != models.RecoveryAwaitingProof {
			t.Fatalf("expected awaiting proof, got %q", s.RecoveryState())
		}
	}
}

func TestRecovery_Match(t *testing.T) {
	r := NewRecovery(accounts.NewSeedStore())
	tests := []struct {
		name      string
		utterance string
		previous  string
		account   string
		channel   ProofChannel
		ok        bool
	}{
		{"phone suffix priya", "2109", RecoveryPrompt, "9876543210", ProofPhone, true},
		{"phone suffix rahul", "3210", RecoveryPrompt, "1234567890", ProofPhone, true},
		{"email", "priya.patel@example.com", RecoveryPrompt, "9876543210", ProofEmail, true},
		{"email case-insensitive", "AMIT.VERMA@example.com", RecoveryPrompt, "1122334455", ProofEmail, true},
		{"payment", "₹22,500", RecoveryPrompt, "9876543210", ProofPayment, true},
		{"payment needs prompt", "₹22,500", "hello", "", "", false},
		{"address fragment", "koramangala", RecoveryPrompt, "9876543210", ProofAddress, true},
		{"address fragment mixed case", "somewhere in Hyderabad", RecoveryPrompt, "1122334455", ProofAddress, true},
		{"short tokens ignored", "mg 12", RecoveryPrompt, "", "", false},
		{"five digits", "32109", RecoveryPrompt, "", "", false},
		{"no match", "nothing useful", RecoveryPrompt, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, ch, ok := r.Match(tt.utterance, tt.previous)
			if ok != tt.ok {
				t.Fatalf("ok: expected %v, got %v", tt.ok, ok)
			}
			if acct.AccountNo != tt.account || ch != tt.channel {
				t.Errorf("expected %s/%s, got %s/%s", tt.account, tt.channel, acct.AccountNo, ch)
			}
		})
	}
}

func TestRecovery_ValidateSuccess(t *testing.T) {
	r := NewRecovery(accounts.NewSeedStore())
	s := NewSession("s1")
	s.appendTurn(models.ConversationTurn{User: "forgot", Bot: r.Start(s)})

	got := r.Validate(s, "2109")
	for _, want := range []string{
		"Account verified!",
		"👤 Name: Priya Patel",
		"💳 Card: ****-****-****-6789",
		"📱 Phone: *******109",
		"📧 Email: priya.patel@example.com",
		"🏠 Billing Address: 45/A, Koramangala, Bangalore",
		"Your HDFC Regalia Gold is currently blocked.",
		"Last payment: ₹22,500 (Due: 5th monthly)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "4024-0071-2345-6789") || strings.Contains(got, "8765432109") {
		t.Error("summary leaked an unmasked card or phone number")
	}
	if s.RecoveryState() != models.RecoveryIdle {
		t.Errorf("expected idle after validation, got %q", s.RecoveryState())
	}
}

func TestRecovery_ValidateMismatch(t *testing.T) {
	r := NewRecovery(accounts.NewSeedStore())
	s := NewSession("s1")
	s.appendTurn(models.ConversationTurn{User: "forgot", Bot: r.Start(s)})

	if got := r.Validate(s, "0000"); got != RecoveryRetryMessage {
		t.Errorf("expected retry message, got %q", got)
	}
	if s.RecoveryState() != models.RecoveryIdle {
		t.Errorf("expected idle after mismatch, got %q", s.RecoveryState())
	}
}
