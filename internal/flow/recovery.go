package flow

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/models"
)

// minAddressTokenLen is the rune length a token must exceed to count as an address fragment.
const minAddressTokenLen = 3

// ProofChannel names the way a user evidenced ownership of an account.
type ProofChannel string

const (
	ProofPhone   ProofChannel = "phone_last4"
	ProofEmail   ProofChannel = "email"
	ProofPayment ProofChannel = "last_payment"
	ProofAddress ProofChannel = "address_fragment"
)

// Recovery runs the two-step account recovery dialogue. The step lives on the
// Session as an explicit RecoveryState.
type Recovery struct {
	accounts *accounts.Store
}

// NewRecovery creates a Recovery backed by the given account store.
func NewRecovery(st *accounts.Store) *Recovery {
	return &Recovery{accounts: st}
}

// Start shows the identity prompt and moves the session to AwaitingProof.
func (r *Recovery) Start(s *Session) string {
	s.setRecoveryState(models.RecoveryAwaitingProof)
	slog.Debug("Recovery Start: awaiting proof", "sessionID", s.ID)
	return RecoveryPrompt
}

// Validate checks the utterance against every account and returns the masked summary
// on a hit or the retry message otherwise. The session returns to Idle either way.
func (r *Recovery) Validate(s *Session, utterance string) string {
	defer s.setRecoveryState(models.RecoveryIdle)

	acct, channel, ok := r.Match(utterance, s.LastReply())
	if !ok {
		slog.Info("Recovery Validate: no account matched", "sessionID", s.ID)
		return RecoveryRetryMessage
	}
	slog.Info("Recovery Validate: account verified", "sessionID", s.ID, "account_no", acct.AccountNo, "channel", channel)
	return recoverySummary(acct)
}

// Match scans accounts in store order; for each account the proof channels are tried
// in priority order and the first hit across the whole set wins. previousReply gates
// the payment channel: it only applies when the last prompt asked for a payment amount.
func (r *Recovery) Match(utterance, previousReply string) (models.AccountRecord, ProofChannel, bool) {
	msg := strings.TrimSpace(utterance)
	lower := strings.ToLower(msg)
	paymentOffered := strings.Contains(strings.ToLower(previousReply), "payment")
	fourDigits := isFourDigits(msg)
	hasAt := strings.Contains(msg, "@")
	tokens := addressTokens(msg)

	for _, acct := range r.accounts.All() {
		if fourDigits && msg == accounts.LastN(acct.Phone, 4) {
			return acct, ProofPhone, true
		}
		if hasAt && lower == strings.ToLower(acct.Email) {
			return acct, ProofEmail, true
		}
		if paymentOffered && lower == strings.ToLower(acct.LastPayment) {
			return acct, ProofPayment, true
		}
		// Broad heuristic: common words like "road" or "cross" match too.
		address := strings.ToLower(acct.BillingAddress)
		for _, tok := range tokens {
			if strings.Contains(address, tok) {
				return acct, ProofAddress, true
			}
		}
	}
	return models.AccountRecord{}, "", false
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// addressTokens returns the lower-cased whitespace tokens long enough to be address fragments.
func addressTokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) > minAddressTokenLen {
			out = append(out, strings.ToLower(w))
		}
	}
	return out
}
