// Package models defines conversation state structures for CardDesk sessions.
package models

import "time"

// Intent is the routing decision made for one utterance.
type Intent string

const (
	IntentRecovery        Intent = "recovery"
	IntentAccountSpecific Intent = "account_specific"
	IntentCardIssue       Intent = "card_issue"
	IntentGeneric         Intent = "generic"
)

// Classification is the transient result of classifying an utterance.
// AccountNo is only set for IntentAccountSpecific.
type Classification struct {
	Intent    Intent `json:"intent"`
	AccountNo string `json:"account_no,omitempty"`
}

// RecoveryState is the explicit step of the account-recovery dialogue for a session.
type RecoveryState string

const (
	// RecoveryIdle means no recovery dialogue is in progress.
	RecoveryIdle RecoveryState = "idle"
	// RecoveryAwaitingProof means the identity prompt was shown and the next utterance is proof.
	RecoveryAwaitingProof RecoveryState = "awaiting_proof"
)

// ConversationTurn is one completed (utterance, reply) exchange.
type ConversationTurn struct {
	User   string    `json:"user"`
	Bot    string    `json:"bot"`
	Intent Intent    `json:"intent"`
	Time   time.Time `json:"time"`
}

// Channel identifies the surface a turn arrived on.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTwilio   Channel = "twilio"
)

// TurnReceipt is the audit record of a completed turn. It is written to the archive
// and published as an event; it is never read back into a session.
type TurnReceipt struct {
	SessionID string  `json:"session_id"`
	Channel   Channel `json:"channel"`
	Utterance string  `json:"utterance"`
	Reply     string  `json:"reply"`
	Intent    Intent  `json:"intent"`
	Time      int64   `json:"time"`
}

// InboundMessage is a text message received on a messaging channel.
// ID is the channel's own message identifier and is used for deduplication.
type InboundMessage struct {
	ID      string  `json:"id"`
	Channel Channel `json:"channel"`
	From    string  `json:"from"`
	Body    string  `json:"body"`
	Time    int64   `json:"time"`
}

// SessionKey returns the session identifier for the sender on this channel.
func (m InboundMessage) SessionKey() string {
	return string(m.Channel) + ":" + m.From
}
