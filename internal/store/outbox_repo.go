package store

import (
	"time"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// OutboxStatus is the lifecycle state of a queued channel reply.
type OutboxStatus string

const (
	OutboxStatusQueued   OutboxStatus = "queued"
	OutboxStatusSending  OutboxStatus = "sending"
	OutboxStatusSent     OutboxStatus = "sent"
	OutboxStatusFailed   OutboxStatus = "failed"
	OutboxStatusCanceled OutboxStatus = "canceled"
)

func (s OutboxStatus) terminal() bool {
	return s == OutboxStatusSent || s == OutboxStatusCanceled
}

// OutboxMessage is a channel reply waiting for delivery.
type OutboxMessage struct {
	ID            string         `json:"id"`
	Channel       models.Channel `json:"channel"`
	Recipient     string         `json:"recipient"`
	Body          string         `json:"body"`
	Status        OutboxStatus   `json:"status"`
	Attempts      int            `json:"attempts"`
	NextAttemptAt *time.Time     `json:"next_attempt_at"`
	DedupeKey     string         `json:"dedupe_key"`
	LockedAt      *time.Time     `json:"locked_at"`
	LastError     string         `json:"last_error"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OutboxRepo persists channel replies until they are delivered.
type OutboxRepo interface {
	// EnqueueOutboxMessage inserts a reply. If dedupeKey is non-empty and a non-terminal
	// message with that key exists, the existing ID is returned.
	EnqueueOutboxMessage(channel models.Channel, recipient, body, dedupeKey string) (string, error)

	// ClaimDueOutboxMessages marks up to limit queued messages whose next_attempt_at
	// is due (or unset) as sending and returns them, oldest first.
	ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error)

	MarkOutboxMessageSent(id string) error

	// FailOutboxMessage records a send failure and schedules a retry at nextAttemptAt.
	// A zero nextAttemptAt marks the message failed for good.
	FailOutboxMessage(id, errMsg string, nextAttemptAt time.Time) error

	// RequeueStaleSendingMessages resets messages stuck in sending since before
	// staleBefore back to queued.
	RequeueStaleSendingMessages(staleBefore time.Time) (int, error)
}
