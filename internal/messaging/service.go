// Package messaging connects chat channels (WhatsApp via whatsmeow, WhatsApp via Twilio)
// to the dispatcher.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/BTreeMap/CardDesk/internal/models"
)

const (
	// DefaultChannelBufferSize defines the buffer size of a service's inbound channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an inbound message waits for buffer space
	DefaultChannelTimeout = 1 * time.Second
	// minPhoneDigits is the shortest accepted canonical phone number.
	minPhoneDigits = 6
)

// ErrServiceStopped is returned by a service after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service is one chat channel: it delivers inbound text messages and sends replies.
type Service interface {
	// Channel names the surface this service serves.
	Channel() models.Channel

	// ValidateAndCanonicalizeRecipient validates a phone number and reduces it to digits.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text reply.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background processing (e.g., event subscriptions).
	Start(ctx context.Context) error

	// Stop stops background processing and closes Inbound.
	Stop() error

	// Inbound returns the channel of received messages.
	Inbound() <-chan models.InboundMessage
}

// canonicalizePhone removes every non-digit and requires at least minPhoneDigits digits.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < minPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, minPhoneDigits)
	}
	return canonical, nil
}

// inbox is a buffered inbound channel that can be closed while producers are still running.
type inbox struct {
	mu      sync.RWMutex
	ch      chan models.InboundMessage
	stopped bool
}

func newInbox() *inbox {
	return &inbox{ch: make(chan models.InboundMessage, DefaultChannelBufferSize)}
}

// emit queues msg, dropping it after DefaultChannelTimeout or once stopped.
func (b *inbox) emit(msg models.InboundMessage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		slog.Warn("messaging inbox dropping message (service stopped)", "channel", msg.Channel, "from", msg.From)
		return false
	}
	select {
	case b.ch <- msg:
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("messaging inbox full, dropping message", "channel", msg.Channel, "from", msg.From, "timeout", DefaultChannelTimeout)
		return false
	}
}

func (b *inbox) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// close stops the inbox. It is safe to call more than once.
func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.ch)
}
