package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/BTreeMap/CardDesk/internal/twiliowhatsapp"
)

// emptyTwiML acknowledges a webhook without an inline reply; replies go out over REST.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// TwilioService implements Service using the Twilio REST API and inbound webhooks.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	validator *twiliowhatsapp.Validator // nil disables signature checks
	inbox     *inbox
}

var _ Service = (*TwilioService)(nil)

// NewTwilioService creates a TwilioService. A nil validator accepts unsigned webhooks.
func NewTwilioService(client twiliowhatsapp.Sender, validator *twiliowhatsapp.Validator) *TwilioService {
	if validator == nil {
		slog.Warn("TwilioService created without webhook signature validation")
	}
	return &TwilioService{client: client, validator: validator, inbox: newInbox()}
}

func (s *TwilioService) Channel() models.Channel {
	return models.ChannelTwilio
}

// ValidateAndCanonicalizeRecipient accepts "whatsapp:+<digits>" or a bare phone number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(twiliowhatsapp.StripAddress(recipient))
}

// Start is a no-op; inbound messages arrive through WebhookHandler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

func (s *TwilioService) Stop() error {
	s.inbox.close()
	slog.Info("TwilioService stopped")
	return nil
}

func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

func (s *TwilioService) Inbound() <-chan models.InboundMessage {
	return s.inbox.ch
}

// WebhookHandler handles inbound Twilio WhatsApp webhooks. It verifies the signature,
// queues the message and answers with empty TwiML.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validator.ValidateRequest(r) {
		slog.Warn("Twilio webhook signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Twilio webhook invalid sender", "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", canonicalFrom, "body_length", len(body))
	if !s.inbox.emit(models.InboundMessage{
		ID:      r.PostFormValue("MessageSid"),
		Channel: models.ChannelTwilio,
		From:    canonicalFrom,
		Body:    body,
		Time:    time.Now().Unix(),
	}) {
		// Twilio retries on 5xx.
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}
