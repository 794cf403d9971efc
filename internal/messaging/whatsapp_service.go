package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/BTreeMap/CardDesk/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client whatsapp.WhatsAppSender
	source whatsapp.MessageSource // nil when the client cannot receive
	inbox  *inbox
}

var _ Service = (*WhatsAppService)(nil)

// NewWhatsAppService creates a new WhatsAppService wrapping the given sender. When the
// sender also implements whatsapp.MessageSource its inbound messages are subscribed on Start.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	s := &WhatsAppService{client: client, inbox: newInbox()}
	if src, ok := client.(whatsapp.MessageSource); ok {
		s.source = src
	} else {
		slog.Debug("WhatsAppService created with send-only client")
	}
	return s
}

func (s *WhatsAppService) Channel() models.Channel {
	return models.ChannelWhatsApp
}

func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start subscribes to inbound messages.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	id := s.source.OnMessage(s.handleIncomingMessage)
	slog.Debug("WhatsAppService event handler registered", "handlerID", id)
	return nil
}

// Stop closes the inbound channel.
func (s *WhatsAppService) Stop() error {
	s.inbox.close()
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage sends a reply to a canonicalized phone number.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("WhatsAppService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

func (s *WhatsAppService) Inbound() <-chan models.InboundMessage {
	return s.inbox.ch
}

// handleIncomingMessage forwards direct text messages from other users.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	text, ok := whatsapp.ExtractText(evt)
	if !ok {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.User)
		return
	}
	from, err := s.ValidateAndCanonicalizeRecipient(evt.Info.Sender.User)
	if err != nil {
		slog.Warn("WhatsAppService ignoring message from invalid sender", "error", err)
		return
	}
	s.inbox.emit(models.InboundMessage{
		ID:      string(evt.Info.ID),
		Channel: models.ChannelWhatsApp,
		From:    from,
		Body:    text,
		Time:    evt.Info.Timestamp.Unix(),
	})
}
