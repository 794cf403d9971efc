package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/CardDesk/internal/flow"
	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/BTreeMap/CardDesk/internal/store"
)

// BridgeStore is the persistence the bridge needs: inbound dedup and the reply outbox.
type BridgeStore interface {
	store.DedupRepo
	store.OutboxRepo
}

// Bridge feeds inbound channel messages to the dispatcher, one session per
// channel and sender, and queues each reply in the outbox for delivery.
type Bridge struct {
	dispatcher *flow.Dispatcher
	sessions   *flow.SessionManager
	store      BridgeStore

	mu       sync.RWMutex
	services map[models.Channel]Service
}

// NewBridge creates a Bridge. Sessions are shared with the HTTP surface so resets and
// pruning apply to channel sessions too.
func NewBridge(dispatcher *flow.Dispatcher, sessions *flow.SessionManager, st BridgeStore) *Bridge {
	return &Bridge{
		dispatcher: dispatcher,
		sessions:   sessions,
		store:      st,
		services:   make(map[models.Channel]Service),
	}
}

// Register adds a channel service. A later registration for the same channel replaces the earlier one.
func (b *Bridge) Register(svc Service) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services[svc.Channel()] = svc
	slog.Debug("Bridge Register: service registered", "channel", svc.Channel())
}

func (b *Bridge) service(channel models.Channel) (Service, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	svc, ok := b.services[channel]
	return svc, ok
}

// Start starts every registered service and consumes its inbound messages until
// ctx is cancelled or the service stops. Messages from one service are handled in order.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.RLock()
	services := make([]Service, 0, len(b.services))
	for _, svc := range b.services {
		services = append(services, svc)
	}
	b.mu.RUnlock()

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s service: %w", svc.Channel(), err)
		}
		go b.consume(ctx, svc)
	}
	slog.Info("Bridge started", "services", len(services))
	return nil
}

func (b *Bridge) consume(ctx context.Context, svc Service) {
	defer slog.Info("Bridge stopped consuming", "channel", svc.Channel())
	for {
		select {
		case msg, ok := <-svc.Inbound():
			if !ok {
				return
			}
			if err := b.HandleInbound(ctx, msg); err != nil {
				slog.Error("Bridge failed to handle inbound message", "error", err, "channel", msg.Channel, "from", msg.From)
			}
		case <-ctx.Done():
			return
		}
	}
}

// HandleInbound dispatches one inbound message and queues the reply. A message whose
// channel ID was already seen is skipped.
func (b *Bridge) HandleInbound(ctx context.Context, msg models.InboundMessage) error {
	dedupeKey := ""
	if msg.ID != "" {
		dedupeKey = string(msg.Channel) + ":" + msg.ID
		fresh, err := b.store.RecordInbound(dedupeKey, msg.From)
		if err != nil {
			slog.Error("Bridge HandleInbound: dedup check failed, processing anyway", "error", err, "messageID", msg.ID)
		} else if !fresh {
			slog.Info("Bridge HandleInbound: duplicate message skipped", "channel", msg.Channel, "messageID", msg.ID)
			return nil
		}
	}

	session := b.sessions.Get(msg.SessionKey())
	reply := b.dispatcher.HandleMessage(ctx, session, msg.Channel, msg.Body)

	id, err := b.store.EnqueueOutboxMessage(msg.Channel, msg.From, reply, dedupeKey)
	if err != nil {
		return fmt.Errorf("failed to queue reply for %s: %w", msg.From, err)
	}
	slog.Debug("Bridge HandleInbound: reply queued", "outboxID", id, "channel", msg.Channel, "sessionID", session.ID)

	if dedupeKey != "" {
		if err := b.store.MarkProcessed(dedupeKey); err != nil {
			slog.Error("Bridge HandleInbound: mark processed failed", "error", err, "messageID", msg.ID)
		}
	}
	return nil
}

// Deliver sends a queued reply over its channel. It is the OutboxSender send function.
func (b *Bridge) Deliver(ctx context.Context, msg store.OutboxMessage) error {
	svc, ok := b.service(msg.Channel)
	if !ok {
		return fmt.Errorf("no service registered for channel %q", msg.Channel)
	}
	return svc.SendMessage(ctx, msg.Recipient, msg.Body)
}

// Stop stops every registered service.
func (b *Bridge) Stop() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, svc := range b.services {
		if err := svc.Stop(); err != nil {
			slog.Error("Bridge Stop: service stop failed", "channel", ch, "error", err)
		}
	}
}
