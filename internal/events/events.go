// Package events publishes completed chat turns to NATS for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/nats-io/nats.go"
)

const (
	// DefaultURL is the NATS server used when none is configured.
	DefaultURL = nats.DefaultURL
	// DefaultSubject is the subject prefix turn events are published under.
	DefaultSubject = "carddesk.turns"
	// connectionName identifies this client in NATS monitoring.
	connectionName = "CardDesk turn publisher"
)

// Opts holds configuration for the Publisher.
type Opts struct {
	URL     string
	Token   string
	Subject string
}

// Option configures the Publisher.
type Option func(*Opts)

// WithURL sets the NATS server URL.
func WithURL(url string) Option {
	return func(o *Opts) { o.URL = url }
}

// WithToken sets the NATS auth token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithSubject sets the subject prefix.
func WithSubject(subject string) Option {
	return func(o *Opts) { o.Subject = subject }
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// TurnEvent is the JSON payload published for every turn. The reply body is omitted;
// consumers that need it read the archive.
type TurnEvent struct {
	SessionID string         `json:"session_id"`
	Channel   models.Channel `json:"channel"`
	Intent    models.Intent  `json:"intent"`
	Time      int64          `json:"time"`
}

// Publisher sends TurnEvents to NATS. It satisfies the dispatcher's TurnRecorder interface.
type Publisher struct {
	nc      conn
	subject string
}

// Connect dials NATS and returns a Publisher.
func Connect(opts ...Option) (*Publisher, error) {
	cfg := Opts{URL: DefaultURL, Subject: DefaultSubject}
	for _, opt := range opts {
		opt(&cfg)
	}
	natsOpts := []nats.Option{nats.Name(connectionName)}
	if cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(cfg.Token))
	}
	slog.Debug("events.Connect: dialing NATS", "url", cfg.URL, "token_set", cfg.Token != "", "subject", cfg.Subject)
	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return newPublisher(nc, cfg.Subject), nil
}

func newPublisher(nc conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// Subject returns the subject a turn on channel is published to.
func (p *Publisher) Subject(channel models.Channel) string {
	return p.subject + "." + string(channel)
}

// RecordTurn publishes the receipt as a TurnEvent.
func (p *Publisher) RecordTurn(ctx context.Context, r models.TurnReceipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(TurnEvent{
		SessionID: r.SessionID,
		Channel:   r.Channel,
		Intent:    r.Intent,
		Time:      r.Time,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}
	subject := p.Subject(r.Channel)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish turn event to %s: %w", subject, err)
	}
	slog.Debug("Publisher.RecordTurn: published", "subject", subject, "sessionID", r.SessionID, "intent", r.Intent)
	return nil
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		slog.Error("Publisher.Close: drain failed", "error", err)
		return err
	}
	return nil
}
