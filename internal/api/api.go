// Package api provides the HTTP server and process wiring for CardDesk.
//
// It serves the browser chat routes and the Twilio webhook, and starts the messaging
// bridge, the reply outbox sender and the idle-session pruner alongside the server.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/CardDesk/internal/accounts"
	"github.com/BTreeMap/CardDesk/internal/events"
	"github.com/BTreeMap/CardDesk/internal/flow"
	"github.com/BTreeMap/CardDesk/internal/genai"
	"github.com/BTreeMap/CardDesk/internal/messaging"
	"github.com/BTreeMap/CardDesk/internal/store"
	"github.com/BTreeMap/CardDesk/internal/twiliowhatsapp"
	"github.com/BTreeMap/CardDesk/internal/whatsapp"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultRateLimit is the number of requests allowed per client IP per minute.
	DefaultRateLimit = 120
	// DefaultRequestTimeout bounds a single HTTP request.
	DefaultRequestTimeout = 60 * time.Second
	// DefaultSessionIdleTimeout is how long an untouched session is kept.
	DefaultSessionIdleTimeout = 30 * time.Minute
	// TwilioWebhookPath is where Twilio posts inbound WhatsApp messages.
	TwilioWebhookPath = "/twilio/whatsapp"

	pruneInterval   = 5 * time.Minute
	shutdownTimeout = 15 * time.Second
)

var (
	errInvalidJSON = errors.New("Invalid JSON format")
	errInvalidForm = errors.New("Invalid form body")
)

// Opts holds configuration for the API server and the components it starts.
type Opts struct {
	Addr               string
	AccountsFile       string   // YAML seed; empty uses the built-in accounts
	CORSOrigins        []string // browser origins allowed to call the API
	RateLimit          int      // requests per IP per minute; 0 disables limiting
	RequestTimeout     time.Duration
	SessionIdleTimeout time.Duration
	LLMTimeout         time.Duration
	SecureCookies      bool
	WhatsAppEnabled    bool
	TwilioEnabled      bool
	TwilioWebhookURL   string // public webhook URL; empty disables signature checks
	EventsEnabled      bool
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAccountsFile loads the account table from a YAML file.
func WithAccountsFile(path string) Option {
	return func(o *Opts) { o.AccountsFile = path }
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(o *Opts) { o.CORSOrigins = origins }
}

// WithRateLimit sets the per-IP request limit per minute.
func WithRateLimit(n int) Option {
	return func(o *Opts) { o.RateLimit = n }
}

// WithRequestTimeout bounds each HTTP request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Opts) { o.RequestTimeout = d }
}

// WithSessionIdleTimeout sets how long idle sessions are kept before pruning.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.SessionIdleTimeout = d }
}

// WithLLMTimeout bounds a single language-model call.
func WithLLMTimeout(d time.Duration) Option {
	return func(o *Opts) { o.LLMTimeout = d }
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies() Option {
	return func(o *Opts) { o.SecureCookies = true }
}

// WithWhatsApp enables the whatsmeow channel.
func WithWhatsApp() Option {
	return func(o *Opts) { o.WhatsAppEnabled = true }
}

// WithTwilio enables the Twilio channel. webhookURL is the public URL Twilio signs.
func WithTwilio(webhookURL string) Option {
	return func(o *Opts) {
		o.TwilioEnabled = true
		o.TwilioWebhookURL = webhookURL
	}
}

// WithEvents enables publishing turn events to NATS.
func WithEvents() Option {
	return func(o *Opts) { o.EventsEnabled = true }
}

func newOpts(opts ...Option) Opts {
	cfg := Opts{
		Addr:               DefaultAddr,
		CORSOrigins:        []string{"*"},
		RateLimit:          DefaultRateLimit,
		RequestTimeout:     DefaultRequestTimeout,
		SessionIdleTimeout: DefaultSessionIdleTimeout,
		LLMTimeout:         flow.DefaultGenericTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Run wires every module, serves HTTP until SIGINT or SIGTERM and then shuts down.
func Run(waOpts []whatsapp.Option, twOpts []twiliowhatsapp.Option, storeOpts []store.Option, genaiOpts []genai.Option, eventOpts []events.Option, apiOpts []Option) error {
	cfg := newOpts(apiOpts...)
	slog.Debug("API Run: configuration", "addr", cfg.Addr, "accounts_file", cfg.AccountsFile, "rate_limit", cfg.RateLimit,
		"whatsapp", cfg.WhatsAppEnabled, "twilio", cfg.TwilioEnabled, "events", cfg.EventsEnabled)

	accts, err := loadAccounts(cfg.AccountsFile)
	if err != nil {
		return err
	}

	st, err := store.Open(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	recorders := []flow.TurnRecorder{store.NewTurnArchiver(st)}
	if cfg.EventsEnabled {
		pub, err := events.Connect(eventOpts...)
		if err != nil {
			slog.Error("API Run: NATS unavailable, turn events disabled", "error", err)
		} else {
			defer pub.Close()
			recorders = append(recorders, pub)
		}
	}

	dispatcher := flow.NewDispatcher(flow.Dependencies{
		Accounts:      accts,
		Responder:     newResponder(genaiOpts),
		LLMTimeout:    cfg.LLMTimeout,
		TurnRecorders: recorders,
	})
	sessions := flow.NewSessionManager()

	bridge := messaging.NewBridge(dispatcher, sessions, st)
	var twilioSvc *messaging.TwilioService
	if cfg.WhatsAppEnabled {
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			slog.Error("API Run: WhatsApp client unavailable, channel disabled", "error", err)
		} else {
			defer waClient.Disconnect()
			bridge.Register(messaging.NewWhatsAppService(waClient))
		}
	}
	if cfg.TwilioEnabled {
		twClient, err := twiliowhatsapp.NewClient(twOpts...)
		if err != nil {
			slog.Error("API Run: Twilio client unavailable, channel disabled", "error", err)
		} else {
			var validator *twiliowhatsapp.Validator
			if cfg.TwilioWebhookURL != "" {
				validator = twiliowhatsapp.ValidatorFor(cfg.TwilioWebhookURL, twOpts...)
			}
			twilioSvc = messaging.NewTwilioService(twClient, validator)
			bridge.Register(twilioSvc)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bridge.Start(ctx); err != nil {
		return err
	}
	defer bridge.Stop()

	outbox := store.NewOutboxSender(st, bridge.Deliver, 0)
	if err := outbox.RecoverStaleMessages(); err != nil {
		slog.Error("API Run: failed to requeue stale outbox messages", "error", err)
	}
	go outbox.Run(ctx)
	go pruneSessions(ctx, sessions, cfg.SessionIdleTimeout)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewServer(dispatcher, sessions, st, twilioSvc, cfg).Router(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  cfg.RequestTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("CardDesk API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("API Run: shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	slog.Info("CardDesk API stopped gracefully")
	return nil
}

// loadAccounts returns the YAML account table when path is set, else the built-in seed.
func loadAccounts(path string) (*accounts.Store, error) {
	if path == "" {
		slog.Debug("API loadAccounts: using built-in account seed")
		return accounts.NewSeedStore(), nil
	}
	st, err := accounts.LoadYAML(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts from %s: %w", path, err)
	}
	slog.Info("API loadAccounts: accounts loaded", "path", path, "count", st.Len())
	return st, nil
}

// newResponder returns the LLM client, or nil when it cannot be configured so the
// generic fallback serves the static text.
func newResponder(opts []genai.Option) flow.Responder {
	client, err := genai.NewClient(opts...)
	if err != nil {
		slog.Warn("API newResponder: language model disabled", "error", err)
		return nil
	}
	return client
}

// pruneSessions drops idle sessions every pruneInterval until ctx is done.
func pruneSessions(ctx context.Context, sessions *flow.SessionManager, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Prune(maxIdle)
		}
	}
}
